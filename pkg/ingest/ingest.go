package ingest

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"crm-insight-engine/pkg/models"
)

// Canonical field names and the upload column synonyms seen for each.
// Uploads come from many CRM exports, so matching is lenient: headers are
// lowercased and stripped of spaces, underscores, and hyphens first.
var fieldSynonyms = map[string][]string{
	"id":                  {"id", "customer_id", "customerid"},
	"company_name":        {"company_name", "companyname", "company", "name"},
	"industry":            {"industry", "sector"},
	"location":            {"location", "region", "country", "city"},
	"total_spent":         {"total_spent", "totalspent", "revenue", "purchasehistory", "spend"},
	"engagement_score":    {"engagement_score", "engagementscore", "engagement"},
	"support_tickets":     {"support_tickets", "supporttickets", "tickets"},
	"purchase_count":      {"purchase_count", "purchasecount", "purchases", "purchase_frequency", "purchasefrequency", "frequency"},
	"created_at":          {"created_at", "createdat", "signup_date", "signupdate", "created"},
	"last_interaction_at": {"last_interaction_at", "lastinteractiondate", "last_interaction", "lastinteraction", "last_contact"},
}

// ReadFile parses an uploaded customer file into raw records. JSON files
// must hold an array of objects; anything else is treated as CSV.
func ReadFile(path string) ([]models.RawRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return ReadJSON(file)
	}
	return ReadCSV(file)
}

// ReadCSV maps CSV rows onto raw records using the synonym table. Rows are
// kept even when sparse; only a file with no recognizable customer columns
// at all is rejected.
func ReadCSV(r io.Reader) ([]models.RawRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty file")
		}
		return nil, fmt.Errorf("unable to read header: %w", err)
	}

	colMap := normalizeHeaders(headers)
	fieldIdx := map[string]int{}
	for field, candidates := range fieldSynonyms {
		if idx, ok := findColumn(colMap, candidates); ok {
			fieldIdx[field] = idx
		}
	}
	if len(fieldIdx) == 0 {
		return nil, errors.New("no recognizable customer columns")
	}

	records := []models.RawRecord{}
	for {
		row, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("unable to read CSV: %w", err)
		}
		if len(row) == 0 {
			continue
		}
		record := models.RawRecord{}
		for field, idx := range fieldIdx {
			if value := getValue(row, idx); value != "" {
				record[field] = value
			}
		}
		records = append(records, record)
	}
	return records, nil
}

// ReadJSON decodes an array of objects, mapping keys through the same
// synonym table as CSV headers.
func ReadJSON(r io.Reader) ([]models.RawRecord, error) {
	var rows []map[string]any
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&rows); err != nil {
		return nil, fmt.Errorf("unable to parse JSON: %w", err)
	}

	canonical := map[string]string{}
	for field, candidates := range fieldSynonyms {
		for _, candidate := range candidates {
			canonical[normalizeHeader(candidate)] = field
		}
	}

	records := make([]models.RawRecord, 0, len(rows))
	for _, row := range rows {
		record := models.RawRecord{}
		for key, value := range row {
			if field, ok := canonical[normalizeHeader(key)]; ok {
				record[field] = value
			}
		}
		records = append(records, record)
	}
	return records, nil
}

func normalizeHeaders(headers []string) map[string]int {
	result := make(map[string]int, len(headers))
	for idx, header := range headers {
		normalized := normalizeHeader(header)
		if _, exists := result[normalized]; !exists {
			result[normalized] = idx
		}
	}
	return result
}

func normalizeHeader(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.ReplaceAll(value, " ", "")
	value = strings.ReplaceAll(value, "_", "")
	value = strings.ReplaceAll(value, "-", "")
	return value
}

func findColumn(headers map[string]int, names []string) (int, bool) {
	for _, name := range names {
		if idx, ok := headers[normalizeHeader(name)]; ok {
			return idx, true
		}
	}
	return -1, false
}

func getValue(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
