package normalize

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"crm-insight-engine/pkg/models"
)

const (
	defaultText        = "Unknown"
	engagementScoreMax = 100
	generatedIDPrefix  = "record"
)

// Records coerces raw uploaded rows into canonical customers. The output
// has the same order and cardinality as the input: rows are never dropped,
// however poor the data. Any field that fails coercion falls back to its
// documented default and is listed in the customer's DefaultedFields.
// Unparseable dates fall back to now, which shifts the record's time-series
// membership; the defaulted-field entry makes that visible to callers.
func Records(rows []models.RawRecord, now time.Time) []models.Customer {
	customers := make([]models.Customer, 0, len(rows))
	for idx, row := range rows {
		customers = append(customers, record(row, idx, now))
	}
	return customers
}

func record(row models.RawRecord, idx int, now time.Time) models.Customer {
	var defaulted []string
	mark := func(field string) {
		defaulted = append(defaulted, field)
	}

	customer := models.Customer{}

	id, ok := coerceString(row["id"])
	if !ok || id == "" {
		id = fmt.Sprintf("%s-%d", generatedIDPrefix, idx+1)
		mark("id")
	}
	customer.ID = id

	customer.CompanyName = textField(row, "company_name", mark)
	customer.Industry = textField(row, "industry", mark)
	customer.Location = textField(row, "location", mark)

	spent, ok := coerceFloat(row["total_spent"])
	if !ok {
		spent = 0
		mark("total_spent")
	} else if spent < 0 {
		spent = 0
		mark("total_spent")
	}
	customer.TotalSpent = spent

	engagement, ok := coerceInt(row["engagement_score"])
	switch {
	case !ok:
		engagement = 0
		mark("engagement_score")
	case engagement < 0:
		engagement = 0
		mark("engagement_score")
	case engagement > engagementScoreMax:
		engagement = engagementScoreMax
		mark("engagement_score")
	}
	customer.EngagementScore = engagement

	customer.SupportTickets = countField(row, "support_tickets", mark)
	customer.PurchaseCount = countField(row, "purchase_count", mark)

	createdAt, ok := coerceTime(row["created_at"])
	if !ok {
		createdAt = now
		mark("created_at")
	}
	customer.CreatedAt = createdAt

	lastInteraction, ok := coerceTime(row["last_interaction_at"])
	if !ok {
		lastInteraction = now
		mark("last_interaction_at")
	}
	customer.LastInteraction = lastInteraction

	customer.DefaultedFields = defaulted
	return customer
}

func textField(row models.RawRecord, key string, mark func(string)) string {
	value, ok := coerceString(row[key])
	if !ok || value == "" {
		mark(key)
		return defaultText
	}
	return value
}

func countField(row models.RawRecord, key string, mark func(string)) int {
	value, ok := coerceInt(row[key])
	if !ok || value < 0 {
		mark(key)
		return 0
	}
	return value
}

func coerceString(value any) (string, bool) {
	switch typed := value.(type) {
	case nil:
		return "", false
	case string:
		return strings.TrimSpace(typed), true
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64), true
	case int:
		return strconv.Itoa(typed), true
	case bool:
		return strconv.FormatBool(typed), true
	default:
		return "", false
	}
}

func coerceFloat(value any) (float64, bool) {
	switch typed := value.(type) {
	case nil:
		return 0, false
	case float64:
		if math.IsNaN(typed) || math.IsInf(typed, 0) {
			return 0, false
		}
		return typed, true
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case string:
		trimmed := strings.TrimSpace(typed)
		if trimmed == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func coerceInt(value any) (int, bool) {
	parsed, ok := coerceFloat(value)
	if !ok {
		return 0, false
	}
	return int(parsed), true
}

func coerceTime(value any) (time.Time, bool) {
	switch typed := value.(type) {
	case time.Time:
		if typed.IsZero() {
			return time.Time{}, false
		}
		return typed, true
	case string:
		parsed, err := ParseTimestamp(typed)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	default:
		return time.Time{}, false
	}
}

// ParseTimestamp accepts the date formats seen in customer uploads.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty date")
	}
	layouts := []string{
		"2006-01-02",
		"2006/01/02",
		"01/02/2006",
		"01-02-2006",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04:05Z07:00",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date format: %s", value)
}
