package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"crm-insight-engine/pkg/ingest"
	"crm-insight-engine/pkg/models"
	"crm-insight-engine/pkg/normalize"
	"crm-insight-engine/pkg/report"
	"crm-insight-engine/pkg/store"
)

const (
	defaultHorizon = 3
	defaultTopN    = 10
)

func main() {
	_ = godotenv.Load()

	inputPath := flag.String("input", "", "Path to customer CSV or JSON file")
	asOf := flag.String("as-of", "", "Reference date for recency and forecasting (YYYY-MM-DD)")
	horizon := flag.Int("horizon", defaultHorizon, "Future periods to forecast")
	topN := flag.Int("top", defaultTopN, "Top N churn risks to show")
	jsonOut := flag.String("json", "", "Optional JSON output path for the full snapshot")
	alertsOut := flag.String("alerts", "", "Optional CSV output for customers at or above the alert risk level")
	minRisk := flag.String("min-risk", "medium", "Minimum risk level for alerts (low, medium, high)")
	dbEnabled := flag.Bool("db", false, "Store the analysis run in Postgres (requires CRM_INSIGHT_DB_URL or DATABASE_URL)")
	dbSchema := flag.String("db-schema", "crm_insight", "Postgres schema for analysis tables")
	dbTag := flag.String("db-tag", "", "Optional label for this analysis run")
	initDB := flag.Bool("init-db", false, "Initialize database schema and seed with this run if empty")
	flag.Parse()

	if *inputPath == "" {
		exitWithError(errors.New("--input is required"))
	}
	if *horizon < 0 {
		exitWithError(errors.New("--horizon must not be negative"))
	}

	now := time.Now()
	if *asOf != "" {
		parsed, err := normalize.ParseTimestamp(*asOf)
		if err != nil {
			exitWithError(fmt.Errorf("invalid --as-of date: %w", err))
		}
		now = parsed
	}
	now = dateOnly(now)

	snapshot, err := buildSnapshot(*inputPath, report.Options{Now: now, Horizon: *horizon})
	if err != nil {
		exitWithError(err)
	}

	printSnapshot(snapshot, *inputPath, *topN)

	if *jsonOut != "" {
		if err := writeJSON(snapshot, *jsonOut); err != nil {
			exitWithError(err)
		}
		fmt.Printf("\nJSON snapshot saved to %s\n", *jsonOut)
	}

	if *alertsOut != "" {
		if err := writeAlertsCSV(snapshot, *alertsOut, *minRisk); err != nil {
			exitWithError(err)
		}
		fmt.Printf("Alert CSV saved to %s\n", *alertsOut)
	}

	if *dbEnabled || *initDB {
		dbURL := dbURLFromEnv()
		if dbURL == "" {
			exitWithError(errors.New("database URL missing; set CRM_INSIGHT_DB_URL or DATABASE_URL"))
		}
		cfg := store.Config{
			URL:    dbURL,
			Schema: *dbSchema,
			Tag:    *dbTag,
		}
		seeded := false
		if *initDB {
			runID, err := store.Seed(snapshot, cfg)
			if err != nil {
				exitWithError(err)
			}
			if runID != "" {
				seeded = true
				fmt.Printf("\nSeeded Postgres with initial analysis run (run_id=%s)\n", runID)
			} else {
				fmt.Println("\nAnalysis data already present; skipping seed.")
			}
		}
		if *dbEnabled {
			if seeded {
				fmt.Println("Skipped duplicate insert; current run already used for seed.")
			} else {
				runID, err := store.Store(snapshot, cfg)
				if err != nil {
					exitWithError(err)
				}
				fmt.Printf("\nStored analysis run in Postgres (run_id=%s)\n", runID)
			}
		}
	}
}

func buildSnapshot(path string, opts report.Options) (models.Snapshot, error) {
	rows, err := ingest.ReadFile(path)
	if err != nil {
		return models.Snapshot{}, err
	}
	return report.Assemble(rows, opts), nil
}

func printSnapshot(snapshot models.Snapshot, inputPath string, topN int) {
	fmt.Println("CRM Insight Report")
	fmt.Println(strings.Repeat("=", 38))
	fmt.Printf("Input: %s\n", filepath.Base(inputPath))
	fmt.Printf("As of: %s\n", snapshot.GeneratedAt.Format("2006-01-02"))

	if !snapshot.HasData {
		fmt.Println("\nNo customer records found. Upload a customer file to generate insights.")
		return
	}

	summary := snapshot.Insights.Summary
	fmt.Printf("Total customers: %d\n", summary.TotalCustomers)
	fmt.Printf("Total revenue: $%.2f\n", summary.TotalRevenue)
	fmt.Printf("Average engagement: %.1f\n", summary.AverageEngagement)
	fmt.Printf("Churn rate: %.1f%%\n", summary.ChurnRatePercent)

	fmt.Println("\nSegments")
	fmt.Println(strings.Repeat("-", 38))
	for _, entry := range snapshot.Segments {
		fmt.Printf("%s | customers %d | revenue $%.2f | avg $%.2f | engagement %.1f\n",
			entry.Name,
			entry.Count,
			entry.TotalRevenue,
			entry.AvgRevenue,
			entry.AvgEngagement,
		)
	}

	if len(snapshot.Industries) > 0 {
		fmt.Println("\nIndustries")
		fmt.Println(strings.Repeat("-", 38))
		for _, entry := range snapshot.Industries {
			fmt.Printf("%s: %d customers, $%.2f\n", entry.Name, entry.Count, entry.TotalRevenue)
		}
	}

	if len(snapshot.MonthlyTrends) > 0 {
		fmt.Println("\nMonthly trends")
		fmt.Println(strings.Repeat("-", 38))
		for _, entry := range snapshot.MonthlyTrends {
			fmt.Printf("%s | customers %d | revenue $%.2f | engagement %.1f | churn risks %d\n",
				entry.Period,
				entry.CustomerCount,
				entry.RevenueSum,
				entry.EngagementAverage,
				entry.ChurnCount,
			)
		}
	}

	if len(snapshot.Forecast) > 0 {
		fmt.Println("\nRevenue forecast")
		fmt.Println(strings.Repeat("-", 38))
		for _, point := range snapshot.Forecast {
			actual := "-"
			if point.ActualRevenue != nil {
				actual = fmt.Sprintf("$%.2f", *point.ActualRevenue)
			}
			fmt.Printf("%s | actual %s | forecast $%.2f | confidence %.2f\n",
				point.Period,
				actual,
				point.ForecastRevenue,
				point.Confidence,
			)
		}
	}

	topRisks := topChurnRisks(snapshot.Customers, topN)
	if len(topRisks) > 0 {
		fmt.Println("\nTop churn risks")
		fmt.Println(strings.Repeat("-", 38))
		for _, customer := range topRisks {
			fmt.Printf("%s | %s | churn %.2f | %s | %s\n",
				customer.ID,
				customer.CompanyName,
				customer.ChurnProbability,
				customer.RiskLevel,
				customer.RecommendedAction,
			)
		}
	}

	if len(snapshot.UpsellOpportunities) > 0 {
		fmt.Println("\nUpsell opportunities")
		fmt.Println(strings.Repeat("-", 38))
		for _, opportunity := range snapshot.UpsellOpportunities {
			fmt.Printf("%s | %s | score %.2f | current $%.2f | potential $%.2f | %s\n",
				opportunity.CustomerID,
				opportunity.CompanyName,
				opportunity.UpsellScore,
				opportunity.CurrentValue,
				opportunity.PotentialValue,
				opportunity.Confidence,
			)
		}
	}

	if len(snapshot.Insights.KeyInsights) > 0 {
		fmt.Println("\nKey insights")
		fmt.Println(strings.Repeat("-", 38))
		for _, insight := range snapshot.Insights.KeyInsights {
			fmt.Printf("- %s\n", insight)
		}
	}
}

func topChurnRisks(customers []models.Customer, topN int) []models.Customer {
	if topN <= 0 {
		return nil
	}
	ranked := append([]models.Customer{}, customers...)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].ChurnProbability != ranked[j].ChurnProbability {
			return ranked[i].ChurnProbability > ranked[j].ChurnProbability
		}
		return ranked[i].ID < ranked[j].ID
	})
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}

func writeAlertsCSV(snapshot models.Snapshot, path string, minRisk string) error {
	threshold, ok := riskRank(minRisk)
	if !ok {
		return fmt.Errorf("invalid --min-risk value: %s", minRisk)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{
		"customer_id",
		"company_name",
		"segment",
		"risk_level",
		"churn_probability",
		"recommended_action",
		"total_spent",
		"engagement_score",
		"last_interaction_at",
	}); err != nil {
		return err
	}

	for _, customer := range topChurnRisks(snapshot.Customers, len(snapshot.Customers)) {
		rank, _ := riskRank(customer.RiskLevel)
		if rank < threshold {
			continue
		}
		record := []string{
			customer.ID,
			customer.CompanyName,
			customer.Segment,
			customer.RiskLevel,
			fmt.Sprintf("%.3f", customer.ChurnProbability),
			customer.RecommendedAction,
			fmt.Sprintf("%.2f", customer.TotalSpent),
			fmt.Sprintf("%d", customer.EngagementScore),
			customer.LastInteraction.Format("2006-01-02"),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func riskRank(value string) (int, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "low", "low risk":
		return 0, true
	case "medium", "medium risk":
		return 1, true
	case "high", "high risk":
		return 2, true
	default:
		return 0, false
	}
}

func writeJSON(snapshot models.Snapshot, path string) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func dbURLFromEnv() string {
	if value := strings.TrimSpace(os.Getenv("CRM_INSIGHT_DB_URL")); value != "" {
		return value
	}
	return strings.TrimSpace(os.Getenv("DATABASE_URL"))
}

func dateOnly(value time.Time) time.Time {
	if value.IsZero() {
		return value
	}
	return time.Date(value.Year(), value.Month(), value.Day(), 0, 0, 0, 0, value.Location())
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}
