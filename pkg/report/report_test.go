package report

import (
	"encoding/json"
	"testing"
	"time"

	"crm-insight-engine/pkg/models"
	"crm-insight-engine/pkg/segment"
)

var testNow = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

// The three-customer scenario: a healthy high spender, a stale low-engagement
// account, and an ordinary mid-tier customer.
func scenarioRows() []models.RawRecord {
	return []models.RawRecord{
		{
			"id": "A", "company_name": "Alpha Industries", "industry": "Manufacturing",
			"total_spent": "50000", "engagement_score": "90", "support_tickets": "0",
			"purchase_count": "12", "created_at": "2024-02-01", "last_interaction_at": "2026-07-22",
		},
		{
			"id": "B", "company_name": "Beta LLC", "industry": "Retail",
			"total_spent": "100", "engagement_score": "10", "support_tickets": "8",
			"purchase_count": "2", "created_at": "2024-06-01", "last_interaction_at": "2026-01-13",
		},
		{
			"id": "C", "company_name": "Gamma Co", "industry": "Retail",
			"total_spent": "5000", "engagement_score": "50", "support_tickets": "2",
			"purchase_count": "6", "created_at": "2024-09-01", "last_interaction_at": "2026-07-27",
		},
	}
}

func TestAssembleScenarioSegments(t *testing.T) {
	snapshot := Assemble(scenarioRows(), Options{Now: testNow, Horizon: 3})
	if !snapshot.HasData {
		t.Fatalf("expected has_data true")
	}

	bySegment := map[string]string{}
	for _, customer := range snapshot.Customers {
		bySegment[customer.ID] = customer.Segment
	}
	if bySegment["A"] != segment.HighValue {
		t.Fatalf("expected A High-Value, got %s", bySegment["A"])
	}
	if bySegment["B"] != segment.AtRisk {
		t.Fatalf("expected B At-Risk, got %s", bySegment["B"])
	}
	if bySegment["C"] != segment.Regular {
		t.Fatalf("expected C Regular, got %s", bySegment["C"])
	}

	counts := map[string]int{}
	for _, entry := range snapshot.Segments {
		counts[entry.Name] = entry.Count
	}
	if counts[segment.HighValue] != 1 || counts[segment.AtRisk] != 1 || counts[segment.Regular] != 1 || counts[segment.NewLowEngagement] != 0 {
		t.Fatalf("unexpected segment counts: %v", counts)
	}
}

func TestAssembleSegmentCountsConserveTotal(t *testing.T) {
	snapshot := Assemble(scenarioRows(), Options{Now: testNow})
	total := 0
	for _, entry := range snapshot.Segments {
		total += entry.Count
	}
	if total != len(snapshot.Customers) {
		t.Fatalf("segment counts sum %d, want %d", total, len(snapshot.Customers))
	}
}

func TestAssembleScoresStayInRange(t *testing.T) {
	snapshot := Assemble(scenarioRows(), Options{Now: testNow})
	for _, customer := range snapshot.Customers {
		if customer.ChurnProbability < 0 || customer.ChurnProbability > 1 {
			t.Fatalf("churn out of range for %s: %f", customer.ID, customer.ChurnProbability)
		}
		if customer.UpsellScore < 0 || customer.UpsellScore > 1 {
			t.Fatalf("upsell out of range for %s: %f", customer.ID, customer.UpsellScore)
		}
		if customer.Segment == "" || customer.RiskLevel == "" {
			t.Fatalf("customer %s missing derived fields", customer.ID)
		}
	}
}

func TestAssembleEmptyBatch(t *testing.T) {
	snapshot := Assemble(nil, Options{Now: testNow, Horizon: 3})
	if snapshot.HasData {
		t.Fatalf("empty batch must report has_data false")
	}
	if len(snapshot.Customers) != 0 || len(snapshot.MonthlyTrends) != 0 || len(snapshot.Forecast) != 0 {
		t.Fatalf("expected empty sections, got %+v", snapshot)
	}
	for _, entry := range snapshot.Segments {
		if entry.Count != 0 {
			t.Fatalf("expected zero segment counts, got %+v", entry)
		}
	}
	if !snapshot.GeneratedAt.Equal(testNow) {
		t.Fatalf("generated_at must still be set")
	}
}

func TestAssembleIdempotent(t *testing.T) {
	opts := Options{Now: testNow, Horizon: 4}
	first, err := json.Marshal(Assemble(scenarioRows(), opts))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, err := json.Marshal(Assemble(scenarioRows(), opts))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(first) != string(second) {
		t.Fatalf("snapshots differ across identical runs")
	}
}

func TestAssembleForecastFollowsMonthlyTrends(t *testing.T) {
	snapshot := Assemble(scenarioRows(), Options{Now: testNow, Horizon: 2})
	if len(snapshot.MonthlyTrends) != 3 {
		t.Fatalf("expected 3 creation months, got %d", len(snapshot.MonthlyTrends))
	}
	if len(snapshot.Forecast) != 5 {
		t.Fatalf("expected 3 historical + 2 future points, got %d", len(snapshot.Forecast))
	}
	futures := 0
	for _, point := range snapshot.Forecast {
		if point.ActualRevenue == nil {
			futures++
			if point.Confidence < 0.5 || point.Confidence > 0.95 {
				t.Fatalf("future confidence out of range: %f", point.Confidence)
			}
		}
	}
	if futures != 2 {
		t.Fatalf("expected 2 future points, got %d", futures)
	}
}

func TestAssembleNegativeHorizonProjectsNothing(t *testing.T) {
	snapshot := Assemble(scenarioRows(), Options{Now: testNow, Horizon: -5})
	for _, point := range snapshot.Forecast {
		if point.ActualRevenue == nil {
			t.Fatalf("negative horizon must project no future points, got %+v", point)
		}
	}
	if len(snapshot.Forecast) != len(snapshot.MonthlyTrends) {
		t.Fatalf("expected only historical points, got %d for %d months", len(snapshot.Forecast), len(snapshot.MonthlyTrends))
	}
}

func TestAssembleUpsellOpportunities(t *testing.T) {
	snapshot := Assemble(scenarioRows(), Options{Now: testNow})
	// A: engagement 90, spend 50000 -> 0.54 + 0.4 = 0.94, well above the bar.
	if len(snapshot.UpsellOpportunities) == 0 {
		t.Fatalf("expected at least one upsell opportunity")
	}
	top := snapshot.UpsellOpportunities[0]
	if top.CustomerID != "A" {
		t.Fatalf("expected A as top opportunity, got %s", top.CustomerID)
	}
	if !floatEqual(top.PotentialValue, top.CurrentValue*1.5) {
		t.Fatalf("unexpected potential value: %+v", top)
	}
	if top.Confidence != "High Confidence" {
		t.Fatalf("expected High Confidence, got %s", top.Confidence)
	}
	for i := 1; i < len(snapshot.UpsellOpportunities); i++ {
		if snapshot.UpsellOpportunities[i].UpsellScore > snapshot.UpsellOpportunities[i-1].UpsellScore {
			t.Fatalf("opportunities not sorted by score")
		}
	}
}

func TestAssembleInsights(t *testing.T) {
	snapshot := Assemble(scenarioRows(), Options{Now: testNow})
	insights := snapshot.Insights
	if insights.Summary.TotalCustomers != 3 {
		t.Fatalf("expected 3 customers, got %d", insights.Summary.TotalCustomers)
	}
	if !floatEqual(insights.Summary.TotalRevenue, 55100) {
		t.Fatalf("expected total revenue 55100, got %f", insights.Summary.TotalRevenue)
	}
	if !floatEqual(insights.Summary.AverageEngagement, 50) {
		t.Fatalf("expected average engagement 50, got %f", insights.Summary.AverageEngagement)
	}
	// B is the only at-risk customer out of three.
	if !floatEqual(insights.Summary.ChurnRatePercent, 100.0/3.0) {
		t.Fatalf("expected churn rate 33.3, got %f", insights.Summary.ChurnRatePercent)
	}
	if len(insights.KeyInsights) != 5 || len(insights.Recommendations) != 3 {
		t.Fatalf("unexpected insight shape: %+v", insights)
	}
}

func TestAssembleIndustriesKeepUnknownSeparate(t *testing.T) {
	rows := scenarioRows()
	rows = append(rows, models.RawRecord{
		"id": "D", "total_spent": "10", "engagement_score": "5",
		"purchase_count": "3", "created_at": "2023-01-01", "last_interaction_at": "2026-07-01",
	})
	snapshot := Assemble(rows, Options{Now: testNow})
	found := false
	for _, entry := range snapshot.Industries {
		if entry.Name == "Unknown" {
			found = true
			if entry.Count != 1 {
				t.Fatalf("expected 1 Unknown customer, got %d", entry.Count)
			}
		}
	}
	if !found {
		t.Fatalf("Unknown industry must be its own group: %+v", snapshot.Industries)
	}
}

func floatEqual(a float64, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < 0.01
}
