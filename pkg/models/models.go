package models

import "time"

// RawRecord is one uploaded row before normalization. Values come straight
// from the file parser and may be missing, wrong-typed, or malformed.
type RawRecord map[string]any

// Customer is the canonical record produced by normalization. Scores and
// the segment are filled in by the scoring and classification passes.
type Customer struct {
	ID              string    `json:"id"`
	CompanyName     string    `json:"company_name"`
	Industry        string    `json:"industry"`
	Location        string    `json:"location"`
	TotalSpent      float64   `json:"total_spent"`
	EngagementScore int       `json:"engagement_score"`
	SupportTickets  int       `json:"support_tickets"`
	PurchaseCount   int       `json:"purchase_count"`
	CreatedAt       time.Time `json:"created_at"`
	LastInteraction time.Time `json:"last_interaction_at"`

	Segment           string  `json:"segment,omitempty"`
	ChurnProbability  float64 `json:"churn_probability"`
	UpsellScore       float64 `json:"upsell_score"`
	RiskLevel         string  `json:"risk_level,omitempty"`
	RecommendedAction string  `json:"recommended_action,omitempty"`

	// DefaultedFields names every field that did not survive coercion
	// intact (missing, unparseable, or clamped). Quality collaborators
	// surface these as warnings; the engine itself never rejects a row.
	DefaultedFields []string `json:"defaulted_fields,omitempty"`
}

type SegmentSummary struct {
	Name          string  `json:"name"`
	Count         int     `json:"count"`
	TotalRevenue  float64 `json:"total_revenue"`
	AvgRevenue    float64 `json:"avg_revenue"`
	AvgEngagement float64 `json:"avg_engagement"`
}

type IndustrySummary struct {
	Name         string  `json:"name"`
	Count        int     `json:"count"`
	TotalRevenue float64 `json:"total_revenue"`
	AvgRevenue   float64 `json:"avg_revenue"`
}

// MonthlyAggregate is one calendar-month rollup, keyed by "YYYY-MM".
type MonthlyAggregate struct {
	Period            string  `json:"period"`
	CustomerCount     int     `json:"customer_count"`
	RevenueSum        float64 `json:"revenue_sum"`
	EngagementAverage float64 `json:"engagement_average"`
	ChurnCount        int     `json:"churn_count"`
}

// ForecastPoint covers one period of the revenue trend. ActualRevenue is
// nil for projected future periods.
type ForecastPoint struct {
	Period          string   `json:"period"`
	ActualRevenue   *float64 `json:"actual_revenue"`
	ForecastRevenue float64  `json:"forecast_revenue"`
	Confidence      float64  `json:"confidence"`
}

type UpsellOpportunity struct {
	CustomerID          string   `json:"customer_id"`
	CompanyName         string   `json:"company_name"`
	UpsellScore         float64  `json:"upsell_score"`
	CurrentValue        float64  `json:"current_value"`
	PotentialValue      float64  `json:"potential_value"`
	RecommendedProducts []string `json:"recommended_products"`
	Confidence          string   `json:"confidence"`
}

type InsightSummary struct {
	TotalCustomers       int     `json:"total_customers"`
	TotalRevenue         float64 `json:"total_revenue"`
	AverageEngagement    float64 `json:"average_engagement"`
	ChurnRatePercent     float64 `json:"churn_rate_percent"`
	UpsellOpportunities  int     `json:"upsell_opportunities"`
	AverageCustomerValue float64 `json:"average_customer_value"`
}

type Insights struct {
	Summary         InsightSummary `json:"summary"`
	KeyInsights     []string       `json:"key_insights"`
	Recommendations []string       `json:"recommendations"`
}

// Snapshot is the full analysis result handed to presentation layers.
// HasData distinguishes "no records supplied" from a batch that genuinely
// sums to zero; callers must check it before rendering metrics.
type Snapshot struct {
	HasData             bool                `json:"has_data"`
	Customers           []Customer          `json:"customers"`
	Segments            []SegmentSummary    `json:"segments"`
	Industries          []IndustrySummary   `json:"industries"`
	MonthlyTrends       []MonthlyAggregate  `json:"monthly_trends"`
	Forecast            []ForecastPoint     `json:"forecast"`
	UpsellOpportunities []UpsellOpportunity `json:"upsell_opportunities"`
	Insights            Insights            `json:"insights"`
	GeneratedAt         time.Time           `json:"generated_at"`
}
