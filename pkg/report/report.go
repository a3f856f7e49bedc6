package report

import (
	"fmt"
	"sort"
	"time"

	"crm-insight-engine/pkg/aggregate"
	"crm-insight-engine/pkg/forecast"
	"crm-insight-engine/pkg/models"
	"crm-insight-engine/pkg/normalize"
	"crm-insight-engine/pkg/risk"
	"crm-insight-engine/pkg/segment"
)

const (
	upsellOpportunityMin = 0.6
	upsellGrowthFactor   = 1.5
)

// Options controls one pipeline run. Now is the injected reference time
// used for every recency, age, and date-fallback decision as well as the
// snapshot's GeneratedAt; fixing it makes runs fully deterministic.
// Horizon is the number of future periods to project; a negative value is
// treated as 0, meaning no future points.
type Options struct {
	Now     time.Time
	Horizon int
}

// Assemble runs the full pipeline over one raw batch: normalize, score,
// classify, aggregate, forecast, and join everything into a snapshot.
// The batch is taken by value and nothing is retained across runs, so
// concurrent runs over different batches need no coordination.
//
// An empty batch yields a valid snapshot with HasData false and empty
// sections; callers must render that as a no-data state, not as zeros.
func Assemble(rows []models.RawRecord, opts Options) models.Snapshot {
	horizon := opts.Horizon
	if horizon < 0 {
		horizon = 0
	}

	customers := normalize.Records(rows, opts.Now)

	// Scoring runs before classification: the at-risk rule reads the churn
	// probability, so the classifier only ever sees scored customers.
	for i := range customers {
		churn, upsell := risk.Score(customers[i], opts.Now)
		customers[i].ChurnProbability = churn
		customers[i].UpsellScore = upsell
		customers[i].RiskLevel = risk.Level(churn)
		customers[i].RecommendedAction = risk.Action(churn)
	}

	classifier := segment.NewClassifier(customers, opts.Now)
	for i := range customers {
		customers[i].Segment = classifier.Classify(customers[i])
	}

	monthly := aggregate.Monthly(customers, aggregate.ByCreatedAt)

	history := make([]forecast.RevenuePoint, 0, len(monthly))
	for _, entry := range monthly {
		history = append(history, forecast.RevenuePoint{Period: entry.Period, Revenue: entry.RevenueSum})
	}

	snapshot := models.Snapshot{
		HasData:             len(customers) > 0,
		Customers:           customers,
		Segments:            segmentSummaries(customers),
		Industries:          industrySummaries(customers),
		MonthlyTrends:       monthly,
		Forecast:            forecast.Project(history, horizon),
		UpsellOpportunities: upsellOpportunities(customers),
		GeneratedAt:         opts.Now,
	}
	snapshot.Insights = buildInsights(snapshot)
	return snapshot
}

// segmentSummaries always lists all four segments in canonical order, so
// the sum of counts equals the total customer count by construction and
// presentation layers get a stable shape.
func segmentSummaries(customers []models.Customer) []models.SegmentSummary {
	revenue := aggregate.GroupBy(customers, aggregate.BySegment, aggregate.Revenue)
	engagement := aggregate.GroupBy(customers, aggregate.BySegment, aggregate.Engagement)

	summaries := make([]models.SegmentSummary, 0, len(segment.Names()))
	for _, name := range segment.Names() {
		stat := revenue[name]
		summaries = append(summaries, models.SegmentSummary{
			Name:          name,
			Count:         stat.Count,
			TotalRevenue:  stat.Sum,
			AvgRevenue:    stat.Avg,
			AvgEngagement: engagement[name].Avg,
		})
	}
	return summaries
}

func industrySummaries(customers []models.Customer) []models.IndustrySummary {
	revenue := aggregate.GroupBy(customers, aggregate.ByIndustry, aggregate.Revenue)

	summaries := make([]models.IndustrySummary, 0, len(revenue))
	for _, name := range aggregate.SortedKeys(revenue) {
		stat := revenue[name]
		summaries = append(summaries, models.IndustrySummary{
			Name:         name,
			Count:        stat.Count,
			TotalRevenue: stat.Sum,
			AvgRevenue:   stat.Avg,
		})
	}
	return summaries
}

func upsellOpportunities(customers []models.Customer) []models.UpsellOpportunity {
	opportunities := make([]models.UpsellOpportunity, 0)
	for _, customer := range customers {
		if customer.UpsellScore <= upsellOpportunityMin {
			continue
		}
		opportunities = append(opportunities, models.UpsellOpportunity{
			CustomerID:          customer.ID,
			CompanyName:         customer.CompanyName,
			UpsellScore:         customer.UpsellScore,
			CurrentValue:        customer.TotalSpent,
			PotentialValue:      customer.TotalSpent * upsellGrowthFactor,
			RecommendedProducts: recommendedProducts(customer.TotalSpent),
			Confidence:          upsellConfidence(customer.UpsellScore),
		})
	}
	sort.Slice(opportunities, func(i, j int) bool {
		if opportunities[i].UpsellScore != opportunities[j].UpsellScore {
			return opportunities[i].UpsellScore > opportunities[j].UpsellScore
		}
		return opportunities[i].CustomerID < opportunities[j].CustomerID
	})
	return opportunities
}

func recommendedProducts(totalSpent float64) []string {
	if totalSpent > 100000 {
		return []string{"Enterprise Plan", "Premium Support", "Advanced Analytics"}
	}
	if totalSpent > 50000 {
		return []string{"Professional Plan", "Priority Support", "Custom Integration"}
	}
	return []string{"Standard Plan", "Basic Support", "Training Package"}
}

func upsellConfidence(score float64) string {
	if score >= 0.8 {
		return "High Confidence"
	}
	if score >= 0.6 {
		return "Medium Confidence"
	}
	return "Low Confidence"
}

func buildInsights(snapshot models.Snapshot) models.Insights {
	if !snapshot.HasData {
		return models.Insights{
			KeyInsights:     []string{},
			Recommendations: []string{},
		}
	}

	total := len(snapshot.Customers)
	var totalRevenue, engagementSum float64
	atRiskCount, highRiskCount := 0, 0
	for _, customer := range snapshot.Customers {
		totalRevenue += customer.TotalSpent
		engagementSum += float64(customer.EngagementScore)
		if risk.AtRisk(customer.ChurnProbability) {
			atRiskCount++
		}
		if customer.RiskLevel == "High Risk" {
			highRiskCount++
		}
	}

	var potentialRevenue float64
	for _, opportunity := range snapshot.UpsellOpportunities {
		potentialRevenue += opportunity.PotentialValue - opportunity.CurrentValue
	}

	populatedSegments := 0
	topSegment := "N/A"
	topRevenue := -1.0
	for _, entry := range snapshot.Segments {
		if entry.Count == 0 {
			continue
		}
		populatedSegments++
		if entry.TotalRevenue > topRevenue {
			topRevenue = entry.TotalRevenue
			topSegment = entry.Name
		}
	}

	summary := models.InsightSummary{
		TotalCustomers:       total,
		TotalRevenue:         totalRevenue,
		AverageEngagement:    engagementSum / float64(total),
		ChurnRatePercent:     float64(atRiskCount) / float64(total) * 100,
		UpsellOpportunities:  len(snapshot.UpsellOpportunities),
		AverageCustomerValue: totalRevenue / float64(total),
	}

	keyInsights := []string{
		fmt.Sprintf("%d distinct customer segments identified", populatedSegments),
		fmt.Sprintf("%d high-risk customers need immediate attention", highRiskCount),
		fmt.Sprintf("%d upsell opportunities with potential revenue of $%.0f", len(snapshot.UpsellOpportunities), potentialRevenue),
		fmt.Sprintf("Average customer value: $%.0f", summary.AverageCustomerValue),
		fmt.Sprintf("Top performing segment: %s", topSegment),
	}

	return models.Insights{
		Summary:     summary,
		KeyInsights: keyInsights,
		Recommendations: []string{
			"Focus on high-risk customers to reduce churn",
			"Run targeted upsell campaigns for high potential customers",
			"Develop segment-specific engagement cadences",
		},
	}
}
