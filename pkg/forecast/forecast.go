package forecast

import (
	"crm-insight-engine/pkg/aggregate"
	"crm-insight-engine/pkg/models"
)

// RevenuePoint is one historical period of revenue, period keyed "YYYY-MM".
type RevenuePoint struct {
	Period  string
	Revenue float64
}

// Confidence decay. Future confidence starts at 0.95 and never drops below
// 0.5; historical fit confidence decays more gently from 1.0 toward 0.6.
// Tunable policy, but both decays must stay monotone non-increasing.
const (
	futureConfidenceStart = 0.95
	futureConfidenceFloor = 0.5
	futureConfidenceStep  = 0.12

	historyConfidenceStart = 1.0
	historyConfidenceFloor = 0.6
	historyConfidenceStep  = 0.04
)

// Project fits an ordinary least-squares line over the historical revenue
// points and extends it horizon periods into the future. Historical points
// keep their actual revenue and also carry the fitted value; future points
// have no actual. Forecast revenue is floored at 0.
//
// With fewer than two historical points no trend is computable: the
// historical points are returned as-is (forecast equal to actual) with no
// future points, signaling insufficient data.
func Project(history []RevenuePoint, horizon int) []models.ForecastPoint {
	points := make([]models.ForecastPoint, 0, len(history)+horizon)

	if len(history) < 2 {
		for i, entry := range history {
			actual := entry.Revenue
			points = append(points, models.ForecastPoint{
				Period:          entry.Period,
				ActualRevenue:   &actual,
				ForecastRevenue: actual,
				Confidence:      historyConfidence(i),
			})
		}
		return points
	}

	slope, intercept := fitLine(history)

	for i, entry := range history {
		actual := entry.Revenue
		points = append(points, models.ForecastPoint{
			Period:          entry.Period,
			ActualRevenue:   &actual,
			ForecastRevenue: fitted(slope, intercept, i),
			Confidence:      historyConfidence(i),
		})
	}

	if horizon <= 0 {
		return points
	}

	base, err := aggregate.ParsePeriod(history[len(history)-1].Period)
	if err != nil {
		// Periods did not come from the aggregator; without a parseable
		// anchor no future periods can be labeled.
		return points
	}
	for step := 1; step <= horizon; step++ {
		index := len(history) - 1 + step
		points = append(points, models.ForecastPoint{
			Period:          aggregate.FormatPeriod(base.AddDate(0, step, 0)),
			ActualRevenue:   nil,
			ForecastRevenue: fitted(slope, intercept, index),
			Confidence:      futureConfidence(step),
		})
	}
	return points
}

// fitLine computes slope and intercept of revenue against the 0-based
// period index.
func fitLine(history []RevenuePoint) (slope float64, intercept float64) {
	n := float64(len(history))
	var sumX, sumY, sumXY, sumXX float64
	for i, entry := range history {
		x := float64(i)
		sumX += x
		sumY += entry.Revenue
		sumXY += x * entry.Revenue
		sumXX += x * x
	}
	denominator := n*sumXX - sumX*sumX
	if denominator == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / denominator
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}

func fitted(slope float64, intercept float64, index int) float64 {
	value := slope*float64(index) + intercept
	if value < 0 {
		return 0
	}
	return value
}

func historyConfidence(index int) float64 {
	confidence := historyConfidenceStart - historyConfidenceStep*float64(index)
	if confidence < historyConfidenceFloor {
		return historyConfidenceFloor
	}
	return confidence
}

func futureConfidence(step int) float64 {
	confidence := futureConfidenceStart - futureConfidenceStep*float64(step-1)
	if confidence < futureConfidenceFloor {
		return futureConfidenceFloor
	}
	return confidence
}
