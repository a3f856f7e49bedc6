package forecast

import (
	"testing"
)

func TestProjectTwoPointTrend(t *testing.T) {
	history := []RevenuePoint{
		{Period: "2026-01", Revenue: 100},
		{Period: "2026-02", Revenue: 200},
	}
	points := Project(history, 1)
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}

	// Slope 100, intercept 100.
	if !floatEqual(points[0].ForecastRevenue, 100) || !floatEqual(points[1].ForecastRevenue, 200) {
		t.Fatalf("unexpected fitted values: %f, %f", points[0].ForecastRevenue, points[1].ForecastRevenue)
	}

	future := points[2]
	if future.Period != "2026-03" {
		t.Fatalf("expected future period 2026-03, got %s", future.Period)
	}
	if future.ActualRevenue != nil {
		t.Fatalf("future point must have no actual revenue")
	}
	if !floatEqual(future.ForecastRevenue, 300) {
		t.Fatalf("expected forecast 300, got %f", future.ForecastRevenue)
	}
	if future.Confidence != 0.95 {
		t.Fatalf("expected first future confidence 0.95, got %f", future.Confidence)
	}
}

func TestProjectInsufficientData(t *testing.T) {
	if points := Project(nil, 3); len(points) != 0 {
		t.Fatalf("expected no points for empty history, got %d", len(points))
	}

	single := []RevenuePoint{{Period: "2026-01", Revenue: 500}}
	points := Project(single, 3)
	if len(points) != 1 {
		t.Fatalf("expected single unchanged point, got %d", len(points))
	}
	if points[0].ActualRevenue == nil || *points[0].ActualRevenue != 500 {
		t.Fatalf("expected actual 500, got %+v", points[0])
	}
	if points[0].ForecastRevenue != 500 {
		t.Fatalf("expected forecast equal to actual, got %f", points[0].ForecastRevenue)
	}
}

func TestProjectFlooredAtZero(t *testing.T) {
	history := []RevenuePoint{
		{Period: "2026-01", Revenue: 400},
		{Period: "2026-02", Revenue: 100},
	}
	points := Project(history, 3)
	for _, point := range points {
		if point.ForecastRevenue < 0 {
			t.Fatalf("forecast revenue went negative: %+v", point)
		}
	}
	// Slope -300: the later future periods bottom out at zero.
	last := points[len(points)-1]
	if last.ForecastRevenue != 0 {
		t.Fatalf("expected floored forecast 0, got %f", last.ForecastRevenue)
	}
}

func TestProjectConfidenceBounds(t *testing.T) {
	history := []RevenuePoint{
		{Period: "2025-01", Revenue: 100},
		{Period: "2025-02", Revenue: 110},
		{Period: "2025-03", Revenue: 120},
		{Period: "2025-04", Revenue: 130},
	}
	points := Project(history, 8)

	// Each track decays monotonically: historical with index, future with
	// forecast distance.
	previousHistory, previousFuture := 2.0, 2.0
	for i, point := range points {
		if point.ActualRevenue == nil {
			if point.Confidence > previousFuture+1e-9 {
				t.Fatalf("future confidence increased at point %d", i)
			}
			previousFuture = point.Confidence
			if point.Confidence > 0.95 || point.Confidence < 0.5 {
				t.Fatalf("future confidence out of [0.5, 0.95]: %f", point.Confidence)
			}
		} else {
			if point.Confidence > previousHistory+1e-9 {
				t.Fatalf("historical confidence increased at point %d", i)
			}
			previousHistory = point.Confidence
			if point.Confidence > 1.0 || point.Confidence < 0.6 {
				t.Fatalf("historical confidence out of [0.6, 1.0]: %f", point.Confidence)
			}
		}
	}
}

func TestProjectFuturePeriodsRollOverYear(t *testing.T) {
	history := []RevenuePoint{
		{Period: "2026-11", Revenue: 100},
		{Period: "2026-12", Revenue: 200},
	}
	points := Project(history, 2)
	if points[2].Period != "2027-01" || points[3].Period != "2027-02" {
		t.Fatalf("expected year rollover, got %s / %s", points[2].Period, points[3].Period)
	}
}

func floatEqual(a float64, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < 1e-6
}
