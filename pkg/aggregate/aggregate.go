package aggregate

import (
	"sort"
	"time"

	"crm-insight-engine/pkg/models"
	"crm-insight-engine/pkg/risk"
)

const periodLayout = "2006-01"

// GroupStat is a count/sum/average rollup for one group. An empty group is
// all zeros; the average is defined (0), never NaN.
type GroupStat struct {
	Count int
	Sum   float64
	Avg   float64
}

// KeyFunc derives the grouping key for a customer.
type KeyFunc func(models.Customer) string

// ValueFunc selects the metric being rolled up.
type ValueFunc func(models.Customer) float64

// GroupBy folds customers into per-key rollups. The result is independent
// of input order.
func GroupBy(customers []models.Customer, key KeyFunc, value ValueFunc) map[string]GroupStat {
	stats := map[string]GroupStat{}
	for _, customer := range customers {
		groupKey := key(customer)
		stat := stats[groupKey]
		stat.Count++
		stat.Sum += value(customer)
		stats[groupKey] = stat
	}
	for name, stat := range stats {
		if stat.Count > 0 {
			stat.Avg = stat.Sum / float64(stat.Count)
		}
		stats[name] = stat
	}
	return stats
}

// SortedKeys returns the group keys in lexical order, for deterministic
// report output.
func SortedKeys(stats map[string]GroupStat) []string {
	keys := make([]string, 0, len(stats))
	for key := range stats {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func BySegment(customer models.Customer) string {
	return customer.Segment
}

// ByIndustry groups on the literal field value; "Unknown" stays its own
// group rather than being merged anywhere.
func ByIndustry(customer models.Customer) string {
	return customer.Industry
}

func Revenue(customer models.Customer) float64 {
	return customer.TotalSpent
}

func Engagement(customer models.Customer) float64 {
	return float64(customer.EngagementScore)
}

// DateField selects which customer timestamp drives calendar-month
// grouping.
type DateField int

const (
	ByCreatedAt DateField = iota
	ByLastInteraction
)

// MonthKey truncates the selected timestamp to its year-month.
func MonthKey(field DateField) KeyFunc {
	return func(customer models.Customer) string {
		when := customer.CreatedAt
		if field == ByLastInteraction {
			when = customer.LastInteraction
		}
		return when.Format(periodLayout)
	}
}

// Monthly builds the calendar-month rollups, sorted by period. Shuffling
// the input produces identical aggregates.
func Monthly(customers []models.Customer, field DateField) []models.MonthlyAggregate {
	key := MonthKey(field)
	byPeriod := map[string]*models.MonthlyAggregate{}
	for _, customer := range customers {
		period := key(customer)
		entry, exists := byPeriod[period]
		if !exists {
			entry = &models.MonthlyAggregate{Period: period}
			byPeriod[period] = entry
		}
		entry.CustomerCount++
		entry.RevenueSum += customer.TotalSpent
		entry.EngagementAverage += float64(customer.EngagementScore)
		if risk.AtRisk(customer.ChurnProbability) {
			entry.ChurnCount++
		}
	}

	aggregates := make([]models.MonthlyAggregate, 0, len(byPeriod))
	for _, entry := range byPeriod {
		if entry.CustomerCount > 0 {
			entry.EngagementAverage /= float64(entry.CustomerCount)
		}
		aggregates = append(aggregates, *entry)
	}
	sort.Slice(aggregates, func(i, j int) bool {
		return aggregates[i].Period < aggregates[j].Period
	})
	return aggregates
}

// ParsePeriod parses a "YYYY-MM" period key.
func ParsePeriod(period string) (time.Time, error) {
	return time.Parse(periodLayout, period)
}

// FormatPeriod renders a timestamp as its "YYYY-MM" period key.
func FormatPeriod(when time.Time) string {
	return when.Format(periodLayout)
}
