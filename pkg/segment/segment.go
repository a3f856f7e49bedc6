package segment

import (
	"math"
	"sort"
	"time"

	"crm-insight-engine/pkg/models"
	"crm-insight-engine/pkg/risk"
)

const (
	AtRisk           = "At-Risk Customers"
	HighValue        = "High-Value Customers"
	NewLowEngagement = "New/Low-Engagement Customers"
	Regular          = "Regular Customers"
)

const (
	topQuartile             = 0.75
	highValueEngagementMin  = 60
	newCustomerAgeDays      = 30
	newCustomerMaxPurchases = 1
)

// Names returns the four segment names in their canonical report order.
func Names() []string {
	return []string{HighValue, AtRisk, NewLowEngagement, Regular}
}

// Classifier assigns each customer to exactly one segment. The spend
// cutoff is batch-relative, so a classifier is built per batch and applied
// to every customer in it.
type Classifier struct {
	spendCutoff float64
	now         time.Time
}

// NewClassifier derives the top-quartile spend cutoff from the batch. The
// customers must already carry churn probabilities: risk scoring runs
// before classification, never inside it.
func NewClassifier(customers []models.Customer, now time.Time) *Classifier {
	return &Classifier{
		spendCutoff: quartileCutoff(customers),
		now:         now,
	}
}

// Classify evaluates the segment rules in priority order; the first match
// wins. Churn risk outranks value: a top-quartile spender with churn
// probability above the threshold is still At-Risk.
func (c *Classifier) Classify(customer models.Customer) string {
	if risk.AtRisk(customer.ChurnProbability) {
		return AtRisk
	}
	if customer.TotalSpent >= c.spendCutoff && customer.EngagementScore >= highValueEngagementMin {
		return HighValue
	}
	age := c.now.Sub(customer.CreatedAt)
	if customer.PurchaseCount <= newCustomerMaxPurchases && age < newCustomerAgeDays*24*time.Hour {
		return NewLowEngagement
	}
	return Regular
}

func quartileCutoff(customers []models.Customer) float64 {
	if len(customers) == 0 {
		return math.Inf(1)
	}
	spends := make([]float64, 0, len(customers))
	for _, customer := range customers {
		spends = append(spends, customer.TotalSpent)
	}
	sort.Float64s(spends)
	idx := int(topQuartile * float64(len(spends)))
	if idx >= len(spends) {
		idx = len(spends) - 1
	}
	return spends[idx]
}
