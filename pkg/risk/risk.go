package risk

import (
	"time"

	"crm-insight-engine/pkg/models"
)

// Weighted rule model. The weights are a default policy, not a contract;
// see the product thresholds review before tightening them.
const (
	churnBase             = 0.5
	churnEngagementWeight = 0.004
	churnTicketWeight     = 0.05
	churnTicketCap        = 10
	churnSpendWeight      = 0.0001
	churnRecencyPenalty   = 0.2
	recencyThresholdDays  = 90

	upsellEngagementWeight = 0.006
	upsellSpendWeight      = 0.0002
	upsellSpendCap         = 0.4
	upsellAtRiskPenalty    = 0.1

	atRiskThreshold     = 0.5
	highRiskThreshold   = 0.7
	mediumRiskThreshold = 0.4
)

// Score computes churn probability and upsell score for one customer.
// Both results are clamped to [0, 1]; now is the injected reference time
// used for the recency check. Pure function, no customer mutation.
func Score(customer models.Customer, now time.Time) (churnProbability float64, upsellScore float64) {
	churn := churnBase
	churn -= churnEngagementWeight * float64(customer.EngagementScore)
	tickets := customer.SupportTickets
	if tickets > churnTicketCap {
		tickets = churnTicketCap
	}
	churn += churnTicketWeight * float64(tickets)
	churn -= churnSpendWeight * customer.TotalSpent
	if now.Sub(customer.LastInteraction) > recencyThresholdDays*24*time.Hour {
		churn += churnRecencyPenalty
	}
	churn = clamp01(churn)

	upsell := upsellEngagementWeight * float64(customer.EngagementScore)
	spendBoost := upsellSpendWeight * customer.TotalSpent
	if spendBoost > upsellSpendCap {
		spendBoost = upsellSpendCap
	}
	upsell += spendBoost
	if churn > atRiskThreshold {
		upsell -= upsellAtRiskPenalty
	}
	upsell = clamp01(upsell)

	return churn, upsell
}

// AtRisk reports whether a churn probability crosses the retention
// escalation threshold used by segmentation and the churn-rate metric.
func AtRisk(churnProbability float64) bool {
	return churnProbability > atRiskThreshold
}

func Level(churnProbability float64) string {
	if churnProbability >= highRiskThreshold {
		return "High Risk"
	}
	if churnProbability >= mediumRiskThreshold {
		return "Medium Risk"
	}
	return "Low Risk"
}

func Action(churnProbability float64) string {
	if churnProbability >= highRiskThreshold {
		return "Immediate intervention required - schedule call with account manager"
	}
	if churnProbability >= mediumRiskThreshold {
		return "Send re-engagement campaign and follow up"
	}
	return "Monitor and maintain regular contact"
}

func clamp01(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
