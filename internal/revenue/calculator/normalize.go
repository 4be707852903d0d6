// Package calculator turns raw membership, plan and payment records into
// revenue figures. Every function is pure and tolerates empty input.
package calculator

import "github.com/smallbiznis/revlens/internal/revenue/domain"

// NormalizeToMonthly projects a price charged every billingPeriodDays onto a monthly amount.
// Non-positive periods yield 0.
func NormalizeToMonthly(price float64, billingPeriodDays int) float64 {
	switch {
	case billingPeriodDays <= 0:
		return 0
	case billingPeriodDays == domain.BillingPeriodMonthly:
		return price
	case billingPeriodDays == domain.BillingPeriodAnnual:
		return price / 12
	case billingPeriodDays == domain.BillingPeriodQuarterly:
		return price / 3
	default:
		return price / float64(billingPeriodDays) * 30
	}
}

// MembershipMRR resolves the monthly amount a membership's plan is worth, regardless of status.
func MembershipMRR(m domain.Membership, plans domain.PlanIndex) float64 {
	plan, ok := plans[m.PlanID]
	if !ok || !plan.Recurring() {
		return 0
	}
	return NormalizeToMonthly(plan.RenewalPrice, plan.BillingPeriod)
}

func percent(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole * 100
}
