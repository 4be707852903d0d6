package calculator

import "github.com/smallbiznis/revlens/internal/revenue/domain"

// MRRIssues counts paying memberships that could not contribute to MRR.
type MRRIssues struct {
	MissingPlans   int
	MalformedPlans int
}

// CalculateMRR sums normalized renewal prices over paying memberships.
func CalculateMRR(memberships []domain.Membership, plans domain.PlanIndex) (domain.MRR, MRRIssues) {
	var (
		out    domain.MRR
		issues MRRIssues
	)
	for _, m := range memberships {
		if !m.Status.Paying() {
			continue
		}
		plan, ok := plans[m.PlanID]
		if !ok {
			issues.MissingPlans++
			continue
		}
		if plan.Type != domain.PlanTypeRenewal {
			continue
		}
		if plan.BillingPeriod <= 0 {
			issues.MalformedPlans++
			continue
		}

		amount := NormalizeToMonthly(plan.RenewalPrice, plan.BillingPeriod)
		out.Total += amount
		switch plan.BillingPeriod {
		case domain.BillingPeriodMonthly:
			out.Breakdown.Monthly += amount
		case domain.BillingPeriodAnnual:
			out.Breakdown.Annual += amount
		case domain.BillingPeriodQuarterly:
			out.Breakdown.Quarterly += amount
		default:
			out.Breakdown.Other += amount
		}
	}
	return out, issues
}

func CalculateARR(mrr float64) float64 {
	return mrr * 12
}

func CalculateARPU(mrr float64, activeUniqueSubscribers int) float64 {
	if activeUniqueSubscribers <= 0 {
		return 0
	}
	return mrr / float64(activeUniqueSubscribers)
}
