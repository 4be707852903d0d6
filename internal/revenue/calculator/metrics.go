package calculator

import (
	"time"

	"github.com/smallbiznis/revlens/internal/revenue/domain"
)

// CalculateMetrics fuses every point-in-time calculator over one dataset.
// Movements are left zero.
func CalculateMetrics(dataset domain.Dataset, at time.Time, mode domain.CLVMode) domain.Metrics {
	plans := domain.IndexPlans(dataset.Plans)
	mrr, issues := CalculateMRR(dataset.Memberships, plans)
	unique := ActiveUniqueSubscribers(dataset.Memberships, at)

	anonymous := 0
	for _, m := range dataset.Memberships {
		if m.MemberID() == "" {
			anonymous++
		}
	}

	return domain.Metrics{
		MRR:                     mrr,
		ARR:                     CalculateARR(mrr.Total),
		ARPU:                    CalculateARPU(mrr.Total, unique),
		Subscribers:             CalculateSubscriberMetrics(dataset.Memberships),
		ActiveUniqueSubscribers: unique,
		Trials:                  CalculateTrialMetrics(dataset.Memberships),
		CashFlow:                CalculateCashFlow(dataset.Payments),
		Payments:                CalculatePaymentMetrics(dataset.Payments),
		Refunds:                 CalculateRefundMetrics(dataset.Payments),
		AverageSalePrice:        CalculateAverageSalePrice(dataset.Payments),
		CLV:                     CalculateCustomerLifetimeValue(dataset.Memberships, mode),
		DataQuality: domain.DataQuality{
			MissingPlans:         issues.MissingPlans,
			MalformedPlans:       issues.MalformedPlans,
			AnonymousMemberships: anonymous,
		},
	}
}
