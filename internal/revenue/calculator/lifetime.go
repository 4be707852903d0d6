package calculator

import (
	"sort"

	"github.com/smallbiznis/revlens/internal/revenue/domain"
)

// CalculateCustomerLifetimeValue groups spend per customer and reports the
// mean and lower median over customers that spent anything. Anonymized
// memberships are ignored.
func CalculateCustomerLifetimeValue(memberships []domain.Membership, mode domain.CLVMode) domain.CustomerLifetimeValue {
	spend := make(map[string]float64)
	for _, m := range memberships {
		id := m.MemberID()
		if id == "" {
			continue
		}
		switch mode {
		case domain.CLVModeCustomerMax:
			spend[id] = max(spend[id], m.TotalSpend)
		default:
			spend[id] += m.TotalSpend
		}
	}

	totals := make([]float64, 0, len(spend))
	var revenue float64
	for _, total := range spend {
		if total <= 0 {
			continue
		}
		totals = append(totals, total)
		revenue += total
	}
	if len(totals) == 0 {
		return domain.CustomerLifetimeValue{}
	}

	sort.Float64s(totals)
	return domain.CustomerLifetimeValue{
		Average:              revenue / float64(len(totals)),
		Median:               totals[len(totals)/2],
		TotalCustomers:       len(totals),
		TotalLifetimeRevenue: revenue,
	}
}
