package calculator

import (
	"testing"

	"github.com/smallbiznis/revlens/internal/revenue/domain"
)

func spend(id, memberID string, total float64) domain.Membership {
	m := membership(id, memberID, domain.MembershipStatusActive, "")
	m.TotalSpend = total
	return m
}

func TestCustomerLifetimeValueSingleCustomer(t *testing.T) {
	got := CalculateCustomerLifetimeValue([]domain.Membership{
		spend("m1", "u1", 0),
		spend("m2", "u1", 150),
	}, domain.CLVModeMembershipSum)
	if got.TotalCustomers != 1 {
		t.Fatalf("expected 1 customer, got %d", got.TotalCustomers)
	}
	approxEqual(t, "average", 150, got.Average)
	approxEqual(t, "median", 150, got.Median)
}

func TestCustomerLifetimeValueModes(t *testing.T) {
	memberships := []domain.Membership{
		spend("m1", "u1", 100),
		spend("m2", "u1", 100),
		spend("m3", "u2", 50),
		spend("m4", "u3", 0),
		spend("m5", "", 900),
	}

	summed := CalculateCustomerLifetimeValue(memberships, domain.CLVModeMembershipSum)
	if summed.TotalCustomers != 2 {
		t.Fatalf("expected 2 customers, got %d", summed.TotalCustomers)
	}
	approxEqual(t, "sum_revenue", 250, summed.TotalLifetimeRevenue)
	approxEqual(t, "sum_average", 125, summed.Average)
	approxEqual(t, "sum_median", 200, summed.Median)

	maxed := CalculateCustomerLifetimeValue(memberships, domain.CLVModeCustomerMax)
	approxEqual(t, "max_revenue", 150, maxed.TotalLifetimeRevenue)
	approxEqual(t, "max_average", 75, maxed.Average)
}

func TestCustomerLifetimeValueLowerMedian(t *testing.T) {
	got := CalculateCustomerLifetimeValue([]domain.Membership{
		spend("m1", "u1", 40),
		spend("m2", "u2", 10),
		spend("m3", "u3", 30),
		spend("m4", "u4", 20),
	}, domain.CLVModeMembershipSum)
	approxEqual(t, "median", 30, got.Median)
}

func TestCustomerLifetimeValueEmpty(t *testing.T) {
	if got := CalculateCustomerLifetimeValue(nil, domain.CLVModeMembershipSum); got != (domain.CustomerLifetimeValue{}) {
		t.Fatalf("expected zero clv, got %+v", got)
	}
}
