package calculator

import (
	"math"
	"testing"
	"time"

	"github.com/smallbiznis/revlens/internal/revenue/domain"
)

const epsilon = 1e-9

var refTime = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

func approxEqual(t *testing.T, label string, want, got float64) {
	t.Helper()
	if math.Abs(want-got) > epsilon {
		t.Fatalf("%s: expected %v, got %v", label, want, got)
	}
}

func daysAgo(days int) *time.Time {
	ts := refTime.AddDate(0, 0, -days)
	return &ts
}

func membership(id, memberID string, status domain.MembershipStatus, planID string) domain.Membership {
	m := domain.Membership{ID: id, Status: status, PlanID: planID, CreatedAt: daysAgo(400)}
	if memberID != "" {
		m.Member = &domain.Member{ID: memberID}
	}
	return m
}

func renewal(id string, price float64, period int) domain.Plan {
	return domain.Plan{ID: id, RenewalPrice: price, BillingPeriod: period, Type: domain.PlanTypeRenewal}
}
