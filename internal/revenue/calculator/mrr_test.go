package calculator

import (
	"fmt"
	"testing"

	"github.com/smallbiznis/revlens/internal/revenue/domain"
)

func TestCalculateMRRAnnualPlan(t *testing.T) {
	plans := domain.IndexPlans([]domain.Plan{renewal("p1", 120, 365)})
	mrr, issues := CalculateMRR([]domain.Membership{membership("m1", "u1", domain.MembershipStatusActive, "p1")}, plans)

	approxEqual(t, "total", 10, mrr.Total)
	approxEqual(t, "annual", 10, mrr.Breakdown.Annual)
	if issues != (MRRIssues{}) {
		t.Fatalf("expected no issues, got %+v", issues)
	}
}

func TestCalculateMRRFiltersAndBuckets(t *testing.T) {
	plans := domain.IndexPlans([]domain.Plan{
		renewal("monthly", 50, 30),
		renewal("quarterly", 90, 90),
		renewal("annual", 240, 365),
		renewal("biweekly", 14, 14),
		renewal("broken", 10, 0),
		{ID: "lifetime", RenewalPrice: 300, BillingPeriod: 30, Type: domain.PlanTypeOneTime},
	})
	memberships := []domain.Membership{
		membership("m1", "u1", domain.MembershipStatusActive, "monthly"),
		membership("m2", "u2", domain.MembershipStatusCompleted, "quarterly"),
		membership("m3", "u3", domain.MembershipStatusActive, "annual"),
		membership("m4", "u4", domain.MembershipStatusActive, "biweekly"),
		membership("m5", "u5", domain.MembershipStatusTrialing, "monthly"),
		membership("m6", "u6", domain.MembershipStatusCanceled, "monthly"),
		membership("m7", "u7", domain.MembershipStatusActive, "lifetime"),
		membership("m8", "u8", domain.MembershipStatusActive, "missing"),
		membership("m9", "u9", domain.MembershipStatusActive, "broken"),
	}

	mrr, issues := CalculateMRR(memberships, plans)
	approxEqual(t, "monthly", 50, mrr.Breakdown.Monthly)
	approxEqual(t, "quarterly", 30, mrr.Breakdown.Quarterly)
	approxEqual(t, "annual", 20, mrr.Breakdown.Annual)
	approxEqual(t, "other", 30, mrr.Breakdown.Other)
	approxEqual(t, "total", 130, mrr.Total)
	if issues.MissingPlans != 1 || issues.MalformedPlans != 1 {
		t.Fatalf("unexpected issues %+v", issues)
	}
}

func TestCalculateMRRBreakdownSumsToTotal(t *testing.T) {
	periods := []int{30, 90, 365, 7, 60, 180}
	var plans []domain.Plan
	var memberships []domain.Membership
	for i := 0; i < 60; i++ {
		planID := fmt.Sprintf("p%d", i)
		plans = append(plans, renewal(planID, float64(i*13%97), periods[i%len(periods)]))
		status := domain.MembershipStatusActive
		if i%4 == 0 {
			status = domain.MembershipStatusCanceled
		}
		memberships = append(memberships, membership(fmt.Sprintf("m%d", i), fmt.Sprintf("u%d", i%9), status, planID))
	}

	mrr, _ := CalculateMRR(memberships, domain.IndexPlans(plans))
	b := mrr.Breakdown
	approxEqual(t, "breakdown", mrr.Total, b.Monthly+b.Annual+b.Quarterly+b.Other)
	if mrr.Total < 0 {
		t.Fatalf("expected non-negative total, got %v", mrr.Total)
	}
}

func TestCalculateMRREmpty(t *testing.T) {
	mrr, issues := CalculateMRR(nil, nil)
	if mrr != (domain.MRR{}) || issues != (MRRIssues{}) {
		t.Fatalf("expected zero result, got %+v %+v", mrr, issues)
	}
}

func TestARRAndARPU(t *testing.T) {
	approxEqual(t, "arr", 1200, CalculateARR(100))
	approxEqual(t, "arpu", 25, CalculateARPU(100, 4))
	for _, mrr := range []float64{0, 1, 999.5} {
		approxEqual(t, "arpu_zero_guard", 0, CalculateARPU(mrr, 0))
	}
}
