package calculator

import (
	"testing"

	"github.com/smallbiznis/revlens/internal/revenue/domain"
)

func TestCalculateSubscriberMetrics(t *testing.T) {
	got := CalculateSubscriberMetrics([]domain.Membership{
		membership("m1", "u1", domain.MembershipStatusActive, ""),
		membership("m2", "u1", domain.MembershipStatusCompleted, ""),
		membership("m3", "u2", domain.MembershipStatusCanceled, ""),
		membership("m4", "u3", domain.MembershipStatusPastDue, ""),
		membership("m5", "u4", domain.MembershipStatusTrialing, ""),
		membership("m6", "u5", domain.MembershipStatusExpired, ""),
	})
	want := domain.SubscriberMetrics{Active: 2, Cancelled: 1, PastDue: 1, Trialing: 1, Total: 6}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestActiveUniqueSubscribersDeduplicates(t *testing.T) {
	distinct := []domain.Membership{
		membership("m1", "u1", domain.MembershipStatusActive, ""),
		membership("m2", "u2", domain.MembershipStatusActive, ""),
		membership("m3", "u3", domain.MembershipStatusCompleted, ""),
	}
	if got := ActiveUniqueSubscribers(distinct, refTime); got != 3 {
		t.Fatalf("expected 3 distinct subscribers, got %d", got)
	}

	shared := append(distinct, membership("m4", "u1", domain.MembershipStatusActive, ""))
	if got := ActiveUniqueSubscribers(shared, refTime); got != 3 {
		t.Fatalf("expected customer with two memberships to count once, got %d", got)
	}
	if got := ActiveUniqueSubscribers(shared, refTime); got >= len(shared) {
		t.Fatalf("expected dedup to be strictly below active memberships")
	}
}

func TestActiveUniqueSubscribersExcludesLapsed(t *testing.T) {
	canceled := membership("m2", "u2", domain.MembershipStatusActive, "")
	canceled.CanceledAt = daysAgo(1)
	expired := membership("m3", "u3", domain.MembershipStatusActive, "")
	expired.ExpiresAt = daysAgo(1)
	renewing := membership("m4", "u4", domain.MembershipStatusActive, "")
	renewing.ExpiresAt = daysAgo(-10)

	got := ActiveUniqueSubscribers([]domain.Membership{
		membership("m1", "u1", domain.MembershipStatusActive, ""),
		canceled,
		expired,
		renewing,
		membership("m5", "u5", domain.MembershipStatusTrialing, ""),
	}, refTime)
	if got != 2 {
		t.Fatalf("expected 2 subscribers, got %d", got)
	}
}

func TestCalculateTrialMetrics(t *testing.T) {
	canceledTrial := membership("m2", "u2", domain.MembershipStatusTrialing, "")
	canceledTrial.CanceledAt = daysAgo(2)
	paid := membership("m3", "u3", domain.MembershipStatusActive, "")
	paid.TotalSpend = 40
	free := membership("m4", "u4", domain.MembershipStatusActive, "")

	got := CalculateTrialMetrics([]domain.Membership{
		membership("m1", "u1", domain.MembershipStatusTrialing, ""),
		canceledTrial,
		paid,
		free,
	})
	if got.TotalTrials != 2 || got.ActiveTrials != 1 || got.ConvertedTrials != 1 {
		t.Fatalf("unexpected trial counts %+v", got)
	}
	approxEqual(t, "conversion_rate", 50, got.ConversionRate)

	if empty := CalculateTrialMetrics(nil); empty != (domain.TrialMetrics{}) {
		t.Fatalf("expected zero trial metrics, got %+v", empty)
	}
}
