package calculator

import (
	"time"

	"github.com/smallbiznis/revlens/internal/revenue/domain"
)

// CalculateSubscriberMetrics counts memberships by status. Active includes completed.
func CalculateSubscriberMetrics(memberships []domain.Membership) domain.SubscriberMetrics {
	out := domain.SubscriberMetrics{Total: len(memberships)}
	for _, m := range memberships {
		switch m.Status {
		case domain.MembershipStatusActive, domain.MembershipStatusCompleted:
			out.Active++
		case domain.MembershipStatusCanceled:
			out.Cancelled++
		case domain.MembershipStatusPastDue:
			out.PastDue++
		case domain.MembershipStatusTrialing:
			out.Trialing++
		}
	}
	return out
}

// ActiveUniqueSubscribers counts distinct customers holding a paying membership at the instant.
func ActiveUniqueSubscribers(memberships []domain.Membership, at time.Time) int {
	seen := make(map[string]struct{}, len(memberships))
	for _, m := range memberships {
		if !m.PayingAt(at) {
			continue
		}
		seen[m.CustomerKey()] = struct{}{}
	}
	return len(seen)
}

// CalculateTrialMetrics converts trials using paid spend as the conversion signal.
func CalculateTrialMetrics(memberships []domain.Membership) domain.TrialMetrics {
	var out domain.TrialMetrics
	for _, m := range memberships {
		switch {
		case m.Status == domain.MembershipStatusTrialing:
			out.TotalTrials++
			if m.CanceledAt == nil {
				out.ActiveTrials++
			}
		case m.Status.Paying() && m.TotalSpend > 0:
			out.ConvertedTrials++
		}
	}
	out.ConversionRate = percent(float64(out.ConvertedTrials), float64(out.TotalTrials))
	return out
}
