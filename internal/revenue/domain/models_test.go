package domain

import (
	"testing"
	"time"
)

func TestParseMembershipStatus(t *testing.T) {
	cases := map[string]MembershipStatus{
		"active":    MembershipStatusActive,
		" Trialing": MembershipStatusTrialing,
		"cancelled": MembershipStatusCanceled,
		"canceled":  MembershipStatusCanceled,
		"past_due":  MembershipStatusPastDue,
	}
	for raw, want := range cases {
		got, ok := ParseMembershipStatus(raw)
		if !ok || got != want {
			t.Fatalf("parse %q: expected %q, got %q (ok=%v)", raw, want, got, ok)
		}
	}
	if _, ok := ParseMembershipStatus("paused"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
}

func TestMembershipPayingAt(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	cases := []struct {
		name string
		m    Membership
		want bool
	}{
		{name: "active", m: Membership{Status: MembershipStatusActive}, want: true},
		{name: "completed_future_expiry", m: Membership{Status: MembershipStatusCompleted, ExpiresAt: &future}, want: true},
		{name: "expired_timestamp", m: Membership{Status: MembershipStatusActive, ExpiresAt: &past}, want: false},
		{name: "canceled_timestamp", m: Membership{Status: MembershipStatusActive, CanceledAt: &past}, want: false},
		{name: "trialing", m: Membership{Status: MembershipStatusTrialing}, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.m.PayingAt(now); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestCustomerKeyFallsBackToMembership(t *testing.T) {
	anon := Membership{ID: "m1"}
	if got := anon.CustomerKey(); got != "membership:m1" {
		t.Fatalf("unexpected key %q", got)
	}
	owned := Membership{ID: "m2", Member: &Member{ID: "u1"}}
	if got := owned.CustomerKey(); got != "u1" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestMovementOptionsWindow(t *testing.T) {
	ref := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	opts := MovementOptions{Reference: ref}
	if got := opts.NewWindowStart(); !got.Equal(ref.AddDate(0, 0, -30)) {
		t.Fatalf("unexpected default window start %s", got)
	}
	opts.NewWindowDays = 7
	if got := opts.NewWindowStart(); !got.Equal(ref.AddDate(0, 0, -7)) {
		t.Fatalf("unexpected window start %s", got)
	}
}
