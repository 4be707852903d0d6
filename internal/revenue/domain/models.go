package domain

import (
	"strings"
	"time"
)

type MembershipStatus string

const (
	MembershipStatusTrialing  MembershipStatus = "trialing"
	MembershipStatusActive    MembershipStatus = "active"
	MembershipStatusPastDue   MembershipStatus = "past_due"
	MembershipStatusCanceled  MembershipStatus = "canceled"
	MembershipStatusCompleted MembershipStatus = "completed"
	MembershipStatusExpired   MembershipStatus = "expired"
)

// ParseMembershipStatus accepts the upstream spelling variants.
func ParseMembershipStatus(raw string) (MembershipStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trialing":
		return MembershipStatusTrialing, true
	case "active":
		return MembershipStatusActive, true
	case "past_due":
		return MembershipStatusPastDue, true
	case "canceled", "cancelled":
		return MembershipStatusCanceled, true
	case "completed":
		return MembershipStatusCompleted, true
	case "expired":
		return MembershipStatusExpired, true
	default:
		return "", false
	}
}

// Paying reports whether the status represents a currently billed account.
func (s MembershipStatus) Paying() bool {
	return s == MembershipStatusActive || s == MembershipStatusCompleted
}

// Live reports whether the status keeps the membership in the active book, trials included.
func (s MembershipStatus) Live() bool {
	return s.Paying() || s == MembershipStatusTrialing
}

// Lapsed reports whether the membership ended.
func (s MembershipStatus) Lapsed() bool {
	return s == MembershipStatusCanceled || s == MembershipStatusExpired
}

type PlanType string

const (
	PlanTypeRenewal PlanType = "renewal"
	PlanTypeOneTime PlanType = "one_time"
)

// Standard billing periods in days.
const (
	BillingPeriodMonthly   = 30
	BillingPeriodQuarterly = 90
	BillingPeriodAnnual    = 365
)

type PaymentStatus string

const (
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
	PaymentStatusPending PaymentStatus = "pending"
)

type PaymentSubstatus string

const (
	PaymentSubstatusSucceeded PaymentSubstatus = "succeeded"
	PaymentSubstatusRefunded  PaymentSubstatus = "refunded"
	PaymentSubstatusFailed    PaymentSubstatus = "failed"
)

const (
	BillingReasonCreation = "Subscription creation"
	BillingReasonRenewal  = "Subscription renewal"
)

// Member identifies the customer owning a membership.
type Member struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Membership is one subscription instance for one customer.
type Membership struct {
	ID         string           `json:"id"`
	Status     MembershipStatus `json:"status"`
	CreatedAt  *time.Time       `json:"created_at,omitempty"`
	CanceledAt *time.Time       `json:"canceled_at,omitempty"`
	ExpiresAt  *time.Time       `json:"expires_at,omitempty"`
	TotalSpend float64          `json:"total_spend"`
	PlanID     string           `json:"plan_id,omitempty"`
	Member     *Member          `json:"member,omitempty"`
}

// MemberID returns the owning customer id, or "" for anonymized memberships.
func (m Membership) MemberID() string {
	if m.Member == nil {
		return ""
	}
	return m.Member.ID
}

// CustomerKey identifies the customer for movement bookkeeping. Anonymized
// memberships stand for a customer of their own.
func (m Membership) CustomerKey() string {
	if id := m.MemberID(); id != "" {
		return id
	}
	return "membership:" + m.ID
}

// PayingAt reports whether the membership is paying, not canceled and not expired at the instant.
func (m Membership) PayingAt(at time.Time) bool {
	if !m.Status.Paying() || m.CanceledAt != nil {
		return false
	}
	return m.ExpiresAt == nil || m.ExpiresAt.After(at)
}

// Plan is a billing offer.
type Plan struct {
	ID            string   `json:"id"`
	Name          string   `json:"name,omitempty"`
	RenewalPrice  float64  `json:"renewal_price"`
	InitialPrice  float64  `json:"initial_price"`
	BillingPeriod int      `json:"billing_period"`
	Type          PlanType `json:"plan_type"`
}

// Recurring reports whether the plan contributes to MRR.
func (p Plan) Recurring() bool {
	return p.Type == PlanTypeRenewal && p.BillingPeriod > 0
}

// Payment is one transaction.
type Payment struct {
	ID              string           `json:"id"`
	Status          PaymentStatus    `json:"status"`
	Substatus       PaymentSubstatus `json:"substatus,omitempty"`
	Total           float64          `json:"total"`
	Subtotal        float64          `json:"subtotal"`
	RefundedAmount  float64          `json:"refunded_amount"`
	AmountAfterFees float64          `json:"amount_after_fees"`
	CreatedAt       *time.Time       `json:"created_at,omitempty"`
	PaidAt          *time.Time       `json:"paid_at,omitempty"`
	RefundedAt      *time.Time       `json:"refunded_at,omitempty"`
	BillingReason   string           `json:"billing_reason,omitempty"`
	PlanID          string           `json:"plan_id,omitempty"`
	MembershipID    string           `json:"membership_id,omitempty"`
	UserID          string           `json:"user_id,omitempty"`
}

// Settled reports whether the payment was collected.
func (p Payment) Settled() bool {
	return p.Status == PaymentStatusPaid && p.Substatus == PaymentSubstatusSucceeded
}

// Refunded reports whether any part of the payment went back to the customer.
func (p Payment) Refunded() bool {
	return p.RefundedAmount > 0 || p.Substatus == PaymentSubstatusRefunded
}

// Dataset is the complete raw input for one tenant at one instant.
type Dataset struct {
	Memberships []Membership `json:"memberships"`
	Plans       []Plan       `json:"plans"`
	Payments    []Payment    `json:"transactions"`
}

// Empty reports whether the dataset carries no records at all.
func (d *Dataset) Empty() bool {
	return d == nil || (len(d.Memberships) == 0 && len(d.Plans) == 0 && len(d.Payments) == 0)
}

// PlanIndex resolves plans by id.
type PlanIndex map[string]Plan

func IndexPlans(plans []Plan) PlanIndex {
	index := make(PlanIndex, len(plans))
	for _, plan := range plans {
		index[plan.ID] = plan
	}
	return index
}
