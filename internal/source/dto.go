package source

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	revenuedomain "github.com/smallbiznis/revlens/internal/revenue/domain"
)

type pagination struct {
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
}

type page[T any] struct {
	Data       []T        `json:"data"`
	Pagination pagination `json:"pagination"`
}

type memberDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// ref is a nested {"id": ...} reference to another resource.
type ref struct {
	ID string `json:"id"`
}

func (r *ref) id() string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(r.ID)
}

type membershipDTO struct {
	ID     string     `json:"id" validate:"required"`
	Status string     `json:"status" validate:"required"`
	Plan   *ref       `json:"plan"`
	Member *memberDTO `json:"member"`

	CreatedAt  *int64   `json:"createdAt"`
	CanceledAt *int64   `json:"canceledAt"`
	ExpiresAt  *int64   `json:"expiresAt"`
	TotalSpend *float64 `json:"totalSpend" validate:"omitempty,gte=0"`

	CreatedAtSnake  *int64   `json:"created_at"`
	CanceledAtSnake *int64   `json:"canceled_at"`
	ExpiresAtSnake  *int64   `json:"expires_at"`
	TotalSpendSnake *float64 `json:"total_spend" validate:"omitempty,gte=0"`
	PlanID          string   `json:"plan_id"`
}

type planDTO struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"internal_notes"`

	RawRenewalPrice *float64 `json:"rawRenewalPrice" validate:"omitempty,gte=0"`
	RawInitialPrice *float64 `json:"rawInitialPrice" validate:"omitempty,gte=0"`
	BillingPeriod   *int     `json:"billingPeriod"`
	PlanType        string   `json:"planType"`

	RawRenewalPriceSnake *float64 `json:"raw_renewal_price" validate:"omitempty,gte=0"`
	RawInitialPriceSnake *float64 `json:"raw_initial_price" validate:"omitempty,gte=0"`
	RenewalPrice         *float64 `json:"renewal_price" validate:"omitempty,gte=0"`
	InitialPrice         *float64 `json:"initial_price" validate:"omitempty,gte=0"`
	BillingPeriodSnake   *int     `json:"billing_period"`
	PlanTypeSnake        string   `json:"plan_type"`
}

type paymentDTO struct {
	ID              string   `json:"id" validate:"required"`
	Status          string   `json:"status" validate:"required"`
	Substatus       string   `json:"substatus"`
	Total           *float64 `json:"total"`
	FinalAmount     *float64 `json:"final_amount"`
	Subtotal        *float64 `json:"subtotal"`
	RefundedAmount  *float64 `json:"refunded_amount" validate:"omitempty,gte=0"`
	AmountAfterFees *float64 `json:"amount_after_fees"`
	CreatedAt       *int64   `json:"created_at"`
	PaidAt          *int64   `json:"paid_at"`
	RefundedAt      *int64   `json:"refunded_at"`
	BillingReason   string   `json:"billing_reason"`
	Plan            *ref     `json:"plan"`
	Membership      *ref     `json:"membership"`
	User            *ref     `json:"user"`
	PlanID          string   `json:"plan_id"`
	MembershipID    string   `json:"membership_id"`
	UserID          string   `json:"user_id"`
}

func (d membershipDTO) toDomain(v *validator.Validate) (revenuedomain.Membership, bool) {
	if v.Struct(d) != nil {
		return revenuedomain.Membership{}, false
	}
	status, ok := revenuedomain.ParseMembershipStatus(d.Status)
	if !ok {
		return revenuedomain.Membership{}, false
	}

	membership := revenuedomain.Membership{
		ID:         strings.TrimSpace(d.ID),
		Status:     status,
		CreatedAt:  unixTime(firstInt64(d.CreatedAt, d.CreatedAtSnake)),
		CanceledAt: unixTime(firstInt64(d.CanceledAt, d.CanceledAtSnake)),
		ExpiresAt:  unixTime(firstInt64(d.ExpiresAt, d.ExpiresAtSnake)),
		TotalSpend: deref(firstFloat(d.TotalSpend, d.TotalSpendSnake)),
		PlanID:     firstString(d.Plan.id(), d.PlanID),
	}
	if d.Member != nil && strings.TrimSpace(d.Member.ID) != "" {
		name := strings.TrimSpace(d.Member.Name)
		if name == "" {
			name = strings.TrimSpace(d.Member.Username)
		}
		membership.Member = &revenuedomain.Member{
			ID:    strings.TrimSpace(d.Member.ID),
			Name:  name,
			Email: strings.TrimSpace(d.Member.Email),
		}
	}
	return membership, true
}

// toDomain rejects a renewal plan without a renewal price, it would silently
// contribute nothing to MRR.
func (d planDTO) toDomain(v *validator.Validate) (revenuedomain.Plan, bool) {
	if v.Struct(d) != nil {
		return revenuedomain.Plan{}, false
	}
	planType := revenuedomain.PlanTypeOneTime
	if strings.EqualFold(firstString(d.PlanType, d.PlanTypeSnake), string(revenuedomain.PlanTypeRenewal)) {
		planType = revenuedomain.PlanTypeRenewal
	}
	renewal := firstFloat(d.RawRenewalPrice, d.RawRenewalPriceSnake, d.RenewalPrice)
	if planType == revenuedomain.PlanTypeRenewal && renewal == nil {
		return revenuedomain.Plan{}, false
	}
	period := 0
	if p := firstInt(d.BillingPeriod, d.BillingPeriodSnake); p != nil {
		period = *p
	}
	return revenuedomain.Plan{
		ID:            strings.TrimSpace(d.ID),
		Name:          strings.TrimSpace(d.Name),
		RenewalPrice:  deref(renewal),
		InitialPrice:  deref(firstFloat(d.RawInitialPrice, d.RawInitialPriceSnake, d.InitialPrice)),
		BillingPeriod: period,
		Type:          planType,
	}, true
}

func (d paymentDTO) toDomain(v *validator.Validate) (revenuedomain.Payment, bool) {
	if v.Struct(d) != nil {
		return revenuedomain.Payment{}, false
	}
	total := firstFloat(d.Total, d.FinalAmount)
	if total == nil {
		return revenuedomain.Payment{}, false
	}
	return revenuedomain.Payment{
		ID:              strings.TrimSpace(d.ID),
		Status:          revenuedomain.PaymentStatus(strings.ToLower(strings.TrimSpace(d.Status))),
		Substatus:       revenuedomain.PaymentSubstatus(strings.ToLower(strings.TrimSpace(d.Substatus))),
		Total:           *total,
		Subtotal:        deref(d.Subtotal),
		RefundedAmount:  deref(d.RefundedAmount),
		AmountAfterFees: deref(d.AmountAfterFees),
		CreatedAt:       unixTime(d.CreatedAt),
		PaidAt:          unixTime(d.PaidAt),
		RefundedAt:      unixTime(d.RefundedAt),
		BillingReason:   strings.TrimSpace(d.BillingReason),
		PlanID:          firstString(d.Plan.id(), d.PlanID),
		MembershipID:    firstString(d.Membership.id(), d.MembershipID),
		UserID:          firstString(d.User.id(), d.UserID),
	}, true
}

func firstString(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func firstFloat(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstInt(values ...*int) *int {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstInt64(values ...*int64) *int64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func unixTime(v *int64) *time.Time {
	if v == nil || *v <= 0 {
		return nil
	}
	t := time.Unix(*v, 0).UTC()
	return &t
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
