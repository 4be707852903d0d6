package domain

import "time"

// CLVMode selects how per-customer lifetime spend is derived.
type CLVMode string

const (
	CLVModeMembershipSum CLVMode = "membership_sum"
	CLVModeCustomerMax   CLVMode = "customer_max"
)

// MovementOptions parameterizes the movement passes.
type MovementOptions struct {
	// Reference is the instant the new-business window ends at.
	Reference time.Time
	// PreviousAt is when the previous dataset was captured.
	PreviousAt    time.Time
	NewWindowDays int
}

const DefaultNewWindowDays = 30

func (o MovementOptions) newWindow() time.Duration {
	days := o.NewWindowDays
	if days <= 0 {
		days = DefaultNewWindowDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// NewWindowStart returns the earliest creation instant that still counts as new business.
func (o MovementOptions) NewWindowStart() time.Time {
	return o.Reference.Add(-o.newWindow())
}
