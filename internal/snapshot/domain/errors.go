package domain

import "errors"

var (
	ErrNotFound           = errors.New("snapshot_not_found")
	ErrInvalidCompany     = errors.New("invalid_company")
	ErrCompanyInactive    = errors.New("company_inactive")
	ErrInvalidGranularity = errors.New("invalid_granularity")
	ErrInvalidLookback    = errors.New("invalid_lookback")
	ErrInvalidTrigger     = errors.New("invalid_trigger")
	ErrCaptureInProgress  = errors.New("capture_in_progress")
)
