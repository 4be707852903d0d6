package source

import (
	"errors"
	"fmt"
)

var (
	ErrSourceUnavailable = errors.New("source_unavailable")
	ErrUnauthorized      = errors.New("source_unauthorized")
	ErrMissingCredential = errors.New("source_missing_credential")
)

// StatusError carries the upstream status of a failed page request.
type StatusError struct {
	Resource   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: upstream status %d", e.Resource, e.StatusCode)
	}
	return fmt.Sprintf("%s: upstream status %d: %s", e.Resource, e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error {
	if e.StatusCode == 401 || e.StatusCode == 403 {
		return ErrUnauthorized
	}
	return ErrSourceUnavailable
}

// Upstream marks the failure as caused by the commerce API.
func (e *StatusError) Upstream() bool { return true }

type transportError struct {
	resource string
	err      error
}

func (e *transportError) Error() string {
	return fmt.Sprintf("%s: %v", e.resource, e.err)
}

func (e *transportError) Unwrap() []error { return []error{ErrSourceUnavailable, e.err} }

func (e *transportError) Upstream() bool { return true }
