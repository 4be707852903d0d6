package events

import "errors"

var ErrInvalidEvent = errors.New("invalid_event")
