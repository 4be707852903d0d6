package domain

import (
	"context"
	"time"
)

type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerWebhook   Trigger = "webhook"
	TriggerManual    Trigger = "manual"
)

func (t Trigger) Valid() bool {
	switch t {
	case TriggerScheduled, TriggerWebhook, TriggerManual:
		return true
	default:
		return false
	}
}

type CaptureRequest struct {
	CompanyID string
	Trigger   Trigger
}

type CaptureResult struct {
	Snapshot View `json:"snapshot"`
	Rejected int  `json:"rejected_records"`
}

// RecomputeStep reports progress of a recompute run.
type RecomputeStep struct {
	Date  string
	Done  int
	Total int
}

type Service interface {
	Capture(ctx context.Context, req CaptureRequest) (CaptureResult, error)
	GetLatest(ctx context.Context, companyID string) (View, error)
	GetHistory(ctx context.Context, req HistoryRequest) ([]Row, error)
	// Cleanup deletes snapshots older than the retention window and returns the count.
	Cleanup(ctx context.Context, now time.Time) (int64, error)
	// Recompute replays stored raw datasets in date order and rewrites their metrics.
	Recompute(ctx context.Context, companyID string, onStep func(RecomputeStep)) (int, error)
}
