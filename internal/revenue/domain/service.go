package domain

import (
	"context"
	"time"
)

// Baseline is the raw view stored with the previous snapshot.
type Baseline struct {
	CapturedAt time.Time
	Dataset    *Dataset
}

type Service interface {
	// ComputeMetrics returns the point-in-time figures for a dataset captured at the instant.
	ComputeMetrics(ctx context.Context, dataset Dataset, at time.Time) Metrics
	// ComputeMovements diffs the current dataset against the baseline. A nil
	// baseline yields zero movements.
	ComputeMovements(ctx context.Context, baseline *Baseline, current Dataset, at time.Time) Movements
	// Compute returns the full metrics document including movements.
	Compute(ctx context.Context, dataset Dataset, baseline *Baseline, at time.Time) Metrics
}
