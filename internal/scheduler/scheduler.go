package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/revlens/internal/clock"
	companydomain "github.com/smallbiznis/revlens/internal/company/domain"
	obsmetrics "github.com/smallbiznis/revlens/internal/observability/metrics"
	snapshotdomain "github.com/smallbiznis/revlens/internal/snapshot/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log       *zap.Logger
	Companies companydomain.Service
	Snapshots snapshotdomain.Service
	GenID     *snowflake.Node
	Clock     clock.Clock
	Config    Config `optional:"true"`
}

type Scheduler struct {
	log       *zap.Logger
	cfg       Config
	genID     *snowflake.Node
	clock     clock.Clock
	companies companydomain.Service
	snapshots snapshotdomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Companies == nil || p.Snapshots == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:       p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:       p.Config.withDefaults(),
		genID:     p.GenID,
		clock:     p.Clock,
		companies: p.Companies,
		snapshots: p.Snapshots,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// only the job's own deadline ends the run early; the next tick picks up the
	// remaining companies. Per-company capture deadlines stay ordinary failures.
	isTimeout := ctx.Err() != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled))
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{JobCapture, s.isJobEnabled(JobCapture), func(ctx context.Context) error {
			return s.runJob(ctx, JobCapture, s.cfg.BatchSize, s.cfg.RunInterval, s.CaptureJob)
		}},
		{JobRetention, s.isJobEnabled(JobRetention), func(ctx context.Context) error {
			return s.runJob(ctx, JobRetention, 0, s.cfg.RetentionTimeout, s.RetentionJob)
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	if err := s.RunOnce(ctx); err != nil {
		s.log.Warn("scheduler run failed", zap.Error(err))
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if runLag := s.clock.Now().Sub(nextRun); runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)
	}
}

// isJobEnabled treats an empty allow-list as "every job".
func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// CaptureJob snapshots every active company, BatchSize companies at a time.
// Failures are collected and do not stop the remaining companies.
func (s *Scheduler) CaptureJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobCapture, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	companies, err := s.companies.ListActive(ctx)
	if err != nil {
		return err
	}

	schedMetrics := obsmetrics.Scheduler()
	var errs error
	for start := 0; start < len(companies); start += s.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return errors.Join(errs, err)
		}
		end := min(start+s.cfg.BatchSize, len(companies))

		processed := 0
		for _, company := range companies[start:end] {
			err := s.captureCompany(ctx, company.ID.String())
			switch {
			case err == nil:
				processed++
			case errors.Is(err, snapshotdomain.ErrCaptureInProgress):
				run.IncDeferred()
				schedMetrics.IncBatchDeferred(JobCapture, obsmetrics.SchedulerDeferredReasonCaptureInProgress)
			case errors.Is(err, snapshotdomain.ErrCompanyInactive):
				run.IncDeferred()
				schedMetrics.IncBatchDeferred(JobCapture, obsmetrics.SchedulerDeferredReasonInactiveCompany)
			default:
				s.logSchedulerError(ctx, run, "scheduler.capture.failed", JobCapture, company.ID.String(), err)
				errs = errors.Join(errs, fmt.Errorf("company %s: %w", company.ID, err))
			}
		}
		run.AddProcessed(processed)
		schedMetrics.AddBatchProcessed(JobCapture, "companies", processed)
	}
	return errs
}

func (s *Scheduler) captureCompany(ctx context.Context, companyID string) error {
	ctx, cancel := context.WithTimeout(s.withLogContext(ctx, companyID), s.cfg.CaptureTimeout)
	defer cancel()

	_, err := s.snapshots.Capture(ctx, snapshotdomain.CaptureRequest{
		CompanyID: companyID,
		Trigger:   snapshotdomain.TriggerScheduled,
	})
	return err
}

// RetentionJob deletes snapshots that fell out of the retention window.
func (s *Scheduler) RetentionJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobRetention, 0)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	deleted, err := s.snapshots.Cleanup(ctx, s.clock.Now())
	if err != nil {
		return err
	}
	run.AddProcessed(int(deleted))
	obsmetrics.Scheduler().AddBatchProcessed(JobRetention, "snapshots", int(deleted))
	return nil
}
