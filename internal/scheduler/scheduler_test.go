package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/smallbiznis/revlens/internal/clock"
	companydomain "github.com/smallbiznis/revlens/internal/company/domain"
	obsmetrics "github.com/smallbiznis/revlens/internal/observability/metrics"
	snapshotdomain "github.com/smallbiznis/revlens/internal/snapshot/domain"
	"go.uber.org/zap"
)

type stubCompanies struct {
	companydomain.Service
	active []companydomain.Company
	err    error
}

func (s *stubCompanies) ListActive(context.Context) ([]companydomain.Company, error) {
	return s.active, s.err
}

type stubSnapshots struct {
	snapshotdomain.Service
	captureErrs map[string]error
	captured    []snapshotdomain.CaptureRequest
	deleted     int64
	cleanupAt   time.Time
}

func (s *stubSnapshots) Capture(ctx context.Context, req snapshotdomain.CaptureRequest) (snapshotdomain.CaptureResult, error) {
	s.captured = append(s.captured, req)
	if _, ok := ctx.Deadline(); !ok {
		return snapshotdomain.CaptureResult{}, errors.New("capture without deadline")
	}
	return snapshotdomain.CaptureResult{}, s.captureErrs[req.CompanyID]
}

func (s *stubSnapshots) Cleanup(_ context.Context, now time.Time) (int64, error) {
	s.cleanupAt = now
	return s.deleted, nil
}

var schedulerNow = time.Date(2025, 6, 1, 0, 5, 0, 0, time.UTC)

func newTestScheduler(t *testing.T, cfg Config, companies *stubCompanies, snapshots *stubSnapshots) *Scheduler {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	s, err := New(Params{
		Log:       zap.NewNop(),
		Companies: companies,
		Snapshots: snapshots,
		GenID:     node,
		Clock:     clock.NewFakeClock(schedulerNow),
		Config:    cfg,
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return s
}

func useTestRegistry(t *testing.T) *prometheus.Registry {
	t.Helper()
	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	t.Cleanup(restore)

	obsmetrics.ResetSchedulerMetricsForTest()
	obsmetrics.SchedulerWithConfig(obsmetrics.Config{
		ServiceName: "revlens",
		Environment: "test",
	})
	return registry
}

func TestRunJobTimeoutDoesNotReturnErrorAndIncrementsTimeout(t *testing.T) {
	registry := useTestRegistry(t)

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	s := &Scheduler{log: zap.NewNop(), genID: node, clock: clock.NewFakeClock(time.Time{})}
	err = s.runJob(context.Background(), "timeout_job", 0, 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	labels := map[string]string{
		"service": "revlens",
		"env":     "test",
		"job":     "timeout_job",
	}
	if got := getCounterValue(t, registry, "revlens_scheduler_job_timeouts_total", labels); got != 1 {
		t.Fatalf("expected timeout count 1, got %v", got)
	}

	errorLabels := map[string]string{
		"service": "revlens",
		"env":     "test",
		"job":     "timeout_job",
		"reason":  obsmetrics.SchedulerJobReasonDeadlineExceeded,
	}
	if got := getCounterValue(t, registry, "revlens_scheduler_job_errors_total", errorLabels); got != 1 {
		t.Fatalf("expected error count 1, got %v", got)
	}
}

func TestRunJobReportsCompanyDeadlinesAsFailures(t *testing.T) {
	useTestRegistry(t)

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	upstreamDown := errors.New("upstream unavailable")
	s := &Scheduler{log: zap.NewNop(), genID: node, clock: clock.NewFakeClock(time.Time{})}
	err = s.runJob(context.Background(), "capture_job", 0, time.Minute, func(ctx context.Context) error {
		return errors.Join(
			fmt.Errorf("company 1: %w", context.DeadlineExceeded),
			fmt.Errorf("company 2: %w", upstreamDown),
		)
	})
	if err == nil {
		t.Fatalf("expected per-company failures to be returned")
	}
	if !errors.Is(err, upstreamDown) {
		t.Fatalf("expected joined failure to keep company 2 error, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected joined failure to keep company 1 deadline, got %v", err)
	}
}

func TestCaptureJobCollectsFailuresAndDefersBusyCompanies(t *testing.T) {
	registry := useTestRegistry(t)

	upstreamDown := errors.New("upstream down")
	companies := &stubCompanies{active: []companydomain.Company{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}, {ID: 5}}}
	snapshots := &stubSnapshots{captureErrs: map[string]error{
		"2": snapshotdomain.ErrCaptureInProgress,
		"4": upstreamDown,
	}}
	s := newTestScheduler(t, Config{BatchSize: 2}, companies, snapshots)

	err := s.runJob(context.Background(), JobCapture, 2, time.Minute, s.CaptureJob)
	if !errors.Is(err, upstreamDown) {
		t.Fatalf("expected joined upstream error, got %v", err)
	}
	if len(snapshots.captured) != 5 {
		t.Fatalf("expected every company to be attempted, got %d", len(snapshots.captured))
	}
	for _, req := range snapshots.captured {
		if req.Trigger != snapshotdomain.TriggerScheduled {
			t.Fatalf("unexpected trigger %q", req.Trigger)
		}
	}

	processed := getCounterValue(t, registry, "revlens_scheduler_batch_processed_total", map[string]string{
		"service": "revlens", "env": "test", "job": JobCapture, "resource": "companies",
	})
	if processed != 3 {
		t.Fatalf("expected 3 processed companies, got %v", processed)
	}
	deferred := getCounterValue(t, registry, "revlens_scheduler_batch_deferred_total", map[string]string{
		"service": "revlens", "env": "test", "job": JobCapture, "reason": obsmetrics.SchedulerDeferredReasonCaptureInProgress,
	})
	if deferred != 1 {
		t.Fatalf("expected 1 deferred company, got %v", deferred)
	}
}

func TestCaptureJobListFailure(t *testing.T) {
	useTestRegistry(t)

	listErr := errors.New("db down")
	s := newTestScheduler(t, Config{}, &stubCompanies{err: listErr}, &stubSnapshots{})
	if err := s.CaptureJob(context.Background()); !errors.Is(err, listErr) {
		t.Fatalf("expected list error, got %v", err)
	}
}

func TestRetentionJobUsesClock(t *testing.T) {
	registry := useTestRegistry(t)

	snapshots := &stubSnapshots{deleted: 7}
	s := newTestScheduler(t, Config{}, &stubCompanies{}, snapshots)
	if err := s.RetentionJob(context.Background()); err != nil {
		t.Fatalf("retention job: %v", err)
	}
	if !snapshots.cleanupAt.Equal(schedulerNow) {
		t.Fatalf("expected cleanup at %v, got %v", schedulerNow, snapshots.cleanupAt)
	}
	got := getCounterValue(t, registry, "revlens_scheduler_batch_processed_total", map[string]string{
		"service": "revlens", "env": "test", "job": JobRetention, "resource": "snapshots",
	})
	if got != 7 {
		t.Fatalf("expected 7 deleted snapshots, got %v", got)
	}
}

func TestRunOnceHonorsEnabledJobs(t *testing.T) {
	useTestRegistry(t)

	companies := &stubCompanies{active: []companydomain.Company{{ID: 1}}}
	snapshots := &stubSnapshots{}
	s := newTestScheduler(t, Config{EnabledJobs: []string{"RETENTION"}}, companies, snapshots)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(snapshots.captured) != 0 {
		t.Fatalf("capture job should be disabled")
	}
	if snapshots.cleanupAt.IsZero() {
		t.Fatalf("retention job should have run")
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.RunInterval != 24*time.Hour || cfg.BatchSize != 25 || cfg.CaptureTimeout != 5*time.Minute {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func swapPrometheusRegistry(registry *prometheus.Registry) func() {
	oldRegisterer := prometheus.DefaultRegisterer
	oldGatherer := prometheus.DefaultGatherer
	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
	return func() {
		prometheus.DefaultRegisterer = oldRegisterer
		prometheus.DefaultGatherer = oldGatherer
		obsmetrics.ResetSchedulerMetricsForTest()
	}
}

func getCounterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if !labelsMatch(metric, labels) {
				continue
			}
			if metric.Counter == nil {
				t.Fatalf("metric %s is not a counter", name)
			}
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}
