package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/revlens/internal/cache"
	"github.com/smallbiznis/revlens/internal/clock"
	companydomain "github.com/smallbiznis/revlens/internal/company/domain"
	"github.com/smallbiznis/revlens/internal/config"
	"github.com/smallbiznis/revlens/internal/events"
	"github.com/smallbiznis/revlens/internal/lock"
	obscontext "github.com/smallbiznis/revlens/internal/observability/context"
	"github.com/smallbiznis/revlens/internal/observability/logger"
	"github.com/smallbiznis/revlens/internal/observability/metrics"
	revenuedomain "github.com/smallbiznis/revlens/internal/revenue/domain"
	snapshotdomain "github.com/smallbiznis/revlens/internal/snapshot/domain"
	"github.com/smallbiznis/revlens/internal/source"
	"github.com/smallbiznis/revlens/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	outcomeSuccess    = "success"
	outcomeError      = "error"
	outcomeSkipped    = "skipped"
	outcomeUpstream   = "upstream_error"
	releaseLockBudget = 5 * time.Second
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	GenID     *snowflake.Node
	Repo      snapshotdomain.Repository
	Companies companydomain.Service
	Source    source.Provider
	Revenue   revenuedomain.Service
	Locker    lock.CaptureLocker
	Cache     cache.HistoryCache
	Publisher events.Publisher
	Policy    *config.MetricsPolicyHolder
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	genID     *snowflake.Node
	repo      snapshotdomain.Repository
	companies companydomain.Service
	source    source.Provider
	revenue   revenuedomain.Service
	locker    lock.CaptureLocker
	cache     cache.HistoryCache
	publisher events.Publisher
	policy    *config.MetricsPolicyHolder
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

func NewService(p Params) snapshotdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("snapshot.service"),
		clock:     p.Clock,
		genID:     p.GenID,
		repo:      p.Repo,
		companies: p.Companies,
		source:    p.Source,
		revenue:   p.Revenue,
		locker:    p.Locker,
		cache:     p.Cache,
		publisher: p.Publisher,
		policy:    p.Policy,
		metrics:   p.Metrics,
		tracer:    otel.Tracer("revlens/snapshot"),
	}
}

func (s *Service) Capture(ctx context.Context, req snapshotdomain.CaptureRequest) (result snapshotdomain.CaptureResult, err error) {
	if !req.Trigger.Valid() {
		return snapshotdomain.CaptureResult{}, snapshotdomain.ErrInvalidTrigger
	}

	ctx, runID := correlation.EnsureCorrelationID(ctx)
	ctx = obscontext.WithCompanyID(ctx, req.CompanyID)
	ctx, span := s.tracer.Start(ctx, "snapshot.capture", trace.WithAttributes(
		attribute.String("capture.trigger", string(req.Trigger)),
	))
	log := logger.WithContext(ctx, s.log).With(
		zap.String("trigger", string(req.Trigger)),
		zap.String("correlation_id", runID),
	)

	started := s.clock.Now()
	defer func() {
		outcome := outcomeSuccess
		switch {
		case errors.Is(err, snapshotdomain.ErrCaptureInProgress), errors.Is(err, snapshotdomain.ErrCompanyInactive):
			outcome = outcomeSkipped
		case source.IsUpstream(err):
			outcome = outcomeUpstream
		case err != nil:
			outcome = outcomeError
		}
		if err != nil && outcome != outcomeSkipped {
			span.SetStatus(codes.Error, outcome)
		}
		span.SetAttributes(attribute.String("capture.outcome", outcome))
		span.End()
		s.metrics.RecordCapture(ctx, string(req.Trigger), outcome, s.clock.Now().Sub(started))
	}()

	company, err := s.loadCompany(ctx, req.CompanyID)
	if err != nil {
		return snapshotdomain.CaptureResult{}, err
	}
	if !company.Active {
		return snapshotdomain.CaptureResult{}, snapshotdomain.ErrCompanyInactive
	}

	release, err := s.acquire(ctx, company.ID.String())
	if err != nil {
		return snapshotdomain.CaptureResult{}, err
	}
	defer s.release(ctx, log, release)

	fetched, err := s.source.FetchDataset(ctx, source.Credentials{
		CompanyID: company.SourceCompanyID,
		APIKey:    company.SourceAPIKey,
	})
	if err != nil {
		log.Warn("source fetch failed", zap.Error(err))
		return snapshotdomain.CaptureResult{}, fmt.Errorf("fetch dataset: %w", err)
	}

	at := s.clock.Now().UTC()
	view, err := s.store(ctx, company.ID, fetched.Dataset, at)
	if err != nil {
		return snapshotdomain.CaptureResult{}, err
	}

	s.afterWrite(ctx, log, events.TypeSnapshotCaptured, view.CompanyID, view.Date, runID)

	log.Info("snapshot captured",
		zap.String("snapshot_date", view.Date),
		zap.Int("memberships", len(fetched.Dataset.Memberships)),
		zap.Int("plans", len(fetched.Dataset.Plans)),
		zap.Int("payments", len(fetched.Dataset.Payments)),
		zap.Int("rejected", fetched.Rejected),
	)

	return snapshotdomain.CaptureResult{Snapshot: view, Rejected: fetched.Rejected}, nil
}

// store computes the metrics document against the newest earlier snapshot and upserts it.
func (s *Service) store(ctx context.Context, companyID snowflake.ID, dataset revenuedomain.Dataset, at time.Time) (snapshotdomain.View, error) {
	date := snapshotdomain.FormatDate(at)

	previous, err := s.repo.FindPreviousBefore(ctx, s.db, companyID, date)
	if err != nil {
		return snapshotdomain.View{}, fmt.Errorf("load previous snapshot: %w", err)
	}
	baseline := s.baseline(ctx, previous)

	computed := s.revenue.Compute(ctx, dataset, baseline, at)

	doc, err := snapshotdomain.EncodeMetrics(computed)
	if err != nil {
		return snapshotdomain.View{}, err
	}
	raw, err := snapshotdomain.EncodeRaw(dataset)
	if err != nil {
		return snapshotdomain.View{}, err
	}

	snapshot := &snapshotdomain.Snapshot{
		ID:           s.genID.Generate(),
		CompanyID:    companyID,
		SnapshotDate: date,
		Metrics:      doc,
		RawData:      raw,
		CapturedAt:   at,
	}
	if err := s.repo.Upsert(ctx, s.db, snapshot); err != nil {
		return snapshotdomain.View{}, fmt.Errorf("upsert snapshot: %w", err)
	}

	return snapshotdomain.View{
		CompanyID:  companyID.String(),
		Date:       date,
		CapturedAt: at,
		Metrics:    computed,
	}, nil
}

func (s *Service) baseline(ctx context.Context, previous *snapshotdomain.Snapshot) *revenuedomain.Baseline {
	if previous == nil {
		return nil
	}
	baseline, err := previous.Baseline()
	if err != nil {
		logger.WithContext(ctx, s.log).Warn("previous snapshot raw data unreadable, movements default to zero",
			zap.String("snapshot_date", previous.SnapshotDate),
			zap.Error(err),
		)
		return nil
	}
	return baseline
}

func (s *Service) afterWrite(ctx context.Context, log *zap.Logger, eventType, companyID, date, runID string) {
	if err := s.cache.Invalidate(ctx, companyID); err != nil {
		log.Warn("history cache invalidation failed", zap.Error(err))
	}
	err := s.publisher.Publish(ctx, events.Event{
		Type:          eventType,
		CompanyID:     companyID,
		Date:          date,
		CorrelationID: runID,
		OccurredAt:    s.clock.Now().UTC(),
	})
	if err != nil {
		log.Warn("snapshot event publish failed", zap.String("event_type", eventType), zap.Error(err))
	}
}

func (s *Service) GetLatest(ctx context.Context, companyID string) (snapshotdomain.View, error) {
	company, err := s.loadCompany(ctx, companyID)
	if err != nil {
		return snapshotdomain.View{}, err
	}

	snapshot, err := s.repo.FindLatest(ctx, s.db, company.ID)
	if err != nil {
		return snapshotdomain.View{}, err
	}
	if snapshot == nil {
		return snapshotdomain.View{}, snapshotdomain.ErrNotFound
	}

	computed, err := snapshot.DecodeMetrics()
	if err != nil {
		return snapshotdomain.View{}, err
	}
	return snapshotdomain.View{
		CompanyID:  company.ID.String(),
		Date:       snapshot.SnapshotDate,
		CapturedAt: snapshot.CapturedAt,
		Metrics:    computed,
	}, nil
}

func (s *Service) Cleanup(ctx context.Context, now time.Time) (int64, error) {
	days := s.policy.Get().Retention.Days
	if days <= 0 {
		return 0, nil
	}
	cutoff := snapshotdomain.FormatDate(now.UTC().AddDate(0, 0, -days))

	deleted, err := s.repo.DeleteBefore(ctx, s.db, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete snapshots before %s: %w", cutoff, err)
	}
	if deleted == 0 {
		return 0, nil
	}

	companies, err := s.companies.List(ctx)
	if err != nil {
		return deleted, err
	}
	for _, company := range companies {
		if err := s.cache.Invalidate(ctx, company.ID); err != nil {
			s.log.Warn("history cache invalidation failed", zap.String("company_id", company.ID), zap.Error(err))
		}
	}

	s.log.Info("expired snapshots deleted",
		zap.String("cutoff", cutoff),
		zap.Int("retention_days", days),
		zap.Int64("deleted", deleted),
	)
	return deleted, nil
}

func (s *Service) Recompute(ctx context.Context, companyID string, onStep func(snapshotdomain.RecomputeStep)) (int, error) {
	company, err := s.loadCompany(ctx, companyID)
	if err != nil {
		return 0, err
	}

	release, err := s.acquire(ctx, company.ID.String())
	if err != nil {
		return 0, err
	}
	ctx, runID := correlation.EnsureCorrelationID(ctx)
	log := logger.WithCompany(s.log, company.ID.String()).With(zap.String("correlation_id", runID))
	defer s.release(ctx, log, release)

	dates, err := s.repo.ListDates(ctx, s.db, company.ID)
	if err != nil {
		return 0, err
	}

	var (
		baseline   *revenuedomain.Baseline
		recomputed int
	)
	for i, date := range dates {
		if err := ctx.Err(); err != nil {
			return recomputed, err
		}

		snapshot, err := s.repo.FindByDate(ctx, s.db, company.ID, date)
		if err != nil {
			return recomputed, err
		}
		if snapshot != nil {
			next, ok, err := s.replay(ctx, log, snapshot, baseline)
			if err != nil {
				return recomputed, err
			}
			if ok {
				recomputed++
				baseline = next
			}
		}

		if onStep != nil {
			onStep(snapshotdomain.RecomputeStep{Date: date, Done: i + 1, Total: len(dates)})
		}
	}

	if recomputed > 0 {
		s.afterWrite(ctx, log, events.TypeSnapshotRecomputed, company.ID.String(), dates[len(dates)-1], runID)
	}
	log.Info("snapshots recomputed", zap.Int("recomputed", recomputed), zap.Int("stored", len(dates)))
	return recomputed, nil
}

// replay rewrites one stored snapshot from its raw data and returns it as the next baseline.
func (s *Service) replay(ctx context.Context, log *zap.Logger, snapshot *snapshotdomain.Snapshot, baseline *revenuedomain.Baseline) (*revenuedomain.Baseline, bool, error) {
	dataset, err := snapshot.DecodeRaw()
	if err != nil || dataset == nil {
		log.Warn("snapshot has no usable raw data, skipped",
			zap.String("snapshot_date", snapshot.SnapshotDate),
			zap.Error(err),
		)
		return nil, false, nil
	}

	at := snapshot.CapturedAt.UTC()
	if at.IsZero() {
		day, err := snapshotdomain.ParseDate(snapshot.SnapshotDate)
		if err != nil {
			return nil, false, err
		}
		at = day
	}

	computed := s.revenue.Compute(ctx, *dataset, baseline, at)
	doc, err := snapshotdomain.EncodeMetrics(computed)
	if err != nil {
		return nil, false, err
	}
	snapshot.Metrics = doc
	if err := s.repo.Upsert(ctx, s.db, snapshot); err != nil {
		return nil, false, fmt.Errorf("upsert snapshot %s: %w", snapshot.SnapshotDate, err)
	}
	return &revenuedomain.Baseline{CapturedAt: at, Dataset: dataset}, true, nil
}

func (s *Service) loadCompany(ctx context.Context, companyID string) (*companydomain.Company, error) {
	if strings.TrimSpace(companyID) == "" {
		return nil, snapshotdomain.ErrInvalidCompany
	}
	company, err := s.companies.Load(ctx, companyID)
	if errors.Is(err, companydomain.ErrInvalidCompany) {
		return nil, snapshotdomain.ErrInvalidCompany
	}
	return company, err
}

func (s *Service) acquire(ctx context.Context, companyID string) (lock.Handle, error) {
	release, err := s.locker.Acquire(ctx, companyID)
	if errors.Is(err, lock.ErrNotAcquired) {
		return nil, snapshotdomain.ErrCaptureInProgress
	}
	return release, err
}

func (s *Service) release(ctx context.Context, log *zap.Logger, release lock.Handle) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseLockBudget)
	defer cancel()
	if err := release(releaseCtx); err != nil {
		log.Warn("capture lock release failed", zap.Error(err))
	}
}
