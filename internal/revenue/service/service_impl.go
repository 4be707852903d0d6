package service

import (
	"context"
	"time"

	"github.com/smallbiznis/revlens/internal/clock"
	"github.com/smallbiznis/revlens/internal/config"
	"github.com/smallbiznis/revlens/internal/observability/logger"
	"github.com/smallbiznis/revlens/internal/observability/metrics"
	"github.com/smallbiznis/revlens/internal/revenue/calculator"
	revenuedomain "github.com/smallbiznis/revlens/internal/revenue/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Clock   clock.Clock
	Policy  *config.MetricsPolicyHolder
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	log     *zap.Logger
	clock   clock.Clock
	policy  *config.MetricsPolicyHolder
	metrics *metrics.Metrics
}

func NewService(p Params) revenuedomain.Service {
	return &Service{
		log:     p.Log.Named("revenue.service"),
		clock:   p.Clock,
		policy:  p.Policy,
		metrics: p.Metrics,
	}
}

func (s *Service) ComputeMetrics(ctx context.Context, dataset revenuedomain.Dataset, at time.Time) revenuedomain.Metrics {
	policy := s.policy.Get()
	out := calculator.CalculateMetrics(dataset, at, revenuedomain.CLVMode(policy.CLV.Mode))
	s.reportDataQuality(ctx, out.DataQuality)
	return out
}

func (s *Service) ComputeMovements(ctx context.Context, baseline *revenuedomain.Baseline, current revenuedomain.Dataset, at time.Time) revenuedomain.Movements {
	if baseline == nil || baseline.Dataset.Empty() {
		logger.WithContext(ctx, s.log).Debug("no baseline, movements default to zero")
		return revenuedomain.Movements{}
	}

	policy := s.policy.Get()
	reference := at
	if policy.Movements.NewReference == config.NewReferenceWallClock {
		reference = s.clock.Now()
	}

	return calculator.CalculateMovements(baseline.Dataset, current, revenuedomain.MovementOptions{
		Reference:     reference,
		PreviousAt:    baseline.CapturedAt,
		NewWindowDays: policy.Movements.NewWindowDays,
	})
}

func (s *Service) Compute(ctx context.Context, dataset revenuedomain.Dataset, baseline *revenuedomain.Baseline, at time.Time) revenuedomain.Metrics {
	out := s.ComputeMetrics(ctx, dataset, at)
	out.Movements = s.ComputeMovements(ctx, baseline, dataset, at)
	return out
}

func (s *Service) reportDataQuality(ctx context.Context, quality revenuedomain.DataQuality) {
	if quality.MissingPlans == 0 && quality.MalformedPlans == 0 {
		return
	}
	logger.WithContext(ctx, s.log).Warn("memberships excluded from mrr",
		zap.Int("missing_plans", quality.MissingPlans),
		zap.Int("malformed_plans", quality.MalformedPlans),
	)
	s.metrics.RecordDataIssue(ctx, "missing_plan", quality.MissingPlans)
	s.metrics.RecordDataIssue(ctx, "malformed_billing_period", quality.MalformedPlans)
}
