package service

import (
	"context"
	"fmt"

	"github.com/smallbiznis/revlens/internal/observability/logger"
	snapshotdomain "github.com/smallbiznis/revlens/internal/snapshot/domain"
	"github.com/smallbiznis/revlens/internal/snapshot/aggregate"
	"go.uber.org/zap"
)

func (s *Service) GetHistory(ctx context.Context, req snapshotdomain.HistoryRequest) ([]snapshotdomain.Row, error) {
	g, err := snapshotdomain.ParseGranularity(string(req.Granularity))
	if err != nil {
		return nil, err
	}
	lookback := req.Lookback
	if lookback == 0 {
		lookback = g.DefaultLookback()
	}
	if lookback < 0 || lookback > snapshotdomain.MaxLookback {
		return nil, snapshotdomain.ErrInvalidLookback
	}

	company, err := s.loadCompany(ctx, req.CompanyID)
	if err != nil {
		return nil, err
	}
	companyID := company.ID.String()
	log := logger.WithCompany(logger.WithContext(ctx, s.log), companyID)

	cached, hit, err := s.cache.Get(ctx, companyID, g, lookback)
	if err != nil {
		log.Warn("history cache read failed", zap.Error(err))
	}
	s.metrics.RecordHistoryCache(ctx, hit)
	if hit {
		return cached, nil
	}

	end := s.clock.Now().UTC()
	start := end.AddDate(0, 0, -(g.FetchDays(lookback) - 1))
	snapshots, err := s.repo.ListInRange(ctx, s.db, company.ID, snapshotdomain.FormatDate(start), snapshotdomain.FormatDate(end))
	if err != nil {
		return nil, err
	}

	points := make([]aggregate.Point, 0, len(snapshots))
	for _, snapshot := range snapshots {
		date, err := snapshotdomain.ParseDate(snapshot.SnapshotDate)
		if err != nil {
			return nil, fmt.Errorf("parse snapshot date %q: %w", snapshot.SnapshotDate, err)
		}
		values, err := aggregate.Flatten(snapshot.Metrics)
		if err != nil {
			log.Warn("snapshot metrics unreadable, excluded from history",
				zap.String("snapshot_date", snapshot.SnapshotDate),
				zap.Error(err),
			)
			continue
		}
		points = append(points, aggregate.Point{Date: date, CapturedAt: snapshot.CapturedAt, Values: values})
	}

	rows := aggregate.Aggregate(points, g, lookback)
	if err := s.cache.Set(ctx, companyID, g, lookback, rows); err != nil {
		log.Warn("history cache write failed", zap.Error(err))
	}
	return rows, nil
}
