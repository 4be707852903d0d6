package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	snapshotdomain "github.com/smallbiznis/revlens/internal/snapshot/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() snapshotdomain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, snapshot *snapshotdomain.Snapshot) error {
	now := time.Now().UTC()
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = now
	}
	snapshot.UpdatedAt = now

	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "company_id"}, {Name: "snapshot_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"metrics", "raw_data", "captured_at", "updated_at"}),
	}).Create(snapshot).Error
}

func (r *repo) FindByDate(ctx context.Context, db *gorm.DB, companyID snowflake.ID, date string) (*snapshotdomain.Snapshot, error) {
	var snapshot snapshotdomain.Snapshot
	err := db.WithContext(ctx).Raw(
		`SELECT id, company_id, snapshot_date, metrics, raw_data, captured_at, created_at, updated_at
		 FROM metric_snapshots WHERE company_id = ? AND snapshot_date = ?`,
		companyID,
		date,
	).Scan(&snapshot).Error
	return found(&snapshot, err)
}

func (r *repo) FindLatest(ctx context.Context, db *gorm.DB, companyID snowflake.ID) (*snapshotdomain.Snapshot, error) {
	var snapshot snapshotdomain.Snapshot
	err := db.WithContext(ctx).Raw(
		`SELECT id, company_id, snapshot_date, metrics, raw_data, captured_at, created_at, updated_at
		 FROM metric_snapshots WHERE company_id = ?
		 ORDER BY snapshot_date DESC LIMIT 1`,
		companyID,
	).Scan(&snapshot).Error
	return found(&snapshot, err)
}

func (r *repo) FindPreviousBefore(ctx context.Context, db *gorm.DB, companyID snowflake.ID, date string) (*snapshotdomain.Snapshot, error) {
	var snapshot snapshotdomain.Snapshot
	err := db.WithContext(ctx).Raw(
		`SELECT id, company_id, snapshot_date, metrics, raw_data, captured_at, created_at, updated_at
		 FROM metric_snapshots WHERE company_id = ? AND snapshot_date < ?
		 ORDER BY snapshot_date DESC LIMIT 1`,
		companyID,
		date,
	).Scan(&snapshot).Error
	return found(&snapshot, err)
}

func (r *repo) ListInRange(ctx context.Context, db *gorm.DB, companyID snowflake.ID, start, end string) ([]snapshotdomain.Snapshot, error) {
	var snapshots []snapshotdomain.Snapshot
	err := db.WithContext(ctx).Raw(
		`SELECT id, company_id, snapshot_date, metrics, captured_at, created_at, updated_at
		 FROM metric_snapshots WHERE company_id = ? AND snapshot_date >= ? AND snapshot_date <= ?
		 ORDER BY snapshot_date ASC`,
		companyID,
		start,
		end,
	).Scan(&snapshots).Error
	if err != nil {
		return nil, err
	}
	return snapshots, nil
}

func (r *repo) ListDates(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]string, error) {
	var dates []string
	err := db.WithContext(ctx).Raw(
		`SELECT snapshot_date FROM metric_snapshots WHERE company_id = ? ORDER BY snapshot_date ASC`,
		companyID,
	).Scan(&dates).Error
	if err != nil {
		return nil, err
	}
	return dates, nil
}

func (r *repo) DeleteBefore(ctx context.Context, db *gorm.DB, date string) (int64, error) {
	result := db.WithContext(ctx).Exec(`DELETE FROM metric_snapshots WHERE snapshot_date < ?`, date)
	return result.RowsAffected, result.Error
}

func found(snapshot *snapshotdomain.Snapshot, err error) (*snapshotdomain.Snapshot, error) {
	if err != nil {
		return nil, err
	}
	if snapshot.ID == 0 {
		return nil, nil
	}
	return snapshot, nil
}
