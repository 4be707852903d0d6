package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Upsert replaces the document stored for (company, date) or inserts it.
	Upsert(ctx context.Context, db *gorm.DB, snapshot *Snapshot) error
	FindByDate(ctx context.Context, db *gorm.DB, companyID snowflake.ID, date string) (*Snapshot, error)
	FindLatest(ctx context.Context, db *gorm.DB, companyID snowflake.ID) (*Snapshot, error)
	// FindPreviousBefore returns the newest snapshot strictly before date.
	FindPreviousBefore(ctx context.Context, db *gorm.DB, companyID snowflake.ID, date string) (*Snapshot, error)
	// ListInRange returns snapshots with start <= date <= end ordered by date.
	ListInRange(ctx context.Context, db *gorm.DB, companyID snowflake.ID, start, end string) ([]Snapshot, error)
	ListDates(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]string, error)
	DeleteBefore(ctx context.Context, db *gorm.DB, date string) (int64, error)
}
