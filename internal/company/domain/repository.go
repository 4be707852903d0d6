package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, company *Company) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Company, error)
	List(ctx context.Context, db *gorm.DB) ([]Company, error)
	ListActive(ctx context.Context, db *gorm.DB) ([]Company, error)
	// SetActive returns the number of updated rows.
	SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) (int64, error)
}
