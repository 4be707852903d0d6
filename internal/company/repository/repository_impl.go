package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	companydomain "github.com/smallbiznis/revlens/internal/company/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() companydomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, company *companydomain.Company) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO companies (id, name, slug, source_company_id, source_api_key, webhook_secret, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		company.ID,
		company.Name,
		company.Slug,
		company.SourceCompanyID,
		company.SourceAPIKey,
		company.WebhookSecret,
		company.Active,
		company.CreatedAt,
		company.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*companydomain.Company, error) {
	var company companydomain.Company
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, slug, source_company_id, source_api_key, webhook_secret, active, created_at, updated_at
		 FROM companies WHERE id = ?`,
		id,
	).Scan(&company).Error
	if err != nil {
		return nil, err
	}
	if company.ID == 0 {
		return nil, nil
	}
	return &company, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]companydomain.Company, error) {
	var companies []companydomain.Company
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, slug, source_company_id, source_api_key, webhook_secret, active, created_at, updated_at
		 FROM companies ORDER BY created_at ASC, id ASC`,
	).Scan(&companies).Error
	if err != nil {
		return nil, err
	}
	return companies, nil
}

func (r *repo) ListActive(ctx context.Context, db *gorm.DB) ([]companydomain.Company, error) {
	var companies []companydomain.Company
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, slug, source_company_id, source_api_key, webhook_secret, active, created_at, updated_at
		 FROM companies WHERE active = ? ORDER BY id ASC`,
		true,
	).Scan(&companies).Error
	if err != nil {
		return nil, err
	}
	return companies, nil
}

func (r *repo) SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE companies SET active = ?, updated_at = ? WHERE id = ?`,
		active,
		time.Now().UTC(),
		id,
	)
	return result.RowsAffected, result.Error
}
