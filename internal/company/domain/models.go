// Package domain contains the tenant registry model.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Company is one analytics tenant and its upstream credentials.
type Company struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	Name            string       `gorm:"type:text;not null" json:"name"`
	Slug            string       `gorm:"type:text;not null;uniqueIndex:ux_companies_slug" json:"slug"`
	SourceCompanyID string       `gorm:"type:text;not null;column:source_company_id" json:"source_company_id"`
	SourceAPIKey    string       `gorm:"type:text;not null;column:source_api_key" json:"-"`
	WebhookSecret   string       `gorm:"type:text;not null;column:webhook_secret" json:"-"`
	Active          bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Company) TableName() string { return "companies" }
