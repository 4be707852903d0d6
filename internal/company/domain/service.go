package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*CreateResponse, error)
	Get(ctx context.Context, id string) (*CompanyResponse, error)
	List(ctx context.Context) ([]CompanyResponse, error)
	SetActive(ctx context.Context, id string, active bool) (*CompanyResponse, error)

	// Load returns the full record, credentials included, for internal callers.
	Load(ctx context.Context, id string) (*Company, error)
	ListActive(ctx context.Context) ([]Company, error)
}

type CreateRequest struct {
	Name            string `json:"name"`
	SourceCompanyID string `json:"source_company_id"`
	SourceAPIKey    string `json:"source_api_key"`
}

type CompanyResponse struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Slug            string    `json:"slug"`
	SourceCompanyID string    `json:"source_company_id"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CreateResponse is the only response carrying the webhook secret.
type CreateResponse struct {
	CompanyResponse
	WebhookSecret string `json:"webhook_secret"`
}

func NewCompanyResponse(c Company) CompanyResponse {
	return CompanyResponse{
		ID:              c.ID.String(),
		Name:            c.Name,
		Slug:            c.Slug,
		SourceCompanyID: c.SourceCompanyID,
		Active:          c.Active,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

var (
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidSourceID = errors.New("invalid_source_company_id")
	ErrInvalidAPIKey   = errors.New("invalid_source_api_key")
	ErrInvalidCompany  = errors.New("invalid_company")
	ErrNotFound        = errors.New("company_not_found")
	ErrDuplicateSlug   = errors.New("duplicate_slug")
)
