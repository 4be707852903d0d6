package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	companydomain "github.com/smallbiznis/revlens/internal/company/domain"
	"github.com/smallbiznis/revlens/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const webhookSecretBytes = 32

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Repo  companydomain.Repository
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  companydomain.Repository
	genID *snowflake.Node
}

func NewService(p Params) companydomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("company.service"),
		repo:  p.Repo,
		genID: p.GenID,
	}
}

func (s *Service) Create(ctx context.Context, req companydomain.CreateRequest) (*companydomain.CreateResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, companydomain.ErrInvalidName
	}
	companySlug := slug.Make(name)
	if companySlug == "" {
		return nil, companydomain.ErrInvalidName
	}

	sourceID := strings.TrimSpace(req.SourceCompanyID)
	if sourceID == "" {
		return nil, companydomain.ErrInvalidSourceID
	}

	apiKey := strings.TrimSpace(req.SourceAPIKey)
	if apiKey == "" {
		return nil, companydomain.ErrInvalidAPIKey
	}

	secret, err := newWebhookSecret()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	company := companydomain.Company{
		ID:              s.genID.Generate(),
		Name:            name,
		Slug:            companySlug,
		SourceCompanyID: sourceID,
		SourceAPIKey:    apiKey,
		WebhookSecret:   secret,
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Insert(ctx, s.db, &company); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, companydomain.ErrDuplicateSlug
		}
		return nil, err
	}

	s.log.Info("company created",
		zap.String("company_id", company.ID.String()),
		zap.String("slug", company.Slug),
	)

	return &companydomain.CreateResponse{
		CompanyResponse: companydomain.NewCompanyResponse(company),
		WebhookSecret:   secret,
	}, nil
}

func (s *Service) Get(ctx context.Context, id string) (*companydomain.CompanyResponse, error) {
	company, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := companydomain.NewCompanyResponse(*company)
	return &resp, nil
}

func (s *Service) List(ctx context.Context) ([]companydomain.CompanyResponse, error) {
	companies, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}

	resp := make([]companydomain.CompanyResponse, 0, len(companies))
	for _, company := range companies {
		resp = append(resp, companydomain.NewCompanyResponse(company))
	}
	return resp, nil
}

func (s *Service) SetActive(ctx context.Context, id string, active bool) (*companydomain.CompanyResponse, error) {
	companyID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	affected, err := s.repo.SetActive(ctx, s.db, companyID, active)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, companydomain.ErrNotFound
	}

	s.log.Info("company activation changed",
		zap.String("company_id", companyID.String()),
		zap.Bool("active", active),
	)
	return s.Get(ctx, id)
}

func (s *Service) Load(ctx context.Context, id string) (*companydomain.Company, error) {
	companyID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	company, err := s.repo.FindByID(ctx, s.db, companyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, companydomain.ErrNotFound
	}
	return company, nil
}

func (s *Service) ListActive(ctx context.Context) ([]companydomain.Company, error) {
	return s.repo.ListActive(ctx, s.db)
}

func parseID(id string) (snowflake.ID, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || parsed == 0 {
		return 0, companydomain.ErrInvalidCompany
	}
	return parsed, nil
}

func newWebhookSecret() (string, error) {
	buf := make([]byte, webhookSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
