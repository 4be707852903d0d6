// Package source reads the complete membership, plan and payment sets of a
// company from the upstream commerce API.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/revlens/internal/config"
	"github.com/smallbiznis/revlens/internal/observability/metrics"
	revenuedomain "github.com/smallbiznis/revlens/internal/revenue/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	resourceMemberships = "memberships"
	resourcePlans       = "plans"
	resourcePayments    = "payments"

	// maxPages bounds a single resource walk when the upstream never reports the last page.
	maxPages = 10000
)

// Credentials address one company on the upstream API.
type Credentials struct {
	CompanyID string
	APIKey    string
}

// Result is a fully materialized dataset plus the number of records dropped at ingestion.
type Result struct {
	Dataset  revenuedomain.Dataset
	Rejected int
}

type Provider interface {
	FetchAllMemberships(ctx context.Context, creds Credentials) ([]revenuedomain.Membership, error)
	FetchAllPlans(ctx context.Context, creds Credentials) ([]revenuedomain.Plan, error)
	FetchAllPayments(ctx context.Context, creds Credentials) ([]revenuedomain.Payment, error)
	FetchDataset(ctx context.Context, creds Credentials) (Result, error)
}

type Params struct {
	fx.In

	Config  config.Config
	Log     *zap.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

type Client struct {
	baseURL  string
	pageSize int
	http     *http.Client
	log      *zap.Logger
	metrics  *metrics.Metrics
	validate *validator.Validate
}

func NewProvider(p Params) Provider {
	return NewClient(p.Config.Source, p.Log, p.Metrics)
}

func NewClient(cfg config.SourceConfig, log *zap.Logger, m *metrics.Metrics) *Client {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:  strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		pageSize: pageSize,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log:      log.Named("source.client"),
		metrics:  m,
		validate: validator.New(),
	}
}

func (c *Client) FetchAllMemberships(ctx context.Context, creds Credentials) ([]revenuedomain.Membership, error) {
	out, _, err := c.memberships(ctx, creds)
	return out, err
}

func (c *Client) FetchAllPlans(ctx context.Context, creds Credentials) ([]revenuedomain.Plan, error) {
	out, _, err := c.plans(ctx, creds)
	return out, err
}

func (c *Client) FetchAllPayments(ctx context.Context, creds Credentials) ([]revenuedomain.Payment, error) {
	out, _, err := c.payments(ctx, creds)
	return out, err
}

// FetchDataset walks every page of the three resources sequentially. Nothing is
// returned unless all of them were read to the end.
func (c *Client) FetchDataset(ctx context.Context, creds Credentials) (Result, error) {
	memberships, rejectedMemberships, err := c.memberships(ctx, creds)
	if err != nil {
		return Result{}, err
	}
	plans, rejectedPlans, err := c.plans(ctx, creds)
	if err != nil {
		return Result{}, err
	}
	payments, rejectedPayments, err := c.payments(ctx, creds)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Dataset: revenuedomain.Dataset{
			Memberships: memberships,
			Plans:       plans,
			Payments:    payments,
		},
		Rejected: rejectedMemberships + rejectedPlans + rejectedPayments,
	}, nil
}

func (c *Client) memberships(ctx context.Context, creds Credentials) ([]revenuedomain.Membership, int, error) {
	raw, err := fetchAll[membershipDTO](ctx, c, creds, resourceMemberships)
	if err != nil {
		return nil, 0, err
	}
	out := make([]revenuedomain.Membership, 0, len(raw))
	for _, dto := range raw {
		if record, ok := dto.toDomain(c.validate); ok {
			out = append(out, record)
		}
	}
	rejected := len(raw) - len(out)
	c.report(ctx, creds, resourceMemberships, len(out), rejected)
	return out, rejected, nil
}

func (c *Client) plans(ctx context.Context, creds Credentials) ([]revenuedomain.Plan, int, error) {
	raw, err := fetchAll[planDTO](ctx, c, creds, resourcePlans)
	if err != nil {
		return nil, 0, err
	}
	out := make([]revenuedomain.Plan, 0, len(raw))
	for _, dto := range raw {
		if record, ok := dto.toDomain(c.validate); ok {
			out = append(out, record)
		}
	}
	rejected := len(raw) - len(out)
	c.report(ctx, creds, resourcePlans, len(out), rejected)
	return out, rejected, nil
}

func (c *Client) payments(ctx context.Context, creds Credentials) ([]revenuedomain.Payment, int, error) {
	raw, err := fetchAll[paymentDTO](ctx, c, creds, resourcePayments)
	if err != nil {
		return nil, 0, err
	}
	out := make([]revenuedomain.Payment, 0, len(raw))
	for _, dto := range raw {
		if record, ok := dto.toDomain(c.validate); ok {
			out = append(out, record)
		}
	}
	rejected := len(raw) - len(out)
	c.report(ctx, creds, resourcePayments, len(out), rejected)
	return out, rejected, nil
}

func (c *Client) report(ctx context.Context, creds Credentials, resource string, accepted, rejected int) {
	c.metrics.RecordSourceRecords(ctx, resource, accepted, rejected)
	if rejected > 0 {
		c.log.Warn("records rejected at ingestion",
			zap.String("source_company_id", creds.CompanyID),
			zap.String("resource", resource),
			zap.Int("accepted", accepted),
			zap.Int("rejected", rejected),
		)
	}
}

func fetchAll[T any](ctx context.Context, c *Client, creds Credentials, resource string) ([]T, error) {
	if strings.TrimSpace(creds.APIKey) == "" || strings.TrimSpace(creds.CompanyID) == "" {
		return nil, ErrMissingCredential
	}

	var out []T
	for pageNum := 1; pageNum <= maxPages; pageNum++ {
		var body page[T]
		if err := c.getPage(ctx, creds, resource, pageNum, &body); err != nil {
			return nil, err
		}
		out = append(out, body.Data...)

		if len(body.Data) == 0 || body.Pagination.TotalPages <= pageNum {
			return out, nil
		}
	}
	return nil, &StatusError{Resource: resource, StatusCode: http.StatusLoopDetected, Message: "pagination did not terminate"}
}

func (c *Client) getPage(ctx context.Context, creds Credentials, resource string, pageNum int, dst any) error {
	query := url.Values{}
	query.Set("company_id", strings.TrimSpace(creds.CompanyID))
	query.Set("page", strconv.Itoa(pageNum))
	query.Set("per", strconv.Itoa(c.pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+resource+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(creds.APIKey))
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &transportError{resource: resource, err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &StatusError{Resource: resource, StatusCode: resp.StatusCode, Message: readMessage(resp.Body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return &transportError{resource: resource, err: fmt.Errorf("decode page %d: %w", pageNum, err)}
	}
	return nil
}

func readMessage(r io.Reader) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}
	if json.Unmarshal(data, &payload) != nil {
		return ""
	}
	if msg := strings.TrimSpace(payload.Error.Message); msg != "" {
		return msg
	}
	return strings.TrimSpace(payload.Message)
}

// IsUpstream reports whether err originated at the commerce API.
func IsUpstream(err error) bool {
	return errors.Is(err, ErrSourceUnavailable) || errors.Is(err, ErrUnauthorized)
}
