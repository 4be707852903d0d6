package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	companydomain "github.com/smallbiznis/revlens/internal/company/domain"
	"github.com/smallbiznis/revlens/internal/config"
	"github.com/smallbiznis/revlens/internal/observability"
	"github.com/smallbiznis/revlens/internal/ratelimit"
	snapshotdomain "github.com/smallbiznis/revlens/internal/snapshot/domain"
	"github.com/smallbiznis/revlens/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testCompanyID = "1001"
	testSecret    = "whsec-test"
)

type fakeCompanyService struct {
	companies map[string]*companydomain.Company
	created   []companydomain.CreateRequest
}

func newFakeCompanyService() *fakeCompanyService {
	return &fakeCompanyService{companies: map[string]*companydomain.Company{
		testCompanyID: {
			ID:            snowflake.ID(1001),
			Name:          "Acme",
			Slug:          "acme",
			WebhookSecret: testSecret,
			Active:        true,
		},
	}}
}

func (f *fakeCompanyService) Create(_ context.Context, req companydomain.CreateRequest) (*companydomain.CreateResponse, error) {
	if req.Name == "" {
		return nil, companydomain.ErrInvalidName
	}
	f.created = append(f.created, req)
	return &companydomain.CreateResponse{
		CompanyResponse: companydomain.CompanyResponse{ID: "2002", Name: req.Name, Slug: "new", Active: true},
		WebhookSecret:   "generated",
	}, nil
}

func (f *fakeCompanyService) Get(_ context.Context, id string) (*companydomain.CompanyResponse, error) {
	company, ok := f.companies[id]
	if !ok {
		return nil, companydomain.ErrNotFound
	}
	resp := companydomain.NewCompanyResponse(*company)
	return &resp, nil
}

func (f *fakeCompanyService) List(context.Context) ([]companydomain.CompanyResponse, error) {
	out := make([]companydomain.CompanyResponse, 0, len(f.companies))
	for _, company := range f.companies {
		out = append(out, companydomain.NewCompanyResponse(*company))
	}
	return out, nil
}

func (f *fakeCompanyService) SetActive(_ context.Context, id string, active bool) (*companydomain.CompanyResponse, error) {
	company, ok := f.companies[id]
	if !ok {
		return nil, companydomain.ErrNotFound
	}
	company.Active = active
	resp := companydomain.NewCompanyResponse(*company)
	return &resp, nil
}

func (f *fakeCompanyService) Load(_ context.Context, id string) (*companydomain.Company, error) {
	company, ok := f.companies[id]
	if !ok {
		return nil, companydomain.ErrNotFound
	}
	copied := *company
	return &copied, nil
}

func (f *fakeCompanyService) ListActive(context.Context) ([]companydomain.Company, error) {
	return nil, nil
}

type fakeSnapshotService struct {
	captureErr   error
	latestErr    error
	historyReqs  []snapshotdomain.HistoryRequest
	captureCalls []snapshotdomain.CaptureRequest
}

func (f *fakeSnapshotService) Capture(_ context.Context, req snapshotdomain.CaptureRequest) (snapshotdomain.CaptureResult, error) {
	f.captureCalls = append(f.captureCalls, req)
	if f.captureErr != nil {
		return snapshotdomain.CaptureResult{}, f.captureErr
	}
	return snapshotdomain.CaptureResult{Snapshot: snapshotdomain.View{CompanyID: req.CompanyID, Date: "2024-03-01"}}, nil
}

func (f *fakeSnapshotService) GetLatest(_ context.Context, companyID string) (snapshotdomain.View, error) {
	if f.latestErr != nil {
		return snapshotdomain.View{}, f.latestErr
	}
	return snapshotdomain.View{CompanyID: companyID, Date: "2024-03-01"}, nil
}

func (f *fakeSnapshotService) GetHistory(_ context.Context, req snapshotdomain.HistoryRequest) ([]snapshotdomain.Row, error) {
	f.historyReqs = append(f.historyReqs, req)
	return []snapshotdomain.Row{{Period: "2024-03", Snapshots: 1, Values: map[string]float64{"mrr.total": 4200}}}, nil
}

func (f *fakeSnapshotService) Cleanup(context.Context, time.Time) (int64, error) { return 0, nil }

func (f *fakeSnapshotService) Recompute(context.Context, string, func(snapshotdomain.RecomputeStep)) (int, error) {
	return 0, nil
}

func newTestServer(t *testing.T, companies *fakeCompanyService, snapshots *fakeSnapshotService, limiter *ratelimit.WebhookLimiter) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := NewServer(ServerParams{
		Gin:            NewEngine(observability.Config{Environment: "test"}),
		Cfg:            config.Config{Capture: config.CaptureConfig{Timeout: time.Second}},
		Log:            zap.NewNop(),
		CompanySvc:     companies,
		SnapshotSvc:    snapshots,
		WebhookLimiter: limiter,
	})
	s.dispatch = func(fn func()) { fn() }
	s.RegisterRoutes()
	return s
}

func doRequest(s *Server, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, newFakeCompanyService(), &fakeSnapshotService{}, nil)
	rec := doRequest(s, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateCompany(t *testing.T) {
	companies := newFakeCompanyService()
	s := newTestServer(t, companies, &fakeSnapshotService{}, nil)

	rec := doRequest(s, http.MethodPost, "/api/companies",
		[]byte(`{"name":"Beta","source_company_id":"biz_1","source_api_key":"key"}`), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data companydomain.CreateResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "generated", resp.Data.WebhookSecret)
	require.Len(t, companies.created, 1)
	assert.Equal(t, "biz_1", companies.created[0].SourceCompanyID)
}

func TestCreateCompanyValidation(t *testing.T) {
	s := newTestServer(t, newFakeCompanyService(), &fakeSnapshotService{}, nil)

	rec := doRequest(s, http.MethodPost, "/api/companies", []byte(`{"name":""}`), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_name", payload.Errors[0].Code)
	assert.Equal(t, "name", payload.Errors[0].Field)

	rec = doRequest(s, http.MethodPost, "/api/companies", []byte(`{`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCompanyNotFound(t *testing.T) {
	s := newTestServer(t, newFakeCompanyService(), &fakeSnapshotService{}, nil)
	rec := doRequest(s, http.MethodGet, "/api/companies/999", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateCompany(t *testing.T) {
	companies := newFakeCompanyService()
	s := newTestServer(t, companies, &fakeSnapshotService{}, nil)

	rec := doRequest(s, http.MethodPatch, "/api/companies/"+testCompanyID, []byte(`{}`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(s, http.MethodPatch, "/api/companies/"+testCompanyID, []byte(`{"active":false}`), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, companies.companies[testCompanyID].Active)
}

func TestGetLatestMetrics(t *testing.T) {
	snapshots := &fakeSnapshotService{}
	s := newTestServer(t, newFakeCompanyService(), snapshots, nil)

	rec := doRequest(s, http.MethodGet, "/api/companies/"+testCompanyID+"/metrics/latest", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	snapshots.latestErr = snapshotdomain.ErrNotFound
	rec = doRequest(s, http.MethodGet, "/api/companies/"+testCompanyID+"/metrics/latest", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetMetricsHistory(t *testing.T) {
	snapshots := &fakeSnapshotService{}
	s := newTestServer(t, newFakeCompanyService(), snapshots, nil)

	rec := doRequest(s, http.MethodGet, "/api/companies/"+testCompanyID+"/metrics/history?granularity=month&lookback=6", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, snapshots.historyReqs, 1)
	assert.Equal(t, snapshotdomain.GranularityMonth, snapshots.historyReqs[0].Granularity)
	assert.Equal(t, 6, snapshots.historyReqs[0].Lookback)

	var resp struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "2024-03", resp.Data[0]["period"])
	assert.Equal(t, 4200.0, resp.Data[0]["mrr.total"])

	rec = doRequest(s, http.MethodGet, "/api/companies/"+testCompanyID+"/metrics/history?granularity=hour", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_granularity", decodeError(t, rec).Errors[0].Code)

	rec = doRequest(s, http.MethodGet, "/api/companies/"+testCompanyID+"/metrics/history?lookback=abc", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_lookback", decodeError(t, rec).Errors[0].Code)
}

func TestTriggerCapture(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "ok", status: http.StatusOK},
		{name: "in progress", err: snapshotdomain.ErrCaptureInProgress, status: http.StatusConflict},
		{name: "inactive", err: snapshotdomain.ErrCompanyInactive, status: http.StatusConflict},
		{name: "upstream", err: &source.StatusError{Resource: "memberships", StatusCode: 503}, status: http.StatusBadGateway},
		{name: "unknown company", err: companydomain.ErrNotFound, status: http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			snapshots := &fakeSnapshotService{captureErr: tc.err}
			s := newTestServer(t, newFakeCompanyService(), snapshots, nil)

			rec := doRequest(s, http.MethodPost, "/api/companies/"+testCompanyID+"/captures", nil, nil)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			require.Len(t, snapshots.captureCalls, 1)
			assert.Equal(t, snapshotdomain.TriggerManual, snapshots.captureCalls[0].Trigger)
		})
	}
}

func TestWebhookSignature(t *testing.T) {
	snapshots := &fakeSnapshotService{}
	s := newTestServer(t, newFakeCompanyService(), snapshots, nil)
	body := []byte(`{"action":"membership.went_valid","data":{"id":"mem_1"}}`)

	rec := doRequest(s, http.MethodPost, "/webhooks/"+testCompanyID, body, map[string]string{
		HeaderWebhookSignature: sign("wrong", body),
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(s, http.MethodPost, "/webhooks/"+testCompanyID, body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, snapshots.captureCalls)

	rec = doRequest(s, http.MethodPost, "/webhooks/"+testCompanyID, body, map[string]string{
		HeaderWebhookSignature: "sha256=" + sign(testSecret, body),
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.Len(t, snapshots.captureCalls, 1)
	assert.Equal(t, snapshotdomain.TriggerWebhook, snapshots.captureCalls[0].Trigger)
	assert.Equal(t, testCompanyID, snapshots.captureCalls[0].CompanyID)
}

func TestWebhookIgnoresUnrelatedEvents(t *testing.T) {
	companies := newFakeCompanyService()
	snapshots := &fakeSnapshotService{}
	s := newTestServer(t, companies, snapshots, nil)

	body := []byte(`{"action":"app.installed"}`)
	rec := doRequest(s, http.MethodPost, "/webhooks/"+testCompanyID, body, map[string]string{
		HeaderWebhookSignature: sign(testSecret, body),
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	companies.companies[testCompanyID].Active = false
	body = []byte(`{"action":"payment.succeeded"}`)
	rec = doRequest(s, http.MethodPost, "/webhooks/"+testCompanyID, body, map[string]string{
		HeaderWebhookSignature: sign(testSecret, body),
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, snapshots.captureCalls)

	rec = doRequest(s, http.MethodPost, "/webhooks/999", body, map[string]string{
		HeaderWebhookSignature: sign(testSecret, body),
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebhookRateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := ratelimit.NewWebhookLimiter(config.Config{Webhook: config.WebhookConfig{Rate: 0.01, Burst: 1}}, client)
	snapshots := &fakeSnapshotService{}
	s := newTestServer(t, newFakeCompanyService(), snapshots, limiter)

	body := []byte(`{"action":"payment.succeeded"}`)
	headers := map[string]string{HeaderWebhookSignature: sign(testSecret, body)}

	rec := doRequest(s, http.MethodPost, "/webhooks/"+testCompanyID, body, headers)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = doRequest(s, http.MethodPost, "/webhooks/"+testCompanyID, body, headers)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Len(t, snapshots.captureCalls, 1)
}

func TestMapErrorUpstream(t *testing.T) {
	status, payload := mapError(source.ErrMissingCredential)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "upstream_error", payload.Type)
}
