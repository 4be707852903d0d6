package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/revlens/internal/observability/context"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAddsCorrelationFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := obscontext.WithRequestID(context.Background(), "req-7")
	ctx = obscontext.WithCompanyID(ctx, "1001")
	WithContext(ctx, base).Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != "req-7" {
		t.Fatalf("expected request_id req-7, got %v", fields["request_id"])
	}
	if fields["company_id"] != "1001" {
		t.Fatalf("expected company_id 1001, got %v", fields["company_id"])
	}
	if _, ok := fields["trace_id"]; ok {
		t.Fatal("expected no trace_id without an active span")
	}
}

func TestGinMiddlewarePropagatesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var seenCompany string
	router := gin.New()
	router.Use(GinMiddleware(MiddlewareConfig{}))
	router.GET("/api/companies/:id", func(c *gin.Context) {
		seenCompany = obscontext.CompanyIDFromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/companies/77", nil)
	req.Header.Set(RequestIDHeader, "abc")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if got := resp.Header().Get(RequestIDHeader); got != "abc" {
		t.Fatalf("expected request id header abc, got %q", got)
	}
	if seenCompany != "77" {
		t.Fatalf("expected company id 77 in context, got %q", seenCompany)
	}

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/companies/77", nil))
	if resp.Header().Get(RequestIDHeader) == "" {
		t.Fatal("expected generated request id")
	}
}
