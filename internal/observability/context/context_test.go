package context

import (
	"context"
	"testing"
)

func TestCorrelationFieldsRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), " req-1 ")
	ctx = WithCompanyID(ctx, "42")
	ctx = WithActor(ctx, "system", "scheduler")

	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Fatalf("expected request id req-1, got %q", got)
	}
	if got := CompanyIDFromContext(ctx); got != "42" {
		t.Fatalf("expected company id 42, got %q", got)
	}
	kind, id := ActorFromContext(ctx)
	if kind != "system" || id != "scheduler" {
		t.Fatalf("unexpected actor %q/%q", kind, id)
	}
}

func TestBlankValuesAreNotStored(t *testing.T) {
	ctx := WithCompanyID(WithRequestID(context.Background(), "  "), "")
	if RequestIDFromContext(ctx) != "" || CompanyIDFromContext(ctx) != "" {
		t.Fatal("expected blank values to be ignored")
	}
}
