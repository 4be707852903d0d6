package correlation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureCorrelationIDKeepsExisting(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "cid-1")
	_, cid := EnsureCorrelationID(ctx)
	assert.Equal(t, "cid-1", cid)

	_, generated := EnsureCorrelationID(context.Background())
	assert.Len(t, generated, 26)
}

func TestHeadersIncludeRemoteSpan(t *testing.T) {
	ctx := ContextWithRemoteSpan(context.Background(), "4bf92f3577b34da6a3ce929d0e0e4736", "00f067aa0ba902b7")
	ctx = ContextWithCorrelationID(ctx, "cid-2")

	headers := Headers(ctx)
	require.Equal(t, "cid-2", headers[HeaderCorrelationID])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", headers[HeaderTraceID])
	assert.Equal(t, "00f067aa0ba902b7", headers[HeaderSpanID])
}

func TestContextWithRemoteSpanIgnoresInvalidIDs(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, ContextWithRemoteSpan(ctx, "zz", "00f067aa0ba902b7"))
	_, ok := Headers(ctx)[HeaderTraceID]
	assert.False(t, ok)
}
