package correlation

import (
	"context"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestEnsureCorrelationIDGeneratesWhenMissing(t *testing.T) {
	ctx, cid := EnsureCorrelationID(context.Background())
	require.NotEmpty(t, cid)

	_, err := ulid.Parse(cid)
	require.NoError(t, err)

	assert.Equal(t, cid, ExtractCorrelationID(ctx))
}

func TestEnsureCorrelationIDKeepsExisting(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "existing-id")
	ctx, cid := EnsureCorrelationID(ctx)

	assert.Equal(t, "existing-id", cid)
	assert.Equal(t, "existing-id", ExtractCorrelationID(ctx))
}

func TestExtractCorrelationIDEmptyWhenUnset(t *testing.T) {
	assert.Empty(t, ExtractCorrelationID(context.Background()))
	assert.Empty(t, ExtractCorrelationID(nil))
}

func TestContextWithRemoteSpan(t *testing.T) {
	ctx := ContextWithRemoteSpan(context.Background(), "4bf92f3577b34da6a3ce929d0e0e4736", "00f067aa0ba902b7")
	span := trace.SpanContextFromContext(ctx)

	require.True(t, span.IsValid())
	assert.True(t, span.IsRemote())
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", span.TraceID().String())
}

func TestContextWithRemoteSpanRejectsBadInput(t *testing.T) {
	ctx := ContextWithRemoteSpan(context.Background(), "not-hex", "00f067aa0ba902b7")
	assert.False(t, trace.SpanContextFromContext(ctx).IsValid())

	ctx = ContextWithRemoteSpan(context.Background(), "", "")
	assert.False(t, trace.SpanContextFromContext(ctx).IsValid())
}
