package tracing

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func TestStartSpan_KeepsExistingTraceID(t *testing.T) {
	ctx := WithTraceID(context.Background(), "trace-fixed")

	ctx, span := StartSpan(ctx, "test", "memory.store", attribute.String("key", "user:1"))
	defer span.End()

	assert.Equal(t, "trace-fixed", GetTraceID(ctx))
}

func TestStartSpan_NilContext(t *testing.T) {
	ctx, span := StartSpan(nil, "test", "memory.search")
	defer span.End()

	require.NotNil(t, ctx)
}

func TestOpenTelemetry_ExtractsUpstreamTrace(t *testing.T) {
	require.NoError(t, InitOpenTelemetry("brainmemory-test"))
	t.Cleanup(func() {
		_ = ShutdownOpenTelemetry(context.Background())
	})

	header := http.Header{}
	header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")

	ctx := ExtractHTTP(context.Background(), header)
	ctx, span := StartSpan(ctx, "test", "memory.retrieve")
	defer span.End()

	sc := span.SpanContext()
	require.True(t, sc.IsValid())
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", sc.TraceID().String())
	assert.Equal(t, sc.TraceID().String(), GetTraceID(ctx))
	assert.True(t, trace.SpanContextFromContext(ctx).IsSampled())
}
