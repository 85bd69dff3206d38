package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpan_CarriesSessionID(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	ctx := WithSessionID(context.Background(), "sess-42")
	ctx, span := StartSpan(ctx, "test", "test.op")
	span.End()

	assert.NotEmpty(t, GetTraceID(ctx))

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Contains(t, ended[0].Attributes(),
		attribute.String("session_id", "sess-42"))
}

func TestStartSpan_NilContext(t *testing.T) {
	ctx, span := StartSpan(nil, "test", "test.op") //nolint:staticcheck
	defer span.End()
	assert.NotNil(t, ctx)
}

func TestShutdownOpenTelemetry_BeforeInit(t *testing.T) {
	assert.NoError(t, ShutdownOpenTelemetry(context.Background()))
}

func TestSetSampleRatio_IgnoresOutOfRange(t *testing.T) {
	SetSampleRatio(0.5)
	SetSampleRatio(-1)
	SetSampleRatio(2)

	otelMu.RLock()
	defer otelMu.RUnlock()
	assert.Equal(t, 0.5, sampleRatio)
}
