package tracing

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const serviceVersion = "0.1.0"

var (
	otelOnce    sync.Once
	otelMu      sync.RWMutex
	otelTP      *sdktrace.TracerProvider
	otelInitErr error

	// Sample everything unless overridden before init. Turn traffic
	// is low-volume (one span tree per turn), so full sampling is the
	// sensible default for a session backend.
	sampleRatio = 1.0
)

// SetSampleRatio overrides the trace sampling ratio. It has effect
// only if called before InitOpenTelemetry.
func SetSampleRatio(ratio float64) {
	otelMu.Lock()
	defer otelMu.Unlock()
	if ratio >= 0 && ratio <= 1 {
		sampleRatio = ratio
	}
}

// InitOpenTelemetry installs the process-wide tracer provider. The
// first call wins; later calls return the first call's result.
func InitOpenTelemetry(serviceName string) error {
	otelOnce.Do(func() {
		otelMu.RLock()
		ratio := sampleRatio
		otelMu.RUnlock()

		res, err := resource.New(
			context.Background(),
			resource.WithAttributes(
				semconv.ServiceName(serviceName),
				semconv.ServiceVersion(serviceVersion),
			),
			resource.WithProcessPID(),
			resource.WithHost(),
		)
		if err != nil {
			otelInitErr = err
			return
		}

		tp := sdktrace.NewTracerProvider(
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
			sdktrace.WithResource(res),
		)

		otelMu.Lock()
		otelTP = tp
		otelMu.Unlock()

		otel.SetTracerProvider(tp)
	})

	return otelInitErr
}

// ShutdownOpenTelemetry flushes pending spans and releases the
// provider. No-op if tracing was never initialized.
func ShutdownOpenTelemetry(ctx context.Context) error {
	otelMu.RLock()
	tp := otelTP
	otelMu.RUnlock()
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}

// StartSpan opens a span and keeps it aligned with this package's
// context values: the span picks up the session id carried by the
// context, and the context picks up the span's trace id so log lines
// and spans correlate.
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	if sessionID := GetSessionID(ctx); sessionID != "" {
		attrs = append(attrs, attribute.String("session_id", sessionID))
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))

	if GetTraceID(ctx) == "" {
		if sc := span.SpanContext(); sc.IsValid() {
			ctx = WithTraceID(ctx, sc.TraceID().String())
		}
	}

	return ctx, span
}
