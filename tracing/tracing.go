// Package tracing sets up OpenTelemetry for the service and exposes the trace
// id of every request in the x-b3-traceid response header.
package tracing

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/callistaenterprise/blog-test-aync-processes/logger"
)

// TraceIDHeader carries the request's trace id back to the caller.
const TraceIDHeader = "x-b3-traceid"

const tracerName = "github.com/callistaenterprise/blog-test-aync-processes"

// Init installs an always-sampling tracer provider as the global provider.
// Callers should Shutdown the returned provider on exit.
func Init(serviceName string) *sdktrace.TracerProvider {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp
}

// Tracer returns the service tracer from the global provider.
func Tracer() trace.Tracer { return otel.Tracer(tracerName) }

// TraceID returns the hex trace id of the span in ctx, or "" when there is none.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// NewRoot starts a span that ignores any parent in ctx, giving it a fresh
// trace id.
func NewRoot(ctx context.Context, name string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithNewRoot())
}

// Detach returns a background context carrying only the span context of ctx.
// Work handed to another goroutine keeps the trace but not the request's
// cancellation.
func Detach(ctx context.Context) context.Context {
	return trace.ContextWithSpanContext(context.Background(), trace.SpanContextFromContext(ctx))
}

// Middleware starts a server span per request and writes its trace id to the
// response headers before next runs.
func Middleware(next http.Handler, operation string) http.Handler {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := TraceID(r.Context()); id != "" {
			logger.Debug("setting trace header", logger.FieldKV("header", TraceIDHeader), logger.FieldKV("trace_id", id))
			w.Header().Set(TraceIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
	return otelhttp.NewHandler(inner, operation)
}

// NewHTTPClient returns a client whose requests propagate the caller's trace.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout, Transport: otelhttp.NewTransport(http.DefaultTransport)}
}
