// Package tracing starts OpenTelemetry spans on the global tracer provider.
//
// Spans are no-ops until the binary installs an SDK provider with
// otel.SetTracerProvider.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name used for every span.
const TracerName = "github.com/okian/cevs"

// StartSpan starts an internal span named "<component>.<op>".
func StartSpan(ctx context.Context, component, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	opts := []trace.SpanStartOption{trace.WithSpanKind(trace.SpanKindInternal)}
	if len(attrs) > 0 {
		opts = append(opts, trace.WithAttributes(attrs...))
	}
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, component+"."+op, opts...)
}

// End records err on span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Source is the attribute key for a data source name.
func Source(name string) attribute.KeyValue {
	return attribute.String("cevs.source", name)
}
