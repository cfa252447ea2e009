package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("bookingbot")

// StartSpan starts a span on the global tracer provider, attrs are attached as string attributes
// in key, value order.
func StartSpan(ctx context.Context, name string, attrs ...string) (context.Context, trace.Span) {
	kvs := make([]attribute.KeyValue, 0, len(attrs)/2)
	for i := 0; i+1 < len(attrs); i += 2 {
		kvs = append(kvs, attribute.String(attrs[i], attrs[i+1]))
	}
	return tracer.Start(ctx, name, trace.WithAttributes(kvs...))
}

// FailSpan records err onto span and marks it as errored.
func FailSpan(span trace.Span, err error, description string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, description)
}
