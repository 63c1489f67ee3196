package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("tagexpr")

// Tracer starts spans around tag expression operations.
// Use NewTracer() for OTel tracing or NoopTracer{} when disabled.
type Tracer interface {
	// Start starts a span named "tagexpr."+op carrying the expression text.
	Start(ctx context.Context, op, expression string) (context.Context, trace.Span)

	// End completes a span, recording err if it is non-nil.
	End(span trace.Span, err error)
}

type otelTracer struct{}

// NewTracer returns a Tracer that uses the global OTel tracer provider.
func NewTracer() Tracer {
	return otelTracer{}
}

func (otelTracer) Start(ctx context.Context, op, expression string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "tagexpr."+op,
		trace.WithAttributes(attribute.String("tagexpr.expression", expression)),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (otelTracer) End(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
