package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Noop is a Recorder that does nothing.
type Noop struct{}

var _ Recorder = Noop{}

// RecordParse does nothing.
func (Noop) RecordParse(_ context.Context, _ bool, _ string) {}

// RecordEvaluation does nothing.
func (Noop) RecordEvaluation(_ context.Context, _ string, _ bool) {}

// NoopTracer is a Tracer that does nothing.
type NoopTracer struct{}

var _ Tracer = NoopTracer{}

// Start returns the context unchanged and a no-op span.
func (NoopTracer) Start(ctx context.Context, _, _ string) (context.Context, trace.Span) {
	return ctx, noop.Span{}
}

// End does nothing.
func (NoopTracer) End(_ trace.Span, _ error) {}
