// Package observability records metrics, traces and structured logs for
// tag expression parsing and evaluation.
//
// Metrics and traces go to the global OpenTelemetry providers. Both have
// no-op implementations for when they are disabled.
package observability

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Recorder records tag expression metrics.
// Use NewRecorder() for OTel metrics or Noop{} when disabled.
type Recorder interface {
	// RecordParse records one parse. kind is the syntax error kind, or ""
	// when ok is true.
	RecordParse(ctx context.Context, ok bool, kind string)

	// RecordEvaluation records one evaluation. source names what was
	// evaluated: "adhoc" or a selector name.
	RecordEvaluation(ctx context.Context, source string, result bool)
}

type otelMetrics struct {
	parses      metric.Int64Counter
	parseErrors metric.Int64Counter
	evaluations metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("tagexpr")

	parses, err := meter.Int64Counter("tagexpr.parse.count",
		metric.WithDescription("Number of tag expressions parsed"),
	)
	if err != nil {
		return nil, err
	}

	parseErrors, err := meter.Int64Counter("tagexpr.parse.errors",
		metric.WithDescription("Number of tag expressions rejected with a syntax error"),
	)
	if err != nil {
		return nil, err
	}

	evaluations, err := meter.Int64Counter("tagexpr.evaluation.count",
		metric.WithDescription("Number of tag expression evaluations"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		parses:      parses,
		parseErrors: parseErrors,
		evaluations: evaluations,
	}, nil
}

// NewRecorder returns a Recorder that uses OpenTelemetry, or Noop{} if the
// instruments cannot be created. Configure the global meter provider with
// otel.SetMeterProvider before the first call.
func NewRecorder() Recorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return Noop{}
	}
	return m
}

func (m *otelMetrics) RecordParse(ctx context.Context, ok bool, kind string) {
	m.parses.Add(ctx, 1, metric.WithAttributes(attribute.Bool("ok", ok)))
	if !ok {
		m.parseErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	}
}

func (m *otelMetrics) RecordEvaluation(ctx context.Context, source string, result bool) {
	m.evaluations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.Bool("result", result),
	))
}
