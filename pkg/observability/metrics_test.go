package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func setupMetricsTest(t *testing.T) *sdkmetric.ManualReader {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	original := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)

	t.Cleanup(func() {
		otel.SetMeterProvider(original)
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("shutting down meter provider: %v", err)
		}
	})
	return reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumFor adds up the data points of a counter whose attributes include kv.
func sumFor(t *testing.T, m *metricdata.Metrics, kv attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum[int64], got %T", m.Data)
	var total int64
	for _, dp := range sum.DataPoints {
		if v, found := dp.Attributes.Value(kv.Key); found && v == kv.Value {
			total += dp.Value
		}
	}
	return total
}

func TestNewRecorder(t *testing.T) {
	setupMetricsTest(t)

	recorder := NewRecorder()
	require.NotNil(t, recorder)
	_, isNoop := recorder.(Noop)
	assert.False(t, isNoop, "expected OTel recorder, got noop")
}

func TestRecordParse(t *testing.T) {
	reader := setupMetricsTest(t)
	m, err := newOtelMetrics()
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordParse(ctx, true, "")
	m.RecordParse(ctx, true, "")
	m.RecordParse(ctx, false, "ExpectedOperand")

	rm := collectMetrics(t, reader)

	parses := findMetric(rm, "tagexpr.parse.count")
	require.NotNil(t, parses)
	assert.Equal(t, int64(2), sumFor(t, parses, attribute.Bool("ok", true)))
	assert.Equal(t, int64(1), sumFor(t, parses, attribute.Bool("ok", false)))

	errs := findMetric(rm, "tagexpr.parse.errors")
	require.NotNil(t, errs)
	assert.Equal(t, int64(1), sumFor(t, errs, attribute.String("kind", "ExpectedOperand")))
}

func TestRecordEvaluation(t *testing.T) {
	reader := setupMetricsTest(t)
	m, err := newOtelMetrics()
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordEvaluation(ctx, "smoke", true)
	m.RecordEvaluation(ctx, "smoke", false)
	m.RecordEvaluation(ctx, "adhoc", true)

	rm := collectMetrics(t, reader)
	evals := findMetric(rm, "tagexpr.evaluation.count")
	require.NotNil(t, evals)
	assert.Equal(t, int64(2), sumFor(t, evals, attribute.String("source", "smoke")))
	assert.Equal(t, int64(2), sumFor(t, evals, attribute.Bool("result", true)))
}

func TestNoop(t *testing.T) {
	var r Recorder = Noop{}
	r.RecordParse(context.Background(), false, "IllegalEscape")
	r.RecordEvaluation(context.Background(), "adhoc", true)

	var tr Tracer = NoopTracer{}
	ctx := context.Background()
	got, span := tr.Start(ctx, "parse", "a")
	assert.Equal(t, ctx, got)
	assert.False(t, span.IsRecording())
	tr.End(span, nil)
}
