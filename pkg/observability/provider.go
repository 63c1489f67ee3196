package observability

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// Provider is an SDK meter provider whose counters are collected on demand,
// for serving them over HTTP without an exporter.
type Provider struct {
	mp     *sdkmetric.MeterProvider
	reader *sdkmetric.ManualReader
}

// Point is one counter value for a set of attributes.
type Point struct {
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Value      int64             `json:"value"`
}

// NewProvider creates a Provider. Call Install to make it the global meter
// provider before the first NewRecorder call.
func NewProvider() *Provider {
	reader := sdkmetric.NewManualReader()
	return &Provider{
		mp:     sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
		reader: reader,
	}
}

// Install sets p as the global OpenTelemetry meter provider.
func (p *Provider) Install() {
	otel.SetMeterProvider(p.mp)
}

// Snapshot collects the current value of every int64 counter, sorted by
// name then attributes.
func (p *Provider) Snapshot(ctx context.Context) ([]Point, error) {
	var rm metricdata.ResourceMetrics
	if err := p.reader.Collect(ctx, &rm); err != nil {
		return nil, err
	}

	var points []Point
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				attrs := make(map[string]string, dp.Attributes.Len())
				for _, kv := range dp.Attributes.ToSlice() {
					attrs[string(kv.Key)] = kv.Value.Emit()
				}
				points = append(points, Point{Name: m.Name, Attributes: attrs, Value: dp.Value})
			}
		}
	}

	sort.Slice(points, func(i, j int) bool {
		if points[i].Name != points[j].Name {
			return points[i].Name < points[j].Name
		}
		return attrKey(points[i].Attributes) < attrKey(points[j].Attributes)
	})
	return points, nil
}

// Shutdown flushes and stops the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.mp.Shutdown(ctx)
}

func attrKey(attrs map[string]string) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var s string
	for _, k := range keys {
		s += k + "=" + attrs[k] + ";"
	}
	return s
}
