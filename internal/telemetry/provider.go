package telemetry

import (
	"context"
	"fmt"
	"io"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// Provider owns an SDK meter provider with a manual reader, so metrics can be
// collected on demand (end of a CLI run, tests) without a network exporter.
type Provider struct {
	reader  *sdkmetric.ManualReader
	mp      *sdkmetric.MeterProvider
	Metrics *Metrics
}

func NewProvider() (*Provider, error) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp.Meter(MeterName))
	if err != nil {
		_ = mp.Shutdown(context.Background())
		return nil, fmt.Errorf("create instruments: %w", err)
	}
	return &Provider{reader: reader, mp: mp, Metrics: m}, nil
}

// Collect returns the current aggregated metrics.
func (p *Provider) Collect(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	err := p.reader.Collect(ctx, &rm)
	return rm, err
}

// Sums flattens every int64 counter and gauge into "name{attr=value}" -> value.
func (p *Provider) Sums(ctx context.Context) (map[string]int64, error) {
	rm, err := p.Collect(ctx)
	if err != nil {
		return nil, err
	}
	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			var points []metricdata.DataPoint[int64]
			switch d := m.Data.(type) {
			case metricdata.Sum[int64]:
				points = d.DataPoints
			case metricdata.Gauge[int64]:
				points = d.DataPoints
			default:
				continue
			}
			for _, dp := range points {
				key := m.Name
				if dp.Attributes.Len() > 0 {
					key += "{" + dp.Attributes.Encoded(attribute.DefaultEncoder()) + "}"
				}
				out[key] = dp.Value
			}
		}
	}
	return out, nil
}

// WriteSummary prints Sums sorted by key.
func (p *Provider) WriteSummary(ctx context.Context, w io.Writer) error {
	sums, err := p.Sums(ctx)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := fmt.Fprintf(w, "%s %d\n", k, sums[k]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provider) Shutdown(ctx context.Context) error { return p.mp.Shutdown(ctx) }
