// Package telemetry wires OpenTelemetry metric instruments for the simulator.
// A nil *Metrics is valid and records nothing.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope for simulator metrics.
const MeterName = "orgsim"

type Metrics struct {
	TicksTotal   metric.Int64Counter
	EventsTotal  metric.Int64Counter
	TickDuration metric.Float64Histogram
	AgentsByStat metric.Int64Gauge
	OpenTasks    metric.Int64Gauge
}

// NewMetrics creates all instruments from meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.TicksTotal, err = meter.Int64Counter("orgsim.ticks",
		metric.WithDescription("Simulation ticks executed"),
	)
	if err != nil {
		return nil, err
	}

	m.EventsTotal, err = meter.Int64Counter("orgsim.events",
		metric.WithDescription("Simulation events produced, by kind"),
	)
	if err != nil {
		return nil, err
	}

	m.TickDuration, err = meter.Float64Histogram("orgsim.tick.duration",
		metric.WithDescription("Wall time spent inside one tick"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	m.AgentsByStat, err = meter.Int64Gauge("orgsim.agents",
		metric.WithDescription("Agent population by status"),
	)
	if err != nil {
		return nil, err
	}

	m.OpenTasks, err = meter.Int64Gauge("orgsim.tasks.open",
		metric.WithDescription("Tasks not yet done or cancelled"),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// TickSample is what the engine reports after each tick.
type TickSample struct {
	Duration   time.Duration
	EventKinds []string
	Agents     map[string]int
	OpenTasks  int
}

func (m *Metrics) RecordTick(ctx context.Context, s TickSample) {
	if m == nil {
		return
	}
	m.TicksTotal.Add(ctx, 1)
	m.TickDuration.Record(ctx, float64(s.Duration.Microseconds())/1000.0)
	for _, k := range s.EventKinds {
		m.EventsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", k)))
	}
	for status, n := range s.Agents {
		m.AgentsByStat.Record(ctx, int64(n), metric.WithAttributes(attribute.String("status", status)))
	}
	m.OpenTasks.Record(ctx, int64(s.OpenTasks))
}
