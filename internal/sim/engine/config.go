package engine

import (
	"log/slog"
	"time"

	"github.com/openspawn/openspawn-sub002/internal/logging"
	"github.com/openspawn/openspawn-sub002/internal/sim/tuning"
	"github.com/openspawn/openspawn-sub002/internal/telemetry"
)

type Config struct {
	// Seed drives every random decision. Two engines built from the same seed,
	// scenario, tuning and start time produce identical event sequences.
	Seed int64
	// StartTime anchors simulated time: tick n happens at StartTime + n*TickUnit.
	StartTime time.Time
	Tuning    tuning.Tuning

	Logger *slog.Logger

	// Optional sinks (may be nil). Implemented in internal/persistence/*.
	TickLogger  TickLogger
	AuditLogger AuditLogger

	// SnapshotSink receives a full state copy every SnapshotEveryTicks ticks.
	// Sends never block; a full channel drops the snapshot.
	SnapshotSink       chan<- Snapshot
	SnapshotEveryTicks int

	// Optional metrics (may be nil).
	Metrics *telemetry.Metrics
}

func (c *Config) applyDefaults() {
	if c.StartTime.IsZero() {
		c.StartTime = time.Now().UTC().Truncate(time.Second)
	}
	if c.Tuning.TickUnitMinutes <= 0 {
		c.Tuning = tuning.Defaults()
	}
	if c.Tuning.Capacity == nil {
		c.Tuning.Capacity = tuning.Defaults().Capacity
	}
	if c.Tuning.TaskWeights == nil {
		c.Tuning.TaskWeights = tuning.Defaults().TaskWeights
	}
	if c.Logger == nil {
		c.Logger = logging.Discard()
	}
}

func (c *Config) tickUnit() time.Duration {
	return time.Duration(c.Tuning.TickUnitMinutes) * time.Minute
}
