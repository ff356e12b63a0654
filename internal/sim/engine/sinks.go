package engine

import (
	"time"

	"github.com/openspawn/openspawn-sub002/internal/sim/model"
)

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

// TickLogEntry is the per-tick replay record. Digest is the state digest
// after the tick; replay recomputes it from the same seed and scenario.
type TickLogEntry struct {
	Tick          uint64         `json:"tick"`
	SimulatedTime time.Time      `json:"simulated_time"`
	Events        []TickLogEvent `json:"events,omitempty"`
	Digest        string         `json:"digest"`
}

type TickLogEvent struct {
	Kind    Kind   `json:"kind"`
	AuditID string `json:"audit_id"`
	AgentID string `json:"agent_id,omitempty"`
	TaskID  string `json:"task_id,omitempty"`
}

type AuditEntry struct {
	Tick  uint64            `json:"tick"`
	Event model.DomainEvent `json:"event"`
}

// Snapshot is the full engine state at a tick, handed to SnapshotSink.
type Snapshot struct {
	Tick            uint64
	Seed            int64
	StartTime       time.Time
	TickUnitMinutes int
	Digest          string
	Scenario        model.Scenario
}

// ExportSnapshot copies the current state.
func (e *Engine) ExportSnapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.exportSnapshotLocked()
}

func (e *Engine) exportSnapshotLocked() Snapshot {
	sc := e.sc.Clone()
	for i := range sc.Agents {
		sc.Agents[i] = e.publishAgent(&e.sc.Agents[i])
	}
	return Snapshot{
		Tick:            e.tick,
		Seed:            e.cfg.Seed,
		StartTime:       e.cfg.StartTime,
		TickUnitMinutes: e.tune.TickUnitMinutes,
		Digest:          e.digestLocked(),
		Scenario:        sc,
	}
}

func tickLogEvents(evs []Event) []TickLogEvent {
	if len(evs) == 0 {
		return nil
	}
	out := make([]TickLogEvent, 0, len(evs))
	for _, ev := range evs {
		out = append(out, TickLogEvent{
			Kind:    ev.Kind,
			AuditID: ev.Audit.ID,
			AgentID: ev.Audit.AgentID,
			TaskID:  ev.Audit.TaskID,
		})
	}
	return out
}
