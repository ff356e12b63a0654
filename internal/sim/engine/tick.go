package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/openspawn/openspawn-sub002/internal/sim/model"
	"github.com/openspawn/openspawn-sub002/internal/telemetry"
)

type tickResult struct {
	tick   uint64
	events []Event
	digest string
}

// Tick advances the simulation by one step and notifies listeners: every
// event in generation order, then one batch notification for the tick.
func (e *Engine) Tick() []Event {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()
	return e.advance(true, false).events
}

// StepOnce advances one tick without notifying listeners and returns the new
// tick with the state digest after it. Replay tools compare that digest
// against the tick log.
func (e *Engine) StepOnce() (uint64, string) {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()
	res := e.advance(false, true)
	return res.tick, res.digest
}

// JumpToTick fast-forwards to target with silent steps. No listener is
// invoked. Targets behind the current tick return ErrRewindUnsupported.
func (e *Engine) JumpToTick(target uint64) error {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	from := e.CurrentTick()
	if target < from {
		return fmt.Errorf("%w: at tick %d, asked for %d", ErrRewindUnsupported, from, target)
	}
	produced := 0
	for cur := from; cur < target; cur++ {
		produced += len(e.advance(false, false).events)
	}
	if target > from {
		e.log.Info("jumped", "from", from, "to", target, "events", produced)
	}
	return nil
}

// advance runs one tick. Callers hold tickMu.
func (e *Engine) advance(emit, wantDigest bool) tickResult {
	started := time.Now()

	e.mu.Lock()
	evs := e.step()
	res := tickResult{tick: e.tick, events: evs}
	simTime := e.simTime
	if wantDigest || e.cfg.TickLogger != nil {
		res.digest = e.digestLocked()
	}
	var snap *Snapshot
	if e.cfg.SnapshotSink != nil && e.cfg.SnapshotEveryTicks > 0 && res.tick%uint64(e.cfg.SnapshotEveryTicks) == 0 {
		s := e.exportSnapshotLocked()
		snap = &s
	}
	var sample telemetry.TickSample
	if e.cfg.Metrics != nil {
		sample = e.sampleLocked(evs)
	}
	e.mu.Unlock()

	e.writeSinks(res, simTime)
	if snap != nil {
		select {
		case e.cfg.SnapshotSink <- *snap:
		default:
			e.log.Warn("snapshot dropped", "tick", res.tick)
		}
	}
	if e.cfg.Metrics != nil {
		sample.Duration = time.Since(started)
		e.cfg.Metrics.RecordTick(context.Background(), sample)
	}
	e.log.Debug("tick", "tick", res.tick, "events", len(evs), "simulated_time", simTime.Format(time.RFC3339))

	if emit {
		e.bus.publish(evs, res.tick)
	}
	return res
}

// step applies one tick of generators. Callers hold mu.
func (e *Engine) step() []Event {
	e.tick++
	e.simTime = e.cfg.StartTime.Add(time.Duration(e.tick) * e.cfg.tickUnit())

	p := e.tune.Probabilities
	gens := []struct {
		prob float64
		run  func() []Event
	}{
		{p.AgentCreated, e.createAgent},
		{p.AgentActivated, e.activateAgent},
		{p.AgentPromoted, e.promoteAgent},
		{p.AgentStatusChange, e.changeAgentStatus},
		{p.AgentDespawned, e.despawnAgent},
		{p.TaskCreated, e.createTask},
		{p.TaskStatusChange, e.advanceTask},
		{p.TaskBatchAdvance, e.batchAdvanceTasks},
		{p.TaskCancelled, e.cancelTask},
		{p.CreditEarned, e.earnCredits},
		{p.CreditSpent, e.spendCredits},
		{p.MessageSent, e.sendMessage},
		{p.MessageBurst, e.burstMessages},
	}

	var out []Event
	for _, g := range gens {
		if e.rng.chance(g.prob) {
			out = append(out, g.run()...)
		}
	}
	return out
}

// record appends the audit entry for a state change and wraps it with the
// payload into an Event stamped with the current tick.
func (e *Engine) record(p Payload, audit model.DomainEvent) Event {
	audit.ID = e.rng.id()
	audit.CreatedAt = e.simTime
	e.sc.Events = append(e.sc.Events, audit)
	return Event{
		Kind:      p.kind(),
		Tick:      e.tick,
		Timestamp: e.simTime,
		Payload:   p,
		Audit:     audit.Clone(),
	}
}

func (e *Engine) writeSinks(res tickResult, simTime time.Time) {
	if l := e.cfg.AuditLogger; l != nil {
		for _, ev := range res.events {
			if err := l.WriteAudit(AuditEntry{Tick: res.tick, Event: ev.Audit}); err != nil {
				e.log.Error("audit log write failed", "tick", res.tick, "err", err)
				break
			}
		}
	}
	if l := e.cfg.TickLogger; l != nil {
		entry := TickLogEntry{
			Tick:          res.tick,
			SimulatedTime: simTime,
			Events:        tickLogEvents(res.events),
			Digest:        res.digest,
		}
		if err := l.WriteTick(entry); err != nil {
			e.log.Error("tick log write failed", "tick", res.tick, "err", err)
		}
	}
}

func (e *Engine) sampleLocked(evs []Event) telemetry.TickSample {
	s := telemetry.TickSample{
		EventKinds: make([]string, 0, len(evs)),
		Agents:     make(map[string]int, len(model.AgentStatuses)),
	}
	// Zero counts are reported too, so a gauge drops when a status empties.
	for _, st := range model.AgentStatuses {
		s.Agents[string(st)] = 0
	}
	for _, ev := range evs {
		s.EventKinds = append(s.EventKinds, string(ev.Kind))
	}
	for i := range e.sc.Agents {
		s.Agents[string(e.sc.Agents[i].Status)]++
	}
	for i := range e.sc.Tasks {
		if !e.sc.Tasks[i].Status.Terminal() {
			s.OpenTasks++
		}
	}
	return s
}
