package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/openspawn/openspawn-sub002/internal/sim/model"
	"github.com/openspawn/openspawn-sub002/internal/sim/tuning"
)

// ErrRewindUnsupported is returned when asked to jump to a tick that has
// already passed. No per-tick snapshots are kept.
var ErrRewindUnsupported = errors.New("engine: rewinding to an earlier tick is not supported")

// Engine is a single-writer simulation of an agent organization.
//
// Ticks are serialized by tickMu; state is guarded by mu. Every read returns a
// deep copy. Listeners run after the state lock is released, so they may call
// getters, but they must not tick, jump or reset the engine they observe.
type Engine struct {
	cfg  Config
	tune tuning.Tuning
	log  *slog.Logger

	tickMu sync.Mutex

	mu          sync.RWMutex
	tick        uint64
	simTime     time.Time
	sc          model.Scenario
	ledger      *model.Ledger
	nextTaskNum int
	rng         *rng

	// initial is the post-construction scenario restored by Reset.
	initial model.Scenario

	bus bus
}

// Source is the read/subscribe surface handed to consumers (UI caches,
// query layers). Consumers receive it explicitly instead of reaching for a
// shared engine variable.
type Source interface {
	CurrentTick() uint64
	SimulatedTime() time.Time
	Agents() []model.Agent
	Tasks() []model.Task
	Credits() []model.CreditTransaction
	Events() []model.DomainEvent
	Messages() []model.Message
	OnEvent(fn func(Event)) (unsubscribe func())
	OnTick(fn func(events []Event, tick uint64)) (unsubscribe func())
}

var _ Source = (*Engine)(nil)

// New builds an engine over a private copy of sc.
func New(cfg Config, sc model.Scenario) (*Engine, error) {
	cfg.applyDefaults()
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, fmt.Errorf("tuning: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %q: %w", sc.Name, err)
	}

	e := &Engine{
		cfg:  cfg,
		tune: cfg.Tuning,
		log:  cfg.Logger,
	}
	e.rng = newRNG(cfg.Seed)
	e.sc = sc.Clone()
	if e.sc.Name == "" {
		e.sc.Name = "unnamed"
	}
	e.ledger = model.NewLedger(e.sc.Credits)
	e.normalizeOpeningBalances()

	if len(e.sc.Events) == 0 {
		e.sc.Events = append(e.sc.Events, model.DomainEvent{
			ID:        newRNG(^cfg.Seed).id(),
			Type:      model.EventSystemStarted,
			Severity:  model.SeverityInfo,
			Message:   fmt.Sprintf("Simulation started with %d agent(s)", len(e.sc.Agents)),
			Metadata:  map[string]any{"scenarioName": e.sc.Name},
			CreatedAt: cfg.StartTime,
		})
	}
	e.initial = e.sc.Clone()
	e.resetClockLocked()

	e.log.Info("engine ready",
		"scenario", e.sc.Name,
		"agents", len(e.sc.Agents),
		"tasks", len(e.sc.Tasks),
		"seed", cfg.Seed,
		"start", cfg.StartTime.Format(time.RFC3339),
	)
	return e, nil
}

// normalizeOpeningBalances turns fixture balances into opening balances so
// that opening + ledger fold reproduces the fixture's current balance.
func (e *Engine) normalizeOpeningBalances() {
	for i := range e.sc.Agents {
		a := &e.sc.Agents[i]
		if a.OpeningBalance == 0 && a.CurrentBalance != 0 {
			a.OpeningBalance = a.CurrentBalance - e.ledger.Net(a.ID)
		}
		if a.OpeningEarnings == 0 && a.LifetimeEarnings != 0 {
			a.OpeningEarnings = a.LifetimeEarnings - e.ledger.Earned(a.ID)
		}
		a.CurrentBalance = 0
		a.LifetimeEarnings = 0
		if a.TrustScore == 0 {
			a.TrustScore = model.DefaultTrustScore
		}
		if a.ReputationLevel == "" {
			a.ReputationLevel = model.ReputationFor(a.TrustScore, a.TasksCompleted)
		}
	}
}

var taskIdentRE = regexp.MustCompile(`^TASK-(\d+)$`)

func (e *Engine) resetClockLocked() {
	e.tick = 0
	e.simTime = e.cfg.StartTime
	e.nextTaskNum = 0
	for _, t := range e.sc.Tasks {
		if m := taskIdentRE.FindStringSubmatch(t.Identifier); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > e.nextTaskNum {
				e.nextTaskNum = n
			}
		}
	}
}

// Reset restores the scenario captured at
// construction, zeroes the tick counter and reseeds the random stream, so the
// run that follows repeats the original one exactly.
func (e *Engine) Reset() {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()
	e.mu.Lock()
	e.sc = e.initial.Clone()
	e.ledger = model.NewLedger(e.sc.Credits)
	e.rng = newRNG(e.cfg.Seed)
	e.resetClockLocked()
	e.mu.Unlock()
	e.log.Info("engine reset", "scenario", e.sc.Name)
}

func (e *Engine) CurrentTick() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tick
}

func (e *Engine) SimulatedTime() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.simTime
}

func (e *Engine) StartTime() time.Time { return e.cfg.StartTime }

func (e *Engine) Seed() int64 { return e.cfg.Seed }

func (e *Engine) TickUnit() time.Duration { return e.cfg.tickUnit() }

// Agents returns a deep copy of the agent population with derived balances.
func (e *Engine) Agents() []model.Agent {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]model.Agent, len(e.sc.Agents))
	for i := range e.sc.Agents {
		out[i] = e.publishAgent(&e.sc.Agents[i])
	}
	return out
}

func (e *Engine) Tasks() []model.Task {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return model.CloneTasks(e.sc.Tasks)
}

func (e *Engine) Credits() []model.CreditTransaction {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return model.CloneCredits(e.sc.Credits)
}

func (e *Engine) Events() []model.DomainEvent {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return model.CloneEvents(e.sc.Events)
}

func (e *Engine) Messages() []model.Message {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return model.CloneMessages(e.sc.Messages)
}

// Scenario returns a deep copy of the whole state with derived balances filled in.
func (e *Engine) Scenario() model.Scenario {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := e.sc.Clone()
	for i := range out.Agents {
		out.Agents[i] = e.publishAgent(&e.sc.Agents[i])
	}
	return out
}

// Balance folds the ledger for agentID on top of its opening balance.
func (e *Engine) Balance(agentID string) (int64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	a := e.agentByID(agentID)
	if a == nil {
		return 0, false
	}
	return e.balanceOf(a), true
}

// Digest hashes the current tick and scenario. Equal digests mean equal state.
func (e *Engine) Digest() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.digestLocked()
}

func (e *Engine) digestLocked() string {
	b, err := json.Marshal(struct {
		Tick     uint64         `json:"tick"`
		Scenario model.Scenario `json:"scenario"`
	}{e.tick, e.sc})
	if err != nil {
		// Scenario holds only JSON-safe values.
		panic(fmt.Sprintf("digest: %v", err))
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func (e *Engine) balanceOf(a *model.Agent) int64 {
	return a.OpeningBalance + e.ledger.Net(a.ID)
}

func (e *Engine) publishAgent(a *model.Agent) model.Agent {
	out := a.Clone()
	out.CurrentBalance = e.balanceOf(a)
	out.LifetimeEarnings = a.OpeningEarnings + e.ledger.Earned(a.ID)
	return out
}
