package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/openspawn/openspawn-sub002/internal/sim/model"
	"github.com/openspawn/openspawn-sub002/internal/sim/scenarios"
	"github.com/openspawn/openspawn-sub002/internal/sim/tuning"
)

var testStart = time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, sc model.Scenario, seed int64, tune func(*tuning.Tuning)) *Engine {
	t.Helper()
	cfg := Config{Seed: seed, StartTime: testStart, Tuning: tuning.Defaults()}
	if tune != nil {
		tune(&cfg.Tuning)
	}
	e, err := New(cfg, sc)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func startup(t *testing.T) model.Scenario {
	t.Helper()
	sc, err := scenarios.Get("startup")
	if err != nil {
		t.Fatalf("startup scenario: %v", err)
	}
	return sc
}

// only disables every generator except the ones set by set.
func only(set func(*tuning.Probabilities)) func(*tuning.Tuning) {
	return func(tu *tuning.Tuning) {
		tu.Probabilities = tuning.Probabilities{}
		set(&tu.Probabilities)
	}
}

func agent(id, parent string, level int, status model.AgentStatus, created time.Time) model.Agent {
	return model.Agent{
		ID:        id,
		Name:      id,
		Role:      model.RoleWorker,
		Level:     level,
		Status:    status,
		ParentID:  parent,
		CreatedAt: created,
	}
}

func findAgent(t *testing.T, e *Engine, id string) model.Agent {
	t.Helper()
	for _, a := range e.Agents() {
		if a.ID == id {
			return a
		}
	}
	t.Fatalf("agent %s not found", id)
	return model.Agent{}
}

func TestSampleWeighted(t *testing.T) {
	w := []int{1, 0, 3}
	cases := []struct {
		roll float64
		want int
	}{
		{0, 0},
		{0.24, 0},
		{0.25, 2},
		{0.999, 2},
	}
	for _, c := range cases {
		if got := sampleWeighted(w, c.roll); got != c.want {
			t.Fatalf("sampleWeighted(%v, %v)=%d want %d", w, c.roll, got, c.want)
		}
	}
	if got := sampleWeighted([]int{0, 0}, 0.5); got != -1 {
		t.Fatalf("all-zero weights: got %d want -1", got)
	}
	if got := sampleWeighted(nil, 0.5); got != -1 {
		t.Fatalf("empty weights: got %d want -1", got)
	}
}

func TestNew_InjectsSystemStarted(t *testing.T) {
	e := newTestEngine(t, scenarios.Fresh(), 1, nil)
	evs := e.Events()
	if len(evs) != 1 {
		t.Fatalf("events=%d want 1", len(evs))
	}
	if evs[0].Type != model.EventSystemStarted || !evs[0].CreatedAt.Equal(testStart) {
		t.Fatalf("start event=%+v", evs[0])
	}
	if e.CurrentTick() != 0 || !e.SimulatedTime().Equal(testStart) {
		t.Fatalf("tick=%d time=%v", e.CurrentTick(), e.SimulatedTime())
	}

	// A scenario that already has history keeps it untouched.
	sc := startup(t)
	e2 := newTestEngine(t, sc, 1, nil)
	if got := len(e2.Events()); got != len(sc.Events) {
		t.Fatalf("startup events=%d want %d", got, len(sc.Events))
	}
}

func TestNew_RejectsInvalidScenario(t *testing.T) {
	sc := scenarios.Fresh()
	sc.Agents = append(sc.Agents, sc.Agents[0])
	if _, err := New(Config{StartTime: testStart}, sc); err == nil {
		t.Fatalf("expected duplicate id error")
	}

	bad := scenarios.Fresh()
	bad.Agents[0].Level = 11
	if _, err := New(Config{StartTime: testStart}, bad); err == nil {
		t.Fatalf("expected level range error")
	}
}

func TestNew_FixtureBalancesPreserved(t *testing.T) {
	sc := startup(t)
	e := newTestEngine(t, sc, 1, nil)
	for _, want := range sc.Agents {
		got := findAgent(t, e, want.ID)
		if got.CurrentBalance != want.CurrentBalance {
			t.Fatalf("%s balance=%d want %d", want.ID, got.CurrentBalance, want.CurrentBalance)
		}
		if got.LifetimeEarnings != want.LifetimeEarnings {
			t.Fatalf("%s earnings=%d want %d", want.ID, got.LifetimeEarnings, want.LifetimeEarnings)
		}
	}
}

func TestTick_AdvancesByOne(t *testing.T) {
	e := newTestEngine(t, startup(t), 7, nil)
	for i := uint64(1); i <= 10; i++ {
		evs := e.Tick()
		if e.CurrentTick() != i {
			t.Fatalf("tick=%d want %d", e.CurrentTick(), i)
		}
		want := testStart.Add(time.Duration(i) * time.Hour)
		if !e.SimulatedTime().Equal(want) {
			t.Fatalf("simulated time=%v want %v", e.SimulatedTime(), want)
		}
		for _, ev := range evs {
			if ev.Tick != i || !ev.Timestamp.Equal(want) {
				t.Fatalf("event %s stamped tick=%d ts=%v", ev.Kind, ev.Tick, ev.Timestamp)
			}
			if ev.Kind != ev.Payload.kind() {
				t.Fatalf("event kind %s does not match payload %T", ev.Kind, ev.Payload)
			}
		}
	}
}

func TestGetters_ReturnDeepCopies(t *testing.T) {
	e := newTestEngine(t, startup(t), 1, nil)

	agents := e.Agents()
	agents[0].Name = "mutated"
	agents[0].Level = 1
	if got := e.Agents()[0]; got.Name == "mutated" || got.Level == 1 {
		t.Fatalf("agent mutation leaked: %+v", got)
	}

	tasks := e.Tasks()
	for i := range tasks {
		if tasks[i].CompletedAt != nil {
			*tasks[i].CompletedAt = time.Time{}
		}
		tasks[i].Status = model.TaskBacklog
	}
	for _, task := range e.Tasks() {
		if task.CompletedAt != nil && task.CompletedAt.IsZero() {
			t.Fatalf("completedAt pointer shared")
		}
	}
	if e.Tasks()[len(tasks)-1].Status != model.TaskDone {
		t.Fatalf("task status mutation leaked")
	}

	fresh := newTestEngine(t, scenarios.Fresh(), 1, nil)
	evs := fresh.Events()
	evs[0].Metadata["scenarioName"] = "mutated"
	if fresh.Events()[0].Metadata["scenarioName"] != "fresh" {
		t.Fatalf("event metadata mutation leaked")
	}

	sc := e.Scenario()
	sc.Credits[0].Amount = 1
	sc.Messages[0].Read = false
	if e.Credits()[0].Amount == 1 || !e.Messages()[0].Read {
		t.Fatalf("scenario mutation leaked")
	}
}

// TestRun_Invariants drives both built-in scenarios for 200 ticks and checks
// the organization rules after every tick.
func TestRun_Invariants(t *testing.T) {
	for _, name := range []string{"fresh", "startup"} {
		sc, err := scenarios.Get(name)
		if err != nil {
			t.Fatalf("Get(%s): %v", name, err)
		}
		e := newTestEngine(t, sc, 42, nil)
		tune := tuning.Defaults()

		rank := map[string]int{}
		for _, task := range e.Tasks() {
			rank[task.ID] = model.TaskRank(task.Status)
		}
		revoked := map[string]bool{}
		lastEventTime := time.Time{}
		for _, ev := range e.Events() {
			if ev.CreatedAt.After(lastEventTime) {
				lastEventTime = ev.CreatedAt
			}
		}
		initialEvents := len(e.Events())

		for i := 0; i < 200; i++ {
			evs := e.Tick()
			despawned := false
			for _, ev := range evs {
				switch p := ev.Payload.(type) {
				case TaskTransition:
					if model.TaskRank(p.NewStatus) <= model.TaskRank(p.OldStatus) {
						t.Fatalf("%s: task %s regressed %s -> %s", name, p.Task.ID, p.OldStatus, p.NewStatus)
					}
				case AgentDespawned:
					despawned = true
				}
			}

			agents := e.Agents()
			byID := map[string]model.Agent{}
			lowActive := 0
			active := 0
			for _, a := range agents {
				byID[a.ID] = a
				if revoked[a.ID] && a.Status != model.AgentRevoked {
					t.Fatalf("%s: revoked agent %s became %s", name, a.ID, a.Status)
				}
				if a.Status == model.AgentRevoked {
					revoked[a.ID] = true
				}
				if a.Status == model.AgentActive {
					active++
					if a.IsLowLevel() {
						lowActive++
					}
				}
			}
			if active == 0 {
				t.Fatalf("%s: no active agents at tick %d", name, e.CurrentTick())
			}
			if despawned && lowActive < tune.DespawnFloor {
				t.Fatalf("%s: only %d active low-level agents after despawn", name, lowActive)
			}

			activeChildren := map[string]int{}
			for _, a := range agents {
				if a.Status == model.AgentActive && a.ParentID != "" {
					activeChildren[a.ParentID]++
				}
			}
			for parentID, n := range activeChildren {
				p, ok := byID[parentID]
				if !ok {
					continue
				}
				if limit := tune.Capacity[p.Level]; n > limit {
					t.Fatalf("%s: parent %s level %d has %d active children (cap %d)", name, p.ID, p.Level, n, limit)
				}
			}

			for _, task := range e.Tasks() {
				r := model.TaskRank(task.Status)
				if prev, ok := rank[task.ID]; ok && r < prev {
					t.Fatalf("%s: task %s moved backwards to %s", name, task.ID, task.Status)
				}
				rank[task.ID] = r
			}

			credits := e.Credits()
			for _, a := range agents {
				if want := model.FoldBalance(a.OpeningBalance, a.ID, credits); a.CurrentBalance != want {
					t.Fatalf("%s: agent %s balance=%d fold=%d", name, a.ID, a.CurrentBalance, want)
				}
				if bal, ok := e.Balance(a.ID); !ok || bal != a.CurrentBalance {
					t.Fatalf("%s: Balance(%s)=%d,%v want %d", name, a.ID, bal, ok, a.CurrentBalance)
				}
			}
		}

		all := e.Events()
		for _, ev := range all[initialEvents:] {
			if ev.CreatedAt.Before(lastEventTime) {
				t.Fatalf("%s: event %s at %v before %v", name, ev.Type, ev.CreatedAt, lastEventTime)
			}
			lastEventTime = ev.CreatedAt
		}
		if len(all) == initialEvents {
			t.Fatalf("%s: 200 ticks produced no events", name)
		}
	}
}

func TestJumpToTick_IsSilent(t *testing.T) {
	e := newTestEngine(t, startup(t), 3, nil)
	calls := 0
	e.OnEvent(func(Event) { calls++ })
	e.OnTick(func([]Event, uint64) { calls++ })

	if err := e.JumpToTick(50); err != nil {
		t.Fatalf("JumpToTick: %v", err)
	}
	if e.CurrentTick() != 50 {
		t.Fatalf("tick=%d want 50", e.CurrentTick())
	}
	if calls != 0 {
		t.Fatalf("listeners invoked %d times during jump", calls)
	}

	err := e.JumpToTick(10)
	if !errors.Is(err, ErrRewindUnsupported) {
		t.Fatalf("rewind err=%v want ErrRewindUnsupported", err)
	}
	if e.CurrentTick() != 50 {
		t.Fatalf("rewind changed tick to %d", e.CurrentTick())
	}
	if err := e.JumpToTick(50); err != nil {
		t.Fatalf("jump to current tick: %v", err)
	}
}

func TestJumpToTick_MatchesTicking(t *testing.T) {
	a := newTestEngine(t, startup(t), 11, nil)
	b := newTestEngine(t, startup(t), 11, nil)
	for i := 0; i < 25; i++ {
		a.Tick()
	}
	if err := b.JumpToTick(25); err != nil {
		t.Fatalf("JumpToTick: %v", err)
	}
	if a.Digest() != b.Digest() {
		t.Fatalf("jumped state differs from ticked state")
	}
}

func TestDeterminism_SameSeedSameDigests(t *testing.T) {
	a := newTestEngine(t, startup(t), 99, nil)
	b := newTestEngine(t, startup(t), 99, nil)
	c := newTestEngine(t, startup(t), 100, nil)
	for i := 0; i < 100; i++ {
		ta, da := a.StepOnce()
		tb, db := b.StepOnce()
		c.StepOnce()
		if ta != tb || da != db {
			t.Fatalf("tick %d: digests diverged", ta)
		}
	}
	if a.Digest() == c.Digest() {
		t.Fatalf("different seeds produced identical state")
	}
}

func TestReset_ReplaysIdentically(t *testing.T) {
	e := newTestEngine(t, startup(t), 5, nil)
	initial := e.Digest()
	var first []string
	for i := 0; i < 30; i++ {
		_, d := e.StepOnce()
		first = append(first, d)
	}

	e.Reset()
	if e.CurrentTick() != 0 || !e.SimulatedTime().Equal(testStart) {
		t.Fatalf("after reset tick=%d time=%v", e.CurrentTick(), e.SimulatedTime())
	}
	if e.Digest() != initial {
		t.Fatalf("reset did not restore the initial scenario")
	}
	for i := 0; i < 30; i++ {
		_, d := e.StepOnce()
		if d != first[i] {
			t.Fatalf("tick %d differs after reset", i+1)
		}
	}
}

func TestPendingAgent_NoEligibleParentStaysPending(t *testing.T) {
	t0 := testStart.Add(-48 * time.Hour)

	// Parent paused: neither activation nor a status change may activate the child.
	paused := model.Scenario{Name: "paused-parent", Agents: []model.Agent{
		agent("boss", "", 10, model.AgentPaused, t0),
		agent("kid", "boss", 1, model.AgentPending, t0),
	}}
	e := newTestEngine(t, paused, 1, only(func(p *tuning.Probabilities) {
		p.AgentActivated = 1
		p.AgentStatusChange = 1
	}))
	for i := 0; i < 50; i++ {
		e.Tick()
	}
	if got := findAgent(t, e, "kid").Status; got != model.AgentPending {
		t.Fatalf("child under paused parent became %s", got)
	}

	// Parent at capacity: a level 4 agent may keep one active child.
	full := model.Scenario{Name: "full-parent", Agents: []model.Agent{
		agent("lead", "", 4, model.AgentActive, t0),
		agent("busy", "lead", 1, model.AgentActive, t0),
		agent("wait", "lead", 1, model.AgentPending, t0),
	}}
	e = newTestEngine(t, full, 1, only(func(p *tuning.Probabilities) { p.AgentActivated = 1 }))
	for i := 0; i < 50; i++ {
		if evs := e.Tick(); len(evs) != 0 {
			t.Fatalf("unexpected events: %v", evs[0].Kind)
		}
	}
	if got := findAgent(t, e, "wait").Status; got != model.AgentPending {
		t.Fatalf("child under full parent became %s", got)
	}
}

func TestActivation_HighestLevelParentOldestChild(t *testing.T) {
	t0 := testStart.Add(-72 * time.Hour)
	sc := model.Scenario{Name: "activation", Agents: []model.Agent{
		agent("p7", "", 7, model.AgentActive, t0),
		agent("p9", "", 9, model.AgentActive, t0),
		agent("c1", "p7", 1, model.AgentPending, t0),
		agent("c2", "p9", 1, model.AgentPending, t0.Add(2*time.Hour)),
		agent("c3", "p9", 1, model.AgentPending, t0.Add(time.Hour)),
	}}
	e := newTestEngine(t, sc, 1, only(func(p *tuning.Probabilities) { p.AgentActivated = 1 }))

	for _, want := range []struct{ child, parent string }{{"c3", "p9"}, {"c2", "p9"}, {"c1", "p7"}} {
		evs := e.Tick()
		if len(evs) != 1 {
			t.Fatalf("events=%d want 1", len(evs))
		}
		p, ok := evs[0].Payload.(AgentActivated)
		if !ok {
			t.Fatalf("payload=%T want AgentActivated", evs[0].Payload)
		}
		if p.Agent.ID != want.child || p.ActivatedBy.ID != want.parent {
			t.Fatalf("activated %s by %s, want %s by %s", p.Agent.ID, p.ActivatedBy.ID, want.child, want.parent)
		}
		if p.Bonus.Type != model.Credit || p.Bonus.Amount != 50 || p.Agent.CurrentBalance != 50 {
			t.Fatalf("bonus=%+v balance=%d", p.Bonus, p.Agent.CurrentBalance)
		}
		if evs[0].Audit.Type != model.EventAgentActivated {
			t.Fatalf("audit type=%s", evs[0].Audit.Type)
		}
	}
	if evs := e.Tick(); len(evs) != 0 {
		t.Fatalf("no pending children left, got %d events", len(evs))
	}
}

func TestCreateAgent_RespectsCapacity(t *testing.T) {
	sc := model.Scenario{Name: "spawn", Agents: []model.Agent{
		{ID: "lead", Name: "Lead", Role: model.RoleManager, Level: 7, Status: model.AgentActive, Domain: "Research", CreatedAt: testStart},
	}}
	e := newTestEngine(t, sc, 1, only(func(p *tuning.Probabilities) { p.AgentCreated = 1 }))
	for i := 0; i < 20; i++ {
		e.Tick()
	}
	children := 0
	for _, a := range e.Agents() {
		if a.ParentID != "lead" {
			continue
		}
		children++
		if a.Status != model.AgentPending || a.Level != 1 || a.Domain != "Research" || a.Role != model.RoleWorker {
			t.Fatalf("spawned agent=%+v", a)
		}
	}
	if want := tuning.Defaults().Capacity[7]; children != want {
		t.Fatalf("children=%d want %d", children, want)
	}
}

func TestDespawn_KeepsFloor(t *testing.T) {
	sc := model.Scenario{Name: "despawn", Agents: []model.Agent{agent("boss", "", 10, model.AgentActive, testStart)}}
	for _, id := range []string{"w1", "w2", "w3", "w4", "w5"} {
		sc.Agents = append(sc.Agents, agent(id, "boss", 2, model.AgentActive, testStart))
	}
	e := newTestEngine(t, sc, 1, only(func(p *tuning.Probabilities) { p.AgentDespawned = 1 }))

	despawns := 0
	for i := 0; i < 10; i++ {
		for _, ev := range e.Tick() {
			p := ev.Payload.(AgentDespawned)
			if p.NewStatus != model.AgentSuspended && p.NewStatus != model.AgentRevoked {
				t.Fatalf("despawn to %s", p.NewStatus)
			}
			wantType := model.EventAgentSuspended
			if p.NewStatus == model.AgentRevoked {
				wantType = model.EventAgentRevoked
			}
			if ev.Audit.Type != wantType {
				t.Fatalf("audit type=%s want %s", ev.Audit.Type, wantType)
			}
			despawns++
		}
	}
	if despawns != 3 {
		t.Fatalf("despawns=%d want 3", despawns)
	}
}

func TestPromotion_BonusAndTrust(t *testing.T) {
	sc := model.Scenario{Name: "promote", Agents: []model.Agent{
		agent("boss", "", 10, model.AgentActive, testStart),
		agent("dev", "boss", 3, model.AgentActive, testStart),
	}}
	e := newTestEngine(t, sc, 1, only(func(p *tuning.Probabilities) { p.AgentPromoted = 1 }))
	evs := e.Tick()
	if len(evs) != 1 {
		t.Fatalf("events=%d want 1", len(evs))
	}
	p := evs[0].Payload.(AgentPromoted)
	if p.Agent.ID != "dev" || p.OldLevel != 3 || p.NewLevel != 4 {
		t.Fatalf("promotion=%+v", p)
	}
	if p.Bonus.Amount != 400 || p.Agent.CurrentBalance != 400 {
		t.Fatalf("bonus=%d balance=%d want 400", p.Bonus.Amount, p.Agent.CurrentBalance)
	}
	if p.Agent.TrustScore != model.DefaultTrustScore+5 || p.Agent.LastPromotionAt == nil {
		t.Fatalf("trust=%d lastPromotion=%v", p.Agent.TrustScore, p.Agent.LastPromotionAt)
	}
}

func TestCompletion_EmitsIdleRightAfter(t *testing.T) {
	sc := model.Scenario{
		Name: "idle",
		Agents: []model.Agent{
			agent("boss", "", 10, model.AgentActive, testStart),
			agent("dev", "boss", 3, model.AgentActive, testStart),
		},
		Tasks: []model.Task{{
			ID: "t1", Identifier: "TASK-007", Title: "Ship it", Status: model.TaskReview,
			Priority: model.PriorityHigh, AssigneeID: "dev", CreatorID: "boss",
			CreatedAt: testStart, UpdatedAt: testStart,
		}},
	}
	e := newTestEngine(t, sc, 1, only(func(p *tuning.Probabilities) { p.TaskStatusChange = 1 }))

	evs := e.Tick()
	if len(evs) != 2 {
		t.Fatalf("events=%d want 2", len(evs))
	}
	if evs[0].Kind != KindTaskCompleted || evs[1].Kind != KindAgentIdle {
		t.Fatalf("kinds=%s,%s", evs[0].Kind, evs[1].Kind)
	}
	idle := evs[1].Payload.(AgentIdle)
	if idle.Agent.ID != "dev" || idle.PreviousTaskID != "t1" || idle.Reason != "task_complete" {
		t.Fatalf("idle=%+v", idle)
	}
	task := e.Tasks()[0]
	if task.Status != model.TaskDone || task.CompletedAt == nil {
		t.Fatalf("task=%+v", task)
	}
	dev := findAgent(t, e, "dev")
	if dev.TasksCompleted != 1 || dev.TrustScore != model.DefaultTrustScore+5 || dev.ReputationLevel != model.ReputationTrusted {
		t.Fatalf("dev=%+v", dev)
	}

	// Nothing left to advance.
	if evs := e.Tick(); len(evs) != 0 {
		t.Fatalf("events after completion=%d", len(evs))
	}
}

func TestCreateTask_ContinuesIdentifiers(t *testing.T) {
	sc := model.Scenario{
		Name:   "ids",
		Agents: []model.Agent{agent("boss", "", 10, model.AgentActive, testStart)},
		Tasks: []model.Task{{
			ID: "t1", Identifier: "TASK-041", Title: "Old", Status: model.TaskDone,
			Priority: model.PriorityLow, CreatorID: "boss", CreatedAt: testStart, UpdatedAt: testStart,
		}},
	}
	e := newTestEngine(t, sc, 1, only(func(p *tuning.Probabilities) { p.TaskCreated = 1 }))
	evs := e.Tick()
	p := evs[0].Payload.(TaskCreated)
	if p.Task.Identifier != "TASK-042" || p.Task.Status != model.TaskBacklog || p.Creator.ID != "boss" {
		t.Fatalf("task=%+v", p.Task)
	}
}

func TestMessages_DistinctActiveAgents(t *testing.T) {
	e := newTestEngine(t, startup(t), 8, only(func(p *tuning.Probabilities) {
		p.MessageSent = 1
		p.MessageBurst = 1
		p.MessageTaskRelated = 0.4
	}))
	for i := 0; i < 20; i++ {
		for _, ev := range e.Tick() {
			m := ev.Payload.(MessageSent)
			if m.From.ID == m.To.ID {
				t.Fatalf("message to self: %+v", m.Message)
			}
			if m.From.Status != model.AgentActive || m.To.Status != model.AgentActive {
				t.Fatalf("message between inactive agents")
			}
			if m.Message.Read {
				t.Fatalf("new message marked read")
			}
			if (m.Message.TaskRef != "") != (m.Message.Type == model.MessageTask) {
				t.Fatalf("type %s with taskRef %q", m.Message.Type, m.Message.TaskRef)
			}
			if ev.Audit.Type != model.EventMessageSent {
				t.Fatalf("audit type=%s", ev.Audit.Type)
			}
		}
	}
}

func TestSubscriptions_UnsubscribeRemovesOnlyThatListener(t *testing.T) {
	e := newTestEngine(t, startup(t), 2, only(func(p *tuning.Probabilities) { p.MessageSent = 1 }))
	var a, b, ticks int
	var lastTick uint64
	unsubA := e.OnEvent(func(Event) { a++ })
	e.OnEvent(func(Event) { b++ })
	e.OnTick(func(evs []Event, tick uint64) {
		ticks++
		lastTick = tick
		if len(evs) != 1 {
			t.Errorf("tick batch=%d want 1", len(evs))
		}
	})

	e.Tick()
	unsubA()
	unsubA()
	e.Tick()

	if a != 1 || b != 2 || ticks != 2 || lastTick != 2 {
		t.Fatalf("a=%d b=%d ticks=%d lastTick=%d", a, b, ticks, lastTick)
	}
	if n := e.bus.listenerCount(); n != 2 {
		t.Fatalf("listeners=%d want 2", n)
	}
}

type memTickLog struct{ entries []TickLogEntry }

func (m *memTickLog) WriteTick(e TickLogEntry) error { m.entries = append(m.entries, e); return nil }

type memAuditLog struct{ entries []AuditEntry }

func (m *memAuditLog) WriteAudit(e AuditEntry) error { m.entries = append(m.entries, e); return nil }

type failingLog struct{}

func (failingLog) WriteTick(TickLogEntry) error { return errors.New("disk full") }
func (failingLog) WriteAudit(AuditEntry) error  { return errors.New("disk full") }

func TestSinks_TickLogReplays(t *testing.T) {
	ticks := &memTickLog{}
	audits := &memAuditLog{}
	cfg := Config{Seed: 21, StartTime: testStart, TickLogger: ticks, AuditLogger: audits}
	e, err := New(cfg, startup(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	produced := 0
	for i := 0; i < 20; i++ {
		produced += len(e.Tick())
	}
	if len(ticks.entries) != 20 || len(audits.entries) != produced {
		t.Fatalf("tick entries=%d audit entries=%d produced=%d", len(ticks.entries), len(audits.entries), produced)
	}

	replay := newTestEngine(t, startup(t), 21, nil)
	for _, entry := range ticks.entries {
		tick, digest := replay.StepOnce()
		if tick != entry.Tick || digest != entry.Digest {
			t.Fatalf("tick %d: replay digest mismatch", entry.Tick)
		}
		if want := testStart.Add(time.Duration(tick) * time.Hour); !entry.SimulatedTime.Equal(want) {
			t.Fatalf("simulated time=%v want %v", entry.SimulatedTime, want)
		}
	}
}

func TestSinks_FailuresDoNotAbortTick(t *testing.T) {
	cfg := Config{Seed: 1, StartTime: testStart, TickLogger: failingLog{}, AuditLogger: failingLog{}}
	e, err := New(cfg, startup(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 5; i++ {
		e.Tick()
	}
	if e.CurrentTick() != 5 {
		t.Fatalf("tick=%d want 5", e.CurrentTick())
	}
}

func TestSnapshotSink_EveryN(t *testing.T) {
	ch := make(chan Snapshot, 4)
	cfg := Config{Seed: 1, StartTime: testStart, SnapshotSink: ch, SnapshotEveryTicks: 5}
	e, err := New(cfg, startup(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 10; i++ {
		e.Tick()
	}
	if len(ch) != 2 {
		t.Fatalf("snapshots=%d want 2", len(ch))
	}
	s5 := <-ch
	s10 := <-ch
	if s5.Tick != 5 || s10.Tick != 10 {
		t.Fatalf("snapshot ticks=%d,%d", s5.Tick, s10.Tick)
	}
	if s10.Digest != e.Digest() || s10.Seed != 1 || !s10.StartTime.Equal(testStart) {
		t.Fatalf("snapshot header mismatch")
	}
}
