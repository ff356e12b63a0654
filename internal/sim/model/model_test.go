package model

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultCapacityTable(t *testing.T) {
	want := map[int]int{10: 5, 9: 8, 8: 6, 7: 5, 6: 3, 5: 2, 4: 1, 3: 0, 2: 0, 1: 0}
	got := DefaultCapacityTable()
	if len(got) != len(want) {
		t.Fatalf("table=%v want %v", got, want)
	}
	for lvl, c := range want {
		if got[lvl] != c {
			t.Fatalf("capacity[%d]=%d want=%d", lvl, got[lvl], c)
		}
	}
	got[10] = 99
	if DefaultCapacityTable()[10] != 5 {
		t.Fatalf("returned table aliases the built-in one")
	}
}

func TestAgentTransitions_RevokedIsTerminal(t *testing.T) {
	if next := NextAgentStatuses(AgentRevoked); next != nil {
		t.Fatalf("revoked should have no outgoing edges, got %v", next)
	}
	if !CanTransitionAgent(AgentSuspended, AgentActive) {
		t.Fatalf("suspended -> active should be legal")
	}
	if CanTransitionAgent(AgentActive, AgentRevoked) {
		t.Fatalf("active -> revoked is not a voluntary status change")
	}
	// Mutating the returned slice must not corrupt the table.
	next := NextAgentStatuses(AgentPending)
	next[0] = AgentRevoked
	if !CanTransitionAgent(AgentPending, AgentActive) {
		t.Fatalf("transition table was mutated through NextAgentStatuses")
	}
}

func TestTaskFlow_ForwardOnly(t *testing.T) {
	chain := []TaskStatus{TaskBacklog, TaskPending, TaskAssigned, TaskInProgress, TaskReview, TaskDone}
	for i := 0; i+1 < len(chain); i++ {
		next, ok := NextTaskStatus(chain[i])
		if !ok || next != chain[i+1] {
			t.Fatalf("NextTaskStatus(%s)=%s,%v want %s", chain[i], next, ok, chain[i+1])
		}
		if TaskRank(chain[i+1]) <= TaskRank(chain[i]) {
			t.Fatalf("rank not increasing at %s", chain[i+1])
		}
		if CanTransitionTask(chain[i+1], chain[i]) {
			t.Fatalf("regression %s -> %s allowed", chain[i+1], chain[i])
		}
	}
	if _, ok := NextTaskStatus(TaskDone); ok {
		t.Fatalf("done must be terminal")
	}
	if !CanTransitionTask(TaskPending, TaskCancelled) {
		t.Fatalf("pending -> cancelled should be legal")
	}
	if CanTransitionTask(TaskCancelled, TaskDone) {
		t.Fatalf("cancelled must be terminal")
	}
}

func TestLedger_FoldMatchesIncremental(t *testing.T) {
	txs := []CreditTransaction{
		{AgentID: "a", Type: Credit, Amount: 100},
		{AgentID: "b", Type: Credit, Amount: 7},
		{AgentID: "a", Type: Debit, Amount: 30},
		{AgentID: "a", Type: Credit, Amount: 5},
	}
	l := NewLedger(txs)
	if got := l.Net("a"); got != 75 {
		t.Fatalf("Net(a)=%d want=75", got)
	}
	if got := l.Earned("a"); got != 105 {
		t.Fatalf("Earned(a)=%d want=105", got)
	}
	if got := FoldBalance(1000, "a", txs); got != 1075 {
		t.Fatalf("FoldBalance=%d want=1075", got)
	}
}

func TestScenarioClone_IsDeep(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := Scenario{
		Agents: []Agent{{ID: "a", Level: 10, Status: AgentActive, LastActivityAt: &now}},
		Tasks:  []Task{{ID: "t", Status: TaskDone, CompletedAt: &now}},
		Events: []DomainEvent{{ID: "e", Metadata: map[string]any{"k": "v"}}},
	}
	c := s.Clone()
	c.Agents[0].Level = 1
	*c.Agents[0].LastActivityAt = now.Add(time.Hour)
	*c.Tasks[0].CompletedAt = now.Add(time.Hour)
	c.Events[0].Metadata["k"] = "changed"

	if s.Agents[0].Level != 10 || !s.Agents[0].LastActivityAt.Equal(now) {
		t.Fatalf("agent shared with clone")
	}
	if !s.Tasks[0].CompletedAt.Equal(now) {
		t.Fatalf("task completedAt shared with clone")
	}
	if s.Events[0].Metadata["k"] != "v" {
		t.Fatalf("event metadata shared with clone")
	}
}

func TestScenarioValidate(t *testing.T) {
	s := Scenario{
		Agents: []Agent{
			{ID: "a", Level: 11, Status: AgentActive},
			{ID: "a", Level: 3, Status: "sleeping"},
		},
		Credits: []CreditTransaction{{AgentID: "a", Type: Credit, Amount: 0}},
	}
	err := s.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"out of range", "duplicate id", "unknown status", "amount must be positive"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err, want)
		}
	}
	ok := Scenario{Agents: []Agent{{ID: "root", Level: 10, Status: AgentActive}}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReputationFor(t *testing.T) {
	if got := ReputationFor(99, 0); got != ReputationNew {
		t.Fatalf("no completed work should stay NEW, got %s", got)
	}
	a := Agent{TrustScore: 98, TasksCompleted: 1}
	a.AdjustTrust(5)
	if a.TrustScore != MaxTrustScore || a.ReputationLevel != ReputationElite {
		t.Fatalf("trust=%d rep=%s", a.TrustScore, a.ReputationLevel)
	}
}
