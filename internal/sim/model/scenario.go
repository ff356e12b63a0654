package model

import (
	"errors"
	"fmt"
)

// Scenario is the full state tuple the engine runs on.
type Scenario struct {
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Agents      []Agent             `json:"agents"`
	Tasks       []Task              `json:"tasks"`
	Credits     []CreditTransaction `json:"credits"`
	Events      []DomainEvent       `json:"events"`
	Messages    []Message           `json:"messages"`
}

// Clone returns a deep copy; no slice, map or pointer is shared with s.
func (s Scenario) Clone() Scenario {
	out := Scenario{Name: s.Name, Description: s.Description}
	out.Agents = CloneAgents(s.Agents)
	out.Tasks = CloneTasks(s.Tasks)
	out.Credits = CloneCredits(s.Credits)
	out.Events = CloneEvents(s.Events)
	out.Messages = CloneMessages(s.Messages)
	return out
}

func CloneAgents(in []Agent) []Agent {
	out := make([]Agent, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

func CloneTasks(in []Task) []Task {
	out := make([]Task, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

func CloneCredits(in []CreditTransaction) []CreditTransaction {
	out := make([]CreditTransaction, len(in))
	copy(out, in)
	return out
}

func CloneEvents(in []DomainEvent) []DomainEvent {
	out := make([]DomainEvent, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

func CloneMessages(in []Message) []Message {
	out := make([]Message, len(in))
	copy(out, in)
	return out
}

// Validate checks structural invariants a scenario must hold before the
// engine will run it. Domain conditions (no pending agents, empty backlog)
// are not errors.
func (s Scenario) Validate() error {
	var errs []error
	agentIDs := make(map[string]bool, len(s.Agents))
	for i, a := range s.Agents {
		if a.ID == "" {
			errs = append(errs, fmt.Errorf("agents[%d]: missing id", i))
			continue
		}
		if agentIDs[a.ID] {
			errs = append(errs, fmt.Errorf("agents[%d]: duplicate id %s", i, a.ID))
		}
		agentIDs[a.ID] = true
		if a.Level < MinLevel || a.Level > MaxLevel {
			errs = append(errs, fmt.Errorf("agent %s: level %d out of range [%d,%d]", a.ID, a.Level, MinLevel, MaxLevel))
		}
		if !a.Status.Valid() {
			errs = append(errs, fmt.Errorf("agent %s: unknown status %q", a.ID, a.Status))
		}
	}
	for _, a := range s.Agents {
		if a.ParentID != "" && a.ParentID == a.ID {
			errs = append(errs, fmt.Errorf("agent %s: is its own parent", a.ID))
		}
	}
	taskIDs := make(map[string]bool, len(s.Tasks))
	for i, t := range s.Tasks {
		if t.ID == "" {
			errs = append(errs, fmt.Errorf("tasks[%d]: missing id", i))
			continue
		}
		if taskIDs[t.ID] {
			errs = append(errs, fmt.Errorf("tasks[%d]: duplicate id %s", i, t.ID))
		}
		taskIDs[t.ID] = true
		if !t.Status.Valid() {
			errs = append(errs, fmt.Errorf("task %s: unknown status %q", t.ID, t.Status))
		}
	}
	for i, tx := range s.Credits {
		if tx.Amount <= 0 {
			errs = append(errs, fmt.Errorf("credits[%d]: amount must be positive, got %d", i, tx.Amount))
		}
		if tx.Type != Credit && tx.Type != Debit {
			errs = append(errs, fmt.Errorf("credits[%d]: unknown type %q", i, tx.Type))
		}
	}
	return errors.Join(errs...)
}
