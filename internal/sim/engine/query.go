package engine

import "github.com/openspawn/openspawn-sub002/internal/sim/model"

// Helpers below read e.sc and must be called with mu held. Returned pointers
// are invalidated by any append to the slice they point into.

func (e *Engine) agentByID(id string) *model.Agent {
	if id == "" {
		return nil
	}
	for i := range e.sc.Agents {
		if e.sc.Agents[i].ID == id {
			return &e.sc.Agents[i]
		}
	}
	return nil
}

func (e *Engine) agentsWhere(keep func(*model.Agent) bool) []*model.Agent {
	var out []*model.Agent
	for i := range e.sc.Agents {
		if keep(&e.sc.Agents[i]) {
			out = append(out, &e.sc.Agents[i])
		}
	}
	return out
}

func (e *Engine) activeAgents() []*model.Agent {
	return e.agentsWhere(func(a *model.Agent) bool { return a.Status == model.AgentActive })
}

func (e *Engine) tasksWhere(keep func(*model.Task) bool) []*model.Task {
	var out []*model.Task
	for i := range e.sc.Tasks {
		if keep(&e.sc.Tasks[i]) {
			out = append(out, &e.sc.Tasks[i])
		}
	}
	return out
}

func (e *Engine) openTasks() []*model.Task {
	return e.tasksWhere(func(t *model.Task) bool { return !t.Status.Terminal() })
}

func (e *Engine) capacity(level int) int {
	return e.tune.Capacity[level]
}

// children counts the active and pending direct children of parentID.
func (e *Engine) children(parentID string) (active, pending int) {
	for i := range e.sc.Agents {
		a := &e.sc.Agents[i]
		if a.ParentID != parentID {
			continue
		}
		switch a.Status {
		case model.AgentActive:
			active++
		case model.AgentPending:
			pending++
		}
	}
	return active, pending
}

// canEnterActive reports whether a may become active: a parent present in the
// scenario must itself be active and have room for one more active child.
func (e *Engine) canEnterActive(a *model.Agent) bool {
	parent := e.agentByID(a.ParentID)
	if parent == nil {
		return true
	}
	if parent.Status != model.AgentActive {
		return false
	}
	active, _ := e.children(parent.ID)
	return active < e.capacity(parent.Level)
}

// post appends a ledger transaction.
func (e *Engine) post(agentID string, typ model.CreditType, amount int64, desc, taskID string) model.CreditTransaction {
	tx := model.CreditTransaction{
		ID:          e.rng.id(),
		AgentID:     agentID,
		Type:        typ,
		Amount:      amount,
		Description: desc,
		CreatedAt:   e.simTime,
		TaskID:      taskID,
	}
	e.sc.Credits = append(e.sc.Credits, tx)
	e.ledger.Apply(tx)
	return tx
}

func (e *Engine) touch(a *model.Agent) {
	t := e.simTime
	a.LastActivityAt = &t
}
