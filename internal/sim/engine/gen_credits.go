package engine

import (
	"fmt"

	"github.com/openspawn/openspawn-sub002/internal/sim/model"
)

const (
	earnReason  = "Task completion reward"
	spendReason = "Model usage"
)

func (e *Engine) earnCredits() []Event {
	active := e.activeAgents()
	if len(active) == 0 {
		return nil
	}
	a := pick(e.rng, active)
	amount := e.rng.between(e.tune.Credits.EarnMin, e.tune.Credits.EarnMax)
	tx := e.post(a.ID, model.Credit, amount, earnReason, e.lastCompletedTask(a.ID))
	e.touch(a)

	return []Event{e.record(CreditChange{Agent: e.publishAgent(a), Amount: amount, Transaction: tx}, model.DomainEvent{
		Type:     model.EventCreditsEarned,
		Severity: model.SeverityInfo,
		Message:  fmt.Sprintf("%s earned %d credits", a.Name, amount),
		Metadata: map[string]any{"amount": amount, "reason": earnReason},
		AgentID:  a.ID,
		TaskID:   tx.TaskID,
	})}
}

func (e *Engine) spendCredits() []Event {
	eligible := e.agentsWhere(func(a *model.Agent) bool {
		return a.Status == model.AgentActive && e.balanceOf(a) > e.tune.Credits.SpendThreshold
	})
	if len(eligible) == 0 {
		return nil
	}
	a := pick(e.rng, eligible)
	amount := e.rng.between(e.tune.Credits.SpendMin, e.tune.Credits.SpendMax)
	if bal := e.balanceOf(a); amount > bal {
		amount = bal
	}
	tx := e.post(a.ID, model.Debit, amount, spendReason, "")

	return []Event{e.record(CreditChange{Agent: e.publishAgent(a), Amount: amount, Transaction: tx}, model.DomainEvent{
		Type:     model.EventCreditsSpent,
		Severity: model.SeverityDebug,
		Message:  fmt.Sprintf("%s spent %d credits on model usage", a.Name, amount),
		Metadata: map[string]any{"amount": amount, "model": a.Model},
		AgentID:  a.ID,
	})}
}

// lastCompletedTask returns the id of the most recently completed task
// assigned to agentID, or "".
func (e *Engine) lastCompletedTask(agentID string) string {
	var best *model.Task
	for i := range e.sc.Tasks {
		t := &e.sc.Tasks[i]
		if t.AssigneeID != agentID || t.Status != model.TaskDone || t.CompletedAt == nil {
			continue
		}
		if best == nil || !t.CompletedAt.Before(*best.CompletedAt) {
			best = t
		}
	}
	if best == nil {
		return ""
	}
	return best.ID
}
