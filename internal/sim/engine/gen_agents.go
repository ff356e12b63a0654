package engine

import (
	"fmt"
	"strings"

	"github.com/openspawn/openspawn-sub002/internal/sim/model"
)

func (e *Engine) createAgent() []Event {
	parents := e.agentsWhere(func(a *model.Agent) bool {
		if a.Status != model.AgentActive || a.Level < e.tune.SpawnMinParentLevel {
			return false
		}
		active, pending := e.children(a.ID)
		return active+pending < e.capacity(a.Level)
	})
	if len(parents) == 0 {
		return nil
	}
	parent := e.publishAgent(pick(e.rng, parents))

	level := 1
	if parent.Level >= 9 {
		level = int(e.rng.between(1, 3))
	}
	domain := parent.Domain
	if domain == "" {
		domain = pick(e.rng, agentDomains)
	}
	id := e.rng.id()
	child := model.Agent{
		ID:              id,
		AgentID:         "agent_" + strings.ReplaceAll(id, "-", "")[:8],
		Name:            fmt.Sprintf("%s %d", pick(e.rng, agentNames), e.rng.intn(1000)),
		Role:            model.RoleWorker,
		Level:           level,
		Status:          model.AgentPending,
		Model:           defaultAgentModel,
		Domain:          domain,
		ParentID:        parent.ID,
		CreatedAt:       e.simTime,
		TrustScore:      model.DefaultTrustScore,
		ReputationLevel: model.ReputationNew,
	}
	e.sc.Agents = append(e.sc.Agents, child)

	return []Event{e.record(AgentCreated{Agent: e.publishAgent(&child), Parent: parent}, model.DomainEvent{
		Type:     model.EventAgentCreated,
		Severity: model.SeverityInfo,
		Message:  fmt.Sprintf("%s spawned by %s", child.Name, parent.Name),
		Metadata: map[string]any{"parentId": parent.ID, "level": level},
		AgentID:  child.ID,
	})}
}

func (e *Engine) activateAgent() []Event {
	var parent *model.Agent
	for i := range e.sc.Agents {
		p := &e.sc.Agents[i]
		if p.Status != model.AgentActive {
			continue
		}
		limit := e.capacity(p.Level)
		if limit == 0 {
			continue
		}
		active, pending := e.children(p.ID)
		if active >= limit || pending == 0 {
			continue
		}
		if parent == nil || p.Level > parent.Level {
			parent = p
		}
	}
	if parent == nil {
		return nil
	}

	var child *model.Agent
	for i := range e.sc.Agents {
		c := &e.sc.Agents[i]
		if c.ParentID != parent.ID || c.Status != model.AgentPending {
			continue
		}
		if child == nil || c.CreatedAt.Before(child.CreatedAt) {
			child = c
		}
	}
	if child == nil || !model.CanTransitionAgent(child.Status, model.AgentActive) {
		return nil
	}
	child.Status = model.AgentActive
	e.touch(child)
	bonus := e.post(child.ID, model.Credit, e.tune.ActivationBonus, "Activation bonus", "")

	return []Event{e.record(AgentActivated{Agent: e.publishAgent(child), ActivatedBy: e.publishAgent(parent), Bonus: bonus}, model.DomainEvent{
		Type:     model.EventAgentActivated,
		Severity: model.SeveritySuccess,
		Message:  fmt.Sprintf("%s activated %s", parent.Name, child.Name),
		Metadata: map[string]any{"activatedBy": parent.ID, "bonus": bonus.Amount},
		AgentID:  child.ID,
	})}
}

func (e *Engine) promoteAgent() []Event {
	eligible := e.agentsWhere(func(a *model.Agent) bool {
		return a.Status == model.AgentActive && a.Level < e.tune.PromotionMaxLevel && a.Level < model.MaxLevel
	})
	if len(eligible) == 0 {
		return nil
	}
	a := pick(e.rng, eligible)
	oldLevel := a.Level
	a.Level++
	a.AdjustTrust(e.tune.TrustOnPromotion)
	t := e.simTime
	a.LastPromotionAt = &t
	bonus := e.post(a.ID, model.Credit, int64(a.Level)*e.tune.PromotionBonusPerLevel, fmt.Sprintf("Promotion to level %d", a.Level), "")

	return []Event{e.record(AgentPromoted{Agent: e.publishAgent(a), OldLevel: oldLevel, NewLevel: a.Level, Bonus: bonus}, model.DomainEvent{
		Type:     model.EventAgentPromoted,
		Severity: model.SeverityInfo,
		Message:  fmt.Sprintf("%s promoted to Level %d", a.Name, a.Level),
		Metadata: map[string]any{"previousLevel": oldLevel, "newLevel": a.Level, "bonus": bonus.Amount},
		AgentID:  a.ID,
	})}
}

func (e *Engine) changeAgentStatus() []Event {
	candidates := e.agentsWhere(func(a *model.Agent) bool { return a.Level < model.MaxLevel })
	if len(candidates) == 0 {
		return nil
	}
	a := pick(e.rng, candidates)
	next := model.NextAgentStatuses(a.Status)
	if len(next) == 0 {
		return nil
	}
	to := pick(e.rng, next)
	if !model.CanTransitionAgent(a.Status, to) {
		return nil
	}
	if to == model.AgentActive && !e.canEnterActive(a) {
		return nil
	}
	from := a.Status
	a.Status = to

	return []Event{e.record(AgentStatusChanged{Agent: e.publishAgent(a), OldStatus: from, NewStatus: to}, model.DomainEvent{
		Type:     model.EventAgentStatusChanged,
		Severity: model.SeverityInfo,
		Message:  fmt.Sprintf("%s status changed to %s", a.Name, to),
		Metadata: map[string]any{"previousStatus": string(from), "newStatus": string(to)},
		AgentID:  a.ID,
	})}
}

func (e *Engine) despawnAgent() []Event {
	candidates := e.agentsWhere(func(a *model.Agent) bool {
		return a.Status == model.AgentActive && a.IsLowLevel()
	})
	if len(candidates) <= e.tune.DespawnFloor {
		return nil
	}
	a := pick(e.rng, candidates)
	from := a.Status

	audit := model.DomainEvent{AgentID: a.ID}
	var reason string
	if e.rng.intn(1000) < e.tune.DespawnSuspendPermille {
		a.Status = model.AgentSuspended
		reason = "Agent suspended for resource optimization"
		audit.Type = model.EventAgentSuspended
		audit.Severity = model.SeverityInfo
	} else {
		a.Status = model.AgentRevoked
		reason = "Agent permanently terminated due to inactivity"
		audit.Type = model.EventAgentRevoked
		audit.Severity = model.SeverityWarning
	}
	audit.Message = fmt.Sprintf("%s %s: %s", a.Name, a.Status, reason)
	audit.Metadata = map[string]any{"previousStatus": string(from), "reason": reason}

	return []Event{e.record(AgentDespawned{Agent: e.publishAgent(a), OldStatus: from, NewStatus: a.Status, Reason: reason}, audit)}
}
