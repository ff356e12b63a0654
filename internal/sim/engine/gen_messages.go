package engine

import (
	"fmt"

	"github.com/openspawn/openspawn-sub002/internal/sim/model"
)

func (e *Engine) sendMessage() []Event {
	active := e.activeAgents()
	if len(active) < 2 {
		return nil
	}
	from := pick(e.rng, active)
	others := make([]*model.Agent, 0, len(active)-1)
	for _, a := range active {
		if a.ID != from.ID {
			others = append(others, a)
		}
	}
	to := pick(e.rng, others)

	taskRelated := from.Level >= 7 || e.rng.chance(e.tune.Probabilities.MessageTaskRelated)
	var taskRef string
	if taskRelated {
		if open := e.openTasks(); len(open) > 0 {
			taskRef = pick(e.rng, open).Identifier
		}
	}
	typ := model.MessageTask
	if taskRef == "" {
		typ = pick(e.rng, chatTypes)
	}
	msg := model.Message{
		ID:          e.rng.id(),
		FromAgentID: from.ID,
		ToAgentID:   to.ID,
		Content:     renderMessage(pick(e.rng, messageTemplates[typ]), taskRef),
		Type:        typ,
		TaskRef:     taskRef,
		CreatedAt:   e.simTime,
	}
	e.sc.Messages = append(e.sc.Messages, msg)
	e.touch(from)

	meta := map[string]any{"messageId": msg.ID, "toAgentId": to.ID, "type": string(typ)}
	if taskRef != "" {
		meta["taskRef"] = taskRef
	}
	return []Event{e.record(MessageSent{Message: msg, From: e.publishAgent(from), To: e.publishAgent(to)}, model.DomainEvent{
		Type:     model.EventMessageSent,
		Severity: model.SeverityDebug,
		Message:  fmt.Sprintf("%s messaged %s", from.Name, to.Name),
		Metadata: meta,
		AgentID:  from.ID,
	})}
}

func (e *Engine) burstMessages() []Event {
	n := int(e.rng.between(int64(e.tune.BatchMin), int64(e.tune.BatchMax)))
	var out []Event
	for i := 0; i < n; i++ {
		out = append(out, e.sendMessage()...)
	}
	return out
}
