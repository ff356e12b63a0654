package engine

import (
	"fmt"

	"github.com/openspawn/openspawn-sub002/internal/sim/model"
)

func (e *Engine) createTask() []Event {
	active := e.activeAgents()
	if len(active) == 0 {
		return nil
	}
	creator := pick(e.rng, active)
	e.nextTaskNum++
	t := model.Task{
		ID:         e.rng.id(),
		Identifier: fmt.Sprintf("TASK-%03d", e.nextTaskNum),
		Title:      pick(e.rng, taskTitles),
		Status:     model.TaskBacklog,
		Priority:   pick(e.rng, model.TaskPriorities),
		CreatorID:  creator.ID,
		CreatedAt:  e.simTime,
		UpdatedAt:  e.simTime,
	}
	e.sc.Tasks = append(e.sc.Tasks, t)

	return []Event{e.record(TaskCreated{Task: t.Clone(), Creator: e.publishAgent(creator)}, model.DomainEvent{
		Type:     model.EventTaskCreated,
		Severity: model.SeverityInfo,
		Message:  "Task created: " + t.Title,
		Metadata: map[string]any{"identifier": t.Identifier, "priority": string(t.Priority)},
		AgentID:  creator.ID,
		TaskID:   t.ID,
	})}
}

// advanceTask moves one open task a single step forward. Tasks later in the
// pipeline are picked more often.
func (e *Engine) advanceTask() []Event {
	open := e.openTasks()
	if len(open) == 0 {
		return nil
	}
	weights := make([]int, len(open))
	for i, t := range open {
		weights[i] = e.tune.TaskWeights[string(t.Status)]
	}
	idx := sampleWeighted(weights, e.rng.roll())
	if idx < 0 {
		return nil
	}
	t := open[idx]
	next, ok := model.NextTaskStatus(t.Status)
	if !ok {
		return nil
	}
	return e.moveTask(t, next)
}

func (e *Engine) batchAdvanceTasks() []Event {
	n := int(e.rng.between(int64(e.tune.BatchMin), int64(e.tune.BatchMax)))
	var out []Event
	for i := 0; i < n; i++ {
		out = append(out, e.advanceTask()...)
	}
	return out
}

func (e *Engine) cancelTask() []Event {
	candidates := e.tasksWhere(func(t *model.Task) bool {
		return t.Status == model.TaskBacklog || t.Status == model.TaskPending
	})
	if len(candidates) == 0 {
		return nil
	}
	return e.moveTask(pick(e.rng, candidates), model.TaskCancelled)
}

// moveTask applies a forward transition and its side effects. A completion
// is followed by an idle notice when it frees the assignee.
func (e *Engine) moveTask(t *model.Task, to model.TaskStatus) []Event {
	if !model.CanTransitionTask(t.Status, to) {
		return nil
	}
	from := t.Status
	t.Status = to
	t.UpdatedAt = e.simTime

	if to == model.TaskAssigned && t.AssigneeID == "" {
		workers := e.agentsWhere(func(a *model.Agent) bool {
			return a.Status == model.AgentActive && a.Level <= e.tune.WorkerMaxLevel
		})
		if len(workers) > 0 {
			t.AssigneeID = pick(e.rng, workers).ID
		}
	}

	audit := model.DomainEvent{
		Type:     model.EventTaskStatusChanged,
		Severity: model.SeverityInfo,
		Message:  fmt.Sprintf("%s moved to %s", t.Title, to),
		Metadata: map[string]any{"identifier": t.Identifier, "previousStatus": string(from), "newStatus": string(to)},
		AgentID:  t.AssigneeID,
		TaskID:   t.ID,
	}
	switch to {
	case model.TaskDone:
		done := e.simTime
		t.CompletedAt = &done
		if a := e.agentByID(t.AssigneeID); a != nil {
			a.TasksCompleted++
			a.AdjustTrust(e.tune.TrustOnCompletion)
			e.touch(a)
		}
		audit.Type = model.EventTaskCompleted
		audit.Severity = model.SeveritySuccess
	case model.TaskCancelled:
		audit.Type = model.EventTaskCancelled
		audit.Severity = model.SeverityWarning
		audit.Message = fmt.Sprintf("%s cancelled", t.Title)
	}

	out := []Event{e.record(TaskTransition{Task: t.Clone(), OldStatus: from, NewStatus: to}, audit)}
	if to == model.TaskDone {
		if idle, ok := e.idleAfter(t); ok {
			out = append(out, idle)
		}
	}
	return out
}

// idleAfter reports the assignee of a just-completed task as available when
// it is active and has nothing else open.
func (e *Engine) idleAfter(done *model.Task) (Event, bool) {
	a := e.agentByID(done.AssigneeID)
	if a == nil || a.Status != model.AgentActive {
		return Event{}, false
	}
	for i := range e.sc.Tasks {
		t := &e.sc.Tasks[i]
		if t.AssigneeID == a.ID && !t.Status.Terminal() {
			return Event{}, false
		}
	}
	const reason = "task_complete"
	return e.record(AgentIdle{
		Agent:             e.publishAgent(a),
		Reason:            reason,
		PreviousTaskID:    done.ID,
		PreviousTaskTitle: done.Title,
		AvailableAt:       e.simTime,
	}, model.DomainEvent{
		Type:     model.EventAgentIdle,
		Severity: model.SeverityInfo,
		Message:  fmt.Sprintf("%s completed %q and is now available", a.Name, done.Title),
		Metadata: map[string]any{
			"reason":            reason,
			"previousTaskId":    done.ID,
			"previousTaskTitle": done.Title,
		},
		AgentID: a.ID,
		TaskID:  done.ID,
	}), true
}
