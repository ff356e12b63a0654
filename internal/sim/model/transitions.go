package model

// capacityByLevel caps how many direct children an agent may keep active.
var capacityByLevel = [MaxLevel + 1]int{
	10: 5,
	9:  8,
	8:  6,
	7:  5,
	6:  3,
	5:  2,
	4:  1,
}

// DefaultCapacityTable returns a copy of the built-in capacity table keyed by level.
func DefaultCapacityTable() map[int]int {
	out := make(map[int]int, MaxLevel)
	for lvl := MinLevel; lvl <= MaxLevel; lvl++ {
		out[lvl] = capacityByLevel[lvl]
	}
	return out
}

var agentTransitions = map[AgentStatus][]AgentStatus{
	AgentPending:   {AgentActive},
	AgentActive:    {AgentPaused},
	AgentPaused:    {AgentActive},
	AgentSuspended: {AgentActive},
	AgentRevoked:   nil,
}

// NextAgentStatuses lists the legal targets of a voluntary status change.
// Revoked is terminal and yields nil.
func NextAgentStatuses(s AgentStatus) []AgentStatus {
	next := agentTransitions[s]
	if len(next) == 0 {
		return nil
	}
	out := make([]AgentStatus, len(next))
	copy(out, next)
	return out
}

// CanTransitionAgent reports whether from -> to is an edge of the adjacency table.
func CanTransitionAgent(from, to AgentStatus) bool {
	for _, s := range agentTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

var taskFlow = map[TaskStatus]TaskStatus{
	TaskBacklog:    TaskPending,
	TaskPending:    TaskAssigned,
	TaskAssigned:   TaskInProgress,
	TaskInProgress: TaskReview,
	TaskReview:     TaskDone,
}

// NextTaskStatus returns the single forward step for s, or false for terminal statuses.
func NextTaskStatus(s TaskStatus) (TaskStatus, bool) {
	next, ok := taskFlow[s]
	return next, ok
}

// TaskRank orders statuses along the pipeline; done and cancelled share the last rank.
func TaskRank(s TaskStatus) int {
	switch s {
	case TaskBacklog:
		return 0
	case TaskPending:
		return 1
	case TaskAssigned:
		return 2
	case TaskInProgress:
		return 3
	case TaskReview:
		return 4
	case TaskDone, TaskCancelled:
		return 5
	}
	return -1
}

// CanTransitionTask reports whether a task may move from -> to without regressing.
func CanTransitionTask(from, to TaskStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == TaskCancelled {
		return true
	}
	next, ok := taskFlow[from]
	return ok && next == to
}
