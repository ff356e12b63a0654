package model

import (
	"maps"
	"time"
)

type Severity string

const (
	SeverityDebug    Severity = "debug"
	SeverityInfo     Severity = "info"
	SeveritySuccess  Severity = "success"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Audit event types written to the domain event log.
const (
	EventSystemStarted      = "system.started"
	EventAgentCreated       = "agent.created"
	EventAgentActivated     = "agent.activated"
	EventAgentPromoted      = "agent.promoted"
	EventAgentStatusChanged = "agent.status_changed"
	EventAgentSuspended     = "agent.suspended"
	EventAgentRevoked       = "agent.revoked"
	EventAgentIdle          = "agent.idle"
	EventTaskCreated        = "task.created"
	EventTaskStatusChanged  = "task.status_changed"
	EventTaskCompleted      = "task.completed"
	EventTaskCancelled      = "task.cancelled"
	EventCreditsEarned      = "credits.earned"
	EventCreditsSpent       = "credits.spent"
	EventMessageSent        = "message.sent"
)

// DomainEvent is an append-only audit entry. Metadata values are scalars
// (string, bool, integer) so a shallow map copy is a deep copy.
type DomainEvent struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Severity  Severity       `json:"severity"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	AgentID   string         `json:"agentId,omitempty"`
	TaskID    string         `json:"taskId,omitempty"`
}

func (e DomainEvent) Clone() DomainEvent {
	out := e
	if e.Metadata != nil {
		out.Metadata = maps.Clone(e.Metadata)
	}
	return out
}
