package engine

import (
	"time"

	"github.com/openspawn/openspawn-sub002/internal/sim/model"
)

// Kind names a SimulationEvent variant.
type Kind string

const (
	KindAgentCreated       Kind = "agent_created"
	KindAgentActivated     Kind = "agent_activated"
	KindAgentPromoted      Kind = "agent_promoted"
	KindAgentStatusChanged Kind = "agent_status_changed"
	KindAgentDespawned     Kind = "agent_despawned"
	KindAgentIdle          Kind = "agent_idle"
	KindTaskCreated        Kind = "task_created"
	KindTaskAdvanced       Kind = "task_advanced"
	KindTaskCompleted      Kind = "task_completed"
	KindTaskCancelled      Kind = "task_cancelled"
	KindCreditEarned       Kind = "credit_earned"
	KindCreditSpent        Kind = "credit_spent"
	KindMessageSent        Kind = "message_sent"
)

// Event is the pub/sub notification for one state change. Audit is the
// DomainEvent appended to the log for the same change.
type Event struct {
	Kind      Kind              `json:"kind"`
	Tick      uint64            `json:"tick"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   Payload           `json:"payload"`
	Audit     model.DomainEvent `json:"audit"`
}

// Payload is implemented only by the variant types in this file.
type Payload interface {
	kind() Kind
}

type AgentCreated struct {
	Agent  model.Agent `json:"agent"`
	Parent model.Agent `json:"parent"`
}

type AgentActivated struct {
	Agent       model.Agent             `json:"agent"`
	ActivatedBy model.Agent             `json:"activatedBy"`
	Bonus       model.CreditTransaction `json:"bonus"`
}

type AgentPromoted struct {
	Agent    model.Agent             `json:"agent"`
	OldLevel int                     `json:"oldLevel"`
	NewLevel int                     `json:"newLevel"`
	Bonus    model.CreditTransaction `json:"bonus"`
}

type AgentStatusChanged struct {
	Agent     model.Agent       `json:"agent"`
	OldStatus model.AgentStatus `json:"oldStatus"`
	NewStatus model.AgentStatus `json:"newStatus"`
}

type AgentDespawned struct {
	Agent     model.Agent       `json:"agent"`
	OldStatus model.AgentStatus `json:"oldStatus"`
	NewStatus model.AgentStatus `json:"newStatus"`
	Reason    string            `json:"reason"`
}

type AgentIdle struct {
	Agent             model.Agent `json:"agent"`
	Reason            string      `json:"reason"`
	PreviousTaskID    string      `json:"previousTaskId"`
	PreviousTaskTitle string      `json:"previousTaskTitle"`
	AvailableAt       time.Time   `json:"availableAt"`
}

type TaskCreated struct {
	Task    model.Task  `json:"task"`
	Creator model.Agent `json:"creator"`
}

// TaskTransition covers every forward task move. Its kind follows NewStatus:
// done is a completion, cancelled a cancellation, anything else an advance.
type TaskTransition struct {
	Task      model.Task       `json:"task"`
	OldStatus model.TaskStatus `json:"oldStatus"`
	NewStatus model.TaskStatus `json:"newStatus"`
}

// CreditChange is an earn or a spend depending on the transaction type.
type CreditChange struct {
	Agent       model.Agent             `json:"agent"`
	Amount      int64                   `json:"amount"`
	Transaction model.CreditTransaction `json:"transaction"`
}

type MessageSent struct {
	Message model.Message `json:"message"`
	From    model.Agent   `json:"from"`
	To      model.Agent   `json:"to"`
}

func (AgentCreated) kind() Kind       { return KindAgentCreated }
func (AgentActivated) kind() Kind     { return KindAgentActivated }
func (AgentPromoted) kind() Kind      { return KindAgentPromoted }
func (AgentStatusChanged) kind() Kind { return KindAgentStatusChanged }
func (AgentDespawned) kind() Kind     { return KindAgentDespawned }
func (AgentIdle) kind() Kind          { return KindAgentIdle }
func (TaskCreated) kind() Kind        { return KindTaskCreated }
func (MessageSent) kind() Kind        { return KindMessageSent }

func (p TaskTransition) kind() Kind {
	switch p.NewStatus {
	case model.TaskDone:
		return KindTaskCompleted
	case model.TaskCancelled:
		return KindTaskCancelled
	default:
		return KindTaskAdvanced
	}
}

func (p CreditChange) kind() Kind {
	if p.Transaction.Type == model.Debit {
		return KindCreditSpent
	}
	return KindCreditEarned
}
