package model

import "time"

type MessageType string

const (
	MessageTask       MessageType = "task"
	MessageStatus     MessageType = "status"
	MessageReport     MessageType = "report"
	MessageQuestion   MessageType = "question"
	MessageEscalation MessageType = "escalation"
	MessageGeneral    MessageType = "general"
)

type Message struct {
	ID          string      `json:"id"`
	FromAgentID string      `json:"fromAgentId"`
	ToAgentID   string      `json:"toAgentId"`
	Content     string      `json:"content"`
	Type        MessageType `json:"type"`
	TaskRef     string      `json:"taskRef,omitempty"`
	Read        bool        `json:"read"`
	CreatedAt   time.Time   `json:"createdAt"`
}
