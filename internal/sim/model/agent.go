package model

import "time"

type AgentRole string

const (
	RoleHR      AgentRole = "hr"
	RoleManager AgentRole = "manager"
	RoleSenior  AgentRole = "senior"
	RoleWorker  AgentRole = "worker"
)

type AgentStatus string

const (
	AgentPending   AgentStatus = "pending"
	AgentActive    AgentStatus = "active"
	AgentPaused    AgentStatus = "paused"
	AgentSuspended AgentStatus = "suspended"
	AgentRevoked   AgentStatus = "revoked"
)

// AgentStatuses lists every status in lifecycle order.
var AgentStatuses = []AgentStatus{AgentPending, AgentActive, AgentPaused, AgentSuspended, AgentRevoked}

func (s AgentStatus) Valid() bool {
	switch s {
	case AgentPending, AgentActive, AgentPaused, AgentSuspended, AgentRevoked:
		return true
	}
	return false
}

type ReputationLevel string

const (
	ReputationNew       ReputationLevel = "NEW"
	ReputationProbation ReputationLevel = "PROBATION"
	ReputationTrusted   ReputationLevel = "TRUSTED"
	ReputationVeteran   ReputationLevel = "VETERAN"
	ReputationElite     ReputationLevel = "ELITE"
)

const (
	MinLevel = 1
	MaxLevel = 10

	DefaultTrustScore = 50
	MaxTrustScore     = 100
)

// Agent is one member of the simulated organization.
//
// CurrentBalance and LifetimeEarnings are derived from OpeningBalance,
// OpeningEarnings and the credit ledger; the engine fills them in on every
// snapshot it hands out and never reads them back.
type Agent struct {
	ID      string      `json:"id"`
	AgentID string      `json:"agentId"`
	Name    string      `json:"name"`
	Role    AgentRole   `json:"role"`
	Level   int         `json:"level"`
	Status  AgentStatus `json:"status"`
	Model   string      `json:"model,omitempty"`
	Domain  string      `json:"domain,omitempty"`

	ParentID  string    `json:"parentId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`

	OpeningBalance   int64 `json:"openingBalance"`
	OpeningEarnings  int64 `json:"openingEarnings"`
	CurrentBalance   int64 `json:"currentBalance"`
	LifetimeEarnings int64 `json:"lifetimeEarnings"`

	TrustScore      int             `json:"trustScore"`
	ReputationLevel ReputationLevel `json:"reputationLevel,omitempty"`
	TasksCompleted  int             `json:"tasksCompleted"`
	LastActivityAt  *time.Time      `json:"lastActivityAt,omitempty"`
	LastPromotionAt *time.Time      `json:"lastPromotionAt,omitempty"`
}

func (a Agent) Clone() Agent {
	out := a
	out.LastActivityAt = cloneTime(a.LastActivityAt)
	out.LastPromotionAt = cloneTime(a.LastPromotionAt)
	return out
}

// IsLowLevel reports whether the agent belongs to the despawnable worker tier.
func (a *Agent) IsLowLevel() bool { return a.Level >= 1 && a.Level <= 4 }

// AdjustTrust applies delta clamped to [0,100] and refreshes the reputation level.
func (a *Agent) AdjustTrust(delta int) {
	a.TrustScore += delta
	if a.TrustScore < 0 {
		a.TrustScore = 0
	}
	if a.TrustScore > MaxTrustScore {
		a.TrustScore = MaxTrustScore
	}
	a.ReputationLevel = ReputationFor(a.TrustScore, a.TasksCompleted)
}

// ReputationFor maps a trust score to a reputation tier. Agents that have not
// completed any work stay NEW regardless of score.
func ReputationFor(score, tasksCompleted int) ReputationLevel {
	if tasksCompleted == 0 {
		return ReputationNew
	}
	switch {
	case score >= 90:
		return ReputationElite
	case score >= 75:
		return ReputationVeteran
	case score >= 55:
		return ReputationTrusted
	case score >= 30:
		return ReputationProbation
	default:
		return ReputationNew
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
