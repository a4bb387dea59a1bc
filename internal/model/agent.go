package model

import (
	"time"

	"github.com/google/uuid"
)

// AgentKind identifies the concrete behavior behind an agent record. The set
// is closed: every kind must be listed in AgentKinds and handled by the agent
// factory.
type AgentKind string

const (
	AgentKindBizDev AgentKind = "biz_dev"
)

// AgentKinds returns every declared agent kind.
func AgentKinds() []AgentKind {
	return []AgentKind{AgentKindBizDev}
}

// Valid reports whether k is a declared agent kind.
func (k AgentKind) Valid() bool {
	for _, known := range AgentKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// Agent is the durable record behind a capability-gated actor.
type Agent struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Role      AgentKind `json:"role"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// DirectoryUser is the identity an agent is mirrored into so that it can own
// messages and activities like any human user.
type DirectoryUser struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
	Role  string    `json:"role"`
}

// AuditEntry is one append-only record of an agent action.
type AuditEntry struct {
	ID        int64          `json:"id"`
	AgentID   uuid.UUID      `json:"agent_id"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details"`
	CreatedAt time.Time      `json:"created_at"`
}

// ResearchSessionStatus tracks the lifecycle of one prospect research run.
type ResearchSessionStatus string

const (
	ResearchRunning   ResearchSessionStatus = "running"
	ResearchCompleted ResearchSessionStatus = "completed"
	ResearchFailed    ResearchSessionStatus = "failed"
)

// ResearchSession is the durable record of researching one prospect ticket.
type ResearchSession struct {
	ID                 uuid.UUID             `json:"id"`
	AgentID            uuid.UUID             `json:"agent_id"`
	TicketID           uuid.UUID             `json:"ticket_id"`
	Status             ResearchSessionStatus `json:"status"`
	QualificationScore *float64              `json:"qualification_score,omitempty"`
	Summary            string                `json:"summary,omitempty"`
	Error              string                `json:"error,omitempty"`
	StartedAt          time.Time             `json:"started_at"`
	CompletedAt        *time.Time            `json:"completed_at,omitempty"`
}
