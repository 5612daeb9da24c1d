package domain

import (
	"strings"
	"time"
)

// AutonomyScopeType is the granularity of an autonomy decision.
type AutonomyScopeType string

const (
	AutonomyScopeGlobal   AutonomyScopeType = "GLOBAL"
	AutonomyScopeIncident AutonomyScopeType = "INCIDENT"
	AutonomyScopeTicket   AutonomyScopeType = "TICKET"
)

// GlobalScopeID identifies the single GLOBAL scope row.
const GlobalScopeID = "global"

// ParseAutonomyScopeType validates a scope type.
func ParseAutonomyScopeType(value string) (AutonomyScopeType, bool) {
	switch s := AutonomyScopeType(strings.ToUpper(strings.TrimSpace(value))); s {
	case AutonomyScopeGlobal, AutonomyScopeIncident, AutonomyScopeTicket:
		return s, true
	}
	return "", false
}

// AutonomyScopeRef identifies one decision scope.
type AutonomyScopeRef struct {
	Type AutonomyScopeType
	ID   string
}

// String renders the scope for logging and lock names.
func (r AutonomyScopeRef) String() string {
	return string(r.Type) + ":" + r.ID
}

// AutonomyAction is what an operator did to a scope.
type AutonomyAction string

const (
	AutonomyActionPause    AutonomyAction = "pause"
	AutonomyActionRollback AutonomyAction = "rollback"
)

// AutonomyHistory is one append-only pause/rollback record.
type AutonomyHistory struct {
	ID               string
	ScopeType        AutonomyScopeType
	ScopeID          string
	Action           AutonomyAction
	PreviousIsPaused bool
	NextIsPaused     bool
	Reason           string
	ActorID          string
	ActorRole        string
	RequestID        string
	CorrelationID    string
	CreatedAt        time.Time
}

// AutonomyDecisionSource says where a resolved decision came from.
type AutonomyDecisionSource string

const (
	DecisionSourceHistory AutonomyDecisionSource = "history"
	DecisionSourceConfig  AutonomyDecisionSource = "config"
	DecisionSourceDefault AutonomyDecisionSource = "default"
)

// AutonomyDecision is the resolved pause state for a ticket context.
type AutonomyDecision struct {
	ScopeType AutonomyScopeType      `json:"scope_type"`
	ScopeID   string                 `json:"scope_id"`
	IsPaused  bool                   `json:"is_paused"`
	Source    AutonomyDecisionSource `json:"source"`
}
