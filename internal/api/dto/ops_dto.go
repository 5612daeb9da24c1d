package dto

import (
	"time"

	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/observability"
	"github.com/spec-kit/dispatch-service/internal/queue"
)

// AutonomyControlRequest pauses or rolls back autonomy at one scope.
type AutonomyControlRequest struct {
	ScopeType string `json:"scope_type"`
	ScopeID   string `json:"scope_id"`
	Reason    string `json:"reason"`
}

// Validate checks the scope and reason.
func (r AutonomyControlRequest) Validate() error {
	scopeType, ok := domain.ParseAutonomyScopeType(r.ScopeType)
	if !ok {
		return invalidField("scope_type", "must be one of GLOBAL, INCIDENT, TICKET")
	}
	if scopeType != domain.AutonomyScopeGlobal {
		if err := requireString(r.ScopeID, "scope_id"); err != nil {
			return err
		}
	}
	if scopeType == domain.AutonomyScopeTicket {
		if _, err := ParseTicketID(r.ScopeID); err != nil {
			return invalidField("scope_id", "must be a ticket uuid")
		}
	}
	return requireString(r.Reason, "reason")
}

// AutonomyControlResponse describes the appended history row.
type AutonomyControlResponse struct {
	HistoryID        string                   `json:"history_id"`
	ScopeType        domain.AutonomyScopeType `json:"scope_type"`
	ScopeID          string                   `json:"scope_id"`
	Action           domain.AutonomyAction    `json:"action"`
	PreviousIsPaused bool                     `json:"previous_is_paused"`
	IsPaused         bool                     `json:"is_paused"`
	Reason           string                   `json:"reason"`
	CreatedAt        time.Time                `json:"created_at"`
}

// AutonomyHistoryResponse is one history row.
type AutonomyHistoryResponse struct {
	ID               string                   `json:"id"`
	ScopeType        domain.AutonomyScopeType `json:"scope_type"`
	ScopeID          string                   `json:"scope_id"`
	Action           domain.AutonomyAction    `json:"action"`
	PreviousIsPaused bool                     `json:"previous_is_paused"`
	NextIsPaused     bool                     `json:"next_is_paused"`
	Reason           string                   `json:"reason"`
	ActorID          string                   `json:"actor_id"`
	ActorRole        string                   `json:"actor_role"`
	RequestID        string                   `json:"request_id"`
	CorrelationID    string                   `json:"correlation_id"`
	CreatedAt        time.Time                `json:"created_at"`
}

// NewAutonomyHistoryResponse maps a history row.
func NewAutonomyHistoryResponse(h domain.AutonomyHistory) AutonomyHistoryResponse {
	return AutonomyHistoryResponse{
		ID:               h.ID,
		ScopeType:        h.ScopeType,
		ScopeID:          h.ScopeID,
		Action:           h.Action,
		PreviousIsPaused: h.PreviousIsPaused,
		NextIsPaused:     h.NextIsPaused,
		Reason:           h.Reason,
		ActorID:          h.ActorID,
		ActorRole:        h.ActorRole,
		RequestID:        h.RequestID,
		CorrelationID:    h.CorrelationID,
		CreatedAt:        h.CreatedAt.UTC(),
	}
}

// AutonomyScopeState is the stored flag at one scope.
type AutonomyScopeState struct {
	ScopeType domain.AutonomyScopeType `json:"scope_type"`
	ScopeID   string                   `json:"scope_id"`
	IsPaused  bool                     `json:"is_paused"`
}

// AutonomyStateResponse is the resolved decision and the scopes behind it.
type AutonomyStateResponse struct {
	TicketID     string                  `json:"ticket_id,omitempty"`
	IncidentType string                  `json:"incident_type,omitempty"`
	Decision     domain.AutonomyDecision `json:"decision"`
	Scopes       []AutonomyScopeState    `json:"scopes"`
}

// AutonomyReplayResponse is a ticket's applicable history, newest first.
type AutonomyReplayResponse struct {
	TicketID     string                    `json:"ticket_id"`
	IncidentType string                    `json:"incident_type"`
	Decision     domain.AutonomyDecision   `json:"decision"`
	History      []AutonomyHistoryResponse `json:"history"`
}

// QueueResponse is the dispatcher cockpit queue.
type QueueResponse struct {
	GeneratedAt time.Time   `json:"generated_at"`
	Queue       []queue.Row `json:"queue"`
}

// AlertsResponse lists active alerts.
type AlertsResponse struct {
	GeneratedAt time.Time             `json:"generated_at"`
	Alerts      []observability.Alert `json:"alerts"`
}
