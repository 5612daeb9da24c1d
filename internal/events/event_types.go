package events

import (
	"time"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated        EventType = "ticket_created"
	EventTicketStateChanged   EventType = "ticket_state_changed"
	EventTicketDispatched     EventType = "ticket_dispatched"
	EventEvidenceAdded        EventType = "evidence_added"
	EventScheduleHoldResolved EventType = "schedule_hold_resolved"
	EventAutonomyChanged      EventType = "autonomy_changed"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type domain.ActorType `json:"type"`
	ID   string           `json:"id"`
	Role string           `json:"role"`
}

// ActorFrom copies the identity fields of an actor context.
func ActorFrom(actor domain.ActorContext) Actor {
	return Actor{Type: actor.Type, ID: actor.ActorID, Role: actor.Role}
}

// Event represents a domain event emitted after a command commits.
type Event struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	TicketID      string    `json:"ticket_id,omitempty"`
	CorrelationID string    `json:"correlation_id"`
	Actor         Actor     `json:"actor"`
	Timestamp     time.Time `json:"timestamp"`
	Payload       any       `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	AccountID string             `json:"account_id"`
	SiteID    string             `json:"site_id"`
	State     domain.TicketState `json:"state"`
	Summary   string             `json:"summary"`
}

// TicketStateChangedPayload payload.
type TicketStateChangedPayload struct {
	FromState domain.TicketState `json:"from_state"`
	ToState   domain.TicketState `json:"to_state"`
	Endpoint  string             `json:"endpoint"`
}

// TicketDispatchedPayload payload.
type TicketDispatchedPayload struct {
	TechID                   string `json:"tech_id"`
	ProviderID               string `json:"provider_id,omitempty"`
	RecommendationSnapshotID string `json:"recommendation_snapshot_id,omitempty"`
	DispatchMode             string `json:"dispatch_mode"`
}

// EvidenceAddedPayload payload.
type EvidenceAddedPayload struct {
	EvidenceItemID string `json:"evidence_item_id"`
	Kind           string `json:"kind"`
	EvidenceKey    string `json:"evidence_key,omitempty"`
}

// ScheduleHoldResolvedPayload payload.
type ScheduleHoldResolvedPayload struct {
	HoldID     string            `json:"hold_id"`
	SnapshotID string            `json:"snapshot_id"`
	Status     domain.HoldStatus `json:"status"`
}

// AutonomyChangedPayload payload.
type AutonomyChangedPayload struct {
	ScopeType domain.AutonomyScopeType `json:"scope_type"`
	ScopeID   string                   `json:"scope_id"`
	Action    domain.AutonomyAction    `json:"action"`
	IsPaused  bool                     `json:"is_paused"`
	Reason    string                   `json:"reason"`
}
