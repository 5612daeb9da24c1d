package domain

import (
	"encoding/json"
	"time"
)

// AuditEvent is an immutable record of one mutating command.
type AuditEvent struct {
	ID            string
	TicketID      string
	ActorType     ActorType
	ActorID       string
	ActorRole     string
	ToolName      string
	RequestID     string
	CorrelationID string
	TraceID       *string
	BeforeState   *TicketState
	AfterState    TicketState
	Payload       AuditPayload
	CreatedAt     time.Time
}

// StateTransition pairs a state change with the audit event that caused it.
type StateTransition struct {
	ID           string
	TicketID     string
	FromState    *TicketState
	ToState      TicketState
	AuditEventID string
	CreatedAt    time.Time
}

// AuditPayload is the structured document stored with each audit event.
// Request carries the raw command body so the ledger stays schema-agnostic.
type AuditPayload struct {
	Endpoint                 string            `json:"endpoint"`
	RequestedAt              time.Time         `json:"requested_at"`
	Request                  json.RawMessage   `json:"request"`
	DispatchMode             string            `json:"dispatch_mode,omitempty"`
	EvidenceItemID           string            `json:"evidence_item_id,omitempty"`
	CloseoutCheck            *CloseoutCheck    `json:"closeout_check,omitempty"`
	PersistedEvidenceCount   *int              `json:"persisted_evidence_count,omitempty"`
	HoldID                   string            `json:"hold_id,omitempty"`
	SnapshotID               string            `json:"snapshot_id,omitempty"`
	RecommendationSnapshotID string            `json:"recommendation_snapshot_id,omitempty"`
	AutonomyDecision         *AutonomyDecision `json:"autonomy_decision,omitempty"`
}
