package dto

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/dispatch-service/internal/domain"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util/errorutil"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	AccountID   string  `json:"account_id"`
	SiteID      string  `json:"site_id"`
	AssetID     *string `json:"asset_id"`
	Summary     string  `json:"summary"`
	Description *string `json:"description"`
	NTECents    *int64  `json:"nte_cents"`
}

// Validate checks required fields.
func (r CreateTicketRequest) Validate() error {
	if err := requireString(r.AccountID, "account_id"); err != nil {
		return err
	}
	if err := requireString(r.SiteID, "site_id"); err != nil {
		return err
	}
	if r.AssetID != nil {
		if err := requireString(*r.AssetID, "asset_id"); err != nil {
			return err
		}
	}
	if err := requireString(r.Summary, "summary"); err != nil {
		return err
	}
	return nonNegative(r.NTECents, "nte_cents")
}

// IntakeRequest is a blind intake from a phone or chat agent.
type IntakeRequest struct {
	CreateTicketRequest
	CustomerName             string   `json:"customer_name"`
	ContactPhone             string   `json:"contact_phone"`
	IncidentType             string   `json:"incident_type"`
	Priority                 string   `json:"priority"`
	IdentityConfidence       *float64 `json:"identity_confidence"`
	ClassificationConfidence *float64 `json:"classification_confidence"`
	SOPHandoffAcknowledged   bool     `json:"sop_handoff_acknowledged"`
}

// Validate checks required fields and confidence ranges.
func (r IntakeRequest) Validate() error {
	if err := r.CreateTicketRequest.Validate(); err != nil {
		return err
	}
	if err := requireString(r.IncidentType, "incident_type"); err != nil {
		return err
	}
	if _, ok := domain.ParsePriority(r.Priority); !ok {
		return invalidField("priority", "must be one of EMERGENCY, URGENT, ROUTINE")
	}
	if err := unitInterval(r.IdentityConfidence, "identity_confidence"); err != nil {
		return err
	}
	return unitInterval(r.ClassificationConfidence, "classification_confidence")
}

// Confident reports whether both confidences reach threshold and the SOP handoff happened.
func (r IntakeRequest) Confident(threshold float64) bool {
	if r.IdentityConfidence == nil || r.ClassificationConfidence == nil {
		return false
	}
	return r.SOPHandoffAcknowledged && *r.IdentityConfidence >= threshold && *r.ClassificationConfidence >= threshold
}

// TriageRequest payload.
type TriageRequest struct {
	Priority     string `json:"priority"`
	IncidentType string `json:"incident_type"`
	NTECents     *int64 `json:"nte_cents"`
}

// Validate checks priority, incident type and not-to-exceed amount.
func (r TriageRequest) Validate() error {
	if err := requireString(r.Priority, "priority"); err != nil {
		return err
	}
	if _, ok := domain.ParsePriority(r.Priority); !ok {
		return invalidField("priority", "must be one of EMERGENCY, URGENT, ROUTINE")
	}
	if err := requireString(r.IncidentType, "incident_type"); err != nil {
		return err
	}
	return nonNegative(r.NTECents, "nte_cents")
}

// CheckInRequest payload.
type CheckInRequest struct {
	ArrivedAt *time.Time `json:"arrived_at"`
	Location  string     `json:"location"`
}

// VerifyRequest payload.
type VerifyRequest struct {
	Result string `json:"result"`
	Notes  string `json:"notes"`
}

// VerifyResultPass is the only accepted QA result.
const VerifyResultPass = "PASS"

// Validate requires a PASS result.
func (r VerifyRequest) Validate() error {
	if !strings.EqualFold(strings.TrimSpace(r.Result), VerifyResultPass) {
		return invalidField("result", "must be PASS")
	}
	return nil
}

// InvoiceRequest payload.
type InvoiceRequest struct {
	InvoiceNumber string `json:"invoice_number"`
	AmountCents   *int64 `json:"amount_cents"`
}

// Validate checks the optional amount.
func (r InvoiceRequest) Validate() error {
	return nonNegative(r.AmountCents, "amount_cents")
}

// TicketResponse is the public ticket representation.
type TicketResponse struct {
	ID                 string                 `json:"id"`
	AccountID          string                 `json:"account_id"`
	SiteID             string                 `json:"site_id"`
	AssetID            *string                `json:"asset_id"`
	State              domain.TicketState     `json:"state"`
	Priority           *domain.TicketPriority `json:"priority"`
	IncidentType       *string                `json:"incident_type"`
	Summary            string                 `json:"summary"`
	Description        *string                `json:"description"`
	NTECents           int64                  `json:"nte_cents"`
	ScheduledStart     *time.Time             `json:"scheduled_start"`
	ScheduledEnd       *time.Time             `json:"scheduled_end"`
	AssignedProviderID *string                `json:"assigned_provider_id"`
	AssignedTechID     *string                `json:"assigned_tech_id"`
	Version            int64                  `json:"version"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
}

// NewTicketResponse maps the aggregate to its response.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	var nte int64
	if t.NTECents != nil {
		nte = *t.NTECents
	}
	return TicketResponse{
		ID:                 t.ID,
		AccountID:          t.AccountID,
		SiteID:             t.SiteID,
		AssetID:            t.AssetID,
		State:              t.State,
		Priority:           t.Priority,
		IncidentType:       t.IncidentType,
		Summary:            t.Summary,
		Description:        t.Description,
		NTECents:           nte,
		ScheduledStart:     utcPtr(t.ScheduledStart),
		ScheduledEnd:       utcPtr(t.ScheduledEnd),
		AssignedProviderID: t.AssignedProviderID,
		AssignedTechID:     t.AssignedTechID,
		Version:            t.Version,
		CreatedAt:          t.CreatedAt.UTC(),
		UpdatedAt:          t.UpdatedAt.UTC(),
	}
}

// AuditEventResponse is one timeline entry.
type AuditEventResponse struct {
	ID            string              `json:"id"`
	TicketID      string              `json:"ticket_id"`
	ActorType     domain.ActorType    `json:"actor_type"`
	ActorID       string              `json:"actor_id"`
	ActorRole     string              `json:"actor_role"`
	ToolName      string              `json:"tool_name"`
	RequestID     string              `json:"request_id"`
	CorrelationID string              `json:"correlation_id"`
	TraceID       *string             `json:"trace_id"`
	BeforeState   *domain.TicketState `json:"before_state"`
	AfterState    domain.TicketState  `json:"after_state"`
	Payload       domain.AuditPayload `json:"payload"`
	CreatedAt     time.Time           `json:"created_at"`
}

// TimelineResponse lists a ticket's audit events oldest first.
type TimelineResponse struct {
	TicketID string               `json:"ticket_id"`
	Events   []AuditEventResponse `json:"events"`
}

// NewTimelineResponse maps ledger events.
func NewTimelineResponse(ticketID string, events []domain.AuditEvent) TimelineResponse {
	out := TimelineResponse{TicketID: ticketID, Events: make([]AuditEventResponse, 0, len(events))}
	for _, e := range events {
		out.Events = append(out.Events, AuditEventResponse{
			ID:            e.ID,
			TicketID:      e.TicketID,
			ActorType:     e.ActorType,
			ActorID:       e.ActorID,
			ActorRole:     e.ActorRole,
			ToolName:      e.ToolName,
			RequestID:     e.RequestID,
			CorrelationID: e.CorrelationID,
			TraceID:       e.TraceID,
			BeforeState:   e.BeforeState,
			AfterState:    e.AfterState,
			Payload:       e.Payload,
			CreatedAt:     e.CreatedAt.UTC(),
		})
	}
	return out
}

// DecodeStrict unmarshals a JSON object, rejecting anything else.
func DecodeStrict(body []byte, dst any) error {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		trimmed = "{}"
	}
	if !strings.HasPrefix(trimmed, "{") {
		return apperrors.NewInvalidRequest("request body must be a JSON object", nil)
	}
	if err := json.Unmarshal([]byte(trimmed), dst); err != nil {
		return apperrors.NewInvalidRequest("request body is invalid", map[string]any{"reason": err.Error()})
	}
	return nil
}

// ParseTicketID validates a path ticket id and returns its canonical form.
func ParseTicketID(raw string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", apperrors.NewInvalidTicketID(raw)
	}
	return id.String(), nil
}

func requireString(value, field string) error {
	if strings.TrimSpace(value) == "" {
		return invalidField(field, "is required")
	}
	return nil
}

func nonNegative(value *int64, field string) error {
	if value != nil && *value < 0 {
		return invalidField(field, "must be a non-negative number")
	}
	return nil
}

func unitInterval(value *float64, field string) error {
	if value != nil && (*value < 0 || *value > 1) {
		return invalidField(field, "must be between 0 and 1")
	}
	return nil
}

func invalidField(field, reason string) error {
	return apperrors.NewInvalidRequest("Field '"+field+"' "+reason, map[string]any{"field": field})
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
