package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// Stable error codes returned to callers.
const (
	CodeInvalidRequest                   = "INVALID_REQUEST"
	CodeInvalidTicketID                  = "INVALID_TICKET_ID"
	CodeMissingActorContext              = "MISSING_ACTOR_CONTEXT"
	CodeInvalidActorContext              = "INVALID_ACTOR_CONTEXT"
	CodeUnauthorized                     = "UNAUTHORIZED"
	CodeForbidden                        = "FORBIDDEN"
	CodeForbiddenScope                   = "FORBIDDEN_SCOPE"
	CodeToolNotAllowed                   = "TOOL_NOT_ALLOWED"
	CodeMissingIdempotencyKey            = "MISSING_IDEMPOTENCY_KEY"
	CodeInvalidIdempotencyKey            = "INVALID_IDEMPOTENCY_KEY"
	CodeIdempotencyPayloadMismatch       = "IDEMPOTENCY_PAYLOAD_MISMATCH"
	CodeInvalidStateTransition           = "INVALID_STATE_TRANSITION"
	CodeScheduleHoldStateConflict        = "SCHEDULE_HOLD_STATE_CONFLICT"
	CodeCustomerConfirmationStale        = "CUSTOMER_CONFIRMATION_STALE"
	CodeCloseoutRequirementsIncomplete   = "CLOSEOUT_REQUIREMENTS_INCOMPLETE"
	CodeAssignmentRecommendationMismatch = "ASSIGNMENT_RECOMMENDATION_MISMATCH"
	CodeAssignmentCapabilityMismatch     = "ASSIGNMENT_CAPABILITY_MISMATCH"
	CodeAssignmentZoneMismatch           = "ASSIGNMENT_ZONE_MISMATCH"
	CodeAssignmentNotFound               = "ASSIGNMENT_NOT_FOUND"
	CodeAutonomyDisabled                 = "AUTONOMY_DISABLED"
	CodeTicketNotFound                   = "TICKET_NOT_FOUND"
	CodeNotFound                         = "NOT_FOUND"
	CodeInternal                         = "INTERNAL_ERROR"
)

// Dimension tags tell clients which gate blocked an action.
const (
	DimensionRole     = "role"
	DimensionTool     = "tool"
	DimensionState    = "state"
	DimensionScope    = "scope"
	DimensionEvidence = "evidence"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches on code so callers can use errors.Is with a template error.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewInvalidRequest(message string, details map[string]any) error {
	return NewDomainError(CodeInvalidRequest, message, http.StatusBadRequest, details)
}

func NewInvalidTicketID(ticketID string) error {
	return NewDomainError(CodeInvalidTicketID, "ticket id must be a uuid", http.StatusBadRequest, map[string]any{
		"ticket_id": ticketID,
	})
}

func NewMissingActorContext(message string) error {
	return NewDomainError(CodeMissingActorContext, message, http.StatusBadRequest, nil)
}

func NewInvalidActorContext(message string, details map[string]any) error {
	return NewDomainError(CodeInvalidActorContext, message, http.StatusBadRequest, details)
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(endpoint, role string) error {
	return NewDomainError(CodeForbidden, "role is not allowed for this endpoint", http.StatusForbidden, map[string]any{
		"endpoint":  endpoint,
		"role":      role,
		"dimension": DimensionRole,
	})
}

func NewForbiddenScope(endpoint, ticketID string) error {
	return NewDomainError(CodeForbiddenScope, "actor scope does not cover this ticket", http.StatusForbidden, map[string]any{
		"endpoint":  endpoint,
		"ticket_id": ticketID,
		"dimension": DimensionScope,
	})
}

func NewToolNotAllowed(endpoint, toolName string) error {
	return NewDomainError(CodeToolNotAllowed, "tool is not allowed for this endpoint", http.StatusForbidden, map[string]any{
		"endpoint":  endpoint,
		"tool_name": toolName,
		"dimension": DimensionTool,
	})
}

func NewMissingIdempotencyKey() error {
	return NewDomainError(CodeMissingIdempotencyKey, "Idempotency-Key header is required", http.StatusBadRequest, nil)
}

func NewInvalidIdempotencyKey(value string) error {
	return NewDomainError(CodeInvalidIdempotencyKey, "Idempotency-Key must be a uuid", http.StatusBadRequest, map[string]any{
		"idempotency_key": value,
	})
}

func NewIdempotencyPayloadMismatch(requestID string) error {
	return NewDomainError(CodeIdempotencyPayloadMismatch, "idempotency key reused with a different payload", http.StatusConflict, map[string]any{
		"request_id": requestID,
	})
}

func NewInvalidStateTransition(fromState, toState string) error {
	return NewDomainError(CodeInvalidStateTransition, "transition is not allowed from the current state", http.StatusConflict, map[string]any{
		"from_state": fromState,
		"to_state":   toState,
		"dimension":  DimensionState,
	})
}

func NewScheduleHoldStateConflict(message string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	details["dimension"] = DimensionState
	return NewDomainError(CodeScheduleHoldStateConflict, message, http.StatusConflict, details)
}

func NewCustomerConfirmationStale(holdID, snapshotID string) error {
	return NewDomainError(CodeCustomerConfirmationStale, "customer confirmation window has elapsed", http.StatusConflict, map[string]any{
		"hold_id":     holdID,
		"snapshot_id": snapshotID,
	})
}

func NewCloseoutIncomplete(details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	details["dimension"] = DimensionEvidence
	return NewDomainError(CodeCloseoutRequirementsIncomplete, "closeout requirements are incomplete", http.StatusConflict, details)
}

func NewAssignmentRecommendationMismatch(snapshotID, techID string) error {
	return NewDomainError(CodeAssignmentRecommendationMismatch, "technician does not match the latest recommendation snapshot", http.StatusConflict, map[string]any{
		"recommendation_snapshot_id": snapshotID,
		"tech_id":                    techID,
	})
}

func NewAssignmentCapabilityMismatch(techID, serviceType string) error {
	return NewDomainError(CodeAssignmentCapabilityMismatch, "technician lacks the required capability", http.StatusConflict, map[string]any{
		"tech_id":      techID,
		"service_type": serviceType,
	})
}

func NewAssignmentZoneMismatch(techID, region string) error {
	return NewDomainError(CodeAssignmentZoneMismatch, "technician does not serve the ticket region", http.StatusConflict, map[string]any{
		"tech_id": techID,
		"region":  region,
	})
}

func NewAssignmentNotFound(techID string) error {
	return NewDomainError(CodeAssignmentNotFound, "technician not found", http.StatusConflict, map[string]any{
		"tech_id": techID,
	})
}

func NewAutonomyDisabled(scopeType, scopeID string) error {
	return NewDomainError(CodeAutonomyDisabled, "autonomy is paused for this scope", http.StatusConflict, map[string]any{
		"scope_type": scopeType,
		"scope_id":   scopeID,
	})
}

func NewTicketNotFound(ticketID string) error {
	return NewDomainError(CodeTicketNotFound, "ticket not found", http.StatusNotFound, map[string]any{
		"ticket_id": ticketID,
	})
}

func NewNotFound(resource string, details map[string]any) error {
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound, details)
}

// NewInternalError hides err behind an opaque reference id.
func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"reference": uuid.NewString()},
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return NewInternalError(err).(*DomainError)
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
