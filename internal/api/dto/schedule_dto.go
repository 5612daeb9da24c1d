package dto

import (
	"strings"
	"time"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

// WindowRequest is a start/end pair in RFC 3339.
type WindowRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate requires both bounds with start before end.
func (w WindowRequest) Validate(field string) error {
	if w.Start.IsZero() || w.End.IsZero() {
		return invalidField(field, "requires start and end")
	}
	if !w.Start.Before(w.End) {
		return invalidField(field, "start must be before end")
	}
	return nil
}

// Window converts to the domain type in UTC.
func (w WindowRequest) Window() domain.ScheduleWindow {
	return domain.ScheduleWindow{Start: w.Start.UTC(), End: w.End.UTC()}
}

// ProposeScheduleRequest payload.
type ProposeScheduleRequest struct {
	Options []WindowRequest `json:"options"`
}

// Validate requires at least one well-formed option.
func (r ProposeScheduleRequest) Validate() error {
	if len(r.Options) == 0 {
		return invalidField("options", "must contain at least one window")
	}
	for _, o := range r.Options {
		if err := o.Validate("options"); err != nil {
			return err
		}
	}
	return nil
}

// ConfirmScheduleRequest payload.
type ConfirmScheduleRequest struct {
	WindowRequest
}

// Validate checks the confirmed window.
func (r ConfirmScheduleRequest) Validate() error {
	return r.WindowRequest.Validate("start")
}

// ScheduleHoldRequest payload.
type ScheduleHoldRequest struct {
	HoldReason         string         `json:"hold_reason"`
	ConfirmationWindow *WindowRequest `json:"confirmation_window"`
}

// Validate checks the reason and confirmation window.
func (r ScheduleHoldRequest) Validate() error {
	if err := requireString(r.HoldReason, "hold_reason"); err != nil {
		return err
	}
	if r.ConfirmationWindow == nil {
		return invalidField("confirmation_window", "is required")
	}
	return r.ConfirmationWindow.Validate("confirmation_window")
}

// ScheduleReleaseRequest names the hold the customer confirmed.
type ScheduleReleaseRequest struct {
	CustomerConfirmationLog string `json:"customer_confirmation_log"`
}

// Validate checks the hold reference.
func (r ScheduleReleaseRequest) Validate() error {
	return requireString(r.CustomerConfirmationLog, "customer_confirmation_log")
}

// HoldID returns the referenced hold id.
func (r ScheduleReleaseRequest) HoldID() string {
	return strings.TrimSpace(r.CustomerConfirmationLog)
}

// ScheduleRollbackRequest payload.
type ScheduleRollbackRequest struct {
	ConfirmationID string `json:"confirmation_id"`
	Reason         string `json:"reason"`
}

// Validate checks the hold reference and reason.
func (r ScheduleRollbackRequest) Validate() error {
	if err := requireString(r.ConfirmationID, "confirmation_id"); err != nil {
		return err
	}
	return requireString(r.Reason, "reason")
}

// ProposeScheduleResponse echoes the proposed options.
type ProposeScheduleResponse struct {
	Ticket  TicketResponse          `json:"ticket"`
	Options []domain.ScheduleWindow `json:"options"`
}

// ScheduleHoldResponse is returned when a hold opens.
type ScheduleHoldResponse struct {
	Ticket     TicketResponse `json:"ticket"`
	HoldID     string         `json:"hold_id"`
	SnapshotID string         `json:"snapshot_id"`
}

// ScheduleRestoreResponse is returned by release and rollback.
type ScheduleRestoreResponse struct {
	Ticket         TicketResponse         `json:"ticket"`
	RestoredState  domain.TicketState     `json:"restored_state"`
	HoldID         string                 `json:"hold_id"`
	SnapshotID     string                 `json:"snapshot_id"`
	RestoredWindow *domain.ScheduleWindow `json:"restored_window"`
}
