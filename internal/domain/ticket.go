package domain

import (
	"strings"
	"time"
)

// TicketState enumerates lifecycle states for service tickets.
type TicketState string

const (
	TicketStateNew                          TicketState = "NEW"
	TicketStateTriaged                      TicketState = "TRIAGED"
	TicketStateReadyToSchedule              TicketState = "READY_TO_SCHEDULE"
	TicketStateScheduleProposed             TicketState = "SCHEDULE_PROPOSED"
	TicketStateScheduled                    TicketState = "SCHEDULED"
	TicketStatePendingCustomerConfirmation  TicketState = "PENDING_CUSTOMER_CONFIRMATION"
	TicketStateDispatched                   TicketState = "DISPATCHED"
	TicketStateInProgress                   TicketState = "IN_PROGRESS"
	TicketStateCompletedPendingVerification TicketState = "COMPLETED_PENDING_VERIFICATION"
	TicketStateVerified                     TicketState = "VERIFIED"
	TicketStateInvoiced                     TicketState = "INVOICED"
)

// TicketStates lists every state in lifecycle order.
var TicketStates = []TicketState{
	TicketStateNew,
	TicketStateTriaged,
	TicketStateReadyToSchedule,
	TicketStateScheduleProposed,
	TicketStateScheduled,
	TicketStatePendingCustomerConfirmation,
	TicketStateDispatched,
	TicketStateInProgress,
	TicketStateCompletedPendingVerification,
	TicketStateVerified,
	TicketStateInvoiced,
}

// Valid reports whether s is a known state.
func (s TicketState) Valid() bool {
	for _, candidate := range TicketStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityEmergency TicketPriority = "EMERGENCY"
	TicketPriorityUrgent    TicketPriority = "URGENT"
	TicketPriorityRoutine   TicketPriority = "ROUTINE"
)

// ParsePriority normalizes and validates a priority value.
func ParsePriority(value string) (TicketPriority, bool) {
	p := TicketPriority(strings.ToUpper(strings.TrimSpace(value)))
	switch p {
	case TicketPriorityEmergency, TicketPriorityUrgent, TicketPriorityRoutine:
		return p, true
	}
	return "", false
}

// ScheduleWindow is a closed time range for on-site work.
type ScheduleWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Ticket is the aggregate for field-service requests.
type Ticket struct {
	ID                 string
	AccountID          string
	SiteID             string
	AssetID            *string
	State              TicketState
	Priority           *TicketPriority
	IncidentType       *string
	Summary            string
	Description        *string
	NTECents           *int64
	ScheduledStart     *time.Time
	ScheduledEnd       *time.Time
	AssignedProviderID *string
	AssignedTechID     *string
	Version            int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Window returns the scheduled window when both bounds are set.
func (t *Ticket) Window() *ScheduleWindow {
	if t.ScheduledStart == nil || t.ScheduledEnd == nil {
		return nil
	}
	return &ScheduleWindow{Start: *t.ScheduledStart, End: *t.ScheduledEnd}
}

// SetWindow replaces the scheduled window; nil clears it.
func (t *Ticket) SetWindow(w *ScheduleWindow) {
	if w == nil {
		t.ScheduledStart, t.ScheduledEnd = nil, nil
		return
	}
	start, end := w.Start, w.End
	t.ScheduledStart, t.ScheduledEnd = &start, &end
}

// IncidentTypeValue returns the incident type or an empty string.
func (t *Ticket) IncidentTypeValue() string {
	if t.IncidentType == nil {
		return ""
	}
	return *t.IncidentType
}

// PriorityValue returns the priority or an empty string.
func (t *Ticket) PriorityValue() TicketPriority {
	if t.Priority == nil {
		return ""
	}
	return *t.Priority
}

// Clone returns a deep copy so callers never share pointer fields.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	c.AssetID = cloneString(t.AssetID)
	c.IncidentType = cloneString(t.IncidentType)
	c.Description = cloneString(t.Description)
	c.AssignedProviderID = cloneString(t.AssignedProviderID)
	c.AssignedTechID = cloneString(t.AssignedTechID)
	if t.Priority != nil {
		p := *t.Priority
		c.Priority = &p
	}
	if t.NTECents != nil {
		n := *t.NTECents
		c.NTECents = &n
	}
	if t.ScheduledStart != nil {
		s := *t.ScheduledStart
		c.ScheduledStart = &s
	}
	if t.ScheduledEnd != nil {
		e := *t.ScheduledEnd
		c.ScheduledEnd = &e
	}
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// NormalizeIncidentType canonicalizes incident type codes.
func NormalizeIncidentType(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}
