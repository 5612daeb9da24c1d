package domain

import "time"

// HoldStatus tracks whether a schedule hold is still open.
type HoldStatus string

const (
	HoldStatusActive     HoldStatus = "ACTIVE"
	HoldStatusReleased   HoldStatus = "RELEASED"
	HoldStatusRolledBack HoldStatus = "ROLLED_BACK"
)

// ScheduleHold snapshots the scheduled window taken at hold time.
type ScheduleHold struct {
	HoldID             string
	SnapshotID         string
	TicketID           string
	PreviousState      TicketState
	PreviousWindow     *ScheduleWindow
	HoldReason         string
	ConfirmationWindow ScheduleWindow
	Status             HoldStatus
	ResolutionReason   *string
	ResolvedAt         *time.Time
	CreatedAt          time.Time
}

// IsStale reports whether the confirmation window has ended at now.
// The boundary instant counts as stale.
func (h ScheduleHold) IsStale(now time.Time) bool {
	return !now.Before(h.ConfirmationWindow.End)
}
