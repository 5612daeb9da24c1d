// Package queue derives the dispatcher SLA queue from committed ticket state.
package queue

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

// SLAStatus classifies a row by time remaining.
type SLAStatus string

const (
	SLABreach  SLAStatus = "breach"
	SLAWarning SLAStatus = "warning"
	SLAHealthy SLAStatus = "healthy"
)

const (
	regionWeightMin     = 10
	regionWeightMax     = 990
	regionWeightDefault = 500
	unknownPriorityRank = 9
)

// ActiveStates are the states shown on the dispatcher queue.
var ActiveStates = []domain.TicketState{
	domain.TicketStateReadyToSchedule,
	domain.TicketStateScheduleProposed,
	domain.TicketStateScheduled,
	domain.TicketStatePendingCustomerConfirmation,
	domain.TicketStateDispatched,
	domain.TicketStateInProgress,
}

// Config sets SLA budgets per priority.
type Config struct {
	PriorityMinutes map[domain.TicketPriority]int
	DefaultMinutes  int
	WarningMinutes  int
}

// DefaultConfig mirrors the contracted response times.
func DefaultConfig() Config {
	return Config{
		PriorityMinutes: map[domain.TicketPriority]int{
			domain.TicketPriorityEmergency: 60,
			domain.TicketPriorityUrgent:    240,
			domain.TicketPriorityRoutine:   1440,
		},
		DefaultMinutes: 1440,
		WarningMinutes: 60,
	}
}

// Entry is a ticket joined with its site region.
type Entry struct {
	Ticket domain.Ticket
	Region string
}

// Row is one line of the dispatcher queue.
type Row struct {
	TicketID                 string                `json:"ticket_id"`
	State                    domain.TicketState    `json:"state"`
	Priority                 domain.TicketPriority `json:"priority"`
	IncidentType             string                `json:"incident_type"`
	AccountID                string                `json:"account_id"`
	SiteID                   string                `json:"site_id"`
	Region                   string                `json:"region"`
	RegionWeight             int                   `json:"region_weight"`
	SLAStatus                SLAStatus             `json:"sla_status"`
	SLATimerRemainingMinutes int                   `json:"sla_timer_remaining_minutes"`
	SLADeadline              time.Time             `json:"sla_deadline"`
	ScheduledStart           *time.Time            `json:"scheduled_start"`
	ScheduledEnd             *time.Time            `json:"scheduled_end"`
	AssignedTechID           *string               `json:"assigned_tech_id"`
	LastUpdateAt             time.Time             `json:"last_update_at"`
	Version                  int64                 `json:"version"`
}

// Build projects entries into a totally ordered queue. Input order does not matter.
func Build(now time.Time, entries []Entry, cfg Config) []Row {
	rows := make([]Row, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, project(now, e, cfg))
	}
	sort.SliceStable(rows, func(i, j int) bool { return Less(rows[i], rows[j]) })
	return rows
}

func project(now time.Time, e Entry, cfg Config) Row {
	t := e.Ticket
	anchor := t.CreatedAt
	if t.ScheduledStart != nil {
		anchor = *t.ScheduledStart
	}
	deadline := anchor.Add(time.Duration(slaMinutes(t.PriorityValue(), cfg)) * time.Minute)
	remaining := int(math.Floor(deadline.Sub(now).Minutes()))

	return Row{
		TicketID:                 t.ID,
		State:                    t.State,
		Priority:                 t.PriorityValue(),
		IncidentType:             t.IncidentTypeValue(),
		AccountID:                t.AccountID,
		SiteID:                   t.SiteID,
		Region:                   e.Region,
		RegionWeight:             RegionWeight(e.Region),
		SLAStatus:                Classify(remaining, cfg),
		SLATimerRemainingMinutes: remaining,
		SLADeadline:              deadline.UTC(),
		ScheduledStart:           t.ScheduledStart,
		ScheduledEnd:             t.ScheduledEnd,
		AssignedTechID:           t.AssignedTechID,
		LastUpdateAt:             t.UpdatedAt.UTC(),
		Version:                  t.Version,
	}
}

func slaMinutes(p domain.TicketPriority, cfg Config) int {
	if m, ok := cfg.PriorityMinutes[p]; ok {
		return m
	}
	return cfg.DefaultMinutes
}

// Classify maps remaining minutes to an SLA status.
func Classify(remainingMinutes int, cfg Config) SLAStatus {
	switch {
	case remainingMinutes < 0:
		return SLABreach
	case remainingMinutes <= cfg.WarningMinutes:
		return SLAWarning
	default:
		return SLAHealthy
	}
}

func statusRank(s SLAStatus) int {
	switch s {
	case SLABreach:
		return 0
	case SLAWarning:
		return 1
	default:
		return 2
	}
}

// PriorityRank orders EMERGENCY before URGENT before ROUTINE before anything else.
func PriorityRank(p domain.TicketPriority) int {
	switch p {
	case domain.TicketPriorityEmergency:
		return 0
	case domain.TicketPriorityUrgent:
		return 1
	case domain.TicketPriorityRoutine:
		return 2
	default:
		return unknownPriorityRank
	}
}

// RegionWeight hashes a region code into [10, 990]; empty regions weigh 500.
func RegionWeight(region string) int {
	code := strings.ToUpper(strings.TrimSpace(region))
	if code == "" {
		return regionWeightDefault
	}
	seed := 0
	for _, r := range code {
		seed = (seed*31 + int(r)) % 100000
	}
	return regionWeightMin + seed%(regionWeightMax-regionWeightMin+1)
}

// Less is the queue comparator.
func Less(a, b Row) bool {
	if ra, rb := statusRank(a.SLAStatus), statusRank(b.SLAStatus); ra != rb {
		return ra < rb
	}
	if a.SLATimerRemainingMinutes != b.SLATimerRemainingMinutes {
		return a.SLATimerRemainingMinutes < b.SLATimerRemainingMinutes
	}
	if pa, pb := PriorityRank(a.Priority), PriorityRank(b.Priority); pa != pb {
		return pa < pb
	}
	if a.RegionWeight != b.RegionWeight {
		return a.RegionWeight < b.RegionWeight
	}
	if !a.LastUpdateAt.Equal(b.LastUpdateAt) {
		return a.LastUpdateAt.After(b.LastUpdateAt)
	}
	return a.TicketID < b.TicketID
}
