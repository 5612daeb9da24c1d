// Package autonomy resolves hierarchical pause decisions for autonomous actions.
package autonomy

import (
	"strings"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

// ScopeKey identifies one decision scope.
type ScopeKey = domain.AutonomyScopeRef

func GlobalScope() ScopeKey {
	return ScopeKey{Type: domain.AutonomyScopeGlobal, ID: domain.GlobalScopeID}
}

func IncidentScope(incidentType string) ScopeKey {
	return ScopeKey{Type: domain.AutonomyScopeIncident, ID: domain.NormalizeIncidentType(incidentType)}
}

func TicketScope(ticketID string) ScopeKey {
	return ScopeKey{Type: domain.AutonomyScopeTicket, ID: strings.ToLower(strings.TrimSpace(ticketID))}
}

// Target is the ticket context a decision is resolved for.
type Target struct {
	TicketID     string
	IncidentType string
}

// Scopes lists the applicable scopes, most specific first.
func (t Target) Scopes() []ScopeKey {
	scopes := make([]ScopeKey, 0, 3)
	if strings.TrimSpace(t.TicketID) != "" {
		scopes = append(scopes, TicketScope(t.TicketID))
	}
	if strings.TrimSpace(t.IncidentType) != "" {
		scopes = append(scopes, IncidentScope(t.IncidentType))
	}
	return append(scopes, GlobalScope())
}

// Defaults are the startup pause flags used when a scope has no history.
type Defaults struct {
	GlobalPaused        bool
	PausedIncidentTypes []string
}

// Resolver is immutable after construction.
type Resolver struct {
	globalPaused    bool
	pausedIncidents map[string]struct{}
}

// NewResolver builds a resolver from startup defaults.
func NewResolver(defaults Defaults) *Resolver {
	paused := make(map[string]struct{}, len(defaults.PausedIncidentTypes))
	for _, it := range defaults.PausedIncidentTypes {
		if key := domain.NormalizeIncidentType(it); key != "" {
			paused[key] = struct{}{}
		}
	}
	return &Resolver{globalPaused: defaults.GlobalPaused, pausedIncidents: paused}
}

// configured reports the startup decision for a scope, if one exists.
func (r *Resolver) configured(key ScopeKey) (bool, bool) {
	switch key.Type {
	case domain.AutonomyScopeGlobal:
		if r.globalPaused {
			return true, true
		}
	case domain.AutonomyScopeIncident:
		if _, ok := r.pausedIncidents[key.ID]; ok {
			return true, true
		}
	}
	return false, false
}

// Current returns the paused flag stored at exactly this scope.
func (r *Resolver) Current(key ScopeKey, latest map[ScopeKey]domain.AutonomyHistory) bool {
	if h, ok := latest[key]; ok {
		return h.NextIsPaused
	}
	paused, _ := r.configured(key)
	return paused
}

// Resolve walks TICKET, INCIDENT, GLOBAL and returns the first scope with a decision.
// latest holds the newest history row per scope.
func (r *Resolver) Resolve(target Target, latest map[ScopeKey]domain.AutonomyHistory) domain.AutonomyDecision {
	for _, key := range target.Scopes() {
		if h, ok := latest[key]; ok {
			return domain.AutonomyDecision{
				ScopeType: key.Type,
				ScopeID:   key.ID,
				IsPaused:  h.NextIsPaused,
				Source:    domain.DecisionSourceHistory,
			}
		}
		if paused, ok := r.configured(key); ok {
			return domain.AutonomyDecision{
				ScopeType: key.Type,
				ScopeID:   key.ID,
				IsPaused:  paused,
				Source:    domain.DecisionSourceConfig,
			}
		}
	}
	global := GlobalScope()
	return domain.AutonomyDecision{
		ScopeType: global.Type,
		ScopeID:   global.ID,
		IsPaused:  false,
		Source:    domain.DecisionSourceDefault,
	}
}
