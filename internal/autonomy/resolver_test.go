package autonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/dispatch-service/internal/domain"
)

func history(key ScopeKey, paused bool) domain.AutonomyHistory {
	return domain.AutonomyHistory{ScopeType: key.Type, ScopeID: key.ID, NextIsPaused: paused}
}

func TestResolveScopePrecedence(t *testing.T) {
	r := NewResolver(Defaults{})
	ticketA := Target{TicketID: "A1B2", IncidentType: "door_wont_latch"}
	ticketB := Target{TicketID: "c3d4", IncidentType: "DOOR_WONT_LATCH"}

	latest := map[ScopeKey]domain.AutonomyHistory{
		GlobalScope():                    history(GlobalScope(), false),
		IncidentScope("DOOR_WONT_LATCH"): history(IncidentScope("DOOR_WONT_LATCH"), true),
	}

	d := r.Resolve(ticketA, latest)
	assert.True(t, d.IsPaused)
	assert.Equal(t, domain.AutonomyScopeIncident, d.ScopeType)
	assert.Equal(t, "DOOR_WONT_LATCH", d.ScopeID)

	latest[TicketScope("a1b2")] = history(TicketScope("a1b2"), false)

	d = r.Resolve(ticketA, latest)
	assert.False(t, d.IsPaused)
	assert.Equal(t, domain.AutonomyScopeTicket, d.ScopeType)
	assert.Equal(t, "a1b2", d.ScopeID)

	d = r.Resolve(ticketB, latest)
	assert.True(t, d.IsPaused)
	assert.Equal(t, domain.AutonomyScopeIncident, d.ScopeType)
}

func TestResolveDefaults(t *testing.T) {
	d := NewResolver(Defaults{}).Resolve(Target{TicketID: "t"}, nil)
	assert.False(t, d.IsPaused)
	assert.Equal(t, domain.AutonomyScopeGlobal, d.ScopeType)
	assert.Equal(t, domain.DecisionSourceDefault, d.Source)

	r := NewResolver(Defaults{PausedIncidentTypes: []string{"lock_hardware_failure"}})
	d = r.Resolve(Target{TicketID: "t", IncidentType: "LOCK_HARDWARE_FAILURE"}, nil)
	assert.True(t, d.IsPaused)
	assert.Equal(t, domain.DecisionSourceConfig, d.Source)

	d = NewResolver(Defaults{GlobalPaused: true}).Resolve(Target{}, nil)
	assert.True(t, d.IsPaused)
	assert.Equal(t, domain.AutonomyScopeGlobal, d.ScopeType)
}

func TestHistoryOverridesConfiguredDefault(t *testing.T) {
	r := NewResolver(Defaults{GlobalPaused: true})
	latest := map[ScopeKey]domain.AutonomyHistory{GlobalScope(): history(GlobalScope(), false)}

	assert.False(t, r.Resolve(Target{}, latest).IsPaused)
	assert.False(t, r.Current(GlobalScope(), latest))
	assert.True(t, r.Current(GlobalScope(), nil))
}

func TestTargetScopes(t *testing.T) {
	assert.Equal(t, []ScopeKey{GlobalScope()}, Target{}.Scopes())
	assert.Equal(t, []ScopeKey{TicketScope("x"), IncidentScope("y"), GlobalScope()}, Target{TicketID: "X", IncidentType: "y"}.Scopes())
}
