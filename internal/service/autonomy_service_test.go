package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/events"
	"github.com/spec-kit/dispatch-service/internal/policy"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util/errorutil"
)

type controlBody struct {
	HistoryID        string                   `json:"history_id"`
	ScopeType        domain.AutonomyScopeType `json:"scope_type"`
	ScopeID          string                   `json:"scope_id"`
	PreviousIsPaused bool                     `json:"previous_is_paused"`
	IsPaused         bool                     `json:"is_paused"`
}

func (h *harness) control(fn commandFn, endpoint, scopeType, scopeID string) controlBody {
	h.t.Helper()
	var out controlBody
	h.mustRun(fn, endpoint, opsActor, "", map[string]any{
		"scope_type": scopeType,
		"scope_id":   scopeID,
		"reason":     "operator action",
	}, &out)
	return out
}

func TestAutonomyPrecedenceTicketOverIncidentOverGlobal(t *testing.T) {
	h := newHarness(t)
	id := h.triagedTicket("DOOR_WONT_LATCH")
	ctx := testContext(t)

	state, err := h.autonomy.State(ctx, opsActor, id, "DOOR_WONT_LATCH")
	require.NoError(t, err)
	assert.False(t, state.Decision.IsPaused)
	assert.Equal(t, domain.DecisionSourceDefault, state.Decision.Source)

	paused := h.control(h.autonomy.Pause, policy.EndpointAutonomyPause, "GLOBAL", "")
	assert.False(t, paused.PreviousIsPaused)
	assert.True(t, paused.IsPaused)
	assert.Equal(t, domain.GlobalScopeID, paused.ScopeID)

	state, err = h.autonomy.State(ctx, opsActor, id, "DOOR_WONT_LATCH")
	require.NoError(t, err)
	assert.True(t, state.Decision.IsPaused)
	assert.Equal(t, domain.AutonomyScopeGlobal, state.Decision.ScopeType)

	// a rollback at the incident scope overrides the global pause
	h.control(h.autonomy.Rollback, policy.EndpointAutonomyRollback, "INCIDENT", "door_wont_latch")
	state, err = h.autonomy.State(ctx, opsActor, id, "DOOR_WONT_LATCH")
	require.NoError(t, err)
	assert.False(t, state.Decision.IsPaused)
	assert.Equal(t, domain.AutonomyScopeIncident, state.Decision.ScopeType)

	// and a ticket pause overrides both
	h.control(h.autonomy.Pause, policy.EndpointAutonomyPause, "TICKET", id)
	state, err = h.autonomy.State(ctx, opsActor, id, "DOOR_WONT_LATCH")
	require.NoError(t, err)
	assert.True(t, state.Decision.IsPaused)
	assert.Equal(t, domain.AutonomyScopeTicket, state.Decision.ScopeType)
	assert.Equal(t, id, state.Decision.ScopeID)

	require.Len(t, state.Scopes, 3)
	assert.True(t, state.Scopes[0].IsPaused)
	assert.False(t, state.Scopes[1].IsPaused)
	assert.True(t, state.Scopes[2].IsPaused)

	// other tickets of the same incident only see the incident rollback
	other := h.triagedTicket("DOOR_WONT_LATCH")
	state, err = h.autonomy.State(ctx, opsActor, other, "DOOR_WONT_LATCH")
	require.NoError(t, err)
	assert.False(t, state.Decision.IsPaused)

	assert.Len(t, h.events.ofType(events.EventAutonomyChanged), 3)
}

func TestAutonomyHistoryRecordsPreviousFlag(t *testing.T) {
	h := newHarness(t)
	first := h.control(h.autonomy.Pause, policy.EndpointAutonomyPause, "INCIDENT", "LOCK_HARDWARE_FAILURE")
	second := h.control(h.autonomy.Pause, policy.EndpointAutonomyPause, "INCIDENT", "lock_hardware_failure")
	third := h.control(h.autonomy.Rollback, policy.EndpointAutonomyRollback, "INCIDENT", "LOCK_HARDWARE_FAILURE")

	assert.False(t, first.PreviousIsPaused)
	assert.True(t, second.PreviousIsPaused)
	assert.True(t, third.PreviousIsPaused)
	assert.False(t, third.IsPaused)
	assert.Equal(t, "LOCK_HARDWARE_FAILURE", second.ScopeID)
}

func TestAutonomyReplayListsApplicableHistoryNewestFirst(t *testing.T) {
	h := newHarness(t)
	id := h.triagedTicket("DOOR_WONT_CLOSE")

	h.control(h.autonomy.Pause, policy.EndpointAutonomyPause, "GLOBAL", "")
	h.advance(1)
	h.control(h.autonomy.Pause, policy.EndpointAutonomyPause, "INCIDENT", "AUTOMATIC_OPERATOR_FAULT")
	h.advance(1)
	latest := h.control(h.autonomy.Rollback, policy.EndpointAutonomyRollback, "INCIDENT", "DOOR_WONT_CLOSE")

	replay, err := h.autonomy.Replay(testContext(t), dispatcherActor, id)
	require.NoError(t, err)
	require.Len(t, replay.History, 2)
	assert.Equal(t, latest.HistoryID, replay.History[0].ID)
	assert.Equal(t, domain.AutonomyScopeGlobal, replay.History[1].ScopeType)
	assert.Equal(t, "DOOR_WONT_CLOSE", replay.IncidentType)
	assert.False(t, replay.Decision.IsPaused)
	assert.Equal(t, domain.AutonomyScopeIncident, replay.Decision.ScopeType)
}

func TestAutonomyControlValidation(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name string
		body map[string]any
	}{
		{name: "unknown scope", body: map[string]any{"scope_type": "REGION", "scope_id": "CA", "reason": "x"}},
		{name: "missing incident", body: map[string]any{"scope_type": "INCIDENT", "reason": "x"}},
		{name: "ticket scope needs uuid", body: map[string]any{"scope_type": "TICKET", "scope_id": "abc", "reason": "x"}},
		{name: "missing reason", body: map[string]any{"scope_type": "GLOBAL"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.run(h.autonomy.Pause, policy.EndpointAutonomyPause, opsActor, "", tt.body)
			requireCode(t, err, apperrors.CodeInvalidRequest)
		})
	}

	_, err := h.run(h.autonomy.Pause, policy.EndpointAutonomyPause, techActor, "", map[string]any{"scope_type": "GLOBAL", "reason": "x"})
	requireCode(t, err, apperrors.CodeForbidden)
	_, err = h.autonomy.Replay(testContext(t), opsActor, "6f1c1b8e-2f0a-4c5e-9a7b-3d2e1f0a9b8c")
	requireCode(t, err, apperrors.CodeTicketNotFound)
}
