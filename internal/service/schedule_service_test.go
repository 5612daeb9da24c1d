package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/events"
	"github.com/spec-kit/dispatch-service/internal/policy"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util/errorutil"
)

type holdBody struct {
	Ticket     ticketBody `json:"ticket"`
	HoldID     string     `json:"hold_id"`
	SnapshotID string     `json:"snapshot_id"`
}

type restoreBody struct {
	Ticket         ticketBody             `json:"ticket"`
	RestoredState  domain.TicketState     `json:"restored_state"`
	HoldID         string                 `json:"hold_id"`
	SnapshotID     string                 `json:"snapshot_id"`
	RestoredWindow *domain.ScheduleWindow `json:"restored_window"`
}

func (h *harness) holdTicket(id string, confirmFor time.Duration) holdBody {
	h.t.Helper()
	var held holdBody
	h.mustRun(h.schedule.Hold, policy.EndpointScheduleHold, dispatcherActor, id, map[string]any{
		"hold_reason":         "customer asked to double-check access",
		"confirmation_window": h.window(0, confirmFor),
	}, &held)
	return held
}

func TestHoldAndReleaseRestoresSnapshot(t *testing.T) {
	h := newHarness(t)
	id := h.scheduledTicket()
	before := h.ticket(id)
	require.NotNil(t, before.ScheduledStart)

	held := h.holdTicket(id, 30*time.Minute)
	assert.Equal(t, domain.TicketStatePendingCustomerConfirmation, held.Ticket.State)
	assert.NotEmpty(t, held.HoldID)
	assert.NotEqual(t, held.HoldID, held.SnapshotID)

	h.advance(10 * time.Minute)
	var released restoreBody
	h.mustRun(h.schedule.Release, policy.EndpointScheduleRelease, customerActor, id, map[string]any{
		"customer_confirmation_log": held.HoldID,
	}, &released)

	assert.Equal(t, domain.TicketStateScheduled, released.RestoredState)
	assert.Equal(t, held.SnapshotID, released.SnapshotID)
	require.NotNil(t, released.RestoredWindow)
	assert.True(t, before.ScheduledStart.Equal(released.RestoredWindow.Start))

	after := h.ticket(id)
	assert.Equal(t, domain.TicketStateScheduled, after.State)
	assert.True(t, before.ScheduledEnd.Equal(*after.ScheduledEnd))

	resolved := h.events.ofType(events.EventScheduleHoldResolved)
	require.Len(t, resolved, 1)
	assert.Equal(t, domain.HoldStatusReleased, resolved[0].Payload.(events.ScheduleHoldResolvedPayload).Status)

	// the hold is closed, a second release with a new key conflicts
	_, err := h.run(h.schedule.Release, policy.EndpointScheduleRelease, customerActor, id, map[string]any{
		"customer_confirmation_log": held.HoldID,
	})
	requireCode(t, err, apperrors.CodeScheduleHoldStateConflict)
}

func TestReleaseAtWindowEndIsStale(t *testing.T) {
	h := newHarness(t)
	id := h.scheduledTicket()
	held := h.holdTicket(id, 30*time.Minute)

	h.advance(30 * time.Minute)
	_, err := h.run(h.schedule.Release, policy.EndpointScheduleRelease, customerActor, id, map[string]any{
		"customer_confirmation_log": held.HoldID,
	})
	domainErr := requireCode(t, err, apperrors.CodeCustomerConfirmationStale)
	assert.Equal(t, held.HoldID, domainErr.Details["hold_id"])
	assert.Equal(t, held.SnapshotID, domainErr.Details["snapshot_id"])
	assert.Equal(t, domain.TicketStatePendingCustomerConfirmation, h.ticket(id).State)

	// rollback ignores staleness
	var rolled restoreBody
	h.mustRun(h.schedule.Rollback, policy.EndpointScheduleRollback, dispatcherActor, id, map[string]any{
		"confirmation_id": held.HoldID,
		"reason":          "customer unreachable",
	}, &rolled)
	assert.Equal(t, domain.TicketStateScheduled, rolled.Ticket.State)

	hold, err := h.store.Repositories().Holds.GetByHoldID(testContext(t), held.HoldID)
	require.NoError(t, err)
	assert.Equal(t, domain.HoldStatusRolledBack, hold.Status)
	require.NotNil(t, hold.ResolutionReason)
	assert.Equal(t, "customer unreachable", *hold.ResolutionReason)
}

func TestHoldRequiresScheduledTicket(t *testing.T) {
	h := newHarness(t)
	id := h.triagedTicket("DOOR_WONT_LATCH")

	_, err := h.run(h.schedule.Hold, policy.EndpointScheduleHold, dispatcherActor, id, map[string]any{
		"hold_reason":         "x",
		"confirmation_window": h.window(0, time.Hour),
	})
	domainErr := requireCode(t, err, apperrors.CodeScheduleHoldStateConflict)
	assert.Equal(t, string(domain.TicketStateTriaged), domainErr.Details["current_state"])

	_, err = h.run(h.schedule.Release, policy.EndpointScheduleRelease, customerActor, id, map[string]any{
		"customer_confirmation_log": "7d2b5b8c-0000-4000-8000-000000000000",
	})
	requireCode(t, err, apperrors.CodeScheduleHoldStateConflict)
}

func TestReleaseWithUnknownHoldConflicts(t *testing.T) {
	h := newHarness(t)
	id := h.scheduledTicket()
	h.holdTicket(id, time.Hour)

	_, err := h.run(h.schedule.Release, policy.EndpointScheduleRelease, customerActor, id, map[string]any{
		"customer_confirmation_log": "7d2b5b8c-0000-4000-8000-000000000000",
	})
	requireCode(t, err, apperrors.CodeScheduleHoldStateConflict)
	assert.Equal(t, domain.TicketStatePendingCustomerConfirmation, h.ticket(id).State)
}

func TestRollbackIsDispatcherOnly(t *testing.T) {
	h := newHarness(t)
	id := h.scheduledTicket()
	held := h.holdTicket(id, time.Hour)

	_, err := h.run(h.schedule.Rollback, policy.EndpointScheduleRollback, agentActor, id, map[string]any{
		"confirmation_id": held.HoldID,
		"reason":          "x",
	})
	requireCode(t, err, apperrors.CodeForbidden)
}

func TestConfirmRejectsInvertedWindow(t *testing.T) {
	h := newHarness(t)
	id := h.triagedTicket("DOOR_WONT_LATCH")
	w := h.window(2*time.Hour, time.Hour)
	w.Start, w.End = w.End, w.Start

	_, err := h.run(h.schedule.Propose, policy.EndpointSchedulePropose, dispatcherActor, id, map[string]any{"options": []scheduleWindow{w}})
	requireCode(t, err, apperrors.CodeInvalidRequest)
	_, err = h.run(h.schedule.Propose, policy.EndpointSchedulePropose, dispatcherActor, id, map[string]any{"options": []scheduleWindow{}})
	requireCode(t, err, apperrors.CodeInvalidRequest)
}

func TestHoldReplayReturnsSameHold(t *testing.T) {
	h := newHarness(t)
	id := h.scheduledTicket()
	cmd := command(policy.EndpointScheduleHold, dispatcherActor, id, map[string]any{
		"hold_reason":         "customer asked to double-check access",
		"confirmation_window": h.window(0, time.Hour),
	})

	first, err := h.schedule.Hold(testContext(t), cmd)
	require.NoError(t, err)
	assert.False(t, first.Replay)
	second, err := h.schedule.Hold(testContext(t), cmd)
	require.NoError(t, err)
	assert.True(t, second.Replay)
	assert.Equal(t, first.Status, second.Status)
	assert.JSONEq(t, string(first.Body), string(second.Body))

	var a, b holdBody
	require.NoError(t, json.Unmarshal(first.Body, &a))
	require.NoError(t, json.Unmarshal(second.Body, &b))
	assert.Equal(t, a.HoldID, b.HoldID)
	assert.Equal(t, a.SnapshotID, b.SnapshotID)

	hold, err := h.store.Repositories().Holds.GetByHoldID(testContext(t), a.HoldID)
	require.NoError(t, err)
	assert.Equal(t, domain.HoldStatusActive, hold.Status)

	// the hold row and its audit row commit together, one audit row means one hold
	var holds int
	for _, ev := range h.auditEvents(id) {
		if ev.AfterState == domain.TicketStatePendingCustomerConfirmation {
			holds++
		}
	}
	assert.Equal(t, 1, holds)
	var moves int
	for _, tr := range h.transitions(id) {
		if tr.ToState == domain.TicketStatePendingCustomerConfirmation {
			moves++
		}
	}
	assert.Equal(t, 1, moves)
	assert.Equal(t, int64(1), h.metrics.Snapshot().IdempotencyReplayTotal)
}

func TestMalformedHoldIDConflicts(t *testing.T) {
	h := newHarness(t)
	id := h.scheduledTicket()
	h.holdTicket(id, time.Hour)

	_, err := h.run(h.schedule.Release, policy.EndpointScheduleRelease, customerActor, id, map[string]any{
		"customer_confirmation_log": "abc",
	})
	domainErr := requireCode(t, err, apperrors.CodeScheduleHoldStateConflict)
	assert.Equal(t, "abc", domainErr.Details["hold_id"])

	_, err = h.run(h.schedule.Rollback, policy.EndpointScheduleRollback, dispatcherActor, id, map[string]any{
		"confirmation_id": "abc",
		"reason":          "customer unreachable",
	})
	requireCode(t, err, apperrors.CodeScheduleHoldStateConflict)
	assert.Equal(t, domain.TicketStatePendingCustomerConfirmation, h.ticket(id).State)
}
