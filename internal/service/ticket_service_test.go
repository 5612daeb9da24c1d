package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/policy"
	"github.com/spec-kit/dispatch-service/internal/repository"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util/errorutil"
)

func TestFullLifecycleWritesOneTransitionPerStateChange(t *testing.T) {
	h := newHarness(t)
	id := h.inProgressTicket()

	h.addEvidence(id, latchEvidence()...)
	h.mustRun(h.closeout.Complete, policy.EndpointComplete, techActor, id, map[string]any{"checklist_status": latchChecklist()}, nil)
	h.mustRun(h.tickets.Verify, policy.EndpointVerify, qaActor, id, map[string]any{"result": "PASS"}, nil)
	var invoiced ticketBody
	h.mustRun(h.tickets.Invoice, policy.EndpointInvoice, financeActor, id, map[string]any{"invoice_number": "INV-1"}, &invoiced)
	assert.Equal(t, domain.TicketStateInvoiced, invoiced.State)

	wantPath := []domain.TicketState{
		domain.TicketStateNew,
		domain.TicketStateTriaged,
		domain.TicketStateScheduleProposed,
		domain.TicketStateScheduled,
		domain.TicketStateDispatched,
		domain.TicketStateInProgress,
		domain.TicketStateCompletedPendingVerification,
		domain.TicketStateVerified,
		domain.TicketStateInvoiced,
	}
	transitions := h.transitions(id)
	require.Len(t, transitions, len(wantPath))
	assert.Nil(t, transitions[0].FromState)
	for i, tr := range transitions {
		assert.Equal(t, wantPath[i], tr.ToState)
		if i > 0 {
			require.NotNil(t, tr.FromState)
			assert.Equal(t, wantPath[i-1], *tr.FromState)
		}
	}

	// evidence writes are ledgered without a version bump
	audit := h.auditEvents(id)
	assert.Len(t, audit, len(wantPath)+len(latchEvidence()))
	assert.Equal(t, int64(len(wantPath)), h.ticket(id).Version)
	for _, e := range audit {
		assert.NotEmpty(t, e.RequestID)
		assert.NotEmpty(t, e.ToolName)
		assert.Equal(t, e.AfterState == domain.TicketStateNew, e.BeforeState == nil)
	}
}

func TestInvalidTransitionLeavesTicketUntouched(t *testing.T) {
	h := newHarness(t)
	id := h.newTicketAt("acct-northwind", "site-nw-hq")

	_, err := h.run(h.tickets.Verify, policy.EndpointVerify, qaActor, id, map[string]any{"result": "PASS"})
	domainErr := requireCode(t, err, apperrors.CodeInvalidStateTransition)
	assert.Equal(t, string(domain.TicketStateNew), domainErr.Details["from_state"])

	ticket := h.ticket(id)
	assert.Equal(t, domain.TicketStateNew, ticket.State)
	assert.Equal(t, int64(1), ticket.Version)
	assert.Len(t, h.transitions(id), 1)
}

func TestCreateRejectsForeignSite(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(h.tickets.Create, policy.EndpointCreateTicket, dispatcherActor, "", map[string]any{
		"account_id": "acct-northwind",
		"site_id":    "site-contoso-01",
		"summary":    "Door",
	})
	requireCode(t, err, apperrors.CodeInvalidRequest)

	_, err = h.run(h.tickets.Create, policy.EndpointCreateTicket, dispatcherActor, "", map[string]any{
		"account_id": "acct-unknown",
		"site_id":    "site-nw-hq",
		"summary":    "Door",
	})
	requireCode(t, err, apperrors.CodeInvalidRequest)

	_, err = h.run(h.tickets.Create, policy.EndpointCreateTicket, dispatcherActor, "", map[string]any{
		"account_id": "acct-northwind",
		"site_id":    "site-nw-hq",
	})
	domainErr := requireCode(t, err, apperrors.CodeInvalidRequest)
	assert.Equal(t, "summary", domainErr.Details["field"])
}

func TestIntakeSkipsTriageOnlyWhenConfident(t *testing.T) {
	h := newHarness(t)
	base := map[string]any{
		"account_id":                "acct-northwind",
		"site_id":                   "site-nw-depot",
		"summary":                   "Operator faulted",
		"customer_name":             "Pat",
		"contact_phone":             "555-0100",
		"incident_type":             "automatic_operator_fault",
		"priority":                  "EMERGENCY",
		"identity_confidence":       0.97,
		"classification_confidence": 0.91,
		"sop_handoff_acknowledged":  true,
	}
	var confident ticketBody
	h.mustRun(h.tickets.Intake, policy.EndpointIntake, agentActor, "", base, &confident)
	assert.Equal(t, domain.TicketStateReadyToSchedule, confident.State)
	assert.Equal(t, "AUTOMATIC_OPERATOR_FAULT", h.ticket(confident.ID).IncidentTypeValue())

	base["classification_confidence"] = 0.4
	var unsure ticketBody
	h.mustRun(h.tickets.Intake, policy.EndpointIntake, agentActor, "", base, &unsure)
	assert.Equal(t, domain.TicketStateTriaged, unsure.State)

	base["identity_confidence"] = 1.5
	_, err := h.run(h.tickets.Intake, policy.EndpointIntake, agentActor, "", base)
	requireCode(t, err, apperrors.CodeInvalidRequest)
}

func TestVerifyRequiresPass(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(h.tickets.Verify, policy.EndpointVerify, qaActor, "6f1c1b8e-2f0a-4c5e-9a7b-3d2e1f0a9b8c", map[string]any{"result": "FAIL"})
	requireCode(t, err, apperrors.CodeInvalidRequest)
}

func TestUnknownTicketIsNotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(h.tickets.Triage, policy.EndpointTriage, dispatcherActor, "6f1c1b8e-2f0a-4c5e-9a7b-3d2e1f0a9b8c", map[string]any{
		"priority":      "URGENT",
		"incident_type": "DOOR_WONT_LATCH",
	})
	requireCode(t, err, apperrors.CodeTicketNotFound)

	_, err = h.run(h.tickets.Triage, policy.EndpointTriage, dispatcherActor, "not-a-ticket", map[string]any{
		"priority":      "URGENT",
		"incident_type": "DOOR_WONT_LATCH",
	})
	requireCode(t, err, apperrors.CodeInvalidTicketID)
}

func TestCommandTimingOutOnTicketLockAppliesNothing(t *testing.T) {
	h := newHarness(t)
	id := h.triagedTicket("DOOR_WONT_LATCH")

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- h.store.WithTx(context.Background(), func(ctx context.Context, repos repository.Repositories) error {
			if _, err := repos.Tickets.GetForUpdate(ctx, id); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	cmd := command(policy.EndpointSchedulePropose, dispatcherActor, id, map[string]any{"options": []scheduleWindow{h.window(time.Hour, time.Hour)}})
	_, err := h.schedule.Propose(ctx, cmd)
	requireCode(t, err, apperrors.CodeInternal)

	close(release)
	require.NoError(t, <-done)
	ticket := h.ticket(id)
	assert.Equal(t, domain.TicketStateTriaged, ticket.State)
	assert.Equal(t, int64(2), ticket.Version)
}
