package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/dispatch-service/internal/autonomy"
	"github.com/spec-kit/dispatch-service/internal/closeout"
	"github.com/spec-kit/dispatch-service/internal/config"
	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/events"
	"github.com/spec-kit/dispatch-service/internal/idempotency"
	"github.com/spec-kit/dispatch-service/internal/observability"
	"github.com/spec-kit/dispatch-service/internal/policy"
	"github.com/spec-kit/dispatch-service/internal/queue"
	"github.com/spec-kit/dispatch-service/internal/repository"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util/errorutil"
)

var (
	dispatcherActor = testActor("disp-1", "dispatcher", domain.ActorTypeHuman)
	agentActor      = testActor("agent-1", "agent", domain.ActorTypeAgent)
	techActor       = testActor("tech-001", "tech", domain.ActorTypeHuman)
	qaActor         = testActor("qa-1", "qa", domain.ActorTypeHuman)
	financeActor    = testActor("fin-1", "finance", domain.ActorTypeHuman)
	opsActor        = testActor("ops-1", "ops", domain.ActorTypeHuman)
	customerActor   = testActor("cust-1", "customer", domain.ActorTypeHuman)
)

func testActor(id, role string, actorType domain.ActorType) domain.ActorContext {
	return domain.ActorContext{
		ActorID:       id,
		Role:          role,
		Type:          actorType,
		CorrelationID: "corr-" + id,
		AccountScope:  []string{policy.ScopeWildcard},
		SiteScope:     []string{policy.ScopeWildcard},
	}
}

type harness struct {
	t        *testing.T
	store    *repository.MemoryStore
	metrics  *observability.Metrics
	events   *eventLog
	pipeline *Pipeline

	tickets  *TicketService
	schedule *ScheduleService
	assign   *AssignmentService
	closeout *CloseoutService
	autonomy *AutonomyService
	query    *QueryService

	mu  sync.Mutex
	now time.Time
}

type harnessOptions struct {
	cache    idempotency.Cache
	defaults autonomy.Defaults
}

func newHarness(t *testing.T) *harness {
	return newHarnessWith(t, harnessOptions{})
}

func newHarnessWith(t *testing.T, opts harnessOptions) *harness {
	t.Helper()
	table, err := policy.Default()
	require.NoError(t, err)
	registry, err := closeout.DefaultRegistry()
	require.NoError(t, err)

	store := repository.NewMemoryStore()
	store.ApplySeed(repository.DefaultSeed())

	h := &harness{
		t:       t,
		store:   store,
		metrics: observability.NewMetrics(),
		events:  &eventLog{},
		now:     time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
	}
	dispatcher := events.NewInMemoryDispatcher()
	h.events.subscribe(dispatcher)

	gate := policy.NewGate(table)
	evaluator := closeout.NewEvaluator(registry)
	resolver := autonomy.NewResolver(opts.defaults)

	h.pipeline = NewPipeline(PipelineDependencies{
		Store:      store,
		Gate:       gate,
		Cache:      opts.cache,
		Dispatcher: dispatcher,
		Metrics:    h.metrics,
		Clock:      h.clock,
	})
	h.tickets = NewTicketService(TicketDependencies{Pipeline: h.pipeline, IntakeConfidenceThreshold: 0.85})
	h.schedule = NewScheduleService(h.pipeline)
	h.assign = NewAssignmentService(h.pipeline)
	h.closeout = NewCloseoutService(CloseoutDependencies{Pipeline: h.pipeline, Evaluator: evaluator, Resolver: resolver})
	h.autonomy = NewAutonomyService(AutonomyDependencies{Pipeline: h.pipeline, Store: store, Gate: gate, Resolver: resolver})
	h.query = NewQueryService(QueryDependencies{
		Store:     store,
		Gate:      gate,
		Evaluator: evaluator,
		Metrics:   h.metrics,
		Queue:     queue.DefaultConfig(),
		Alerts:    config.AlertsConfig{IdempotencyConflicts: 1, SLABreaches: 1},
		Clock:     h.clock,
	})
	return h
}

func (h *harness) clock() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

func (h *harness) advance(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = h.now.Add(d)
}

type commandFn func(context.Context, Command) (*Response, error)

// command builds a command with a fresh idempotency key.
func command(endpoint string, actor domain.ActorContext, ticketID string, body any) Command {
	cmd := Command{
		Endpoint:       endpoint,
		Actor:          actor,
		IdempotencyKey: uuid.NewString(),
		PathParams:     map[string]string{},
	}
	if ticketID != "" {
		cmd.PathParams[TicketIDParam] = ticketID
	}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			panic(err)
		}
		cmd.Body = raw
	}
	return cmd
}

func (h *harness) run(fn commandFn, endpoint string, actor domain.ActorContext, ticketID string, body any) (*Response, error) {
	return fn(context.Background(), command(endpoint, actor, ticketID, body))
}

// mustRun executes a command that is expected to succeed and decodes its body into out.
func (h *harness) mustRun(fn commandFn, endpoint string, actor domain.ActorContext, ticketID string, body any, out any) *Response {
	h.t.Helper()
	resp, err := h.run(fn, endpoint, actor, ticketID, body)
	require.NoError(h.t, err, "%s", endpoint)
	if out != nil {
		require.NoError(h.t, json.Unmarshal(resp.Body, out))
	}
	return resp
}

func (h *harness) ticket(id string) *domain.Ticket {
	h.t.Helper()
	ticket, err := h.store.Repositories().Tickets.GetByID(context.Background(), id)
	require.NoError(h.t, err)
	return ticket
}

func (h *harness) auditEvents(id string) []domain.AuditEvent {
	h.t.Helper()
	events, err := h.store.Repositories().Audit.ListEventsByTicket(context.Background(), id)
	require.NoError(h.t, err)
	return events
}

func (h *harness) transitions(id string) []domain.StateTransition {
	h.t.Helper()
	transitions, err := h.store.Repositories().Audit.ListTransitionsByTicket(context.Background(), id)
	require.NoError(h.t, err)
	return transitions
}

type ticketBody struct {
	ID      string             `json:"id"`
	State   domain.TicketState `json:"state"`
	Version int64              `json:"version"`
}

type scheduleWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (h *harness) window(offset, length time.Duration) scheduleWindow {
	start := h.clock().Add(offset)
	return scheduleWindow{Start: start, End: start.Add(length)}
}

// newTicketAt creates a NEW ticket at the given site.
func (h *harness) newTicketAt(accountID, siteID string) string {
	h.t.Helper()
	var created ticketBody
	h.mustRun(h.tickets.Create, policy.EndpointCreateTicket, dispatcherActor, "", map[string]any{
		"account_id": accountID,
		"site_id":    siteID,
		"summary":    "Front entrance door will not latch",
	}, &created)
	return created.ID
}

// triagedTicket creates and triages a ticket at the Northwind HQ site.
func (h *harness) triagedTicket(incidentType string) string {
	h.t.Helper()
	id := h.newTicketAt("acct-northwind", "site-nw-hq")
	h.mustRun(h.tickets.Triage, policy.EndpointTriage, dispatcherActor, id, map[string]any{
		"priority":      "URGENT",
		"incident_type": incidentType,
	}, nil)
	return id
}

// scheduledTicket walks a DOOR_WONT_LATCH ticket to SCHEDULED.
func (h *harness) scheduledTicket() string {
	h.t.Helper()
	id := h.triagedTicket("door_wont_latch")
	w := h.window(2*time.Hour, 2*time.Hour)
	h.mustRun(h.schedule.Propose, policy.EndpointSchedulePropose, dispatcherActor, id, map[string]any{
		"options": []scheduleWindow{w},
	}, nil)
	h.mustRun(h.schedule.Confirm, policy.EndpointScheduleConfirm, dispatcherActor, id, w, nil)
	return id
}

// inProgressTicket dispatches tech-001 to a scheduled ticket and checks them in.
func (h *harness) inProgressTicket() string {
	h.t.Helper()
	id := h.scheduledTicket()
	h.mustRun(h.assign.Dispatch, policy.EndpointDispatch, dispatcherActor, id, map[string]any{"tech_id": "tech-001"}, nil)
	h.mustRun(h.tickets.CheckIn, policy.EndpointCheckIn, techActor, id, map[string]any{}, nil)
	return id
}

func (h *harness) addEvidence(id string, keys ...string) {
	h.t.Helper()
	for _, key := range keys {
		h.mustRun(h.closeout.AddEvidence, policy.EndpointAddEvidence, techActor, id, map[string]any{
			"kind":         "photo",
			"uri":          "s3://evidence/" + id + "/" + key,
			"evidence_key": key,
		}, nil)
	}
}

func latchEvidence() []string {
	return []string{
		"photo_before_door_edge_and_strike",
		"photo_after_latched_alignment",
		"note_adjustments_and_test_cycles",
		"signature_or_no_signature_reason",
	}
}

func latchChecklist() map[string]any {
	return map[string]any{
		"work_performed":        true,
		"parts_used_or_needed":  true,
		"resolution_status":     true,
		"onsite_photos_after":   true,
		"billing_authorization": true,
	}
}

func requireCode(t *testing.T, err error, code string) *apperrors.DomainError {
	t.Helper()
	require.Error(t, err)
	domainErr := apperrors.ToDomainError(err)
	require.Equal(t, code, domainErr.Code, domainErr.Message)
	return domainErr
}

// eventLog records every published event.
type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) subscribe(d events.Dispatcher) {
	for _, et := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketStateChanged,
		events.EventTicketDispatched,
		events.EventEvidenceAdded,
		events.EventScheduleHoldResolved,
		events.EventAutonomyChanged,
	} {
		d.Subscribe(et, func(_ context.Context, e events.Event) error {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.events = append(l.events, e)
			return nil
		})
	}
}

func (l *eventLog) ofType(et events.EventType) []events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []events.Event
	for _, e := range l.events {
		if e.Type == et {
			out = append(out, e)
		}
	}
	return out
}
