package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/dispatch-service/internal/api/dto"
	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/events"
	"github.com/spec-kit/dispatch-service/internal/policy"
	"github.com/spec-kit/dispatch-service/internal/repository"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util/errorutil"
)

// TicketIDParam is the path parameter carrying the ticket id.
const TicketIDParam = "ticketId"

// CommandTx is the transactional context handed to a command. Effects queued on it
// (metrics, events) are only applied after commit.
type CommandTx struct {
	Repos     repository.Repositories
	Command   Command
	RequestID string
	ToolName  string
	Now       time.Time

	gate        *policy.Gate
	transitions []domain.StateTransition
	events      []events.Event
	dispatches  []bool
}

func newCommandTx(repos repository.Repositories, cmd Command, requestID, tool string, now time.Time, gate *policy.Gate) *CommandTx {
	return &CommandTx{
		Repos:     repos,
		Command:   cmd,
		RequestID: requestID,
		ToolName:  tool,
		Now:       now,
		gate:      gate,
	}
}

// Decode unmarshals the command body into dst.
func (tx *CommandTx) Decode(dst any) error {
	return dto.DecodeStrict(tx.Command.Body, dst)
}

// TicketID returns the canonical ticket id from the path.
func (tx *CommandTx) TicketID() (string, error) {
	return dto.ParseTicketID(tx.Command.PathParams[TicketIDParam])
}

// LockTicket loads the path ticket under its exclusive lock.
func (tx *CommandTx) LockTicket(ctx context.Context) (*domain.Ticket, error) {
	id, err := tx.TicketID()
	if err != nil {
		return nil, err
	}
	ticket, err := tx.Repos.Tickets.GetForUpdate(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewTicketNotFound(id)
	}
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// Transition checks the endpoint guard for the ticket's current state.
func (tx *CommandTx) Transition(ticket *domain.Ticket, opts policy.TransitionOptions) (domain.TicketState, error) {
	return tx.gate.AssertTransition(tx.Command.Endpoint, ticket.State, opts)
}

// InitialState returns the state a creating endpoint assigns.
func (tx *CommandTx) InitialState() (domain.TicketState, error) {
	state, ok := tx.gate.TargetState(tx.Command.Endpoint)
	if !ok {
		return "", apperrors.NewInvalidStateTransition("", "")
	}
	return state, nil
}

// CreateTicket inserts a new ticket at version 1 and records its creation.
func (tx *CommandTx) CreateTicket(ctx context.Context, ticket *domain.Ticket, payload domain.AuditPayload) error {
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	ticket.Version = 1
	ticket.CreatedAt = tx.Now
	ticket.UpdatedAt = tx.Now
	if err := tx.Repos.Tickets.Create(ctx, ticket); err != nil {
		return err
	}
	if err := tx.record(ctx, ticket, nil, payload); err != nil {
		return err
	}
	tx.Emit(events.EventTicketCreated, ticket.ID, events.TicketCreatedPayload{
		AccountID: ticket.AccountID,
		SiteID:    ticket.SiteID,
		State:     ticket.State,
		Summary:   ticket.Summary,
	})
	return nil
}

// ApplyTicket persists a mutated ticket, bumps its version and writes the ledger.
// before is the state the ticket was loaded in.
func (tx *CommandTx) ApplyTicket(ctx context.Context, before domain.TicketState, ticket *domain.Ticket, payload domain.AuditPayload) error {
	ticket.Version++
	ticket.UpdatedAt = tx.Now
	if err := tx.Repos.Tickets.Update(ctx, ticket); err != nil {
		return err
	}
	return tx.record(ctx, ticket, &before, payload)
}

// Annotate writes the audit event for a command that leaves the ticket row untouched.
func (tx *CommandTx) Annotate(ctx context.Context, ticket *domain.Ticket, payload domain.AuditPayload) error {
	state := ticket.State
	return tx.record(ctx, ticket, &state, payload)
}

// Emit queues a domain event for publication after commit.
func (tx *CommandTx) Emit(eventType events.EventType, ticketID string, payload any) {
	tx.events = append(tx.events, events.Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		TicketID:      ticketID,
		CorrelationID: tx.Command.Actor.CorrelationID,
		Actor:         events.ActorFrom(tx.Command.Actor),
		Timestamp:     tx.Now,
		Payload:       payload,
	})
}

// CountDispatch queues the dispatch lineage metric.
func (tx *CommandTx) CountDispatch(withSnapshot bool) {
	tx.dispatches = append(tx.dispatches, withSnapshot)
}

func (tx *CommandTx) record(ctx context.Context, ticket *domain.Ticket, before *domain.TicketState, payload domain.AuditPayload) error {
	actor := tx.Command.Actor
	payload.Endpoint = tx.Command.Endpoint
	payload.RequestedAt = tx.Now
	if payload.Request == nil {
		payload.Request = tx.requestDocument()
	}

	event := &domain.AuditEvent{
		ID:            uuid.NewString(),
		TicketID:      ticket.ID,
		ActorType:     actor.Type,
		ActorID:       actor.ActorID,
		ActorRole:     actor.Role,
		ToolName:      tx.ToolName,
		RequestID:     tx.RequestID,
		CorrelationID: actor.CorrelationID,
		TraceID:       optionalString(actor.TraceID),
		BeforeState:   before,
		AfterState:    ticket.State,
		Payload:       payload,
		CreatedAt:     tx.Now,
	}
	if err := tx.Repos.Audit.AppendEvent(ctx, event); err != nil {
		return err
	}
	if before != nil && *before == ticket.State {
		return nil
	}

	transition := &domain.StateTransition{
		ID:           uuid.NewString(),
		TicketID:     ticket.ID,
		FromState:    before,
		ToState:      ticket.State,
		AuditEventID: event.ID,
		CreatedAt:    tx.Now,
	}
	if err := tx.Repos.Audit.AppendTransition(ctx, transition); err != nil {
		return err
	}
	tx.transitions = append(tx.transitions, *transition)
	if before != nil {
		tx.Emit(events.EventTicketStateChanged, ticket.ID, events.TicketStateChangedPayload{
			FromState: *before,
			ToState:   ticket.State,
			Endpoint:  tx.Command.Endpoint,
		})
	}
	return nil
}

func (tx *CommandTx) requestDocument() json.RawMessage {
	body := bytes.TrimSpace(tx.Command.Body)
	if len(body) == 0 {
		return json.RawMessage("{}")
	}
	return json.RawMessage(append([]byte(nil), body...))
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
