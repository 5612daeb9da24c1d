package service

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/spec-kit/dispatch-service/internal/api/dto"
	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/events"
	"github.com/spec-kit/dispatch-service/internal/policy"
	"github.com/spec-kit/dispatch-service/internal/repository"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util/errorutil"
)

// ScheduleService proposes, confirms and holds ticket schedules.
type ScheduleService struct {
	pipeline *Pipeline
}

// NewScheduleService constructs the service.
func NewScheduleService(pipeline *Pipeline) *ScheduleService {
	return &ScheduleService{pipeline: pipeline}
}

// Propose records candidate windows for the customer.
func (s *ScheduleService) Propose(ctx context.Context, cmd Command) (*Response, error) {
	return s.pipeline.Execute(ctx, cmd, func(ctx context.Context, tx *CommandTx) (int, any, error) {
		var req dto.ProposeScheduleRequest
		if err := decodeAndValidate(tx, &req); err != nil {
			return 0, nil, err
		}
		ticket, before, err := lockAndGuard(ctx, tx, policy.TransitionOptions{})
		if err != nil {
			return 0, nil, err
		}
		if err := tx.ApplyTicket(ctx, before, ticket, domain.AuditPayload{}); err != nil {
			return 0, nil, err
		}
		options := make([]domain.ScheduleWindow, 0, len(req.Options))
		for _, o := range req.Options {
			options = append(options, o.Window())
		}
		return http.StatusOK, dto.ProposeScheduleResponse{Ticket: dto.NewTicketResponse(ticket), Options: options}, nil
	})
}

// Confirm fixes the scheduled window.
func (s *ScheduleService) Confirm(ctx context.Context, cmd Command) (*Response, error) {
	return s.pipeline.Execute(ctx, cmd, func(ctx context.Context, tx *CommandTx) (int, any, error) {
		var req dto.ConfirmScheduleRequest
		if err := decodeAndValidate(tx, &req); err != nil {
			return 0, nil, err
		}
		ticket, before, err := lockAndGuard(ctx, tx, policy.TransitionOptions{})
		if err != nil {
			return 0, nil, err
		}
		window := req.Window()
		ticket.SetWindow(&window)
		if err := tx.ApplyTicket(ctx, before, ticket, domain.AuditPayload{}); err != nil {
			return 0, nil, err
		}
		return http.StatusOK, dto.NewTicketResponse(ticket), nil
	})
}

// Hold snapshots the scheduled window while the customer confirms.
func (s *ScheduleService) Hold(ctx context.Context, cmd Command) (*Response, error) {
	return s.pipeline.Execute(ctx, cmd, func(ctx context.Context, tx *CommandTx) (int, any, error) {
		var req dto.ScheduleHoldRequest
		if err := decodeAndValidate(tx, &req); err != nil {
			return 0, nil, err
		}
		ticket, before, err := lockForHold(ctx, tx, domain.TicketStateScheduled, "schedule hold requires a SCHEDULED ticket")
		if err != nil {
			return 0, nil, err
		}

		hold := &domain.ScheduleHold{
			HoldID:             uuid.NewString(),
			SnapshotID:         uuid.NewString(),
			TicketID:           ticket.ID,
			PreviousState:      before,
			PreviousWindow:     ticket.Window(),
			HoldReason:         strings.TrimSpace(req.HoldReason),
			ConfirmationWindow: req.ConfirmationWindow.Window(),
			Status:             domain.HoldStatusActive,
			CreatedAt:          tx.Now,
		}
		if err := tx.Repos.Holds.Create(ctx, hold); err != nil {
			return 0, nil, err
		}
		payload := domain.AuditPayload{HoldID: hold.HoldID, SnapshotID: hold.SnapshotID}
		if err := tx.ApplyTicket(ctx, before, ticket, payload); err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, dto.ScheduleHoldResponse{
			Ticket:     dto.NewTicketResponse(ticket),
			HoldID:     hold.HoldID,
			SnapshotID: hold.SnapshotID,
		}, nil
	})
}

// Release restores the held window once the customer confirms in time.
func (s *ScheduleService) Release(ctx context.Context, cmd Command) (*Response, error) {
	return s.pipeline.Execute(ctx, cmd, func(ctx context.Context, tx *CommandTx) (int, any, error) {
		var req dto.ScheduleReleaseRequest
		if err := decodeAndValidate(tx, &req); err != nil {
			return 0, nil, err
		}
		ticket, before, err := lockForHold(ctx, tx, domain.TicketStatePendingCustomerConfirmation, "schedule release requires a held ticket")
		if err != nil {
			return 0, nil, err
		}
		hold, err := activeHold(ctx, tx.Repos.Holds, ticket.ID, req.HoldID())
		if err != nil {
			return 0, nil, err
		}
		if hold.IsStale(tx.Now) {
			return 0, nil, apperrors.NewCustomerConfirmationStale(hold.HoldID, hold.SnapshotID)
		}
		return restoreHold(ctx, tx, ticket, before, hold, domain.HoldStatusReleased, nil)
	})
}

// Rollback restores the held window unconditionally.
func (s *ScheduleService) Rollback(ctx context.Context, cmd Command) (*Response, error) {
	return s.pipeline.Execute(ctx, cmd, func(ctx context.Context, tx *CommandTx) (int, any, error) {
		var req dto.ScheduleRollbackRequest
		if err := decodeAndValidate(tx, &req); err != nil {
			return 0, nil, err
		}
		ticket, before, err := lockForHold(ctx, tx, domain.TicketStatePendingCustomerConfirmation, "schedule rollback requires a held ticket")
		if err != nil {
			return 0, nil, err
		}
		hold, err := activeHold(ctx, tx.Repos.Holds, ticket.ID, strings.TrimSpace(req.ConfirmationID))
		if err != nil {
			return 0, nil, err
		}
		reason := strings.TrimSpace(req.Reason)
		return restoreHold(ctx, tx, ticket, before, hold, domain.HoldStatusRolledBack, &reason)
	})
}

// lockForHold loads the ticket and reports a hold conflict instead of a plain
// transition error when it is not in the required state.
func lockForHold(ctx context.Context, tx *CommandTx, required domain.TicketState, message string) (*domain.Ticket, domain.TicketState, error) {
	ticket, err := tx.LockTicket(ctx)
	if err != nil {
		return nil, "", err
	}
	if ticket.State != required {
		return nil, "", apperrors.NewScheduleHoldStateConflict(message, map[string]any{
			"ticket_id":      ticket.ID,
			"current_state":  string(ticket.State),
			"required_state": string(required),
		})
	}
	before := ticket.State
	next, err := tx.Transition(ticket, policy.TransitionOptions{})
	if err != nil {
		return nil, "", err
	}
	ticket.State = next
	return ticket, before, nil
}

func activeHold(ctx context.Context, holds repository.ScheduleHoldRepository, ticketID, holdID string) (*domain.ScheduleHold, error) {
	conflict := apperrors.NewScheduleHoldStateConflict("no active schedule hold matches this request", map[string]any{
		"ticket_id": ticketID,
		"hold_id":   holdID,
	})
	if _, err := uuid.Parse(holdID); err != nil {
		return nil, conflict
	}
	hold, err := holds.GetByHoldID(ctx, holdID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, conflict
	}
	if err != nil {
		return nil, err
	}
	if hold.TicketID != ticketID || hold.Status != domain.HoldStatusActive {
		return nil, conflict
	}
	return hold, nil
}

func restoreHold(ctx context.Context, tx *CommandTx, ticket *domain.Ticket, before domain.TicketState, hold *domain.ScheduleHold, status domain.HoldStatus, reason *string) (int, any, error) {
	ticket.State = hold.PreviousState
	ticket.SetWindow(hold.PreviousWindow)

	resolvedAt := tx.Now
	hold.Status = status
	hold.ResolutionReason = reason
	hold.ResolvedAt = &resolvedAt
	if err := tx.Repos.Holds.Resolve(ctx, hold); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, nil, apperrors.NewScheduleHoldStateConflict("schedule hold is already resolved", map[string]any{
				"hold_id": hold.HoldID,
			})
		}
		return 0, nil, err
	}

	payload := domain.AuditPayload{HoldID: hold.HoldID, SnapshotID: hold.SnapshotID}
	if err := tx.ApplyTicket(ctx, before, ticket, payload); err != nil {
		return 0, nil, err
	}
	tx.Emit(events.EventScheduleHoldResolved, ticket.ID, events.ScheduleHoldResolvedPayload{
		HoldID:     hold.HoldID,
		SnapshotID: hold.SnapshotID,
		Status:     status,
	})
	return http.StatusOK, dto.ScheduleRestoreResponse{
		Ticket:         dto.NewTicketResponse(ticket),
		RestoredState:  ticket.State,
		HoldID:         hold.HoldID,
		SnapshotID:     hold.SnapshotID,
		RestoredWindow: hold.PreviousWindow,
	}, nil
}
