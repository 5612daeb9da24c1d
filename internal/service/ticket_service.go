package service

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/spec-kit/dispatch-service/internal/api/dto"
	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/policy"
	"github.com/spec-kit/dispatch-service/internal/repository"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util/errorutil"
)

// TicketService coordinates ticket lifecycle commands.
type TicketService struct {
	pipeline        *Pipeline
	intakeThreshold float64
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Pipeline                  *Pipeline
	IntakeConfidenceThreshold float64
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		pipeline:        deps.Pipeline,
		intakeThreshold: deps.IntakeConfidenceThreshold,
	}
}

// Create opens a ticket in NEW.
func (s *TicketService) Create(ctx context.Context, cmd Command) (*Response, error) {
	return s.pipeline.Execute(ctx, cmd, func(ctx context.Context, tx *CommandTx) (int, any, error) {
		var req dto.CreateTicketRequest
		if err := decodeAndValidate(tx, &req); err != nil {
			return 0, nil, err
		}
		if err := checkSiteOwnership(ctx, tx.Repos.Reference, req.AccountID, req.SiteID); err != nil {
			return 0, nil, err
		}
		state, err := tx.InitialState()
		if err != nil {
			return 0, nil, err
		}
		ticket := newTicket(req, state)
		if err := tx.CreateTicket(ctx, ticket, domain.AuditPayload{}); err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, dto.NewTicketResponse(ticket), nil
	})
}

// Intake creates a ticket straight from a blind intake. Confident intakes skip triage.
func (s *TicketService) Intake(ctx context.Context, cmd Command) (*Response, error) {
	return s.pipeline.Execute(ctx, cmd, func(ctx context.Context, tx *CommandTx) (int, any, error) {
		var req dto.IntakeRequest
		if err := decodeAndValidate(tx, &req); err != nil {
			return 0, nil, err
		}
		if err := checkSiteOwnership(ctx, tx.Repos.Reference, req.AccountID, req.SiteID); err != nil {
			return 0, nil, err
		}
		state := domain.TicketStateTriaged
		if req.Confident(s.intakeThreshold) {
			target, err := tx.InitialState()
			if err != nil {
				return 0, nil, err
			}
			state = target
		}
		ticket := newTicket(req.CreateTicketRequest, state)
		priority, _ := domain.ParsePriority(req.Priority)
		incident := domain.NormalizeIncidentType(req.IncidentType)
		ticket.Priority = &priority
		ticket.IncidentType = &incident
		if err := tx.CreateTicket(ctx, ticket, domain.AuditPayload{}); err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, dto.NewTicketResponse(ticket), nil
	})
}

// Triage sets priority and incident type on a NEW ticket.
func (s *TicketService) Triage(ctx context.Context, cmd Command) (*Response, error) {
	return s.pipeline.Execute(ctx, cmd, func(ctx context.Context, tx *CommandTx) (int, any, error) {
		var req dto.TriageRequest
		if err := decodeAndValidate(tx, &req); err != nil {
			return 0, nil, err
		}
		ticket, before, err := lockAndGuard(ctx, tx, policy.TransitionOptions{})
		if err != nil {
			return 0, nil, err
		}
		priority, _ := domain.ParsePriority(req.Priority)
		incident := domain.NormalizeIncidentType(req.IncidentType)
		ticket.Priority = &priority
		ticket.IncidentType = &incident
		if req.NTECents != nil {
			nte := *req.NTECents
			ticket.NTECents = &nte
		}
		if err := tx.ApplyTicket(ctx, before, ticket, domain.AuditPayload{}); err != nil {
			return 0, nil, err
		}
		return http.StatusOK, dto.NewTicketResponse(ticket), nil
	})
}

// CheckIn records the technician arriving on site.
func (s *TicketService) CheckIn(ctx context.Context, cmd Command) (*Response, error) {
	return s.simpleTransition(ctx, cmd, &dto.CheckInRequest{})
}

// Verify records a passing QA review.
func (s *TicketService) Verify(ctx context.Context, cmd Command) (*Response, error) {
	return s.simpleTransition(ctx, cmd, &dto.VerifyRequest{})
}

// Invoice marks a verified ticket as invoiced.
func (s *TicketService) Invoice(ctx context.Context, cmd Command) (*Response, error) {
	return s.simpleTransition(ctx, cmd, &dto.InvoiceRequest{})
}

// simpleTransition runs a command whose only effect is the state change.
func (s *TicketService) simpleTransition(ctx context.Context, cmd Command, req any) (*Response, error) {
	return s.pipeline.Execute(ctx, cmd, func(ctx context.Context, tx *CommandTx) (int, any, error) {
		if err := decodeAndValidate(tx, req); err != nil {
			return 0, nil, err
		}
		ticket, before, err := lockAndGuard(ctx, tx, policy.TransitionOptions{})
		if err != nil {
			return 0, nil, err
		}
		if err := tx.ApplyTicket(ctx, before, ticket, domain.AuditPayload{}); err != nil {
			return 0, nil, err
		}
		return http.StatusOK, dto.NewTicketResponse(ticket), nil
	})
}

type validator interface {
	Validate() error
}

// decodeAndValidate decodes the body and runs Validate when the request has one.
func decodeAndValidate(tx *CommandTx, req any) error {
	if err := tx.Decode(req); err != nil {
		return err
	}
	if v, ok := req.(validator); ok {
		return v.Validate()
	}
	return nil
}

// lockAndGuard loads the path ticket under lock, checks the endpoint guard and moves the
// ticket to its next state. It returns the state the ticket was loaded in.
func lockAndGuard(ctx context.Context, tx *CommandTx, opts policy.TransitionOptions) (*domain.Ticket, domain.TicketState, error) {
	ticket, err := tx.LockTicket(ctx)
	if err != nil {
		return nil, "", err
	}
	before := ticket.State
	next, err := tx.Transition(ticket, opts)
	if err != nil {
		return nil, "", err
	}
	ticket.State = next
	return ticket, before, nil
}

func checkSiteOwnership(ctx context.Context, refs repository.ReferenceRepository, accountID, siteID string) error {
	accountID, siteID = strings.TrimSpace(accountID), strings.TrimSpace(siteID)
	if _, err := refs.GetAccount(ctx, accountID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewInvalidRequest("account does not exist", map[string]any{"account_id": accountID})
		}
		return err
	}
	site, err := refs.GetSite(ctx, siteID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewInvalidRequest("site does not exist", map[string]any{"site_id": siteID})
		}
		return err
	}
	if site.AccountID != accountID {
		return apperrors.NewInvalidRequest("site does not belong to account", map[string]any{
			"account_id": accountID,
			"site_id":    siteID,
		})
	}
	return nil
}

func newTicket(req dto.CreateTicketRequest, state domain.TicketState) *domain.Ticket {
	var nte int64
	if req.NTECents != nil {
		nte = *req.NTECents
	}
	ticket := &domain.Ticket{
		AccountID:   strings.TrimSpace(req.AccountID),
		SiteID:      strings.TrimSpace(req.SiteID),
		State:       state,
		Summary:     strings.TrimSpace(req.Summary),
		Description: req.Description,
		NTECents:    &nte,
	}
	if req.AssetID != nil {
		asset := strings.TrimSpace(*req.AssetID)
		ticket.AssetID = &asset
	}
	return ticket
}
