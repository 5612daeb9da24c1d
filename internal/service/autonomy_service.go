package service

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/spec-kit/dispatch-service/internal/api/dto"
	"github.com/spec-kit/dispatch-service/internal/autonomy"
	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/events"
	"github.com/spec-kit/dispatch-service/internal/policy"
	"github.com/spec-kit/dispatch-service/internal/repository"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util/errorutil"
)

// AutonomyService pauses and resumes autonomous agents per scope.
type AutonomyService struct {
	pipeline *Pipeline
	store    repository.Store
	gate     *policy.Gate
	resolver *autonomy.Resolver
}

// AutonomyDependencies bundles collaborators for the autonomy service.
type AutonomyDependencies struct {
	Pipeline *Pipeline
	Store    repository.Store
	Gate     *policy.Gate
	Resolver *autonomy.Resolver
}

// NewAutonomyService constructs the service.
func NewAutonomyService(deps AutonomyDependencies) *AutonomyService {
	return &AutonomyService{
		pipeline: deps.Pipeline,
		store:    deps.Store,
		gate:     deps.Gate,
		resolver: deps.Resolver,
	}
}

// Pause sets the scope to paused.
func (s *AutonomyService) Pause(ctx context.Context, cmd Command) (*Response, error) {
	return s.control(ctx, cmd, domain.AutonomyActionPause, true)
}

// Rollback clears the pause at the scope.
func (s *AutonomyService) Rollback(ctx context.Context, cmd Command) (*Response, error) {
	return s.control(ctx, cmd, domain.AutonomyActionRollback, false)
}

func (s *AutonomyService) control(ctx context.Context, cmd Command, action domain.AutonomyAction, paused bool) (*Response, error) {
	return s.pipeline.Execute(ctx, cmd, func(ctx context.Context, tx *CommandTx) (int, any, error) {
		var req dto.AutonomyControlRequest
		if err := decodeAndValidate(tx, &req); err != nil {
			return 0, nil, err
		}
		scope := scopeFromRequest(req)
		if err := tx.Repos.Autonomy.LockScope(ctx, scope); err != nil {
			return 0, nil, err
		}
		previous, err := s.currentFlag(ctx, tx.Repos.Autonomy, scope)
		if err != nil {
			return 0, nil, err
		}

		actor := tx.Command.Actor
		entry := &domain.AutonomyHistory{
			ID:               uuid.NewString(),
			ScopeType:        scope.Type,
			ScopeID:          scope.ID,
			Action:           action,
			PreviousIsPaused: previous,
			NextIsPaused:     paused,
			Reason:           strings.TrimSpace(req.Reason),
			ActorID:          actor.ActorID,
			ActorRole:        actor.Role,
			RequestID:        tx.RequestID,
			CorrelationID:    actor.CorrelationID,
			CreatedAt:        tx.Now,
		}
		if err := tx.Repos.Autonomy.Append(ctx, entry); err != nil {
			return 0, nil, err
		}
		ticketID := ""
		if scope.Type == domain.AutonomyScopeTicket {
			ticketID = scope.ID
		}
		tx.Emit(events.EventAutonomyChanged, ticketID, events.AutonomyChangedPayload{
			ScopeType: scope.Type,
			ScopeID:   scope.ID,
			Action:    action,
			IsPaused:  paused,
			Reason:    entry.Reason,
		})
		return http.StatusOK, dto.AutonomyControlResponse{
			HistoryID:        entry.ID,
			ScopeType:        entry.ScopeType,
			ScopeID:          entry.ScopeID,
			Action:           entry.Action,
			PreviousIsPaused: entry.PreviousIsPaused,
			IsPaused:         entry.NextIsPaused,
			Reason:           entry.Reason,
			CreatedAt:        entry.CreatedAt.UTC(),
		}, nil
	})
}

func (s *AutonomyService) currentFlag(ctx context.Context, repo repository.AutonomyRepository, scope autonomy.ScopeKey) (bool, error) {
	latest := map[autonomy.ScopeKey]domain.AutonomyHistory{}
	h, err := repo.Latest(ctx, scope)
	switch {
	case err == nil:
		latest[scope] = *h
	case !errors.Is(err, repository.ErrNotFound):
		return false, err
	}
	return s.resolver.Current(scope, latest), nil
}

// State resolves the decision for an optional ticket and incident type.
func (s *AutonomyService) State(ctx context.Context, actor domain.ActorContext, ticketID, incidentType string) (*dto.AutonomyStateResponse, error) {
	if _, err := s.gate.Authorize(policy.EndpointAutonomyState, actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(ticketID) != "" {
		id, err := dto.ParseTicketID(ticketID)
		if err != nil {
			return nil, err
		}
		ticketID = id
	}
	target := autonomy.Target{TicketID: ticketID, IncidentType: incidentType}
	repos := s.store.Repositories()
	decision, history, err := resolveAutonomy(ctx, repos.Autonomy, s.resolver, target)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	latest := latestByScope(history)
	scopes := make([]dto.AutonomyScopeState, 0, 3)
	for _, key := range target.Scopes() {
		scopes = append(scopes, dto.AutonomyScopeState{
			ScopeType: key.Type,
			ScopeID:   key.ID,
			IsPaused:  s.resolver.Current(key, latest),
		})
	}
	return &dto.AutonomyStateResponse{
		TicketID:     ticketID,
		IncidentType: domain.NormalizeIncidentType(incidentType),
		Decision:     decision,
		Scopes:       scopes,
	}, nil
}

// Replay returns the history that applies to a ticket and the decision it resolves to.
func (s *AutonomyService) Replay(ctx context.Context, actor domain.ActorContext, rawTicketID string) (*dto.AutonomyReplayResponse, error) {
	if _, err := s.gate.Authorize(policy.EndpointAutonomyReplay, actor); err != nil {
		return nil, err
	}
	ticketID, err := dto.ParseTicketID(rawTicketID)
	if err != nil {
		return nil, err
	}
	repos := s.store.Repositories()
	ticket, err := repos.Tickets.GetByID(ctx, ticketID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewTicketNotFound(ticketID)
	}
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	target := autonomy.Target{TicketID: ticket.ID, IncidentType: ticket.IncidentTypeValue()}
	decision, history, err := resolveAutonomy(ctx, repos.Autonomy, s.resolver, target)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	out := &dto.AutonomyReplayResponse{
		TicketID:     ticket.ID,
		IncidentType: domain.NormalizeIncidentType(ticket.IncidentTypeValue()),
		Decision:     decision,
		History:      make([]dto.AutonomyHistoryResponse, 0, len(history)),
	}
	for _, h := range history {
		out.History = append(out.History, dto.NewAutonomyHistoryResponse(h))
	}
	return out, nil
}

// resolveAutonomy loads history for the target's scopes, newest first, and resolves it.
func resolveAutonomy(ctx context.Context, repo repository.AutonomyRepository, resolver *autonomy.Resolver, target autonomy.Target) (domain.AutonomyDecision, []domain.AutonomyHistory, error) {
	history, err := repo.ListByScopes(ctx, target.Scopes())
	if err != nil {
		return domain.AutonomyDecision{}, nil, err
	}
	return resolver.Resolve(target, latestByScope(history)), history, nil
}

// latestByScope keeps the first row seen per scope; history must be newest first.
func latestByScope(history []domain.AutonomyHistory) map[autonomy.ScopeKey]domain.AutonomyHistory {
	latest := make(map[autonomy.ScopeKey]domain.AutonomyHistory, len(history))
	for _, h := range history {
		key := autonomy.ScopeKey{Type: h.ScopeType, ID: h.ScopeID}
		if _, seen := latest[key]; !seen {
			latest[key] = h
		}
	}
	return latest
}

func scopeFromRequest(req dto.AutonomyControlRequest) autonomy.ScopeKey {
	scopeType, _ := domain.ParseAutonomyScopeType(req.ScopeType)
	switch scopeType {
	case domain.AutonomyScopeIncident:
		return autonomy.IncidentScope(req.ScopeID)
	case domain.AutonomyScopeTicket:
		return autonomy.TicketScope(req.ScopeID)
	default:
		return autonomy.GlobalScope()
	}
}
