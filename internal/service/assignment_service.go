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
	"github.com/spec-kit/dispatch-service/internal/recommend"
	"github.com/spec-kit/dispatch-service/internal/repository"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util/errorutil"
)

// AssignmentService recommends technicians and dispatches them.
type AssignmentService struct {
	pipeline *Pipeline
}

// NewAssignmentService creates the service.
func NewAssignmentService(pipeline *Pipeline) *AssignmentService {
	return &AssignmentService{pipeline: pipeline}
}

// Recommend scores active technicians for the ticket and stores the result as a snapshot.
func (s *AssignmentService) Recommend(ctx context.Context, cmd Command) (*Response, error) {
	return s.pipeline.Execute(ctx, cmd, func(ctx context.Context, tx *CommandTx) (int, any, error) {
		var req dto.RecommendRequest
		if err := decodeAndValidate(tx, &req); err != nil {
			return 0, nil, err
		}
		ticket, _, err := lockAndGuard(ctx, tx, policy.TransitionOptions{})
		if err != nil {
			return 0, nil, err
		}
		serviceType := domain.NormalizeIncidentType(req.ServiceType)
		if serviceType == "" {
			serviceType = domain.NormalizeIncidentType(ticket.IncidentTypeValue())
		}
		if serviceType == "" {
			return 0, nil, apperrors.NewInvalidRequest("Field 'service_type' is required when the ticket has no incident type", map[string]any{"field": "service_type"})
		}

		region, err := siteRegion(ctx, tx.Repos.Reference, ticket.SiteID)
		if err != nil {
			return 0, nil, err
		}
		techs, err := tx.Repos.Reference.ListActiveTechnicians(ctx)
		if err != nil {
			return 0, nil, err
		}
		load, err := tx.Repos.Tickets.CountActiveByTech(ctx)
		if err != nil {
			return 0, nil, err
		}

		snapshot := &domain.RecommendationSnapshot{
			SnapshotID:  uuid.NewString(),
			TicketID:    ticket.ID,
			ServiceType: serviceType,
			Candidates: recommend.Rank(recommend.Input{
				ServiceType: serviceType,
				SiteRegion:  region,
				Technicians: techs,
				ActiveLoad:  load,
				Limit:       req.RecommendationLimit,
			}),
			CreatedAt: tx.Now,
		}
		if req.PreferredWindow != nil {
			window := req.PreferredWindow.Window()
			snapshot.PreferredWindow = &window
		}
		if err := tx.Repos.Recommendations.Create(ctx, snapshot); err != nil {
			return 0, nil, err
		}
		if err := tx.Annotate(ctx, ticket, domain.AuditPayload{RecommendationSnapshotID: snapshot.SnapshotID}); err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, dto.NewRecommendResponse(snapshot), nil
	})
}

// Dispatch assigns a technician. Lineage, capability and zone are checked before the
// state guard so a rejected dispatch never touches the ticket.
func (s *AssignmentService) Dispatch(ctx context.Context, cmd Command) (*Response, error) {
	return s.pipeline.Execute(ctx, cmd, func(ctx context.Context, tx *CommandTx) (int, any, error) {
		var req dto.DispatchRequest
		if err := decodeAndValidate(tx, &req); err != nil {
			return 0, nil, err
		}
		ticket, err := tx.LockTicket(ctx)
		if err != nil {
			return 0, nil, err
		}

		techID := strings.TrimSpace(req.TechID)
		tech, err := tx.Repos.Reference.GetTechnician(ctx, techID)
		if errors.Is(err, repository.ErrNotFound) {
			return 0, nil, apperrors.NewAssignmentNotFound(techID)
		}
		if err != nil {
			return 0, nil, err
		}
		if !tech.Active {
			return 0, nil, apperrors.NewAssignmentNotFound(techID)
		}

		snapshotID := req.SnapshotID()
		serviceType := ticket.IncidentTypeValue()
		if snapshotID != "" {
			snapshot, err := checkLineage(ctx, tx.Repos.Recommendations, ticket.ID, snapshotID, techID)
			if err != nil {
				return 0, nil, err
			}
			if serviceType == "" {
				serviceType = snapshot.ServiceType
			}
		}
		if serviceType != "" && !tech.HasCapability(serviceType) {
			return 0, nil, apperrors.NewAssignmentCapabilityMismatch(techID, domain.NormalizeIncidentType(serviceType))
		}
		region, err := siteRegion(ctx, tx.Repos.Reference, ticket.SiteID)
		if err != nil {
			return 0, nil, err
		}
		if region != "" && !tech.ServesRegion(region) {
			return 0, nil, apperrors.NewAssignmentZoneMismatch(techID, region)
		}

		before := ticket.State
		next, err := tx.Transition(ticket, policy.TransitionOptions{DispatchMode: req.Mode()})
		if err != nil {
			return 0, nil, err
		}
		ticket.State = next
		ticket.AssignedTechID = &techID
		ticket.AssignedProviderID = providerFor(req, tech)

		payload := domain.AuditPayload{DispatchMode: req.Mode(), RecommendationSnapshotID: snapshotID}
		if err := tx.ApplyTicket(ctx, before, ticket, payload); err != nil {
			return 0, nil, err
		}
		tx.CountDispatch(snapshotID != "")
		tx.Emit(events.EventTicketDispatched, ticket.ID, events.TicketDispatchedPayload{
			TechID:                   techID,
			ProviderID:               deref(ticket.AssignedProviderID),
			RecommendationSnapshotID: snapshotID,
			DispatchMode:             req.Mode(),
		})
		return http.StatusOK, dto.NewTicketResponse(ticket), nil
	})
}

// checkLineage requires the snapshot to be the ticket's latest and to list the technician.
func checkLineage(ctx context.Context, recs repository.RecommendationRepository, ticketID, snapshotID, techID string) (*domain.RecommendationSnapshot, error) {
	mismatch := apperrors.NewAssignmentRecommendationMismatch(snapshotID, techID)
	if _, err := uuid.Parse(snapshotID); err != nil {
		return nil, mismatch
	}
	snapshot, err := recs.GetBySnapshotID(ctx, snapshotID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, mismatch
	}
	if err != nil {
		return nil, err
	}
	if snapshot.TicketID != ticketID || !snapshot.Contains(techID) {
		return nil, mismatch
	}
	latest, err := recs.LatestForTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if latest.SnapshotID != snapshot.SnapshotID {
		return nil, mismatch
	}
	return snapshot, nil
}

func siteRegion(ctx context.Context, refs repository.ReferenceRepository, siteID string) (string, error) {
	site, err := refs.GetSite(ctx, siteID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return site.Region, nil
}

func providerFor(req dto.DispatchRequest, tech *domain.Technician) *string {
	if req.ProviderID != nil && strings.TrimSpace(*req.ProviderID) != "" {
		provider := strings.TrimSpace(*req.ProviderID)
		return &provider
	}
	if tech.ProviderID != nil {
		provider := *tech.ProviderID
		return &provider
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
