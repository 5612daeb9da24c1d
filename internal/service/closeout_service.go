package service

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/spec-kit/dispatch-service/internal/api/dto"
	"github.com/spec-kit/dispatch-service/internal/autonomy"
	"github.com/spec-kit/dispatch-service/internal/closeout"
	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/events"
	"github.com/spec-kit/dispatch-service/internal/policy"
	"github.com/spec-kit/dispatch-service/internal/repository"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util/errorutil"
)

// CloseoutService captures evidence and gates completion on it.
type CloseoutService struct {
	pipeline  *Pipeline
	evaluator *closeout.Evaluator
	resolver  *autonomy.Resolver
}

// CloseoutDependencies bundles collaborators for the closeout service.
type CloseoutDependencies struct {
	Pipeline  *Pipeline
	Evaluator *closeout.Evaluator
	Resolver  *autonomy.Resolver
}

// NewCloseoutService constructs the service.
func NewCloseoutService(deps CloseoutDependencies) *CloseoutService {
	return &CloseoutService{
		pipeline:  deps.Pipeline,
		evaluator: deps.Evaluator,
		resolver:  deps.Resolver,
	}
}

// AddEvidence appends one evidence item.
func (s *CloseoutService) AddEvidence(ctx context.Context, cmd Command) (*Response, error) {
	return s.pipeline.Execute(ctx, cmd, func(ctx context.Context, tx *CommandTx) (int, any, error) {
		var req dto.AddEvidenceRequest
		if err := decodeAndValidate(tx, &req); err != nil {
			return 0, nil, err
		}
		ticket, _, err := lockAndGuard(ctx, tx, policy.TransitionOptions{})
		if err != nil {
			return 0, nil, err
		}
		item := &domain.EvidenceItem{
			ID:        uuid.NewString(),
			TicketID:  ticket.ID,
			Kind:      strings.TrimSpace(req.Kind),
			URI:       strings.TrimSpace(req.URI),
			Checksum:  req.Checksum,
			Metadata:  req.MetadataWithKey(),
			CreatedBy: tx.Command.Actor.ActorID,
			CreatedAt: tx.Now,
		}
		if err := tx.Repos.Evidence.Create(ctx, item); err != nil {
			return 0, nil, err
		}
		if err := tx.Annotate(ctx, ticket, domain.AuditPayload{EvidenceItemID: item.ID}); err != nil {
			return 0, nil, err
		}
		tx.Emit(events.EventEvidenceAdded, ticket.ID, events.EvidenceAddedPayload{
			EvidenceItemID: item.ID,
			Kind:           item.Kind,
			EvidenceKey:    item.EvidenceKey(),
		})
		return http.StatusCreated, dto.NewEvidenceResponse(*item), nil
	})
}

// Complete moves an in-progress ticket to verification once closeout requirements are met.
func (s *CloseoutService) Complete(ctx context.Context, cmd Command) (*Response, error) {
	return s.pipeline.Execute(ctx, cmd, func(ctx context.Context, tx *CommandTx) (int, any, error) {
		var req dto.CompleteRequest
		if err := decodeAndValidate(tx, &req); err != nil {
			return 0, nil, err
		}
		ticket, before, err := lockAndGuard(ctx, tx, policy.TransitionOptions{})
		if err != nil {
			return 0, nil, err
		}
		return s.complete(ctx, tx, ticket, before, req, nil)
	})
}

// Candidate is the autonomous completion path: the autonomy decision for the ticket is
// consulted first, then the same closeout gate as Complete.
func (s *CloseoutService) Candidate(ctx context.Context, cmd Command) (*Response, error) {
	return s.pipeline.Execute(ctx, cmd, func(ctx context.Context, tx *CommandTx) (int, any, error) {
		var req dto.CompleteRequest
		if err := decodeAndValidate(tx, &req); err != nil {
			return 0, nil, err
		}
		ticket, err := tx.LockTicket(ctx)
		if err != nil {
			return 0, nil, err
		}
		target := autonomy.Target{TicketID: ticket.ID, IncidentType: ticket.IncidentTypeValue()}
		decision, _, err := resolveAutonomy(ctx, tx.Repos.Autonomy, s.resolver, target)
		if err != nil {
			return 0, nil, err
		}
		if decision.IsPaused {
			return 0, nil, apperrors.NewAutonomyDisabled(string(decision.ScopeType), decision.ScopeID)
		}

		before := ticket.State
		next, err := tx.Transition(ticket, policy.TransitionOptions{})
		if err != nil {
			return 0, nil, err
		}
		ticket.State = next
		return s.complete(ctx, tx, ticket, before, req, &decision)
	})
}

func (s *CloseoutService) complete(ctx context.Context, tx *CommandTx, ticket *domain.Ticket, before domain.TicketState, req dto.CompleteRequest, decision *domain.AutonomyDecision) (int, any, error) {
	items, err := tx.Repos.Evidence.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return 0, nil, err
	}
	check := s.evaluator.Evaluate(closeout.Input{
		IncidentType:      ticket.IncidentTypeValue(),
		EvidenceKeys:      evidenceKeys(items),
		ChecklistStatus:   req.Checklist(),
		NoSignatureReason: req.NoSignatureReason,
	})
	if !check.Ready {
		return 0, nil, apperrors.NewCloseoutIncomplete(closeoutDetails(check))
	}

	count := len(items)
	payload := domain.AuditPayload{
		CloseoutCheck:          &check,
		PersistedEvidenceCount: &count,
		AutonomyDecision:       decision,
	}
	if err := tx.ApplyTicket(ctx, before, ticket, payload); err != nil {
		return 0, nil, err
	}
	return http.StatusOK, dto.NewTicketResponse(ticket), nil
}

// PreviewCloseout evaluates the gate for a ticket without a checklist, for job packets.
func PreviewCloseout(ctx context.Context, evaluator *closeout.Evaluator, evidence repository.EvidenceRepository, ticket *domain.Ticket) (domain.CloseoutCheck, []domain.EvidenceItem, error) {
	items, err := evidence.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return domain.CloseoutCheck{}, nil, err
	}
	return evaluator.Evaluate(closeout.Input{
		IncidentType: ticket.IncidentTypeValue(),
		EvidenceKeys: evidenceKeys(items),
	}), items, nil
}

func evidenceKeys(items []domain.EvidenceItem) []string {
	keys := make([]string, 0, len(items))
	for _, item := range items {
		if key := item.EvidenceKey(); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

func closeoutDetails(check domain.CloseoutCheck) map[string]any {
	details := map[string]any{
		"requirement_code":       check.Code,
		"incident_type":          nil,
		"template_version":       nil,
		"missing_evidence_keys":  check.MissingEvidenceKeys,
		"missing_checklist_keys": check.MissingChecklistKeys,
	}
	if check.IncidentType != "" {
		details["incident_type"] = check.IncidentType
	}
	if check.TemplateVersion != "" {
		details["template_version"] = check.TemplateVersion
	}
	return details
}
