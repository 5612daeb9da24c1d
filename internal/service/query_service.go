package service

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/dispatch-service/internal/api/dto"
	"github.com/spec-kit/dispatch-service/internal/closeout"
	"github.com/spec-kit/dispatch-service/internal/config"
	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/observability"
	"github.com/spec-kit/dispatch-service/internal/policy"
	"github.com/spec-kit/dispatch-service/internal/queue"
	"github.com/spec-kit/dispatch-service/internal/repository"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util/errorutil"
)

// QueryService serves the read endpoints. Reads never touch the idempotency store.
type QueryService struct {
	store     repository.Store
	gate      *policy.Gate
	evaluator *closeout.Evaluator
	metrics   *observability.Metrics
	queueCfg  queue.Config
	alertsCfg config.AlertsConfig
	clock     func() time.Time
}

// QueryDependencies bundles collaborators for the query service.
type QueryDependencies struct {
	Store     repository.Store
	Gate      *policy.Gate
	Evaluator *closeout.Evaluator
	Metrics   *observability.Metrics
	Queue     queue.Config
	Alerts    config.AlertsConfig
	Clock     func() time.Time
}

// NewQueryService constructs the service.
func NewQueryService(deps QueryDependencies) *QueryService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &QueryService{
		store:     deps.Store,
		gate:      deps.Gate,
		evaluator: deps.Evaluator,
		metrics:   deps.Metrics,
		queueCfg:  deps.Queue,
		alertsCfg: deps.Alerts,
		clock:     clock,
	}
}

// GetTicket returns one ticket.
func (s *QueryService) GetTicket(ctx context.Context, actor domain.ActorContext, rawID string) (*dto.TicketResponse, error) {
	ticket, err := s.visibleTicket(ctx, policy.EndpointGetTicket, actor, rawID)
	if err != nil {
		return nil, err
	}
	resp := dto.NewTicketResponse(ticket)
	return &resp, nil
}

// Timeline returns the ticket's audit events in commit order.
func (s *QueryService) Timeline(ctx context.Context, actor domain.ActorContext, rawID string) (*dto.TimelineResponse, error) {
	ticket, err := s.visibleTicket(ctx, policy.EndpointTimeline, actor, rawID)
	if err != nil {
		return nil, err
	}
	events, err := s.store.Repositories().Audit.ListEventsByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	resp := dto.NewTimelineResponse(ticket.ID, events)
	return &resp, nil
}

// Evidence lists the ticket's evidence items.
func (s *QueryService) Evidence(ctx context.Context, actor domain.ActorContext, rawID string) (*dto.EvidenceListResponse, error) {
	ticket, err := s.visibleTicket(ctx, policy.EndpointListEvidence, actor, rawID)
	if err != nil {
		return nil, err
	}
	items, err := s.store.Repositories().Evidence.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	resp := dto.NewEvidenceListResponse(ticket.ID, items)
	return &resp, nil
}

// JobPacket bundles the ticket, its site, evidence and the current closeout check.
func (s *QueryService) JobPacket(ctx context.Context, actor domain.ActorContext, rawID string) (*dto.JobPacketResponse, error) {
	ticket, err := s.visibleTicket(ctx, policy.EndpointJobPacket, actor, rawID)
	if err != nil {
		return nil, err
	}
	repos := s.store.Repositories()
	check, items, err := PreviewCloseout(ctx, s.evaluator, repos.Evidence, ticket)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	packet := &dto.JobPacketResponse{
		Ticket:        dto.NewTicketResponse(ticket),
		Evidence:      dto.NewEvidenceListResponse(ticket.ID, items).Evidence,
		CloseoutCheck: check,
		GeneratedAt:   s.clock().UTC(),
	}
	site, err := repos.Reference.GetSite(ctx, ticket.SiteID)
	switch {
	case err == nil:
		packet.Site = &dto.SiteResponse{ID: site.ID, AccountID: site.AccountID, Name: site.Name, Region: site.Region}
	case !errors.Is(err, repository.ErrNotFound):
		return nil, apperrors.NewInternalError(err)
	}
	return packet, nil
}

// Queue returns the dispatcher queue, narrowed to the actor's scope when one is declared.
func (s *QueryService) Queue(ctx context.Context, actor domain.ActorContext) (*dto.QueueResponse, error) {
	if _, err := s.gate.Authorize(policy.EndpointDispatcherQueue, actor); err != nil {
		return nil, err
	}
	now := s.clock().UTC()
	rows, err := s.queueRows(ctx, now, actor)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &dto.QueueResponse{GeneratedAt: now, Queue: rows}, nil
}

// Metrics returns the in-process counters.
func (s *QueryService) Metrics(actor domain.ActorContext) (*observability.Snapshot, error) {
	if _, err := s.gate.Authorize(policy.EndpointMetrics, actor); err != nil {
		return nil, err
	}
	snap := s.metrics.Snapshot()
	return &snap, nil
}

// Alerts evaluates thresholds over the counters and the current queue.
func (s *QueryService) Alerts(ctx context.Context, actor domain.ActorContext) (*dto.AlertsResponse, error) {
	if _, err := s.gate.Authorize(policy.EndpointAlerts, actor); err != nil {
		return nil, err
	}
	now := s.clock().UTC()
	rows, err := s.queueRows(ctx, now, domain.ActorContext{})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	breaches := 0
	for _, r := range rows {
		if r.SLAStatus == queue.SLABreach {
			breaches++
		}
	}
	alerts := observability.EvaluateAlerts(s.metrics.Snapshot(), observability.AlertSignals{SLABreaches: breaches}, s.alertsCfg)
	return &dto.AlertsResponse{GeneratedAt: now, Alerts: alerts}, nil
}

func (s *QueryService) queueRows(ctx context.Context, now time.Time, actor domain.ActorContext) ([]queue.Row, error) {
	listed, err := s.store.Repositories().Tickets.ListWithRegion(ctx, repository.TicketFilter{States: queue.ActiveStates})
	if err != nil {
		return nil, err
	}
	entries := make([]queue.Entry, 0, len(listed))
	for _, l := range listed {
		if !narrowedTo(actor.AccountScope, l.Ticket.AccountID) || !narrowedTo(actor.SiteScope, l.Ticket.SiteID) {
			continue
		}
		entries = append(entries, queue.Entry{Ticket: l.Ticket, Region: l.Region})
	}
	return queue.Build(now, entries, s.queueCfg), nil
}

// narrowedTo treats an undeclared (nil) scope as unfiltered; the queue is not a scoped read.
// A declared empty scope still covers nothing.
func narrowedTo(scope []string, id string) bool {
	return scope == nil || policy.Covers(scope, id)
}

// visibleTicket authorizes the read, then checks the ticket against the actor's scope.
func (s *QueryService) visibleTicket(ctx context.Context, endpoint string, actor domain.ActorContext, rawID string) (*domain.Ticket, error) {
	if _, err := s.gate.Authorize(endpoint, actor); err != nil {
		return nil, err
	}
	id, err := dto.ParseTicketID(rawID)
	if err != nil {
		return nil, err
	}
	ticket, err := s.store.Repositories().Tickets.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewTicketNotFound(id)
	}
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if err := s.gate.AuthorizeScope(endpoint, actor, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}
