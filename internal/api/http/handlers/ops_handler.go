package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dispatch-service/internal/policy"
	"github.com/spec-kit/dispatch-service/internal/service"
)

// OpsHandler serves autonomy controls, the dispatcher queue, metrics and alerts.
type OpsHandler struct {
	autonomy *service.AutonomyService
	query    *service.QueryService
}

// NewOpsHandler constructs handler.
func NewOpsHandler(autonomy *service.AutonomyService, query *service.QueryService) *OpsHandler {
	return &OpsHandler{autonomy: autonomy, query: query}
}

// PauseAutonomy POST /ops/autonomy/pause.
func (h *OpsHandler) PauseAutonomy(c *fiber.Ctx) error {
	return runCommand(c, policy.EndpointAutonomyPause, h.autonomy.Pause)
}

// RollbackAutonomy POST /ops/autonomy/rollback.
func (h *OpsHandler) RollbackAutonomy(c *fiber.Ctx) error {
	return runCommand(c, policy.EndpointAutonomyRollback, h.autonomy.Rollback)
}

// AutonomyState GET /ops/autonomy/state?ticket_id=&incident_type=.
func (h *OpsHandler) AutonomyState(c *fiber.Ctx) error {
	actor, err := actorFor(c, policy.EndpointAutonomyState)
	if err != nil {
		return err
	}
	state, err := h.autonomy.State(c.UserContext(), actor, c.Query("ticket_id"), c.Query("incident_type"))
	if err != nil {
		return err
	}
	return c.JSON(state)
}

// AutonomyReplay GET /ops/autonomy/replay/:ticketId.
func (h *OpsHandler) AutonomyReplay(c *fiber.Ctx) error {
	actor, err := actorFor(c, policy.EndpointAutonomyReplay)
	if err != nil {
		return err
	}
	replay, err := h.autonomy.Replay(c.UserContext(), actor, c.Params(service.TicketIDParam))
	if err != nil {
		return err
	}
	return c.JSON(replay)
}

// Queue GET /dispatcher/queue.
func (h *OpsHandler) Queue(c *fiber.Ctx) error {
	actor, err := actorFor(c, policy.EndpointDispatcherQueue)
	if err != nil {
		return err
	}
	queue, err := h.query.Queue(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(queue)
}

// Metrics GET /metrics.
func (h *OpsHandler) Metrics(c *fiber.Ctx) error {
	actor, err := actorFor(c, policy.EndpointMetrics)
	if err != nil {
		return err
	}
	snap, err := h.query.Metrics(actor)
	if err != nil {
		return err
	}
	return c.JSON(snap)
}

// Alerts GET /ops/alerts.
func (h *OpsHandler) Alerts(c *fiber.Ctx) error {
	actor, err := actorFor(c, policy.EndpointAlerts)
	if err != nil {
		return err
	}
	alerts, err := h.query.Alerts(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(alerts)
}
