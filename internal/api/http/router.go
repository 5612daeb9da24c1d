package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dispatch-service/internal/api/http/handlers"
	"github.com/spec-kit/dispatch-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health     *handlers.HealthHandler
	Tickets    *handlers.TicketsHandler
	Schedule   *handlers.ScheduleHandler
	Assignment *handlers.AssignmentHandler
	Closeout   *handlers.CloseoutHandler
	Ops        *handlers.OpsHandler
	Actor      *auth.ActorMiddleware
}

// RegisterRoutes wires HTTP routes. Everything except the probes needs an actor.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("", cfg.Actor.Handle)

	tickets := api.Group("/tickets")
	tickets.Post("", cfg.Tickets.Create)
	tickets.Post("/intake", cfg.Tickets.Intake)
	tickets.Get("/:ticketId", cfg.Tickets.Get)
	tickets.Get("/:ticketId/timeline", cfg.Tickets.Timeline)
	tickets.Post("/:ticketId/triage", cfg.Tickets.Triage)
	tickets.Post("/:ticketId/tech/check-in", cfg.Tickets.CheckIn)
	tickets.Post("/:ticketId/qa/verify", cfg.Tickets.Verify)
	tickets.Post("/:ticketId/billing/invoice", cfg.Tickets.Invoice)

	tickets.Post("/:ticketId/schedule/propose", cfg.Schedule.Propose)
	tickets.Post("/:ticketId/schedule/confirm", cfg.Schedule.Confirm)
	tickets.Post("/:ticketId/schedule/hold", cfg.Schedule.Hold)
	tickets.Post("/:ticketId/schedule/release", cfg.Schedule.Release)
	tickets.Post("/:ticketId/schedule/rollback", cfg.Schedule.Rollback)

	tickets.Post("/:ticketId/assignment/recommend", cfg.Assignment.Recommend)
	tickets.Post("/:ticketId/assignment/dispatch", cfg.Assignment.Dispatch)

	tickets.Post("/:ticketId/evidence", cfg.Closeout.AddEvidence)
	tickets.Get("/:ticketId/evidence", cfg.Closeout.ListEvidence)
	tickets.Post("/:ticketId/tech/complete", cfg.Closeout.Complete)
	tickets.Post("/:ticketId/closeout/candidate", cfg.Closeout.Candidate)
	tickets.Get("/:ticketId/job-packet", cfg.Closeout.JobPacket)

	api.Get("/dispatcher/queue", cfg.Ops.Queue)
	api.Get("/metrics", cfg.Ops.Metrics)

	ops := api.Group("/ops")
	ops.Post("/autonomy/pause", cfg.Ops.PauseAutonomy)
	ops.Post("/autonomy/rollback", cfg.Ops.RollbackAutonomy)
	ops.Get("/autonomy/state", cfg.Ops.AutonomyState)
	ops.Get("/autonomy/replay/:ticketId", cfg.Ops.AutonomyReplay)
	ops.Get("/alerts", cfg.Ops.Alerts)
}
