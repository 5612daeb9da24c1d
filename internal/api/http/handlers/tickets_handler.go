package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dispatch-service/internal/policy"
	"github.com/spec-kit/dispatch-service/internal/service"
)

// TicketsHandler serves ticket lifecycle commands and ticket reads.
type TicketsHandler struct {
	tickets *service.TicketService
	query   *service.QueryService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, query *service.QueryService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, query: query}
}

// Create POST /tickets.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	return runCommand(c, policy.EndpointCreateTicket, h.tickets.Create)
}

// Intake POST /tickets/intake.
func (h *TicketsHandler) Intake(c *fiber.Ctx) error {
	return runCommand(c, policy.EndpointIntake, h.tickets.Intake)
}

// Triage POST /tickets/:ticketId/triage.
func (h *TicketsHandler) Triage(c *fiber.Ctx) error {
	return runCommand(c, policy.EndpointTriage, h.tickets.Triage)
}

// CheckIn POST /tickets/:ticketId/tech/check-in.
func (h *TicketsHandler) CheckIn(c *fiber.Ctx) error {
	return runCommand(c, policy.EndpointCheckIn, h.tickets.CheckIn)
}

// Verify POST /tickets/:ticketId/qa/verify.
func (h *TicketsHandler) Verify(c *fiber.Ctx) error {
	return runCommand(c, policy.EndpointVerify, h.tickets.Verify)
}

// Invoice POST /tickets/:ticketId/billing/invoice.
func (h *TicketsHandler) Invoice(c *fiber.Ctx) error {
	return runCommand(c, policy.EndpointInvoice, h.tickets.Invoice)
}

// Get GET /tickets/:ticketId.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	actor, err := actorFor(c, policy.EndpointGetTicket)
	if err != nil {
		return err
	}
	ticket, err := h.query.GetTicket(c.UserContext(), actor, c.Params(service.TicketIDParam))
	if err != nil {
		return err
	}
	return c.JSON(ticket)
}

// Timeline GET /tickets/:ticketId/timeline.
func (h *TicketsHandler) Timeline(c *fiber.Ctx) error {
	actor, err := actorFor(c, policy.EndpointTimeline)
	if err != nil {
		return err
	}
	timeline, err := h.query.Timeline(c.UserContext(), actor, c.Params(service.TicketIDParam))
	if err != nil {
		return err
	}
	return c.JSON(timeline)
}
