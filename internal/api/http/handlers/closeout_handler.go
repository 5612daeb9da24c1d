package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dispatch-service/internal/policy"
	"github.com/spec-kit/dispatch-service/internal/service"
)

// CloseoutHandler serves evidence, completion and the technician job packet.
type CloseoutHandler struct {
	closeout *service.CloseoutService
	query    *service.QueryService
}

// NewCloseoutHandler constructs handler.
func NewCloseoutHandler(closeout *service.CloseoutService, query *service.QueryService) *CloseoutHandler {
	return &CloseoutHandler{closeout: closeout, query: query}
}

// AddEvidence POST /tickets/:ticketId/evidence.
func (h *CloseoutHandler) AddEvidence(c *fiber.Ctx) error {
	return runCommand(c, policy.EndpointAddEvidence, h.closeout.AddEvidence)
}

// Complete POST /tickets/:ticketId/tech/complete.
func (h *CloseoutHandler) Complete(c *fiber.Ctx) error {
	return runCommand(c, policy.EndpointComplete, h.closeout.Complete)
}

// Candidate POST /tickets/:ticketId/closeout/candidate.
func (h *CloseoutHandler) Candidate(c *fiber.Ctx) error {
	return runCommand(c, policy.EndpointCloseoutCandidate, h.closeout.Candidate)
}

// ListEvidence GET /tickets/:ticketId/evidence.
func (h *CloseoutHandler) ListEvidence(c *fiber.Ctx) error {
	actor, err := actorFor(c, policy.EndpointListEvidence)
	if err != nil {
		return err
	}
	list, err := h.query.Evidence(c.UserContext(), actor, c.Params(service.TicketIDParam))
	if err != nil {
		return err
	}
	return c.JSON(list)
}

// JobPacket GET /tickets/:ticketId/job-packet.
func (h *CloseoutHandler) JobPacket(c *fiber.Ctx) error {
	actor, err := actorFor(c, policy.EndpointJobPacket)
	if err != nil {
		return err
	}
	packet, err := h.query.JobPacket(c.UserContext(), actor, c.Params(service.TicketIDParam))
	if err != nil {
		return err
	}
	return c.JSON(packet)
}
