package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dispatch-service/internal/policy"
	"github.com/spec-kit/dispatch-service/internal/service"
)

// AssignmentHandler serves recommendation and dispatch commands.
type AssignmentHandler struct {
	assign *service.AssignmentService
}

// NewAssignmentHandler constructs handler.
func NewAssignmentHandler(assign *service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assign: assign}
}

// Recommend POST /tickets/:ticketId/assignment/recommend.
func (h *AssignmentHandler) Recommend(c *fiber.Ctx) error {
	return runCommand(c, policy.EndpointRecommend, h.assign.Recommend)
}

// Dispatch POST /tickets/:ticketId/assignment/dispatch.
func (h *AssignmentHandler) Dispatch(c *fiber.Ctx) error {
	return runCommand(c, policy.EndpointDispatch, h.assign.Dispatch)
}
