package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dispatch-service/internal/policy"
	"github.com/spec-kit/dispatch-service/internal/service"
)

// ScheduleHandler serves scheduling and hold commands.
type ScheduleHandler struct {
	schedule *service.ScheduleService
}

// NewScheduleHandler constructs handler.
func NewScheduleHandler(schedule *service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{schedule: schedule}
}

// Propose POST /tickets/:ticketId/schedule/propose.
func (h *ScheduleHandler) Propose(c *fiber.Ctx) error {
	return runCommand(c, policy.EndpointSchedulePropose, h.schedule.Propose)
}

// Confirm POST /tickets/:ticketId/schedule/confirm.
func (h *ScheduleHandler) Confirm(c *fiber.Ctx) error {
	return runCommand(c, policy.EndpointScheduleConfirm, h.schedule.Confirm)
}

// Hold POST /tickets/:ticketId/schedule/hold.
func (h *ScheduleHandler) Hold(c *fiber.Ctx) error {
	return runCommand(c, policy.EndpointScheduleHold, h.schedule.Hold)
}

// Release POST /tickets/:ticketId/schedule/release.
func (h *ScheduleHandler) Release(c *fiber.Ctx) error {
	return runCommand(c, policy.EndpointScheduleRelease, h.schedule.Release)
}

// Rollback POST /tickets/:ticketId/schedule/rollback.
func (h *ScheduleHandler) Rollback(c *fiber.Ctx) error {
	return runCommand(c, policy.EndpointScheduleRollback, h.schedule.Rollback)
}
