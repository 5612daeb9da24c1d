package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dispatch-service/internal/auth"
	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/observability"
	"github.com/spec-kit/dispatch-service/internal/service"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util/errorutil"
)

// HeaderIdempotentReplay marks responses served from the idempotency store.
const HeaderIdempotentReplay = "Idempotent-Replay"

type commandFunc func(context.Context, service.Command) (*service.Response, error)

// actorFor labels the request with its endpoint and returns the resolved actor.
func actorFor(c *fiber.Ctx, endpoint string) (domain.ActorContext, error) {
	c.Locals(observability.LocalEndpoint, endpoint)
	if ticketID := c.Params(service.TicketIDParam); ticketID != "" {
		c.Locals(observability.LocalTicketID, ticketID)
	}
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return domain.ActorContext{}, apperrors.NewMissingActorContext("actor context is required")
	}
	return actor, nil
}

// runCommand hands a mutating request to the pipeline and writes the committed
// or replayed response verbatim.
func runCommand(c *fiber.Ctx, endpoint string, fn commandFunc) error {
	actor, err := actorFor(c, endpoint)
	if err != nil {
		return err
	}
	cmd := service.Command{
		Endpoint:       endpoint,
		Actor:          actor,
		IdempotencyKey: c.Get("Idempotency-Key"),
		PathParams:     map[string]string{},
		Body:           append([]byte(nil), c.Body()...),
	}
	if ticketID := c.Params(service.TicketIDParam); ticketID != "" {
		cmd.PathParams[service.TicketIDParam] = ticketID
	}

	resp, err := fn(c.UserContext(), cmd)
	if err != nil {
		return err
	}
	c.Locals(observability.LocalRequestID, resp.RequestID)
	c.Locals(observability.LocalReplay, resp.Replay)
	c.Set(HeaderIdempotentReplay, strconv.FormatBool(resp.Replay))
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(resp.Status).Send(resp.Body)
}
