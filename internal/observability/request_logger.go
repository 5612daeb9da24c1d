package observability

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Locals keys shared by handlers and the request logger.
const (
	LocalEndpoint      = "dispatch.endpoint"
	LocalActorID       = "dispatch.actor_id"
	LocalActorRole     = "dispatch.actor_role"
	LocalCorrelationID = "dispatch.correlation_id"
	LocalRequestID     = "dispatch.request_id"
	LocalTicketID      = "dispatch.ticket_id"
	LocalReplay        = "dispatch.replay"
	LocalErrorCode     = "dispatch.error_code"
)

// UnmatchedEndpoint labels requests that hit no route.
const UnmatchedEndpoint = "UNMATCHED"

// RequestLogger logs one structured line per request and counts it in metrics.
// It must wrap the error middleware so it sees the final status.
func RequestLogger(logger *zap.Logger, metrics *Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				status = fiberErr.Code
			}
		}
		endpoint := localString(c, LocalEndpoint)
		if endpoint == "" {
			endpoint = UnmatchedEndpoint
		}
		replay, _ := c.Locals(LocalReplay).(bool)
		metrics.RecordRequest(c.Method(), endpoint, status)

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("endpoint", endpoint),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("correlation_id", localString(c, LocalCorrelationID)),
			zap.String("request_id", localString(c, LocalRequestID)),
			zap.String("actor_id", localString(c, LocalActorID)),
			zap.String("actor_role", localString(c, LocalActorRole)),
			zap.String("ticket_id", localString(c, LocalTicketID)),
			zap.Bool("replay", replay),
		}
		if code := localString(c, LocalErrorCode); code != "" {
			fields = append(fields, zap.String("error_code", code))
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			logger.Error("request completed", fields...)
		case status >= fiber.StatusBadRequest:
			logger.Warn("request completed", fields...)
		default:
			logger.Info("request completed", fields...)
		}
		return err
	}
}

func localString(c *fiber.Ctx, key string) string {
	v, _ := c.Locals(key).(string)
	return v
}
