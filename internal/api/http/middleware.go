package http

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/dispatch-service/internal/auth"
	"github.com/spec-kit/dispatch-service/internal/observability"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util/errorutil"
)

// HeaderIdempotencyKey carries the caller's request id on commands.
const HeaderIdempotencyKey = "Idempotency-Key"

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	app.Use(observability.RequestLogger(logger, metrics))
	app.Use(errorHandlingMiddleware(logger, metrics))
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				domainErr := toDomainError(err)
				if metrics != nil {
					metrics.RecordError(domainErr.Code)
				}
				c.Locals(observability.LocalErrorCode, domainErr.Code)
				if domainErr.HTTPStatus >= fiber.StatusInternalServerError {
					logger.Error("request failed", zap.Error(domainErr), zap.Any("reference", domainErr.Details["reference"]))
				}
				c.Status(domainErr.HTTPStatus)
				_ = c.JSON(fiber.Map{"error": errorBody(c, domainErr)})
				err = nil
			}
		}()
		return c.Next()
	}
}

// errorBody flattens details next to code and message. Context fields never
// overwrite the envelope keys.
func errorBody(c *fiber.Ctx, domainErr *apperrors.DomainError) fiber.Map {
	body := fiber.Map{}
	for k, v := range domainErr.Details {
		body[k] = v
	}
	correlationID, _ := c.Locals(observability.LocalCorrelationID).(string)
	if correlationID == "" {
		correlationID = auth.CorrelationID(c.Get(auth.HeaderCorrelationID))
	}
	body["code"] = domainErr.Code
	body["message"] = domainErr.Message
	body["correlation_id"] = correlationID
	if requestID := c.Get(HeaderIdempotencyKey); requestID != "" {
		body["request_id"] = requestID
	}
	return body
}

func toDomainError(err error) *apperrors.DomainError {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		switch fiberErr.Code {
		case fiber.StatusNotFound:
			return apperrors.NewNotFound("route", nil).(*apperrors.DomainError)
		case fiber.StatusMethodNotAllowed, fiber.StatusRequestEntityTooLarge, fiber.StatusBadRequest:
			return apperrors.NewDomainError(apperrors.CodeInvalidRequest, fiberErr.Message, fiberErr.Code, nil)
		}
	}
	return apperrors.ToDomainError(err)
}
