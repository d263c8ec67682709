package serverutils

import (
	"context"
	"errors"

	"workflow-agent-be/internal/pkg/logger"
	"workflow-agent-be/pkg/apperror"

	"github.com/gofiber/fiber/v2"
)

const (
	msgUpstreamUnavailable = "The workflow assistant is temporarily unavailable, please try again"
	msgInternal            = "Internal server error"
	msgTimeout             = "The request took too long, please try again"
)

// StatusFor maps an error onto an HTTP status and a message safe to show.
func StatusFor(err error) (int, string) {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, fe.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fiber.StatusGatewayTimeout, msgTimeout
	}

	switch apperror.KindOf(err) {
	case apperror.KindValidation:
		var verr *apperror.ValidationError
		if errors.As(err, &verr) {
			return fiber.StatusUnprocessableEntity, verr.Error()
		}
		return fiber.StatusUnprocessableEntity, err.Error()
	case apperror.KindNotFound:
		return fiber.StatusNotFound, "Not found"
	case apperror.KindClassification, apperror.KindGeneration, apperror.KindRetrieval:
		return fiber.StatusBadGateway, msgUpstreamUnavailable
	default:
		return fiber.StatusInternalServerError, msgInternal
	}
}

// ErrorHandlerMiddleware turns handler errors into the JSON error envelope.
func ErrorHandlerMiddleware(log logger.ILogger) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		status, message := StatusFor(err)
		details := map[string]interface{}{
			"method": ctx.Method(),
			"path":   ctx.Path(),
			"status": status,
			"error":  err.Error(),
		}
		if status >= fiber.StatusInternalServerError {
			log.Error("HTTP", "Request failed", details)
		} else {
			log.Warn("HTTP", "Request rejected", details)
		}
		return ctx.Status(status).JSON(ErrorResponse(message))
	}
}
