package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"companydir/internal/apperror"
	"companydir/internal/http/middleware"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string                `json:"code"`
	Message string                `json:"message"`
	Details []apperror.FieldError `json:"details,omitempty"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "INVALID_ID", "NOT_FOUND", "INTERNAL_ERROR")
// - message: human-readable safe message (no internal details)
// - details: optional per-field failures for VALIDATION_ERROR
func writeError(c *fiber.Ctx, status int, code, message string, details ...apperror.FieldError) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
	return c.Status(status).JSON(res)
}

// writeServiceError maps the service error taxonomy onto HTTP responses.
// Unclassified errors are logged and reported as INTERNAL_ERROR.
func writeServiceError(c *fiber.Ctx, log *zap.Logger, err error) error {
	var verr *apperror.ValidationError
	switch {
	case errors.As(err, &verr):
		return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", "validation failed", verr.Fields...)
	case errors.Is(err, apperror.ErrInvalidID):
		return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid company id")
	case errors.Is(err, apperror.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "company not found")
	case errors.Is(err, apperror.ErrStoreUnavailable):
		log.Warn("store unavailable",
			zap.String("request_id", requestIDFromCtx(c)),
			zap.Error(err),
		)
		c.Set(fiber.HeaderRetryAfter, "1")
		return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "service temporarily unavailable, please retry")
	default:
		log.Error("unhandled service error",
			zap.String("request_id", requestIDFromCtx(c)),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var e *fiber.Error
		if errors.As(err, &e) {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "PAYLOAD_TOO_LARGE", "request body too large")
		default:
			log.Error("unhandled error",
				zap.String("request_id", requestIDFromCtx(c)),
				zap.Error(err),
			)
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
