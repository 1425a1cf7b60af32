package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"companydir/internal/logger"
)

const (
	RequestIDHeader   = "X-Request-ID"
	RequestIDLocalKey = "request_id"

	maxRequestIDLen = 128
)

// RequestID tags every request with an id taken from X-Request-ID or freshly
// generated. The id is echoed on the response, kept in Locals for handlers
// and copied into the user context so service and store logs can carry it.
// Oversized inbound ids are replaced.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}

		c.Locals(RequestIDLocalKey, id)
		c.SetUserContext(logger.WithRequestID(c.UserContext(), id))
		c.Set(RequestIDHeader, id)

		return c.Next()
	}
}
