package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = fiber.HeaderXRequestID

// GetRequestID returns the id assigned by the server's requestid middleware,
// or "" when the middleware did not run.
func GetRequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(requestid.ConfigDefault.ContextKey).(string); ok {
		return id
	}
	return ""
}
