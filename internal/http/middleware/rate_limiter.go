package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimiter allows max requests per minute per client address. Clients are
// keyed by ClientIP so visitors behind the same reverse proxy are counted
// apart. The limiter only runs while enabled reports true.
func RateLimiter(max int, enabled func() bool, limitReached fiber.Handler) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return !enabled()
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			if ip := ClientIP(c); ip != "" {
				return ip
			}
			return c.IP()
		},
		LimitReached: limitReached,
	})
}
