package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// callerKey prefers the authenticated user id so limits follow the account.
// The general window runs before the auth middleware, so the bearer token is
// verified here when Locals is not populated yet; anonymous traffic falls
// back to the network address.
func callerKey(secret string) func(*fiber.Ctx) string {
	return func(c *fiber.Ctx) string {
		if userID, ok := c.Locals("user_id").(string); ok && userID != "" {
			return userID
		}
		if sub := bearerSubject(c, secret); sub != "" {
			return sub
		}
		return c.IP()
	}
}

func limitReached(window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		retryAfter := int(window.Seconds())
		c.Set("Retry-After", strconv.Itoa(retryAfter))
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"success":             false,
			"error":               "too many requests",
			"retry_after_seconds": retryAfter,
		})
	}
}

// GeneralLimiter is the per-service window applied to every route.
func GeneralLimiter(secret string) fiber.Handler {
	window := 1 * time.Minute
	return limiter.New(limiter.Config{
		Max:          120,
		Expiration:   window,
		KeyGenerator: callerKey(secret),
		LimitReached: limitReached(window),
	})
}

// AdminLimiter is the stricter window layered on admin-mutating routes.
func AdminLimiter(secret string) fiber.Handler {
	window := 1 * time.Minute
	return limiter.New(limiter.Config{
		Max:          30,
		Expiration:   window,
		KeyGenerator: callerKey(secret),
		LimitReached: limitReached(window),
	})
}
