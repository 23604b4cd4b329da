package middleware

import (
	"log"
	"strings"

	"coin-toss-system/cache"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the expected bearer-token payload: the standard subject carries
// the user id, and the auth service sets "admin" for administrators.
type Claims struct {
	jwt.RegisteredClaims
	Admin bool `json:"admin"`
}

func parseBearer(c *fiber.Ctx, secret string) (*Claims, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "missing or invalid authorization header")
	}
	tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "token missing subject")
	}
	return claims, nil
}

// bearerSubject extracts the verified token subject without failing the
// request. The general rate limiter runs before the auth middleware, so it
// cannot rely on Locals and keys its window through this instead.
func bearerSubject(c *fiber.Ctx, secret string) string {
	claims, err := parseBearer(c, secret)
	if err != nil {
		return ""
	}
	return claims.Subject
}

// UserContext validates the bearer token and attaches user_id / is_admin to
// the request context. Rejects unauthenticated callers with 401 before any
// handler logic runs.
func UserContext(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := parseBearer(c, secret)
		if err != nil {
			ferr := err.(*fiber.Error)
			return c.Status(ferr.Code).JSON(fiber.Map{"success": false, "error": ferr.Message})
		}
		c.Locals("user_id", claims.Subject)
		c.Locals("is_admin", claims.Admin)
		return c.Next()
	}
}

// OptionalUserContext attaches identity when a valid token is present but
// lets anonymous callers through. Used by the public leaderboard so it can
// include the viewer's own rank.
func OptionalUserContext(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if claims, err := parseBearer(c, secret); err == nil {
			c.Locals("user_id", claims.Subject)
			c.Locals("is_admin", claims.Admin)
		}
		return c.Next()
	}
}

// AdminOnly gates admin routes. The verified flag is kept in the injected
// cache for its TTL so repeated admin calls skip re-verification; the cache
// is invalidated externally when admin status changes.
func AdminOnly(adminCache cache.AdminStatusCache) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		if userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "error": "authentication required"})
		}

		isAdmin, found, err := adminCache.Get(c.Context(), userID)
		if err != nil {
			log.Printf("[ADMIN_CACHE] lookup failed for %s: %v", userID, err)
			found = false
		}
		claimAdmin, _ := c.Locals("is_admin").(bool)
		if !found {
			isAdmin = claimAdmin
			if err := adminCache.Set(c.Context(), userID, isAdmin); err != nil {
				log.Printf("[ADMIN_CACHE] store failed for %s: %v", userID, err)
			}
		} else if claimAdmin && !isAdmin {
			// a freshly issued token granting admin overrides a stale cached
			// denial; promotion takes effect without waiting out the TTL
			isAdmin = true
			if err := adminCache.Set(c.Context(), userID, true); err != nil {
				log.Printf("[ADMIN_CACHE] store failed for %s: %v", userID, err)
			}
		}

		if !isAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"success": false, "error": "admin access required"})
		}
		return c.Next()
	}
}
