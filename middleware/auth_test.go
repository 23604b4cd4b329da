package middleware

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"coin-toss-system/cache"

	"github.com/gofiber/fiber/v2"
)

func adminApp(adminCache cache.AdminStatusCache) *fiber.App {
	app := fiber.New()
	app.Use(UserContext(testSecret), AdminOnly(adminCache))
	app.Get("/guarded", func(c *fiber.Ctx) error { return c.SendString("ok") })
	return app
}

func TestAdminOnly(t *testing.T) {
	t.Run("missing token is 401", func(t *testing.T) {
		app := adminApp(cache.NewMemoryAdminCache(time.Minute))
		resp, err := app.Test(httptest.NewRequest("GET", "/guarded", nil))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != fiber.StatusUnauthorized {
			t.Errorf("status %d, want 401", resp.StatusCode)
		}
	})

	t.Run("non-admin token is 403", func(t *testing.T) {
		app := adminApp(cache.NewMemoryAdminCache(time.Minute))
		req := httptest.NewRequest("GET", "/guarded", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "user-a", false))
		resp, err := app.Test(req)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != fiber.StatusForbidden {
			t.Errorf("status %d, want 403", resp.StatusCode)
		}
	})

	t.Run("admin token passes and is cached", func(t *testing.T) {
		adminCache := cache.NewMemoryAdminCache(time.Minute)
		app := adminApp(adminCache)
		req := httptest.NewRequest("GET", "/guarded", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "boss", true))
		resp, err := app.Test(req)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Errorf("status %d, want 200", resp.StatusCode)
		}
		isAdmin, found, _ := adminCache.Get(context.Background(), "boss")
		if !found || !isAdmin {
			t.Errorf("admin flag not cached: found=%v isAdmin=%v", found, isAdmin)
		}
	})

	t.Run("granting claim overrides a stale cached denial", func(t *testing.T) {
		adminCache := cache.NewMemoryAdminCache(time.Minute)
		// cached from before the user was promoted
		_ = adminCache.Set(context.Background(), "promoted", false)

		app := adminApp(adminCache)
		req := httptest.NewRequest("GET", "/guarded", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "promoted", true))
		resp, err := app.Test(req)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Errorf("promoted admin got %d, want 200 without waiting out the TTL", resp.StatusCode)
		}
		isAdmin, _, _ := adminCache.Get(context.Background(), "promoted")
		if !isAdmin {
			t.Error("cache must be refreshed with the granted flag")
		}
	})
}
