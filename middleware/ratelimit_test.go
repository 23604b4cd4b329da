package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func signToken(t *testing.T, sub string, admin bool) string {
	t.Helper()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Admin: admin,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

// The general limiter is installed before the auth middleware, so the key
// generator has to resolve the caller from the bearer token itself. Two users
// behind one address must get separate windows.
func TestGeneralLimiterKeysByUser(t *testing.T) {
	app := fiber.New()
	app.Use(GeneralLimiter(testSecret))
	app.Use(UserContext(testSecret))
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	tokenA := signToken(t, "user-a", false)
	for i := 0; i < 120; i++ {
		req := httptest.NewRequest("GET", "/ping", nil)
		req.Header.Set("Authorization", "Bearer "+tokenA)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("request %d: status %d, want 200", i, resp.StatusCode)
		}
	}

	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set("Authorization", "Bearer "+tokenA)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Errorf("user-a past the window: status %d, want 429", resp.StatusCode)
	}

	// same address, different account: fresh window
	req = httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "user-b", false))
	resp, err = app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("user-b sharing user-a's address: status %d, want 200", resp.StatusCode)
	}
}

func TestGeneralLimiterAnonymousFallsBackToAddress(t *testing.T) {
	app := fiber.New()
	app.Use(GeneralLimiter(testSecret))
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	for i := 0; i < 120; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("request %d: status %d, want 200", i, resp.StatusCode)
		}
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Errorf("anonymous caller past the window: status %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("429 must carry a Retry-After header")
	}
}
