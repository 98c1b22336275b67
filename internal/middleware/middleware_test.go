package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"personachat/pkg/auth"
)

func identityApp(jwtAuth *auth.JWTAuth) *fiber.App {
	app := fiber.New()
	app.Use(IdentityMiddleware(jwtAuth))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		id, tier, ok := IdentityFromCtx(c)
		if !ok {
			return c.SendString("anonymous")
		}
		return c.SendString(id + "/" + tier)
	})
	return app
}

func TestIdentityMiddleware(t *testing.T) {
	jwtAuth, _ := auth.NewJWTAuth("secret", time.Minute)
	token, _ := jwtAuth.IssueToken(auth.Identity{ID: "u1", Tier: "elevated"})

	tests := []struct {
		name       string
		auth       *auth.JWTAuth
		header     string
		query      string
		wantStatus int
		wantBody   string
	}{
		{"disabled", nil, "", "", http.StatusOK, "anonymous"},
		{"valid header", jwtAuth, "Bearer " + token, "", http.StatusOK, "u1/elevated"},
		{"valid query", jwtAuth, "", "?token=" + token, http.StatusOK, "u1/elevated"},
		{"missing", jwtAuth, "", "", http.StatusUnauthorized, ""},
		{"invalid", jwtAuth, "Bearer nope", "", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := identityApp(tt.auth)
			req := httptest.NewRequest(http.MethodGet, "/whoami"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test() error = %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantBody != "" {
				body, _ := io.ReadAll(resp.Body)
				if string(body) != tt.wantBody {
					t.Errorf("body = %q, want %q", body, tt.wantBody)
				}
			}
		})
	}
}

func TestGlobalAPIRateLimiter(t *testing.T) {
	app := fiber.New()
	app.Use(GlobalAPIRateLimiter(&RateLimitConfig{GlobalAPIMax: 2, GlobalAPIExpiration: time.Minute}))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	for i := 0; i < 2; i++ {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d status = %d", i, resp.StatusCode)
		}
	}
	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", resp.Header.Get("Retry-After"))
	}
}
