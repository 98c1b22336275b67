package middleware

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"personachat/pkg/auth"
)

// Locals keys set by IdentityMiddleware
const (
	LocalIdentity     = "identity"
	LocalIdentityTier = "identity_tier"
	LocalIdentityKind = "identity_kind"
)

// IdentityMiddleware verifies bearer tokens and stores the caller identity.
// With a nil jwtAuth the middleware is a no-op and handlers trust the request body.
// Tokens may also come from the "token" query parameter for WebSocket upgrades.
func IdentityMiddleware(jwtAuth *auth.JWTAuth) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if jwtAuth == nil {
			return c.Next()
		}

		var token string
		if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
			if extracted, err := auth.ExtractToken(authHeader); err == nil {
				token = extracted
			}
		}
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing or invalid authorization token",
				"kind":  "unauthorized",
			})
		}

		identity, err := jwtAuth.VerifyToken(token)
		if err != nil {
			log.Printf("❌ [AUTH] Token rejected: %v", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
				"kind":  "unauthorized",
			})
		}

		c.Locals(LocalIdentity, identity.ID)
		c.Locals(LocalIdentityTier, identity.Tier)
		c.Locals(LocalIdentityKind, identity.Kind)
		return c.Next()
	}
}

// IdentityFromCtx returns the verified identity and tier, if any
func IdentityFromCtx(c *fiber.Ctx) (id, tier string, ok bool) {
	id, ok = c.Locals(LocalIdentity).(string)
	if !ok || id == "" {
		return "", "", false
	}
	tier, _ = c.Locals(LocalIdentityTier).(string)
	return id, tier, true
}
