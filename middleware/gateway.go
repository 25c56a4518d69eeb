// middleware/gateway.go
package middleware

import (
	"log"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// GatewayAuthMiddleware rejects any request not carrying the shared
// service token the gateway injects. It runs before everything else; the
// review surface is never reachable directly.
func GatewayAuthMiddleware() fiber.Handler {
	expected := os.Getenv("MISSION_SERVICE_TOKEN")
	if expected == "" {
		log.Fatal("❌ MISSION_SERVICE_TOKEN is not set — refusing to start unauthenticated")
	}

	return func(c *fiber.Ctx) error {
		// Accept "Bearer <token>" or the raw token value
		presented := strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
		if presented == "" {
			log.Printf("🚫 [GATEWAY_AUTH] No credentials on %s %s", c.Method(), c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "gateway authentication token missing",
			})
		}
		if presented != expected {
			log.Printf("🚫 [GATEWAY_AUTH] Token mismatch on %s %s", c.Method(), c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid gateway authentication token",
			})
		}
		return c.Next()
	}
}
