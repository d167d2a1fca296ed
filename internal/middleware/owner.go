package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// OwnerMiddleware resolves the acting owner from gateway-injected headers.
// Authentication happens at the API gateway upstream; this service trusts
// X-User-ID and X-Organization-ID on its internal listener.
func OwnerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-ID")
		if userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication required",
			})
		}

		c.Locals("user_id", userID)
		c.Locals("organization_id", c.Get("X-Organization-ID"))
		return c.Next()
	}
}
