package middleware

import (
	"log"
	"strings"

	"shophub/internal/services"

	"github.com/gofiber/fiber/v2"
)

// Keys under which AuthRequired stores the token claims.
const (
	LocalUserID   = "user_id"
	LocalUsername = "username"
	LocalIsAdmin  = "is_admin"
)

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}

// AuthRequired is a Fiber middleware to check for a valid JWT token.
func AuthRequired(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c, "Authorization header is required")
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			return unauthorized(c, "Authorization header format must be 'Bearer <token>'")
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			log.Printf("JWT validation failed: %v", err)
			return unauthorized(c, "Invalid or expired token")
		}

		c.Locals(LocalUserID, claims.UserID)
		c.Locals(LocalUsername, claims.Username)
		c.Locals(LocalIsAdmin, claims.IsAdmin)

		return c.Next()
	}
}

// AdminRequired rejects callers whose token does not carry the admin flag.
// It must run after AuthRequired.
func AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !CallerFrom(c).IsAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"message": "Admin access required",
			})
		}
		return c.Next()
	}
}

// CallerFrom returns the authenticated caller stored by AuthRequired.
func CallerFrom(c *fiber.Ctx) services.Caller {
	userID, _ := c.Locals(LocalUserID).(string)
	isAdmin, _ := c.Locals(LocalIsAdmin).(bool)
	return services.Caller{UserID: userID, IsAdmin: isAdmin}
}
