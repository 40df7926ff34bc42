package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"manifesthub/internal/database"
	"manifesthub/internal/models"
	"manifesthub/internal/services"
)

func hasRole(userRole string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, r := range allowed {
		if r == userRole {
			return true
		}
	}
	return false
}

// bearerToken reads the JWT from Authorization: Bearer, falling back to the
// "token" cookie.
func bearerToken(c *fiber.Ctx) string {
	if authz := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	return c.Cookies("token")
}

// AuthRequired verifies the bearer token and, when roles are given, that the
// caller holds one of them. The current user is stored in Locals("user").
// The role is checked against the stored user so a demoted account loses
// access before its token expires.
func AuthRequired(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Access token required")
		}
		claims, err := services.ParseToken(token)
		if err != nil {
			return fiber.NewError(fiber.StatusForbidden, "Invalid or expired token")
		}
		var user models.User
		if err := database.DB.First(&user, claims.UserID).Error; err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "User not found")
		}
		if !hasRole(user.Role, roles) {
			return fiber.NewError(fiber.StatusForbidden, "Admin access required")
		}
		c.Locals("user", &user)
		c.Locals("claims", claims)
		return c.Next()
	}
}

// CurrentUser returns the user set by AuthRequired.
func CurrentUser(c *fiber.Ctx) *models.User {
	u, _ := c.Locals("user").(*models.User)
	return u
}
