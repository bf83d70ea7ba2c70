package middleware

import (
	"strings"

	"marketplace/internal/models"
	"marketplace/internal/services"
	pkgerrors "marketplace/pkg/errors"
	"marketplace/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// AuthRequired is a Fiber middleware to check for a valid JWT token.
func AuthRequired(authService *services.AuthService, logg *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return deny(c, pkgerrors.CodeUnauthorized, "Authorization header is required")
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			return deny(c, pkgerrors.CodeUnauthorized, "Authorization header format must be 'Bearer <token>'")
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			if logg != nil {
				logg.Warn(c.UserContext(), "jwt validation failed: "+err.Error())
			}
			return deny(c, pkgerrors.CodeUnauthorized, "Invalid or expired token")
		}

		c.Locals(localUserID, claims.UserID)
		c.Locals(localRole, claims.Role)
		if logg != nil {
			c.SetUserContext(logg.WithUserID(c.UserContext(), claims.UserID))
		}
		return c.Next()
	}
}

// RequireRole allows the request through only for the listed roles.
// It must run after AuthRequired.
func RequireRole(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role := Role(c)
		for _, allowed := range roles {
			if role == allowed {
				return c.Next()
			}
		}
		return deny(c, pkgerrors.CodeForbidden, "insufficient role")
	}
}

func deny(c *fiber.Ctx, code pkgerrors.Code, message string) error {
	meta := pkgerrors.MetadataFor(code)
	return c.Status(meta.HTTPStatus).JSON(fiber.Map{
		"code":    code,
		"message": message,
	})
}
