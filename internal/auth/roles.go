package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/repairdesk/repair-desk/pkg/util"
)

// RequireStaff ensures the authenticated actor holds staff privilege.
func RequireStaff(authz *Authorizer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := ActorFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !authz.IsStaff(actor) {
			return apperrors.NewForbidden("staff privilege required")
		}
		return c.Next()
	}
}

// RequireAnyActor ensures a caller is authenticated.
func RequireAnyActor() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := ActorFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
