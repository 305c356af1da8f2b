package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/resolvehub/complaint-engine/internal/domain"
	apperrors "github.com/resolvehub/complaint-engine/pkg/util/errorutil"
)

// RequireRole ensures the principal has one of the allowed roles. No roles means
// any authenticated caller.
func RequireRole(allowed ...domain.StaffRole) fiber.Handler {
	allowedSet := make(map[domain.StaffRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Role()]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// RequireStaff admits staff and admins.
func RequireStaff() fiber.Handler {
	return RequireRole(domain.StaffRoleStaff, domain.StaffRoleAdmin)
}

// RequireAdmin admits admins only.
func RequireAdmin() fiber.Handler {
	return RequireRole(domain.StaffRoleAdmin)
}
