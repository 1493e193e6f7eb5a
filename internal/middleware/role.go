package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/maallem-marketplace/internal/apperror"
	"github.com/iliyamo/maallem-marketplace/internal/model"
	"github.com/iliyamo/maallem-marketplace/internal/policy"
)

// RequireRole rejects callers whose role is not in roles with 403
// role_mismatch.  model.RoleAdmin in roles is satisfied by anything the
// policy treats as admin, including the reserved email.  It must run after
// Authenticate.
func RequireRole(pol *policy.Policy, roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := CurrentIdentity(c)
			if !ok {
				return respond(c, apperror.New(apperror.Unauthenticated, "missing identity"))
			}
			if allowed[id.Role] || (allowed[model.RoleAdmin] && pol.IsAdmin(id)) {
				return next(c)
			}
			return respond(c, apperror.New(apperror.RoleMismatch, "role not permitted for this route"))
		}
	}
}
