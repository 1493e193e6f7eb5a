package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/maallem-marketplace/internal/middleware"
	"github.com/iliyamo/maallem-marketplace/internal/model"
)

// registerAdmin mounts the admin dashboard.  Admin is derived from the
// reserved email, so RequireRole consults the policy rather than the token
// role alone.
func registerAdmin(api *echo.Group, d Deps, limit echo.MiddlewareFunc) {
	g := api.Group("/admin",
		middleware.Authenticate(d.AuthCfg),
		limit,
		middleware.RequireRole(d.Policy, model.RoleAdmin),
	)
	g.GET("/users", d.Admin.ListUsers)
	g.DELETE("/users/:id", d.Admin.DeleteUser)
}
