package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/maallem-marketplace/internal/middleware"
	"github.com/iliyamo/maallem-marketplace/internal/model"
)

// registerRequests mounts the service request lifecycle.  Users create and
// list their own requests; providers list and decide the ones addressed to
// them.  Ownership is checked again by the engine.
func registerRequests(api *echo.Group, d Deps, limit echo.MiddlewareFunc) {
	g := api.Group("/requests", middleware.Authenticate(d.AuthCfg), limit)

	asUser := middleware.RequireRole(d.Policy, model.RoleUser)
	asProvider := middleware.RequireRole(d.Policy, model.RoleProvider)

	g.POST("/create", d.Requests.Create, asUser)
	g.GET("/user", d.Requests.ListUser, asUser)
	g.GET("/provider", d.Requests.ListProvider, asProvider)
	g.POST("/:id/status", d.Requests.UpdateStatus, asProvider)
}

// registerAccount mounts the caller's own account endpoints.  Any
// authenticated role may use them.
func registerAccount(api *echo.Group, d Deps, limit echo.MiddlewareFunc) {
	g := api.Group("/account", middleware.Authenticate(d.AuthCfg), limit)
	g.GET("/me", d.Account.Me)
	g.POST("/update", d.Account.Update)
}
