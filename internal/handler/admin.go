package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/maallem-marketplace/internal/service"
)

// AdminHandler serves the admin dashboard.
type AdminHandler struct {
	Dir    *service.Directory
	Purger *service.Purger
}

func NewAdminHandler(dir *service.Directory, p *service.Purger) *AdminHandler {
	return &AdminHandler{Dir: dir, Purger: p}
}

// ListUsers: GET /api/admin/users
func (h *AdminHandler) ListUsers(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	users, err := h.Dir.ListUsers(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, users)
}

// DeleteUser: DELETE /api/admin/users/:id
func (h *AdminHandler) DeleteUser(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return fail(c, err)
	}
	target, err := pathID(c, "id", "user id")
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Purger.DeleteUser(ctx, id, target)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "User deleted successfully.", "result": res})
}
