package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/maallem-marketplace/internal/service"
)

// AccountHandler serves the caller's own account.
type AccountHandler struct {
	Dir *service.Directory
}

func NewAccountHandler(dir *service.Directory) *AccountHandler { return &AccountHandler{Dir: dir} }

type updateAccountReq struct {
	FullName   string `json:"fullName" form:"fullName" validate:"required,max=255"`
	Email      string `json:"email" form:"email" validate:"required,max=255"`
	Phone      string `json:"phone" form:"phone" validate:"max=50"`
	City       string `json:"city" form:"city" validate:"max=100"`
	Profession string `json:"profession" form:"profession" validate:"max=100"`
	Bio        string `json:"bio" form:"bio"`
}

// Me: GET /api/account/me
func (h *AccountHandler) Me(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	view, err := h.Dir.Account(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// Update: POST /api/account/update (JSON or multipart with optional image)
func (h *AccountHandler) Update(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return fail(c, err)
	}
	var req updateAccountReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	img, closer, err := formImage(c)
	if err != nil {
		return fail(c, err)
	}
	if closer != nil {
		defer closer.Close()
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	err = h.Dir.UpdateAccount(ctx, id, service.UpdateInput{
		FullName:   req.FullName,
		Email:      req.Email,
		Phone:      req.Phone,
		City:       req.City,
		Profession: req.Profession,
		Bio:        req.Bio,
		Image:      img,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Account updated successfully!"})
}
