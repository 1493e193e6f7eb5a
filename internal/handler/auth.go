package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/maallem-marketplace/internal/model"
	"github.com/iliyamo/maallem-marketplace/internal/service"
)

// AuthHandler serves signup and login.
type AuthHandler struct {
	Dir *service.Directory
}

func NewAuthHandler(dir *service.Directory) *AuthHandler { return &AuthHandler{Dir: dir} }

// ----- DTOs -----

// signupReq accepts JSON or multipart form fields.  The image part, if any,
// is read separately.
type signupReq struct {
	FullName   string `json:"fullName" form:"fullName" validate:"required,max=255"`
	Email      string `json:"email" form:"email" validate:"required,max=255"`
	Password   string `json:"password" form:"password" validate:"required,max=255"`
	Role       string `json:"role" form:"role" validate:"required,oneof=user provider"`
	Phone      string `json:"phone" form:"phone" validate:"max=50"`
	City       string `json:"city" form:"city" validate:"max=100"`
	Profession string `json:"profession" form:"profession" validate:"max=100"`
	Bio        string `json:"bio" form:"bio"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup: create a user or provider account.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
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

	res, err := h.Dir.Signup(ctx, service.SignupInput{
		FullName:   req.FullName,
		Email:      req.Email,
		Password:   req.Password,
		Role:       req.Role,
		Phone:      req.Phone,
		City:       req.City,
		Profession: req.Profession,
		Bio:        req.Bio,
		Image:      img,
	})
	if err != nil {
		return fail(c, err)
	}

	msg := "User signed up successfully!"
	if res.Role == model.RoleProvider {
		msg = "Provider signed up successfully!"
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": msg, "userId": res.UserID, "role": res.Role})
}

// Login: verify credentials and return the user with an access token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Dir.Login(ctx, req.Email, req.Password)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":      "Login successful",
		"user":         res.User,
		"access_token": res.AccessToken,
		"expires_at":   res.ExpiresAt,
	})
}
