package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/maallem-marketplace/internal/service"
)

// RequestHandler exposes the service request lifecycle.
type RequestHandler struct {
	Engine *service.Engine
}

func NewRequestHandler(e *service.Engine) *RequestHandler { return &RequestHandler{Engine: e} }

type createRequestReq struct {
	ProviderUserID uint64 `json:"providerUserId"`
	Description    string `json:"description"`
	Address        string `json:"address" validate:"max=255"`
}

type statusReq struct {
	Status string `json:"status"`
}

// Create: POST /api/requests/create
func (h *RequestHandler) Create(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return fail(c, err)
	}
	var req createRequestReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	created, err := h.Engine.CreateRequest(ctx, id, service.CreateInput{
		ProviderUserID: req.ProviderUserID,
		Description:    req.Description,
		Address:        req.Address,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message":   "Request sent successfully!",
		"requestId": created.ID,
		"request":   created,
	})
}

// ListProvider: GET /api/requests/provider
func (h *RequestHandler) ListProvider(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	out, err := h.Engine.ListForProvider(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// ListUser: GET /api/requests/user
func (h *RequestHandler) ListUser(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	out, err := h.Engine.ListForUser(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// UpdateStatus: POST /api/requests/:id/status
func (h *RequestHandler) UpdateStatus(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return fail(c, err)
	}
	requestID, err := pathID(c, "id", "request id")
	if err != nil {
		return fail(c, err)
	}
	var req statusReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	updated, err := h.Engine.TransitionStatus(ctx, id, requestID, req.Status)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Request " + string(updated.Status) + " successfully!",
		"request": updated,
	})
}
