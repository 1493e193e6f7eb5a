package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/maallem-marketplace/internal/apperror"
	"github.com/iliyamo/maallem-marketplace/internal/identity"
	"github.com/iliyamo/maallem-marketplace/internal/service"
)

// requestTimeout bounds the storage work of a single call.
const requestTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// fail writes err as {"error": kind, "message": text}.  Storage failures are
// logged with their cause, which never reaches the client.
func fail(c echo.Context, err error) error {
	status, body := apperror.Response(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			"error", err)
	}
	return c.JSON(status, body)
}

// caller returns the identity resolved by the Authenticate middleware.
func caller(c echo.Context) (identity.Identity, error) {
	id, ok := identity.FromContext(c.Request().Context())
	if !ok {
		return identity.Identity{}, apperror.New(apperror.Unauthenticated, "missing identity")
	}
	return id, nil
}

// bind decodes and validates the request body into dst.
func bind(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return apperror.Wrap(apperror.Validation, "invalid body", err)
	}
	if c.Echo().Validator == nil {
		return nil
	}
	return c.Validate(dst)
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name, label string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperror.New(apperror.Validation, "invalid "+label)
	}
	return id, nil
}

// formImage returns the optional "image" part of a multipart request.  The
// returned closer must be called once the upload has been consumed.
func formImage(c echo.Context) (*service.Upload, io.Closer, error) {
	if !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return nil, nil, nil
	}
	fh, err := c.FormFile("image")
	if err == http.ErrMissingFile {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, apperror.Wrap(apperror.Validation, "invalid image upload", err)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, apperror.Wrap(apperror.Validation, "invalid image upload", err)
	}
	return &service.Upload{Name: fh.Filename, Body: f}, f, nil
}
