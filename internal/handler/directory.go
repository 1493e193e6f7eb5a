package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/maallem-marketplace/internal/service"
)

// DirectoryHandler serves the public reference lists and provider search.
type DirectoryHandler struct {
	Dir *service.Directory
}

func NewDirectoryHandler(dir *service.Directory) *DirectoryHandler {
	return &DirectoryHandler{Dir: dir}
}

// list returns a handler rendering the named list as [{field: value}].
func (h *DirectoryHandler) list(which service.Lookup, field string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := reqCtx(c)
		defer cancel()

		values, err := h.Dir.Dropdown(ctx, which)
		if err != nil {
			return fail(c, err)
		}
		out := make([]map[string]string, 0, len(values))
		for _, v := range values {
			out = append(out, map[string]string{field: v})
		}
		return c.JSON(http.StatusOK, out)
	}
}

// Cities: GET /cities (reference table)
func (h *DirectoryHandler) Cities() echo.HandlerFunc { return h.list(service.LookupCities, "name") }

// Professions: GET /professions (reference table)
func (h *DirectoryHandler) Professions() echo.HandlerFunc {
	return h.list(service.LookupProfessions, "name")
}

// ProviderCities: GET /api/dropdowns/cities
func (h *DirectoryHandler) ProviderCities() echo.HandlerFunc {
	return h.list(service.LookupProviderCities, "city")
}

// ProviderProfessions: GET /api/dropdowns/professions
func (h *DirectoryHandler) ProviderProfessions() echo.HandlerFunc {
	return h.list(service.LookupProviderProfessions, "profession")
}

// Search: GET /api/providers/search?city=&profession=
func (h *DirectoryHandler) Search(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	hits, err := h.Dir.SearchProviders(ctx, c.QueryParam("city"), c.QueryParam("profession"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, hits)
}
