package middleware

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/maallem-marketplace/internal/apperror"
	"github.com/iliyamo/maallem-marketplace/internal/identity"
)

// contextKey is where Authenticate stores the resolved identity in the echo
// context.  The request context carries it too, via identity.NewContext.
const contextKey = "identity"

// AuthConfig selects the identity transports.
type AuthConfig struct {
	// Secret verifies bearer tokens.
	Secret string
	// TrustHeaders accepts X-User-Id / X-User-Role / X-User-Email when no
	// bearer token is sent.
	TrustHeaders bool
}

// Authenticate resolves the caller's identity and rejects the request with
// 401 when none can be established.  A bearer token always wins over
// identity headers.
func Authenticate(cfg AuthConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, err := resolve(cfg, c)
			if err != nil {
				return respond(c, err)
			}
			c.Set(contextKey, id)
			r := c.Request()
			c.SetRequest(r.WithContext(identity.NewContext(r.Context(), id)))
			return next(c)
		}
	}
}

func resolve(cfg AuthConfig, c echo.Context) (identity.Identity, error) {
	h := c.Request().Header
	if auth := h.Get(echo.HeaderAuthorization); auth != "" {
		raw, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			return identity.Identity{}, apperror.New(apperror.Unauthenticated, "malformed authorization header")
		}
		creds, err := identity.FromBearer(cfg.Secret, strings.TrimSpace(raw))
		if err != nil {
			return identity.Identity{}, err
		}
		return identity.Resolve(creds)
	}
	if cfg.TrustHeaders {
		if creds, ok := identity.FromHeaders(h); ok {
			return identity.Resolve(creds)
		}
	}
	return identity.Identity{}, apperror.New(apperror.Unauthenticated, "missing identity")
}

// CurrentIdentity returns the identity stored by Authenticate.
func CurrentIdentity(c echo.Context) (identity.Identity, bool) {
	id, ok := c.Get(contextKey).(identity.Identity)
	return id, ok
}

// currentUserID identifies the caller for rate limit keys.  Anonymous
// callers are told apart by address so they never share one bucket.
func currentUserID(c echo.Context, ip string) string {
	if id, ok := CurrentIdentity(c); ok {
		return strconv.FormatUint(id.ID, 10)
	}
	return "anon:" + ip
}

func respond(c echo.Context, err error) error {
	status, body := apperror.Response(err)
	return c.JSON(status, body)
}
