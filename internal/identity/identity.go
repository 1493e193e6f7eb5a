// Package identity resolves the actor behind an inbound call.  Transports
// (headers, bearer tokens) only produce raw Credentials; Resolve is the single
// place where those strings become a trusted Identity.
package identity

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/iliyamo/maallem-marketplace/internal/apperror"
	"github.com/iliyamo/maallem-marketplace/internal/model"
)

// Header names carrying identity when header transport is trusted.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserRole  = "X-User-Role"
	HeaderUserEmail = "X-User-Email"
)

// Identity is the authenticated actor.
type Identity struct {
	ID    uint64
	Role  model.Role
	Email string
}

// Credentials are the unvalidated identity fields as read from a transport.
type Credentials struct {
	ID    string
	Role  string
	Email string
}

// Resolve validates raw credentials.  A missing or non-numeric id, an empty
// role or an unknown role all fail with Unauthenticated.
func Resolve(c Credentials) (Identity, error) {
	rawID := strings.TrimSpace(c.ID)
	rawRole := strings.TrimSpace(c.Role)
	if rawID == "" || rawRole == "" {
		return Identity{}, apperror.New(apperror.Unauthenticated, "missing identity")
	}
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil || id == 0 {
		return Identity{}, apperror.New(apperror.Unauthenticated, "malformed user id")
	}
	role, ok := model.ParseRole(rawRole)
	if !ok {
		return Identity{}, apperror.New(apperror.Unauthenticated, "unknown role")
	}
	return Identity{ID: id, Role: role, Email: model.NormalizeEmail(c.Email)}, nil
}

// FromHeaders reads credentials from the X-User-* headers.  ok is false when
// neither id nor role header is present.
func FromHeaders(h http.Header) (Credentials, bool) {
	c := Credentials{
		ID:    h.Get(HeaderUserID),
		Role:  h.Get(HeaderUserRole),
		Email: h.Get(HeaderUserEmail),
	}
	return c, c.ID != "" || c.Role != ""
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying id.
func NewContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the Identity stored by NewContext.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
