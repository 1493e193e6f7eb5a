// Package policy centralizes authorization decisions.  Handlers and services
// call Authorize instead of branching on roles themselves; the result is a
// tagged Decision rather than a bare boolean so callers can tell a role
// problem from an ownership problem.
package policy

import (
	"fmt"

	"github.com/iliyamo/maallem-marketplace/internal/apperror"
	"github.com/iliyamo/maallem-marketplace/internal/identity"
	"github.com/iliyamo/maallem-marketplace/internal/model"
)

// Operation names a gated action.
type Operation string

const (
	OpCreateRequest        Operation = "request.create"
	OpListProviderRequests Operation = "request.list_provider"
	OpTransitionRequest    Operation = "request.transition"
	OpListUserRequests     Operation = "request.list_user"
	OpViewAccount          Operation = "account.view"
	OpUpdateAccount        Operation = "account.update"
	OpAdminListUsers       Operation = "admin.list_users"
	OpAdminDeleteUser      Operation = "admin.delete_user"
)

// Reason explains a denial.
type Reason string

const (
	RoleMismatch      Reason = "role_mismatch"
	OwnershipMismatch Reason = "ownership_mismatch"
	ProtectedTarget   Reason = "protected_target"
)

// Owners describes the resource an operation touches.  Zero fields are not
// checked, which lets callers gate on role before ownership is known.
type Owners struct {
	RequesterID uint64
	ProviderID  uint64
	SubjectID   uint64
	TargetEmail string
}

// Decision is the outcome of Authorize.
type Decision struct {
	Allowed bool
	Reason  Reason
	Message string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(r Reason, format string, args ...any) Decision {
	return Decision{Reason: r, Message: fmt.Sprintf(format, args...)}
}

// Err converts a denial into the caller-facing error.  It returns nil for
// allowed decisions.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	switch d.Reason {
	case RoleMismatch:
		return apperror.New(apperror.RoleMismatch, d.Message)
	case OwnershipMismatch:
		return apperror.New(apperror.OwnershipMismatch, d.Message)
	default:
		return apperror.New(apperror.Forbidden, d.Message)
	}
}

// Policy evaluates rules against a configured reserved admin email.
type Policy struct {
	AdminEmail string
}

// New returns a Policy for the given reserved admin email.
func New(adminEmail string) *Policy {
	return &Policy{AdminEmail: model.NormalizeEmail(adminEmail)}
}

// IsAdmin reports whether id carries admin authority, either by role or by
// the reserved email.
func (p *Policy) IsAdmin(id identity.Identity) bool {
	return id.Role == model.RoleAdmin || (p.AdminEmail != "" && id.Email == p.AdminEmail)
}

// IsReserved reports whether email is the reserved admin address.
func (p *Policy) IsReserved(email string) bool {
	return p.AdminEmail != "" && model.NormalizeEmail(email) == p.AdminEmail
}

// Authorize decides whether id may perform op on the resource described by
// owners.  Rules are evaluated in priority order: admin scope, request
// creation, provider scope, then self scope.
func (p *Policy) Authorize(id identity.Identity, op Operation, owners Owners) Decision {
	switch op {
	case OpAdminListUsers, OpAdminDeleteUser:
		if !p.IsAdmin(id) {
			return deny(RoleMismatch, "admin access required")
		}
		if op == OpAdminDeleteUser && p.IsReserved(owners.TargetEmail) {
			return deny(ProtectedTarget, "cannot delete the admin account")
		}
		return allow()

	case OpCreateRequest:
		if id.Role != model.RoleUser {
			return deny(RoleMismatch, "only normal users can create requests")
		}
		if owners.RequesterID != 0 && owners.RequesterID != id.ID {
			return deny(OwnershipMismatch, "cannot create requests for another user")
		}
		return allow()

	case OpListProviderRequests, OpTransitionRequest:
		if id.Role != model.RoleProvider {
			return deny(RoleMismatch, "only providers can %s", verb(op))
		}
		if owners.ProviderID != 0 && owners.ProviderID != id.ID {
			return deny(OwnershipMismatch, "request does not belong to you")
		}
		return allow()

	case OpListUserRequests:
		if id.Role != model.RoleUser {
			return deny(RoleMismatch, "only normal users can view user requests")
		}
		if owners.RequesterID != 0 && owners.RequesterID != id.ID {
			return deny(OwnershipMismatch, "requests belong to another user")
		}
		return allow()

	case OpViewAccount, OpUpdateAccount:
		if owners.SubjectID != 0 && owners.SubjectID != id.ID {
			return deny(OwnershipMismatch, "account belongs to another user")
		}
		return allow()
	}
	return deny(RoleMismatch, "unknown operation %q", op)
}

func verb(op Operation) string {
	if op == OpTransitionRequest {
		return "update request status"
	}
	return "view provider requests"
}
