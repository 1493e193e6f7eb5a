package model

import (
	"strings"
	"time"
)

// Role is the fixed account role chosen at signup.  The admin role is never
// stored for new accounts; it is derived at login from the reserved admin
// email.
type Role string

const (
	RoleUser     Role = "user"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

// ParseRole maps a raw role string to a Role.  Unknown values report false.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, true
	case RoleProvider:
		return RoleProvider, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return "", false
}

// User mirrors the `users` table.
//
// Fields:
//
//	ID        – primary key identifier of the user.
//	FullName  – display name.
//	Email     – unique, stored lower-cased.
//	Password  – credential as supplied at signup.
//	Role      – user, provider or admin.
//	CreatedAt – timestamp of creation.
type User struct {
	ID        uint64    `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// ProviderProfile mirrors the `provider_profiles` table.  A profile exists
// iff its owning user has the provider role.  Image holds the stored file
// name, never the file contents.
type ProviderProfile struct {
	ID         uint64  `json:"id"`
	UserID     uint64  `json:"user_id"`
	Phone      *string `json:"phone"`
	City       string  `json:"city"`
	Profession string  `json:"profession"`
	Bio        *string `json:"bio"`
	Image      *string `json:"-"`
}

// NormalizeEmail trims and lower-cases an email so comparisons are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
