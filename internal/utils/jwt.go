package utils // package utils provides helper functions for token creation

import (
	"time" // time utilities for generating expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// AccessToken represents a signed JWT access token along with its expiry.
// The Token field contains the JWT string.  Exp stores the expiration
// timestamp as a time.Time.  Clients send the token in the Authorization
// header when calling protected endpoints.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT for a user.  It takes the
// signing secret, the user ID, the user's role, the normalized email and a
// TTL in minutes.  The JWT includes subject (sub), role, email, expiration
// (exp) and issued at (iat).  The role is whatever login resolved, so an
// admin token can only originate from a login with the reserved email.
func NewAccessToken(secret string, userID uint64, role, email string, ttlMin int) (AccessToken, error) {
	now := time.Now().UTC()
	// Calculate the expiration time by adding the TTL to the current UTC time.
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub":   userID,
		"role":  role,
		"email": email,
		"exp":   exp.Unix(),
		"iat":   now.Unix(),
	}
	// Create a new token object specifying the signing method (HS256) and
	// include the claims.
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}
