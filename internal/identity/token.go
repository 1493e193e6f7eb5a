package identity

import (
	"math"
	"strconv"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/maallem-marketplace/internal/apperror"
)

// FromBearer verifies an HS256 access token and extracts its sub, role and
// email claims as Credentials.  Signature, expiry or algorithm failures
// yield Unauthenticated.
func FromBearer(secret, raw string) (Credentials, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return Credentials{}, apperror.Wrap(apperror.Unauthenticated, "invalid token", err)
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Credentials{}, apperror.New(apperror.Unauthenticated, "invalid claims")
	}

	var c Credentials
	// JSON numbers decode as float64; some issuers send the subject as a string.
	switch sub := claims["sub"].(type) {
	case float64:
		if sub > 0 && sub == math.Trunc(sub) {
			c.ID = strconv.FormatUint(uint64(sub), 10)
		}
	case string:
		c.ID = sub
	}
	c.Role, _ = claims["role"].(string)
	c.Email, _ = claims["email"].(string)
	return c, nil
}
