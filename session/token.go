package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// TokenClaims decodes the claims of a JWT without verifying its signature.
// The server is the only party that validates tokens; this exists purely for
// display and diagnostics (e.g. showing when a session will expire) and must
// never feed an authentication decision.
func TokenClaims(raw string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, errors.Wrap(err, "[TokenClaims] parse token")
	}
	return claims, nil
}

// TokenExpiry returns the exp claim of a JWT, when present and parseable.
func TokenExpiry(raw string) (time.Time, bool) {
	claims, err := TokenClaims(raw)
	if err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
