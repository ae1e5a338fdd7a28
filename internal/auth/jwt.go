package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoExpiry is returned for tokens without an exp claim.
var ErrNoExpiry = errors.New("token has no expiry")

// Expiry reads the exp claim of a JWT. The signature is not checked; the
// service does that.
func Expiry(token string) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("token is not a JWT")
	}
	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return time.Time{}, fmt.Errorf("decode token payload: %w", err)
	}
	var claims struct {
		Exp *json.Number `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return time.Time{}, fmt.Errorf("decode token claims: %w", err)
	}
	if claims.Exp == nil {
		return time.Time{}, ErrNoExpiry
	}
	secs, err := claims.Exp.Float64()
	if err != nil {
		return time.Time{}, fmt.Errorf("decode exp: %w", err)
	}
	return time.Unix(int64(secs), 0), nil
}

// Expired reports whether token carries an exp claim at or before now.
// Tokens that are not JWTs or carry no expiry never expire here.
func Expired(token string, now time.Time) bool {
	exp, err := Expiry(token)
	if err != nil {
		return false
	}
	return !now.Before(exp)
}
