// Package authn manages the device's authentication token: loading it from
// device.json, decoding its claims, and refreshing it with the backend
// before it expires.
package authn

import (
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/ajime-dev/ajime-agent/internal/agenterr"
)

// Claims mirrors the backend's device token payload. The agent never
// validates the signature locally (it has no verification key); the
// backend re-validates every request. Decoding here exists only to read
// the device ID, owner ID, and expiry.
type Claims struct {
	Subject      string   `json:"sub"`
	OwnerID      string   `json:"owner_id"`
	Capabilities []string `json:"capabilities,omitempty"`
	IssuedAt     int64    `json:"iat"`
	ExpiresAt    int64    `json:"exp"`
	Issuer       string   `json:"iss,omitempty"`
	jwt.RegisteredClaims
}

// deviceSecretIssuer marks claims synthesized locally for a bare, non-JWT
// device secret rather than decoded from a signed token.
const deviceSecretIssuer = "device-secret"

// Token wraps the raw credential string with its (possibly synthesized)
// claims.
type Token struct {
	Raw    string
	Claims Claims
}

// FromRaw decodes raw as a JWT without verifying its signature. If raw does
// not parse as a JWT (the original's "device secret" provenance: a bare,
// long-lived string rather than a signed token), the caller should use
// FromSecret instead — FromRaw returns KindToken on anything that isn't at
// least structurally a JWT.
func FromRaw(raw string) (*Token, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	var claims Claims
	if _, _, err := parser.ParseUnverified(raw, &claims); err != nil {
		return nil, agenterr.New(agenterr.KindToken, "decode token", err)
	}
	return &Token{Raw: raw, Claims: claims}, nil
}

// FromSecret builds a Token for a bare device secret: a string that is not
// a JWT and does not expire. A far-future expiry keeps the rest of the
// manager's expiry-driven refresh logic uniform across both provenances.
func FromSecret(deviceID, secret string) *Token {
	now := time.Now().Unix()
	return &Token{
		Raw: secret,
		Claims: Claims{
			Subject:   deviceID,
			IssuedAt:  now,
			ExpiresAt: now + int64(365*24*time.Hour/time.Second),
			Issuer:    deviceSecretIssuer,
		},
	}
}

// ParseToken decodes raw, trying JWT first and falling back to a bare
// secret if it doesn't parse as one.
func ParseToken(deviceID, raw string) *Token {
	if tok, err := FromRaw(raw); err == nil {
		return tok
	}
	return FromSecret(deviceID, raw)
}

// DeviceID returns the token's subject claim.
func (t *Token) DeviceID() string { return t.Claims.Subject }

// OwnerID returns the token's owner claim.
func (t *Token) OwnerID() string { return t.Claims.OwnerID }

// ExpiresAt returns the token's expiry as a time.Time.
func (t *Token) ExpiresAt() time.Time { return time.Unix(t.Claims.ExpiresAt, 0).UTC() }

// IsExpired reports whether the token's expiry has already passed.
func (t *Token) IsExpired() bool { return t.Claims.ExpiresAt < time.Now().Unix() }

// ExpiresWithin reports whether the token expires within d of now; the
// token-refresh worker uses this to refresh ahead of the deadline rather
// than reactively after a request is rejected.
func (t *Token) ExpiresWithin(d time.Duration) bool {
	return t.Claims.ExpiresAt < time.Now().Add(d).Unix()
}
