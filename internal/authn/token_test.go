package authn

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func signedTestToken(t *testing.T, claims Claims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte("does-not-matter"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return signed
}

func TestFromRaw_DecodesClaimsWithoutVerifyingSignature(t *testing.T) {
	claims := Claims{
		Subject:   "dev-123",
		OwnerID:   "owner-456",
		IssuedAt:  1000,
		ExpiresAt: 2000,
	}
	raw := signedTestToken(t, claims)

	tok, err := FromRaw(raw)
	if err != nil {
		t.Fatalf("FromRaw() error = %v", err)
	}
	if tok.DeviceID() != "dev-123" || tok.OwnerID() != "owner-456" {
		t.Errorf("FromRaw() claims = %+v, want sub=dev-123 owner_id=owner-456", tok.Claims)
	}
}

func TestFromSecret_NeverExpiresSoon(t *testing.T) {
	tok := FromSecret("dev-1", "plain-secret")
	if tok.Raw != "plain-secret" {
		t.Errorf("Raw = %q, want plain-secret", tok.Raw)
	}
	if tok.IsExpired() {
		t.Error("IsExpired() = true for a freshly minted device secret")
	}
	if tok.ExpiresWithin(24 * time.Hour) {
		t.Error("ExpiresWithin(24h) = true for a year-long device secret")
	}
}

func TestParseToken_FallsBackToSecretOnNonJWT(t *testing.T) {
	tok := ParseToken("dev-9", "not-a-jwt-at-all")
	if tok.DeviceID() != "dev-9" {
		t.Errorf("ParseToken() device id = %q, want dev-9", tok.DeviceID())
	}
	if tok.Claims.Issuer != deviceSecretIssuer {
		t.Errorf("ParseToken() issuer = %q, want %q", tok.Claims.Issuer, deviceSecretIssuer)
	}
}

func TestToken_IsExpired(t *testing.T) {
	past := Claims{Subject: "dev", ExpiresAt: time.Now().Add(-time.Hour).Unix()}
	raw := signedTestToken(t, past)
	tok, err := FromRaw(raw)
	if err != nil {
		t.Fatalf("FromRaw() error = %v", err)
	}
	if !tok.IsExpired() {
		t.Error("IsExpired() = false for a token an hour past its exp claim")
	}
}
