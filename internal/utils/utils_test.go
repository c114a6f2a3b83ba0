package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	at, err := NewAccessToken("s3cret", "user-1", "company-1", "role-1", "agent", 5)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	claims, err := ParseAccessToken("s3cret", at.Token)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if claims.Subject != "user-1" || claims.CompanyID != "company-1" || claims.Role != "agent" || claims.RoleID != "role-1" {
		t.Errorf("unexpected claims %+v", claims)
	}
	if _, err := ParseAccessToken("other", at.Token); err == nil {
		t.Error("token verified with the wrong secret")
	}
}

func TestParseAccessTokenRejectsExpiredAndForeignAlg(t *testing.T) {
	at, err := NewAccessToken("k", "u", "c", "r", "agent", -1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseAccessToken("k", at.Token); err == nil {
		t.Error("expired token accepted")
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject: "u", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	raw, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseAccessToken("k", raw); err == nil {
		t.Error("alg=none token accepted")
	}
}

func TestRefreshTokenHashing(t *testing.T) {
	rt, err := NewRefreshToken(7)
	if err != nil {
		t.Fatal(err)
	}
	if len(rt.Raw) != 96 {
		t.Errorf("raw length = %d", len(rt.Raw))
	}
	if h := HashRefreshRaw(rt.Raw); len(h) != 64 || h == rt.Raw {
		t.Errorf("unexpected hash %q", h)
	}
	if HashRefreshRaw("a") != HashRefreshRaw("a") {
		t.Error("hash is not deterministic")
	}
}

func TestPasswordHashing(t *testing.T) {
	h, err := HashPassword("correct horse", 4)
	if err != nil {
		t.Fatal(err)
	}
	if !VerifyPassword(h, "correct horse") || VerifyPassword(h, "wrong") {
		t.Error("verify mismatch")
	}
	if VerifyPassword("", "anything") {
		t.Error("empty hash must never verify")
	}
	if _, err := HashPassword(strings.Repeat("x", 73), 4); err != ErrPasswordTooLong {
		t.Errorf("err = %v, want ErrPasswordTooLong", err)
	}
}
