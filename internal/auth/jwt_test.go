package auth

import (
	"encoding/base64"
	"testing"
	"time"
)

func TestCreateAndVerifyToken(t *testing.T) {
	cfg := TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"}
	tok, err := CreateToken("user-1", "a@example.com", cfg)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	claims, err := VerifyToken(tok, cfg)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "a@example.com" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestVerifyToken_WrongSecret(t *testing.T) {
	cfg := TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"}
	tok, err := CreateToken("user-1", "", cfg)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	_, err = VerifyToken(tok, TokenConfig{Secret: "wrong", Expiry: time.Hour, Issuer: "test"})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestCreateToken_InvalidExpiry(t *testing.T) {
	cfg := TokenConfig{Secret: "secret", Expiry: -time.Second, Issuer: "test"}
	if _, err := CreateToken("user-1", "", cfg); err == nil {
		t.Fatalf("expected error")
	}
}

func TestReadClaims_SignedToken(t *testing.T) {
	cfg := TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"}
	tok, err := CreateToken("user-1", "a@example.com", cfg)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	id, email, ok := ReadClaims(tok)
	if !ok || id != "user-1" || email != "a@example.com" {
		t.Fatalf("unexpected claims id=%q email=%q ok=%v", id, email, ok)
	}
}

func segment(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func TestReadClaims_SubFallbackAndUnsignedHeader(t *testing.T) {
	cred := "garbage-header." + segment(`{"sub":"u-9"}`) + ".sig"
	id, email, ok := ReadClaims(cred)
	if !ok || id != "u-9" || email != "" {
		t.Fatalf("unexpected claims id=%q email=%q ok=%v", id, email, ok)
	}
}

func TestReadClaims_IDPreferredOverSub(t *testing.T) {
	cred := "h." + segment(`{"id":"primary","sub":"secondary","email":"x@y.z"}`) + ".s"
	id, email, ok := ReadClaims(cred)
	if !ok || id != "primary" || email != "x@y.z" {
		t.Fatalf("unexpected claims id=%q email=%q ok=%v", id, email, ok)
	}
}

func TestReadClaims_NumericID(t *testing.T) {
	cred := "h." + segment(`{"id":42,"email":"a@b.c"}`) + ".s"
	id, email, ok := ReadClaims(cred)
	if !ok || id != "42" || email != "a@b.c" {
		t.Fatalf("unexpected claims id=%q email=%q ok=%v", id, email, ok)
	}

	cred = "h." + segment(`{"id":0,"sub":7.5}`) + ".s"
	if id, _, ok := ReadClaims(cred); !ok || id != "7.5" {
		t.Fatalf("expected zero id skipped in favour of sub, got %q %v", id, ok)
	}
}

func TestReadClaims_PaddedSegment(t *testing.T) {
	cred := "h." + base64.URLEncoding.EncodeToString([]byte(`{"id":"p"}`)) + ".s"
	if id, _, ok := ReadClaims(cred); !ok || id != "p" {
		t.Fatalf("expected padded segment to decode, got %q %v", id, ok)
	}
}

func TestReadClaims_Malformed(t *testing.T) {
	cases := []string{
		"",
		"opaque-token",
		"a.b",
		"a.b.c.d",
		"h.%%%.s",
		"h." + segment("not json") + ".s",
		"h." + segment(`["array"]`) + ".s",
		"h." + segment(`{"email":"only@example.com"}`) + ".s",
		"h." + segment(`{"id":7}`) + ".s",
	}
	for _, c := range cases {
		if id, email, ok := ReadClaims(c); ok || id != "" || email != "" {
			t.Fatalf("expected %q to be rejected, got id=%q email=%q", c, id, email)
		}
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := VerifyPassword(hash, "secret"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if err := VerifyPassword(hash, "wrong"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}
