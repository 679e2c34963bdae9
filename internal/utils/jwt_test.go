package utils

import (
	"testing"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("s3cret", 42, "9876543210", 5)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	cl, err := ParseAccessToken("s3cret", tok.Token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cl.UserID != 42 || cl.Phone != "9876543210" {
		t.Fatalf("unexpected claims %+v", cl)
	}
	if _, err := ParseAccessToken("other", tok.Token); err == nil {
		t.Fatalf("expected signature failure with wrong secret")
	}
}

func TestExpiredAccessToken(t *testing.T) {
	tok, err := NewAccessToken("s3cret", 1, "1111111111", -1)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := ParseAccessToken("s3cret", tok.Token); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestRefreshTokenAndPassword(t *testing.T) {
	rt, err := NewRefreshToken(7)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(rt.Raw) != 96 {
		t.Fatalf("raw length %d", len(rt.Raw))
	}
	if HashRefreshRaw(rt.Raw) == HashRefreshRaw(rt.Raw+"x") {
		t.Fatalf("hash collision on distinct input")
	}

	h, err := HashPassword("secret1", 4)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !VerifyPassword(h, "secret1") || VerifyPassword(h, "secret2") {
		t.Fatalf("password verification mismatch")
	}
}
