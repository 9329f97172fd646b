package authsync

import (
	"testing"
	"time"
)

func TestEncodeDecodeToken(t *testing.T) {
	original := testToken("user-1")

	value, err := EncodeToken(original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeToken(value)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.Equal(original) {
		t.Fatalf("expected round-tripped token, got %+v", decoded)
	}
}

func TestDecodeTokenWithoutExpiry(t *testing.T) {
	token := testToken("user-1")
	token.ExpiresAt = time.Time{}

	value, err := EncodeToken(token)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeToken(value)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.ExpiresAt.IsZero() {
		t.Fatalf("expected zero expiry, got %v", decoded.ExpiresAt)
	}
}

func TestDecodeTokenRejectsGarbage(t *testing.T) {
	if _, err := DecodeToken("not base64url!"); err == nil {
		t.Fatal("expected error for invalid encoding")
	}
	if _, err := DecodeToken("bm90LWpzb24"); err == nil {
		t.Fatal("expected error for non-JSON payload")
	}
	if _, err := DecodeToken("e30"); err == nil {
		t.Fatal("expected error for empty access token")
	}
}
