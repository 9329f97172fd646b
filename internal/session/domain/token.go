package domain

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/louisbranch/sessionbridge/internal/platform/errors"
)

// ErrEmptyAccessToken indicates a token without an access token value.
var ErrEmptyAccessToken = errors.New(errors.CodeTokenEmptyAccess, "access token is required")

// Token is a session token pair issued by the identity provider.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time // zero when the issuer provided no expiry
	UserID       string
}

// IsZero reports whether the token is empty (logged out).
func (t Token) IsZero() bool {
	return t.AccessToken == "" && t.RefreshToken == "" && t.UserID == "" && t.ExpiresAt.IsZero()
}

// Expired reports whether the token's expiry has passed. Tokens without an
// expiry never report expired.
func (t Token) Expired(now time.Time) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(t.ExpiresAt)
}

// Equal reports whether two tokens carry the same value. Tokens are
// compared wholesale; there is no field-level merge.
func (t Token) Equal(other Token) bool {
	return t.AccessToken == other.AccessToken &&
		t.RefreshToken == other.RefreshToken &&
		t.UserID == other.UserID &&
		t.ExpiresAt.Equal(other.ExpiresAt)
}

// Normalize trims the token fields and fills ExpiresAt and UserID from the
// access token's claims when the issuer left them unset.
//
// The claims are read without signature verification: the token stays
// opaque and untrusted here, this subsystem only needs the expiry to judge
// staleness. Access tokens that are not JWTs keep their zero fields.
func Normalize(t Token) (Token, error) {
	t.AccessToken = strings.TrimSpace(t.AccessToken)
	t.RefreshToken = strings.TrimSpace(t.RefreshToken)
	t.UserID = strings.TrimSpace(t.UserID)

	if t.AccessToken == "" {
		return Token{}, ErrEmptyAccessToken
	}
	if !t.ExpiresAt.IsZero() && t.UserID != "" {
		return t, nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(t.AccessToken, claims); err != nil {
		return t, nil
	}

	if t.ExpiresAt.IsZero() {
		expiry, err := claims.GetExpirationTime()
		if err != nil {
			return Token{}, errors.Wrap(errors.CodeTokenInvalidClaim, "read expiry claim", err)
		}
		if expiry != nil {
			t.ExpiresAt = expiry.Time.UTC()
		}
	}
	if t.UserID == "" {
		subject, err := claims.GetSubject()
		if err != nil {
			return Token{}, errors.Wrap(errors.CodeTokenInvalidClaim, "read subject claim", err)
		}
		t.UserID = subject
	}

	return t, nil
}
