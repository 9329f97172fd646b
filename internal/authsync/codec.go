package authsync

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/louisbranch/sessionbridge/internal/session/domain"
)

// cookieToken is the serialized token carried in the cross-origin cookie.
// The field names and the base64url-of-JSON envelope are part of the
// interop contract; cooperating origins decode the same shape.
type cookieToken struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"` // unix millis
	UserID       string `json:"user_id,omitempty"`
}

// EncodeToken serializes a token into the cookie value format.
func EncodeToken(token domain.Token) (string, error) {
	record := cookieToken{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		UserID:       token.UserID,
	}
	if !token.ExpiresAt.IsZero() {
		record.ExpiresAt = token.ExpiresAt.UTC().UnixMilli()
	}

	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("encode cookie token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeToken parses a cookie value back into a token.
func DecodeToken(value string) (domain.Token, error) {
	data, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return domain.Token{}, fmt.Errorf("decode cookie token: %w", err)
	}

	var record cookieToken
	if err := json.Unmarshal(data, &record); err != nil {
		return domain.Token{}, fmt.Errorf("decode cookie token: %w", err)
	}
	if record.AccessToken == "" {
		return domain.Token{}, fmt.Errorf("decode cookie token: empty access token")
	}

	token := domain.Token{
		AccessToken:  record.AccessToken,
		RefreshToken: record.RefreshToken,
		UserID:       record.UserID,
	}
	if record.ExpiresAt > 0 {
		token.ExpiresAt = time.UnixMilli(record.ExpiresAt).UTC()
	}
	return token, nil
}
