// Package cookiejar centralizes cross-origin session cookie behavior.
//
// The cookie is the one literal interop contract cooperating origins must
// honor: name, opaque serialized token value, and the attributes applied by
// Live and Expired. Jars model the platform cookie store; a write may be
// silently dropped by platform policy, which is why callers re-read after
// writing instead of trusting the call to have taken effect.
package cookiejar

import (
	"context"
	"net/http"
)

// Name is the canonical cross-origin session cookie name.
const Name = "bridge_session"

// LiveMaxAge is the lifetime applied to a live session cookie, in seconds.
const LiveMaxAge = 604800 // 7 days

// Jar stores cookies for a root domain.
type Jar interface {
	// Set writes a cookie. A nil error does not guarantee the write took
	// effect; platform policy may drop it silently.
	Set(ctx context.Context, cookie *http.Cookie) error
	// Get returns the unexpired cookie with the given name, when present.
	Get(ctx context.Context, name string) (*http.Cookie, bool, error)
}

// Live builds the session cookie carrying a serialized token.
//
// SameSite stays Lax rather than Strict because the cookie must be readable
// after a cross-subdomain top-level navigation.
func Live(value, domain string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     Name,
		Value:    value,
		Domain:   domain,
		Path:     "/",
		MaxAge:   LiveMaxAge,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Expired builds the zero-lifetime cookie that clears the session. A
// negative MaxAge serializes as Max-Age=0 on the wire.
func Expired(domain string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     Name,
		Value:    "",
		Domain:   domain,
		Path:     "/",
		MaxAge:   -1,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
