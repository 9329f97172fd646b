package cookiejar

import (
	"context"
	"net/http"
)

// Blocked models a platform that silently drops cookie writes, the way a
// browser profile with third-party cookies disabled does. Set reports
// success and stores nothing, so the only way to notice is to read back.
type Blocked struct{}

// Set accepts the cookie and drops it.
func (Blocked) Set(ctx context.Context, cookie *http.Cookie) error {
	return ctx.Err()
}

// Get never finds a cookie.
func (Blocked) Get(ctx context.Context, name string) (*http.Cookie, bool, error) {
	return nil, false, ctx.Err()
}

var _ Jar = Blocked{}
