package cookiejar

import (
	"context"
	"net/http"
	"sync"
	"time"
)

type memoryEntry struct {
	cookie    http.Cookie
	expiresAt time.Time // zero for session cookies
}

// Memory is an in-process jar. It backs tests and single-context
// embeddings.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	clock   func() time.Time
}

// NewMemory creates an empty in-memory jar.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		clock:   time.Now,
	}
}

// Set writes a cookie, honoring Max-Age expiry and deletion.
func (m *Memory) Set(ctx context.Context, cookie *http.Cookie) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cookie == nil || cookie.Name == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if cookie.MaxAge < 0 {
		delete(m.entries, cookie.Name)
		return nil
	}

	entry := memoryEntry{cookie: *cookie}
	if cookie.MaxAge > 0 {
		entry.expiresAt = m.clock().Add(time.Duration(cookie.MaxAge) * time.Second)
	}
	m.entries[cookie.Name] = entry
	return nil
}

// Get returns the unexpired cookie with the given name, when present.
func (m *Memory) Get(ctx context.Context, name string) (*http.Cookie, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[name]
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && !m.clock().Before(entry.expiresAt) {
		delete(m.entries, name)
		return nil, false, nil
	}
	cookie := entry.cookie
	return &cookie, true, nil
}

var _ Jar = (*Memory)(nil)
