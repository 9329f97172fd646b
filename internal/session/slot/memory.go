package slot

import (
	"context"
	"sync"

	"github.com/louisbranch/sessionbridge/internal/session/domain"
)

// Memory is an in-process slot store. It backs tests and single-context
// embeddings where no other process shares the origin.
type Memory struct {
	mu     sync.Mutex
	token  domain.Token
	filled bool
}

// NewMemory creates an empty in-memory slot.
func NewMemory() *Memory {
	return &Memory{}
}

// Load returns the current token and whether the slot holds one.
func (m *Memory) Load(ctx context.Context) (domain.Token, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Token{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, m.filled, nil
}

// Save replaces the slot content with the given token.
func (m *Memory) Save(ctx context.Context, token domain.Token) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	m.filled = true
	return nil
}

// Clear empties the slot.
func (m *Memory) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = domain.Token{}
	m.filled = false
	return nil
}

var _ Store = (*Memory)(nil)
