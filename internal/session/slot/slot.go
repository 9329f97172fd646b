// Package slot stores the canonical session slot for a context.
//
// Exactly one slot exists per context: it is either empty (logged out) or
// holds one token. Any context under the same origin may overwrite it;
// writes are last-writer-wins because tokens are superseded wholesale.
package slot

import (
	"context"

	"github.com/louisbranch/sessionbridge/internal/session/domain"
)

// Store persists the canonical slot.
type Store interface {
	// Load returns the current token and whether the slot holds one.
	Load(ctx context.Context) (domain.Token, bool, error)
	// Save replaces the slot content with the given token.
	Save(ctx context.Context, token domain.Token) error
	// Clear empties the slot. Clearing an empty slot is a no-op.
	Clear(ctx context.Context) error
}
