// Package broadcast carries "state may have changed" signals between
// contexts under the same origin.
//
// Signals have no payload: a receiver re-reads the canonical slot and
// decides for itself whether anything changed. Delivery is best-effort and
// coalescing, since a context that misses a signal converges on its next
// polling tick anyway.
package broadcast

import "sync"

// Bus fans out change signals to subscribers.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan struct{}
	next int
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan struct{})}
}

// Subscribe registers a listener. The returned cancel function removes the
// subscription; it is idempotent.
func (b *Bus) Subscribe() (<-chan struct{}, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	// Buffer of one so pending signals coalesce instead of blocking Notify.
	ch := make(chan struct{}, 1)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
	return ch, cancel
}

// Notify signals every subscriber that state may have changed. Slow
// subscribers keep a single pending signal rather than a backlog.
func (b *Bus) Notify() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
