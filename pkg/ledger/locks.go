package ledger

import (
	"sync"
)

// CartLocks serializes mutations per cart. Different carts proceed in
// parallel; a single cart is single-writer. The map only ever grows, which
// is acceptable for session-scoped ids within one process lifetime.
type CartLocks struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func NewCartLocks() *CartLocks {
	return &CartLocks{locks: make(map[uint]*sync.Mutex)}
}

// Lock acquires the cart's mutex and returns the unlock func.
func (l *CartLocks) Lock(cartID uint) func() {
	l.mu.Lock()
	m, ok := l.locks[cartID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[cartID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
