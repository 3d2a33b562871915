package orderbook

import "sync"

// Guarded serializes access to one OrderBook. Every read-modify-read sequence
// must run inside a single Update or View callback.
type Guarded struct {
	mu   sync.RWMutex
	book *OrderBook
}

func NewGuarded(book *OrderBook) *Guarded {
	return &Guarded{book: book}
}

// Update runs fn with exclusive access to the book.
func (g *Guarded) Update(fn func(*OrderBook) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fn(g.book)
}

// View runs fn with shared access. fn must not mutate the book or keep it.
func (g *Guarded) View(fn func(*OrderBook)) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	fn(g.book)
}

// Snapshot is a shortcut for a View that copies the book.
func (g *Guarded) Snapshot() Snapshot {
	var s Snapshot
	g.View(func(ob *OrderBook) {
		s = ob.Snapshot()
	})
	return s
}
