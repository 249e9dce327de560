package export

import (
	"context"
	"sync"

	"github.com/JakeFAU/leaderboard-crawler/internal/leaderboard"
)

// Memory keeps written products in process, for tests and dry runs.
type Memory struct {
	mu       sync.RWMutex
	products []leaderboard.Product
	closed   bool
}

// NewMemory returns an empty Memory sink.
func NewMemory() *Memory {
	return &Memory{}
}

// Write records p.
func (m *Memory) Write(_ context.Context, p leaderboard.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = append(m.products, p)
	return nil
}

// Close marks the sink closed; products stay readable.
func (m *Memory) Close(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Products returns a copy of everything written so far.
func (m *Memory) Products() []leaderboard.Product {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]leaderboard.Product, len(m.products))
	copy(out, m.products)
	return out
}

// Closed reports whether Close was called.
func (m *Memory) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
