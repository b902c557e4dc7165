package store

import (
	"context"
	"sync"
	"sync/atomic"
)

// MemoryIndex is an Index held in process memory.
//
// Hashes and quota counters live in sync.Maps: workers read them
// concurrently through the curator while it adds new seeds.
type MemoryIndex struct {
	hashes sync.Map // hash -> int64 id
	counts sync.Map // quotaKey -> *atomic.Int64
	maxID  atomic.Int64
}

// NewMemoryIndex returns an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{}
}

var _ Index = (*MemoryIndex)(nil)

// Lookup returns the id stored for hash.
func (m *MemoryIndex) Lookup(_ context.Context, hash string) (int64, bool, error) {
	id, ok := m.hashes.Load(hash)
	if !ok {
		return 0, false, nil
	}
	return id.(int64), true, nil
}

// Count returns the accepted seeds of a library and template.
func (m *MemoryIndex) Count(_ context.Context, library, template string) (int, error) {
	c, ok := m.counts.Load(quotaKey(library, template))
	if !ok {
		return 0, nil
	}
	return int(c.(*atomic.Int64).Load()), nil
}

// Add records an accepted seed.
func (m *MemoryIndex) Add(_ context.Context, hash string, id int64, library, template string) error {
	if _, loaded := m.hashes.LoadOrStore(hash, id); loaded {
		return nil
	}
	c, _ := m.counts.LoadOrStore(quotaKey(library, template), new(atomic.Int64))
	c.(*atomic.Int64).Add(1)
	for {
		cur := m.maxID.Load()
		if id <= cur || m.maxID.CompareAndSwap(cur, id) {
			return nil
		}
	}
}

// MaxID returns the largest id added.
func (m *MemoryIndex) MaxID(context.Context) (int64, error) {
	return m.maxID.Load(), nil
}

// Close is a no-op.
func (m *MemoryIndex) Close() error { return nil }
