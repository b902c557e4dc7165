package curator

import "sync/atomic"

// IDGenerator hands out sequence IDs. It is created by the caller and
// passed to the curator, usually resumed from the store's largest ID.
type IDGenerator struct {
	last atomic.Int64
}

// NewIDGenerator returns a generator whose first ID is after+1.
func NewIDGenerator(after int64) *IDGenerator {
	g := &IDGenerator{}
	g.last.Store(after)
	return g
}

// Next returns the next ID.
func (g *IDGenerator) Next() int64 { return g.last.Add(1) }

// Last returns the most recently issued ID.
func (g *IDGenerator) Last() int64 { return g.last.Load() }
