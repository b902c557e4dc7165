package feedback

import (
	"slices"
	"sync"

	"github.com/vk/seedgrid/internal/callgraph"
)

// Discovery is what one accepted seed added to the observer.
type Discovery struct {
	Triples  []callgraph.Triple
	Branches map[string][]int
}

// Empty reports whether nothing new was discovered.
func (d Discovery) Empty() bool { return len(d.Triples) == 0 && len(d.Branches) == 0 }

// RoundResult is the verdict at the end of a round.
type RoundResult struct {
	Round       int
	NewTriples  int
	Accepted    int
	Quiet       bool
	Stuck       bool
	QuietRounds int
	Converged   bool
}

// Observer tracks global coverage and triples across rounds.
type Observer struct {
	minNew     int
	quietLimit int

	mu          sync.Mutex
	triples     map[callgraph.Triple]bool
	branches    map[string]map[int]bool
	round       int
	roundNew    int
	roundAccept int
	quietRounds int
}

// NewObserver returns an observer for which a round is quiet when it finds
// fewer than minNew triples and convergence takes quietRounds quiet rounds
// in a row. quietRounds <= 0 never converges.
func NewObserver(minNew, quietRounds int) *Observer {
	return &Observer{
		minNew:     minNew,
		quietLimit: quietRounds,
		triples:    make(map[callgraph.Triple]bool),
		branches:   make(map[string]map[int]bool),
	}
}

// Preload marks triples and branches of an existing corpus as known
// without counting them towards the current round.
func (o *Observer) Preload(triples []callgraph.Triple, branches map[string][]int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, t := range triples {
		o.triples[t] = true
	}
	o.merge(branches)
}

// Observe records an accepted seed and returns what it added.
func (o *Observer) Observe(triples []callgraph.Triple, branches map[string][]int) Discovery {
	o.mu.Lock()
	defer o.mu.Unlock()

	var d Discovery
	for _, t := range triples {
		if !o.triples[t] {
			o.triples[t] = true
			d.Triples = append(d.Triples, t)
		}
	}
	d.Branches = o.merge(branches)
	o.roundNew += len(d.Triples)
	o.roundAccept++
	return d
}

// merge adds branches to the union and returns the ones not seen before,
// nil when there are none.
func (o *Observer) merge(branches map[string][]int) map[string][]int {
	var fresh map[string][]int
	for fn, ids := range branches {
		seen := o.branches[fn]
		if seen == nil {
			seen = make(map[int]bool)
			o.branches[fn] = seen
		}
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			if fresh == nil {
				fresh = make(map[string][]int)
			}
			fresh[fn] = append(fresh[fn], id)
		}
	}
	return fresh
}

// EndRound closes the current round and reports its verdict.
func (o *Observer) EndRound() RoundResult {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.round++
	res := RoundResult{Round: o.round, NewTriples: o.roundNew, Accepted: o.roundAccept}
	switch {
	case o.roundAccept == 0:
		res.Stuck = true
	case o.roundNew < o.minNew:
		res.Quiet = true
		o.quietRounds++
	default:
		o.quietRounds = 0
	}
	res.QuietRounds = o.quietRounds
	res.Converged = o.quietLimit > 0 && o.quietRounds >= o.quietLimit
	o.roundNew, o.roundAccept = 0, 0
	return res
}

// Triples returns every known triple, sorted.
func (o *Observer) Triples() []callgraph.Triple {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]callgraph.Triple, 0, len(o.triples))
	for t := range o.triples {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b callgraph.Triple) int {
		return slices.Compare(a[:], b[:])
	})
	return out
}

// Coverage returns the union of reached branches, ids sorted.
func (o *Observer) Coverage() map[string][]int {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string][]int, len(o.branches))
	for fn, seen := range o.branches {
		ids := make([]int, 0, len(seen))
		for id := range seen {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		out[fn] = ids
	}
	return out
}
