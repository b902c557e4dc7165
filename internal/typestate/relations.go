package typestate

import (
	"fmt"
	"sort"
)

// edges is a one-to-many relation between arena slots: each slot has at
// most one source, a source may have many targets.
type edges struct {
	source  map[int]int
	targets map[int]map[int]struct{}
}

func newEdges() *edges {
	return &edges{
		source:  make(map[int]int),
		targets: make(map[int]map[int]struct{}),
	}
}

// add records from -> to, replacing any previous source of to.
func (e *edges) add(from, to int) error {
	if from == to {
		return fmt.Errorf("self-referential edge not allowed: h%d -> h%d", from, to)
	}
	e.remove(to)
	e.source[to] = from
	set, ok := e.targets[from]
	if !ok {
		set = make(map[int]struct{})
		e.targets[from] = set
	}
	set[to] = struct{}{}
	return nil
}

// remove deletes the edge into to, if any.
func (e *edges) remove(to int) {
	from, ok := e.source[to]
	if !ok {
		return
	}
	delete(e.source, to)
	delete(e.targets[from], to)
}

func (e *edges) sourceOf(to int) (int, bool) {
	from, ok := e.source[to]
	return from, ok
}

// targetsOf returns the direct targets of from in slot order.
func (e *edges) targetsOf(from int) []int {
	out := make([]int, 0, len(e.targets[from]))
	for t := range e.targets[from] {
		out = append(out, t)
	}
	sort.Ints(out)
	return out
}

// closure returns root and everything reachable from it, in visit order.
func (e *edges) closure(root int) []int {
	visited := map[int]bool{root: true}
	out := []int{root}
	for i := 0; i < len(out); i++ {
		for _, t := range e.targetsOf(out[i]) {
			if !visited[t] {
				visited[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

// reaches reports whether to is reachable from from. Used to refuse an
// edge that would close a cycle.
func (e *edges) reaches(from, to int) bool {
	for _, s := range e.closure(from) {
		if s == to {
			return true
		}
	}
	return false
}

func (e *edges) clone() *edges {
	c := newEdges()
	for to, from := range e.source {
		c.source[to] = from
	}
	for from, set := range e.targets {
		cs := make(map[int]struct{}, len(set))
		for t := range set {
			cs[t] = struct{}{}
		}
		c.targets[from] = cs
	}
	return c
}

// relations groups the three edge kinds the tracker maintains.
type relations struct {
	owns    *edges
	depends *edges
	weak    *edges
}

func newRelations() *relations {
	return &relations{owns: newEdges(), depends: newEdges(), weak: newEdges()}
}

func (r *relations) clone() *relations {
	return &relations{owns: r.owns.clone(), depends: r.depends.clone(), weak: r.weak.clone()}
}
