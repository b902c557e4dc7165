// Package handle models opaque C resources as tagged, generation-checked
// arena entries. A Ref names a slot and the generation it was issued at; a
// ref whose generation no longer matches points at a released resource.
package handle

import "fmt"

// Kind is a handle type tag, interned per catalogue. The zero Kind means
// "not a handle".
type Kind int

// None is the zero Kind.
const None Kind = 0

// State is the lifecycle state of a handle. A slot that was never
// allocated has no state; refs to it resolve with ok false.
type State int

const (
	Live State = iota + 1
	Transferred
	Detached
	Freed
	Invalid
)

func (s State) String() string {
	switch s {
	case Live:
		return "Live"
	case Transferred:
		return "Transferred"
	case Detached:
		return "Detached"
	case Freed:
		return "Freed"
	case Invalid:
		return "Invalid"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Usable reports whether a handle in this state may be borrowed.
func (s State) Usable() bool { return s == Live || s == Detached }

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == Freed || s == Invalid }

// Ref addresses an arena slot at a given generation. Slots start at 1, so
// the zero Ref binds nothing.
type Ref struct {
	Slot int
	Gen  uint32
}

// IsZero reports whether the ref binds no handle.
func (r Ref) IsZero() bool { return r.Slot == 0 }

func (r Ref) String() string { return fmt.Sprintf("h%d@%d", r.Slot, r.Gen) }

// Handle is one opaque resource instance.
type Handle struct {
	Kind  Kind
	State State
	// Step is the index of the call step that created the handle.
	Step int
	// Alias marks a weak back reference into a container. The container it
	// points into is recorded by the tracker's weak relation, not here.
	Alias bool
	// NonOwning marks references the library never expects to be freed.
	NonOwning bool
	Gen       uint32
}

// Arena stores every handle of one sequence. Slots are never reused, so a
// slot number is also a stable variable name for rendering.
type Arena struct {
	handles []Handle
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{handles: make([]Handle, 1)}
}

// Len returns the number of allocated slots.
func (a *Arena) Len() int { return len(a.handles) - 1 }

// Alloc registers a new Live handle and returns its ref.
func (a *Arena) Alloc(h Handle) Ref {
	h.State = Live
	a.handles = append(a.handles, h)
	return Ref{Slot: len(a.handles) - 1, Gen: h.Gen}
}

// Get resolves a ref. ok is false when the slot was never allocated; stale
// is true when the handle has been released since the ref was issued.
func (a *Arena) Get(r Ref) (h *Handle, ok bool, stale bool) {
	if r.Slot <= 0 || r.Slot >= len(a.handles) {
		return nil, false, false
	}
	h = &a.handles[r.Slot]
	return h, true, h.Gen != r.Gen
}

// At returns the handle in slot, or nil.
func (a *Arena) At(slot int) *Handle {
	if slot <= 0 || slot >= len(a.handles) {
		return nil
	}
	return &a.handles[slot]
}

// Ref returns the current ref for slot.
func (a *Arena) Ref(slot int) Ref {
	h := a.At(slot)
	if h == nil {
		return Ref{}
	}
	return Ref{Slot: slot, Gen: h.Gen}
}

// Release moves slot into a terminal state and bumps its generation, which
// invalidates every outstanding ref to it.
func (a *Arena) Release(slot int, to State) {
	h := a.At(slot)
	if h == nil || h.State.Terminal() {
		return
	}
	h.State = to
	h.Gen++
}

// Clone returns an independent copy.
func (a *Arena) Clone() *Arena {
	c := make([]Handle, len(a.handles))
	copy(c, a.handles)
	return &Arena{handles: c}
}
