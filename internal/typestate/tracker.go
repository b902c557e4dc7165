package typestate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vk/seedgrid/internal/catalogue"
	"github.com/vk/seedgrid/internal/handle"
)

// Step is the part of a call step the tracker needs: which function, in
// which phase.
type Step struct {
	Function *catalogue.FunctionSignature
	Phase    catalogue.Phase
}

// Tracker holds the handle graph of one sequence under construction. It is
// not safe for concurrent use.
type Tracker struct {
	cat     *catalogue.Catalogue
	arena   *handle.Arena
	rel     *relations
	phase   catalogue.Phase
	started bool
	steps   int
}

// New returns an empty tracker for sequences over cat.
func New(cat *catalogue.Catalogue) *Tracker {
	return &Tracker{cat: cat, arena: handle.NewArena(), rel: newRelations()}
}

// Clone returns an independent copy of the tracker state.
func (t *Tracker) Clone() *Tracker {
	c := *t
	c.arena = t.arena.Clone()
	c.rel = t.rel.clone()
	return &c
}

// Phase returns the phase of the last applied step.
func (t *Tracker) Phase() catalogue.Phase { return t.phase }

// Steps returns how many steps have been applied.
func (t *Tracker) Steps() int { return t.steps }

// Handle returns a copy of the handle in slot.
func (t *Tracker) Handle(slot int) (handle.Handle, bool) {
	h := t.arena.At(slot)
	if h == nil {
		return handle.Handle{}, false
	}
	return *h, true
}

// Ref returns the current ref of slot.
func (t *Tracker) Ref(slot int) handle.Ref { return t.arena.Ref(slot) }

// Owner returns the container that owns slot, if it was transferred.
func (t *Tracker) Owner(slot int) (int, bool) { return t.rel.owns.sourceOf(slot) }

// CanApply reports whether step may be applied with the given bindings.
// bindings[i] binds the i-th parameter; value and out_handle parameters take
// the zero Ref. It never changes the tracker.
func (t *Tracker) CanApply(step Step, bindings []handle.Ref) error {
	_, err := t.Clone().apply(step, bindings)
	return err
}

// Apply validates and commits step, returning the refs of the handles it
// produced: out_handle parameters in order, then the returned handle. On
// error the tracker is unchanged.
func (t *Tracker) Apply(step Step, bindings []handle.Ref) ([]handle.Ref, error) {
	next := t.Clone()
	produced, err := next.apply(step, bindings)
	if err != nil {
		return nil, err
	}
	*t = *next
	return produced, nil
}

func (t *Tracker) apply(step Step, bindings []handle.Ref) ([]handle.Ref, error) {
	fn := step.Function
	if len(bindings) != len(fn.Params) {
		return nil, &Violation{Kind: TypeMismatch, Function: fn.Name,
			Detail: fmt.Sprintf("expected %d bindings, got %d", len(fn.Params), len(bindings))}
	}
	if t.started && step.Phase < t.phase {
		return nil, &Violation{Kind: PhaseOrderViolation, Function: fn.Name,
			Detail: fmt.Sprintf("%s step after %s", step.Phase, t.phase)}
	}
	if !fn.AllowedIn(step.Phase) {
		return nil, &Violation{Kind: PhaseOrderViolation, Function: fn.Name,
			Detail: fmt.Sprintf("not callable in %s", step.Phase)}
	}

	for i, p := range fn.Params {
		var err error
		switch p.Ownership {
		case catalogue.BorrowIn:
			_, err = t.usable(fn, p, bindings[i])
		case catalogue.OwnsIn:
			err = t.free(fn, p, bindings[i])
		case catalogue.TransferOut:
			err = t.transfer(fn, p, bindings[i], bindings[p.Owner])
		case catalogue.Detach:
			err = t.detach(fn, p, bindings[i], bindings[p.Owner])
		}
		if err != nil {
			return nil, err
		}
	}

	var produced []handle.Ref
	for _, p := range fn.Params {
		if p.Ownership != catalogue.OutHandle {
			continue
		}
		ref := t.arena.Alloc(handle.Handle{Kind: p.Kind, Step: t.steps})
		if p.Parent >= 0 {
			if parent := bindings[p.Parent]; !parent.IsZero() {
				if err := t.rel.depends.add(parent.Slot, ref.Slot); err != nil {
					return nil, err
				}
			}
		}
		produced = append(produced, ref)
	}

	if r := fn.Return; r.Produces() {
		h := handle.Handle{Kind: r.Kind, Step: t.steps}
		switch r.Type {
		case catalogue.ReturnReference:
			h.NonOwning = true
		case catalogue.ReturnAlias:
			h.Alias = true
		}
		ref := t.arena.Alloc(h)
		if r.From >= 0 {
			from := bindings[r.From]
			if !from.IsZero() {
				rel := t.rel.depends
				if r.Type == catalogue.ReturnAlias {
					rel = t.rel.weak
				}
				if err := rel.add(from.Slot, ref.Slot); err != nil {
					return nil, err
				}
			}
		}
		produced = append(produced, ref)
	}

	t.phase = step.Phase
	t.started = true
	t.steps++
	return produced, nil
}

// usable resolves a ref that is about to be read.
func (t *Tracker) usable(fn *catalogue.FunctionSignature, p catalogue.Param, ref handle.Ref) (*handle.Handle, error) {
	v := &Violation{Function: fn.Name, Param: p.Name, Slot: ref.Slot}
	h, ok, stale := t.arena.Get(ref)
	switch {
	case !ok:
		v.Kind, v.Detail = DanglingBorrow, "handle does not exist yet"
		return nil, v
	case h.Kind != p.Kind:
		v.Kind = TypeMismatch
		v.Detail = fmt.Sprintf("want %s, have %s", t.cat.KindInfo(p.Kind).Name, t.cat.KindInfo(h.Kind).Name)
		return nil, v
	case stale || h.State.Terminal():
		v.Kind, v.Detail = UseAfterFree, "handle is "+h.State.String()
		return nil, v
	case h.State == handle.Transferred:
		v.Kind, v.Detail = DanglingBorrow, "handle was transferred into a container"
		return nil, v
	case !h.State.Usable():
		v.Kind, v.Detail = DanglingBorrow, "handle is "+h.State.String()
		return nil, v
	}
	return h, nil
}

// consumable is usable plus the checks shared by free and transfer: the
// handle must be an owning one.
func (t *Tracker) consumable(fn *catalogue.FunctionSignature, p catalogue.Param, ref handle.Ref) (*handle.Handle, error) {
	h, ok, stale := t.arena.Get(ref)
	if ok && h.Kind == p.Kind && (stale || h.State.Terminal() || h.State == handle.Transferred) {
		detail := "handle is " + h.State.String()
		if h.State == handle.Transferred {
			detail = "handle is owned by its container"
		}
		return nil, &Violation{Kind: DoubleFree, Function: fn.Name, Param: p.Name, Slot: ref.Slot, Detail: detail}
	}
	h, err := t.usable(fn, p, ref)
	if err != nil {
		return nil, err
	}
	if h.Alias {
		return nil, &Violation{Kind: DoubleFree, Function: fn.Name, Param: p.Name, Slot: ref.Slot,
			Detail: "handle is a weak alias into a container"}
	}
	return h, nil
}

func (t *Tracker) free(fn *catalogue.FunctionSignature, p catalogue.Param, ref handle.Ref) error {
	if _, err := t.consumable(fn, p, ref); err != nil {
		return err
	}

	subtree := t.rel.owns.closure(ref.Slot)
	inSubtree := make(map[int]bool, len(subtree))
	for _, s := range subtree {
		inSubtree[s] = true
	}
	for _, s := range subtree {
		for _, d := range t.rel.depends.targetsOf(s) {
			if inSubtree[d] {
				continue
			}
			if dh := t.arena.At(d); dh != nil && dh.State.Usable() && !dh.NonOwning && !dh.Alias {
				return &Violation{Kind: DanglingBorrow, Function: fn.Name, Param: p.Name, Slot: ref.Slot,
					Detail: fmt.Sprintf("h%d still depends on it", d)}
			}
		}
	}

	for _, s := range subtree {
		t.arena.Release(s, handle.Freed)
	}
	for _, s := range subtree {
		t.invalidate(s)
	}
	return nil
}

// invalidate kills every alias and dependent of a released slot. Whatever
// an invalidated handle held goes with it, so items transferred into a
// container through an alias are freed with the container.
func (t *Tracker) invalidate(slot int) {
	for _, rel := range []*edges{t.rel.weak, t.rel.depends} {
		for _, s := range rel.targetsOf(slot) {
			h := t.arena.At(s)
			if h == nil || h.State.Terminal() {
				continue
			}
			t.arena.Release(s, handle.Invalid)
			for _, owned := range t.rel.owns.closure(s)[1:] {
				t.arena.Release(owned, handle.Freed)
				t.invalidate(owned)
			}
			t.invalidate(s)
		}
	}
}

func (t *Tracker) transfer(fn *catalogue.FunctionSignature, p catalogue.Param, ref, container handle.Ref) error {
	h, err := t.consumable(fn, p, ref)
	if err != nil {
		return err
	}
	if container.IsZero() {
		return &Violation{Kind: DanglingBorrow, Function: fn.Name, Param: p.Name, Slot: ref.Slot, Detail: "no container bound"}
	}
	if container.Slot == ref.Slot || t.rel.owns.reaches(ref.Slot, container.Slot) {
		return &Violation{Kind: OwnershipCycle, Function: fn.Name, Param: p.Name, Slot: ref.Slot,
			Detail: fmt.Sprintf("container h%d is inside the transferred subtree", container.Slot)}
	}
	h.State = handle.Transferred
	return t.rel.owns.add(container.Slot, ref.Slot)
}

func (t *Tracker) detach(fn *catalogue.FunctionSignature, p catalogue.Param, ref, container handle.Ref) error {
	v := &Violation{Function: fn.Name, Param: p.Name, Slot: ref.Slot}
	h, ok, stale := t.arena.Get(ref)
	switch {
	case !ok:
		v.Kind, v.Detail = DanglingBorrow, "handle does not exist yet"
		return v
	case h.Kind != p.Kind:
		v.Kind, v.Detail = TypeMismatch, "wrong handle kind"
		return v
	case stale || h.State.Terminal():
		v.Kind, v.Detail = UseAfterFree, "handle is "+h.State.String()
		return v
	case h.State != handle.Transferred:
		v.Kind, v.Detail = DanglingBorrow, "handle is not inside a container"
		return v
	}
	if owner, _ := t.rel.owns.sourceOf(ref.Slot); owner != container.Slot {
		v.Kind, v.Detail = DanglingBorrow, fmt.Sprintf("handle is owned by h%d, not h%d", owner, container.Slot)
		return v
	}
	t.rel.owns.remove(ref.Slot)
	h.State = handle.Detached
	return nil
}

// Finalize is the end-of-sequence leak check. Every handle must be
// released, held by a container, a weak alias, or tagged non-owning.
func (t *Tracker) Finalize() error {
	var leaked []int
	for slot := 1; slot <= t.arena.Len(); slot++ {
		h := t.arena.At(slot)
		if h.State.Usable() && !h.NonOwning && !h.Alias {
			leaked = append(leaked, slot)
		}
	}
	if len(leaked) == 0 {
		return nil
	}
	names := make([]string, len(leaked))
	for i, s := range leaked {
		names[i] = fmt.Sprintf("h%d (%s)", s, t.cat.KindInfo(t.arena.At(s).Kind).Name)
	}
	return &Violation{Kind: UnfreedResource, Slot: leaked[0], Detail: "never released: " + strings.Join(names, ", ")}
}

// Candidates returns the handles that could be bound to p right now, in
// slot order. The list is a superset: CanApply has the final word.
func (t *Tracker) Candidates(p catalogue.Param) []handle.Ref {
	var out []handle.Ref
	for slot := 1; slot <= t.arena.Len(); slot++ {
		h := t.arena.At(slot)
		if h.Kind != p.Kind {
			continue
		}
		switch p.Ownership {
		case catalogue.BorrowIn:
			if !h.State.Usable() {
				continue
			}
		case catalogue.OwnsIn, catalogue.TransferOut:
			if !h.State.Usable() || h.Alias {
				continue
			}
		case catalogue.Detach:
			if h.State != handle.Transferred {
				continue
			}
		default:
			continue
		}
		out = append(out, t.arena.Ref(slot))
	}
	return out
}

// Outstanding returns the owned handles that still need a destructor, most
// recently created first.
func (t *Tracker) Outstanding() []handle.Ref {
	var out []handle.Ref
	for slot := 1; slot <= t.arena.Len(); slot++ {
		h := t.arena.At(slot)
		if h.State.Usable() && !h.NonOwning && !h.Alias {
			out = append(out, t.arena.Ref(slot))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		hi, hj := t.arena.At(out[i].Slot), t.arena.At(out[j].Slot)
		if hi.Step != hj.Step {
			return hi.Step > hj.Step
		}
		return out[i].Slot > out[j].Slot
	})
	return out
}
