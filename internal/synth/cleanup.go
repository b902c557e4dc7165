package synth

import (
	"github.com/vk/seedgrid/internal/catalogue"
	"github.com/vk/seedgrid/internal/handle"
	"github.com/vk/seedgrid/internal/typestate"
)

// cleanup releases every outstanding owned handle, most recent first. When
// fewer than minCalls destructors are needed, optional cleanup-phase calls
// that release nothing are emitted first to reach the planned count.
func (b *builder) cleanup(minCalls int) {
	needed := len(b.tr.Outstanding())
	for extra := minCalls - needed; extra > 0; extra-- {
		if !b.optionalCleanup() {
			break
		}
	}

	failed := make(map[int]bool)
	for {
		var next handle.Ref
		for _, ref := range b.tr.Outstanding() {
			if !failed[ref.Slot] {
				next = ref
				break
			}
		}
		if next.IsZero() {
			return
		}
		if !b.release(next) {
			failed[next.Slot] = true
			continue
		}
		// A parent that failed may be releasable now that a dependent is gone.
		clear(failed)
	}
}

// optionalCleanup emits one cleanup-phase call that consumes no handle.
func (b *builder) optionalCleanup() bool {
	var pool []*catalogue.FunctionSignature
	for _, fn := range b.s.cat.Functions() {
		if !fn.AllowedIn(catalogue.PhaseCleanup) || consumes(fn) || produces(fn) {
			continue
		}
		if b.bindable(fn) {
			pool = append(pool, fn)
		}
	}
	for len(pool) > 0 {
		i := b.draw(pool)
		if b.tryFunction(pool[i], catalogue.PhaseCleanup) {
			return true
		}
		pool = append(pool[:i:i], pool[i+1:]...)
	}
	return false
}

func consumes(fn *catalogue.FunctionSignature) bool {
	for _, p := range fn.Params {
		switch p.Ownership {
		case catalogue.OwnsIn, catalogue.TransferOut, catalogue.Detach:
			return true
		}
	}
	return false
}

func produces(fn *catalogue.FunctionSignature) bool {
	if fn.Return.Produces() {
		return true
	}
	for _, p := range fn.Params {
		if p.Ownership == catalogue.OutHandle {
			return true
		}
	}
	return false
}

// release frees ref with the first destructor that applies.
func (b *builder) release(ref handle.Ref) bool {
	h, ok := b.tr.Handle(ref.Slot)
	if !ok {
		return false
	}
	for _, fn := range b.s.cat.Destructors(h.Kind) {
		if !fn.AllowedIn(catalogue.PhaseCleanup) {
			continue
		}
		step := typestate.Step{Function: fn, Phase: catalogue.PhaseCleanup}
		for attempt := 0; attempt < b.s.bindingAttempts; attempt++ {
			bindings, literals := b.sample(fn)
			for i, p := range fn.Params {
				if p.Ownership == catalogue.OwnsIn {
					bindings[i] = ref
				}
			}
			if err := b.tr.CanApply(step, bindings); err != nil {
				continue
			}
			b.emit(step, bindings, literals)
			return true
		}
	}
	return false
}
