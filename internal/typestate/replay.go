package typestate

import (
	"fmt"

	"github.com/vk/seedgrid/internal/catalogue"
	"github.com/vk/seedgrid/internal/handle"
	"github.com/vk/seedgrid/internal/sequence"
)

// Bindings maps the arguments of a recorded step onto tracker refs. Slots
// are translated through slots, which Replay fills as handles are produced.
func Bindings(fn *catalogue.FunctionSignature, st sequence.CallStep, slots map[int]handle.Ref) ([]handle.Ref, error) {
	if len(st.Args) != len(fn.Params) {
		return nil, fmt.Errorf("%s takes %d arguments, step has %d", fn.Name, len(fn.Params), len(st.Args))
	}
	bindings := make([]handle.Ref, len(fn.Params))
	for i, p := range fn.Params {
		arg := st.Args[i]
		switch p.Ownership {
		case catalogue.Value:
			if arg.IsHandle() {
				return nil, &Violation{Kind: TypeMismatch, Function: fn.Name, Param: p.Name, Slot: arg.Handle,
					Detail: "handle bound to a value parameter"}
			}
		case catalogue.OutHandle:
		default:
			if !arg.IsHandle() {
				return nil, &Violation{Kind: TypeMismatch, Function: fn.Name, Param: p.Name,
					Detail: "literal bound to a handle parameter"}
			}
			ref, ok := slots[arg.Handle]
			if !ok {
				// Never produced: resolves to a slot the arena has not
				// allocated, which the tracker reports as a dangling borrow.
				ref = handle.Ref{Slot: -arg.Handle}
			}
			bindings[i] = ref
		}
	}
	return bindings, nil
}

// Replay runs a whole recorded sequence through a fresh tracker and ends
// with the leak check. It returns the first violation, wrapped with the
// step it occurred at.
func Replay(cat *catalogue.Catalogue, seq *sequence.Sequence) error {
	t := New(cat)
	slots := make(map[int]handle.Ref)
	for i, st := range seq.Steps {
		fn, err := cat.Lookup(st.Function)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		bindings, err := Bindings(fn, st, slots)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		produced, err := t.Apply(Step{Function: fn, Phase: st.Phase}, bindings)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		if len(produced) != len(st.Produces) {
			return fmt.Errorf("step %d: %s produces %d handles, step records %d", i, fn.Name, len(produced), len(st.Produces))
		}
		for j, slot := range st.Produces {
			if _, dup := slots[slot]; dup {
				return fmt.Errorf("step %d: slot h%d produced twice", i, slot)
			}
			slots[slot] = produced[j]
		}
	}
	return t.Finalize()
}
