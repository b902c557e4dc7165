package catalogue

import (
	"fmt"

	"github.com/vk/seedgrid/internal/config"
	"github.com/vk/seedgrid/internal/handle"
)

// validator collects descriptor problems instead of stopping at the first.
type validator struct {
	lib      *config.Library
	problems []string
}

func (v *validator) fail(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) function(c *Catalogue, fn *config.Function) *FunctionSignature {
	sig := &FunctionSignature{
		Name:       fn.Name,
		Critical:   fn.Critical,
		Destructor: fn.Destructor,
	}

	if len(fn.Phases) == 0 {
		v.fail("function %q has no phases", fn.Name)
	}
	for _, ph := range fn.Phases {
		p, err := ParsePhase(ph)
		if err != nil {
			v.fail("function %q: %v", fn.Name, err)
			continue
		}
		sig.Phases = append(sig.Phases, p)
	}

	names := make(map[string]int, len(fn.Params))
	for i, p := range fn.Params {
		if _, dup := names[p.Name]; dup {
			v.fail("function %q: parameter %q declared twice", fn.Name, p.Name)
		}
		names[p.Name] = i
	}
	resolve := func(what, name string) int {
		if name == "" {
			return -1
		}
		idx, ok := names[name]
		if !ok {
			v.fail("function %q: %s refers to unknown parameter %q", fn.Name, what, name)
			return -1
		}
		return idx
	}

	for _, p := range fn.Params {
		param := Param{Name: p.Name, CType: p.CType, Owner: -1, Parent: -1, LengthOf: -1, Address: p.Address}
		if p.Ownership == "" {
			v.fail("function %q: parameter %q has no ownership annotation", fn.Name, p.Name)
		} else if o, ok := parseOwnership(p.Ownership); ok {
			param.Ownership = o
		} else {
			v.fail("function %q: parameter %q has unknown ownership %q", fn.Name, p.Name, p.Ownership)
		}

		if param.Ownership == Value {
			if p.Kind != "" {
				v.fail("function %q: value parameter %q must not name a handle kind", fn.Name, p.Name)
			}
			if len(p.Values) == 0 && p.LengthOf == "" {
				v.fail("function %q: value parameter %q has no candidate values", fn.Name, p.Name)
			}
			param.Values = append([]string(nil), p.Values...)
			if p.Address {
				v.fail("function %q: address is only valid on handle parameters (%q)", fn.Name, p.Name)
			}
		} else if param.Ownership != 0 {
			param.Kind = v.kind(c, fn.Name, p.Name, p.Kind)
			if param.CType == "" && param.Kind != handle.None {
				param.CType = c.kinds[param.Kind].CType
			}
		}

		switch param.Ownership {
		case TransferOut, Detach:
			if p.Owner == "" {
				v.fail("function %q: %s parameter %q has no owner", fn.Name, param.Ownership, p.Name)
			}
			param.Owner = resolve("owner of "+p.Name, p.Owner)
		default:
			if p.Owner != "" {
				v.fail("function %q: owner is only valid on transfer_out and detach parameters (%q)", fn.Name, p.Name)
			}
		}
		if p.Parent != "" {
			if param.Ownership != OutHandle {
				v.fail("function %q: parent is only valid on out_handle parameters (%q)", fn.Name, p.Name)
			}
			param.Parent = resolve("parent of "+p.Name, p.Parent)
		}
		sig.Params = append(sig.Params, param)
	}

	for i, p := range fn.Params {
		if p.LengthOf == "" {
			continue
		}
		idx := resolve("length_of of "+p.Name, p.LengthOf)
		switch {
		case idx < 0:
		case sig.Params[i].Ownership != Value || sig.Params[idx].Ownership != Value:
			v.fail("function %q: length_of links value parameters only (%q)", fn.Name, p.Name)
		case idx >= i:
			v.fail("function %q: %q must follow the parameter it measures", fn.Name, p.Name)
		default:
			sig.Params[i].LengthOf = idx
		}
	}

	// Owner parameters must themselves bind handles.
	for i, p := range sig.Params {
		if p.Owner >= 0 && !sig.Params[p.Owner].Ownership.IsHandle() {
			v.fail("function %q: owner of %q must be a handle parameter", fn.Name, fn.Params[i].Name)
		}
	}

	sig.Return = Return{From: -1}
	if r := fn.Returns; r != nil {
		sig.Return.CType = r.CType
		rk, ok := parseReturnKind(r.Ownership)
		if !ok {
			v.fail("function %q: unknown return ownership %q", fn.Name, r.Ownership)
		}
		sig.Return.Type = rk
		ec, ok := parseErrorConvention(r.OnError)
		if !ok {
			v.fail("function %q: unknown error convention %q", fn.Name, r.OnError)
		}
		sig.Return.OnError = ec
		if rk != ReturnNone {
			sig.Return.Kind = v.kind(c, fn.Name, "return value", r.Kind)
			if sig.Return.CType == "" && sig.Return.Kind != handle.None {
				sig.Return.CType = c.kinds[sig.Return.Kind].CType
			}
		}
		sig.Return.From = resolve("return from", r.From)
		if rk == ReturnAlias && r.From == "" {
			v.fail("function %q: alias return has no `from` container", fn.Name)
		}
	}

	for i, b := range fn.Branches {
		br := Branch{ID: i + 1, Name: b.Name, MinCalls: b.MinCalls, After: b.After, Param: -1, Equals: b.Equals}
		if b.Param != "" {
			br.Param = resolve("branch "+b.Name, b.Param)
			if b.Equals == "" {
				v.fail("function %q: branch %q names a param without `equals`", fn.Name, b.Name)
			}
		}
		sig.Branches = append(sig.Branches, br)
	}

	return sig
}

func (v *validator) kind(c *Catalogue, fn, param, name string) handle.Kind {
	if name == "" {
		v.fail("function %q: handle parameter %q has no kind", fn, param)
		return handle.None
	}
	k, ok := c.kindIndex[name]
	if !ok {
		v.fail("function %q: %q uses unknown handle kind %q", fn, param, name)
		return handle.None
	}
	return k
}

// checkDestructors requires a freeing function for every kind that can be
// produced as an owned handle, and resolves `after` references in branch
// tables.
func (v *validator) checkDestructors(c *Catalogue) {
	owned := make(map[handle.Kind]bool)
	for _, fn := range c.functions {
		for _, p := range fn.Params {
			if p.Ownership == OutHandle && p.Kind != handle.None {
				owned[p.Kind] = true
			}
		}
		if fn.Return.Type == ReturnOutHandle && fn.Return.Kind != handle.None {
			owned[fn.Return.Kind] = true
		}
		for _, b := range fn.Branches {
			if b.After != "" {
				if _, ok := c.index[b.After]; !ok {
					v.fail("function %q: branch %q refers to unknown function %q", fn.Name, b.Name, b.After)
				}
			}
		}
	}
	for k := 1; k < len(c.kinds); k++ {
		kind := handle.Kind(k)
		if !owned[kind] {
			continue
		}
		if len(c.Destructors(kind)) == 0 {
			v.fail("handle kind %q is produced as an owned handle but no function frees it", c.kinds[k].Name)
		}
	}
}
