package typestate

import "fmt"

// Kind classifies a lifecycle violation.
type Kind int

const (
	DoubleFree Kind = iota + 1
	UseAfterFree
	DanglingBorrow
	PhaseOrderViolation
	TypeMismatch
	OwnershipCycle
	UnfreedResource
)

func (k Kind) String() string {
	switch k {
	case DoubleFree:
		return "DoubleFree"
	case UseAfterFree:
		return "UseAfterFree"
	case DanglingBorrow:
		return "DanglingBorrow"
	case PhaseOrderViolation:
		return "PhaseOrderViolation"
	case TypeMismatch:
		return "TypeMismatch"
	case OwnershipCycle:
		return "OwnershipCycle"
	case UnfreedResource:
		return "UnfreedResource"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Violation is returned when a step would break a handle's lifecycle.
type Violation struct {
	Kind     Kind
	Function string
	Param    string
	Slot     int
	Detail   string
}

func (v *Violation) Error() string {
	msg := v.Kind.String()
	if v.Function != "" {
		msg += " in " + v.Function
		if v.Param != "" {
			msg += "(" + v.Param + ")"
		}
	}
	if v.Slot > 0 {
		msg += fmt.Sprintf(" on h%d", v.Slot)
	}
	if v.Detail != "" {
		msg += ": " + v.Detail
	}
	return msg
}

// Is matches violations of the same kind, so callers can write
// errors.Is(err, &typestate.Violation{Kind: typestate.DoubleFree}).
func (v *Violation) Is(target error) bool {
	t, ok := target.(*Violation)
	return ok && t.Kind == v.Kind
}
