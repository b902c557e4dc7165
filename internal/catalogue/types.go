package catalogue

import (
	"fmt"
	"strings"

	"github.com/vk/seedgrid/internal/handle"
)

// Phase is one stage of the four-phase template.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseConfigure
	PhaseOperate
	PhaseCleanup
)

// Phases lists the phases in template order.
var Phases = []Phase{PhaseInit, PhaseConfigure, PhaseOperate, PhaseCleanup}

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "Init"
	case PhaseConfigure:
		return "Configure"
	case PhaseOperate:
		return "Operate"
	case PhaseCleanup:
		return "Cleanup"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(b []byte) error {
	parsed, err := ParsePhase(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePhase accepts the descriptor keywords (init, configure, operate,
// cleanup) as well as the template names, case-insensitively.
func ParsePhase(s string) (Phase, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "init", "initialize":
		return PhaseInit, nil
	case "configure":
		return PhaseConfigure, nil
	case "operate", "validate":
		return PhaseOperate, nil
	case "cleanup":
		return PhaseCleanup, nil
	default:
		return 0, fmt.Errorf("unknown phase %q", s)
	}
}

// Ownership tags how a parameter relates to the handle bound to it.
type Ownership int

const (
	OwnsIn Ownership = iota + 1
	BorrowIn
	OutHandle
	TransferOut
	Detach
	Value
)

var ownershipNames = map[Ownership]string{
	OwnsIn:      "owns_in",
	BorrowIn:    "borrow_in",
	OutHandle:   "out_handle",
	TransferOut: "transfer_out",
	Detach:      "detach",
	Value:       "value",
}

func (o Ownership) String() string {
	if s, ok := ownershipNames[o]; ok {
		return s
	}
	return fmt.Sprintf("Ownership(%d)", int(o))
}

// IsHandle reports whether the parameter binds a handle rather than a literal.
func (o Ownership) IsHandle() bool { return o != Value }

func parseOwnership(s string) (Ownership, bool) {
	for o, name := range ownershipNames {
		if name == s {
			return o, true
		}
	}
	return 0, false
}

// ReturnKind describes what a function's return value means to the tracker.
type ReturnKind int

const (
	ReturnNone ReturnKind = iota
	// ReturnOutHandle is a new handle owned by the caller.
	ReturnOutHandle
	// ReturnAlias is a weak reference into a container passed as a parameter,
	// e.g. cJSON_GetObjectItem. It dies with the container.
	ReturnAlias
	// ReturnReference is a new handle the library documents as non-owning,
	// e.g. a string reference. It never needs freeing.
	ReturnReference
)

func parseReturnKind(s string) (ReturnKind, bool) {
	switch s {
	case "", "none":
		return ReturnNone, true
	case "out_handle":
		return ReturnOutHandle, true
	case "alias":
		return ReturnAlias, true
	case "reference":
		return ReturnReference, true
	}
	return 0, false
}

// ErrorConvention is how a function reports failure.
type ErrorConvention int

const (
	NoError ErrorConvention = iota
	NullReturn
	SentinelCode
	FalseReturn
)

func parseErrorConvention(s string) (ErrorConvention, bool) {
	switch s {
	case "", "no_error":
		return NoError, true
	case "null_return":
		return NullReturn, true
	case "sentinel_code":
		return SentinelCode, true
	case "false_return":
		return FalseReturn, true
	}
	return 0, false
}

// HandleKind is an opaque resource type declared by the library.
type HandleKind struct {
	Kind  handle.Kind
	Name  string
	CType string
	// Stack kinds are structs the caller declares and passes by address.
	Stack bool
}

// Param is one positional parameter of a FunctionSignature.
type Param struct {
	Name      string
	CType     string
	Ownership Ownership
	// Kind is set for handle parameters.
	Kind handle.Kind
	// Owner is the index of the container parameter for TransferOut and
	// Detach parameters, -1 otherwise.
	Owner int
	// Parent is the index of the parameter a produced handle depends on,
	// -1 when it has none.
	Parent int
	// Values are candidate C literal texts for Value parameters.
	Values []string
	// LengthOf is the index of the string parameter whose length this
	// value carries, -1 otherwise.
	LengthOf int
	// Address passes a pointer handle by address.
	Address bool
}

// Return describes a function's return value.
type Return struct {
	CType   string
	Kind    handle.Kind
	Type    ReturnKind
	OnError ErrorConvention
	// From is the index of the container parameter an alias points into,
	// or of the parent a produced handle depends on; -1 if none.
	From int
}

// Produces reports whether the return value is a handle.
func (r Return) Produces() bool { return r.Type != ReturnNone }

// Branch is a statically known branch of a function and the condition the
// static scorer uses to decide whether a sequence reaches it.
type Branch struct {
	ID       int
	Name     string
	MinCalls int
	After    string
	Param    int
	Equals   string
}

// FunctionSignature is one callable API entry.
type FunctionSignature struct {
	Name       string
	Params     []Param
	Return     Return
	Phases     []Phase
	Critical   bool
	Destructor bool
	Branches   []Branch
}

// AllowedIn reports whether the function may be emitted in phase p.
func (f *FunctionSignature) AllowedIn(p Phase) bool {
	for _, ph := range f.Phases {
		if ph == p {
			return true
		}
	}
	return false
}

// Prototype renders the C prototype used in the combination header.
func (f *FunctionSignature) Prototype() string {
	ret := f.Return.CType
	if ret == "" {
		ret = "void"
	}
	params := make([]string, 0, len(f.Params))
	for _, p := range f.Params {
		params = append(params, joinDecl(p.CType, p.Name))
	}
	if len(params) == 0 {
		params = append(params, "void")
	}
	return fmt.Sprintf("%s(%s)", joinDecl(ret, f.Name), strings.Join(params, ", "))
}

func joinDecl(ctype, name string) string {
	if strings.HasSuffix(ctype, "*") {
		return ctype + name
	}
	return ctype + " " + name
}
