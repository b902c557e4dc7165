package config

import "fmt"

// Model is the unified, format-agnostic representation of every descriptor
// loaded for a run.
type Model struct {
	Libraries map[string]*Library
}

// NewModel returns an empty model ready for merging.
func NewModel() *Model {
	return &Model{Libraries: make(map[string]*Library)}
}

// Merge adds the libraries of other into m. Declaring the same library in
// two descriptors is an error: a catalogue comes from exactly one source.
func (m *Model) Merge(other *Model) error {
	for name, lib := range other.Libraries {
		if prev, ok := m.Libraries[name]; ok {
			return fmt.Errorf("library %q declared twice (%s and %s)", name, prev.Source, lib.Source)
		}
		m.Libraries[name] = lib
	}
	return nil
}

// Library is one target C library as described by its descriptor.
type Library struct {
	Name        string
	Version     string
	Description string
	Includes    []string
	Handles     []*HandleKind
	Functions   []*Function
	// Source is the file the library was declared in.
	Source string
}

// HandleKind declares an opaque resource type, e.g. `cJSON *` or `z_stream`.
type HandleKind struct {
	Name  string
	CType string
	// Storage is "pointer" (heap object referenced by pointer) or "stack"
	// (a struct the caller declares and passes by address).
	Storage     string
	Description string
}

// Function is one callable entry of the library.
type Function struct {
	Name        string
	Description string
	Phases      []string
	Critical    bool
	Destructor  bool
	Params      []*Param
	Returns     *Return
	Branches    []*Branch
}

// Param is one positional parameter.
type Param struct {
	Name      string
	CType     string
	Kind      string
	Ownership string
	// Owner names the parameter that becomes the new owner for transfer_out
	// parameters, or the container a detach parameter is taken from.
	Owner string
	// Parent names the parameter whose handle a produced handle depends on,
	// e.g. a prepared statement on its database connection.
	Parent string
	// Values holds the candidate C literal texts for value parameters.
	Values []string
	// LengthOf names a string parameter whose byte length this value
	// parameter carries.
	LengthOf string
	// Address passes a pointer handle by address, e.g. png_infopp.
	Address bool
}

// Return describes the function's return value.
type Return struct {
	CType     string
	Kind      string
	Ownership string
	// From names the container parameter an alias points into.
	From    string
	OnError string
}

// Branch is one entry of a function's static branch table.
type Branch struct {
	Name     string
	MinCalls int
	After    string
	Param    string
	Equals   string
}
