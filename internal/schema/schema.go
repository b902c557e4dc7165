// Package schema holds the gohcl decoding targets for API descriptor files.
// Keyword-valued attributes (ownership, phases, storage, on_error, equals,
// values) are kept as raw hcl.Expression values and interpreted by the hcl
// package, because they are written as bare identifiers or mixed-type lists
// that gohcl cannot decode directly.
package schema

import (
	"github.com/hashicorp/hcl/v2"
)

// DescriptorFile represents the top-level structure of a descriptor file.
// Any other top-level block or attribute fails decoding.
type DescriptorFile struct {
	Libraries []*Library `hcl:"library,block"`
}

// Library represents a `library` block.
type Library struct {
	Name        string      `hcl:"name,label"`
	Version     string      `hcl:"version,optional"`
	Description string      `hcl:"description,optional"`
	Includes    []string    `hcl:"includes,optional"`
	Handles     []*Handle   `hcl:"handle,block"`
	Functions   []*Function `hcl:"function,block"`
}

// Handle represents a `handle` block declaring an opaque resource kind.
type Handle struct {
	Name        string         `hcl:"name,label"`
	CType       string         `hcl:"c_type"`
	Storage     hcl.Expression `hcl:"storage,optional"`
	Description string         `hcl:"description,optional"`
}

// Function represents a `function` block.
type Function struct {
	Name        string         `hcl:"name,label"`
	Description string         `hcl:"description,optional"`
	Phases      hcl.Expression `hcl:"phases,optional"`
	Critical    bool           `hcl:"critical,optional"`
	Destructor  bool           `hcl:"destructor,optional"`
	Params      []*Param       `hcl:"param,block"`
	Returns     *Returns       `hcl:"returns,block"`
	Branches    []*Branch      `hcl:"branch,block"`
}

// Param represents a `param` block. Block order is parameter order.
type Param struct {
	Name      string         `hcl:"name,label"`
	CType     string         `hcl:"c_type,optional"`
	Kind      string         `hcl:"kind,optional"`
	Ownership hcl.Expression `hcl:"ownership,optional"`
	Owner     string         `hcl:"owner,optional"`
	Parent    string         `hcl:"parent,optional"`
	Values    hcl.Expression `hcl:"values,optional"`
	Raw       []string       `hcl:"raw,optional"`
	LengthOf  string         `hcl:"length_of,optional"`
	Address   bool           `hcl:"address,optional"`
}

// Returns represents the `returns` block of a function.
type Returns struct {
	CType     string         `hcl:"c_type,optional"`
	Kind      string         `hcl:"kind,optional"`
	Ownership hcl.Expression `hcl:"ownership,optional"`
	From      string         `hcl:"from,optional"`
	OnError   hcl.Expression `hcl:"on_error,optional"`
}

// Branch represents one `branch` entry of a function's branch table.
type Branch struct {
	Name     string         `hcl:"name,label"`
	MinCalls int            `hcl:"min_calls,optional"`
	After    string         `hcl:"after,optional"`
	Param    string         `hcl:"param,optional"`
	Equals   hcl.Expression `hcl:"equals,optional"`
}
