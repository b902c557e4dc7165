// Package sequence holds the synthesized artifact: an ordered list of
// phase-tagged call steps over arena handle slots, plus the phase template
// it was built from.
package sequence

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/vk/seedgrid/internal/catalogue"
)

// Arg is one bound argument: a handle slot or the text of a C literal.
type Arg struct {
	Handle  int    `json:"handle,omitempty"`
	Literal string `json:"literal,omitempty"`
}

// HandleArg binds the handle in slot.
func HandleArg(slot int) Arg { return Arg{Handle: slot} }

// LiteralArg binds a literal.
func LiteralArg(text string) Arg { return Arg{Literal: text} }

// IsHandle reports whether the argument binds a handle.
func (a Arg) IsHandle() bool { return a.Handle > 0 }

func (a Arg) String() string {
	if a.IsHandle() {
		return fmt.Sprintf("h%d", a.Handle)
	}
	return a.Literal
}

// CallStep is one invocation. Args follow the parameter order of the
// function; out_handle parameters carry the slot they produce. Produces
// lists every produced slot, out parameters first and the returned handle
// last.
type CallStep struct {
	Function string          `json:"function"`
	Phase    catalogue.Phase `json:"phase"`
	Args     []Arg           `json:"args"`
	Produces []int           `json:"produces,omitempty"`
}

// Sequence is one synthesized seed.
type Sequence struct {
	ID       int64      `json:"id"`
	Library  string     `json:"library"`
	Template Template   `json:"template"`
	Seed     int64      `json:"seed"`
	Steps    []CallStep `json:"steps"`
	Degraded bool       `json:"degraded,omitempty"`
	Reason   string     `json:"reason,omitempty"`
}

// Calls returns every function name in call order.
func (s *Sequence) Calls() []string {
	out := make([]string, len(s.Steps))
	for i, st := range s.Steps {
		out[i] = st.Function
	}
	return out
}

// Functions returns the distinct function names in order of first use.
func (s *Sequence) Functions() []string {
	seen := make(map[string]bool)
	var out []string
	for _, st := range s.Steps {
		if !seen[st.Function] {
			seen[st.Function] = true
			out = append(out, st.Function)
		}
	}
	return out
}

// Count returns how many times fn is called.
func (s *Sequence) Count(fn string) int {
	n := 0
	for _, st := range s.Steps {
		if st.Function == fn {
			n++
		}
	}
	return n
}

// StructuralHash identifies a sequence by its call shape. Function names
// and which handle each argument binds are significant; literal values are
// not, so sequences that differ only in a constant collide.
func (s *Sequence) StructuralHash() string {
	var b strings.Builder
	b.WriteString(s.Library)
	for _, st := range s.Steps {
		b.WriteByte('\n')
		b.WriteString(st.Function)
		b.WriteByte('(')
		for i, a := range st.Args {
			if i > 0 {
				b.WriteByte(',')
			}
			if a.IsHandle() {
				fmt.Fprintf(&b, "h%d", a.Handle)
			} else {
				b.WriteString("lit")
			}
		}
		b.WriteByte(')')
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Clone returns a deep copy.
func (s *Sequence) Clone() *Sequence {
	c := *s
	c.Steps = make([]CallStep, len(s.Steps))
	for i, st := range s.Steps {
		st.Args = append([]Arg(nil), st.Args...)
		st.Produces = append([]int(nil), st.Produces...)
		c.Steps[i] = st
	}
	return &c
}
