// Package callgraph extracts the library call order from rendered seed
// source with tree-sitter and derives the API triples used by the feedback
// loop and corpus minimisation.
package callgraph

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"
)

// Triple is three consecutive library calls.
type Triple [3]string

// String renders the triple as "a->b->c".
func (t Triple) String() string {
	return strings.Join(t[:], "->")
}

// ParseTriple parses the String form.
func ParseTriple(s string) (Triple, error) {
	parts := strings.Split(s, "->")
	if len(parts) != 3 {
		return Triple{}, fmt.Errorf("invalid triple %q", s)
	}
	return Triple{parts[0], parts[1], parts[2]}, nil
}

// Calls returns, in source order, the names of the calls in src for which
// known reports true. A nil known keeps every call.
func Calls(ctx context.Context, src []byte, known func(string) bool) ([]string, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(cpp.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, blankMarkers(src))
	if err != nil {
		return nil, fmt.Errorf("failed to parse seed source: %w", err)
	}
	defer tree.Close()

	var calls []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "call_expression" {
			if fn := n.ChildByFieldName("function"); fn != nil && fn.Type() == "identifier" {
				name := fn.Content(src)
				if known == nil || known(name) {
					calls = append(calls, name)
				}
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(tree.RootNode())
	return calls, nil
}

// blankMarkers replaces "=== path ===" boundary lines with spaces so the
// C++ grammar does not see them and byte offsets stay valid.
func blankMarkers(src []byte) []byte {
	out := bytes.Clone(src)
	start := 0
	for start < len(out) {
		end := bytes.IndexByte(out[start:], '\n')
		if end < 0 {
			end = len(out)
		} else {
			end += start
		}
		line := out[start:end]
		if bytes.HasPrefix(line, []byte("=== ")) && bytes.HasSuffix(line, []byte(" ===")) {
			for i := range line {
				line[i] = ' '
			}
		}
		start = end + 1
	}
	return out
}

// Triples returns the distinct consecutive call triples of calls in order
// of first appearance.
func Triples(calls []string) []Triple {
	var out []Triple
	seen := make(map[Triple]bool)
	for i := 0; i+2 < len(calls); i++ {
		t := Triple{calls[i], calls[i+1], calls[i+2]}
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
