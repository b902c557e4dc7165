package render

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/vk/seedgrid/internal/catalogue"
	"github.com/vk/seedgrid/internal/sequence"
)

// Seed is a parsed seed file.
type Seed struct {
	Path           string
	Sequence       *sequence.Sequence
	Score          int
	UniqueBranches int
	Quality        json.RawMessage
}

var (
	pathLine    = regexp.MustCompile(`^=== (.+) ===$`)
	idLine      = regexp.MustCompile(`^//<ID> (\d+)$`)
	scoreLine   = regexp.MustCompile(`^//<score> (-?\d+), nr_unique_branch: (\d+)$`)
	qualityLine = regexp.MustCompile(`^//<Quality> (\{.*\})$`)
	funcLine    = regexp.MustCompile(`^int test_(\w+)_api_sequence\(\) \{$`)
	stepLine    = regexp.MustCompile(`^// step (\d+): (\w+)$`)
	callLine    = regexp.MustCompile(`^(?:.+?\b(h\d+) = )?(\w+)\((.*)\);$`)
	declLine    = regexp.MustCompile(`^.+?\bh\d+(?: = NULL)?;$`)
	handleArg   = regexp.MustCompile(`^&?h(\d+)$`)
)

// Library returns the library a rendered seed targets, read from its
// test function name.
func Library(text []byte) (string, error) {
	sc := bufio.NewScanner(bytes.NewReader(text))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if m := funcLine.FindStringSubmatch(strings.TrimSpace(sc.Text())); m != nil {
			return m[1], nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("no test_<library>_api_sequence function found")
}

// Parse recovers the sequence of a rendered seed. Function arity and the
// produced handles are resolved against cat.
func Parse(text []byte, cat *catalogue.Catalogue) (*Seed, error) {
	seed := &Seed{Sequence: &sequence.Sequence{}}
	seq := seed.Sequence

	var (
		inBody  bool
		phase   catalogue.Phase
		sawStep bool
		idSeen  bool
	)
	sc := bufio.NewScanner(bytes.NewReader(text))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if !inBody {
			switch {
			case pathLine.MatchString(line):
				seed.Path = pathLine.FindStringSubmatch(line)[1]
			case idLine.MatchString(line):
				id, err := strconv.ParseInt(idLine.FindStringSubmatch(line)[1], 10, 64)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNo, err)
				}
				seq.ID = id
				idSeen = true
			case scoreLine.MatchString(line):
				m := scoreLine.FindStringSubmatch(line)
				seed.Score, _ = strconv.Atoi(m[1])
				seed.UniqueBranches, _ = strconv.Atoi(m[2])
			case qualityLine.MatchString(line):
				seed.Quality = json.RawMessage(qualityLine.FindStringSubmatch(line)[1])
			case funcLine.MatchString(line):
				seq.Library = funcLine.FindStringSubmatch(line)[1]
				if seq.Library != cat.Library() {
					return nil, fmt.Errorf("line %d: seed targets library %q, catalogue is %q", lineNo, seq.Library, cat.Library())
				}
				inBody = true
			}
			continue
		}

		switch {
		case line == "" || line == "}" || strings.HasPrefix(line, "return "):
		case stepLine.MatchString(line):
			p, err := catalogue.ParsePhase(stepLine.FindStringSubmatch(line)[2])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			phase = p
			sawStep = true
		case strings.HasPrefix(line, "//"):
		case strings.HasPrefix(line, "memset("):
		case callLine.MatchString(line):
			if !sawStep {
				return nil, fmt.Errorf("line %d: call outside a step", lineNo)
			}
			st, err := parseCall(cat, phase, callLine.FindStringSubmatch(line))
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			seq.Steps = append(seq.Steps, st)
		case declLine.MatchString(line):
		default:
			return nil, fmt.Errorf("line %d: unrecognised statement %q", lineNo, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if !inBody {
		return nil, fmt.Errorf("no test_<library>_api_sequence function found")
	}
	if !idSeen {
		return nil, fmt.Errorf("missing //<ID> header")
	}

	for _, st := range seq.Steps {
		seq.Template.Counts[st.Phase]++
	}
	return seed, nil
}

func parseCall(cat *catalogue.Catalogue, phase catalogue.Phase, m []string) (sequence.CallStep, error) {
	fn, err := cat.Lookup(m[2])
	if err != nil {
		return sequence.CallStep{}, err
	}
	st := sequence.CallStep{Function: fn.Name, Phase: phase}

	var args []string
	if m[3] != "" {
		args = splitArgs(m[3])
	}
	if len(args) != len(fn.Params) {
		return st, fmt.Errorf("%s takes %d arguments, call has %d", fn.Name, len(fn.Params), len(args))
	}
	for i, a := range args {
		p := fn.Params[i]
		if hm := handleArg.FindStringSubmatch(a); hm != nil && p.Ownership != catalogue.Value {
			slot, _ := strconv.Atoi(hm[1])
			st.Args = append(st.Args, sequence.HandleArg(slot))
			if p.Ownership == catalogue.OutHandle {
				st.Produces = append(st.Produces, slot)
			}
			continue
		}
		st.Args = append(st.Args, sequence.LiteralArg(a))
	}

	if m[1] != "" {
		if !fn.Return.Produces() {
			return st, fmt.Errorf("%s does not return a handle", fn.Name)
		}
		slot, _ := strconv.Atoi(strings.TrimPrefix(m[1], "h"))
		st.Produces = append(st.Produces, slot)
	} else if fn.Return.Produces() {
		return st, fmt.Errorf("%s returns a handle that is not assigned", fn.Name)
	}
	return st, nil
}

// splitArgs splits a C argument list at top-level commas, leaving commas
// inside string literals and parentheses alone.
func splitArgs(s string) []string {
	var (
		out   []string
		depth int
		quote byte
		start int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == ',' && depth == 0:
			out = append(out, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}
