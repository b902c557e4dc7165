package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"text/template"

	"github.com/vk/seedgrid/internal/catalogue"
	"github.com/vk/seedgrid/internal/sequence"
)

// SuccessCode is returned by every rendered seed on its success path.
const SuccessCode = 66

// Header carries the scored fields of the comment header. The zero value
// renders the unscored placeholder header.
type Header struct {
	// Path is the file path relative to the corpus root.
	Path           string
	Score          int
	UniqueBranches int
	// Quality is the JSON object written after //<Quality>.
	Quality json.RawMessage
}

// placeholderQuality is written when no quality record is attached.
const placeholderQuality = `{"density":0,"unique_branches":{},"library_calls":[],"critical_calls":[],"visited":0}`

var seedTemplate = template.Must(template.New("seed").Parse(`=== {{.Path}} ===
{{range .Includes}}#include <{{.}}>
{{end}}
//<ID> {{.ID}}
//<Prompt> {{.Prompt}}
/*<Combination>: [{{.Combination}}] */
//<score> {{.Score}}, nr_unique_branch: {{.UniqueBranches}}
//<Quality> {{.Quality}}
int test_{{.Library}}_api_sequence() {
{{- range .Lines}}
{{if .}}    {{.}}{{end}}
{{- end}}

    // API sequence test completed successfully
    return {{.Code}};
}
`))

type seedView struct {
	Path           string
	Includes       []string
	ID             int64
	Prompt         string
	Combination    string
	Score          int
	UniqueBranches int
	Quality        string
	Library        string
	Lines          []string
	Code           int
}

// Render produces the seed file text of seq.
func Render(cat *catalogue.Catalogue, seq *sequence.Sequence, hdr Header) ([]byte, error) {
	if seq.Library != cat.Library() {
		return nil, fmt.Errorf("sequence of library %q rendered with the %q catalogue", seq.Library, cat.Library())
	}

	functions := seq.Functions()
	prompt, err := json.Marshal(functions)
	if err != nil {
		return nil, err
	}
	protos := make([]string, 0, len(functions))
	for _, name := range functions {
		fn, err := cat.Lookup(name)
		if err != nil {
			return nil, err
		}
		protos = append(protos, fn.Prototype())
	}

	lines, err := body(cat, seq)
	if err != nil {
		return nil, err
	}

	quality := string(hdr.Quality)
	if quality == "" {
		quality = placeholderQuality
	}
	path := hdr.Path
	if path == "" {
		path = DefaultPath(seq.Library, seq.ID)
	}

	view := seedView{
		Path:           path,
		Includes:       includes(cat),
		ID:             seq.ID,
		Prompt:         string(prompt),
		Combination:    strings.Join(protos, ", "),
		Score:          hdr.Score,
		UniqueBranches: hdr.UniqueBranches,
		Quality:        quality,
		Library:        seq.Library,
		Lines:          lines,
		Code:           SuccessCode,
	}
	var buf bytes.Buffer
	if err := seedTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("failed to render sequence %d: %w", seq.ID, err)
	}
	return buf.Bytes(), nil
}

// DefaultPath is the corpus-relative path of a seed.
func DefaultPath(library string, id int64) string {
	return fmt.Sprintf("%s/id_%06d.cc", library, id)
}

// includes returns the catalogue headers, plus string.h when a stack handle
// has to be zeroed with memset.
func includes(cat *catalogue.Catalogue) []string {
	out := slices.Clone(cat.Includes())
	if slices.Contains(out, "string.h") || slices.Contains(out, "cstring") {
		return out
	}
	for _, k := range cat.Kinds() {
		if k.Stack {
			return append(out, "string.h")
		}
	}
	return out
}

func handleName(slot int) string { return fmt.Sprintf("h%d", slot) }

func declare(ctype, name string) string {
	if strings.HasSuffix(ctype, "*") {
		return ctype + name
	}
	return ctype + " " + name
}

// body renders the statements of seq, one per line. Empty strings separate
// phases.
func body(cat *catalogue.Catalogue, seq *sequence.Sequence) ([]string, error) {
	var lines []string
	stack := make(map[int]bool)
	for i, st := range seq.Steps {
		fn, err := cat.Lookup(st.Function)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		if len(st.Args) != len(fn.Params) {
			return nil, fmt.Errorf("step %d: %s takes %d arguments, step has %d", i+1, fn.Name, len(fn.Params), len(st.Args))
		}
		if i > 0 && seq.Steps[i-1].Phase != st.Phase {
			lines = append(lines, "")
		}
		lines = append(lines, fmt.Sprintf("// step %d: %s", i+1, st.Phase))

		args := make([]string, len(st.Args))
		for j, arg := range st.Args {
			p := fn.Params[j]
			if !arg.IsHandle() {
				args[j] = arg.Literal
				continue
			}
			name := handleName(arg.Handle)
			if p.Ownership == catalogue.OutHandle {
				k := cat.KindInfo(p.Kind)
				if k.Stack {
					stack[arg.Handle] = true
					lines = append(lines, declare(k.CType, name)+";", fmt.Sprintf("memset(&%s, 0, sizeof(%s));", name, name))
				} else {
					lines = append(lines, declare(k.CType, name)+" = NULL;")
				}
			}
			if p.Ownership == catalogue.OutHandle || p.Address || stack[arg.Handle] {
				name = "&" + name
			}
			args[j] = name
		}

		call := fmt.Sprintf("%s(%s);", fn.Name, strings.Join(args, ", "))
		if fn.Return.Produces() {
			if len(st.Produces) == 0 {
				return nil, fmt.Errorf("step %d: %s returns a handle the step does not record", i+1, fn.Name)
			}
			slot := st.Produces[len(st.Produces)-1]
			call = declare(fn.Return.CType, handleName(slot)) + " = " + call
		}
		lines = append(lines, call)
	}
	return lines, nil
}
