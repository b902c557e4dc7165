// This file contains the logic for reading keyword-valued attributes such as
// `ownership = borrow_in` or `phases = [init, configure]`, and for turning
// literal candidate values into the C source text they are emitted as.

package hcl

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// isAbsent reports whether an optional attribute was left out. gohcl fills
// missing hcl.Expression fields with a static null expression.
func isAbsent(expr hcl.Expression) bool {
	if expr == nil {
		return true
	}
	if len(expr.Variables()) > 0 {
		return false
	}
	v, diags := expr.Value(nil)
	return !diags.HasErrors() && v.IsNull()
}

// keyword reads a single bare identifier. A quoted string is accepted as
// well, so `ownership = "borrow_in"` and `ownership = borrow_in` are the same.
func keyword(expr hcl.Expression) (string, error) {
	if isAbsent(expr) {
		return "", nil
	}
	if kw := hcl.ExprAsKeyword(expr); kw != "" {
		return kw, nil
	}
	v, diags := expr.Value(nil)
	if diags.HasErrors() {
		return "", diags
	}
	if v.Type() != cty.String || !v.IsKnown() {
		return "", fmt.Errorf("%s: expected a keyword, got %s", expr.Range(), v.Type().FriendlyName())
	}
	return v.AsString(), nil
}

// keywordList reads a list of bare identifiers.
func keywordList(expr hcl.Expression) ([]string, error) {
	if isAbsent(expr) {
		return nil, nil
	}
	items, diags := hcl.ExprList(expr)
	if diags.HasErrors() {
		return nil, diags
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		kw, err := keyword(item)
		if err != nil {
			return nil, err
		}
		if kw == "" {
			return nil, fmt.Errorf("%s: null is not a valid keyword", item.Range())
		}
		out = append(out, kw)
	}
	return out, nil
}

// literalList reads the candidate values of a value parameter. Each element
// is rendered as C source text: strings are quoted, numbers printed in their
// shortest form, booleans become 1/0 and null becomes NULL. A bare
// identifier such as Z_DEFAULT_COMPRESSION is passed through verbatim.
func literalList(expr hcl.Expression) ([]string, error) {
	if isAbsent(expr) {
		return nil, nil
	}
	items, diags := hcl.ExprList(expr)
	if diags.HasErrors() {
		return nil, diags
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		lit, err := literal(item)
		if err != nil {
			return nil, err
		}
		out = append(out, lit)
	}
	return out, nil
}

// literal renders one expression as C source text.
func literal(expr hcl.Expression) (string, error) {
	if kw := hcl.ExprAsKeyword(expr); kw != "" && kw != "null" && kw != "true" && kw != "false" {
		return kw, nil
	}
	v, diags := expr.Value(nil)
	if diags.HasErrors() {
		return "", diags
	}
	return CLiteral(v)
}

// CLiteral converts a cty value to the text of a C literal.
func CLiteral(v cty.Value) (string, error) {
	if v.IsNull() {
		return "NULL", nil
	}
	if !v.IsKnown() {
		return "", fmt.Errorf("value is not known")
	}
	switch v.Type() {
	case cty.String:
		return quoteC(v.AsString()), nil
	case cty.Bool:
		if v.True() {
			return "1", nil
		}
		return "0", nil
	case cty.Number:
		bf := v.AsBigFloat()
		if _, acc := bf.Int64(); bf.IsInt() && acc == big.Exact {
			s, err := convert.Convert(v, cty.String)
			if err != nil {
				return "", err
			}
			return s.AsString(), nil
		}
		f, _ := bf.Float64()
		return strconv.FormatFloat(f, 'g', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported literal type %s", v.Type().FriendlyName())
	}
}

// quoteC produces a double-quoted C string literal. Non-printable bytes
// are emitted as three-digit octal escapes, which never absorb the
// characters that follow.
func quoteC(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			if c < 0x20 || c >= 0x7f {
				fmt.Fprintf(&b, `\%03o`, c)
			} else {
				b.WriteByte(c)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}
