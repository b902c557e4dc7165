package catalogue

import (
	"fmt"
	"strings"
)

// DescriptorError reports every problem found in a library descriptor.
type DescriptorError struct {
	Library  string
	Source   string
	Problems []string
}

func (e *DescriptorError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "descriptor for library %q", e.Library)
	if e.Source != "" {
		fmt.Fprintf(&b, " (%s)", e.Source)
	}
	b.WriteString(" is invalid:")
	for _, p := range e.Problems {
		b.WriteString("\n- ")
		b.WriteString(p)
	}
	return b.String()
}

// UnknownFunctionError is returned by Lookup for names not in the catalogue.
type UnknownFunctionError struct {
	Library string
	Name    string
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("library %q has no function %q", e.Library, e.Name)
}
