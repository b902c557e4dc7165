// Package re2 registers the descriptor of the RE2 library as exposed by the
// cre2 C bindings.
package re2

import (
	_ "embed"

	"github.com/vk/seedgrid/internal/registry"
)

//go:embed re2.hcl
var descriptor []byte

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the re2 descriptor with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterDescriptor(&registry.Descriptor{
		Library:  "re2",
		Filename: "re2.hcl",
		Source:   descriptor,
		Critical: []string{"cre2_delete", "cre2_match", "cre2_new", "cre2_opt_new"},
	})
}
