// Package libpng registers the descriptor of the libpng library.
package libpng

import (
	_ "embed"

	"github.com/vk/seedgrid/internal/registry"
)

//go:embed libpng.hcl
var descriptor []byte

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the libpng descriptor with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterDescriptor(&registry.Descriptor{
		Library:  "libpng",
		Filename: "libpng.hcl",
		Source:   descriptor,
		Critical: []string{"png_create_info_struct", "png_create_read_struct", "png_destroy_read_struct", "png_set_IHDR"},
	})
}
