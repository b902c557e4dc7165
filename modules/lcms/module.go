// Package lcms registers the descriptor of the Little CMS library.
package lcms

import (
	_ "embed"

	"github.com/vk/seedgrid/internal/registry"
)

//go:embed lcms.hcl
var descriptor []byte

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the lcms descriptor with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterDescriptor(&registry.Descriptor{
		Library:  "lcms",
		Filename: "lcms.hcl",
		Source:   descriptor,
		Critical: []string{"cmsCloseProfile", "cmsCreateTransform", "cmsCreate_sRGBProfile", "cmsDeleteTransform"},
	})
}
