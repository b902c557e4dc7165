// Package zlib registers the descriptor of the zlib compression library.
package zlib

import (
	_ "embed"

	"github.com/vk/seedgrid/internal/registry"
)

//go:embed zlib.hcl
var descriptor []byte

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the zlib descriptor with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterDescriptor(&registry.Descriptor{
		Library:  "zlib",
		Filename: "zlib.hcl",
		Source:   descriptor,
		Critical: []string{"deflate", "deflateEnd", "deflateInit_", "inflate", "inflateEnd", "inflateInit_"},
	})
}
