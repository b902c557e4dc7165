// Package sqlite3 registers the descriptor of the SQLite library.
package sqlite3

import (
	_ "embed"

	"github.com/vk/seedgrid/internal/registry"
)

//go:embed sqlite3.hcl
var descriptor []byte

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the sqlite3 descriptor with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterDescriptor(&registry.Descriptor{
		Library:  "sqlite3",
		Filename: "sqlite3.hcl",
		Source:   descriptor,
		Critical: []string{"sqlite3_close", "sqlite3_exec", "sqlite3_finalize", "sqlite3_open", "sqlite3_prepare_v2", "sqlite3_step"},
	})
}
