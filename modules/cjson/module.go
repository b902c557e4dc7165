// Package cjson registers the descriptor of the cJSON library.
package cjson

import (
	_ "embed"

	"github.com/vk/seedgrid/internal/registry"
)

//go:embed cjson.hcl
var descriptor []byte

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the cJSON descriptor with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterDescriptor(&registry.Descriptor{
		Library:  "cJSON",
		Filename: "cjson.hcl",
		Source:   descriptor,
		Critical: []string{"cJSON_AddItemToObject", "cJSON_CreateObject", "cJSON_Delete", "cJSON_Parse", "cJSON_Print"},
	})
}
