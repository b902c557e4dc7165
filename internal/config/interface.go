package config

import "context"

// Loader is the interface for a format-specific descriptor loader.
type Loader interface {
	// Load reads every descriptor file found under the given paths (files
	// or directories) and merges them into a single model.
	Load(ctx context.Context, paths ...string) (*Model, error)

	// LoadSource parses one in-memory descriptor, e.g. one embedded by a
	// built-in library module. The filename is used for diagnostics only.
	LoadSource(ctx context.Context, filename string, src []byte) (*Model, error)
}
