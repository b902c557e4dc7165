package hcl

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/seedgrid/internal/config"
	"github.com/vk/seedgrid/internal/ctxlog"
	"github.com/vk/seedgrid/internal/fsutil"
	"github.com/vk/seedgrid/internal/schema"
)

// Extension is the file extension of descriptor files.
const Extension = ".hcl"

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL descriptor loader.
func NewLoader() *Loader {
	return &Loader{}
}

var _ config.Loader = (*Loader)(nil)

// Load parses every descriptor under paths and merges them into one model.
// Paths that do not exist are an error: a descriptor the operator named but
// we could not read must not be mistaken for an empty catalogue.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL descriptor loader started.", "path_count", len(paths))

	files, err := fsutil.FindFiles(paths, Extension)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered descriptor files.", "count", len(files))

	model := config.NewModel()
	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read descriptor %s: %w", file, err)
		}
		m, err := l.LoadSource(ctx, file, src)
		if err != nil {
			return nil, err
		}
		if err := model.Merge(m); err != nil {
			return nil, err
		}
	}

	logger.Debug("HCL descriptor loading complete.", "libraries", len(model.Libraries))
	return model, nil
}

// LoadSource parses a single descriptor held in memory.
func (l *Loader) LoadSource(ctx context.Context, filename string, src []byte) (*config.Model, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse descriptor %s: %w", filename, diags)
	}

	var root schema.DescriptorFile
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode descriptor %s: %w", filename, diags)
	}

	model := config.NewModel()
	for _, lib := range root.Libraries {
		translated, err := l.translateLibrary(ctx, lib, filename)
		if err != nil {
			return nil, fmt.Errorf("descriptor %s: %w", filename, err)
		}
		if err := model.Merge(&config.Model{Libraries: map[string]*config.Library{translated.Name: translated}}); err != nil {
			return nil, err
		}
	}
	return model, nil
}
