package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/seedgrid/internal/catalogue"
	"github.com/vk/seedgrid/internal/config"
	"github.com/vk/seedgrid/internal/ctxlog"
	"github.com/vk/seedgrid/internal/registry"
	"github.com/vk/seedgrid/modules"
)

// App encapsulates the application's dependencies and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	registry *registry.Registry
}

// NewApp builds the logger and the registry: every module is registered,
// its descriptor ingested, then descriptor files from cfg.Descriptors are
// layered on top. With no modules given the built-in libraries are used.
//
// A descriptor file that cannot be read or parsed is returned as a
// *catalogue.DescriptorError. A module whose critical set disagrees with
// its own descriptor is a programming error and panics.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader, mods ...registry.Module) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	reg := registry.New()
	if len(mods) == 0 {
		mods = modules.All()
	}
	for _, mod := range mods {
		mod.Register(reg)
	}
	logger.Debug("All library modules registered.", "count", len(mods))

	if err := reg.Load(ctx, loader); err != nil {
		return nil, fmt.Errorf("failed to load built-in descriptors: %w", err)
	}
	if len(cfg.Descriptors) > 0 {
		if err := reg.LoadFiles(ctx, loader, cfg.Descriptors...); err != nil {
			var de *catalogue.DescriptorError
			if !errors.As(err, &de) {
				err = &catalogue.DescriptorError{Library: cfg.Library, Problems: []string{err.Error()}}
			}
			return nil, err
		}
		logger.Debug("Descriptor files loaded.", "paths", cfg.Descriptors)
	}

	if err := reg.ValidateRegistry(ctx); err != nil {
		panic(err)
	}
	logger.Debug("Registry validation passed.")

	return &App{outW: outW, logger: logger, registry: reg}, nil
}

// Registry returns the application's registry.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// LibraryInfo describes one library known to the registry.
type LibraryInfo struct {
	Name      string
	Source    string
	Functions int
	Kinds     int
	Critical  []string
	Err       error
}

// Libraries lists every library, including the ones whose descriptor was
// rejected.
func (a *App) Libraries() []LibraryInfo {
	var out []LibraryInfo
	for _, name := range a.registry.Libraries() {
		cat, err := a.registry.Catalogue(name)
		if err != nil {
			out = append(out, LibraryInfo{Name: name, Err: err})
			continue
		}
		out = append(out, LibraryInfo{
			Name:      name,
			Source:    cat.Source(),
			Functions: len(cat.Functions()),
			Kinds:     len(cat.Kinds()),
			Critical:  cat.Critical(),
		})
	}
	return out
}
