package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/vk/seedgrid/internal/catalogue"
	"github.com/vk/seedgrid/internal/config"
	"github.com/vk/seedgrid/internal/ctxlog"
)

// Module is the interface that all built-in library modules implement.
type Module interface {
	Register(r *Registry)
}

// Descriptor is one library descriptor as shipped by a module or read from
// disk.
type Descriptor struct {
	Library  string
	Filename string
	Source   []byte
	// Critical is the high-value function set the module expects the
	// descriptor to flag.
	Critical []string
}

// Registry holds every known descriptor and the catalogues built from them.
type Registry struct {
	descriptors map[string]*Descriptor
	catalogues  map[string]*catalogue.Catalogue
	failures    map[string]error
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		descriptors: make(map[string]*Descriptor),
		catalogues:  make(map[string]*catalogue.Catalogue),
		failures:    make(map[string]error),
	}
}

// RegisterDescriptor adds a module's descriptor. Registering the same
// library twice is a programming error.
func (r *Registry) RegisterDescriptor(d *Descriptor) {
	if _, exists := r.descriptors[d.Library]; exists {
		panic(fmt.Sprintf("descriptor for library '%s' already registered", d.Library))
	}
	r.descriptors[d.Library] = d
}

// Load parses and ingests every registered descriptor.
func (r *Registry) Load(ctx context.Context, loader config.Loader) error {
	logger := ctxlog.FromContext(ctx)
	for _, name := range r.sortedDescriptors() {
		d := r.descriptors[name]
		model, err := loader.LoadSource(ctx, d.Filename, d.Source)
		if err != nil {
			r.fail(ctx, name, err)
			continue
		}
		r.ingestModel(ctx, model, name)
	}
	logger.Debug("Registry loaded built-in descriptors.", "libraries", len(r.catalogues), "failed", len(r.failures))
	return nil
}

// LoadFiles ingests descriptors from disk. A library declared on disk
// replaces the built-in descriptor of the same name.
func (r *Registry) LoadFiles(ctx context.Context, loader config.Loader, paths ...string) error {
	model, err := loader.Load(ctx, paths...)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(model.Libraries))
	for name := range model.Libraries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, builtin := r.descriptors[name]; builtin {
			ctxlog.FromContext(ctx).Info("Descriptor file overrides built-in library.", "library", name, "file", model.Libraries[name].Source)
		}
		delete(r.failures, name)
		single := config.NewModel()
		single.Libraries[name] = model.Libraries[name]
		r.ingestModel(ctx, single, name)
	}
	return nil
}

func (r *Registry) ingestModel(ctx context.Context, model *config.Model, name string) {
	lib, ok := model.Libraries[name]
	if !ok || len(model.Libraries) != 1 {
		r.fail(ctx, name, &catalogue.DescriptorError{Library: name,
			Problems: []string{fmt.Sprintf("descriptor must declare exactly library %q", name)}})
		return
	}
	cat, err := catalogue.Ingest(lib)
	if err != nil {
		r.fail(ctx, name, err)
		return
	}
	r.catalogues[name] = cat
}

func (r *Registry) fail(ctx context.Context, name string, err error) {
	var de *catalogue.DescriptorError
	if !errors.As(err, &de) {
		err = &catalogue.DescriptorError{Library: name, Problems: []string{err.Error()}}
	}
	delete(r.catalogues, name)
	r.failures[name] = err
	ctxlog.FromContext(ctx).Error("Library descriptor rejected.", "library", name, "error", err)
}

// Catalogue returns the catalogue of library. If its descriptor failed to
// ingest the DescriptorError is returned.
func (r *Registry) Catalogue(library string) (*catalogue.Catalogue, error) {
	if cat, ok := r.catalogues[library]; ok {
		return cat, nil
	}
	if err, ok := r.failures[library]; ok {
		return nil, err
	}
	return nil, fmt.Errorf("unknown library %q (known: %v)", library, r.Libraries())
}

// Libraries lists every library with a catalogue or a recorded failure.
func (r *Registry) Libraries() []string {
	seen := make(map[string]bool)
	for name := range r.catalogues {
		seen[name] = true
	}
	for name := range r.failures {
		seen[name] = true
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) sortedDescriptors() []string {
	out := make([]string, 0, len(r.descriptors))
	for name := range r.descriptors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
