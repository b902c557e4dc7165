package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vk/seedgrid/internal/ctxlog"
)

// ValidateRegistry performs a strict parity check between the built-in
// modules and the catalogues ingested from their descriptors. Libraries
// whose descriptors failed to ingest are skipped; their DescriptorError is
// reported when they are used.
func (r *Registry) ValidateRegistry(ctx context.Context) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	for _, name := range r.sortedDescriptors() {
		d := r.descriptors[name]
		cat, ok := r.catalogues[name]
		if !ok {
			continue
		}

		if len(cat.Includes()) == 0 {
			logger.Warn("Library declares no includes; rendered seeds will not compile on their own.", "library", name)
		}

		declared := make(map[string]bool)
		for _, fn := range cat.Critical() {
			declared[fn] = true
		}
		expected := make(map[string]bool)
		for _, fn := range d.Critical {
			expected[fn] = true
			if _, err := cat.Lookup(fn); err != nil {
				errs = append(errs, fmt.Sprintf("library '%s': module lists critical function '%s' which the descriptor does not declare", name, fn))
				continue
			}
			if !declared[fn] {
				errs = append(errs, fmt.Sprintf("library '%s': module lists '%s' as critical but the descriptor does not flag it", name, fn))
			}
		}
		for fn := range declared {
			if !expected[fn] {
				errs = append(errs, fmt.Sprintf("library '%s': descriptor flags '%s' as critical but the module does not list it", name, fn))
			}
		}
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}

	return nil
}
