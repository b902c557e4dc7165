package hcl

import (
	"context"
	"fmt"

	"github.com/vk/seedgrid/internal/config"
	"github.com/vk/seedgrid/internal/ctxlog"
	"github.com/vk/seedgrid/internal/schema"
)

// translateLibrary converts a decoded library block into the config model.
// Only syntactic problems are reported here. Semantic checks such as unknown
// kinds or missing ownership belong to catalogue.Ingest.
func (l *Loader) translateLibrary(ctx context.Context, lib *schema.Library, filename string) (*config.Library, error) {
	logger := ctxlog.FromContext(ctx).With("library", lib.Name)
	logger.Debug("Translating library descriptor.", "functions", len(lib.Functions), "handles", len(lib.Handles))

	out := &config.Library{
		Name:        lib.Name,
		Version:     lib.Version,
		Description: lib.Description,
		Includes:    append([]string(nil), lib.Includes...),
		Source:      filename,
	}

	for _, h := range lib.Handles {
		storage, err := keyword(h.Storage)
		if err != nil {
			return nil, fmt.Errorf("handle %q storage: %w", h.Name, err)
		}
		if storage == "" {
			storage = "pointer"
		}
		out.Handles = append(out.Handles, &config.HandleKind{
			Name:        h.Name,
			CType:       h.CType,
			Storage:     storage,
			Description: h.Description,
		})
	}

	for _, fn := range lib.Functions {
		translated, err := translateFunction(fn)
		if err != nil {
			return nil, fmt.Errorf("function %q: %w", fn.Name, err)
		}
		out.Functions = append(out.Functions, translated)
	}

	return out, nil
}

func translateFunction(fn *schema.Function) (*config.Function, error) {
	phases, err := keywordList(fn.Phases)
	if err != nil {
		return nil, fmt.Errorf("phases: %w", err)
	}

	out := &config.Function{
		Name:        fn.Name,
		Description: fn.Description,
		Phases:      phases,
		Critical:    fn.Critical,
		Destructor:  fn.Destructor,
	}

	for _, p := range fn.Params {
		ownership, err := keyword(p.Ownership)
		if err != nil {
			return nil, fmt.Errorf("param %q ownership: %w", p.Name, err)
		}
		values, err := literalList(p.Values)
		if err != nil {
			return nil, fmt.Errorf("param %q values: %w", p.Name, err)
		}
		values = append(values, p.Raw...)
		out.Params = append(out.Params, &config.Param{
			Name:      p.Name,
			CType:     p.CType,
			Kind:      p.Kind,
			Ownership: ownership,
			Owner:     p.Owner,
			Parent:    p.Parent,
			Values:    values,
			LengthOf:  p.LengthOf,
			Address:   p.Address,
		})
	}

	if r := fn.Returns; r != nil {
		ownership, err := keyword(r.Ownership)
		if err != nil {
			return nil, fmt.Errorf("returns ownership: %w", err)
		}
		onError, err := keyword(r.OnError)
		if err != nil {
			return nil, fmt.Errorf("returns on_error: %w", err)
		}
		out.Returns = &config.Return{
			CType:     r.CType,
			Kind:      r.Kind,
			Ownership: ownership,
			From:      r.From,
			OnError:   onError,
		}
	}

	for _, b := range fn.Branches {
		equals := ""
		if !isAbsent(b.Equals) {
			lit, err := literal(b.Equals)
			if err != nil {
				return nil, fmt.Errorf("branch %q equals: %w", b.Name, err)
			}
			equals = lit
		}
		out.Branches = append(out.Branches, &config.Branch{
			Name:     b.Name,
			MinCalls: b.MinCalls,
			After:    b.After,
			Param:    b.Param,
			Equals:   equals,
		})
	}

	return out, nil
}
