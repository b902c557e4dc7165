package curator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/seedgrid/internal/callgraph"
	"github.com/vk/seedgrid/internal/ctxlog"
	"github.com/vk/seedgrid/internal/store"
)

// MinimizeResult summarises a minimisation.
type MinimizeResult struct {
	Seeds   int
	Kept    []int64
	Triples int
}

// Minimize copies into outDir the smallest subset of the corpus, chosen
// greedily, that covers every API triple of the accepted seeds. Ties go to
// the seed accepted first. Seeds that contribute no triple are dropped.
func (c *Curator) Minimize(ctx context.Context, outDir string) (*MinimizeResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Minimize(ctx, c.cats, c.store.Dir(), outDir)
}

// Minimize is the curator-less form used on a corpus no process is
// writing to.
func Minimize(ctx context.Context, cats Catalogues, corpusDir, outDir string) (*MinimizeResult, error) {
	logger := ctxlog.FromContext(ctx)
	entries, err := store.Accepted(corpusDir)
	if err != nil {
		return nil, err
	}

	sets := make([]map[string]bool, len(entries))
	uncovered := make(map[string]bool)
	for i, e := range entries {
		triples := e.Triples
		if len(triples) == 0 {
			if triples, err = triplesOf(ctx, cats, corpusDir, e); err != nil {
				return nil, err
			}
		}
		sets[i] = make(map[string]bool, len(triples))
		for _, t := range triples {
			sets[i][t] = true
			uncovered[t] = true
		}
	}

	res := &MinimizeResult{Seeds: len(entries), Triples: len(uncovered)}
	var kept []store.Entry
	for len(uncovered) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		best, gain := -1, 0
		for i, set := range sets {
			n := 0
			for t := range set {
				if uncovered[t] {
					n++
				}
			}
			if n > gain {
				best, gain = i, n
			}
		}
		for t := range sets[best] {
			delete(uncovered, t)
		}
		sets[best] = nil
		kept = append(kept, entries[best])
		res.Kept = append(res.Kept, entries[best].ID)
	}

	if err := store.Export(corpusDir, outDir, kept); err != nil {
		return nil, err
	}
	logger.Info("Corpus minimized.", "seeds", res.Seeds, "kept", len(res.Kept), "triples", res.Triples, "out", outDir)
	return res, nil
}

// triplesOf recomputes the triples of a seed logged without them.
func triplesOf(ctx context.Context, cats Catalogues, dir string, e store.Entry) ([]string, error) {
	cat, err := cats.Catalogue(e.Library)
	if err != nil {
		return nil, err
	}
	src, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(e.Path)))
	if err != nil {
		return nil, fmt.Errorf("failed to read seed %d: %w", e.ID, err)
	}
	calls, err := callgraph.Calls(ctx, src, func(name string) bool {
		_, err := cat.Lookup(name)
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	var out []string
	for _, t := range callgraph.Triples(calls) {
		out = append(out, t.String())
	}
	return out, nil
}
