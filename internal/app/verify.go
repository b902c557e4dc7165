package app

import (
	"context"
	"fmt"
	"os"

	"github.com/vk/seedgrid/internal/ctxlog"
	"github.com/vk/seedgrid/internal/curator"
	"github.com/vk/seedgrid/internal/render"
	"github.com/vk/seedgrid/internal/typestate"
)

// VerifyResult is the outcome of checking one seed file.
type VerifyResult struct {
	Path    string
	Library string
	ID      int64
	Steps   int
	Err     error
}

// Verify parses each seed file against its library's catalogue and replays
// it through the typestate tracker. Per-file failures are reported in the
// results; the error is non-nil only for a cancelled context.
func (a *App) Verify(ctx context.Context, paths []string) ([]VerifyResult, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	logger := ctxlog.FromContext(ctx)

	results := make([]VerifyResult, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := a.verifyFile(path)
		if res.Err != nil {
			logger.Warn("Seed failed verification.", "path", path, "error", res.Err)
		} else {
			logger.Debug("Seed verified.", "path", path, "id", res.ID, "steps", res.Steps)
		}
		results = append(results, res)
	}
	return results, nil
}

func (a *App) verifyFile(path string) VerifyResult {
	res := VerifyResult{Path: path}
	text, err := os.ReadFile(path)
	if err != nil {
		res.Err = err
		return res
	}
	if res.Library, err = render.Library(text); err != nil {
		res.Err = err
		return res
	}
	cat, err := a.registry.Catalogue(res.Library)
	if err != nil {
		res.Err = err
		return res
	}
	seed, err := render.Parse(text, cat)
	if err != nil {
		res.Err = fmt.Errorf("parse: %w", err)
		return res
	}
	res.ID, res.Steps = seed.Sequence.ID, len(seed.Sequence.Steps)
	if err := typestate.Replay(cat, seed.Sequence); err != nil {
		res.Err = fmt.Errorf("replay: %w", err)
	}
	return res
}

// Minimize writes the triple-preserving subset of the corpus at corpusDir
// into outDir.
func (a *App) Minimize(ctx context.Context, corpusDir, outDir string) (*curator.MinimizeResult, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	return curator.Minimize(ctx, a.registry, corpusDir, outDir)
}
