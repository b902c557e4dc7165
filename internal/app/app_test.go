package app_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/seedgrid/internal/app"
	"github.com/vk/seedgrid/internal/catalogue"
	"github.com/vk/seedgrid/internal/fsutil"
	"github.com/vk/seedgrid/internal/hcl"
	"github.com/vk/seedgrid/internal/store"
	"github.com/vk/seedgrid/internal/synth"
	"github.com/vk/seedgrid/internal/testutil"
)

// stuckDescriptor has no producer for "peer", so Configure never finds a
// call and every sequence degrades.
const stuckDescriptor = `
library "stuck" {
  includes = ["stuck.h"]

  handle "ctx" {
    c_type = "ctx_t *"
  }
  handle "peer" {
    c_type = "peer_t *"
  }

  function "ctx_new" {
    phases = [init]
    returns {
      kind      = "ctx"
      ownership = out_handle
      on_error  = null_return
    }
  }

  function "ctx_link" {
    phases = [configure]
    param "c" {
      kind      = "ctx"
      ownership = borrow_in
    }
    param "p" {
      kind      = "peer"
      ownership = borrow_in
    }
  }

  function "ctx_free" {
    phases = [cleanup]
    param "c" {
      kind      = "ctx"
      ownership = owns_in
    }
  }
}
`

func newConfig(t *testing.T, library string, mutate ...func(*app.Config)) *app.Config {
	t.Helper()
	cfg := app.DefaultConfig()
	cfg.Library = library
	cfg.OutDir = t.TempDir()
	cfg.WorkerCount = 2
	cfg.LogLevel = "debug"
	for _, m := range mutate {
		m(&cfg)
	}
	valid, err := app.NewConfig(cfg)
	require.NoError(t, err)
	return valid
}

func newApp(t *testing.T, cfg *app.Config) (*app.App, *testutil.SafeBuffer) {
	t.Helper()
	logs := &testutil.SafeBuffer{}
	a, err := app.NewApp(logs, cfg, hcl.NewLoader())
	require.NoError(t, err)
	t.Cleanup(func() {
		if os.Getenv("SEEDGRID_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logs.String())
		}
	})
	return a, logs
}

func seedFiles(t *testing.T, dir, library string) []string {
	t.Helper()
	files, err := fsutil.FindFilesByExtension(filepath.Join(dir, library), ".cc")
	require.NoError(t, err)
	return files
}

func TestRun_GeneratesRequestedCount(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	cfg := newConfig(t, "zlib", func(c *app.Config) { c.Count = 3 })
	a, logs := newApp(t, cfg)

	// --- Act ---
	rep, err := a.Run(context.Background(), cfg)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Accepted)
	assert.NotEmpty(t, rep.RunID)
	assert.GreaterOrEqual(t, rep.Attempts, 3)
	assert.Positive(t, rep.Rounds)
	assert.Equal(t, int64(3), rep.LastID)
	assert.Positive(t, rep.Branches)
	covered := 0
	for _, ids := range rep.Coverage {
		covered += len(ids)
	}
	assert.Equal(t, rep.Branches, covered)
	assert.Len(t, seedFiles(t, cfg.OutDir, "zlib"), 3)
	assert.Contains(t, logs.String(), "Generation finished.")

	accepted, err := store.Accepted(cfg.OutDir)
	require.NoError(t, err)
	for i, e := range accepted {
		assert.Equal(t, int64(i+1), e.ID)
		assert.Equal(t, rep.RunID, e.RunID)
	}
}

func TestRun_ResumesIDsFromSQLiteIndex(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	cfg := newConfig(t, "cJSON", func(c *app.Config) {
		c.Count = 2
		c.Index = app.IndexSQLite
	})
	a, _ := newApp(t, cfg)
	_, err := a.Run(context.Background(), cfg)
	require.NoError(t, err)

	// --- Act ---
	second := *cfg
	second.Seed = 1000
	rep, err := a.Run(context.Background(), &second)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Accepted)
	assert.Equal(t, int64(4), rep.LastID)
	assert.FileExists(t, filepath.Join(cfg.OutDir, app.IndexFile))
	assert.FileExists(t, filepath.Join(cfg.OutDir, "cJSON", "id_000004.cc"))
	assert.Len(t, seedFiles(t, cfg.OutDir, "cJSON"), 4)
}

func TestRun_AllCandidatesDegraded(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	dir := t.TempDir()
	path := filepath.Join(dir, "stuck.hcl")
	require.NoError(t, os.WriteFile(path, []byte(stuckDescriptor), 0o644))
	cfg := newConfig(t, "stuck", func(c *app.Config) {
		c.Descriptors = []string{path}
		c.MaxAttempts = 4
		c.RoundSize = 2
	})
	a, logs := newApp(t, cfg)

	// --- Act ---
	rep, err := a.Run(context.Background(), cfg)

	// --- Assert ---
	require.ErrorIs(t, err, synth.ErrSynthesisExhausted)
	assert.Equal(t, 4, rep.Attempts)
	assert.Equal(t, 4, rep.Degraded)
	assert.Zero(t, rep.Accepted)
	assert.Contains(t, logs.String(), "Attempt budget spent")
}

func TestRun_Converges(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	cfg := newConfig(t, "zlib", func(c *app.Config) {
		c.Count = 10000
		c.NumNewTriples = 100000
		c.QuietRounds = 2
		c.RoundSize = 4
		c.MaxAttempts = 400
	})
	a, logs := newApp(t, cfg)

	// --- Act ---
	rep, err := a.Run(context.Background(), cfg)

	// --- Assert ---
	require.NoError(t, err)
	assert.True(t, rep.Converged)
	assert.Less(t, rep.Attempts, 400)
	assert.Contains(t, logs.String(), "Generation converged.")
}

func TestRun_GenTimeoutStopsCleanly(t *testing.T) {
	t.Parallel()
	cfg := newConfig(t, "zlib", func(c *app.Config) { c.GenTimeout = time.Nanosecond })
	a, logs := newApp(t, cfg)

	rep, err := a.Run(context.Background(), cfg)

	require.NoError(t, err)
	assert.True(t, rep.TimedOut)
	assert.Contains(t, logs.String(), "Generation timeout reached")
}

func TestRun_UnknownLibrary(t *testing.T) {
	t.Parallel()
	cfg := newConfig(t, "nope")
	a, _ := newApp(t, cfg)

	_, err := a.Run(context.Background(), cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown library "nope"`)
}

func TestNewApp_UnreadableDescriptorIsDescriptorError(t *testing.T) {
	t.Parallel()
	cfg := app.DefaultConfig()
	cfg.Library = "zlib"
	cfg.Descriptors = []string{filepath.Join(t.TempDir(), "missing.hcl")}

	_, err := app.NewApp(&testutil.SafeBuffer{}, &cfg, hcl.NewLoader())

	var de *catalogue.DescriptorError
	require.True(t, errors.As(err, &de), "got %v", err)
}

func TestVerifyAndMinimize(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	cfg := newConfig(t, "sqlite3", func(c *app.Config) { c.Count = 4 })
	a, _ := newApp(t, cfg)
	_, err := a.Run(context.Background(), cfg)
	require.NoError(t, err)
	files := seedFiles(t, cfg.OutDir, "sqlite3")
	require.Len(t, files, 4)

	broken := filepath.Join(t.TempDir(), "broken.cc")
	src, err := os.ReadFile(files[0])
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(broken, src[:len(src)/2], 0o644))

	// --- Act ---
	results, err := a.Verify(context.Background(), append(files, broken))
	require.NoError(t, err)
	out := t.TempDir()
	res, minErr := a.Minimize(context.Background(), cfg.OutDir, out)

	// --- Assert ---
	require.Len(t, results, 5)
	for _, r := range results[:4] {
		assert.NoError(t, r.Err, r.Path)
		assert.Equal(t, "sqlite3", r.Library)
		assert.Positive(t, r.Steps)
	}
	assert.Error(t, results[4].Err)

	require.NoError(t, minErr)
	assert.Equal(t, 4, res.Seeds)
	assert.NotEmpty(t, res.Kept)
	assert.Len(t, seedFiles(t, out, "sqlite3"), len(res.Kept))
}

func TestLibraries_ListsBuiltins(t *testing.T) {
	t.Parallel()
	cfg := app.DefaultConfig()
	a, err := app.NewApp(&testutil.SafeBuffer{}, &cfg, hcl.NewLoader())
	require.NoError(t, err)

	var names []string
	for _, lib := range a.Libraries() {
		require.NoError(t, lib.Err)
		assert.Positive(t, lib.Functions)
		assert.NotEmpty(t, lib.Critical)
		names = append(names, lib.Name)
	}
	assert.Equal(t, []string{"cJSON", "lcms", "libpcap", "libpng", "re2", "sqlite3", "zlib"}, names)
}
