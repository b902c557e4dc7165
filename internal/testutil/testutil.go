// Package testutil holds fixtures shared by the package tests: a context
// carrying a logger, a goroutine-safe log buffer and the catalogues of the
// built-in libraries.
package testutil

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/seedgrid/internal/catalogue"
	"github.com/vk/seedgrid/internal/ctxlog"
	"github.com/vk/seedgrid/internal/hcl"
	"github.com/vk/seedgrid/internal/registry"
	"github.com/vk/seedgrid/modules"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// Context returns a context carrying a debug-level text logger that writes
// into the returned buffer. Set SEEDGRID_TEST_LOGS=true to dump the buffer
// when the test finishes.
func Context(t *testing.T) (context.Context, *SafeBuffer) {
	t.Helper()

	buf := &SafeBuffer{}
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	t.Cleanup(func() {
		if os.Getenv("SEEDGRID_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), buf.String())
		}
	})
	return ctxlog.WithLogger(context.Background(), logger), buf
}

// Registry returns a registry with every built-in module registered and
// loaded.
func Registry(t *testing.T) *registry.Registry {
	t.Helper()

	ctx, _ := Context(t)
	reg := registry.New()
	for _, mod := range modules.All() {
		mod.Register(reg)
	}
	require.NoError(t, reg.Load(ctx, hcl.NewLoader()))
	require.NoError(t, reg.ValidateRegistry(ctx))
	return reg
}

// Catalogue returns the catalogue of a built-in library.
func Catalogue(t *testing.T, library string) *catalogue.Catalogue {
	t.Helper()

	cat, err := Registry(t).Catalogue(library)
	require.NoError(t, err)
	return cat
}
