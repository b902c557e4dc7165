package modules_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/seedgrid/internal/catalogue"
	"github.com/vk/seedgrid/internal/testutil"
	"github.com/vk/seedgrid/modules"
)

func TestAll_EveryBuiltinIngests(t *testing.T) {
	t.Parallel()

	reg := testutil.Registry(t)

	require.Len(t, reg.Libraries(), len(modules.All()))
	for _, lib := range reg.Libraries() {
		cat, err := reg.Catalogue(lib)
		require.NoError(t, err, "library %s", lib)
		assert.NotEmpty(t, cat.Includes(), "library %s", lib)
		assert.NotEmpty(t, cat.Critical(), "library %s", lib)

		// Every phase has at least one function, so the default template
		// can always be filled.
		for p := catalogue.PhaseInit; p <= catalogue.PhaseCleanup; p++ {
			found := false
			for _, fn := range cat.Functions() {
				if fn.AllowedIn(p) {
					found = true
					break
				}
			}
			assert.True(t, found, "library %s has no %s function", lib, p)
		}
	}
}

func TestAll_OwnedKindsHaveDestructors(t *testing.T) {
	t.Parallel()

	reg := testutil.Registry(t)
	for _, lib := range reg.Libraries() {
		cat, err := reg.Catalogue(lib)
		require.NoError(t, err)
		for _, k := range cat.Kinds() {
			assert.NotEmpty(t, cat.Destructors(k.Kind), "library %s kind %s", lib, k.Name)
		}
	}
}
