package callgraph

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seed = `=== zlib/id_000001.cc ===
#include <zlib.h>
#include <string.h>

//<ID> 1
int test_zlib_api_sequence() {
    // step 1: Init
    z_stream h1;
    memset(&h1, 0, sizeof(h1));
    deflateInit_(&h1, Z_BEST_SPEED, ZLIB_VERSION, (int)sizeof(z_stream));

    // step 2: Operate
    deflateBound(&h1, 100);
    deflate(&h1, Z_FINISH);

    // step 3: Cleanup
    deflateEnd(&h1);

    // API sequence test completed successfully
    return 66;
}
`

func TestCalls_SourceOrder(t *testing.T) {
	t.Parallel()

	calls, err := Calls(context.Background(), []byte(seed), nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"memset", "deflateInit_", "deflateBound", "deflate", "deflateEnd"}, calls)
}

func TestCalls_FiltersUnknown(t *testing.T) {
	t.Parallel()

	known := func(name string) bool { return strings.HasPrefix(name, "deflate") }
	calls, err := Calls(context.Background(), []byte(seed), known)

	require.NoError(t, err)
	assert.Equal(t, []string{"deflateInit_", "deflateBound", "deflate", "deflateEnd"}, calls)
}

func TestTriples(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		calls []string
		want  []Triple
	}{
		{name: "too short", calls: []string{"a", "b"}, want: nil},
		{name: "sliding", calls: []string{"a", "b", "c", "d"}, want: []Triple{{"a", "b", "c"}, {"b", "c", "d"}}},
		{name: "deduplicated", calls: []string{"a", "b", "a", "b", "a"}, want: []Triple{{"a", "b", "a"}, {"b", "a", "b"}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Triples(tc.calls))
		})
	}
}

func TestTriple_StringRoundTrip(t *testing.T) {
	t.Parallel()

	tr := Triple{"deflateInit_", "deflate", "deflateEnd"}
	got, err := ParseTriple(tr.String())

	require.NoError(t, err)
	assert.Equal(t, tr, got)
	assert.Equal(t, "deflateInit_->deflate->deflateEnd", tr.String())

	_, err = ParseTriple("a->b")
	assert.Error(t, err)
}
