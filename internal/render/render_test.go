package render_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/seedgrid/internal/catalogue"
	"github.com/vk/seedgrid/internal/render"
	"github.com/vk/seedgrid/internal/sequence"
	"github.com/vk/seedgrid/internal/synth"
	"github.com/vk/seedgrid/internal/testutil"
)

func cjsonSequence() *sequence.Sequence {
	h, lit := sequence.HandleArg, sequence.LiteralArg
	return &sequence.Sequence{
		ID:       7,
		Library:  "cJSON",
		Template: sequence.DefaultTemplate,
		Steps: []sequence.CallStep{
			{Function: "cJSON_CreateObject", Phase: catalogue.PhaseInit, Produces: []int{1}},
			{Function: "cJSON_CreateString", Phase: catalogue.PhaseConfigure, Args: []sequence.Arg{lit(`"alpha"`)}, Produces: []int{2}},
			{Function: "cJSON_AddItemToObject", Phase: catalogue.PhaseConfigure, Args: []sequence.Arg{h(1), lit(`"key"`), h(2)}},
			{Function: "cJSON_Print", Phase: catalogue.PhaseOperate, Args: []sequence.Arg{h(1)}, Produces: []int{3}},
			{Function: "cJSON_free", Phase: catalogue.PhaseCleanup, Args: []sequence.Arg{h(3)}},
			{Function: "cJSON_Delete", Phase: catalogue.PhaseCleanup, Args: []sequence.Arg{h(1)}},
		},
	}
}

const cjsonSeed = `=== cJSON/id_000007.cc ===
#include <cJSON.h>
#include <string.h>
#include <stdlib.h>

//<ID> 7
//<Prompt> ["cJSON_CreateObject","cJSON_CreateString","cJSON_AddItemToObject","cJSON_Print","cJSON_free","cJSON_Delete"]
/*<Combination>: [cJSON *cJSON_CreateObject(void), cJSON *cJSON_CreateString(const char *string), cJSON_bool cJSON_AddItemToObject(cJSON *object, const char *string, cJSON *item), char *cJSON_Print(const cJSON *item), void cJSON_free(void *object), void cJSON_Delete(cJSON *item)] */
//<score> 0, nr_unique_branch: 0
//<Quality> {"density":0,"unique_branches":{},"library_calls":[],"critical_calls":[],"visited":0}
int test_cJSON_api_sequence() {
    // step 1: Init
    cJSON *h1 = cJSON_CreateObject();

    // step 2: Configure
    cJSON *h2 = cJSON_CreateString("alpha");
    // step 3: Configure
    cJSON_AddItemToObject(h1, "key", h2);

    // step 4: Operate
    char *h3 = cJSON_Print(h1);

    // step 5: Cleanup
    cJSON_free(h3);
    // step 6: Cleanup
    cJSON_Delete(h1);

    // API sequence test completed successfully
    return 66;
}
`

func TestRender_PlaceholderHeader(t *testing.T) {
	t.Parallel()
	cat := testutil.Catalogue(t, "cJSON")

	out, err := render.Render(cat, cjsonSequence(), render.Header{})

	require.NoError(t, err)
	if diff := cmp.Diff(cjsonSeed, string(out)); diff != "" {
		t.Errorf("rendered seed mismatch (-want +got):\n%s", diff)
	}
}

func TestRender_ScoredHeader(t *testing.T) {
	t.Parallel()
	cat := testutil.Catalogue(t, "cJSON")

	out, err := render.Render(cat, cjsonSequence(), render.Header{
		Path:           "custom/seed.cc",
		Score:          55,
		UniqueBranches: 4,
		Quality:        []byte(`{"density":0.55,"visited":1}`),
	})

	require.NoError(t, err)
	text := string(out)
	assert.True(t, strings.HasPrefix(text, "=== custom/seed.cc ===\n"))
	assert.Contains(t, text, "\n//<score> 55, nr_unique_branch: 4\n")
	assert.Contains(t, text, "\n//<Quality> {\"density\":0.55,\"visited\":1}\n")
}

func TestRender_StackHandlesPassedByAddress(t *testing.T) {
	t.Parallel()
	cat := testutil.Catalogue(t, "zlib")
	h, lit := sequence.HandleArg, sequence.LiteralArg
	seq := &sequence.Sequence{
		ID:      3,
		Library: "zlib",
		Steps: []sequence.CallStep{
			{Function: "deflateInit_", Phase: catalogue.PhaseInit,
				Args:     []sequence.Arg{h(1), lit("Z_BEST_SPEED"), lit("ZLIB_VERSION"), lit("(int)sizeof(z_stream)")},
				Produces: []int{1}},
			{Function: "deflateEnd", Phase: catalogue.PhaseCleanup, Args: []sequence.Arg{h(1)}},
		},
	}

	out, err := render.Render(cat, seq, render.Header{})

	require.NoError(t, err)
	text := string(out)
	assert.Contains(t, text, "    z_stream h1;\n    memset(&h1, 0, sizeof(h1));\n    deflateInit_(&h1, Z_BEST_SPEED, ZLIB_VERSION, (int)sizeof(z_stream));\n")
	assert.Contains(t, text, "    deflateEnd(&h1);\n")
}

func TestRender_PointerOutParamsDeclaredNull(t *testing.T) {
	t.Parallel()
	cat := testutil.Catalogue(t, "sqlite3")
	ctx, _ := testutil.Context(t)

	// Any sequence opening a connection through an out parameter will do.
	for seed := int64(1); seed < 50; seed++ {
		seq, err := synth.New(cat).Synthesize(ctx, sequence.DefaultTemplate, seed)
		if err != nil || seq.Steps[0].Function != "sqlite3_open" {
			continue
		}
		out, err := render.Render(cat, seq, render.Header{})
		require.NoError(t, err)
		assert.Contains(t, string(out), "sqlite3 *h1 = NULL;\n")
		assert.Contains(t, string(out), ", &h1);\n")
		return
	}
	t.Skip("no seed opened with sqlite3_open")
}

func TestRender_RejectsForeignCatalogue(t *testing.T) {
	t.Parallel()

	_, err := render.Render(testutil.Catalogue(t, "zlib"), cjsonSequence(), render.Header{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), `sequence of library "cJSON"`)
}

func TestParse_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx, _ := testutil.Context(t)
	reg := testutil.Registry(t)

	ignore := cmpopts.IgnoreFields(sequence.Sequence{}, "Seed", "Degraded", "Reason", "Template")
	for _, lib := range reg.Libraries() {
		cat, err := reg.Catalogue(lib)
		require.NoError(t, err)
		for seed := int64(1); seed <= 10; seed++ {
			seq, err := synth.New(cat).Synthesize(ctx, sequence.DefaultTemplate, seed)
			if err != nil {
				continue
			}
			seq.ID = seed * 100

			text, err := render.Render(cat, seq, render.Header{Score: 12, UniqueBranches: 2})
			require.NoError(t, err)
			parsed, err := render.Parse(text, cat)
			require.NoError(t, err, "library %s seed %d:\n%s", lib, seed, text)

			if diff := cmp.Diff(seq, parsed.Sequence, ignore); diff != "" {
				t.Errorf("library %s seed %d round trip mismatch (-want +got):\n%s", lib, seed, diff)
			}
			assert.Equal(t, render.DefaultPath(lib, seq.ID), parsed.Path)
			assert.Equal(t, 12, parsed.Score)
			assert.Equal(t, 2, parsed.UniqueBranches)
			assert.Equal(t, seq.StructuralHash(), parsed.Sequence.StructuralHash())
		}
	}
}

func TestParse_RecoversHeader(t *testing.T) {
	t.Parallel()
	cat := testutil.Catalogue(t, "cJSON")

	seed, err := render.Parse([]byte(cjsonSeed), cat)

	require.NoError(t, err)
	assert.Equal(t, "cJSON/id_000007.cc", seed.Path)
	assert.Equal(t, int64(7), seed.Sequence.ID)
	assert.Equal(t, "cJSON", seed.Sequence.Library)
	assert.JSONEq(t, `{"density":0,"unique_branches":{},"library_calls":[],"critical_calls":[],"visited":0}`, string(seed.Quality))
	assert.Equal(t, 1, seed.Sequence.Template.Count(catalogue.PhaseInit))
	assert.Equal(t, 2, seed.Sequence.Template.Count(catalogue.PhaseCleanup))
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()
	cat := testutil.Catalogue(t, "cJSON")

	testCases := []struct {
		name    string
		text    string
		wantErr string
	}{
		{
			name:    "wrong library",
			text:    strings.Replace(cjsonSeed, "test_cJSON_api", "test_zlib_api", 1),
			wantErr: `seed targets library "zlib"`,
		},
		{
			name:    "unknown function",
			text:    strings.Replace(cjsonSeed, "cJSON_free(h3)", "cJSON_release(h3)", 1),
			wantErr: `library "cJSON" has no function "cJSON_release"`,
		},
		{
			name:    "arity",
			text:    strings.Replace(cjsonSeed, `cJSON_AddItemToObject(h1, "key", h2)`, `cJSON_AddItemToObject(h1, h2)`, 1),
			wantErr: "cJSON_AddItemToObject takes 3 arguments, call has 2",
		},
		{
			name:    "unassigned handle",
			text:    strings.Replace(cjsonSeed, "cJSON *h1 = cJSON_CreateObject();", "cJSON_CreateObject();", 1),
			wantErr: "returns a handle that is not assigned",
		},
		{
			name:    "missing id",
			text:    strings.Replace(cjsonSeed, "//<ID> 7\n", "", 1),
			wantErr: "missing //<ID> header",
		},
		{
			name:    "no function",
			text:    "=== a.cc ===\n//<ID> 1\n",
			wantErr: "no test_<library>_api_sequence function found",
		},
		{
			name:    "garbage statement",
			text:    strings.Replace(cjsonSeed, "cJSON_Delete(h1);", "if (h1) goto out", 1),
			wantErr: "unrecognised statement",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := render.Parse([]byte(tc.text), cat)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLibrary(t *testing.T) {
	t.Parallel()

	lib, err := render.Library([]byte(cjsonSeed))
	require.NoError(t, err)
	assert.Equal(t, "cJSON", lib)

	_, err = render.Library([]byte("=== a.cc ===\n"))
	require.Error(t, err)
}
