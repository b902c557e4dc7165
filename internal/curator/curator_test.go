package curator_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/seedgrid/internal/catalogue"
	"github.com/vk/seedgrid/internal/curator"
	"github.com/vk/seedgrid/internal/registry"
	"github.com/vk/seedgrid/internal/scorer"
	"github.com/vk/seedgrid/internal/sequence"
	"github.com/vk/seedgrid/internal/store"
	"github.com/vk/seedgrid/internal/testutil"
)

var (
	h   = sequence.HandleArg
	lit = sequence.LiteralArg
)

// buildObject builds, prints and deletes a cJSON object.
func buildObject(key string) *sequence.Sequence {
	return &sequence.Sequence{
		Library: "cJSON",
		Seed:    1,
		Steps: []sequence.CallStep{
			{Function: "cJSON_CreateObject", Phase: catalogue.PhaseInit, Produces: []int{1}},
			{Function: "cJSON_CreateString", Phase: catalogue.PhaseConfigure, Args: []sequence.Arg{lit(`"alpha"`)}, Produces: []int{2}},
			{Function: "cJSON_AddItemToObject", Phase: catalogue.PhaseConfigure, Args: []sequence.Arg{h(1), lit(key), h(2)}},
			{Function: "cJSON_Print", Phase: catalogue.PhaseOperate, Args: []sequence.Arg{h(1)}, Produces: []int{3}},
			{Function: "cJSON_free", Phase: catalogue.PhaseCleanup, Args: []sequence.Arg{h(3)}},
			{Function: "cJSON_Delete", Phase: catalogue.PhaseCleanup, Args: []sequence.Arg{h(1)}},
		},
	}
}

// printEmpty prints and deletes an empty object.
func printEmpty() *sequence.Sequence {
	return &sequence.Sequence{
		Library: "cJSON",
		Seed:    2,
		Steps: []sequence.CallStep{
			{Function: "cJSON_CreateObject", Phase: catalogue.PhaseInit, Produces: []int{1}},
			{Function: "cJSON_Print", Phase: catalogue.PhaseOperate, Args: []sequence.Arg{h(1)}, Produces: []int{2}},
			{Function: "cJSON_free", Phase: catalogue.PhaseCleanup, Args: []sequence.Arg{h(2)}},
			{Function: "cJSON_Delete", Phase: catalogue.PhaseCleanup, Args: []sequence.Arg{h(1)}},
		},
	}
}

// createDelete has no API triple.
func createDelete() *sequence.Sequence {
	return &sequence.Sequence{
		Library: "cJSON",
		Seed:    3,
		Steps: []sequence.CallStep{
			{Function: "cJSON_CreateObject", Phase: catalogue.PhaseInit, Produces: []int{1}},
			{Function: "cJSON_Delete", Phase: catalogue.PhaseCleanup, Args: []sequence.Arg{h(1)}},
		},
	}
}

type fixture struct {
	ctx   context.Context
	logs  *testutil.SafeBuffer
	reg   *registry.Registry
	dir   string
	store *store.Store
	score func(*sequence.Sequence) *scorer.QualityRecord
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx, logs := testutil.Context(t)
	reg := testutil.Registry(t)
	cat, err := reg.Catalogue("cJSON")
	require.NoError(t, err)
	dir := t.TempDir()
	st, err := store.Open(ctx, dir, store.NewMemoryIndex())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	sc := scorer.New(cat)
	return &fixture{
		ctx: ctx, logs: logs, reg: reg, dir: dir, store: st,
		score: func(seq *sequence.Sequence) *scorer.QualityRecord {
			rec, err := sc.Score(ctx, seq, scorer.ModeStatic)
			require.NoError(t, err)
			return rec
		},
	}
}

func TestSubmit_AcceptsAndPublishes(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	f := newFixture(t)
	c := curator.New(f.reg, f.store, curator.NewIDGenerator(41))
	seq := buildObject(`"key"`)

	// --- Act ---
	d, err := c.Submit(f.ctx, seq, f.score(seq))

	// --- Assert ---
	require.NoError(t, err)
	assert.True(t, d.Accepted)
	assert.Equal(t, int64(42), d.ID)
	assert.Equal(t, "cJSON/id_000042.cc", d.Path)
	assert.Zero(t, seq.ID, "the submitted sequence is not modified")

	src, err := os.ReadFile(filepath.Join(f.dir, "cJSON", "id_000042.cc"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(src), "=== cJSON/id_000042.cc ===\n"))
	assert.Contains(t, string(src), "//<ID> 42\n")
	assert.Contains(t, string(src), "//<score> 67, nr_unique_branch: 6\n")
	assert.Contains(t, string(src), `//<Quality> {"density":0.6667,`)

	accepted, err := store.Accepted(f.dir)
	require.NoError(t, err)
	require.Len(t, accepted, 1)
	assert.Equal(t, "static", accepted[0].Mode)
	assert.Equal(t, []string{
		"cJSON_CreateObject->cJSON_CreateString->cJSON_AddItemToObject",
		"cJSON_CreateString->cJSON_AddItemToObject->cJSON_Print",
		"cJSON_AddItemToObject->cJSON_Print->cJSON_free",
		"cJSON_Print->cJSON_free->cJSON_Delete",
	}, accepted[0].Triples)
	assert.Contains(t, f.logs.String(), "Seed accepted.")
}

func TestSubmit_Rejections(t *testing.T) {
	t.Parallel()

	leaky := buildObject(`"key"`)
	leaky.Steps = leaky.Steps[:len(leaky.Steps)-1]

	testCases := []struct {
		name   string
		quota  int
		first  *sequence.Sequence
		second *sequence.Sequence
		crash  string
		reason curator.Reason
	}{
		{name: "structural duplicate", first: buildObject(`"key"`), second: buildObject(`"other"`), reason: curator.ReasonDuplicate},
		{name: "quota reached", quota: 1, first: buildObject(`"key"`), second: printEmpty(), reason: curator.ReasonQuota},
		{name: "leak", second: leaky, reason: curator.ReasonLeak},
		{name: "crash", second: printEmpty(), crash: "signal SIGSEGV", reason: curator.ReasonCrash},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			// --- Arrange ---
			f := newFixture(t)
			c := curator.New(f.reg, f.store, curator.NewIDGenerator(0), curator.WithQuota(tc.quota))
			var firstID int64
			if tc.first != nil {
				d, err := c.Submit(f.ctx, tc.first, f.score(tc.first))
				require.NoError(t, err)
				require.True(t, d.Accepted)
				firstID = d.ID
			}
			rec := f.score(tc.second)
			rec.Crash = tc.crash

			// --- Act ---
			d, err := c.Submit(f.ctx, tc.second, rec)

			// --- Assert ---
			require.NoError(t, err)
			assert.False(t, d.Accepted)
			assert.Equal(t, tc.reason, d.Reason)
			if tc.reason == curator.ReasonDuplicate {
				assert.Equal(t, firstID, d.DuplicateOf)
			}

			entries, err := store.ReadLog(f.dir)
			require.NoError(t, err)
			last := entries[len(entries)-1]
			assert.Equal(t, store.StatusRejected, last.Status)
			assert.Equal(t, string(tc.reason), last.Reason)
			assert.Contains(t, f.logs.String(), "Candidate rejected.")
		})
	}
}

func TestSubmit_LeakDetailNamesViolation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	c := curator.New(f.reg, f.store, curator.NewIDGenerator(0))
	seq := buildObject(`"key"`)
	seq.Steps = seq.Steps[:len(seq.Steps)-1]

	d, err := c.Submit(f.ctx, seq, nil)

	require.NoError(t, err)
	assert.Equal(t, curator.ReasonLeak, d.Reason)
	assert.NotEmpty(t, d.Detail)
	assert.Contains(t, d.String(), "rejected: leak")
}

func TestSubmit_UnscoredUsesPlaceholderHeader(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	c := curator.New(f.reg, f.store, curator.NewIDGenerator(0))

	d, err := c.Submit(f.ctx, printEmpty(), nil)

	require.NoError(t, err)
	require.True(t, d.Accepted)
	src, err := os.ReadFile(filepath.Join(f.dir, d.Path))
	require.NoError(t, err)
	assert.Contains(t, string(src), "//<score> 0, nr_unique_branch: 0\n")
}

func TestSubmit_UnknownLibrary(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	c := curator.New(f.reg, f.store, curator.NewIDGenerator(0))

	_, err := c.Submit(f.ctx, &sequence.Sequence{Library: "nope"}, nil)

	require.Error(t, err)
}

func TestIDGenerator_ResumesAfterStart(t *testing.T) {
	t.Parallel()
	g := curator.NewIDGenerator(9)
	assert.Equal(t, int64(10), g.Next())
	assert.Equal(t, int64(11), g.Next())
	assert.Equal(t, int64(11), g.Last())
}

func TestMinimize_KeepsTripleCover(t *testing.T) {
	t.Parallel()
	// --- Arrange ---
	f := newFixture(t)
	c := curator.New(f.reg, f.store, curator.NewIDGenerator(0))
	for _, seq := range []*sequence.Sequence{createDelete(), printEmpty(), buildObject(`"key"`)} {
		d, err := c.Submit(f.ctx, seq, f.score(seq))
		require.NoError(t, err)
		require.True(t, d.Accepted)
	}
	out := t.TempDir()

	// --- Act ---
	res, err := c.Minimize(f.ctx, out)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, 3, res.Seeds)
	assert.Equal(t, 5, res.Triples)
	assert.Equal(t, []int64{3, 2}, res.Kept)

	kept, err := store.Accepted(out)
	require.NoError(t, err)
	require.Len(t, kept, 2)
	_, err = os.Stat(filepath.Join(out, "cJSON", "id_000001.cc"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(out, "cJSON", "id_000003.cc"))
	assert.NoError(t, err)
}
