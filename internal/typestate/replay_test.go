package typestate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/seedgrid/internal/catalogue"
	"github.com/vk/seedgrid/internal/sequence"
)

func zlibSequence() *sequence.Sequence {
	lit := sequence.LiteralArg
	h := sequence.HandleArg
	return &sequence.Sequence{
		Library: "zlib",
		Steps: []sequence.CallStep{
			{Function: "deflateInit_", Phase: catalogue.PhaseInit,
				Args:     []sequence.Arg{h(1), lit("Z_DEFAULT_COMPRESSION"), lit("ZLIB_VERSION"), lit("(int)sizeof(z_stream)")},
				Produces: []int{1}},
			{Function: "deflate", Phase: catalogue.PhaseOperate, Args: []sequence.Arg{h(1), lit("Z_FINISH")}},
			{Function: "deflateEnd", Phase: catalogue.PhaseCleanup, Args: []sequence.Arg{h(1)}},
		},
	}
}

func TestReplay_AcceptsValidSequence(t *testing.T) {
	t.Parallel()
	require.NoError(t, Replay(zlibCatalogue(t), zlibSequence()))
}

func TestReplay_Rejections(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name     string
		mutate   func(s *sequence.Sequence)
		wantKind Kind
		wantErr  string
	}{
		{
			name:     "missing destructor",
			mutate:   func(s *sequence.Sequence) { s.Steps = s.Steps[:2] },
			wantKind: UnfreedResource,
		},
		{
			name:     "borrow before creation",
			mutate:   func(s *sequence.Sequence) { s.Steps[1].Args[0] = sequence.HandleArg(2) },
			wantKind: DanglingBorrow,
		},
		{
			name: "double destructor",
			mutate: func(s *sequence.Sequence) {
				s.Steps = append(s.Steps, s.Steps[2])
			},
			wantKind: DoubleFree,
		},
		{
			name:     "phase goes backwards",
			mutate:   func(s *sequence.Sequence) { s.Steps[1].Phase = catalogue.PhaseInit },
			wantKind: PhaseOrderViolation,
		},
		{
			name:     "literal where a handle is expected",
			mutate:   func(s *sequence.Sequence) { s.Steps[1].Args[0] = sequence.LiteralArg("NULL") },
			wantKind: TypeMismatch,
		},
		{
			name:    "produces mismatch",
			mutate:  func(s *sequence.Sequence) { s.Steps[0].Produces = nil },
			wantErr: "produces 1 handles, step records 0",
		},
		{
			name:    "unknown function",
			mutate:  func(s *sequence.Sequence) { s.Steps[1].Function = "inflate" },
			wantErr: `has no function "inflate"`,
		},
		{
			name:    "argument count",
			mutate:  func(s *sequence.Sequence) { s.Steps[1].Args = s.Steps[1].Args[:1] },
			wantErr: "deflate takes 2 arguments, step has 1",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			seq := zlibSequence()
			tc.mutate(seq)

			err := Replay(zlibCatalogue(t), seq)

			require.Error(t, err)
			if tc.wantKind != 0 {
				requireViolation(t, err, tc.wantKind)
			}
			if tc.wantErr != "" {
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}
