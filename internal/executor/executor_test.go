package executor_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/seedgrid/internal/executor"
	"github.com/vk/seedgrid/internal/testutil"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func jobs(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestExecute_RunsEveryJob(t *testing.T) {
	// --- Arrange ---
	ctx, _ := testutil.Context(t)
	var mu sync.Mutex
	seen := make(map[int]bool)
	e := executor.New(4, func(_ context.Context, job int) error {
		mu.Lock()
		defer mu.Unlock()
		seen[job] = true
		return nil
	})

	// --- Act ---
	err := e.Execute(ctx, jobs(50))

	// --- Assert ---
	require.NoError(t, err)
	assert.Len(t, seen, 50)
}

func TestExecute_RunsConcurrently(t *testing.T) {
	// --- Arrange ---
	ctx, _ := testutil.Context(t)
	var running, peak atomic.Int32
	e := executor.New(3, func(_ context.Context, _ int) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		return nil
	})

	// --- Act ---
	require.NoError(t, e.Execute(ctx, jobs(9)))

	// --- Assert ---
	assert.Equal(t, int32(3), peak.Load())
}

func TestExecute_FirstErrorStopsTheBatch(t *testing.T) {
	// --- Arrange ---
	ctx, logs := testutil.Context(t)
	boom := errors.New("corpus write failed")
	var ran atomic.Int32
	e := executor.New(2, func(ctx context.Context, job int) error {
		ran.Add(1)
		if job == 3 {
			return boom
		}
		select {
		case <-ctx.Done():
		case <-time.After(5 * time.Millisecond):
		}
		return nil
	})

	// --- Act ---
	err := e.Execute(ctx, jobs(1000))

	// --- Assert ---
	require.ErrorIs(t, err, boom)
	assert.Less(t, ran.Load(), int32(1000))
	assert.Contains(t, logs.String(), "Job failed, stopping the batch.")
}

func TestExecute_CancelledContext(t *testing.T) {
	ctx, _ := testutil.Context(t)
	ctx, cancel := context.WithCancel(ctx)
	cancel()
	e := executor.New(2, func(context.Context, int) error { return nil })

	err := e.Execute(ctx, jobs(10))

	require.ErrorIs(t, err, context.Canceled)
}

func TestExecute_NoJobs(t *testing.T) {
	ctx, _ := testutil.Context(t)
	e := executor.New(0, func(context.Context, int) error {
		t.Fatal("no job expected")
		return nil
	})

	require.NoError(t, e.Execute(ctx, nil))
}
