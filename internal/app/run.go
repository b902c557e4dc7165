package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/vk/seedgrid/internal/callgraph"
	"github.com/vk/seedgrid/internal/ctxlog"
	"github.com/vk/seedgrid/internal/curator"
	"github.com/vk/seedgrid/internal/executor"
	"github.com/vk/seedgrid/internal/feedback"
	"github.com/vk/seedgrid/internal/sandbox"
	"github.com/vk/seedgrid/internal/scorer"
	"github.com/vk/seedgrid/internal/sequence"
	"github.com/vk/seedgrid/internal/store"
	"github.com/vk/seedgrid/internal/synth"
)

// Report summarises a generation run.
type Report struct {
	RunID      string                 `json:"run_id"`
	Library    string                 `json:"library"`
	Attempts   int                    `json:"attempts"`
	Accepted   int                    `json:"accepted"`
	Rejected   map[curator.Reason]int `json:"rejected"`
	Degraded   int                    `json:"degraded"`
	Unmeasured int                    `json:"unmeasured"`
	Rounds     int                    `json:"rounds"`
	Triples    int                    `json:"triples"`
	Branches   int                    `json:"branches"`
	// Coverage is the union of branches reached by the corpus, by function.
	Coverage  map[string][]int `json:"coverage,omitempty"`
	LastID    int64            `json:"last_id"`
	Converged bool             `json:"converged"`
	TimedOut  bool             `json:"timed_out"`
}

// progress is the report of a run in flight, shared by the workers and
// the status server.
type progress struct {
	mu sync.Mutex
	r  Report
}

func (p *progress) snapshot() Report {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := p.r
	r.Rejected = make(map[curator.Reason]int, len(p.r.Rejected))
	for k, v := range p.r.Rejected {
		r.Rejected[k] = v
	}
	r.Coverage = maps.Clone(p.r.Coverage)
	return r
}

// Run generates seeds for cfg.Library into cfg.OutDir until cfg.Count
// seeds are accepted, generation converges, the attempt budget is spent
// or cfg.GenTimeout passes. The report is returned even on error.
//
// Errors: a *catalogue.DescriptorError when the library is unusable, a
// *store.WriteError when the corpus cannot be written, and an error
// wrapping synth.ErrSynthesisExhausted when every candidate degraded.
func (a *App) Run(ctx context.Context, cfg *Config) (rep *Report, err error) {
	ctx = ctxlog.With(ctxlog.WithLogger(ctx, a.logger), "library", cfg.Library)
	logger := ctxlog.FromContext(ctx)
	logger.Debug("App.Run method started.")

	prog := &progress{r: Report{Library: cfg.Library, Rejected: map[curator.Reason]int{}}}
	defer func() {
		r := prog.snapshot()
		rep = &r
	}()

	cat, err := a.registry.Catalogue(cfg.Library)
	if err != nil {
		return nil, err
	}
	tmpl, err := sequence.ParseTemplate(cfg.Template)
	if err != nil {
		return nil, err
	}
	mode, err := scorer.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}

	st, err := a.openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			err = errors.Join(err, &store.WriteError{Op: "close", Path: st.Dir(), Err: cerr})
		}
	}()
	prog.r.RunID = st.RunID()

	maxID, err := st.Index().MaxID(ctx)
	if err != nil {
		return nil, err
	}
	ids := curator.NewIDGenerator(maxID)
	cur := curator.New(a.registry, st, ids, curator.WithQuota(cfg.Quota))

	var scorerOpts []scorer.Option
	if len(cfg.ExecCmd) > 0 {
		runner := &sandbox.Runner{Timeout: cfg.Timeout, MemoryLimitMB: cfg.MemoryLimitMB}
		scorerOpts = append(scorerOpts, scorer.WithDriver(runner, cfg.ExecCmd...))
	} else if mode == scorer.ModeExecuted {
		logger.Warn("Executed scoring without exec_cmd; every seed will be unmeasured.")
	}
	sc := scorer.New(cat, scorerOpts...)

	obs := feedback.NewObserver(cfg.NumNewTriples, cfg.QuietRounds)
	if err := preload(obs, cfg.OutDir, cat.Library()); err != nil {
		return nil, err
	}
	sched := feedback.NewSchedule(cat, cfg.Weights)

	if cfg.StatusPort > 0 {
		srv := a.startStatusServer(ctx, cfg.StatusPort, prog.snapshot)
		defer a.closeStatusServer(ctx, srv)
	}

	genCtx := ctx
	if cfg.GenTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, cfg.GenTimeout)
		defer cancel()
	}

	var syn *synth.Synthesizer
	handle := func(ctx context.Context, seed int64) error {
		seq, err := syn.Synthesize(ctx, tmpl, seed)
		switch {
		case errors.Is(err, synth.ErrSynthesisExhausted):
			prog.mu.Lock()
			prog.r.Degraded++
			prog.mu.Unlock()
			sched.Record(seq, feedback.Discovery{})
			return nil
		case err != nil:
			return err
		}

		rec, err := sc.Score(ctx, seq, mode)
		var serr *scorer.ScoringError
		var crash *sandbox.ExecutionCrash
		switch {
		case errors.As(err, &serr), errors.As(err, &crash):
		case err != nil:
			return err
		}

		prog.mu.Lock()
		defer prog.mu.Unlock()
		if prog.r.Accepted >= cfg.Count {
			return nil
		}
		d, err := cur.Submit(ctx, seq, rec)
		if err != nil {
			return err
		}
		var disc feedback.Discovery
		if d.Accepted {
			prog.r.Accepted++
			if rec.Unmeasured {
				prog.r.Unmeasured++
			}
			disc = obs.Observe(d.Triples, rec.UniqueBranches)
			if !disc.Empty() {
				logger.Debug("Seed added coverage.", "id", d.ID, "new_triples", len(disc.Triples), "functions", len(disc.Branches))
			}
		} else {
			prog.r.Rejected[d.Reason]++
		}
		sched.Record(seq, disc)
		return nil
	}

	logger.Info("Generation started.", "count", cfg.Count, "template", tmpl.String(), "mode", mode.String(), "workers", cfg.WorkerCount, "run_id", st.RunID())
	next := cfg.Seed
	for {
		snap := prog.snapshot()
		if snap.Accepted >= cfg.Count {
			break
		}
		if snap.Attempts >= cfg.MaxAttempts {
			logger.Warn("Attempt budget spent before reaching the requested count.", "attempts", snap.Attempts, "accepted", snap.Accepted)
			break
		}

		n := min(cfg.RoundSize, cfg.MaxAttempts-snap.Attempts)
		seeds := make([]int64, n)
		for i := range seeds {
			seeds[i] = next
			next++
		}
		prog.mu.Lock()
		prog.r.Attempts += n
		prog.mu.Unlock()

		syn = synth.New(cat, synth.WithWeights(sched.Weights()))
		if err := executor.New(cfg.WorkerCount, handle).Execute(genCtx, seeds); err != nil {
			if genCtx.Err() != nil && ctx.Err() == nil {
				prog.mu.Lock()
				prog.r.TimedOut = true
				prog.mu.Unlock()
				logger.Info("Generation timeout reached, stopping.", "timeout", cfg.GenTimeout)
				break
			}
			return nil, fmt.Errorf("generation failed: %w", err)
		}

		res := obs.EndRound()
		coverage := obs.Coverage()
		prog.mu.Lock()
		prog.r.Rounds = res.Round
		prog.r.Triples = len(obs.Triples())
		prog.r.Coverage = coverage
		prog.r.Branches = 0
		for _, branchIDs := range coverage {
			prog.r.Branches += len(branchIDs)
		}
		prog.mu.Unlock()
		logger.Info("Round finished.", "round", res.Round, "new_triples", res.NewTriples, "accepted", res.Accepted, "quiet_rounds", res.QuietRounds, "stuck", res.Stuck)
		if res.Converged {
			prog.mu.Lock()
			prog.r.Converged = true
			prog.mu.Unlock()
			logger.Info("Generation converged.", "quiet_rounds", res.QuietRounds)
			break
		}
	}

	prog.mu.Lock()
	prog.r.LastID = ids.Last()
	prog.mu.Unlock()
	final := prog.snapshot()
	logger.Info("Generation finished.", "accepted", final.Accepted, "attempts", final.Attempts, "degraded", final.Degraded, "rounds", final.Rounds, "last_id", final.LastID)
	if final.Accepted == 0 && final.Attempts > 0 && final.Degraded == final.Attempts {
		return nil, fmt.Errorf("%w: all %d candidates for %s degraded", synth.ErrSynthesisExhausted, final.Attempts, cfg.Library)
	}
	return nil, nil
}

func (a *App) openStore(ctx context.Context, cfg *Config) (*store.Store, error) {
	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return nil, &store.WriteError{Op: "mkdir", Path: cfg.OutDir, Err: err}
	}
	var idx store.Index = store.NewMemoryIndex()
	if cfg.Index == IndexSQLite {
		sqlite, err := store.OpenSQLiteIndex(ctx, filepath.Join(cfg.OutDir, IndexFile))
		if err != nil {
			return nil, &store.WriteError{Op: "open index", Path: cfg.OutDir, Err: err}
		}
		idx = sqlite
	}
	st, err := store.Open(ctx, cfg.OutDir, idx)
	if err != nil {
		idx.Close()
		return nil, err
	}
	return st, nil
}

// preload seeds the observer with what the existing corpus already covers.
func preload(obs *feedback.Observer, dir, library string) error {
	entries, err := store.Accepted(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Library != library {
			continue
		}
		var triples []callgraph.Triple
		for _, s := range e.Triples {
			t, err := callgraph.ParseTriple(s)
			if err != nil {
				return fmt.Errorf("seed %d: %w", e.ID, err)
			}
			triples = append(triples, t)
		}
		var q struct {
			UniqueBranches map[string][]int `json:"unique_branches"`
		}
		if len(e.Quality) > 0 {
			if err := json.Unmarshal(e.Quality, &q); err != nil {
				return fmt.Errorf("seed %d: malformed quality: %w", e.ID, err)
			}
		}
		obs.Preload(triples, q.UniqueBranches)
	}
	return nil
}
