package scorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/vk/seedgrid/internal/catalogue"
	"github.com/vk/seedgrid/internal/ctxlog"
	"github.com/vk/seedgrid/internal/render"
	"github.com/vk/seedgrid/internal/sandbox"
	"github.com/vk/seedgrid/internal/sequence"
)

// Option configures a Scorer.
type Option func(*Scorer)

// WithDriver configures executed scoring: cmd is the coverage driver and
// its leading arguments, run through runner.
func WithDriver(runner *sandbox.Runner, cmd ...string) Option {
	return func(s *Scorer) {
		s.runner = runner
		s.driver = slices.Clone(cmd)
	}
}

// WithWorkDir sets where executed runs write their seed and coverage
// files. The system temp dir is used otherwise.
func WithWorkDir(dir string) Option {
	return func(s *Scorer) { s.workDir = dir }
}

// Scorer scores sequences of one catalogue. It is safe for concurrent use.
type Scorer struct {
	cat     *catalogue.Catalogue
	runner  *sandbox.Runner
	driver  []string
	workDir string
}

// New returns a scorer for cat.
func New(cat *catalogue.Catalogue, opts ...Option) *Scorer {
	s := &Scorer{cat: cat}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score scores seq without modifying it. In executed mode a crash of the
// driver is returned as *sandbox.ExecutionCrash and a missing measurement
// as *ScoringError; the record is non-nil in both cases. A driver that
// exits with a plain failure status counts as a missing measurement.
func (s *Scorer) Score(ctx context.Context, seq *sequence.Sequence, mode Mode) (*QualityRecord, error) {
	if seq.Library != s.cat.Library() {
		return nil, fmt.Errorf("sequence of library %q scored with the %q catalogue", seq.Library, s.cat.Library())
	}
	switch mode {
	case ModeStatic:
		return s.static(seq)
	case ModeExecuted:
		return s.executed(ctx, seq)
	}
	return nil, fmt.Errorf("unknown scoring mode %v", mode)
}

// calls fills LibraryCalls and CriticalCalls and returns the distinct
// signatures used by seq.
func (s *Scorer) calls(seq *sequence.Sequence, rec *QualityRecord) ([]*catalogue.FunctionSignature, error) {
	names := seq.Functions()
	used := make([]*catalogue.FunctionSignature, 0, len(names))
	for _, name := range names {
		fn, err := s.cat.Lookup(name)
		if err != nil {
			return nil, err
		}
		used = append(used, fn)
		rec.LibraryCalls = append(rec.LibraryCalls, name)
		if fn.Critical {
			rec.CriticalCalls = append(rec.CriticalCalls, name)
		}
	}
	sort.Strings(rec.LibraryCalls)
	sort.Strings(rec.CriticalCalls)
	return used, nil
}

func totalBranches(used []*catalogue.FunctionSignature) int {
	n := 0
	for _, fn := range used {
		n += len(fn.Branches)
	}
	return n
}

func (s *Scorer) static(seq *sequence.Sequence) (*QualityRecord, error) {
	rec := newRecord(ModeStatic)
	used, err := s.calls(seq, rec)
	if err != nil {
		return nil, err
	}

	hit := make(map[string]map[int]bool)
	calls := make(map[string]int)
	seen := make(map[string]bool)
	for _, st := range seq.Steps {
		fn, _ := s.cat.Lookup(st.Function)
		calls[fn.Name]++
		for _, br := range fn.Branches {
			if reached(br, st, calls[fn.Name], seen) {
				if hit[fn.Name] == nil {
					hit[fn.Name] = make(map[int]bool)
				}
				hit[fn.Name][br.ID] = true
			}
		}
		seen[fn.Name] = true
	}

	hits := 0
	for name, ids := range hit {
		list := make([]int, 0, len(ids))
		for id := range ids {
			list = append(list, id)
		}
		sort.Ints(list)
		rec.UniqueBranches[name] = list
		hits += len(list)
	}
	rec.Density = roundDensity(hits, totalBranches(used))
	return rec, nil
}

// reached evaluates one branch condition at step st, the n-th call of its
// function, given the functions called before it.
func reached(br catalogue.Branch, st sequence.CallStep, n int, before map[string]bool) bool {
	if br.MinCalls > 0 && n < br.MinCalls {
		return false
	}
	if br.After != "" && !before[br.After] {
		return false
	}
	if br.Param >= 0 {
		if br.Param >= len(st.Args) || st.Args[br.Param].IsHandle() || st.Args[br.Param].Literal != br.Equals {
			return false
		}
	}
	return true
}

// coverage is the file written by the driver.
type coverage struct {
	Branches map[string][]int `json:"branches"`
}

func (s *Scorer) executed(ctx context.Context, seq *sequence.Sequence) (*QualityRecord, error) {
	logger := ctxlog.FromContext(ctx)
	rec := newRecord(ModeExecuted)
	used, err := s.calls(seq, rec)
	if err != nil {
		return nil, err
	}
	unmeasured := func(reason string, err error) (*QualityRecord, error) {
		rec.Unmeasured = true
		serr := &ScoringError{Reason: reason, Err: err}
		logger.Warn("Sequence left unmeasured.", "seed", seq.Seed, "error", serr)
		return rec, serr
	}

	if s.runner == nil || len(s.driver) == 0 {
		return unmeasured("no coverage driver configured", nil)
	}

	dir, err := os.MkdirTemp(s.workDir, "seedgrid-run-*")
	if err != nil {
		return unmeasured("cannot create work dir", err)
	}
	defer os.RemoveAll(dir)

	src, err := render.Render(s.cat, seq, render.Header{})
	if err != nil {
		return nil, err
	}
	srcPath := filepath.Join(dir, "seed.cc")
	covPath := filepath.Join(dir, "coverage.json")
	if err := os.WriteFile(srcPath, src, 0o600); err != nil {
		return unmeasured("cannot write seed", err)
	}

	args := append(slices.Clone(s.driver[1:]), srcPath, covPath)
	_, err = s.runner.Run(ctx, s.driver[0], args...)
	var crash *sandbox.ExecutionCrash
	switch {
	case errors.As(err, &crash):
		rec.Crash = crash.Signature()
		rec.Visited = 1
		logger.Info("Sequence crashed the coverage driver.", "seed", seq.Seed, "signature", rec.Crash)
		return rec, crash
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case err != nil:
		return unmeasured("coverage driver failed", err)
	}

	raw, err := os.ReadFile(covPath)
	if err != nil {
		return unmeasured("driver wrote no coverage", err)
	}
	var cov coverage
	if err := json.Unmarshal(raw, &cov); err != nil {
		return unmeasured("malformed coverage file", err)
	}

	hits := 0
	for _, fn := range used {
		valid := make(map[int]bool, len(fn.Branches))
		for _, br := range fn.Branches {
			valid[br.ID] = true
		}
		var list []int
		for _, id := range cov.Branches[fn.Name] {
			if valid[id] && !slices.Contains(list, id) {
				list = append(list, id)
			}
		}
		if len(list) == 0 {
			continue
		}
		sort.Ints(list)
		rec.UniqueBranches[fn.Name] = list
		hits += len(list)
	}
	rec.Density = roundDensity(hits, totalBranches(used))
	rec.Visited = 1
	return rec, nil
}
