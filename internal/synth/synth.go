package synth

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/vk/seedgrid/internal/catalogue"
	"github.com/vk/seedgrid/internal/ctxlog"
	"github.com/vk/seedgrid/internal/handle"
	"github.com/vk/seedgrid/internal/sequence"
	"github.com/vk/seedgrid/internal/typestate"
)

// ErrSynthesisExhausted is returned, together with the degraded sequence,
// when no applicable call exists before Cleanup or cleanup cannot release
// every handle.
var ErrSynthesisExhausted = errors.New("synthesis exhausted")

// Weights maps function names to selection energy. Missing names weigh 1;
// a weight of zero or less removes the function from the draw.
type Weights map[string]float64

func (w Weights) of(name string) float64 {
	v, ok := w[name]
	switch {
	case !ok:
		return 1
	case v < 0:
		return 0
	default:
		return v
	}
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithWeights sets the selection weights. The map is copied.
func WithWeights(w Weights) Option {
	return func(s *Synthesizer) {
		s.weights = make(Weights, len(w))
		for k, v := range w {
			s.weights[k] = v
		}
	}
}

// WithBindingAttempts caps how many bindings are tried per function before
// the function is dropped from the candidate set for that step.
func WithBindingAttempts(n int) Option {
	return func(s *Synthesizer) {
		if n > 0 {
			s.bindingAttempts = n
		}
	}
}

// Synthesizer builds sequences over one catalogue.
type Synthesizer struct {
	cat             *catalogue.Catalogue
	weights         Weights
	bindingAttempts int
}

// New returns a synthesizer for cat.
func New(cat *catalogue.Catalogue, opts ...Option) *Synthesizer {
	s := &Synthesizer{cat: cat, bindingAttempts: 8}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize builds one sequence. A degraded sequence is still returned
// alongside ErrSynthesisExhausted; the caller decides whether to keep it.
func (s *Synthesizer) Synthesize(ctx context.Context, tmpl sequence.Template, seed int64) (*sequence.Sequence, error) {
	logger := ctxlog.FromContext(ctx).With("library", s.cat.Library(), "seed", seed)
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(len(s.cat.Functions()))))

	b := &builder{
		s:   s,
		rng: rng,
		tr:  typestate.New(s.cat),
		seq: &sequence.Sequence{Library: s.cat.Library(), Template: tmpl, Seed: seed},
	}
	cur := sequence.NewCursor(tmpl)

	for cur.Phase() != catalogue.PhaseCleanup {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		phase := cur.Phase()
		if !b.step(phase) {
			b.degrade(fmt.Sprintf("no applicable call in %s after %d steps", phase, len(b.seq.Steps)))
			logger.Warn("Sequence closed early.", "phase", phase.String(), "steps", len(b.seq.Steps), "skipped", cur.Remaining())
			cur.Close()
			break
		}
		cur.Advance()
	}

	b.cleanup(tmpl.Count(catalogue.PhaseCleanup))

	if err := b.tr.Finalize(); err != nil {
		b.degrade("cleanup incomplete: " + err.Error())
		logger.Warn("Sequence leaves handles unreleased.", "error", err)
	}

	if b.seq.Degraded {
		return b.seq, fmt.Errorf("%w: %s", ErrSynthesisExhausted, b.seq.Reason)
	}
	logger.Debug("Sequence synthesized.", "steps", len(b.seq.Steps))
	return b.seq, nil
}

// builder is the state of one Synthesize call.
type builder struct {
	s   *Synthesizer
	rng *rand.Rand
	tr  *typestate.Tracker
	seq *sequence.Sequence
}

func (b *builder) degrade(reason string) {
	if b.seq.Degraded {
		b.seq.Reason += "; " + reason
		return
	}
	b.seq.Degraded = true
	b.seq.Reason = reason
}

// step emits one weighted call in phase. It reports false when no function
// can be applied.
func (b *builder) step(phase catalogue.Phase) bool {
	pool := b.candidates(phase)
	for len(pool) > 0 {
		i := b.draw(pool)
		fn := pool[i]
		if b.tryFunction(fn, phase) {
			return true
		}
		pool = append(pool[:i:i], pool[i+1:]...)
	}
	return false
}

// candidates lists the functions allowed in phase whose input handles all
// have at least one bindable handle, in catalogue order.
func (b *builder) candidates(phase catalogue.Phase) []*catalogue.FunctionSignature {
	var out []*catalogue.FunctionSignature
	for _, fn := range b.s.cat.Functions() {
		if !fn.AllowedIn(phase) || b.s.weights.of(fn.Name) == 0 {
			continue
		}
		if b.bindable(fn) {
			out = append(out, fn)
		}
	}
	return out
}

func (b *builder) bindable(fn *catalogue.FunctionSignature) bool {
	for _, p := range fn.Params {
		switch p.Ownership {
		case catalogue.Value, catalogue.OutHandle:
			continue
		}
		if len(b.tr.Candidates(p)) == 0 {
			return false
		}
	}
	return true
}

// draw picks an index of pool proportionally to the weights.
func (b *builder) draw(pool []*catalogue.FunctionSignature) int {
	total := 0.0
	for _, fn := range pool {
		total += b.s.weights.of(fn.Name)
	}
	r := b.rng.Float64() * total
	for i, fn := range pool {
		r -= b.s.weights.of(fn.Name)
		if r < 0 {
			return i
		}
	}
	return len(pool) - 1
}

// tryFunction samples bindings for fn until one passes CanApply.
func (b *builder) tryFunction(fn *catalogue.FunctionSignature, phase catalogue.Phase) bool {
	step := typestate.Step{Function: fn, Phase: phase}
	for attempt := 0; attempt < b.s.bindingAttempts; attempt++ {
		bindings, literals := b.sample(fn)
		if err := b.tr.CanApply(step, bindings); err != nil {
			continue
		}
		b.emit(step, bindings, literals)
		return true
	}
	return false
}

// sample picks a random binding for every parameter of fn.
func (b *builder) sample(fn *catalogue.FunctionSignature) ([]handle.Ref, []string) {
	bindings := make([]handle.Ref, len(fn.Params))
	literals := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		switch p.Ownership {
		case catalogue.Value:
			if p.LengthOf >= 0 {
				literals[i] = lengthOf(literals[p.LengthOf])
			} else {
				literals[i] = p.Values[b.rng.IntN(len(p.Values))]
			}
		case catalogue.OutHandle:
		default:
			cands := b.tr.Candidates(p)
			if len(cands) > 0 {
				bindings[i] = cands[b.rng.IntN(len(cands))]
			}
		}
	}
	return bindings, literals
}

// lengthOf renders the byte length of a string literal as a C expression.
func lengthOf(lit string) string {
	if strings.HasPrefix(lit, `"`) {
		return fmt.Sprintf("(int)(sizeof(%s) - 1)", lit)
	}
	return "0"
}

// emit applies a checked step and records it.
func (b *builder) emit(step typestate.Step, bindings []handle.Ref, literals []string) {
	produced, err := b.tr.Apply(step, bindings)
	if err != nil {
		// CanApply just accepted the same input.
		panic(fmt.Sprintf("synth: apply after successful check failed: %v", err))
	}

	cs := sequence.CallStep{Function: step.Function.Name, Phase: step.Phase}
	next := 0
	for i, p := range step.Function.Params {
		switch p.Ownership {
		case catalogue.Value:
			cs.Args = append(cs.Args, sequence.LiteralArg(literals[i]))
		case catalogue.OutHandle:
			cs.Args = append(cs.Args, sequence.HandleArg(produced[next].Slot))
			next++
		default:
			cs.Args = append(cs.Args, sequence.HandleArg(bindings[i].Slot))
		}
	}
	for _, ref := range produced {
		cs.Produces = append(cs.Produces, ref.Slot)
	}
	b.seq.Steps = append(b.seq.Steps, cs)
}
