package curator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vk/seedgrid/internal/callgraph"
	"github.com/vk/seedgrid/internal/catalogue"
	"github.com/vk/seedgrid/internal/ctxlog"
	"github.com/vk/seedgrid/internal/render"
	"github.com/vk/seedgrid/internal/scorer"
	"github.com/vk/seedgrid/internal/sequence"
	"github.com/vk/seedgrid/internal/store"
	"github.com/vk/seedgrid/internal/typestate"
)

// Catalogues resolves a library name to its catalogue. *registry.Registry
// satisfies it.
type Catalogues interface {
	Catalogue(library string) (*catalogue.Catalogue, error)
}

// Reason says why a candidate was rejected.
type Reason string

const (
	ReasonCrash     Reason = "crash"
	ReasonLeak      Reason = "leak"
	ReasonDuplicate Reason = "duplicate"
	ReasonQuota     Reason = "quota"
)

// Decision is the outcome of Submit.
type Decision struct {
	Accepted bool
	// ID and Path are set for accepted candidates. Path is relative to the
	// corpus directory.
	ID   int64
	Path string
	// Triples are the API triples of the published seed.
	Triples []callgraph.Triple

	Reason Reason
	// Detail is the crash signature or replay violation.
	Detail      string
	DuplicateOf int64
}

func (d Decision) String() string {
	switch {
	case d.Accepted:
		return fmt.Sprintf("accepted as %d (%s)", d.ID, d.Path)
	case d.Reason == ReasonDuplicate:
		return fmt.Sprintf("rejected: duplicate of %d", d.DuplicateOf)
	case d.Detail != "":
		return fmt.Sprintf("rejected: %s: %s", d.Reason, d.Detail)
	}
	return "rejected: " + string(d.Reason)
}

// Option configures a Curator.
type Option func(*Curator)

// WithQuota caps the accepted seeds per library and phase template. Zero
// means unlimited.
func WithQuota(n int) Option {
	return func(c *Curator) { c.quota = n }
}

// Curator is the single writer of a corpus.
type Curator struct {
	cats  Catalogues
	store *store.Store
	ids   *IDGenerator
	quota int

	mu sync.Mutex
}

// New returns a curator publishing into st.
func New(cats Catalogues, st *store.Store, ids *IDGenerator, opts ...Option) *Curator {
	c := &Curator{cats: cats, store: st, ids: ids}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit decides on a candidate and records the decision. rec may be nil
// for an unscored sequence, which is published with the placeholder header.
// The returned error is non-nil only when the decision could not be made
// or recorded; a *store.WriteError means the corpus is no longer writable.
func (c *Curator) Submit(ctx context.Context, seq *sequence.Sequence, rec *scorer.QualityRecord) (Decision, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	logger := ctxlog.FromContext(ctx)
	cat, err := c.cats.Catalogue(seq.Library)
	if err != nil {
		return Decision{}, err
	}

	e := store.Entry{
		Library:  seq.Library,
		Template: seq.Template.String(),
		Hash:     seq.StructuralHash(),
		Sequence: seq,
	}
	var hdr render.Header
	if rec != nil {
		quality, err := rec.JSON()
		if err != nil {
			return Decision{}, fmt.Errorf("failed to encode quality record: %w", err)
		}
		e.Quality = quality
		e.Mode = rec.Mode.String()
		e.Unmeasured = rec.Unmeasured
		hdr = render.Header{Score: rec.Score(), UniqueBranches: rec.NrUniqueBranch(), Quality: quality}
	}

	d, err := c.check(ctx, cat, seq, rec, e.Hash)
	if err != nil {
		return Decision{}, err
	}
	if !d.Accepted {
		e.Reason = string(d.Reason)
		e.Detail = d.Detail
		e.DuplicateOf = d.DuplicateOf
		if err := c.store.Reject(ctx, e); err != nil {
			return Decision{}, err
		}
		logger.Info("Candidate rejected.", "library", seq.Library, "seed", seq.Seed, "reason", d.Reason, "detail", d.Detail)
		return d, nil
	}

	published := seq.Clone()
	published.ID = c.ids.Next()
	hdr.Path = render.DefaultPath(seq.Library, published.ID)
	src, err := render.Render(cat, published, hdr)
	if err != nil {
		return Decision{}, err
	}
	calls, err := callgraph.Calls(ctx, src, func(name string) bool {
		_, err := cat.Lookup(name)
		return err == nil
	})
	if err != nil {
		return Decision{}, err
	}
	d.Triples = callgraph.Triples(calls)
	for _, t := range d.Triples {
		e.Triples = append(e.Triples, t.String())
	}

	e.ID = published.ID
	e.Path = hdr.Path
	e.Sequence = published
	if err := c.store.Publish(ctx, e, src); err != nil {
		return Decision{}, err
	}

	d.ID, d.Path = e.ID, e.Path
	logger.Info("Seed accepted.", "library", seq.Library, "id", d.ID, "path", d.Path, "score", hdr.Score)
	return d, nil
}

func (c *Curator) check(ctx context.Context, cat *catalogue.Catalogue, seq *sequence.Sequence, rec *scorer.QualityRecord, hash string) (Decision, error) {
	if rec != nil && rec.Crash != "" {
		return Decision{Reason: ReasonCrash, Detail: rec.Crash}, nil
	}
	if err := typestate.Replay(cat, seq); err != nil {
		var v *typestate.Violation
		if !errors.As(err, &v) {
			// not a typestate failure: the sequence does not fit the catalogue
			return Decision{}, fmt.Errorf("sequence %d does not replay: %w", seq.Seed, err)
		}
		return Decision{Reason: ReasonLeak, Detail: err.Error()}, nil
	}

	idx := c.store.Index()
	if id, ok, err := idx.Lookup(ctx, hash); err != nil {
		return Decision{}, err
	} else if ok {
		return Decision{Reason: ReasonDuplicate, DuplicateOf: id}, nil
	}
	if c.quota > 0 {
		n, err := idx.Count(ctx, seq.Library, seq.Template.String())
		if err != nil {
			return Decision{}, err
		}
		if n >= c.quota {
			return Decision{Reason: ReasonQuota, Detail: fmt.Sprintf("%d seeds for %s", n, seq.Template)}, nil
		}
	}
	return Decision{Accepted: true}, nil
}
