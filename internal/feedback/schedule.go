package feedback

import (
	"math"
	"sync"

	"github.com/vk/seedgrid/internal/catalogue"
	"github.com/vk/seedgrid/internal/sequence"
	"github.com/vk/seedgrid/internal/synth"
)

// Energy bounds. Energies never reach zero so every function stays
// reachable.
const (
	MinEnergy = 0.1
	MaxEnergy = 8.0
)

// Schedule assigns every catalogue function an energy from how often it
// was drawn and how often it paid off.
type Schedule struct {
	mu     sync.Mutex
	names  []string
	base   synth.Weights
	uses   map[string]int
	payoff map[string]int
}

// NewSchedule starts every function of cat at energy 1. base scales the
// energies; a function with a base weight of zero or less stays excluded.
func NewSchedule(cat *catalogue.Catalogue, base synth.Weights) *Schedule {
	s := &Schedule{
		base:   base,
		uses:   make(map[string]int),
		payoff: make(map[string]int),
	}
	for _, fn := range cat.Functions() {
		s.names = append(s.names, fn.Name)
	}
	return s
}

// Record accounts for one synthesized sequence and what it discovered. A
// rejected sequence is recorded with an empty Discovery.
func (s *Schedule) Record(seq *sequence.Sequence, d Discovery) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range seq.Functions() {
		s.uses[name]++
	}
	for _, t := range d.Triples {
		for _, name := range t {
			s.payoff[name]++
		}
	}
	for name, ids := range d.Branches {
		s.payoff[name] += len(ids)
	}
}

func (s *Schedule) energy(name string) float64 {
	e := float64(1+s.payoff[name]) / math.Sqrt(float64(1+s.uses[name]))
	return min(max(e, MinEnergy), MaxEnergy)
}

// Weights returns the energies of every function as synthesis weights.
func (s *Schedule) Weights() synth.Weights {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := make(synth.Weights, len(s.names))
	for _, name := range s.names {
		scale, ok := s.base[name]
		switch {
		case !ok:
			scale = 1
		case scale <= 0:
			w[name] = 0
			continue
		}
		w[name] = math.Round(scale*s.energy(name)*1e4) / 1e4
	}
	return w
}
