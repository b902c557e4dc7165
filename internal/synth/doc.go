// Package synth composes call sequences that follow a phase template and
// never break a handle's lifecycle.
//
// Each step draws from the functions allowed in the current phase whose
// input handles can be bound to usable handles of the right kind. The draw
// is weighted by a snapshot of per-function energies; every tentative
// binding is checked with typestate.Tracker.CanApply and a rejected one is
// simply dropped in favour of another binding or another function. Cleanup
// is not drawn: it releases every outstanding owned handle in reverse
// creation order.
//
// Synthesize is a pure function of the catalogue, the template, the seed and
// the weight snapshot.
package synth
