// Package curator decides which synthesized sequences enter the corpus.
//
// Submit checks a candidate in a fixed order: a crash recorded by executed
// scoring, a failed typestate replay (leaks included), a structural
// duplicate of an accepted seed, and the per-(library, template) diversity
// quota. Accepted candidates get the next ID, are rendered with their
// quality header and published through the store. Every decision, accepted
// or not, is logged to the corpus log.
//
// Minimize reduces an existing corpus to a subset that still covers every
// API triple seen in it.
package curator
