// Package feedback closes the loop between curation and synthesis.
//
// The Observer accumulates what the accepted corpus has reached so far:
// the union of branch coverage and the set of API triples. Generation runs
// in rounds; a round that finds fewer new triples than a threshold is quiet
// and enough consecutive quiet rounds mean generation has converged. A
// round in which nothing was accepted is stuck and leaves the count alone.
//
// The Schedule turns the same observations into per-function energies
// that become the synthesizer's weights for the next round: functions that
// keep showing up in new triples or branches get more energy, functions
// that are drawn often without paying off get less.
package feedback
