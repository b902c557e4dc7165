// Package scorer turns a finished sequence into a QualityRecord.
//
// Static scoring evaluates the branch tables of the catalogue against the
// calls and literal arguments of the sequence and needs nothing but the
// catalogue. Executed scoring renders the seed, hands it to an external
// coverage driver in a sandboxed child process and reads back the branches
// the driver observed. The driver is invoked as
//
//	<driver> [driver args...] <seed.cc> <coverage.json>
//
// and must write {"branches": {"<function>": [<branch id>, ...]}}.
package scorer
