// Package typestate validates call steps against the lifecycle of every
// handle they touch.
//
// A Tracker owns one handle.Arena and three relations between its slots:
//
//	owns     container -> child, recorded by transfer_out
//	depends  parent -> dependent, e.g. database -> prepared statement
//	weak     container -> alias, recorded by alias-returning lookups
//
// A weak alias is never a second owner, so freeing it is a DoubleFree
// rather than independent cleanup.
//
// CanApply is a pure query. Apply re-checks the step on a copy of the state
// and only commits when every binding is valid, so a rejected step leaves
// the tracker untouched.
package typestate
