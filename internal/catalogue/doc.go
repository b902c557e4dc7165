// Package catalogue turns a library descriptor into the immutable API
// surface the synthesizer works against.
//
// A Catalogue holds every callable FunctionSignature of one C library, the
// opaque handle kinds those functions create and consume, and the branch
// tables the static scorer estimates coverage from. Each parameter carries
// an explicit ownership tag:
//
//	owns_in       the call consumes and frees the handle
//	borrow_in     the call reads the handle; the caller keeps ownership
//	out_handle    the call produces a new owned handle
//	transfer_out  ownership moves into a container named by `owner`
//	detach        a child handle is taken back out of its container
//	value         a literal scalar or string argument
//
// Ingest never fills in a default for a missing or unknown tag. Any
// malformed descriptor is reported as a *DescriptorError listing every
// problem found, so the operator can fix them in one pass.
//
// A Catalogue is read-only after Ingest and is shared by all workers
// without locking.
package catalogue
