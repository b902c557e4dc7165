// Package registry provides the central "glue" for the library module system.
//
// Built-in library modules register their embedded descriptors here under
// the library name they wrap. During startup the registry parses every
// descriptor through a config.Loader, ingests it into a catalogue and then
// validates that the Go side of each module (its declared critical set and
// includes) is in sync with the descriptor it ships. A library whose
// descriptor fails to ingest is recorded with its DescriptorError; the other
// libraries stay usable.
package registry
