// Package store persists the curated corpus.
//
// A corpus directory holds the published seed files and corpus.jsonl, an
// append-only log with one Entry per submitted candidate, accepted or not.
// Seed files are written to a temp file and renamed into place, so a reader
// never sees a partial seed. A Store has a single writer; the curator
// serialises submissions.
//
// Deduplication and quota state lives behind the Index interface. The
// memory index is rebuilt from the log when the store opens; the SQLite
// index persists across runs on its own.
package store
