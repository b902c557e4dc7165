package store

import "context"

// Index answers the curator's deduplication and quota questions.
type Index interface {
	// Lookup returns the id of the accepted seed with hash.
	Lookup(ctx context.Context, hash string) (int64, bool, error)
	// Count returns how many seeds were accepted for a library and template.
	Count(ctx context.Context, library, template string) (int, error)
	// Add records an accepted seed. Adding a known hash is a no-op.
	Add(ctx context.Context, hash string, id int64, library, template string) error
	// MaxID returns the largest id recorded, 0 when empty.
	MaxID(ctx context.Context) (int64, error)
	Close() error
}

func quotaKey(library, template string) string {
	return library + "\x00" + template
}
