package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // CGO-free SQLite driver
)

// SQLiteIndex is an Index persisted in a SQLite database, so deduplication
// and quotas survive restarts.
type SQLiteIndex struct {
	db *sql.DB
}

var _ Index = (*SQLiteIndex)(nil)

// OpenSQLiteIndex opens (and creates if missing) the index at path.
func OpenSQLiteIndex(ctx context.Context, path string) (*SQLiteIndex, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open index %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS seeds (
  hash     TEXT PRIMARY KEY,
  id       INTEGER NOT NULL,
  library  TEXT NOT NULL,
  template TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_seeds_quota ON seeds(library, template);
`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index schema in %s: %w", path, err)
	}
	return &SQLiteIndex{db: db}, nil
}

// Lookup returns the id stored for hash.
func (s *SQLiteIndex) Lookup(ctx context.Context, hash string) (int64, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM seeds WHERE hash = ?`, hash).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		return 0, false, nil
	case err != nil:
		return 0, false, err
	}
	return id, true, nil
}

// Count returns the accepted seeds of a library and template.
func (s *SQLiteIndex) Count(ctx context.Context, library, template string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM seeds WHERE library = ? AND template = ?`, library, template).Scan(&n)
	return n, err
}

// Add records an accepted seed.
func (s *SQLiteIndex) Add(ctx context.Context, hash string, id int64, library, template string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO seeds (hash, id, library, template) VALUES (?, ?, ?, ?)`,
		hash, id, library, template)
	return err
}

// MaxID returns the largest id recorded.
func (s *SQLiteIndex) MaxID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(id) FROM seeds`).Scan(&id); err != nil {
		return 0, err
	}
	return id.Int64, nil
}

// Close closes the database.
func (s *SQLiteIndex) Close() error { return s.db.Close() }
