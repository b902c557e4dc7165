package store

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vk/seedgrid/internal/ctxlog"
	"github.com/vk/seedgrid/internal/fsutil"
)

// LogName is the corpus log file inside a corpus directory.
const LogName = "corpus.jsonl"

// Store is a corpus directory opened for writing.
type Store struct {
	dir   string
	runID string
	index Index
	now   func() time.Time

	mu  sync.Mutex
	log *os.File
}

// Open opens the corpus in dir, creating it when missing, and replays the
// accepted entries of its log into idx. The store owns idx from then on.
func Open(ctx context.Context, dir string, idx Index) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &WriteError{Op: "mkdir", Path: dir, Err: err}
	}

	entries, err := ReadLog(dir)
	if err != nil {
		return nil, err
	}
	accepted := 0
	for _, e := range entries {
		if e.Status != StatusAccepted {
			continue
		}
		if err := idx.Add(ctx, e.Hash, e.ID, e.Library, e.Template); err != nil {
			return nil, fmt.Errorf("failed to index seed %d: %w", e.ID, err)
		}
		accepted++
	}

	path := filepath.Join(dir, LogName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, &WriteError{Op: "open", Path: path, Err: err}
	}

	s := &Store{
		dir:   dir,
		runID: uuid.NewString(),
		index: idx,
		now:   time.Now,
		log:   f,
	}
	ctxlog.FromContext(ctx).Debug("Corpus opened.", "dir", dir, "run_id", s.runID, "accepted", accepted, "logged", len(entries))
	return s, nil
}

// Dir returns the corpus directory.
func (s *Store) Dir() string { return s.dir }

// RunID identifies this process's entries in the log.
func (s *Store) RunID() string { return s.runID }

// Index returns the store's index.
func (s *Store) Index() Index { return s.index }

// Publish writes an accepted seed file atomically, then logs and indexes it.
// e.Path is relative to the corpus directory.
func (s *Store) Publish(ctx context.Context, e Entry, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.Status = StatusAccepted
	path := filepath.Join(s.dir, filepath.FromSlash(e.Path))
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return &WriteError{Op: "publish", Path: path, Err: err}
	}
	if err := s.append(e); err != nil {
		return err
	}
	if err := s.index.Add(ctx, e.Hash, e.ID, e.Library, e.Template); err != nil {
		return &WriteError{Op: "index", Path: e.Path, Err: err}
	}
	return nil
}

// Reject logs a rejected candidate. Nothing is written besides the log line.
func (s *Store) Reject(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.Status = StatusRejected
	e.ID = 0
	e.Path = ""
	return s.append(e)
}

func (s *Store) append(e Entry) error {
	if e.RunID == "" {
		e.RunID = s.runID
	}
	if e.Time.IsZero() {
		e.Time = s.now().UTC()
	}
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode log entry: %w", err)
	}
	line = append(line, '\n')
	if _, err := s.log.Write(line); err != nil {
		return &WriteError{Op: "append", Path: s.log.Name(), Err: err}
	}
	return nil
}

// Close flushes the log and closes the index.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.log.Sync()
	err = errors.Join(err, s.log.Close(), s.index.Close())
	return err
}

// ReadLog returns every entry logged in the corpus at dir. A missing log is
// an empty corpus.
func ReadLog(dir string) ([]Entry, error) {
	path := filepath.Join(dir, LogName)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for n := 1; sc.Scan(); n++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("%s:%d: malformed log entry: %w", path, n, err)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read corpus log: %w", err)
	}
	return entries, nil
}

// Accepted returns the accepted entries of the corpus at dir in log order.
func Accepted(dir string) ([]Entry, error) {
	entries, err := ReadLog(dir)
	if err != nil {
		return nil, err
	}
	out := entries[:0]
	for _, e := range entries {
		if e.Status == StatusAccepted {
			out = append(out, e)
		}
	}
	return out, nil
}

// Export copies the seed files of entries from the corpus at src into dst,
// keeping their relative paths, and writes a log holding only them.
func Export(src, dst string, entries []Entry) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return &WriteError{Op: "mkdir", Path: dst, Err: err}
	}
	var log []byte
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(src, filepath.FromSlash(e.Path)))
		if err != nil {
			return fmt.Errorf("failed to read seed %d: %w", e.ID, err)
		}
		out := filepath.Join(dst, filepath.FromSlash(e.Path))
		if err := fsutil.WriteFileAtomic(out, data, 0o644); err != nil {
			return &WriteError{Op: "export", Path: out, Err: err}
		}
		line, err := json.Marshal(e)
		if err != nil {
			return err
		}
		log = append(append(log, line...), '\n')
	}
	path := filepath.Join(dst, LogName)
	if err := fsutil.WriteFileAtomic(path, log, 0o644); err != nil {
		return &WriteError{Op: "export", Path: path, Err: err}
	}
	return nil
}
