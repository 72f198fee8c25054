package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps all records in one JSON file, rewritten atomically on every
// change. A missing, unreadable or corrupt file is treated as an empty store
// so a damaged index never blocks creating new tools.
type FileStore struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithFileLogger sets the logger used to report a corrupt index.
func WithFileLogger(logger *slog.Logger) FileOption {
	return func(s *FileStore) {
		s.logger = logger
	}
}

// NewFileStore returns a FileStore backed by path. The file is created on the first write.
func NewFileStore(path string, opts ...FileOption) *FileStore {
	s := &FileStore{path: path, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the index file location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Add(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.read(ctx)
	for _, r := range recs {
		if r.Name == rec.Name {
			return ErrExists
		}
	}
	recs = append(recs, rec)
	return s.write(recs)
}

func (s *FileStore) Get(ctx context.Context, name string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.read(ctx) {
		if r.Name == name {
			return r, nil
		}
	}
	return Record{}, ErrNotFound
}

func (s *FileStore) List(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.read(ctx)
	sortByName(recs)
	return recs, nil
}

func (s *FileStore) Delete(ctx context.Context, name string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.read(ctx)
	for i, r := range recs {
		if r.Name != name {
			continue
		}
		recs = append(recs[:i], recs[i+1:]...)
		if err := s.write(recs); err != nil {
			return Record{}, err
		}
		return r, nil
	}
	return Record{}, ErrNotFound
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) read(ctx context.Context) []Record {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.WarnContext(ctx, "tool index unreadable, starting empty", "path", s.path, "error", err)
		}
		return nil
	}
	var recs []Record
	if err := json.Unmarshal(data, &recs); err != nil {
		s.logger.WarnContext(ctx, "tool index corrupt, starting empty", "path", s.path, "error", err)
		return nil
	}
	return recs
}

func (s *FileStore) write(recs []Record) error {
	sortByName(recs)
	if recs == nil {
		recs = []Record{}
	}
	out, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tool index: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tools-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()
	if err := tmp.Chmod(0o644); err != nil {
		return err
	}
	if _, err := tmp.Write(out); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}

var _ Store = (*FileStore)(nil)
