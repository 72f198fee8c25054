// Package store persists metadata about generated tools.
//
// Every backend keys records by the normalized tool name and is safe for
// concurrent use. Stores are always injected; nothing in toolforge keeps a
// package-level registry of tools.
package store

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/skosovsky/toolforge/generator"
)

var (
	// ErrExists is returned by Add when a record with the same name is present.
	ErrExists = errors.New("tool already exists")
	// ErrNotFound is returned when no record has the requested name.
	ErrNotFound = errors.New("tool not found")
)

// Record is what the store knows about one generated tool.
type Record struct {
	generator.Spec

	FilePath   string         `json:"file_path"`
	Parameters map[string]any `json:"parameters,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Store is the tool metadata repository.
type Store interface {
	// Add inserts rec. It fails with ErrExists if rec.Name is taken.
	Add(ctx context.Context, rec Record) error
	Get(ctx context.Context, name string) (Record, error)
	// List returns every record sorted by name.
	List(ctx context.Context) ([]Record, error)
	// Delete removes and returns the named record.
	Delete(ctx context.Context, name string) (Record, error)
	Close() error
}

func sortByName(recs []Record) {
	slices.SortFunc(recs, func(a, b Record) int { return strings.Compare(a.Name, b.Name) })
}
