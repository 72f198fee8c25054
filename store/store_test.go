package store

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/skosovsky/toolforge/generator"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var created = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

func record(name string) Record {
	return Record{
		Spec: generator.Spec{
			Name:        name,
			Description: "does " + name,
			Inputs:      []generator.Param{{Name: "x", Type: "int", Required: true}},
			Imports:     []string{"math"},
			Code:        "return x",
		},
		FilePath:   filepath.Join("tools", name+".star"),
		Parameters: map[string]any{"type": "object"},
		CreatedAt:  created,
	}
}

func backends(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()
	return map[string]func(t *testing.T) Store{
		"memory": func(*testing.T) Store { return NewMemoryStore() },
		"file": func(t *testing.T) Store {
			return NewFileStore(filepath.Join(t.TempDir(), "tools_data.json"))
		},
		"sqlite": func(t *testing.T) Store {
			s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "tools.db"))
			require.NoError(t, err)
			return s
		},
	}
}

func TestStore_CRUD(t *testing.T) {
	ctx := context.Background()
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer func() { require.NoError(t, s.Close()) }()

			list, err := s.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, list)

			require.NoError(t, s.Add(ctx, record("zeta")))
			require.NoError(t, s.Add(ctx, record("alpha")))
			assert.ErrorIs(t, s.Add(ctx, record("alpha")), ErrExists)

			got, err := s.Get(ctx, "alpha")
			require.NoError(t, err)
			assert.Equal(t, record("alpha"), got)

			_, err = s.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			list, err = s.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "alpha", list[0].Name)
			assert.Equal(t, "zeta", list[1].Name)

			removed, err := s.Delete(ctx, "zeta")
			require.NoError(t, err)
			assert.Equal(t, "tools/zeta.star", filepath.ToSlash(removed.FilePath))
			_, err = s.Delete(ctx, "zeta")
			assert.ErrorIs(t, err, ErrNotFound)

			list, err = s.List(ctx)
			require.NoError(t, err)
			assert.Len(t, list, 1)
		})
	}
}

func TestStore_ConcurrentAdd(t *testing.T) {
	ctx := context.Background()
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer func() { require.NoError(t, s.Close()) }()

			var wg sync.WaitGroup
			errs := make([]error, 8)
			for i := range errs {
				wg.Add(1)
				go func() {
					defer wg.Done()
					errs[i] = s.Add(ctx, record(fmt.Sprintf("tool_%d", i%4)))
				}()
			}
			wg.Wait()
			var dup int
			for _, err := range errs {
				if err != nil {
					require.ErrorIs(t, err, ErrExists)
					dup++
				}
			}
			assert.Equal(t, 4, dup)
			list, err := s.List(ctx)
			require.NoError(t, err)
			assert.Len(t, list, 4)
		})
	}
}

func TestFileStore_CorruptIndexStartsEmpty(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tools_data.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	var buf bytes.Buffer
	s := NewFileStore(path, WithFileLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Contains(t, buf.String(), "tool index corrupt")

	require.NoError(t, s.Add(ctx, record("fresh")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name": "fresh"`)
	assert.Contains(t, string(data), `"file_path"`)
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "tools_data.json")
	require.NoError(t, NewFileStore(path).Add(ctx, record("kept")))

	got, err := NewFileStore(path).Get(ctx, "kept")
	require.NoError(t, err)
	assert.Equal(t, record("kept"), got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestSQLiteStore_Memory(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	defer s.Close()

	rec := record("mem")
	rec.Parameters = nil
	require.NoError(t, s.Add(ctx, rec))
	got, err := s.Get(ctx, "mem")
	require.NoError(t, err)
	assert.Nil(t, got.Parameters)
	assert.True(t, created.Equal(got.CreatedAt))
}
