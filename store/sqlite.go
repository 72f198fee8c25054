package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/skosovsky/toolforge/generator"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS tools (
	name       TEXT PRIMARY KEY,
	spec       TEXT NOT NULL,
	file_path  TEXT NOT NULL,
	parameters TEXT,
	created_at TEXT NOT NULL
)`

// SQLiteStore keeps records in a SQLite database (pure Go driver, no cgo).
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at dsn and ensures the schema.
// Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tools table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Add(ctx context.Context, rec Record) error {
	specJSON, err := json.Marshal(rec.Spec)
	if err != nil {
		return fmt.Errorf("encode spec: %w", err)
	}
	var params []byte
	if rec.Parameters != nil {
		if params, err = json.Marshal(rec.Parameters); err != nil {
			return fmt.Errorf("encode parameters: %w", err)
		}
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tools (name, spec, file_path, parameters, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO NOTHING`,
		rec.Name, string(specJSON), rec.FilePath, nullableText(params), rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert tool %s: %w", rec.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrExists
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, name string) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT spec, file_path, parameters, created_at FROM tools WHERE name = ?`, name)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT spec, file_path, parameters, created_at FROM tools ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, name string) (Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, err
	}
	defer func() { _ = tx.Rollback() }()

	rec, err := scanRecord(tx.QueryRowContext(ctx,
		`SELECT spec, file_path, parameters, created_at FROM tools WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tools WHERE name = ?`, name); err != nil {
		return Record{}, fmt.Errorf("delete tool %s: %w", name, err)
	}
	return rec, tx.Commit()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		specJSON, filePath, createdAt string
		params                        sql.NullString
	)
	if err := row.Scan(&specJSON, &filePath, &params, &createdAt); err != nil {
		return Record{}, err
	}
	var spec generator.Spec
	if err := json.Unmarshal([]byte(specJSON), &spec); err != nil {
		return Record{}, fmt.Errorf("decode spec: %w", err)
	}
	rec := Record{Spec: spec, FilePath: filePath}
	if params.Valid && params.String != "" {
		if err := json.Unmarshal([]byte(params.String), &rec.Parameters); err != nil {
			return Record{}, fmt.Errorf("decode parameters: %w", err)
		}
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Record{}, fmt.Errorf("decode created_at: %w", err)
	}
	rec.CreatedAt = ts
	return rec, nil
}

func nullableText(b []byte) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

var _ Store = (*SQLiteStore)(nil)
