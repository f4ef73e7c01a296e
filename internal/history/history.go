// Package history is a local sqlite-backed cache of static determinism
// qualification ("beg") results, keyed by adapter manifest hash, so `pray`
// can skip re-qualifying an adapter that has not changed since its last
// qualifying run.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Store is a single-writer sqlite qualification cache.
type Store struct {
	db *sql.DB
}

// Open creates or opens the sqlite database at path, applying pragmas and
// the schema. Idempotent.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: connect %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("history: pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Result is a cached qualification outcome for one adapter manifest hash.
type Result struct {
	AdapterManifestHash string
	Deterministic       bool
	Reason              string
	QualifiedAtSeq      int64
}

// Lookup returns the cached result for hash, if any.
func (s *Store) Lookup(ctx context.Context, hash string) (*Result, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT adapter_manifest_hash, qualified_at_seq, deterministic, reason
		 FROM qualifications WHERE adapter_manifest_hash = ?`, hash)

	var r Result
	var deterministic int
	var reason sql.NullString
	if err := row.Scan(&r.AdapterManifestHash, &r.QualifiedAtSeq, &deterministic, &reason); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("history: lookup %s: %w", hash, err)
	}
	r.Deterministic = deterministic != 0
	r.Reason = reason.String
	return &r, nil
}

// Record upserts a qualification result.
func (s *Store) Record(ctx context.Context, r Result) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO qualifications (adapter_manifest_hash, qualified_at_seq, deterministic, reason)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(adapter_manifest_hash) DO UPDATE SET
		   qualified_at_seq = excluded.qualified_at_seq,
		   deterministic = excluded.deterministic,
		   reason = excluded.reason`,
		r.AdapterManifestHash, r.QualifiedAtSeq, boolToInt(r.Deterministic), r.Reason)
	if err != nil {
		return fmt.Errorf("history: record %s: %w", r.AdapterManifestHash, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
