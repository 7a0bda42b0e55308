package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const (
	sqliteSchema = `CREATE TABLE IF NOT EXISTS kv (key TEXT PRIMARY KEY, value BLOB NOT NULL)`
	sqliteSelect = `SELECT value FROM kv WHERE key = ?`
	sqliteUpsert = `INSERT INTO kv (key, value) VALUES (?, ?)
        ON CONFLICT(key) DO UPDATE SET value = excluded.value`
)

// SQLite stores documents in a single kv table.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and ensures the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrRead, path, err)
	}
	// one writer at a time; sqlite serialises writes anyway
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: create schema: %w", ErrWrite, err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Read(ctx context.Context, key string) (data []byte, found bool, err error) {
	start := time.Now()
	defer func() { observe(BackendSQLite, "read", start, err) }()

	err = s.db.QueryRowContext(ctx, sqliteSelect, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrRead, err)
	}
	return data, true, nil
}

func (s *SQLite) Write(ctx context.Context, key string, data []byte) (err error) {
	start := time.Now()
	defer func() { observe(BackendSQLite, "write", start, err) }()

	if _, err = s.db.ExecContext(ctx, sqliteUpsert, key, data); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

func (s *SQLite) Name() string { return BackendSQLite }

func (s *SQLite) Close() error { return s.db.Close() }
