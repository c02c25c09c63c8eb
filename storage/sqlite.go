package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements KVStore on a single SQLite file. Documents live in
// a kv table; list semantics are emulated with a monotonically increasing
// sequence per list key, newest first meaning highest sequence first.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *zap.SugaredLogger
}

// NewSQLiteStore opens (creating if needed) the database at path and
// prepares the schema. WAL mode is enabled so concurrent readers do not
// block the single writer.
func NewSQLiteStore(path string, logger *zap.SugaredLogger) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	// WAL mode single writer.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db, path: path, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE TABLE IF NOT EXISTS kv_list (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			list_key TEXT NOT NULL,
			value TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_kv_list_key ON kv_list(list_key, seq)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Ping verifies the database file is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Set upserts a JSON-marshaled value at key.
func (s *SQLiteStore) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Errorf("Failed to marshal value for key %s: %v", key, err)
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, datetime('now'))
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key, string(data))
	if err != nil {
		return fmt.Errorf("%w: set %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// Get retrieves and unmarshals the value at key into dest.
func (s *SQLiteStore) Get(ctx context.Context, key string, dest interface{}) error {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&data)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: get %s: %v", ErrUnavailable, key, err)
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		s.logger.Errorf("Failed to unmarshal value for key %s: %v", key, err)
		return err
	}
	return nil
}

// Delete removes a key.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("%w: del %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// Keys returns all keys with the given prefix.
func (s *SQLiteStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	// ESCAPE clause keeps user-supplied prefixes containing % or _ literal.
	pattern := escapeLike(prefix) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM kv WHERE key LIKE ? ESCAPE '\' ORDER BY key`, pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: keys %s: %v", ErrUnavailable, prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// ListPush prepends a value to the list at key.
func (s *SQLiteStore) ListPush(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_list (list_key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return fmt.Errorf("%w: list push %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// ListRange returns list entries in [start, stop], newest first.
func (s *SQLiteStore) ListRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	if start < 0 {
		start = 0
	}
	var limit int64 = -1
	if stop >= 0 {
		if stop < start {
			return nil, nil
		}
		limit = stop - start + 1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT value FROM kv_list WHERE list_key = ? ORDER BY seq DESC LIMIT ? OFFSET ?`,
		key, limit, start)
	if err != nil {
		return nil, fmt.Errorf("%w: list range %s: %v", ErrUnavailable, key, err)
	}
	defer rows.Close()

	var vals []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, rows.Err()
}

// ListTrim keeps only the newest max entries of the list at key.
func (s *SQLiteStore) ListTrim(ctx context.Context, key string, max int64) error {
	if max <= 0 {
		_, err := s.db.ExecContext(ctx, `DELETE FROM kv_list WHERE list_key = ?`, key)
		if err != nil {
			return fmt.Errorf("%w: list trim %s: %v", ErrUnavailable, key, err)
		}
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_list WHERE list_key = ? AND seq NOT IN (
			SELECT seq FROM kv_list WHERE list_key = ? ORDER BY seq DESC LIMIT ?
		)`, key, key, max)
	if err != nil {
		return fmt.Errorf("%w: list trim %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
