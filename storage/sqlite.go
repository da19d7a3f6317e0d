package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "github.com/glebarez/sqlite"
)

const (
	defaultFilePragmas = "mode=rwc&_busy_timeout=5000&_journal_mode=WAL"

	sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv (
    key   BLOB PRIMARY KEY,
    value BLOB NOT NULL
);`
)

// ErrPathRequired is returned when a file-backed store is opened without a path.
var ErrPathRequired = errors.New("storage: path must be configured")

// SQLiteDB stores key-value pairs in a single SQLite table.
type SQLiteDB struct {
	db *sql.DB
}

// FileDSN converts a filesystem path into an on-disk SQLite DSN with sensible
// defaults. Callers must ensure the path is non-empty.
func FileDSN(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", ErrPathRequired
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve storage path: %w", err)
	}
	return fmt.Sprintf("file:%s?%s", abs, defaultFilePragmas), nil
}

// NewSQLiteDB opens the database identified by dsn and applies the schema.
func NewSQLiteDB(dsn string) (*SQLiteDB, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, ErrPathRequired
	}
	db, err := sql.Open("sqlite", trimmed)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps in-memory DSNs coherent and serialises writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteDB{db: db}, nil
}

// Put inserts or replaces the value stored under key.
func (s *SQLiteDB) Put(key []byte, value []byte) error {
	_, err := s.db.Exec(`
        INSERT INTO kv(key, value) VALUES(?, ?)
        ON CONFLICT(key) DO UPDATE SET value = excluded.value
    `, key, value)
	if err != nil {
		return fmt.Errorf("upsert kv: %w", err)
	}
	return nil
}

// Get returns the value stored under key.
func (s *SQLiteDB) Get(key []byte) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select kv: %w", err)
	}
	return value, nil
}

// Close releases database resources.
func (s *SQLiteDB) Close() {
	if s == nil || s.db == nil {
		return
	}
	_ = s.db.Close()
}
