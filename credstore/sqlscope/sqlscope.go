// Package sqlscope provides the cross-tab-persistent storage scope, backed
// by a local SQLite database so credentials survive process restarts.
package sqlscope

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/servio/clientcore/credstore"
	errs "github.com/servio/clientcore/internal/errors"
)

var _ credstore.Scope = (*Scope)(nil)

type Scope struct {
	db *sqlx.DB
}

// New opens (or creates) a SQLite database at dbPath and ensures the kv
// schema exists. Use ":memory:" for a throwaway scope.
func New(dbPath string) (*Scope, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// WAL keeps concurrent readers from blocking the writer.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS session_kv (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating session_kv table: %w", err)
	}

	return &Scope{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Scope) Close() error {
	return s.db.Close()
}

func (s *Scope) Get(key string) (string, error) {
	var value string
	err := s.db.Get(&value, "SELECT value FROM session_kv WHERE key = ?", key)
	if err == sql.ErrNoRows {
		return "", errs.ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading key %q: %w", key, err)
	}
	return value, nil
}

func (s *Scope) Set(key, value string) error {
	const query = `
		INSERT INTO session_kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if _, err := s.db.Exec(query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("writing key %q: %w", key, err)
	}
	return nil
}

func (s *Scope) Delete(key string) error {
	if _, err := s.db.Exec("DELETE FROM session_kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting key %q: %w", key, err)
	}
	return nil
}
