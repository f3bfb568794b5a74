package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db  *sql.DB
	loc *time.Location
}

func New(db *sql.DB, loc *time.Location) *Store {
	return &Store{db: db, loc: loc}
}

// Open opens the SQLite database at path with the pragmas the app relies on.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")
	return db, nil
}

// SessionValues returns every persisted session value.
func (s *Store) SessionValues() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM session_values`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		values[k] = v
	}
	return values, rows.Err()
}

// SetSessionValues writes values in one transaction.
func (s *Store) SetSessionValues(values map[string]string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for k, v := range values {
		if _, err := tx.Exec(`
			INSERT INTO session_values (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, k, v, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("set %s: %w", k, err)
		}
	}
	return tx.Commit()
}

// DeleteSessionValues removes keys. Missing keys are ignored.
func (s *Store) DeleteSessionValues(keys ...string) error {
	for _, k := range keys {
		if _, err := s.db.Exec(`DELETE FROM session_values WHERE key = ?`, k); err != nil {
			return fmt.Errorf("delete %s: %w", k, err)
		}
	}
	return nil
}
