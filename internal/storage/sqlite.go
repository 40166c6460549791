package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps records in a single SQLite table
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates a SQLite database
func OpenSQLite(path string, mode Mode) (*SQLiteStore, error) {
	if mode == ModeExisting {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrStoreMissing, path)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", ErrStoreIO, err)
	}

	// WAL lets readers proceed while a writer holds the database
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: enable WAL: %v", ErrStoreIO, err)
	}

	s := &SQLiteStore{db: db}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: init schema: %v", ErrStoreIO, err)
	}

	return s, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Put inserts or replaces a record
func (s *SQLiteStore) Put(ctx context.Context, key string, value []byte) error {
	query := `
	INSERT INTO records (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`

	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("%w: put %s: %v", ErrStoreIO, key, err)
	}
	return nil
}

// Get retrieves a record by key
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM records WHERE key = ?", key).Scan(&value)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", ErrStoreIO, key, err)
	}

	return value, nil
}

// Delete removes a record by key
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE key = ?", key); err != nil {
		return fmt.Errorf("%w: delete %s: %v", ErrStoreIO, key, err)
	}
	return nil
}

// Each walks every record in key order
func (s *SQLiteStore) Each(ctx context.Context, fn func(key string, value []byte) error) error {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM records ORDER BY key")
	if err != nil {
		return fmt.Errorf("%w: list records: %v", ErrStoreIO, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return fmt.Errorf("%w: scan record: %v", ErrStoreIO, err)
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: list records: %v", ErrStoreIO, err)
	}
	return nil
}

// Count returns the total number of records
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: count records: %v", ErrStoreIO, err)
	}
	return count, nil
}
