package rules

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteCache stores rule sets in a single table.
type SQLiteCache struct {
	db *sql.DB
}

// OpenSQLiteCache opens (or creates) the database at dbPath.
func OpenSQLiteCache(dbPath string) (*SQLiteCache, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open rules db: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS rule_sets (
			key TEXT PRIMARY KEY,
			body TEXT NOT NULL,
			created_at TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init rules db: %w", err)
	}
	return &SQLiteCache{db: db}, nil
}

// Close closes the database connection.
func (c *SQLiteCache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *SQLiteCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var body string
	err := c.db.QueryRowContext(ctx, `SELECT body FROM rule_sets WHERE key = ?`, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query rules %s: %w", key, err)
	}
	return []byte(body), true, nil
}

func (c *SQLiteCache) Put(ctx context.Context, key string, value []byte) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO rule_sets (key, body, created_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET body = excluded.body, created_at = excluded.created_at
	`, key, string(value), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("store rules %s: %w", key, err)
	}
	return nil
}
