// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides plugin key/value persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist.
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS plugin_kv (
			plugin TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (plugin, key)
		);

		CREATE TABLE IF NOT EXISTS event_counts (
			shard_id INTEGER NOT NULL,
			event_type TEXT NOT NULL,
			count INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (shard_id, event_type)
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Get returns the value for a plugin-scoped key.
// Returns ErrNotFound if the key does not exist.
func (s *SQLiteStore) Get(ctx context.Context, plugin, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM plugin_kv WHERE plugin = ? AND key = ?",
		plugin, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying key: %w", err)
	}
	return value, nil
}

// Set writes a plugin-scoped key, replacing any existing value.
func (s *SQLiteStore) Set(ctx context.Context, plugin, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO plugin_kv (plugin, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(plugin, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		plugin, key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("writing key: %w", err)
	}
	return nil
}

// Delete removes a plugin-scoped key. Deleting an absent key is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, plugin, key string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM plugin_kv WHERE plugin = ? AND key = ?",
		plugin, key,
	)
	if err != nil {
		return fmt.Errorf("deleting key: %w", err)
	}
	return nil
}

// List returns all entries for a plugin, ordered by key.
func (s *SQLiteStore) List(ctx context.Context, plugin string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT plugin, key, value, updated_at FROM plugin_kv WHERE plugin = ? ORDER BY key",
		plugin,
	)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Plugin, &e.Key, &e.Value, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RecordEvent increments the counter for an event type on a shard.
func (s *SQLiteStore) RecordEvent(ctx context.Context, shardID int, eventType string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO event_counts (shard_id, event_type, count)
		VALUES (?, ?, 1)
		ON CONFLICT(shard_id, event_type) DO UPDATE SET count = count + 1`,
		shardID, eventType,
	)
	if err != nil {
		return fmt.Errorf("recording event: %w", err)
	}
	return nil
}

// EventCounts returns per-type event totals for a shard, ordered by type.
func (s *SQLiteStore) EventCounts(ctx context.Context, shardID int) ([]EventCount, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT event_type, count FROM event_counts WHERE shard_id = ? ORDER BY event_type",
		shardID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying event counts: %w", err)
	}
	defer rows.Close()

	var counts []EventCount
	for rows.Next() {
		var c EventCount
		if err := rows.Scan(&c.EventType, &c.Count); err != nil {
			return nil, fmt.Errorf("scanning event count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
