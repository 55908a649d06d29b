// Durable SQLite-backed history store.
//
// Information Hiding:
// - Schema and capacity-eviction SQL encapsulated
// - Thread-safe via sql.DB's built-in connection pooling

package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store on a SQLite database file so channel
// history survives restarts. Capacity is enforced per channel by
// deleting the oldest rows on append.
type SQLiteStore struct {
	db       *sql.DB
	capacity int
}

// OpenSQLite opens or creates a history database at the given path.
// Creates parent directories if they don't exist.
func OpenSQLite(path string, capacity int) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	return newSQLiteStore(db, capacity)
}

// NewSQLiteInMemory creates an in-memory store (useful for testing).
func NewSQLiteInMemory(capacity int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}
	return newSQLiteStore(db, capacity)
}

func newSQLiteStore(db *sql.DB, capacity int) (*SQLiteStore, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	store := &SQLiteStore{db: db, capacity: capacity}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			channel_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			display_name TEXT NOT NULL,
			content TEXT NOT NULL,
			source TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_history_channel
		ON history(channel_id, id);
	`
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Append records an entry and trims the channel to capacity.
func (s *SQLiteStore) Append(ctx context.Context, channelID string, entry Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback is a no-op after Commit.
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO history (channel_id, user_id, display_name, content, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		channelID, entry.UserID, entry.DisplayName, entry.Content, entry.Source, entry.Timestamp.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM history
		WHERE channel_id = ? AND id NOT IN (
			SELECT id FROM history WHERE channel_id = ? ORDER BY id DESC LIMIT ?
		)`,
		channelID, channelID, s.capacity)
	if err != nil {
		return fmt.Errorf("failed to trim channel history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Entries returns the channel's entries oldest-first.
func (s *SQLiteStore) Entries(ctx context.Context, channelID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, display_name, content, source, created_at
		FROM history WHERE channel_id = ? ORDER BY id ASC`,
		channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var createdAt int64
		if err := rows.Scan(&e.UserID, &e.DisplayName, &e.Content, &e.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.Timestamp = time.UnixMilli(createdAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}
	return entries, nil
}

// Clear removes all entries for the channel.
func (s *SQLiteStore) Clear(ctx context.Context, channelID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM history WHERE channel_id = ?", channelID)
	if err != nil {
		return fmt.Errorf("failed to clear channel history: %w", err)
	}
	return nil
}

var _ Store = (*SQLiteStore)(nil)
