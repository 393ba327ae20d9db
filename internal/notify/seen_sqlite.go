package notify

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteSeenStore persists admitted identities so a restart does not
// republish notifications that are still in the unread directory.
type SQLiteSeenStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteSeenStore opens (or creates) the database at dbPath.
// Use ":memory:" for an in-memory database.
func NewSQLiteSeenStore(dbPath string) (*SQLiteSeenStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// one connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	store := &SQLiteSeenStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteSeenStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS seen_notifications (
		id TEXT PRIMARY KEY,
		seen_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_seen_at ON seen_notifications(seen_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Seen reports whether id was remembered at or after since.
func (s *SQLiteSeenStore) Seen(ctx context.Context, id string, since time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM seen_notifications WHERE id = ? AND seen_at >= ?`,
		id, since.UnixNano()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query seen notification: %w", err)
	}
	return n > 0, nil
}

// Remember stores id with its admission time.
func (s *SQLiteSeenStore) Remember(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO seen_notifications (id, seen_at) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET seen_at = excluded.seen_at`,
		id, at.UnixNano())
	if err != nil {
		return fmt.Errorf("remember notification: %w", err)
	}
	return nil
}

// Prune removes entries older than before, then keeps only the newest keep rows.
func (s *SQLiteSeenStore) Prune(ctx context.Context, before time.Time, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !before.IsZero() {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM seen_notifications WHERE seen_at < ?`, before.UnixNano()); err != nil {
			return fmt.Errorf("prune expired notifications: %w", err)
		}
	}
	if keep > 0 {
		if _, err := s.db.ExecContext(ctx, `
			DELETE FROM seen_notifications WHERE id NOT IN (
				SELECT id FROM seen_notifications ORDER BY seen_at DESC LIMIT ?
			)`, keep); err != nil {
			return fmt.Errorf("prune notifications over capacity: %w", err)
		}
	}
	return nil
}

// Count returns the number of stored entries.
func (s *SQLiteSeenStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM seen_notifications`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count notifications: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *SQLiteSeenStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
