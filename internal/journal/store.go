// Package journal persists session lifecycle events so operators can audit
// which clients connected and why their sessions ended.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Event names for session lifecycle records
const (
	EventHandshake = "handshake"
	EventClosed    = "closed"
	EventEvicted   = "evicted"
)

// Entry is one persisted session lifecycle event
type Entry struct {
	ID            string
	SessionID     string
	Event         string
	Reason        string
	ClientName    string
	ClientVersion string
	CreatedAt     time.Time
}

// Store handles journal persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a journal store with a SQLite backend
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "journal.db")
	// Enable WAL mode and busy timeout for better concurrent access
	db, err := sql.Open("sqlite", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS session_events (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		event TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		client_name TEXT NOT NULL DEFAULT '',
		client_version TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_session_events_session ON session_events(session_id);
	CREATE INDEX IF NOT EXISTS idx_session_events_created ON session_events(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts one lifecycle event
func (s *Store) Record(entry *Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO session_events (id, session_id, event, reason, client_name, client_version, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.SessionID, entry.Event, entry.Reason,
		entry.ClientName, entry.ClientVersion, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record journal entry: %w", err)
	}
	return nil
}

// BySession returns all events for one session, oldest first
func (s *Store) BySession(sessionID string) ([]*Entry, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, event, reason, client_name, client_version, created_at
		 FROM session_events WHERE session_id = ? ORDER BY created_at ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanEntries(rows)
}

// Recent returns the newest events up to limit
func (s *Store) Recent(limit int) ([]*Entry, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, event, reason, client_name, client_version, created_at
		 FROM session_events ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanEntries(rows)
}

// DeleteOlderThan removes entries created before cutoff and returns the
// number deleted
func (s *Store) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM session_events WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune journal: %w", err)
	}
	return res.RowsAffected()
}

func scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Event, &e.Reason, &e.ClientName, &e.ClientVersion, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
