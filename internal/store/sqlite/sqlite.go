package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/wiremeet-warden/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS room_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	occupant_id TEXT NOT NULL DEFAULT '',
	detail TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_room_events_room ON room_events(room_id, id);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply an alternate schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Set connection pool limits before setup
	db.SetMaxOpenConns(1) // SQLite works best with single connection
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordRoomEvent appends one audit record. CreatedAt defaults to now.
func (s *SQLiteStore) RecordRoomEvent(ctx context.Context, ev *store.RoomEvent) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO room_events (room_id, kind, occupant_id, detail, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, ev.RoomID, string(ev.Kind), ev.OccupantID, ev.Detail, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert room event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	ev.ID = id
	return nil
}

// ListRoomEvents retrieves audit records for a room, newest first.
func (s *SQLiteStore) ListRoomEvents(ctx context.Context, roomID string, limit int) ([]*store.RoomEvent, error) {
	query := `
		SELECT id, room_id, kind, occupant_id, detail, created_at
		FROM room_events
		WHERE room_id = ?
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("query room events: %w", err)
	}
	defer rows.Close()

	var events []*store.RoomEvent
	for rows.Next() {
		var ev store.RoomEvent
		var kind string
		if err := rows.Scan(&ev.ID, &ev.RoomID, &kind, &ev.OccupantID, &ev.Detail, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan room event: %w", err)
		}
		ev.Kind = store.RoomEventKind(kind)
		events = append(events, &ev)
	}

	return events, rows.Err()
}

// Ensure SQLiteStore implements store.Store
var _ store.Store = (*SQLiteStore)(nil)
