package store

import (
	"context"
	"time"
)

// RoomEventKind classifies audit records.
type RoomEventKind string

const (
	EventHostGranted          RoomEventKind = "host_granted"
	EventHostHandover         RoomEventKind = "host_handover"
	EventHostLost             RoomEventKind = "host_lost"
	EventDestructionScheduled RoomEventKind = "destruction_scheduled"
	EventDestructionCancelled RoomEventKind = "destruction_cancelled"
	EventRoomDestroyed        RoomEventKind = "room_destroyed"
)

// RoomEvent is one audit record describing a room lifecycle transition.
type RoomEvent struct {
	ID         int64
	RoomID     string
	Kind       RoomEventKind
	OccupantID string
	Detail     string
	CreatedAt  time.Time
}

// Store persists the room lifecycle audit log.
type Store interface {
	// RecordRoomEvent appends one audit record. CreatedAt defaults to now.
	RecordRoomEvent(ctx context.Context, ev *RoomEvent) error

	// ListRoomEvents retrieves audit records for a room, newest first.
	ListRoomEvents(ctx context.Context, roomID string, limit int) ([]*RoomEvent, error)

	// Close closes the underlying database connection.
	Close() error
}
