package core

import "context"

// RoomServer abstracts the room server's admin surface for the controller.
// This interface allows the controller to apply election outcomes without
// depending on the REST client implementation.
type RoomServer interface {
	// Occupants lists the current occupants of a room. Used to rebuild
	// state when an event references a room the warden does not track.
	Occupants(ctx context.Context, room RoomID) ([]Occupant, error)

	// SetAffiliation changes an occupant's long-lived privilege in a room.
	SetAffiliation(ctx context.Context, room RoomID, occupant OccupantID, affiliation Affiliation) error

	// SetRole changes an occupant's in-room role.
	SetRole(ctx context.Context, room RoomID, occupant OccupantID, role Role) error

	// SetMembersOnly enables or disables the waiting area for a room.
	SetMembersOnly(ctx context.Context, room RoomID, enabled bool) error

	// DestroyRoom asks the room server to tear the room down.
	DestroyRoom(ctx context.Context, room RoomID, reason string) error
}

// EligibilityChecker asks the entitlement oracle whether the user behind a
// session is allowed to host meetings.
type EligibilityChecker interface {
	// CheckEligibility returns whether the session's user may host. An error
	// means the answer is unknown; callers treat that as "not eligible now".
	CheckEligibility(ctx context.Context, session SessionID) (bool, error)
}
