package core

import "strings"

// RoomID is the address of a conference room on the room server.
type RoomID string

func (r RoomID) String() string { return string(r) }

// OccupantID is a room-scoped identity: bare address plus the connection
// resource, e.g. "alice@wiremeet.local/laptop".
type OccupantID string

func (o OccupantID) String() string { return string(o) }

// Bare returns the identity without the resource part.
func (o OccupantID) Bare() string {
	bare, _, _ := strings.Cut(string(o), "/")
	return bare
}

// Resource returns the per-connection resource part, if any.
func (o OccupantID) Resource() string {
	_, res, _ := strings.Cut(string(o), "/")
	return res
}

// Domain returns the domain of the bare identity.
func (o OccupantID) Domain() string {
	_, domain, ok := strings.Cut(o.Bare(), "@")
	if !ok {
		return ""
	}
	return domain
}

// SessionID identifies one live connection to the room server.
type SessionID string

// Affiliation is the long-lived privilege level of an occupant in a room.
type Affiliation string

const (
	AffiliationNone   Affiliation = "none"
	AffiliationMember Affiliation = "member"
	AffiliationOwner  Affiliation = "owner"
)

// Role is the in-room role of a present occupant.
type Role string

const (
	RoleVisitor     Role = "visitor"
	RoleParticipant Role = "participant"
	RoleModerator   Role = "moderator"
)

// DestroyReasonNoModerator is the reason attached to teardown of rooms that
// never kept a valid host. The string is part of the room-server contract.
const DestroyReasonNoModerator = "no-moderator-present"

// Occupant is a participant as seen by the controller. Created from room
// server events, dropped on leave, never persisted.
type Occupant struct {
	ID          OccupantID
	Nick        string
	Role        Role
	Affiliation Affiliation
	Session     SessionID
}

// DisplayName returns the best human-facing name for the occupant.
func (o Occupant) DisplayName() string {
	if o.Nick != "" {
		return o.Nick
	}
	return o.ID.Bare()
}

// RoomState is the controller-owned view of one tracked room. Only the
// controller goroutine touches it.
type RoomState struct {
	ID          RoomID
	HasHost     bool
	Host        OccupantID
	MembersOnly bool
	Occupants   map[OccupantID]Occupant
}

func newRoomState(id RoomID) *RoomState {
	return &RoomState{
		ID:        id,
		Occupants: make(map[OccupantID]Occupant),
	}
}

// Exemptions names identities and rooms that stay outside host election.
type Exemptions struct {
	// ServiceDomain hosts administrative identities (the conference focus,
	// recording bots). Occupants from it never count as participants.
	ServiceDomain string
	// HealthRoomPrefixes mark synthetic rooms created by monitoring probes.
	HealthRoomPrefixes []string
}

// ServiceIdentity reports whether the occupant is an administrative identity.
func (e Exemptions) ServiceIdentity(occ OccupantID) bool {
	return e.ServiceDomain != "" && occ.Domain() == e.ServiceDomain
}

// SyntheticRoom reports whether the room is a monitoring artifact.
func (e Exemptions) SyntheticRoom(room RoomID) bool {
	for _, prefix := range e.HealthRoomPrefixes {
		if prefix != "" && strings.HasPrefix(string(room), prefix) {
			return true
		}
	}
	return false
}
