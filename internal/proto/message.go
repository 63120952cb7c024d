package proto

// Webhook event types delivered by the room server.
const (
	HookOccupantPreJoin = "occupant_prejoin"
	HookOccupantJoined  = "occupant_joined"
	HookOccupantLeft    = "occupant_left"
	HookSessionClosed   = "session_closed"
	HookRoomClosed      = "room_closed"
)

// SystemMessageType marks warden announcements in the system-chat feed.
const SystemMessageType = "system_chat_message"

// HookEvent is the envelope for room-server webhook deliveries. The room
// server posts one event at a time per room and waits for the response, so
// arrival order is processing order.
type HookEvent struct {
	ID       string        `json:"id,omitempty"`
	Type     string        `json:"type" binding:"required"`
	Room     string        `json:"room,omitempty"`
	Occupant *OccupantInfo `json:"occupant,omitempty"`
	Session  string        `json:"session,omitempty"`
	At       int64         `json:"at,omitempty"`
}

// OccupantInfo describes the occupant an event refers to.
type OccupantInfo struct {
	ID          string `json:"id"`
	Nick        string `json:"nick,omitempty"`
	Role        string `json:"role,omitempty"`
	Affiliation string `json:"affiliation,omitempty"`
	Session     string `json:"session,omitempty"`
}

// PreJoinDecision answers an occupant_prejoin event. MembersOnly asks the
// room server to put the room behind the waiting area before admitting.
type PreJoinDecision struct {
	Admit       bool   `json:"admit"`
	MembersOnly bool   `json:"members_only"`
	Reason      string `json:"reason,omitempty"`
}

// ChatFrame is one message on the system-chat feed socket.
type ChatFrame struct {
	ID      string        `json:"id"`
	Room    string        `json:"room"`
	To      string        `json:"to,omitempty"`
	Payload SystemMessage `json:"payload"`
}

// SystemMessage is the payload participants see. The field names are part of
// the room-server contract and must not change.
type SystemMessage struct {
	DisplayName string `json:"displayName"`
	Type        string `json:"type"`
	Message     string `json:"message"`
}
