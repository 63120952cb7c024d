package core

import (
	"fmt"
	"time"
)

// Notifier delivers human-facing announcements through the system-chat feed.
// Implementations must return quickly and never surface delivery failures to
// the caller; election decisions do not depend on notifications landing.
type Notifier interface {
	// Broadcast sends a system message to everyone in the room.
	Broadcast(room RoomID, text, displayName string)

	// Notify sends a system message to a single occupant.
	Notify(room RoomID, occupant OccupantID, text, displayName string)
}

func destructionWarningText(delay time.Duration) string {
	return fmt.Sprintf("No meeting host has joined. This room will be closed in %s unless a host arrives.", formatDelay(delay))
}

func destructionCancelledText() string {
	return "A meeting host is present. The scheduled room closure has been cancelled."
}

func hostArrivedText(name string) string {
	return fmt.Sprintf("%s joined as the meeting host. The waiting area is now open.", name)
}

func waitingForHostText() string {
	return "The meeting host has not joined yet."
}

// formatDelay renders a duration the way people say it: whole minutes as
// minutes, everything else as seconds.
func formatDelay(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		minutes := int(d / time.Minute)
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	seconds := int(d / time.Second)
	if seconds == 1 {
		return "1 second"
	}
	return fmt.Sprintf("%d seconds", seconds)
}
