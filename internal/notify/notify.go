package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiremeet-warden/internal/core"
	"github.com/vovakirdan/wiremeet-warden/internal/proto"
)

const sendTimeout = 5 * time.Second

// Transport delivers one chat frame to the room server's system-chat feed.
type Transport interface {
	Send(ctx context.Context, frame proto.ChatFrame) error
}

type announcement struct {
	room        core.RoomID
	to          core.OccupantID
	text        string
	displayName string
}

// Notifier queues announcements and delivers them off the caller's
// goroutine. Callers never block and never see delivery errors; when the
// queue is full the announcement is dropped with a warning.
type Notifier struct {
	transport Transport
	queue     chan announcement
	log       *zerolog.Logger
}

var _ core.Notifier = (*Notifier)(nil)

// New creates a notifier with the given queue capacity.
func New(transport Transport, queueSize int, logger *zerolog.Logger) *Notifier {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Notifier{
		transport: transport,
		queue:     make(chan announcement, queueSize),
		log:       logger,
	}
}

// Broadcast queues a system message for everyone in the room.
func (n *Notifier) Broadcast(room core.RoomID, text, displayName string) {
	n.enqueue(announcement{room: room, text: text, displayName: displayName})
}

// Notify queues a system message for a single occupant.
func (n *Notifier) Notify(room core.RoomID, occ core.OccupantID, text, displayName string) {
	n.enqueue(announcement{room: room, to: occ, text: text, displayName: displayName})
}

func (n *Notifier) enqueue(msg announcement) {
	select {
	case n.queue <- msg:
	default:
		n.log.Warn().
			Str("room", string(msg.room)).
			Msg("announcement dropped: queue full")
	}
}

// Run delivers queued announcements until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-n.queue:
			n.deliver(ctx, msg)
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, msg announcement) {
	frame := proto.ChatFrame{
		ID:   uuid.NewString(),
		Room: string(msg.room),
		To:   string(msg.to),
		Payload: proto.SystemMessage{
			DisplayName: msg.displayName,
			Type:        proto.SystemMessageType,
			Message:     msg.text,
		},
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := n.transport.Send(sendCtx, frame); err != nil {
		n.log.Warn().Err(err).
			Str("room", string(msg.room)).
			Str("occupant", string(msg.to)).
			Msg("announcement delivery failed")
		return
	}
	n.log.Debug().
		Str("room", string(msg.room)).
		Str("id", frame.ID).
		Msg("announcement delivered")
}
