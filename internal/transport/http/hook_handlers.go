package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiremeet-warden/internal/core"
	"github.com/vovakirdan/wiremeet-warden/internal/proto"
)

// HookHandlers receives the room server's webhook deliveries. The room
// server posts one event at a time per room and waits for the response, so
// these handlers never reorder a room's history.
type HookHandlers struct {
	ctrl *core.Controller
	log  *zerolog.Logger
}

// NewHookHandlers creates a new hook handlers instance.
func NewHookHandlers(ctrl *core.Controller, logger *zerolog.Logger) *HookHandlers {
	return &HookHandlers{
		ctrl: ctrl,
		log:  logger,
	}
}

// PreJoin answers an admission check for one occupant.
// POST /api/v1/hooks/prejoin
func (h *HookHandlers) PreJoin(c *gin.Context) {
	var ev proto.HookEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		h.log.Debug().Err(err).Msg("invalid prejoin event")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if ev.Type != proto.HookOccupantPreJoin {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unexpected event type"})
		return
	}
	if ev.Room == "" || ev.Occupant == nil || ev.Occupant.ID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "room and occupant are required"})
		return
	}

	dec, err := h.ctrl.PreJoin(c.Request.Context(), core.RoomID(ev.Room), occupantFromInfo(ev.Occupant))
	if err != nil {
		// The room server must not stall admissions on warden trouble.
		h.log.Warn().Err(err).Str("room", ev.Room).Msg("prejoin check failed, admitting")
		c.JSON(http.StatusOK, proto.PreJoinDecision{Admit: true})
		return
	}

	resp := proto.PreJoinDecision{
		Admit:       dec.Admit,
		MembersOnly: dec.MembersOnly,
	}
	if dec.MembersOnly {
		resp.Reason = "waiting-for-host"
	}
	c.JSON(http.StatusOK, resp)
}

// Event applies one room lifecycle event.
// POST /api/v1/hooks/event
func (h *HookHandlers) Event(c *gin.Context) {
	var ev proto.HookEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		h.log.Debug().Err(err).Msg("invalid hook event")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ctx := c.Request.Context()

	var err error
	switch ev.Type {
	case proto.HookOccupantJoined:
		if ev.Room == "" || ev.Occupant == nil || ev.Occupant.ID == "" {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "room and occupant are required"})
			return
		}
		err = h.ctrl.OccupantJoined(ctx, core.RoomID(ev.Room), occupantFromInfo(ev.Occupant))
	case proto.HookOccupantLeft:
		if ev.Room == "" || ev.Occupant == nil || ev.Occupant.ID == "" {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "room and occupant are required"})
			return
		}
		err = h.ctrl.OccupantLeft(ctx, core.RoomID(ev.Room), occupantFromInfo(ev.Occupant))
	case proto.HookSessionClosed:
		if ev.Session == "" {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "session is required"})
			return
		}
		err = h.ctrl.SessionClosed(ctx, core.SessionID(ev.Session))
	case proto.HookRoomClosed:
		if ev.Room == "" {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "room is required"})
			return
		}
		err = h.ctrl.RoomClosed(ctx, core.RoomID(ev.Room))
	default:
		// Unknown kinds are acknowledged so newer room-server versions
		// never get stuck retrying a delivery we will not handle.
		h.log.Debug().Str("type", ev.Type).Msg("ignoring unknown hook event")
		c.Status(http.StatusNoContent)
		return
	}

	if err != nil {
		h.log.Warn().Err(err).Str("type", ev.Type).Str("room", ev.Room).Msg("hook event not applied")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "event not applied"})
		return
	}

	c.Status(http.StatusNoContent)
}
