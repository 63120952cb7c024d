package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiremeet-warden/internal/core"
	"github.com/vovakirdan/wiremeet-warden/internal/store"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// AdminHandlers provides the operator-facing room inspection endpoints.
type AdminHandlers struct {
	ctrl  *core.Controller
	store store.Store
	log   *zerolog.Logger
}

// NewAdminHandlers creates a new admin handlers instance.
func NewAdminHandlers(ctrl *core.Controller, st store.Store, logger *zerolog.Logger) *AdminHandlers {
	return &AdminHandlers{
		ctrl:  ctrl,
		store: st,
		log:   logger,
	}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RoomResponse summarizes one tracked room.
type RoomResponse struct {
	Room        string `json:"room"`
	HasHost     bool   `json:"has_host"`
	Host        string `json:"host,omitempty"`
	MembersOnly bool   `json:"members_only"`
	Occupants   int    `json:"occupants"`
	DestroyAt   string `json:"destroy_at,omitempty"`
}

// RoomDetailResponse is the full view of one tracked room.
type RoomDetailResponse struct {
	Room        string             `json:"room"`
	HasHost     bool               `json:"has_host"`
	Host        string             `json:"host,omitempty"`
	MembersOnly bool               `json:"members_only"`
	Occupants   []OccupantResponse `json:"occupants"`
	DestroyAt   string             `json:"destroy_at,omitempty"`
}

// OccupantResponse describes one occupant of a room.
type OccupantResponse struct {
	ID          string `json:"id"`
	Nick        string `json:"nick,omitempty"`
	Role        string `json:"role,omitempty"`
	Affiliation string `json:"affiliation,omitempty"`
}

// RoomEventResponse is one audit record.
type RoomEventResponse struct {
	ID       int64  `json:"id"`
	Kind     string `json:"kind"`
	Occupant string `json:"occupant,omitempty"`
	Detail   string `json:"detail,omitempty"`
	At       string `json:"at"`
}

// CancelResponse reports whether a destruction schedule was cleared.
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// ListRooms returns every room the warden currently tracks.
// GET /api/v1/rooms
func (h *AdminHandlers) ListRooms(c *gin.Context) {
	infos, err := h.ctrl.Snapshot(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to snapshot rooms")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]RoomResponse, 0, len(infos))
	for _, info := range infos {
		response = append(response, roomSummaryFromInfo(info))
	}

	c.JSON(http.StatusOK, response)
}

// GetRoom returns the full state of one tracked room.
// GET /api/v1/rooms/:room
func (h *AdminHandlers) GetRoom(c *gin.Context) {
	room := core.RoomID(c.Param("room"))

	info, err := h.ctrl.RoomInfo(c.Request.Context(), room)
	if err != nil {
		if errors.Is(err, core.ErrRoomNotTracked) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not tracked"})
			return
		}
		h.log.Error().Err(err).Str("room", string(room)).Msg("failed to read room state")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, roomDetailFromInfo(info))
}

// RoomEvents returns the audit trail of one room, newest first.
// GET /api/v1/rooms/:room/events
func (h *AdminHandlers) RoomEvents(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "auditing disabled"})
		return
	}

	limit := defaultEventLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = parsed
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}

	room := c.Param("room")
	events, err := h.store.ListRoomEvents(c.Request.Context(), room, limit)
	if err != nil {
		h.log.Error().Err(err).Str("room", room).Msg("failed to list room events")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]RoomEventResponse, 0, len(events))
	for _, ev := range events {
		response = append(response, eventResponseFrom(ev))
	}

	c.JSON(http.StatusOK, response)
}

// CancelDestruction clears a pending destruction schedule, if one is armed.
// POST /api/v1/rooms/:room/destruction/cancel
func (h *AdminHandlers) CancelDestruction(c *gin.Context) {
	room := core.RoomID(c.Param("room"))

	cancelled, err := h.ctrl.CancelDestruction(c.Request.Context(), room)
	if err != nil {
		h.log.Error().Err(err).Str("room", string(room)).Msg("failed to cancel destruction")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().
		Str("room", string(room)).
		Str("operator", c.GetString(ContextKeyOperator)).
		Bool("cancelled", cancelled).
		Msg("destruction cancel requested")
	c.JSON(http.StatusOK, CancelResponse{Cancelled: cancelled})
}

// Revalidate re-runs host validation for every occupant of a hostless room.
// POST /api/v1/rooms/:room/revalidate
func (h *AdminHandlers) Revalidate(c *gin.Context) {
	room := core.RoomID(c.Param("room"))

	if err := h.ctrl.Revalidate(c.Request.Context(), room); err != nil {
		if errors.Is(err, core.ErrRoomNotTracked) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not tracked"})
			return
		}
		h.log.Error().Err(err).Str("room", string(room)).Msg("failed to revalidate room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().
		Str("room", string(room)).
		Str("operator", c.GetString(ContextKeyOperator)).
		Msg("revalidation requested")
	c.Status(http.StatusNoContent)
}
