package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/livekit/protocol/auth"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiremeet-warden/internal/core"
	"github.com/vovakirdan/wiremeet-warden/internal/proto"
)

const (
	identity      = "warden"
	tokenValidity = time.Minute
)

// ErrRoomNotFound is returned when the room server does not know the room.
var ErrRoomNotFound = errors.New("room not found")

// Client talks to the room server's admin REST API. Every request carries a
// short-lived admin token scoped to the room it touches.
type Client struct {
	baseURL   string
	apiKey    string
	apiSecret string
	http      *http.Client
	log       *zerolog.Logger
}

var _ core.RoomServer = (*Client)(nil)

// New creates an admin API client.
func New(baseURL, apiKey, apiSecret string, timeout time.Duration, logger *zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:   baseURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		http:      &http.Client{Timeout: timeout},
		log:       logger,
	}
}

type occupantsResponse struct {
	Occupants []proto.OccupantInfo `json:"occupants"`
}

type affiliationRequest struct {
	Affiliation string `json:"affiliation"`
}

type roleRequest struct {
	Role string `json:"role"`
}

type membersOnlyRequest struct {
	Enabled bool `json:"enabled"`
}

type destroyRequest struct {
	Reason string `json:"reason"`
}

// Occupants lists the room's current occupants.
func (c *Client) Occupants(ctx context.Context, room core.RoomID) ([]core.Occupant, error) {
	var resp occupantsResponse
	if err := c.do(ctx, http.MethodGet, room, "occupants", nil, &resp); err != nil {
		return nil, err
	}
	occs := make([]core.Occupant, 0, len(resp.Occupants))
	for _, info := range resp.Occupants {
		occs = append(occs, core.Occupant{
			ID:          core.OccupantID(info.ID),
			Nick:        info.Nick,
			Role:        core.Role(info.Role),
			Affiliation: core.Affiliation(info.Affiliation),
			Session:     core.SessionID(info.Session),
		})
	}
	return occs, nil
}

// SetAffiliation changes an occupant's long-lived privilege in the room.
func (c *Client) SetAffiliation(ctx context.Context, room core.RoomID, occ core.OccupantID, aff core.Affiliation) error {
	action := "occupants/" + url.PathEscape(string(occ)) + "/affiliation"
	return c.do(ctx, http.MethodPut, room, action, affiliationRequest{Affiliation: string(aff)}, nil)
}

// SetRole changes an occupant's in-room role.
func (c *Client) SetRole(ctx context.Context, room core.RoomID, occ core.OccupantID, role core.Role) error {
	action := "occupants/" + url.PathEscape(string(occ)) + "/role"
	return c.do(ctx, http.MethodPut, room, action, roleRequest{Role: string(role)}, nil)
}

// SetMembersOnly opens or closes the room's waiting area.
func (c *Client) SetMembersOnly(ctx context.Context, room core.RoomID, enabled bool) error {
	return c.do(ctx, http.MethodPut, room, "members-only", membersOnlyRequest{Enabled: enabled}, nil)
}

// DestroyRoom tears the room down with the given reason.
func (c *Client) DestroyRoom(ctx context.Context, room core.RoomID, reason string) error {
	return c.do(ctx, http.MethodPost, room, "destroy", destroyRequest{Reason: reason}, nil)
}

func (c *Client) do(ctx context.Context, method string, room core.RoomID, action string, in, out any) error {
	var body *bytes.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", action, err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	endpoint := fmt.Sprintf("%s/admin/v1/rooms/%s/%s", c.baseURL, url.PathEscape(string(room)), action)
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", action, err)
	}

	token, err := c.adminToken(room)
	if err != nil {
		return fmt.Errorf("sign %s request: %w", action, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, action, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("room", string(room)).
		Str("action", action).
		Int("status", resp.StatusCode).
		Msg("room server request")

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, action, ErrRoomNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%s %s: unexpected status %d", method, action, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", action, err)
		}
	}
	return nil
}

// adminToken signs a short-lived room-scoped admin token.
func (c *Client) adminToken(room core.RoomID) (string, error) {
	at := auth.NewAccessToken(c.apiKey, c.apiSecret)
	grant := &auth.VideoGrant{
		RoomAdmin: true,
		Room:      string(room),
	}
	at.SetVideoGrant(grant).
		SetIdentity(identity).
		SetValidFor(tokenValidity)
	return at.ToJWT()
}
