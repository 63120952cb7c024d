package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/vovakirdan/wiremeet-warden/internal/auth"
	"github.com/vovakirdan/wiremeet-warden/internal/proto"
	"github.com/vovakirdan/wiremeet-warden/internal/store"
)

func TestAdminAuth(t *testing.T) {
	ts := newTestServer(t)

	// No token
	resp := doRequest(ts, http.MethodGet, "/api/v1/rooms", "", nil)
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401 without token, got %d", resp.Code)
	}

	// Garbage token
	resp = doRequest(ts, http.MethodGet, "/api/v1/rooms", "garbage", nil)
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401 for garbage token, got %d", resp.Code)
	}

	// Valid token without the admin claim
	viewer, err := auth.GenerateToken(&auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	}, "viewer", false)
	if err != nil {
		t.Fatalf("failed to generate viewer token: %v", err)
	}
	resp = doRequest(ts, http.MethodGet, "/api/v1/rooms", viewer, nil)
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401 without admin claim, got %d", resp.Code)
	}

	// Operator token
	resp = doRequest(ts, http.MethodGet, "/api/v1/rooms", operatorToken(t, ts), nil)
	if resp.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var rooms []RoomResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &rooms); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(rooms) != 0 {
		t.Errorf("expected no tracked rooms, got %+v", rooms)
	}
}

func TestAdminRoomView(t *testing.T) {
	ts := newTestServer(t)
	hook := hookToken(t, testAPIKey, testAPISecret)
	operator := operatorToken(t, ts)
	room := "standup@conference.wiremeet.local"

	// A hostless join puts the room behind the waiting area.
	resp := doRequest(ts, http.MethodPost, "/api/v1/hooks/event", hook, occupantEvent(proto.HookOccupantJoined, room, "bob@wiremeet.local/web", "s-bob", "none"))
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = doRequest(ts, http.MethodGet, "/api/v1/rooms", operator, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var rooms []RoomResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &rooms); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(rooms) != 1 {
		t.Fatalf("expected one tracked room, got %+v", rooms)
	}
	if rooms[0].Room != room || rooms[0].HasHost || !rooms[0].MembersOnly || rooms[0].Occupants != 1 {
		t.Errorf("unexpected room summary: %+v", rooms[0])
	}

	// An owner arrival is adopted as host and opens the room.
	resp = doRequest(ts, http.MethodPost, "/api/v1/hooks/event", hook, occupantEvent(proto.HookOccupantJoined, room, "alice@wiremeet.local/web", "s-alice", "owner"))
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = doRequest(ts, http.MethodGet, "/api/v1/rooms/"+room, operator, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var detail RoomDetailResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &detail); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if !detail.HasHost || detail.Host != "alice@wiremeet.local/web" || detail.MembersOnly {
		t.Errorf("unexpected room detail: %+v", detail)
	}
	if len(detail.Occupants) != 2 || detail.Occupants[0].ID != "alice@wiremeet.local/web" {
		t.Errorf("unexpected occupants: %+v", detail.Occupants)
	}
	if detail.Occupants[0].Affiliation != "owner" {
		t.Errorf("expected owner affiliation, got %+v", detail.Occupants[0])
	}

	// Unknown rooms are not found.
	resp = doRequest(ts, http.MethodGet, "/api/v1/rooms/ghost@conference.wiremeet.local", operator, nil)
	if resp.Code != http.StatusNotFound {
		t.Errorf("expected status 404 for unknown room, got %d", resp.Code)
	}
}

func TestAdminRevalidateAndCancel(t *testing.T) {
	ts := newTestServer(t)
	hook := hookToken(t, testAPIKey, testAPISecret)
	operator := operatorToken(t, ts)
	room := "standup@conference.wiremeet.local"

	resp := doRequest(ts, http.MethodPost, "/api/v1/hooks/event", hook, occupantEvent(proto.HookOccupantJoined, room, "bob@wiremeet.local/web", "s-bob", "none"))
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d: %s", resp.Code, resp.Body.String())
	}

	// Revalidating a tracked room is accepted.
	resp = doRequest(ts, http.MethodPost, "/api/v1/rooms/"+room+"/revalidate", operator, nil)
	if resp.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d: %s", resp.Code, resp.Body.String())
	}

	// Revalidating an unknown room is not found.
	resp = doRequest(ts, http.MethodPost, "/api/v1/rooms/ghost@conference.wiremeet.local/revalidate", operator, nil)
	if resp.Code != http.StatusNotFound {
		t.Errorf("expected status 404 for unknown room, got %d", resp.Code)
	}

	// Nothing is scheduled, so there is nothing to cancel.
	resp = doRequest(ts, http.MethodPost, "/api/v1/rooms/"+room+"/destruction/cancel", operator, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var cancel CancelResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &cancel); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if cancel.Cancelled {
		t.Errorf("expected cancelled=false, got %+v", cancel)
	}
}

func TestRoomEventsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	operator := operatorToken(t, ts)
	room := "retro@conference.wiremeet.local"

	kinds := []store.RoomEventKind{
		store.EventDestructionScheduled,
		store.EventDestructionCancelled,
		store.EventHostGranted,
	}
	for i, kind := range kinds {
		ev := &store.RoomEvent{
			RoomID:     room,
			Kind:       kind,
			OccupantID: "alice@wiremeet.local/web",
			Detail:     fmt.Sprintf("step %d", i),
		}
		if err := ts.store.RecordRoomEvent(context.Background(), ev); err != nil {
			t.Fatalf("failed to record event: %v", err)
		}
	}

	resp := doRequest(ts, http.MethodGet, "/api/v1/rooms/"+room+"/events", operator, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var events []RoomEventResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &events); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected three events, got %+v", events)
	}
	if events[0].Kind != string(store.EventHostGranted) {
		t.Errorf("expected newest event first, got %+v", events[0])
	}
	if events[0].At == "" || events[0].Occupant != "alice@wiremeet.local/web" {
		t.Errorf("unexpected event record: %+v", events[0])
	}

	// The limit parameter truncates the result.
	resp = doRequest(ts, http.MethodGet, "/api/v1/rooms/"+room+"/events?limit=1", operator, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	events = nil
	if err := json.Unmarshal(resp.Body.Bytes(), &events); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(events) != 1 || events[0].Kind != string(store.EventHostGranted) {
		t.Errorf("expected the newest event only, got %+v", events)
	}

	// Bad limit values are rejected.
	resp = doRequest(ts, http.MethodGet, "/api/v1/rooms/"+room+"/events?limit=nope", operator, nil)
	if resp.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for bad limit, got %d", resp.Code)
	}

	// Unknown rooms have no history.
	resp = doRequest(ts, http.MethodGet, "/api/v1/rooms/ghost@conference.wiremeet.local/events", operator, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	events = nil
	if err := json.Unmarshal(resp.Body.Bytes(), &events); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected no events, got %+v", events)
	}
}
