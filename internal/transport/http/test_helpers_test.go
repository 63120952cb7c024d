package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	lkauth "github.com/livekit/protocol/auth"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiremeet-warden/internal/auth"
	"github.com/vovakirdan/wiremeet-warden/internal/config"
	"github.com/vovakirdan/wiremeet-warden/internal/core"
	"github.com/vovakirdan/wiremeet-warden/internal/proto"
	"github.com/vovakirdan/wiremeet-warden/internal/store"
	"github.com/vovakirdan/wiremeet-warden/internal/store/sqlite"
)

const (
	testAPIKey    = "testkey"
	testAPISecret = "testsecrettestsecrettestsecret12"
)

// stubRoomServer serves a canned occupant roster and accepts every mutation.
type stubRoomServer struct {
	mu        sync.Mutex
	occupants map[core.RoomID][]core.Occupant
	destroyed []core.RoomID
}

func newStubRoomServer() *stubRoomServer {
	return &stubRoomServer{occupants: make(map[core.RoomID][]core.Occupant)}
}

func (s *stubRoomServer) Occupants(_ context.Context, room core.RoomID) ([]core.Occupant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Occupant(nil), s.occupants[room]...), nil
}

func (s *stubRoomServer) SetAffiliation(context.Context, core.RoomID, core.OccupantID, core.Affiliation) error {
	return nil
}

func (s *stubRoomServer) SetRole(context.Context, core.RoomID, core.OccupantID, core.Role) error {
	return nil
}

func (s *stubRoomServer) SetMembersOnly(context.Context, core.RoomID, bool) error {
	return nil
}

func (s *stubRoomServer) DestroyRoom(_ context.Context, room core.RoomID, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = append(s.destroyed, room)
	return nil
}

// testServer wires a real controller and store behind the HTTP stack.
type testServer struct {
	handler http.Handler
	auth    *auth.Service
	store   store.Store
	rooms   *stubRoomServer
	ctrl    *core.Controller
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	testStore, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { testStore.Close() })

	authService := auth.NewService(&auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	})

	rooms := newStubRoomServer()
	disabledLogger := zerolog.New(nil)

	// Delays are long enough that no timer fires mid-test.
	ctrl := core.NewController(core.ControllerConfig{
		DestroyDelay: time.Hour,
		GraceDelay:   time.Hour,
		DisplayName:  "Wiremeet",
	}, rooms, nil, nil, testStore, &disabledLogger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go ctrl.Run(ctx)

	cfg := config.Default()
	cfg.RoomServer.APIKey = testAPIKey
	cfg.RoomServer.APISecret = testAPISecret

	server := NewServer(ctrl, authService, testStore, &cfg, &disabledLogger)

	return &testServer{
		handler: server.Handler,
		auth:    authService,
		store:   testStore,
		rooms:   rooms,
		ctrl:    ctrl,
	}
}

// doRequest runs one request through the router and records the response.
// A string body is sent verbatim, anything else is marshalled to JSON.
func doRequest(ts *testServer, method, target, token string, body any) *httptest.ResponseRecorder {
	var reqBody io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reqBody = bytes.NewBufferString(b)
		default:
			raw, _ := json.Marshal(body)
			reqBody = bytes.NewReader(raw)
		}
	}

	req := httptest.NewRequest(method, target, reqBody)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp := httptest.NewRecorder()
	ts.handler.ServeHTTP(resp, req)
	return resp
}

// hookToken signs a delivery token the way the room server does.
func hookToken(t *testing.T, key, secret string) string {
	t.Helper()

	token, err := lkauth.NewAccessToken(key, secret).
		SetIdentity("room-server").
		SetValidFor(time.Minute).
		ToJWT()
	if err != nil {
		t.Fatalf("failed to sign hook token: %v", err)
	}
	return token
}

// operatorToken issues an admin API token from the fixture's auth service.
func operatorToken(t *testing.T, ts *testServer) string {
	t.Helper()

	token, err := ts.auth.IssueToken("ops")
	if err != nil {
		t.Fatalf("failed to issue operator token: %v", err)
	}
	return token
}

func occupantEvent(eventType, room, occupant, session, affiliation string) proto.HookEvent {
	return proto.HookEvent{
		Type: eventType,
		Room: room,
		Occupant: &proto.OccupantInfo{
			ID:          occupant,
			Session:     session,
			Affiliation: affiliation,
		},
	}
}
