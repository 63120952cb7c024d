package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiremeet-warden/internal/store"
)

// waitFor polls cond until it holds or the deadline passes. Timer callbacks
// and validator goroutines land on the controller loop asynchronously, so
// tests observe outcomes instead of asserting immediately.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// settle round-trips a snapshot through the controller loop. Once it
// returns, every command enqueued before the call has been handled, which
// makes it safe to advance the mock clock past timers those commands armed.
func settle(t *testing.T, ctx context.Context, c *Controller) {
	t.Helper()

	if _, err := c.Snapshot(ctx); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
}

// ---- room server fake ----

type affiliationCall struct {
	Room        RoomID
	Occupant    OccupantID
	Affiliation Affiliation
}

type roleCall struct {
	Room     RoomID
	Occupant OccupantID
	Role     Role
}

type membersOnlyCall struct {
	Room    RoomID
	Enabled bool
}

type destroyCall struct {
	Room   RoomID
	Reason string
}

type fakeRoomServer struct {
	mu        sync.Mutex
	occupants map[RoomID][]Occupant

	affiliations []affiliationCall
	roles        []roleCall
	membersOnly  []membersOnlyCall
	destroys     []destroyCall

	affiliationErr error
	destroyErr     error
}

var _ RoomServer = (*fakeRoomServer)(nil)

func newFakeRoomServer() *fakeRoomServer {
	return &fakeRoomServer{occupants: make(map[RoomID][]Occupant)}
}

func (f *fakeRoomServer) seed(room RoomID, occs ...Occupant) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.occupants[room] = occs
}

func (f *fakeRoomServer) Occupants(ctx context.Context, room RoomID) ([]Occupant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Occupant(nil), f.occupants[room]...), nil
}

func (f *fakeRoomServer) SetAffiliation(ctx context.Context, room RoomID, occ OccupantID, aff Affiliation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.affiliations = append(f.affiliations, affiliationCall{Room: room, Occupant: occ, Affiliation: aff})
	return f.affiliationErr
}

func (f *fakeRoomServer) SetRole(ctx context.Context, room RoomID, occ OccupantID, role Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles = append(f.roles, roleCall{Room: room, Occupant: occ, Role: role})
	return nil
}

func (f *fakeRoomServer) SetMembersOnly(ctx context.Context, room RoomID, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.membersOnly = append(f.membersOnly, membersOnlyCall{Room: room, Enabled: enabled})
	return nil
}

func (f *fakeRoomServer) DestroyRoom(ctx context.Context, room RoomID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroys = append(f.destroys, destroyCall{Room: room, Reason: reason})
	return f.destroyErr
}

func (f *fakeRoomServer) affiliationCalls() []affiliationCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]affiliationCall(nil), f.affiliations...)
}

func (f *fakeRoomServer) destroyCalls() []destroyCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]destroyCall(nil), f.destroys...)
}

func (f *fakeRoomServer) membersOnlyCalls() []membersOnlyCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]membersOnlyCall(nil), f.membersOnly...)
}

// ---- entitlement oracle fake ----

type fakeOracle struct {
	mu       sync.Mutex
	eligible map[SessionID]bool
	calls    map[SessionID]int
	err      error

	// gate, when set, blocks every check until the channel is closed.
	gate chan struct{}
}

var _ EligibilityChecker = (*fakeOracle)(nil)

func newFakeOracle() *fakeOracle {
	return &fakeOracle{
		eligible: make(map[SessionID]bool),
		calls:    make(map[SessionID]int),
	}
}

func (f *fakeOracle) allow(session SessionID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.eligible[session] = true
}

func (f *fakeOracle) CheckEligibility(ctx context.Context, session SessionID) (bool, error) {
	f.mu.Lock()
	f.calls[session]++
	gate := f.gate
	eligible := f.eligible[session]
	err := f.err
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	if err != nil {
		return false, err
	}
	return eligible, nil
}

func (f *fakeOracle) callCount(session SessionID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[session]
}

// ---- notifier fake ----

type notice struct {
	Room        RoomID
	Occupant    OccupantID
	Text        string
	DisplayName string
}

type fakeNotifier struct {
	mu      sync.Mutex
	notices []notice
}

var _ Notifier = (*fakeNotifier)(nil)

func (f *fakeNotifier) Broadcast(room RoomID, text, displayName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, notice{Room: room, Text: text, DisplayName: displayName})
}

func (f *fakeNotifier) Notify(room RoomID, occ OccupantID, text, displayName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, notice{Room: room, Occupant: occ, Text: text, DisplayName: displayName})
}

func (f *fakeNotifier) sent() []notice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notice(nil), f.notices...)
}

func (f *fakeNotifier) contains(room RoomID, text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.notices {
		if n.Room == room && n.Text == text {
			return true
		}
	}
	return false
}

// ---- audit store fake ----

type fakeStore struct {
	mu     sync.Mutex
	events []store.RoomEvent
}

var _ store.Store = (*fakeStore)(nil)

func (f *fakeStore) RecordRoomEvent(ctx context.Context, ev *store.RoomEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev.ID = int64(len(f.events) + 1)
	f.events = append(f.events, *ev)
	return nil
}

func (f *fakeStore) ListRoomEvents(ctx context.Context, roomID string, limit int) ([]*store.RoomEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*store.RoomEvent, 0, limit)
	for i := len(f.events) - 1; i >= 0 && len(out) < limit; i-- {
		if f.events[i].RoomID == roomID {
			ev := f.events[i]
			out = append(out, &ev)
		}
	}
	return out, nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) kinds(room RoomID) []store.RoomEventKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.RoomEventKind
	for _, ev := range f.events {
		if ev.RoomID == string(room) {
			out = append(out, ev.Kind)
		}
	}
	return out
}

// ---- controller fixture ----

type fixture struct {
	ctrl   *Controller
	clk    *clock.Mock
	rooms  *fakeRoomServer
	oracle *fakeOracle
	notes  *fakeNotifier
	events *fakeStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	fx := &fixture{
		clk:    clock.NewMock(),
		rooms:  newFakeRoomServer(),
		oracle: newFakeOracle(),
		notes:  &fakeNotifier{},
		events: &fakeStore{},
	}
	disabledLogger := zerolog.New(nil)
	fx.ctrl = NewController(ControllerConfig{
		DestroyDelay:    2 * time.Minute,
		GraceDelay:      2 * time.Second,
		RecheckInterval: time.Second,
		DisplayName:     "Wiremeet",
		Exempt: Exemptions{
			ServiceDomain:      "auth.wiremeet.local",
			HealthRoomPrefixes: []string{"__healthcheck"},
		},
		Clock: fx.clk,
	}, fx.rooms, fx.oracle, fx.notes, fx.events, &disabledLogger)
	return fx
}

func occupant(id, session string) Occupant {
	return Occupant{
		ID:          OccupantID(id),
		Nick:        OccupantID(id).Bare(),
		Role:        RoleParticipant,
		Affiliation: AffiliationNone,
		Session:     SessionID(session),
	}
}
