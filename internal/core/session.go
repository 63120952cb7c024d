package core

import (
	"sync"
	"sync/atomic"
)

// Session is the per-connection state the warden keeps. The validation flag
// is upgrade-only: once a session proved host eligibility it stays eligible
// until the connection closes. It is never copied to another session.
type Session struct {
	id        SessionID
	validHost atomic.Bool
}

// ID returns the session identifier.
func (s *Session) ID() SessionID { return s.id }

// IsValidHost reports whether this session already passed an oracle check.
func (s *Session) IsValidHost() bool { return s.validHost.Load() }

// MarkValidHost records a positive oracle answer. Safe from any goroutine.
func (s *Session) MarkValidHost() { s.validHost.Store(true) }

// SessionDirectory resolves live sessions by id.
type SessionDirectory interface {
	Lookup(id SessionID) (*Session, bool)
}

// SessionTable tracks live sessions, seeded from room server events.
type SessionTable struct {
	mu       sync.RWMutex
	sessions map[SessionID]*Session
}

// NewSessionTable creates an empty session table.
func NewSessionTable() *SessionTable {
	return &SessionTable{sessions: make(map[SessionID]*Session)}
}

// Ensure returns the session with the given id, creating it if needed.
// Unknown and empty ids resolve to nil.
func (t *SessionTable) Ensure(id SessionID) *Session {
	if id == "" {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.sessions[id]; ok {
		return s
	}
	s := &Session{id: id}
	t.sessions[id] = s
	return s
}

// Lookup returns the session with the given id, if it is alive.
func (t *SessionTable) Lookup(id SessionID) (*Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[id]
	return s, ok
}

// Remove drops a closed session and whatever it had cached.
func (t *SessionTable) Remove(id SessionID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, id)
}

// Len returns the number of live sessions.
func (t *SessionTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

var _ SessionDirectory = (*SessionTable)(nil)
