package session

import (
	"errors"
	"sync"

	"github.com/deskmate-ai/deskmate/core"
)

// ErrSessionNotFound is returned when a session ID is not present in the
// store. Callers must create sessions explicitly before running turns on them.
var ErrSessionNotFound = errors.New("session not found")

// InMemoryStore is a volatile SessionStore implementation storing
// sessions in a process local map. It is safe for concurrent access and best
// suited for tests or ephemeral demo servers. Each returned session is cloned
// to prevent external mutation of internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
}

// NewInMemoryStore constructs an empty in‑memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*core.Session)}
}

// Create allocates a session with a generated ID owned by userID. The
// returned clone carries the ID callers use for all subsequent operations.
func (s *InMemoryStore) Create(userID string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := core.NewSession(core.NewID(), userID)
	s.sessions[sess.ID] = sess

	return sess.Clone(), nil
}

// Get returns a clone of an existing session or ErrSessionNotFound.
func (s *InMemoryStore) Get(sessionID string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	return sess.Clone(), nil
}

// AppendEvent adds an event to an existing session's history.
func (s *InMemoryStore) AppendEvent(sessionID string, ev core.Event) error {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()

	if !ok {
		return ErrSessionNotFound
	}

	sess.AddEvent(ev)

	return nil
}

// ApplyDelta merges a key/value delta into the session state.
func (s *InMemoryStore) ApplyDelta(sessionID string, delta map[string]interface{}) error {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()

	if !ok {
		return ErrSessionNotFound
	}

	sess.ApplyStateDelta(delta)

	return nil
}

// Delete removes a session. Deleting an unknown ID is a no-op.
func (s *InMemoryStore) Delete(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)

	return nil
}
