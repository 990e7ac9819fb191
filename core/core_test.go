package core

import (
	"context"
)

type testLogger struct{}

func (l testLogger) Debug(string, ...interface{}) {}
func (l testLogger) Info(string, ...interface{})  {}
func (l testLogger) Warn(string, ...interface{})  {}
func (l testLogger) Error(string, ...interface{}) {}

type mockSessionStore struct {
	sessions map[string]*Session
	applied  map[string]map[string]interface{}
	appended map[string][]Event
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{sessions: map[string]*Session{}}
}

func (m *mockSessionStore) Create(userID string) (*Session, error) {
	s := NewSession(NewID(), userID)
	m.sessions[s.ID] = s
	return s, nil
}

func (m *mockSessionStore) Get(id string) (*Session, error) {
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	s := NewSession(id, "test-user")
	m.sessions[id] = s
	return s, nil
}

func (m *mockSessionStore) AppendEvent(sessionID string, ev Event) error {
	if m.appended == nil {
		m.appended = map[string][]Event{}
	}
	m.appended[sessionID] = append(m.appended[sessionID], ev)
	if s, ok := m.sessions[sessionID]; ok {
		s.AddEvent(ev)
	}
	return nil
}

func (m *mockSessionStore) ApplyDelta(sessionID string, delta map[string]interface{}) error {
	if m.applied == nil {
		m.applied = map[string]map[string]interface{}{}
	}
	cp := map[string]interface{}{}
	for k, v := range delta {
		cp[k] = v
	}
	m.applied[sessionID] = cp
	if s, ok := m.sessions[sessionID]; ok {
		s.ApplyStateDelta(delta)
	}
	return nil
}

func (m *mockSessionStore) Delete(id string) error {
	delete(m.sessions, id)
	return nil
}

func newRunContextForTest() (*RunContext, chan Event, chan struct{}) {
	emit := make(chan Event, 5)
	resume := make(chan struct{}, 5)
	store := newMockSessionStore()
	sess, _ := store.Get("sess-x")
	rc := NewRunContext(
		context.Background(), "sess-x", "user-x", "run-x",
		AgentInfo{Name: "Agent1", Type: "test"},
		Content{Role: "user", Parts: []Part{TextPart{Text: "test input"}}},
		0, emit, resume, sess, store, testLogger{},
	)
	return rc, emit, resume
}
