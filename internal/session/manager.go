package session

import (
	"sync"

	"github.com/photon-run/photon/internal/photonerr"
)

// Manager tracks every currently connected session, keyed by Session.ID.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager constructs an empty session registry.
func NewManager() *Manager {
	return &Manager{sessions: map[string]*Session{}}
}

// Open creates and registers a new session.
func (m *Manager) Open() *Session {
	s := New()
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get resolves a session by ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, photonerr.Newf(photonerr.NotFound, "session %q not found", id)
	}
	return s, nil
}

// Close disconnects and removes a session.
func (m *Manager) Close(id string, cancelInvocation func(invID string)) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.Disconnect(cancelInvocation)
	}
}

// Count returns the number of currently open sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
