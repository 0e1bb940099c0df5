// Package session implements the Session Manager: per-connection state
// for in-flight invocations and elicitation round trips, plus the cleanup
// that runs on client disconnect.
package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/photon-run/photon/internal/invocation"
	"github.com/photon-run/photon/internal/photonerr"
)

// PendingElicitation is an outstanding "elicitation/create" request the
// engine is blocked waiting on, correlated by ID so the response that
// eventually arrives over the transport can be routed back to the right
// waiter.
type PendingElicitation struct {
	ID       string
	ToolName string
	Waiter   chan invocation.ElicitResponse
}

// Session tracks one client connection's invocation and elicitation
// state. The zero value is not usable; construct with New.
type Session struct {
	ID string

	mu           sync.Mutex
	invocations  map[string]*invocation.Invocation
	elicitations map[string]*PendingElicitation
	closed       bool
	logLevel     invocation.LogLevel
}

// New constructs a Session with a fresh random ID.
func New() *Session {
	return &Session{
		ID:           uuid.NewString(),
		invocations:  map[string]*invocation.Invocation{},
		elicitations: map[string]*PendingElicitation{},
	}
}

// OpenInvocation registers inv as pending on this session.
func (s *Session) OpenInvocation(inv *invocation.Invocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return photonerr.New(photonerr.Cancelled, "session is closed")
	}
	s.invocations[inv.ID] = inv
	return nil
}

// CloseInvocation removes an invocation from the pending table once it has
// reached a terminal state.
func (s *Session) CloseInvocation(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.invocations, id)
}

// PendingElicitation registers a new elicitation wait and returns the
// channel the caller should block on for the client's response.
func (s *Session) PendingElicitation(toolName string) (*PendingElicitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, photonerr.New(photonerr.Cancelled, "session is closed")
	}
	pe := &PendingElicitation{ID: uuid.NewString(), ToolName: toolName, Waiter: make(chan invocation.ElicitResponse, 1)}
	s.elicitations[pe.ID] = pe
	return pe, nil
}

// CompleteElicitation delivers a client response to the waiter registered
// under id, if still pending. It reports false for an unknown or already
// resolved id, which happens when a late response arrives after the
// session already cancelled the wait on disconnect.
func (s *Session) CompleteElicitation(id string, resp invocation.ElicitResponse) bool {
	s.mu.Lock()
	pe, ok := s.elicitations[id]
	if ok {
		delete(s.elicitations, id)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	pe.Waiter <- resp
	return true
}

// Disconnect cancels every pending invocation and rejects every pending
// elicitation with Cancelled, per the Session Manager's disconnect
// contract. It is idempotent.
func (s *Session) Disconnect(cancelInvocation func(id string)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	ids := make([]string, 0, len(s.invocations))
	for id := range s.invocations {
		ids = append(ids, id)
	}
	waiters := make([]*PendingElicitation, 0, len(s.elicitations))
	for _, pe := range s.elicitations {
		waiters = append(waiters, pe)
	}
	s.elicitations = map[string]*PendingElicitation{}
	s.mu.Unlock()

	for _, id := range ids {
		if cancelInvocation != nil {
			cancelInvocation(id)
		}
	}
	for _, pe := range waiters {
		pe.Waiter <- invocation.ElicitResponse{Action: "cancel"}
	}
}

// PendingCount reports the number of in-flight invocations, for tests and
// diagnostics.
func (s *Session) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.invocations)
}

// SetLogLevel updates the minimum level this session wants delivered as
// "notifications/message", set via the client's "logging/setLevel" call.
func (s *Session) SetLogLevel(level invocation.LogLevel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logLevel = level
}

// logRank orders LogLevel from least to most severe for threshold checks.
var logRank = map[invocation.LogLevel]int{
	invocation.LogDebug:   0,
	invocation.LogInfo:    1,
	invocation.LogWarning: 2,
	invocation.LogError:   3,
}

// LogEnabled reports whether level meets this session's configured minimum,
// which defaults to LogInfo until the client calls "logging/setLevel".
func (s *Session) LogEnabled(level invocation.LogLevel) bool {
	s.mu.Lock()
	min := s.logLevel
	s.mu.Unlock()
	if min == "" {
		min = invocation.LogInfo
	}
	return logRank[level] >= logRank[min]
}
