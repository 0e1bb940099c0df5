package transport

import (
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/photon-run/photon/internal/protocol"
	"github.com/photon-run/photon/internal/telemetry"
)

const sessionCookieName = "photon_session"

// HTTP serves the streamable-HTTP MCP transport: JSON-RPC requests POSTed
// to one endpoint, server-initiated notifications delivered over a
// companion Server-Sent Events stream tied to the same session.
type HTTP struct {
	NewServer func(notify protocol.Notifier) Dispatcher
	log       telemetry.Logger

	mu       sync.Mutex
	sessions map[string]*sseSession
}

type sseSession struct {
	mu       sync.Mutex
	events   chan []byte
	lastID   int
	dispatch Dispatcher
	// replay holds recently sent events by ID for best-effort Last-Event-ID
	// catch-up after a client reconnects; bounded so a long-lived
	// connection cannot grow it without limit.
	replay []sseEvent
}

type sseEvent struct {
	id   int
	data []byte
}

const replayBufferSize = 256

// NewHTTP constructs an HTTP+SSE transport. newServer is called once per
// new session to build a protocol dispatcher bound to that session's
// Notifier.
func NewHTTP(newServer func(notify protocol.Notifier) Dispatcher, log telemetry.Logger) *HTTP {
	if log == nil {
		log = telemetry.Noop().Log
	}
	return &HTTP{NewServer: newServer, log: log, sessions: map[string]*sseSession{}}
}

// ServeHTTP implements http.Handler, routing POST (JSON-RPC) and GET
// (SSE stream) requests to the same path, per the MCP streamable-HTTP
// transport convention.
func (h *HTTP) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodGet:
		h.handleStream(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *HTTP) handlePost(w http.ResponseWriter, r *http.Request) {
	sessionID := h.sessionIDFor(r)
	sess := h.sessionFor(sessionID)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	resp := sess.dispatch.Handle(r.Context(), body)

	w.Header().Set("Content-Type", "application/json")
	setSessionCookie(w, sessionID)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp)
}

func (h *HTTP) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := h.sessionIDFor(r)
	sess := h.sessionFor(sessionID)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	setSessionCookie(w, sessionID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if lastID := r.Header.Get("Last-Event-ID"); lastID != "" {
		sess.replayFrom(lastID, w)
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case data := <-sess.events:
			fmt.Fprintf(w, "id: %d\ndata: %s\n\n", sess.currentID(), data)
			flusher.Flush()
		}
	}
}

func (h *HTTP) sessionIDFor(r *http.Request) string {
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if id := r.Header.Get("Mcp-Session-Id"); id != "" {
		return id
	}
	return uuid.NewString()
}

func setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: sessionID, Path: "/", HttpOnly: true})
	w.Header().Set("Mcp-Session-Id", sessionID)
}

func (h *HTTP) sessionFor(id string) *sseSession {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.sessions[id]; ok {
		return s
	}
	s := &sseSession{events: make(chan []byte, 64)}
	s.dispatch = h.NewServer(s.notify)
	h.sessions[id] = s
	return s
}

func (s *sseSession) notify(n protocol.Notification) {
	body, err := marshalNotification(n)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.lastID++
	s.replay = append(s.replay, sseEvent{id: s.lastID, data: body})
	if len(s.replay) > replayBufferSize {
		s.replay = s.replay[len(s.replay)-replayBufferSize:]
	}
	s.mu.Unlock()
	select {
	case s.events <- body:
	default:
		// Slow or absent reader: the event remains in the replay buffer for
		// a reconnect to pick up via Last-Event-ID.
	}
}

func (s *sseSession) currentID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastID
}

// replayFrom writes every buffered event after lastID directly to w,
// best-effort: events evicted from the bounded buffer are simply skipped
// rather than failing the reconnect.
func (s *sseSession) replayFrom(lastID string, w io.Writer) {
	var after int
	if _, err := fmt.Sscanf(lastID, "%d", &after); err != nil {
		return
	}
	s.mu.Lock()
	pending := make([]sseEvent, 0, len(s.replay))
	for _, e := range s.replay {
		if e.id > after {
			pending = append(pending, e)
		}
	}
	s.mu.Unlock()
	for _, e := range pending {
		fmt.Fprintf(w, "id: %d\ndata: %s\n\n", e.id, e.data)
	}
}
