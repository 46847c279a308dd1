// Package ws is the websocket transport adapter. It terminates
// connections, assigns connection handles, and exposes the push
// channel the core talks to. The core never imports this package; it
// sees only the contract interfaces.
package ws

import (
	apperrors "chat-relay/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// session serializes writes to one socket: fan-out pushes and liveness
// probes may target the same connection concurrently.
type session struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *session) write(payload []byte, deadline time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(deadline)
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub is the live socket directory, keyed by the transport-assigned
// connection handle. It implements the push-delivery contract:
// an unknown handle or a failed write both surface as the well-known
// gone signal, because a websocket write error leaves the socket
// unusable either way.
type Hub struct {
	mu           sync.RWMutex
	log          *slog.Logger
	writeTimeout time.Duration
	sessions     map[string]*session
}

func NewHub(log *slog.Logger, writeTimeout time.Duration) *Hub {
	return &Hub{
		log:          log,
		writeTimeout: writeTimeout,
		sessions:     make(map[string]*session),
	}
}

// Attach registers a freshly upgraded socket under its handle.
func (h *Hub) Attach(connectionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[connectionID] = &session{conn: conn}
}

// Detach forgets the handle and closes the socket. Detaching an
// unknown handle is a no-op.
func (h *Hub) Detach(connectionID string) {
	h.mu.Lock()
	s, ok := h.sessions[connectionID]
	delete(h.sessions, connectionID)
	h.mu.Unlock()

	if ok {
		_ = s.conn.Close()
	}
}

// Push delivers one payload to one live socket.
func (h *Hub) Push(_ context.Context, connectionID string, payload []byte) error {
	h.mu.RLock()
	s, ok := h.sessions[connectionID]
	h.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: unknown handle %s", apperrors.ErrConnectionGone, connectionID)
	}
	if err := s.write(payload, time.Now().Add(h.writeTimeout)); err != nil {
		h.Detach(connectionID)
		return fmt.Errorf("%w: %v", apperrors.ErrConnectionGone, err)
	}
	return nil
}

// Count reports the number of attached sockets, for stats and debug.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
