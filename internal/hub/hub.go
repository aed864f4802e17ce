// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

// Package hub fans snapshots out to websocket observers. Every session
// gets a one-slot queue that only ever holds the newest snapshot, so a
// slow or dead observer can never delay the tick or its neighbours.
package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/daneel-ai/nursery/internal/snapshot"
	nurseryerr "github.com/daneel-ai/nursery/pkg/errors"
)

const (
	// writeTimeout bounds how long one frame may take before the session
	// is declared dead.
	writeTimeout = time.Second
	// pongWait and pingPeriod keep idle connections verified. pingPeriod
	// must be shorter than pongWait.
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	// maxInbound caps inbound frames. Observers have nothing to say.
	maxInbound = 512
)

// Session is one connected observer, owned exclusively by the hub.
type Session struct {
	id    uuid.UUID
	conn  *websocket.Conn
	queue chan []byte
	done  chan struct{}
}

// ID identifies the session in logs.
func (s *Session) ID() uuid.UUID { return s.id }

// offer enqueues without ever blocking, replacing a pending message so
// the queue only holds the newest snapshot.
func (s *Session) offer(data []byte) {
	select {
	case s.queue <- data:
		return
	default:
	}
	select {
	case <-s.queue:
	default:
	}
	select {
	case s.queue <- data:
	default:
	}
}

// Hub owns all observer sessions and implements the collector's sink.
type Hub struct {
	store  *snapshot.Store
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	closed   bool
}

var _ snapshot.Sink = (*Hub)(nil)

// NewHub wires the hub to the snapshot store it serves on connect.
func NewHub(store *snapshot.Store, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		store:    store,
		logger:   logger,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Register adopts an upgraded connection as a new session. The current
// snapshot, if one exists, is queued immediately so the observer does not
// wait out a tick for its first state.
func (h *Hub) Register(conn *websocket.Conn) (*Session, error) {
	s := &Session{
		id:    uuid.New(),
		conn:  conn,
		queue: make(chan []byte, 1),
		done:  make(chan struct{}),
	}

	// Queue the greeting before the session becomes visible to Broadcast,
	// so a concurrent tick cannot be replaced by an older snapshot.
	if snap, ok := h.store.Current(); ok {
		if data, err := json.Marshal(snap); err == nil {
			s.offer(data)
		}
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, nurseryerr.New(nurseryerr.CodeHubClosed, "hub is shut down")
	}
	h.sessions[s.id] = s
	h.mu.Unlock()

	go h.writeLoop(s)
	go h.readLoop(s)

	h.logger.Info("observer connected", "session_id", s.id, "remote", conn.RemoteAddr().String())
	return s, nil
}

// Unregister removes a session and closes its connection. Safe to call
// more than once for the same id.
func (h *Hub) Unregister(id uuid.UUID) {
	h.mu.Lock()
	s, ok := h.sessions[id]
	if ok {
		delete(h.sessions, id)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	close(s.done)
	_ = s.conn.Close()
	h.logger.Info("observer disconnected", "session_id", s.id)
}

// Broadcast serializes the snapshot once and offers it to every session.
// It never blocks on any individual observer.
func (h *Hub) Broadcast(snap *snapshot.Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		h.logger.Error("snapshot marshal failed", "error", err)
		return
	}

	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.offer(data)
	}
}

// SessionCount reports how many observers are connected.
func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Close disconnects every observer and refuses new registrations.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.sessions = make(map[uuid.UUID]*Session)
	h.mu.Unlock()

	for _, s := range sessions {
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "observer shutting down"),
			time.Now().Add(writeTimeout))
		close(s.done)
		_ = s.conn.Close()
	}
	h.logger.Info("hub closed", "sessions", len(sessions))
}

// writeLoop drains the session queue onto the wire and keeps the
// connection verified with pings. Any write failure drops the session.
func (h *Hub) writeLoop(s *Session) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case data := <-s.queue:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("observer write failed", "session_id", s.id, "error", err)
				h.Unregister(s.id)
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.Unregister(s.id)
				return
			}
		}
	}
}

// readLoop discards everything the observer sends. The pump exists to
// process control frames and to notice the peer going away.
func (h *Hub) readLoop(s *Session) {
	s.conn.SetReadLimit(maxInbound)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			break
		}
	}
	h.Unregister(s.id)
}
