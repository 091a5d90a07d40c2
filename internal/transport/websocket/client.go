package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/smartattend/backend/internal/domain"
)

// displayConn pairs a socket with its write lock.
//
// writeMu ensures only one goroutine writes to a specific socket at a time.
// This is CRITICAL because conn.WriteJSON is not thread-safe.
type displayConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (d *displayConn) send(message domain.ServerMessage) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	d.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return d.conn.WriteJSON(message)
}

// Hub tracks the display connections subscribed to each attendance session.
// A session can have several displays (projector plus instructor phone), so
// connections are held per session, not per user.
type Hub struct {
	mu       sync.RWMutex // Protects the map itself
	sessions map[string]map[*websocket.Conn]*displayConn
}

func NewHub() *Hub {
	return &Hub{
		sessions: make(map[string]map[*websocket.Conn]*displayConn),
	}
}

// AddConnection registers a display connection for a session.
func (h *Hub) AddConnection(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sessions[sessionID] == nil {
		h.sessions[sessionID] = make(map[*websocket.Conn]*displayConn)
	}
	h.sessions[sessionID][conn] = &displayConn{conn: conn}
}

// RemoveConnection drops a single display connection.
func (h *Hub) RemoveConnection(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, exists := h.sessions[sessionID]; exists {
		if dc, ok := conns[conn]; ok {
			dc.conn.Close()
			delete(conns, conn)
		}
		if len(conns) == 0 {
			delete(h.sessions, sessionID)
		}
	}
}

// CloseSession disconnects every display subscribed to a session, sending a
// final message first (best effort).
func (h *Hub) CloseSession(sessionID string, message domain.ServerMessage) {
	h.mu.Lock()
	conns := h.sessions[sessionID]
	delete(h.sessions, sessionID)
	h.mu.Unlock()

	for _, dc := range conns {
		_ = dc.send(message)
		dc.conn.Close()
	}
}

// Publish fans a fresh token out to every display watching the session.
// Satisfies the rotation scheduler's sink interface.
func (h *Hub) Publish(sessionID string, update domain.TokenUpdate) {
	h.Broadcast(sessionID, domain.ServerMessage{
		Type:       "token_update",
		SessionID:  sessionID,
		Token:      &update,
		ServerTime: time.Now().Unix(),
	})
}

// Broadcast sends a message to all displays of one session.
func (h *Hub) Broadcast(sessionID string, message domain.ServerMessage) {
	h.mu.RLock()
	conns := make([]*displayConn, 0, len(h.sessions[sessionID]))
	for _, dc := range h.sessions[sessionID] {
		conns = append(conns, dc)
	}
	h.mu.RUnlock()

	for _, dc := range conns {
		// We launch goroutines so one slow display doesn't block the broadcast
		go func(dc *displayConn) {
			_ = dc.send(message)
		}(dc)
	}
}

// ConnectionCount returns how many displays are subscribed to a session.
func (h *Hub) ConnectionCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}
