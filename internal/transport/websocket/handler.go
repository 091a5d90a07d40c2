package websocket

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/smartattend/backend/internal/domain"
	"github.com/smartattend/backend/internal/service/session"
	"github.com/smartattend/backend/internal/token"
)

// PresenceCounter reports how many students have been recorded present.
type PresenceCounter interface {
	CountPresent(sessionID string) (int, error)
}

// Handler manages the display WebSocket dependencies
type Handler struct {
	Hub        *Hub
	Lifecycle  *session.Lifecycle
	Registry   *token.Registry
	Attendance PresenceCounter
	Upgrader   websocket.Upgrader
}

func NewHandler(hub *Hub, lc *session.Lifecycle, registry *token.Registry, attendance PresenceCounter) *Handler {
	return &Handler{
		Hub:        hub,
		Lifecycle:  lc,
		Registry:   registry,
		Attendance: attendance,
		Upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// HandleDisplay upgrades a classroom display connection and subscribes it to
// token updates for one attendance session.
func (h *Handler) HandleDisplay(c *gin.Context) {
	sessionID := c.Param("sessionID")

	sess, err := h.Lifecycle.Get(sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Session lookup failed"})
		}
		return
	}
	if sess.State != domain.SessionActive {
		c.JSON(http.StatusConflict, gin.H{"error": "Session is not active"})
		return
	}

	conn, err := h.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WS] Upgrade error: %v", err)
		return
	}

	h.handleConnection(sessionID, conn)
}

// handleConnection manages the lifecycle of a single display connection
func (h *Handler) handleConnection(sessionID string, conn *websocket.Conn) {
	h.Hub.AddConnection(sessionID, conn)
	log.Printf("[WS] Display connected for session %s", sessionID)

	// Bootstrap: push the current token immediately so the display never
	// shows a blank QR while waiting for the next rotation tick.
	if update, err := h.Registry.Current(sessionID); err == nil {
		present := 0
		if count, err := h.Attendance.CountPresent(sessionID); err == nil {
			present = count
		}
		msg := domain.ServerMessage{
			Type:         "session_state",
			SessionID:    sessionID,
			Token:        &update,
			PresentCount: present,
			ServerTime:   time.Now().Unix(),
		}
		if dc := h.lookupConn(sessionID, conn); dc != nil {
			if err := dc.send(msg); err != nil {
				log.Printf("[WS] Bootstrap write failed for session %s: %v", sessionID, err)
			}
		}
	} else {
		log.Printf("[WS] No active token for session %s at connect: %v", sessionID, err)
	}

	// Set read deadline to detect stale connections
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	// Keep-alive pinger
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	defer func() {
		close(done)
		log.Printf("[WS] Display disconnected from session %s", sessionID)
		h.Hub.RemoveConnection(sessionID, conn)
	}()

	// Displays are receive-only. The read loop exists to surface pongs and
	// detect the peer going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] Display dropped unexpectedly: %v", err)
			}
			return
		}
	}
}

func (h *Handler) lookupConn(sessionID string, conn *websocket.Conn) *displayConn {
	h.Hub.mu.RLock()
	defer h.Hub.mu.RUnlock()
	if conns, ok := h.Hub.sessions[sessionID]; ok {
		return conns[conn]
	}
	return nil
}
