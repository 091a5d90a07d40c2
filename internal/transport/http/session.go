package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smartattend/backend/internal/domain"
	"github.com/smartattend/backend/internal/repository/postgres"
	"github.com/smartattend/backend/internal/repository/redis"
	"github.com/smartattend/backend/internal/service/session"
	"github.com/smartattend/backend/internal/token"
	"github.com/smartattend/backend/internal/transport/websocket"
)

type SessionHandler struct {
	Lifecycle  *session.Lifecycle
	Registry   *token.Registry
	Attendance *postgres.AttendanceRepo
	Hub        *websocket.Hub
	Mirror     *redis.TokenMirror // Optional, can be nil
}

func NewSessionHandler(lc *session.Lifecycle, registry *token.Registry, attendance *postgres.AttendanceRepo, hub *websocket.Hub, mirror *redis.TokenMirror) *SessionHandler {
	return &SessionHandler{
		Lifecycle:  lc,
		Registry:   registry,
		Attendance: attendance,
		Hub:        hub,
		Mirror:     mirror,
	}
}

// Create opens a new attendance session for the calling instructor and
// returns the one-time linking code for the classroom display.
func (h *SessionHandler) Create(c *gin.Context) {
	var req struct {
		ClassID         string `json:"class_id"`
		RoomID          string `json:"room_id"`
		SubjectID       string `json:"subject_id"`
		DurationMinutes int    `json:"duration_minutes"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	if req.ClassID == "" || req.RoomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "class_id and room_id are required"})
		return
	}

	sess, err := h.Lifecycle.Create(c.GetInt64("user_id"), req.ClassID, req.RoomID, req.SubjectID, req.DurationMinutes)
	if err != nil {
		if errors.Is(err, domain.ErrConcurrentSessionExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "You already have an open session"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	// LinkingCode is excluded from the session's JSON form; it is only
	// revealed here, once, to the instructor who created the session.
	c.JSON(http.StatusCreated, gin.H{
		"session":         sess,
		"linking_code":    sess.LinkingCode,
		"code_expires_at": sess.CodeExpiresAt,
	})
}

// Link activates a session: the display submits the linking code, token
// rotation starts and the first token comes back in the response.
func (h *SessionHandler) Link(c *gin.Context) {
	var req struct {
		Code string `json:"code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Linking code is required"})
		return
	}

	sess, update, err := h.Lifecycle.Link(c.Param("id"), req.Code)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		case errors.Is(err, domain.ErrSessionNotActive):
			c.JSON(http.StatusConflict, gin.H{"error": "Session cannot be linked in its current state"})
		case errors.Is(err, domain.ErrCodeExpired):
			c.JSON(http.StatusGone, gin.H{"error": "Linking code expired"})
		case errors.Is(err, domain.ErrCodeMismatch):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid linking code"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to link session"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": sess,
		"token":   update,
	})
}

// End completes an ACTIVE session and disconnects its displays.
func (h *SessionHandler) End(c *gin.Context) {
	sessionID := c.Param("id")

	sess, err := h.Lifecycle.Complete(sessionID, c.GetInt64("user_id"))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		case errors.Is(err, domain.ErrSessionNotActive):
			c.JSON(http.StatusConflict, gin.H{"error": "Session is not active"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to end session"})
		}
		return
	}

	present, err := h.Attendance.CountPresent(sessionID)
	if err != nil {
		present = 0
	}

	h.Hub.CloseSession(sessionID, domain.ServerMessage{
		Type:         "session_ended",
		SessionID:    sessionID,
		PresentCount: present,
	})
	if h.Mirror != nil {
		h.Mirror.Drop(c.Request.Context(), sessionID)
	}

	c.JSON(http.StatusOK, gin.H{
		"session":       sess,
		"present_count": present,
	})
}

// Get returns a session with its live present count. Lazy expiry applies, so
// reading a session past its duration settles it to EXPIRED first.
func (h *SessionHandler) Get(c *gin.Context) {
	sess, err := h.Lifecycle.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch session"})
		return
	}

	present, err := h.Attendance.CountPresent(sess.SessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch attendance count"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session":       sess,
		"present_count": present,
	})
}

// CurrentToken lets a display bootstrap outside the websocket stream. The
// in-process registry is authoritative; the Redis mirror covers the window
// right after a restart before the first rotation lands.
func (h *SessionHandler) CurrentToken(c *gin.Context) {
	sessionID := c.Param("id")

	update, err := h.Registry.Current(sessionID)
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"token": update})
		return
	}

	if h.Mirror != nil {
		if mirrored, mErr := h.Mirror.Load(c.Request.Context(), sessionID); mErr == nil && mirrored != nil {
			c.JSON(http.StatusOK, gin.H{"token": mirrored})
			return
		}
	}

	c.JSON(http.StatusNotFound, gin.H{"error": "No active token for this session"})
}

// Roster lists the recorded attendance for a session. Restricted to the
// owning instructor.
func (h *SessionHandler) Roster(c *gin.Context) {
	sess, err := h.Lifecycle.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch session"})
		return
	}
	if sess.InstructorID != c.GetInt64("user_id") {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	records, err := h.Attendance.ListBySession(sess.SessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch attendance"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sess.SessionID,
		"records":    records,
	})
}
