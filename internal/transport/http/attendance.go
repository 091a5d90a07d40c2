package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smartattend/backend/internal/domain"
	"github.com/smartattend/backend/internal/repository/postgres"
	"github.com/smartattend/backend/internal/service/session"
	"github.com/smartattend/backend/internal/service/verification"
)

type AttendanceHandler struct {
	Lifecycle *session.Lifecycle
	Engine    *verification.Engine
	Rooms     *postgres.RoomRepo
}

func NewAttendanceHandler(lc *session.Lifecycle, engine *verification.Engine, rooms *postgres.RoomRepo) *AttendanceHandler {
	return &AttendanceHandler{
		Lifecycle: lc,
		Engine:    engine,
		Rooms:     rooms,
	}
}

// Verify scores a student's scan submission and records the outcome. The
// sensor bundle is optional field by field; whatever is missing simply
// contributes nothing to the confidence score.
func (h *AttendanceHandler) Verify(c *gin.Context) {
	var req struct {
		SessionID string              `json:"session_id"`
		Token     string              `json:"token"`
		Sensors   domain.SensorBundle `json:"sensors"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	if req.SessionID == "" || req.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id and token are required"})
		return
	}

	sess, err := h.Lifecycle.Get(req.SessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch session"})
		return
	}

	result, err := h.Engine.Verify(sess, c.GetInt64("user_id"), req.Token, req.Sensors)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSessionNotActive):
			c.JSON(http.StatusConflict, gin.H{"error": "Session is not accepting scans"})
		case errors.Is(err, domain.ErrAlreadyRecorded):
			c.JSON(http.StatusConflict, gin.H{"error": "Attendance already recorded for this session"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Verification failed"})
		}
		return
	}

	status := http.StatusOK
	if result.Verdict == domain.VerdictReject {
		// The attempt is recorded either way; the status distinguishes
		// admit from reject for the client.
		status = http.StatusForbidden
	}
	c.JSON(status, gin.H{"result": result})
}

// Rooms lists the configured room directory so clients can present room
// choices when opening a session.
func (h *AttendanceHandler) ListRooms(c *gin.Context) {
	rooms, err := h.Rooms.ListRooms()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch rooms"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}
