package domain

import "time"

// SessionState is the lifecycle state of an attendance session.
type SessionState string

const (
	// SessionCreated: linking code issued, no token state yet.
	SessionCreated SessionState = "created"
	// SessionActive: a display consumed the linking code; tokens rotate.
	SessionActive SessionState = "active"
	// SessionExpired: duration elapsed without an explicit end. Terminal.
	SessionExpired SessionState = "expired"
	// SessionCompleted: instructor ended the session. Terminal.
	SessionCompleted SessionState = "completed"
)

// Terminal reports whether the state allows no further transitions.
func (s SessionState) Terminal() bool {
	return s == SessionExpired || s == SessionCompleted
}

// Session is an attendance session owned by one instructor. The lifecycle
// service is the only writer; everything else references it by SessionID.
type Session struct {
	ID              int64        `json:"id"`
	SessionID       string       `json:"session_id"`
	InstructorID    int64        `json:"instructor_id"`
	ClassID         string       `json:"class_id"`
	RoomID          string       `json:"room_id"`
	SubjectID       string       `json:"subject_id"`
	State           SessionState `json:"state"`
	LinkingCode     string       `json:"-"`
	CodeExpiresAt   time.Time    `json:"-"`
	DurationMinutes int          `json:"duration_minutes"`
	CreatedAt       time.Time    `json:"created_at"`
	LinkedAt        *time.Time   `json:"linked_at,omitempty"`
	EndedAt         *time.Time   `json:"ended_at,omitempty"`
}

// UserSession is a login session for an instructor or student account
// (cookie/JWT auth), unrelated to attendance sessions.
type UserSession struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	SessionID    string    `json:"session_id"`
	DeviceInfo   string    `json:"device_info"`
	IPAddress    string    `json:"ip_address"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	LastActivity time.Time `json:"last_activity"`
	IsActive     bool      `json:"is_active"`
}
