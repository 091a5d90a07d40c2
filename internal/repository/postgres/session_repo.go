package postgres

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/smartattend/backend/internal/domain"
)

type SessionRepo struct {
	DB *sql.DB
}

func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{DB: db}
}

// CreateSession persists a freshly created attendance session.
func (r *SessionRepo) CreateSession(s *domain.Session) (int64, error) {
	query := `
	INSERT INTO attendance_sessions
		(session_id, instructor_id, class_id, room_id, subject_id, state,
		 linking_code, code_expires_at, duration_minutes, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	RETURNING id;
	`
	var id int64
	err := r.DB.QueryRow(query,
		s.SessionID, s.InstructorID, s.ClassID, s.RoomID, s.SubjectID,
		string(s.State), s.LinkingCode, s.CodeExpiresAt, s.DurationMinutes, s.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create session: %v", err)
	}
	return id, nil
}

// GetBySessionID retrieves a session by its public identifier. Returns
// (nil, nil) when no row exists.
func (r *SessionRepo) GetBySessionID(sessionID string) (*domain.Session, error) {
	query := `
	SELECT id, session_id, instructor_id, class_id, room_id, subject_id, state,
	       linking_code, code_expires_at, duration_minutes, created_at, linked_at, ended_at
	FROM attendance_sessions
	WHERE session_id = $1;
	`
	return r.scanOne(r.DB.QueryRow(query, sessionID))
}

// GetNonTerminalByInstructor returns the instructor's created-or-active
// session, if any. At most one exists by constraint.
func (r *SessionRepo) GetNonTerminalByInstructor(instructorID int64) (*domain.Session, error) {
	query := `
	SELECT id, session_id, instructor_id, class_id, room_id, subject_id, state,
	       linking_code, code_expires_at, duration_minutes, created_at, linked_at, ended_at
	FROM attendance_sessions
	WHERE instructor_id = $1 AND state IN ('created', 'active')
	LIMIT 1;
	`
	return r.scanOne(r.DB.QueryRow(query, instructorID))
}

// MarkLinked transitions a session to ACTIVE and discards the linking code.
func (r *SessionRepo) MarkLinked(sessionID string, linkedAt time.Time) error {
	query := `
	UPDATE attendance_sessions
	SET state = 'active', linked_at = $2, linking_code = NULL
	WHERE session_id = $1;
	`
	if _, err := r.DB.Exec(query, sessionID, linkedAt); err != nil {
		return fmt.Errorf("failed to mark session linked: %v", err)
	}
	return nil
}

// MarkEnded settles a session into a terminal state.
func (r *SessionRepo) MarkEnded(sessionID string, state domain.SessionState, endedAt time.Time) error {
	query := `
	UPDATE attendance_sessions
	SET state = $2, ended_at = $3
	WHERE session_id = $1;
	`
	if _, err := r.DB.Exec(query, sessionID, string(state), endedAt); err != nil {
		return fmt.Errorf("failed to mark session ended: %v", err)
	}
	return nil
}

// ExpireStaleActive settles every session a previous process left in a
// non-terminal state. Run once at startup before rotation begins, because
// token state does not survive a restart.
func (r *SessionRepo) ExpireStaleActive() (int64, error) {
	query := `
	UPDATE attendance_sessions
	SET state = 'expired', ended_at = NOW()
	WHERE state IN ('created', 'active');
	`
	result, err := r.DB.Exec(query)
	if err != nil {
		return 0, fmt.Errorf("failed to expire stale sessions: %v", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %v", err)
	}
	return rowsAffected, nil
}

func (r *SessionRepo) scanOne(row *sql.Row) (*domain.Session, error) {
	var s domain.Session
	var state string
	var linkingCode sql.NullString
	var linkedAt, endedAt sql.NullTime
	err := row.Scan(
		&s.ID, &s.SessionID, &s.InstructorID, &s.ClassID, &s.RoomID, &s.SubjectID,
		&state, &linkingCode, &s.CodeExpiresAt, &s.DurationMinutes, &s.CreatedAt,
		&linkedAt, &endedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %v", err)
	}
	s.State = domain.SessionState(state)
	if linkingCode.Valid {
		s.LinkingCode = linkingCode.String
	}
	if linkedAt.Valid {
		t := linkedAt.Time
		s.LinkedAt = &t
	}
	if endedAt.Valid {
		t := endedAt.Time
		s.EndedAt = &t
	}
	return &s, nil
}
