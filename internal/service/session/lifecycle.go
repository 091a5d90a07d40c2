package session

import (
	"crypto/rand"
	"log"
	"math/big"
	"time"

	"github.com/smartattend/backend/internal/domain"
	"github.com/smartattend/backend/pkg/uid"
)

// SessionRepository is the persistence collaborator for attendance sessions.
type SessionRepository interface {
	CreateSession(s *domain.Session) (int64, error)
	GetBySessionID(sessionID string) (*domain.Session, error)
	GetNonTerminalByInstructor(instructorID int64) (*domain.Session, error)
	MarkLinked(sessionID string, linkedAt time.Time) error
	MarkEnded(sessionID string, state domain.SessionState, endedAt time.Time) error
}

// TokenRegistry is the slice of the rotation registry the lifecycle drives.
type TokenRegistry interface {
	Create(sessionID, classID, roomID, subjectID string) (domain.TokenUpdate, error)
	End(sessionID string)
}

// Lifecycle owns the session state machine: CREATED -> ACTIVE ->
// EXPIRED/COMPLETED. It is the only writer of session state; expiry is
// evaluated lazily on access rather than by a background task.
type Lifecycle struct {
	repo     SessionRepository
	registry TokenRegistry

	codeExpiry      time.Duration
	defaultDuration int

	now func() time.Time
}

func NewLifecycle(repo SessionRepository, registry TokenRegistry, codeExpiry time.Duration, defaultDurationMinutes int) *Lifecycle {
	return &Lifecycle{
		repo:            repo,
		registry:        registry,
		codeExpiry:      codeExpiry,
		defaultDuration: defaultDurationMinutes,
		now:             time.Now,
	}
}

// Create issues a new session in CREATED state with a fresh linking code.
// An instructor may hold at most one non-terminal session at a time.
func (l *Lifecycle) Create(instructorID int64, classID, roomID, subjectID string, durationMinutes int) (*domain.Session, error) {
	existing, err := l.repo.GetNonTerminalByInstructor(instructorID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		// The blocking session may have quietly run out; settle it first.
		if _, err := l.Touch(existing); err != nil {
			return nil, err
		}
		if !existing.State.Terminal() {
			return nil, domain.ErrConcurrentSessionExists
		}
	}

	if durationMinutes <= 0 {
		durationMinutes = l.defaultDuration
	}

	now := l.now().UTC()
	sess := &domain.Session{
		SessionID:       uid.GenerateSessionID(now),
		InstructorID:    instructorID,
		ClassID:         classID,
		RoomID:          roomID,
		SubjectID:       subjectID,
		State:           domain.SessionCreated,
		LinkingCode:     generateLinkingCode(6),
		CodeExpiresAt:   now.Add(l.codeExpiry),
		DurationMinutes: durationMinutes,
		CreatedAt:       now,
	}

	id, err := l.repo.CreateSession(sess)
	if err != nil {
		return nil, err
	}
	sess.ID = id

	log.Printf("[SESSION] Created %s for instructor %d (room %s)", sess.SessionID, instructorID, roomID)
	return sess, nil
}

// Link consumes the linking code, transitions the session to ACTIVE and
// seeds the token registry. The code is single use: a successful link
// discards it.
func (l *Lifecycle) Link(sessionID, code string) (*domain.Session, domain.TokenUpdate, error) {
	sess, err := l.get(sessionID)
	if err != nil {
		return nil, domain.TokenUpdate{}, err
	}
	if sess.State != domain.SessionCreated {
		return nil, domain.TokenUpdate{}, domain.ErrSessionNotActive
	}

	now := l.now().UTC()
	if now.After(sess.CodeExpiresAt) {
		return nil, domain.TokenUpdate{}, domain.ErrCodeExpired
	}
	if sess.LinkingCode == "" || sess.LinkingCode != code {
		return nil, domain.TokenUpdate{}, domain.ErrCodeMismatch
	}

	if err := l.repo.MarkLinked(sess.SessionID, now); err != nil {
		return nil, domain.TokenUpdate{}, err
	}
	sess.State = domain.SessionActive
	sess.LinkedAt = &now
	sess.LinkingCode = ""

	update, err := l.registry.Create(sess.SessionID, sess.ClassID, sess.RoomID, sess.SubjectID)
	if err != nil {
		return nil, domain.TokenUpdate{}, err
	}

	log.Printf("[SESSION] Linked %s, token rotation active", sess.SessionID)
	return sess, update, nil
}

// Touch applies lazy expiry: an ACTIVE session past its duration (or a
// CREATED session whose linking code lapsed unconsumed) transitions to
// EXPIRED. Idempotent and safe to call on every access.
func (l *Lifecycle) Touch(sess *domain.Session) (bool, error) {
	now := l.now().UTC()

	switch sess.State {
	case domain.SessionActive:
		if sess.LinkedAt == nil {
			return false, nil
		}
		deadline := sess.LinkedAt.Add(time.Duration(sess.DurationMinutes) * time.Minute)
		if !now.After(deadline) {
			return false, nil
		}
	case domain.SessionCreated:
		if !now.After(sess.CodeExpiresAt) {
			return false, nil
		}
	default:
		return false, nil
	}

	if err := l.repo.MarkEnded(sess.SessionID, domain.SessionExpired, now); err != nil {
		return false, err
	}
	sess.State = domain.SessionExpired
	sess.EndedAt = &now
	l.registry.End(sess.SessionID)

	log.Printf("[SESSION] Expired %s", sess.SessionID)
	return true, nil
}

// Complete is the explicit instructor-initiated end of an ACTIVE session.
func (l *Lifecycle) Complete(sessionID string, instructorID int64) (*domain.Session, error) {
	sess, err := l.get(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.InstructorID != instructorID {
		return nil, domain.ErrSessionNotFound
	}
	if sess.State != domain.SessionActive {
		return nil, domain.ErrSessionNotActive
	}

	now := l.now().UTC()
	if err := l.repo.MarkEnded(sess.SessionID, domain.SessionCompleted, now); err != nil {
		return nil, err
	}
	sess.State = domain.SessionCompleted
	sess.EndedAt = &now
	l.registry.End(sess.SessionID)

	log.Printf("[SESSION] Completed %s", sess.SessionID)
	return sess, nil
}

// Get returns a session with lazy expiry already applied.
func (l *Lifecycle) Get(sessionID string) (*domain.Session, error) {
	return l.get(sessionID)
}

func (l *Lifecycle) get(sessionID string) (*domain.Session, error) {
	sess, err := l.repo.GetBySessionID(sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, domain.ErrSessionNotFound
	}
	if _, err := l.Touch(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// generateLinkingCode returns a short numeric secret for binding a display
// to a session.
func generateLinkingCode(digits int) string {
	code := make([]byte, digits)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			// crypto/rand only fails if the OS entropy source is broken.
			panic(err)
		}
		code[i] = byte('0' + n.Int64())
	}
	return string(code)
}
