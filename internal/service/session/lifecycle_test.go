package session

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/smartattend/backend/internal/domain"
)

type fakeSessionRepo struct {
	sessions map[string]*domain.Session
	nextID   int64
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*domain.Session)}
}

func (r *fakeSessionRepo) CreateSession(s *domain.Session) (int64, error) {
	r.nextID++
	copied := *s
	copied.ID = r.nextID
	r.sessions[s.SessionID] = &copied
	return r.nextID, nil
}

func (r *fakeSessionRepo) GetBySessionID(sessionID string) (*domain.Session, error) {
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (r *fakeSessionRepo) GetNonTerminalByInstructor(instructorID int64) (*domain.Session, error) {
	for _, s := range r.sessions {
		if s.InstructorID == instructorID && !s.State.Terminal() {
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeSessionRepo) MarkLinked(sessionID string, linkedAt time.Time) error {
	s := r.sessions[sessionID]
	s.State = domain.SessionActive
	s.LinkedAt = &linkedAt
	s.LinkingCode = ""
	return nil
}

func (r *fakeSessionRepo) MarkEnded(sessionID string, state domain.SessionState, endedAt time.Time) error {
	s := r.sessions[sessionID]
	s.State = state
	s.EndedAt = &endedAt
	return nil
}

type fakeRegistry struct {
	created []string
	ended   []string
}

func (f *fakeRegistry) Create(sessionID, classID, roomID, subjectID string) (domain.TokenUpdate, error) {
	f.created = append(f.created, sessionID)
	return domain.TokenUpdate{SessionID: sessionID, Token: "QR_x_x", Sequence: 1}, nil
}

func (f *fakeRegistry) End(sessionID string) {
	f.ended = append(f.ended, sessionID)
}

func newTestLifecycle(t *testing.T) (*Lifecycle, *fakeSessionRepo, *fakeRegistry, *time.Time) {
	t.Helper()
	repo := newFakeSessionRepo()
	registry := &fakeRegistry{}
	l := NewLifecycle(repo, registry, 5*time.Minute, 60)
	now := time.Unix(1767000000, 0).UTC()
	l.now = func() time.Time { return now }
	return l, repo, registry, &now
}

func TestCreateIssuesLinkingCode(t *testing.T) {
	t.Parallel()
	l, _, _, _ := newTestLifecycle(t)

	sess, err := l.Create(1, "CSE-3A", "LH-204", "CS301", 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sess.State != domain.SessionCreated {
		t.Errorf("state: got %s, want created", sess.State)
	}
	if len(sess.LinkingCode) != 6 || strings.Trim(sess.LinkingCode, "0123456789") != "" {
		t.Errorf("linking code not 6 digits: %q", sess.LinkingCode)
	}
	if sess.DurationMinutes != 60 {
		t.Errorf("default duration: got %d, want 60", sess.DurationMinutes)
	}
	if !strings.HasPrefix(sess.SessionID, "SESS_") {
		t.Errorf("session id: %q", sess.SessionID)
	}
}

func TestCreateRejectsConcurrentSession(t *testing.T) {
	t.Parallel()
	l, _, _, _ := newTestLifecycle(t)

	if _, err := l.Create(1, "CSE-3A", "LH-204", "CS301", 0); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if _, err := l.Create(1, "CSE-3B", "LH-205", "CS302", 0); !errors.Is(err, domain.ErrConcurrentSessionExists) {
		t.Errorf("second Create: got %v, want ErrConcurrentSessionExists", err)
	}

	// A different instructor is unaffected.
	if _, err := l.Create(2, "CSE-3B", "LH-205", "CS302", 0); err != nil {
		t.Errorf("other instructor: %v", err)
	}
}

func TestCreateAfterStaleSessionExpires(t *testing.T) {
	t.Parallel()
	l, _, _, now := newTestLifecycle(t)

	if _, err := l.Create(1, "CSE-3A", "LH-204", "CS301", 0); err != nil {
		t.Fatalf("first Create: %v", err)
	}

	// The unconsumed linking code lapses; the next Create settles the old
	// session instead of blocking the instructor forever.
	*now = now.Add(6 * time.Minute)
	if _, err := l.Create(1, "CSE-3B", "LH-205", "CS302", 0); err != nil {
		t.Errorf("Create after code lapse: %v", err)
	}
}

func TestLink(t *testing.T) {
	t.Parallel()
	l, _, registry, _ := newTestLifecycle(t)

	sess, err := l.Create(1, "CSE-3A", "LH-204", "CS301", 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	linked, update, err := l.Link(sess.SessionID, sess.LinkingCode)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if linked.State != domain.SessionActive {
		t.Errorf("state: got %s, want active", linked.State)
	}
	if linked.LinkedAt == nil {
		t.Error("linkedAt not recorded")
	}
	if update.Sequence != 1 {
		t.Errorf("initial sequence: got %d, want 1", update.Sequence)
	}
	if len(registry.created) != 1 || registry.created[0] != sess.SessionID {
		t.Errorf("registry seeding: %v", registry.created)
	}

	// The code is single use.
	if _, _, err := l.Link(sess.SessionID, sess.LinkingCode); !errors.Is(err, domain.ErrSessionNotActive) {
		t.Errorf("relink: got %v, want ErrSessionNotActive", err)
	}
}

func TestLinkWrongCode(t *testing.T) {
	t.Parallel()
	l, _, _, _ := newTestLifecycle(t)

	sess, err := l.Create(1, "CSE-3A", "LH-204", "CS301", 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	wrong := "000000"
	if wrong == sess.LinkingCode {
		wrong = "000001"
	}
	if _, _, err := l.Link(sess.SessionID, wrong); !errors.Is(err, domain.ErrCodeMismatch) {
		t.Errorf("got %v, want ErrCodeMismatch", err)
	}
}

func TestLinkExpiredCode(t *testing.T) {
	t.Parallel()
	l, _, _, now := newTestLifecycle(t)

	sess, err := l.Create(1, "CSE-3A", "LH-204", "CS301", 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	*now = now.Add(5*time.Minute + time.Second)
	if _, _, err := l.Link(sess.SessionID, sess.LinkingCode); !errors.Is(err, domain.ErrSessionNotActive) && !errors.Is(err, domain.ErrCodeExpired) {
		t.Errorf("got %v, want code expiry rejection", err)
	}
}

func TestTouchExpiresActiveSession(t *testing.T) {
	t.Parallel()
	l, _, registry, now := newTestLifecycle(t)

	sess, err := l.Create(1, "CSE-3A", "LH-204", "CS301", 30)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, _, err := l.Link(sess.SessionID, sess.LinkingCode); err != nil {
		t.Fatalf("Link: %v", err)
	}

	*now = now.Add(31 * time.Minute)
	got, err := l.Get(sess.SessionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != domain.SessionExpired {
		t.Errorf("state: got %s, want expired", got.State)
	}
	if got.EndedAt == nil {
		t.Error("endedAt not recorded")
	}
	if len(registry.ended) != 1 || registry.ended[0] != sess.SessionID {
		t.Errorf("registry not ended: %v", registry.ended)
	}

	// Expiry is a terminal state: complete must now fail.
	if _, err := l.Complete(sess.SessionID, 1); !errors.Is(err, domain.ErrSessionNotActive) {
		t.Errorf("Complete after expiry: got %v, want ErrSessionNotActive", err)
	}
}

func TestComplete(t *testing.T) {
	t.Parallel()
	l, _, registry, _ := newTestLifecycle(t)

	sess, err := l.Create(1, "CSE-3A", "LH-204", "CS301", 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, _, err := l.Link(sess.SessionID, sess.LinkingCode); err != nil {
		t.Fatalf("Link: %v", err)
	}

	done, err := l.Complete(sess.SessionID, 1)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.State != domain.SessionCompleted {
		t.Errorf("state: got %s, want completed", done.State)
	}
	if len(registry.ended) != 1 {
		t.Errorf("registry ends: %v", registry.ended)
	}

	// Completion frees the instructor for a new session.
	if _, err := l.Create(1, "CSE-3B", "LH-205", "CS302", 0); err != nil {
		t.Errorf("Create after Complete: %v", err)
	}
}

func TestCompleteWrongInstructor(t *testing.T) {
	t.Parallel()
	l, _, _, _ := newTestLifecycle(t)

	sess, err := l.Create(1, "CSE-3A", "LH-204", "CS301", 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, _, err := l.Link(sess.SessionID, sess.LinkingCode); err != nil {
		t.Fatalf("Link: %v", err)
	}

	if _, err := l.Complete(sess.SessionID, 2); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("got %v, want ErrSessionNotFound", err)
	}
}

func TestGetUnknownSession(t *testing.T) {
	t.Parallel()
	l, _, _, _ := newTestLifecycle(t)

	if _, err := l.Get("SESS_MISSING"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("got %v, want ErrSessionNotFound", err)
	}
}
