package token

import (
	"log"
	"sync"
	"time"

	"github.com/smartattend/backend/internal/domain"
)

// ValidationReason classifies the outcome of a token check against the
// registry.
type ValidationReason string

const (
	ReasonValid            ValidationReason = "valid"
	ReasonTokenExpired     ValidationReason = "token_expired"
	ReasonSignatureInvalid ValidationReason = "signature_invalid"
	ReasonSessionMismatch  ValidationReason = "session_mismatch"
	ReasonNoActiveTokens   ValidationReason = "no_active_tokens"
)

// State is the rotating token state for one active session. The current and
// previous slots give a scan that races a rotation one interval of grace;
// the absolute validity window applies to both slots, so a captured token
// dies after at most validity + one rotation interval.
type State struct {
	SessionID        string
	ClassID          string
	RoomID           string
	SubjectID        string
	CurrentToken     string
	CurrentIssuedAt  int64
	PreviousToken    string
	PreviousIssuedAt int64
	Sequence         int64
}

type entry struct {
	mu    sync.Mutex
	state State
}

// Registry holds per-session rotating token state. All mutation of one
// session's state is serialized behind that session's lock; validation reads
// a consistent snapshot under the same lock so no caller ever observes a
// half-applied rotation.
type Registry struct {
	codec           *Codec
	validitySeconds int64
	graceSeconds    int64

	mu       sync.RWMutex
	sessions map[string]*entry

	now func() time.Time
}

func NewRegistry(codec *Codec, validitySeconds, graceSeconds int) *Registry {
	return &Registry{
		codec:           codec,
		validitySeconds: int64(validitySeconds),
		graceSeconds:    int64(graceSeconds),
		sessions:        make(map[string]*entry),
		now:             time.Now,
	}
}

// Create seeds token state for a newly linked session, issuing the first
// token at sequence 1. Fails with ErrSessionAlreadyActive if state already
// exists.
func (r *Registry) Create(sessionID, classID, roomID, subjectID string) (domain.TokenUpdate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[sessionID]; exists {
		return domain.TokenUpdate{}, domain.ErrSessionAlreadyActive
	}

	issuedAt := r.now().Unix()
	tok, err := r.codec.Encode(Payload{
		SessionID: sessionID,
		ClassID:   classID,
		RoomID:    roomID,
		SubjectID: subjectID,
		Sequence:  1,
		IssuedAt:  issuedAt,
	})
	if err != nil {
		return domain.TokenUpdate{}, err
	}

	r.sessions[sessionID] = &entry{state: State{
		SessionID:       sessionID,
		ClassID:         classID,
		RoomID:          roomID,
		SubjectID:       subjectID,
		CurrentToken:    tok,
		CurrentIssuedAt: issuedAt,
		Sequence:        1,
	}}

	return r.update(tok, 1, issuedAt, sessionID), nil
}

// Rotate atomically moves current to previous and mints the next token.
func (r *Registry) Rotate(sessionID string) (domain.TokenUpdate, error) {
	e, ok := r.lookup(sessionID)
	if !ok {
		return domain.TokenUpdate{}, domain.ErrNoActiveTokens
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	issuedAt := r.now().Unix()
	next := e.state.Sequence + 1
	tok, err := r.codec.Encode(Payload{
		SessionID: sessionID,
		ClassID:   e.state.ClassID,
		RoomID:    e.state.RoomID,
		SubjectID: e.state.SubjectID,
		Sequence:  next,
		IssuedAt:  issuedAt,
	})
	if err != nil {
		return domain.TokenUpdate{}, err
	}

	e.state.PreviousToken = e.state.CurrentToken
	e.state.PreviousIssuedAt = e.state.CurrentIssuedAt
	e.state.CurrentToken = tok
	e.state.CurrentIssuedAt = issuedAt
	e.state.Sequence = next

	return r.update(tok, next, issuedAt, sessionID), nil
}

// Validate checks a scanned token against the session's current and previous
// slots. Token age is checked against the absolute validity window no matter
// which slot matched; the previous slot is grace for in-flight scans, not an
// extension of validity.
func (r *Registry) Validate(sessionID, scanned string) (bool, ValidationReason) {
	e, ok := r.lookup(sessionID)
	if !ok {
		return false, ReasonNoActiveTokens
	}

	payload, err := r.codec.Decode(scanned)
	if err != nil {
		log.Printf("[TOKEN] Decode failed for session %s: %v", sessionID, err)
		return false, ReasonSignatureInvalid
	}

	if payload.SessionID != sessionID {
		return false, ReasonSessionMismatch
	}

	e.mu.Lock()
	current, previous := e.state.CurrentToken, e.state.PreviousToken
	e.mu.Unlock()

	if scanned != current && (previous == "" || scanned != previous) {
		// A token from two or more rotations ago.
		return false, ReasonTokenExpired
	}

	age := r.now().Unix() - payload.IssuedAt
	if age < 0 || age > r.validitySeconds+r.graceSeconds {
		return false, ReasonTokenExpired
	}

	return true, ReasonValid
}

// Current returns the live token for a session so a display that connects
// between rotations does not have to wait a full interval.
func (r *Registry) Current(sessionID string) (domain.TokenUpdate, error) {
	e, ok := r.lookup(sessionID)
	if !ok {
		return domain.TokenUpdate{}, domain.ErrNoActiveTokens
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return r.update(e.state.CurrentToken, e.state.Sequence, e.state.CurrentIssuedAt, sessionID), nil
}

// End removes the session's token state. Subsequent Rotate/Validate calls
// report no active tokens.
func (r *Registry) End(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

// ActiveSessionIDs lists every session currently holding token state.
func (r *Registry) ActiveSessionIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// ExpireAll drops every registry entry and returns how many were dropped.
// Used by the scheduler's startup sweep to reclaim state left over from a
// previous process lifetime.
func (r *Registry) ExpireAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.sessions)
	r.sessions = make(map[string]*entry)
	return n
}

func (r *Registry) lookup(sessionID string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sessionID]
	return e, ok
}

func (r *Registry) update(tok string, seq, issuedAt int64, sessionID string) domain.TokenUpdate {
	return domain.TokenUpdate{
		SessionID: sessionID,
		Token:     tok,
		Sequence:  seq,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt + r.validitySeconds,
	}
}
