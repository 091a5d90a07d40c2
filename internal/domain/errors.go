package domain

import "errors"

// Token errors (surfaced by the codec and registry).
var (
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrMalformedPayload = errors.New("malformed token payload")
	ErrTokenExpired     = errors.New("token expired")
	ErrSessionMismatch  = errors.New("token does not belong to this session")
	ErrNoActiveTokens   = errors.New("no active tokens for session")
)

// Lifecycle errors.
var (
	ErrSessionNotFound         = errors.New("session not found")
	ErrSessionNotActive        = errors.New("session is not active")
	ErrSessionAlreadyActive    = errors.New("session already has active token state")
	ErrConcurrentSessionExists = errors.New("instructor already has an active session")
	ErrCodeExpired             = errors.New("linking code expired")
	ErrCodeMismatch            = errors.New("linking code mismatch")
)

// ErrAlreadyRecorded is returned when attendance has already been submitted
// for a (session, student) pair. It is the idempotency guard for the whole
// verification path and is checked before any scoring result is persisted.
var ErrAlreadyRecorded = errors.New("attendance already recorded for this session")
