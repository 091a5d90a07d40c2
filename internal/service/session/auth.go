package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/smartattend/backend/internal/config"
	"github.com/smartattend/backend/internal/domain"
	"github.com/smartattend/backend/pkg/auth"
	"github.com/smartattend/backend/pkg/uid"
)

const blockedSessionKeyPrefix = "blocked_session:"

// AuthSessionRepository persists login sessions.
type AuthSessionRepository interface {
	CreateSession(userID int64, sessionID, deviceInfo, ipAddress string, expiresAt time.Time) error
	GetSessionByID(sessionID string) (*domain.UserSession, error)
	DeactivateSession(sessionID string) error
	UpdateSessionActivity(sessionID string) error
}

type CacheRepository interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// AuthService handles login session logic for instructor and student
// accounts.
type AuthService struct {
	repo  AuthSessionRepository
	cache CacheRepository // Optional, can be nil
}

func NewAuthService(repo AuthSessionRepository, cache CacheRepository) *AuthService {
	return &AuthService{
		repo:  repo,
		cache: cache,
	}
}

// Login creates a login session and mints the access token for it.
func (s *AuthService) Login(userID int64, username, role, deviceInfo, ipAddress string) (string, error) {
	sessionID, err := uid.GenerateAuthSessionID()
	if err != nil {
		return "", err
	}

	ttl := time.Duration(config.AppConfig.AuthSessionDays) * 24 * time.Hour
	if err := s.repo.CreateSession(userID, sessionID, deviceInfo, ipAddress, time.Now().Add(ttl)); err != nil {
		return "", fmt.Errorf("failed to create login session: %v", err)
	}

	return auth.GenerateAccessToken(userID, username, role, sessionID)
}

// ValidateToken checks the JWT signature, the Redis blocklist and the login
// session row.
func (s *AuthService) ValidateToken(tokenString string) (*auth.Claims, error) {
	claims, err := auth.ValidateJWT(tokenString)
	if err != nil {
		return nil, err
	}

	if s.isSessionBlocked(claims.SessionID) {
		return nil, errors.New("session is blocked/revoked")
	}

	sess, err := s.repo.GetSessionByID(claims.SessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil || !sess.IsActive {
		return nil, errors.New("session invalid or logged out")
	}
	if time.Now().After(sess.ExpiresAt) {
		return nil, errors.New("session expired")
	}

	// Update last activity in the background to not block the request.
	go func() {
		if err := s.repo.UpdateSessionActivity(claims.SessionID); err != nil {
			log.Printf("[SESSION] Failed to update activity: %v", err)
		}
	}()

	return claims, nil
}

// Logout deactivates the login session and blocklists it for the remainder
// of its token lifetime.
func (s *AuthService) Logout(sessionID string) error {
	if err := s.repo.DeactivateSession(sessionID); err != nil {
		return err
	}
	if s.cache != nil {
		ttl := time.Duration(config.AppConfig.AuthSessionDays) * 24 * time.Hour
		key := blockedSessionKeyPrefix + sessionID
		if err := s.cache.Set(context.Background(), key, "1", ttl); err != nil {
			log.Printf("[SESSION] Warning: failed to blocklist session: %v", err)
		}
	}
	return nil
}

func (s *AuthService) isSessionBlocked(sessionID string) bool {
	if s.cache == nil {
		return false
	}
	key := blockedSessionKeyPrefix + sessionID
	val, err := s.cache.Get(context.Background(), key)
	return err == nil && val != ""
}
