package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/smartattend/backend/internal/domain"
)

const activeTokenKeyPrefix = "active_token:"

// TokenMirror keeps the latest token per session in Redis so a display that
// connects between rotations (or lands on another replica) can bootstrap
// without waiting a full interval. Best effort: the in-process registry is
// authoritative.
type TokenMirror struct {
	client *redis.Client
	ttl    time.Duration
}

func NewTokenMirror(client *redis.Client, ttl time.Duration) *TokenMirror {
	return &TokenMirror{client: client, ttl: ttl}
}

// Store records a freshly rotated token. Errors are returned for logging
// only; rotation never depends on the mirror.
func (m *TokenMirror) Store(ctx context.Context, update domain.TokenUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}
	return m.client.Set(ctx, activeTokenKeyPrefix+update.SessionID, data, m.ttl).Err()
}

// Load returns the mirrored token for a session, or nil if none is cached.
func (m *TokenMirror) Load(ctx context.Context, sessionID string) (*domain.TokenUpdate, error) {
	data, err := m.client.Get(ctx, activeTokenKeyPrefix+sessionID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var update domain.TokenUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		return nil, err
	}
	return &update, nil
}

// Drop removes the mirrored token when a session ends.
func (m *TokenMirror) Drop(ctx context.Context, sessionID string) error {
	return m.client.Del(ctx, activeTokenKeyPrefix+sessionID).Err()
}
