// internal/pkg/session/manager.go
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrSessionNotFound = errors.New("session not found")

// Store is the durable copy of sessions; Redis is the fast path.
type Store interface {
	CreateSession(ctx context.Context, s *SessionData) error
	FindSession(ctx context.Context, sessionID string) (*SessionData, error)
	UpdateSessionTokens(ctx context.Context, sessionID, accessJTI, refreshJTI string) error
	InvalidateSession(ctx context.Context, sessionID string) error
}

type Manager struct {
	client redis.UniversalClient
	store  Store
	logger *zap.Logger
}

func NewManager(client redis.UniversalClient, store Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		client: client,
		store:  store,
		logger: logger,
	}
}

// CreateSession stores a new session in the database and caches it in Redis.
func (m *Manager) CreateSession(ctx context.Context, s *SessionData) error {
	if time.Until(s.ExpiresAt) <= 0 {
		return fmt.Errorf("session already expired")
	}
	if err := m.store.CreateSession(ctx, s); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	m.cache(ctx, s)
	return nil
}

// GetSession retrieves a session from Redis with DB fallback
func (m *Manager) GetSession(ctx context.Context, sessionID string) (*SessionData, error) {
	data, err := m.client.Get(ctx, m.sessionKey(sessionID)).Bytes()
	if err == nil {
		var s SessionData
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session: %w", err)
		}
		return &s, nil
	}
	if !errors.Is(err, redis.Nil) {
		m.logger.Warn("redis error, falling back to database",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}

	s, err := m.store.FindSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionNotFound, err)
	}
	if !s.IsActive || time.Now().After(s.ExpiresAt) {
		return nil, ErrSessionNotFound
	}

	m.cache(ctx, s)
	return s, nil
}

// Rotate records new token ids for a session after a refresh.
func (m *Manager) Rotate(ctx context.Context, s *SessionData, accessJTI, refreshJTI string) error {
	if err := m.store.UpdateSessionTokens(ctx, s.SessionID, accessJTI, refreshJTI); err != nil {
		return fmt.Errorf("failed to rotate session: %w", err)
	}
	s.AccessJTI = accessJTI
	s.RefreshJTI = refreshJTI
	s.LastActivityAt = time.Now()
	m.cache(ctx, s)
	return nil
}

// InvalidateSession removes a session from Redis and DB
func (m *Manager) InvalidateSession(ctx context.Context, sessionID string) error {
	if err := m.client.Del(ctx, m.sessionKey(sessionID)).Err(); err != nil {
		m.logger.Warn("failed to delete session from redis", zap.String("session_id", sessionID), zap.Error(err))
	}
	if err := m.store.InvalidateSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to invalidate DB session: %w", err)
	}
	return nil
}

// IsTokenBlacklisted checks if a token is blacklisted
func (m *Manager) IsTokenBlacklisted(ctx context.Context, jti string) (bool, error) {
	exists, err := m.client.Exists(ctx, m.blacklistKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}
	return exists > 0, nil
}

// BlacklistToken adds a token to the blacklist until it would expire anyway.
func (m *Manager) BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return m.client.Set(ctx, m.blacklistKey(jti), "1", ttl).Err()
}

func (m *Manager) cache(ctx context.Context, s *SessionData) {
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return
	}
	data, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := m.client.Set(ctx, m.sessionKey(s.SessionID), data, ttl).Err(); err != nil {
		m.logger.Warn("failed to cache session", zap.String("session_id", s.SessionID), zap.Error(err))
	}
}

func (m *Manager) sessionKey(sessionID string) string {
	return "session:" + sessionID
}

func (m *Manager) blacklistKey(jti string) string {
	return "blacklist:" + jti
}
