package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu       sync.Mutex
	sessions map[string]*SessionData
}

func newMemStore() *memStore { return &memStore{sessions: map[string]*SessionData{}} }

func (s *memStore) CreateSession(_ context.Context, d *SessionData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.sessions[d.SessionID] = &cp
	return nil
}

func (s *memStore) FindSession(_ context.Context, id string) (*SessionData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *memStore) UpdateSessionTokens(_ context.Context, id, access, refresh string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.sessions[id]; ok {
		d.AccessJTI, d.RefreshJTI = access, refresh
	}
	return nil
}

func (s *memStore) InvalidateSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.sessions[id]; ok {
		d.IsActive = false
	}
	return nil
}

// unreachableRedis fails every command quickly so the manager takes its
// database path.
func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	c := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestManagerFallsBackToStore(t *testing.T) {
	store := newMemStore()
	m := NewManager(unreachableRedis(t), store, nil)
	ctx := context.Background()

	s := &SessionData{SessionID: "s1", UserID: "u1", AccessJTI: "a1", IsActive: true, ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, m.CreateSession(ctx, s))

	got, err := m.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)

	require.NoError(t, m.Rotate(ctx, got, "a2", "r2"))
	got, err = m.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "a2", got.AccessJTI)

	require.NoError(t, m.InvalidateSession(ctx, "s1"))
	_, err = m.GetSession(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestExpiredSessionIsRefused(t *testing.T) {
	store := newMemStore()
	m := NewManager(unreachableRedis(t), store, nil)

	err := m.CreateSession(context.Background(), &SessionData{SessionID: "s1", ExpiresAt: time.Now().Add(-time.Second)})
	assert.Error(t, err)

	store.sessions["s2"] = &SessionData{SessionID: "s2", IsActive: true, ExpiresAt: time.Now().Add(-time.Second)}
	_, err = m.GetSession(context.Background(), "s2")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestBlacklistSkipsExpiredTokens(t *testing.T) {
	m := NewManager(unreachableRedis(t), newMemStore(), nil)
	assert.NoError(t, m.BlacklistToken(context.Background(), "jti", 0))

	_, err := m.IsTokenBlacklisted(context.Background(), "jti")
	assert.Error(t, err)
}

func TestRateLimiterDefaults(t *testing.T) {
	r := NewRateLimiter(unreachableRedis(t), 0, 0)
	assert.Equal(t, int64(5), r.maxAttempts)
	assert.Equal(t, 15*time.Minute, r.window)
	assert.Equal(t, "ratelimit:login:1.2.3.4:ada@example.com", r.loginKey("1.2.3.4", "Ada@Example.com"))
}
