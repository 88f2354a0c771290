package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"segmentbook-service/internal/domain/auth"
	xerrors "segmentbook-service/internal/pkg/errors"
	"segmentbook-service/internal/pkg/jwt"
	"segmentbook-service/internal/pkg/session"
)

type fakeUsers struct {
	mu    sync.Mutex
	byID  map[string]*auth.User
	count int
}

func (f *fakeUsers) CreateUser(_ context.Context, u *auth.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if strings.EqualFold(existing.Email, u.Email) {
			return xerrors.New(xerrors.ErrDuplicateEntry, "An account with this email already exists")
		}
	}
	f.count++
	u.ID = "u" + string(rune('0'+f.count))
	u.Email = strings.ToLower(u.Email)
	cp := *u
	f.byID[u.ID] = &cp
	return nil
}

func (f *fakeUsers) FindUserByEmail(_ context.Context, email string) (*auth.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (f *fakeUsers) FindUserByID(_ context.Context, id string) (*auth.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

type fakeSessions struct {
	mu        sync.Mutex
	sessions  map[string]*session.SessionData
	blacklist map[string]bool
}

func (f *fakeSessions) CreateSession(_ context.Context, s *session.SessionData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.sessions[s.SessionID] = &cp
	return nil
}

func (f *fakeSessions) GetSession(_ context.Context, id string) (*session.SessionData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok || !s.IsActive {
		return nil, session.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessions) Rotate(_ context.Context, s *session.SessionData, access, refresh string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := f.sessions[s.SessionID]
	stored.AccessJTI, stored.RefreshJTI = access, refresh
	return nil
}

func (f *fakeSessions) InvalidateSession(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[id]; ok {
		s.IsActive = false
	}
	return nil
}

func (f *fakeSessions) IsTokenBlacklisted(_ context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blacklist[jti], nil
}

func (f *fakeSessions) BlacklistToken(_ context.Context, jti string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blacklist[jti] = true
	return nil
}

type fakeLimiter struct {
	attempts map[string]int
	max      int
}

func (f *fakeLimiter) CheckLoginAttempt(_ context.Context, ip, email string) (bool, int64, error) {
	f.attempts[ip+email]++
	return f.attempts[ip+email] <= f.max, int64(f.max - f.attempts[ip+email]), nil
}

func (f *fakeLimiter) ResetLoginAttempts(_ context.Context, ip, email string) error {
	delete(f.attempts, ip+email)
	return nil
}

type fakeHub struct{ logouts []string }

func (f *fakeHub) ForceLogout(userID, sessionID, _ string) {
	f.logouts = append(f.logouts, userID+"/"+sessionID)
}

type fixture struct {
	svc      *AuthService
	users    *fakeUsers
	sessions *fakeSessions
	hub      *fakeHub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	m := jwt.Build(jwt.Config{Issuer: "segmentbook", Audience: "segmentbook-users", TTL: time.Hour, RefreshTTL: 24 * time.Hour}, key, &key.PublicKey)

	f := &fixture{
		users:    &fakeUsers{byID: map[string]*auth.User{}},
		sessions: &fakeSessions{sessions: map[string]*session.SessionData{}, blacklist: map[string]bool{}},
		hub:      &fakeHub{},
	}
	f.svc = NewAuthService(f.users, m, f.sessions, &fakeLimiter{attempts: map[string]int{}, max: 3}, f.hub, zap.NewNop())
	return f
}

func register(t *testing.T, f *fixture) *auth.LoginResponse {
	t.Helper()
	resp, err := f.svc.Register(context.Background(), &auth.RegisterRequest{
		Email:    "Ada@Example.com",
		Password: "s3cret!pass",
		FullName: " Ada Lovelace ",
		Username: "Ada_L",
		Country:  "UK",
	})
	require.NoError(t, err)
	return resp
}

func TestRegisterSignsIn(t *testing.T) {
	f := newFixture(t)
	resp := register(t, f)

	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, "ada@example.com", resp.User.Email)
	assert.Equal(t, "Ada Lovelace", resp.User.FullName)
	assert.Equal(t, "ada_l", resp.User.Username)
	assert.InDelta(t, 3600, resp.ExpiresIn, 5)
	assert.Len(t, f.sessions.sessions, 1)

	stored := f.users.byID[resp.User.ID]
	assert.NotEqual(t, "s3cret!pass", stored.PasswordHash)

	claims, err := f.svc.ValidateToken(context.Background(), resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
}

func TestLoginWrongPasswordAndRateLimit(t *testing.T) {
	f := newFixture(t)
	register(t, f)
	ctx := context.Background()

	_, err := f.svc.Login(ctx, &auth.LoginRequest{Email: "ada@example.com", Password: "nope", IPAddress: "1.1.1.1"})
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
	assert.EqualError(t, err, "Invalid email or password")

	_, err = f.svc.Login(ctx, &auth.LoginRequest{Email: "nobody@example.com", Password: "nope", IPAddress: "1.1.1.1"})
	assert.EqualError(t, err, "Invalid email or password")

	resp, err := f.svc.Login(ctx, &auth.LoginRequest{Email: "ada@example.com", Password: "s3cret!pass", IPAddress: "1.1.1.1"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.RefreshToken)

	for i := 0; i < 3; i++ {
		_, _ = f.svc.Login(ctx, &auth.LoginRequest{Email: "ada@example.com", Password: "bad", IPAddress: "2.2.2.2"})
	}
	_, err = f.svc.Login(ctx, &auth.LoginRequest{Email: "ada@example.com", Password: "s3cret!pass", IPAddress: "2.2.2.2"})
	assert.ErrorIs(t, err, xerrors.ErrRateLimited)
}

func TestRefreshRotatesTokens(t *testing.T) {
	f := newFixture(t)
	first := register(t, f)
	ctx := context.Background()

	second, err := f.svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.AccessToken, second.AccessToken)

	// The old access token is revoked and the old refresh token is stale.
	_, err = f.svc.ValidateToken(ctx, first.AccessToken)
	assert.ErrorIs(t, err, xerrors.ErrSessionExpired)
	_, err = f.svc.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, xerrors.ErrSessionExpired)

	_, err = f.svc.ValidateToken(ctx, second.AccessToken)
	assert.NoError(t, err)

	_, err = f.svc.Refresh(ctx, second.AccessToken)
	assert.ErrorIs(t, err, xerrors.ErrSessionExpired)
}

func TestLogoutEndsSession(t *testing.T) {
	f := newFixture(t)
	resp := register(t, f)
	ctx := context.Background()

	claims, err := f.svc.ValidateToken(ctx, resp.AccessToken)
	require.NoError(t, err)
	require.NoError(t, f.svc.Logout(ctx, claims))

	_, err = f.svc.ValidateToken(ctx, resp.AccessToken)
	assert.ErrorIs(t, err, xerrors.ErrSessionExpired)
	_, err = f.svc.Refresh(ctx, resp.RefreshToken)
	assert.Error(t, err)
	assert.Equal(t, []string{claims.UserID + "/" + claims.SessionID}, f.hub.logouts)
}

func TestDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	register(t, f)
	_, err := f.svc.Register(context.Background(), &auth.RegisterRequest{
		Email: "ada@example.com", Password: "s3cret!pass", FullName: "Other", Username: "other", Country: "UK",
	})
	assert.ErrorIs(t, err, xerrors.ErrDuplicateEntry)
}
