// internal/client/backend/auth.go
package backend

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"segmentbook-service/internal/client/model"
	"segmentbook-service/internal/client/session"
)

type authUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Username string `json:"username"`
}

type authResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         authUser  `json:"user"`
}

func (r authResponse) session() *session.Session {
	return &session.Session{
		UserID:       r.User.ID,
		Email:        r.User.Email,
		FullName:     r.User.FullName,
		Username:     r.User.Username,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    r.ExpiresAt,
	}
}

// AuthClient is the backend auth contract. It keeps the session in a
// SessionFile and reports changes made by other processes through Watch.
type AuthClient struct {
	api    *Client
	file   *SessionFile
	logger *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	current   *session.Session
	listeners map[int]func(session.AuthEvent, *session.Session)
	next      int
}

var _ session.AuthService = (*AuthClient)(nil)

// NewAuthClient creates the auth client and installs it as api's token source.
func NewAuthClient(api *Client, file *SessionFile, logger *zap.Logger) *AuthClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &AuthClient{
		api:       api,
		file:      file,
		logger:    logger,
		now:       time.Now,
		listeners: make(map[int]func(session.AuthEvent, *session.Session)),
	}
	api.SetTokenSource(a)
	return a
}

// AccessToken implements TokenSource.
func (a *AuthClient) AccessToken() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return ""
	}
	return a.current.AccessToken
}

// GetSession restores the persisted session, refreshing it when expired.
func (a *AuthClient) GetSession(ctx context.Context) (*session.Session, error) {
	s, err := a.file.Load()
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.current = s.Clone()
	a.mu.Unlock()

	if s == nil || !s.Expired(a.now()) {
		return s, nil
	}
	if s.RefreshToken == "" {
		a.forget()
		return nil, nil
	}

	refreshed, err := a.refresh(ctx, s.RefreshToken)
	if err != nil {
		if rejected(err) {
			a.logger.Info("stored session could not be refreshed", zap.Error(err))
			a.forget()
			return nil, nil
		}
		return nil, err
	}
	return refreshed, nil
}

// OnAuthStateChange registers fn for auth events.
func (a *AuthClient) OnAuthStateChange(fn func(session.AuthEvent, *session.Session)) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.next
	a.next++
	a.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			defer a.mu.Unlock()
			delete(a.listeners, id)
		})
	}
}

func (a *AuthClient) SignInWithPassword(ctx context.Context, email, password string) (*session.Session, error) {
	var resp authResponse
	body := map[string]string{"email": email, "password": password}
	if err := a.api.do(ctx, KindAuth, http.MethodPost, "/auth/login", nil, body, &resp); err != nil {
		return nil, asAuth(err)
	}
	s := resp.session()
	a.store(s)
	a.emit(session.EventSignedIn, s)
	return s, nil
}

func (a *AuthClient) SignUp(ctx context.Context, email, password string, profile session.ProfileFields) (*session.Session, error) {
	var resp authResponse
	body := map[string]string{
		"email":     email,
		"password":  password,
		"full_name": profile.FullName,
		"username":  profile.Username,
		"country":   profile.Country,
	}
	if err := a.api.do(ctx, KindAuth, http.MethodPost, "/auth/register", nil, body, &resp); err != nil {
		return nil, asAuth(err)
	}
	s := resp.session()
	a.store(s)
	a.emit(session.EventSignedIn, s)
	return s, nil
}

// SignOut revokes the session at the backend and forgets it locally even when
// the backend call fails.
func (a *AuthClient) SignOut(ctx context.Context) error {
	var err error
	if a.AccessToken() != "" {
		err = a.api.do(ctx, KindAuth, http.MethodPost, "/auth/logout", nil, nil, nil)
	}
	a.forget()
	a.emit(session.EventSignedOut, nil)
	return err
}

// Refresh exchanges the refresh token for a new access token.
func (a *AuthClient) Refresh(ctx context.Context) (*session.Session, error) {
	a.mu.Lock()
	cur := a.current.Clone()
	a.mu.Unlock()
	if cur == nil || cur.RefreshToken == "" {
		return nil, &APIError{Kind: KindAuth, Status: http.StatusUnauthorized, Message: "not signed in"}
	}
	return a.refresh(ctx, cur.RefreshToken)
}

func (a *AuthClient) refresh(ctx context.Context, refreshToken string) (*session.Session, error) {
	var resp authResponse
	body := map[string]string{"refresh_token": refreshToken}
	if err := a.api.do(ctx, KindAuth, http.MethodPost, "/auth/refresh", nil, body, &resp); err != nil {
		return nil, asAuth(err)
	}
	s := resp.session()
	a.store(s)
	a.emit(session.EventTokenRefreshed, s)
	return s, nil
}

// ApplyProfile copies profile fields into the session after a profile update.
func (a *AuthClient) ApplyProfile(p *model.Profile) {
	a.mu.Lock()
	if a.current == nil || p == nil || a.current.UserID != p.ID {
		a.mu.Unlock()
		return
	}
	s := a.current.Clone()
	a.mu.Unlock()

	s.FullName = p.FullName
	s.Username = p.Username
	s.Email = p.Email
	a.store(s)
	a.emit(session.EventUserUpdated, s)
}

// Watch reports session file changes made by other processes until ctx ends.
func (a *AuthClient) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch the directory: Save replaces the file by rename.
	dir := filepath.Dir(a.file.Path())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		w.Close()
		return err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return err
	}

	target := filepath.Clean(a.file.Path())
	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				a.reload()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				a.logger.Warn("session file watch error", zap.Error(err))
			}
		}
	}()
	return nil
}

func (a *AuthClient) reload() {
	next, err := a.file.Load()
	if err != nil {
		a.logger.Debug("session file unreadable, ignoring change", zap.Error(err))
		return
	}

	a.mu.Lock()
	prev := a.current
	if sameSession(prev, next) {
		a.mu.Unlock()
		return
	}
	a.current = next.Clone()
	a.mu.Unlock()

	a.emit(classify(prev, next), next)
}

func classify(prev, next *session.Session) session.AuthEvent {
	switch {
	case next == nil:
		return session.EventSignedOut
	case prev == nil || prev.UserID != next.UserID:
		return session.EventSignedIn
	case prev.AccessToken != next.AccessToken:
		return session.EventTokenRefreshed
	default:
		return session.EventUserUpdated
	}
}

func sameSession(a, b *session.Session) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.UserID == b.UserID &&
		a.Email == b.Email &&
		a.FullName == b.FullName &&
		a.Username == b.Username &&
		a.AccessToken == b.AccessToken &&
		a.RefreshToken == b.RefreshToken &&
		a.ExpiresAt.Equal(b.ExpiresAt)
}

// store updates memory before disk so the watcher sees no change for our own writes.
func (a *AuthClient) store(s *session.Session) {
	a.mu.Lock()
	a.current = s.Clone()
	a.mu.Unlock()

	if err := a.file.Save(s); err != nil {
		a.logger.Warn("failed to persist session", zap.Error(err))
	}
}

func (a *AuthClient) forget() {
	a.mu.Lock()
	a.current = nil
	a.mu.Unlock()

	if err := a.file.Clear(); err != nil {
		a.logger.Warn("failed to clear session file", zap.Error(err))
	}
}

func (a *AuthClient) emit(event session.AuthEvent, s *session.Session) {
	a.mu.Lock()
	fns := make([]func(session.AuthEvent, *session.Session), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.mu.Unlock()

	for _, fn := range fns {
		fn(event, s.Clone())
	}
}

// rejected reports that the backend refused the credentials, as opposed to
// being unreachable.
func rejected(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500
}

func asAuth(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		apiErr.Kind = KindAuth
		return apiErr
	}
	return err
}
