// internal/client/session/types.go
package session

import (
	"context"
	"time"
)

// Session is the authenticated identity held by the application.
type Session struct {
	UserID       string    `json:"user_id" yaml:"user_id"`
	Email        string    `json:"email" yaml:"email"`
	FullName     string    `json:"full_name" yaml:"full_name"`
	Username     string    `json:"username" yaml:"username"`
	AccessToken  string    `json:"access_token" yaml:"access_token"`
	RefreshToken string    `json:"refresh_token" yaml:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at" yaml:"expires_at"`
}

// Expired reports whether the access token is past its expiry.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Clone returns a copy callers may keep without aliasing store state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// AuthState is what guards and views read. While IsLoading is true Session
// is not authoritative.
type AuthState struct {
	Session   *Session
	IsLoading bool
}

// SignedIn reports a resolved, non-empty session.
func (a AuthState) SignedIn() bool {
	return !a.IsLoading && a.Session != nil
}

// AuthEvent names a change emitted by the auth service.
type AuthEvent string

const (
	EventInitialSession AuthEvent = "INITIAL_SESSION"
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
	EventUserUpdated    AuthEvent = "USER_UPDATED"
)

// ProfileFields are collected at sign-up and stored on the users row.
type ProfileFields struct {
	FullName string `json:"full_name"`
	Username string `json:"username"`
	Country  string `json:"country"`
}

// AuthService is the backend auth contract consumed by the Store.
type AuthService interface {
	GetSession(ctx context.Context) (*Session, error)
	OnAuthStateChange(fn func(event AuthEvent, s *Session)) (unsubscribe func())
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string, profile ProfileFields) (*Session, error)
	SignOut(ctx context.Context) error
}
