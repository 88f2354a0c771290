// internal/client/guard/guard.go
package guard

import (
	"context"
	"time"

	"go.uber.org/zap"

	"segmentbook-service/internal/client/model"
	"segmentbook-service/internal/client/session"
)

const (
	SignInRoute          = "/sign-in"
	NoticeSignInRequired = "You must be signed in to access this page."

	DefaultPollInterval = 50 * time.Millisecond
)

// StateSource exposes the auth state the guard decides on.
type StateSource interface {
	State() session.AuthState
}

// Awaiter is a StateSource that can block until it resolves.
type Awaiter interface {
	StateSource
	WaitUntilResolved(ctx context.Context) (session.AuthState, error)
}

// ProfileLoader confirms a users row exists for the session.
type ProfileLoader func(ctx context.Context, s *session.Session) (*model.Profile, error)

// Decision is the outcome of one Check.
type Decision struct {
	Allowed    bool
	RedirectTo string
	Notice     string
	Session    *session.Session
	Profile    *model.Profile
}

func denied() Decision {
	return Decision{RedirectTo: SignInRoute, Notice: NoticeSignInRequired}
}

// Guard gates protected routes on a resolved session.
type Guard struct {
	source       StateSource
	loadProfile  ProfileLoader
	pollInterval time.Duration
	logger       *zap.Logger
}

// Option configures a Guard.
type Option func(*Guard)

func WithProfileLoader(fn ProfileLoader) Option {
	return func(g *Guard) { g.loadProfile = fn }
}

// WithPollInterval sets the interval used when the source cannot be awaited.
func WithPollInterval(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.pollInterval = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(g *Guard) {
		if l != nil {
			g.logger = l
		}
	}
}

// New creates a guard reading from source.
func New(source StateSource, opts ...Option) *Guard {
	g := &Guard{
		source:       source,
		pollInterval: DefaultPollInterval,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check waits for the auth state to resolve and decides. It never redirects
// by itself, so it is safe to run on every navigation. An error means ctx
// ended while the state was still loading and no decision was made.
func (g *Guard) Check(ctx context.Context) (Decision, error) {
	state, err := g.await(ctx)
	if err != nil {
		return Decision{}, err
	}

	if state.Session == nil {
		return denied(), nil
	}

	d := Decision{Allowed: true, Session: state.Session}
	if g.loadProfile == nil {
		return d, nil
	}

	profile, err := g.loadProfile(ctx, state.Session)
	if err != nil {
		g.logger.Warn("profile check failed",
			zap.String("user_id", state.Session.UserID),
			zap.Error(err),
		)
		return denied(), nil
	}
	if profile == nil {
		return denied(), nil
	}
	d.Profile = profile
	return d, nil
}

func (g *Guard) await(ctx context.Context) (session.AuthState, error) {
	if a, ok := g.source.(Awaiter); ok {
		return a.WaitUntilResolved(ctx)
	}

	state := g.source.State()
	if !state.IsLoading {
		return state, nil
	}

	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case <-ticker.C:
			state = g.source.State()
			if !state.IsLoading {
				return state, nil
			}
		}
	}
}
