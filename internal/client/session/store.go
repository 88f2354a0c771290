// internal/client/session/store.go
package session

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Store is the single source of truth for who is signed in.
type Store struct {
	svc    AuthService
	logger *zap.Logger

	mu        sync.RWMutex
	state     AuthState
	written   bool // any write since Initialize began supersedes GetSession
	listeners map[uint64]func(AuthState)
	seq       uint64

	initOnce    sync.Once
	resolved    chan struct{}
	resolveOnce sync.Once
	unsubscribe func()
}

// NewStore creates a store in the loading state. Call Initialize to resolve it.
func NewStore(svc AuthService, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		svc:       svc,
		logger:    logger,
		state:     AuthState{IsLoading: true},
		listeners: make(map[uint64]func(AuthState)),
		resolved:  make(chan struct{}),
	}
}

// Initialize subscribes to auth events and loads any persisted session. A
// failure resolves the store as signed out and is returned for logging.
func (s *Store) Initialize(ctx context.Context) error {
	var err error
	s.initOnce.Do(func() {
		unsubscribe := s.svc.OnAuthStateChange(s.handleEvent)
		s.mu.Lock()
		s.unsubscribe = unsubscribe
		s.mu.Unlock()

		var sess *Session
		sess, err = s.svc.GetSession(ctx)

		s.mu.Lock()
		if err != nil {
			s.logger.Warn("failed to restore session", zap.Error(err))
			if !s.written {
				s.state.Session = nil
			}
		} else if !s.written {
			s.state.Session = sess.Clone()
		}
		s.state.IsLoading = false
		pending := s.pendingLocked()
		s.mu.Unlock()

		s.resolve()
		pending.fire()
	})
	return err
}

// State returns the current auth state.
func (s *Store) State() AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return AuthState{Session: s.state.Session.Clone(), IsLoading: s.state.IsLoading}
}

// SignIn checks credentials with the auth service. Errors are returned as-is
// and never retried.
func (s *Store) SignIn(ctx context.Context, email, password string) (*Session, error) {
	sess, err := s.svc.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s.UpdateSession(sess)
	return sess.Clone(), nil
}

// SignUp registers a new account and signs it in.
func (s *Store) SignUp(ctx context.Context, email, password string, profile ProfileFields) (*Session, error) {
	sess, err := s.svc.SignUp(ctx, email, password, profile)
	if err != nil {
		return nil, err
	}
	s.UpdateSession(sess)
	return sess.Clone(), nil
}

// SignOut asks the auth service to end the session and clears it locally
// whatever the outcome. Callers must wait for it before navigating.
func (s *Store) SignOut(ctx context.Context) error {
	err := s.svc.SignOut(ctx)
	if err != nil {
		s.logger.Warn("sign out failed at auth service", zap.Error(err))
	}
	s.UpdateSession(nil)
	return err
}

// UpdateSession replaces the session synchronously.
func (s *Store) UpdateSession(sess *Session) {
	s.mu.Lock()
	s.written = true
	s.state.Session = sess.Clone()
	s.state.IsLoading = false
	pending := s.pendingLocked()
	s.mu.Unlock()

	s.resolve()
	pending.fire()
}

// Subscribe registers fn for every state change.
func (s *Store) Subscribe(fn func(AuthState)) func() {
	s.mu.Lock()
	s.seq++
	id := s.seq
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Resolved is closed once IsLoading first becomes false.
func (s *Store) Resolved() <-chan struct{} {
	return s.resolved
}

// WaitUntilResolved blocks until the store has resolved or ctx is done.
func (s *Store) WaitUntilResolved(ctx context.Context) (AuthState, error) {
	select {
	case <-s.resolved:
		return s.State(), nil
	case <-ctx.Done():
		return AuthState{IsLoading: true}, ctx.Err()
	}
}

// Close detaches from the auth service.
func (s *Store) Close() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (s *Store) handleEvent(event AuthEvent, sess *Session) {
	s.logger.Debug("auth state changed", zap.String("event", string(event)))

	s.mu.Lock()
	s.written = true
	s.state.Session = sess.Clone()
	s.state.IsLoading = false
	pending := s.pendingLocked()
	s.mu.Unlock()

	s.resolve()
	pending.fire()
}

func (s *Store) resolve() {
	s.resolveOnce.Do(func() { close(s.resolved) })
}

type pendingNotify struct {
	fns   []func(AuthState)
	state AuthState
}

func (p pendingNotify) fire() {
	for _, fn := range p.fns {
		fn(p.state)
	}
}

func (s *Store) pendingLocked() pendingNotify {
	fns := make([]func(AuthState), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	return pendingNotify{
		fns:   fns,
		state: AuthState{Session: s.state.Session.Clone(), IsLoading: s.state.IsLoading},
	}
}
