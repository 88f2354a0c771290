package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	mu         sync.Mutex
	current    *Session
	getErr     error
	signInErr  error
	signOutErr error
	getGate    chan struct{}
	listeners  map[int]func(AuthEvent, *Session)
	next       int
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{listeners: make(map[int]func(AuthEvent, *Session))}
}

func (f *fakeAuth) GetSession(ctx context.Context) (*Session, error) {
	if f.getGate != nil {
		select {
		case <-f.getGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.current.Clone(), nil
}

func (f *fakeAuth) OnAuthStateChange(fn func(AuthEvent, *Session)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	f.listeners[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.listeners, id)
	}
}

func (f *fakeAuth) emit(event AuthEvent, s *Session) {
	f.mu.Lock()
	f.current = s.Clone()
	fns := make([]func(AuthEvent, *Session), 0, len(f.listeners))
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(event, s.Clone())
	}
}

func (f *fakeAuth) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	s := &Session{UserID: "u-" + email, Email: email, AccessToken: "tok-" + email}
	f.emit(EventSignedIn, s)
	return s, nil
}

func (f *fakeAuth) SignUp(ctx context.Context, email, password string, p ProfileFields) (*Session, error) {
	s := &Session{UserID: "u-" + email, Email: email, FullName: p.FullName, Username: p.Username}
	f.emit(EventSignedIn, s)
	return s, nil
}

func (f *fakeAuth) SignOut(ctx context.Context) error {
	if f.signOutErr != nil {
		return f.signOutErr
	}
	f.emit(EventSignedOut, nil)
	return nil
}

func (f *fakeAuth) listenerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

func TestStore_StartsLoading(t *testing.T) {
	s := NewStore(newFakeAuth(), nil)
	st := s.State()
	assert.True(t, st.IsLoading)
	assert.Nil(t, st.Session)
	assert.False(t, st.SignedIn())
}

func TestStore_InitializeRestoresPersistedSession(t *testing.T) {
	auth := newFakeAuth()
	auth.current = &Session{UserID: "u1", AccessToken: "t1"}

	s := NewStore(auth, nil)
	require.NoError(t, s.Initialize(context.Background()))

	st := s.State()
	assert.False(t, st.IsLoading)
	require.NotNil(t, st.Session)
	assert.Equal(t, "u1", st.Session.UserID)
}

func TestStore_InitializeFailureResolvesSignedOut(t *testing.T) {
	auth := newFakeAuth()
	auth.getErr = errors.New("dial tcp: connection refused")

	s := NewStore(auth, nil)
	err := s.Initialize(context.Background())
	require.Error(t, err)

	st := s.State()
	assert.False(t, st.IsLoading)
	assert.Nil(t, st.Session)

	select {
	case <-s.Resolved():
	default:
		t.Fatal("store must resolve after a failed initialize")
	}
}

func TestStore_EventBeatsSlowGetSession(t *testing.T) {
	auth := newFakeAuth()
	auth.current = &Session{UserID: "old"}
	auth.getGate = make(chan struct{})

	s := NewStore(auth, nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Initialize(context.Background())
	}()

	require.Eventually(t, func() bool { return auth.listenerCount() == 1 }, time.Second, time.Millisecond)
	auth.emit(EventSignedIn, &Session{UserID: "new"})
	close(auth.getGate)
	<-done

	st := s.State()
	require.NotNil(t, st.Session)
	assert.Equal(t, "new", st.Session.UserID)
}

func TestStore_EventsReplaceNeverMerge(t *testing.T) {
	auth := newFakeAuth()
	s := NewStore(auth, nil)
	require.NoError(t, s.Initialize(context.Background()))

	auth.emit(EventSignedIn, &Session{UserID: "u1", FullName: "Ada Lovelace", Username: "ada"})
	auth.emit(EventUserUpdated, &Session{UserID: "u1", Username: "ada2"})

	st := s.State()
	require.NotNil(t, st.Session)
	assert.Equal(t, "ada2", st.Session.Username)
	assert.Empty(t, st.Session.FullName)
}

func TestStore_SignInErrorReturnedVerbatim(t *testing.T) {
	auth := newFakeAuth()
	auth.signInErr = errors.New("Invalid login credentials")
	s := NewStore(auth, nil)
	require.NoError(t, s.Initialize(context.Background()))

	_, err := s.SignIn(context.Background(), "a@b.co", "wrong")
	require.EqualError(t, err, "Invalid login credentials")
	assert.Nil(t, s.State().Session)
}

func TestStore_SignOutClearsEvenOnServiceError(t *testing.T) {
	auth := newFakeAuth()
	s := NewStore(auth, nil)
	require.NoError(t, s.Initialize(context.Background()))

	_, err := s.SignIn(context.Background(), "a@b.co", "pw")
	require.NoError(t, err)
	require.NotNil(t, s.State().Session)

	auth.signOutErr = errors.New("network down")
	err = s.SignOut(context.Background())
	require.Error(t, err)
	assert.Nil(t, s.State().Session)
}

func TestStore_UpdateSessionConvergesWithEvent(t *testing.T) {
	auth := newFakeAuth()
	s := NewStore(auth, nil)
	require.NoError(t, s.Initialize(context.Background()))

	var seen []*Session
	unsubscribe := s.Subscribe(func(st AuthState) { seen = append(seen, st.Session) })
	defer unsubscribe()

	local := &Session{UserID: "u7", Email: "u7@example.com", AccessToken: "tok"}
	s.UpdateSession(local)
	afterOverride := s.State().Session

	auth.emit(EventSignedIn, local)
	afterEvent := s.State().Session

	assert.Equal(t, afterOverride, afterEvent)
	require.Len(t, seen, 2)
	assert.Equal(t, seen[0], seen[1])
}

func TestStore_LastWriteWins(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		auth := newFakeAuth()
		s := NewStore(auth, nil)
		require.NoError(t, s.Initialize(context.Background()))

		var want *Session
		for step := 0; step < 10; step++ {
			switch rng.Intn(3) {
			case 0:
				email := fmt.Sprintf("user%d@example.com", rng.Intn(5))
				got, err := s.SignIn(context.Background(), email, "pw")
				require.NoError(t, err)
				want = got
			case 1:
				require.NoError(t, s.SignOut(context.Background()))
				want = nil
			case 2:
				want = &Session{UserID: fmt.Sprintf("local-%d", step)}
				s.UpdateSession(want)
			}
		}

		st := s.State()
		assert.False(t, st.IsLoading)
		assert.Equal(t, want, st.Session, "round %d", round)
	}
}

func TestStore_WaitUntilResolved(t *testing.T) {
	auth := newFakeAuth()
	auth.getGate = make(chan struct{})
	auth.current = &Session{UserID: "u1"}
	s := NewStore(auth, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	go func() { _ = s.Initialize(context.Background()) }()

	st, err := s.WaitUntilResolved(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, st.IsLoading)

	close(auth.getGate)
	st, err = s.WaitUntilResolved(context.Background())
	require.NoError(t, err)
	require.NotNil(t, st.Session)
	assert.Equal(t, "u1", st.Session.UserID)
}

func TestStore_CloseUnsubscribes(t *testing.T) {
	auth := newFakeAuth()
	s := NewStore(auth, nil)
	require.NoError(t, s.Initialize(context.Background()))
	require.Equal(t, 1, auth.listenerCount())

	s.Close()
	assert.Equal(t, 0, auth.listenerCount())
}

func TestSession_Expired(t *testing.T) {
	now := time.Now()
	var nilSession *Session
	assert.True(t, nilSession.Expired(now))
	assert.False(t, (&Session{}).Expired(now))
	assert.True(t, (&Session{ExpiresAt: now.Add(-time.Second)}).Expired(now))
	assert.False(t, (&Session{ExpiresAt: now.Add(time.Minute)}).Expired(now))
}
