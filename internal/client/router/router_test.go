package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"segmentbook-service/internal/client/backend"
	"segmentbook-service/internal/client/guard"
	"segmentbook-service/internal/client/model"
	"segmentbook-service/internal/client/params"
	"segmentbook-service/internal/client/queries"
	"segmentbook-service/internal/client/session"
	wstypes "segmentbook-service/internal/domain/websocket"
	qc "segmentbook-service/internal/pkg/querycache"
)

type staticAuth struct {
	mu   sync.Mutex
	sess *session.Session
	fn   func(session.AuthEvent, *session.Session)
}

func (a *staticAuth) GetSession(context.Context) (*session.Session, error) {
	return a.sess.Clone(), nil
}

func (a *staticAuth) OnAuthStateChange(fn func(session.AuthEvent, *session.Session)) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fn = fn
	return func() {}
}

func (a *staticAuth) emit(e session.AuthEvent, s *session.Session) {
	a.mu.Lock()
	fn := a.fn
	a.mu.Unlock()
	fn(e, s)
}

func (a *staticAuth) SignInWithPassword(context.Context, string, string) (*session.Session, error) {
	return a.sess, nil
}

func (a *staticAuth) SignUp(context.Context, string, string, session.ProfileFields) (*session.Session, error) {
	return a.sess, nil
}

func (a *staticAuth) SignOut(context.Context) error { return nil }

type notice struct {
	level Level
	msg   string
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notice
}

func (n *recordingNotifier) Notify(level Level, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice{level, msg})
}

type fakeRealtime struct {
	mu       sync.Mutex
	handlers map[string]backend.ChangeHandler
	reqs     map[string]wstypes.SubscribeRequest
	removed  []string
	seq      int
}

func newFakeRealtime() *fakeRealtime {
	return &fakeRealtime{
		handlers: map[string]backend.ChangeHandler{},
		reqs:     map[string]wstypes.SubscribeRequest{},
	}
}

func (f *fakeRealtime) Subscribe(_ context.Context, req wstypes.SubscribeRequest, h backend.ChangeHandler) (backend.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := req.Topic + "#" + string(rune('0'+f.seq))
	f.handlers[id] = h
	f.reqs[id] = req
	return backend.Handle{ID: id, Topic: req.Topic}, nil
}

func (f *fakeRealtime) Unsubscribe(h backend.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, h.ID)
	f.removed = append(f.removed, h.Topic)
	return nil
}

func (f *fakeRealtime) active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

// deliver sends d to every handler, including ones a closed page still holds.
func (f *fakeRealtime) deliver(d wstypes.ChangeData, handlers ...backend.ChangeHandler) {
	for _, h := range handlers {
		h(d)
	}
}

func (f *fakeRealtime) handlerFor(topic string) backend.ChangeHandler {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, h := range f.handlers {
		if f.reqs[id].Topic == topic {
			return h
		}
	}
	return nil
}

type fixture struct {
	auth     *staticAuth
	store    *session.Store
	cache    *qc.Cache
	rt       *fakeRealtime
	notifier *recordingNotifier
	router   *Router
}

func envelope(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "message": "ok", "data": data})
}

func newFixture(t *testing.T, sess *session.Session, routes []*Route) *fixture {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/users/me/books":
			envelope(w, model.BookPage{Books: []model.Book{{ID: "b1", Title: "Dune", Author: "Frank Herbert", Condition: "good"}}, Total: 11})
		case "/api/v1/notifications":
			envelope(w, model.NotificationPage{Notifications: []model.Notification{{ID: "n1", Title: "Welcome", ReceiverID: "u1"}}, Total: 1})
		case "/api/v1/notifications/unread-count":
			envelope(w, map[string]int{"count": 1})
		default:
			envelope(w, nil)
		}
	}))
	t.Cleanup(srv.Close)

	api, err := backend.New(srv.URL)
	require.NoError(t, err)

	f := &fixture{
		auth:     &staticAuth{sess: sess},
		cache:    qc.New(qc.Options{}),
		rt:       newFakeRealtime(),
		notifier: &recordingNotifier{},
	}
	f.store = session.NewStore(f.auth, nil)
	require.NoError(t, f.store.Initialize(context.Background()))
	t.Cleanup(f.store.Close)

	f.router = New(Config{
		Store:    f.store,
		Guard:    guard.New(f.store),
		Cache:    f.cache,
		Catalog:  queries.NewCatalog(api),
		Realtime: f.rt,
		Notifier: f.notifier,
		Routes:   routes,
	})
	t.Cleanup(f.router.Close)
	return f
}

func signedIn() *session.Session {
	return &session.Session{UserID: "u1", FullName: "Ada Lovelace", AccessToken: "tok"}
}

func TestProtectedRouteRedirectsOnce(t *testing.T) {
	f := newFixture(t, nil, nil)

	p, err := f.router.Navigate(context.Background(), "/donations?page=2")
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, "/sign-in", p.Path)
	assert.Equal(t, "/donations?page=2", p.RedirectedFrom)
	require.Len(t, f.notifier.notices, 1)
	assert.Equal(t, guard.NoticeSignInRequired, f.notifier.notices[0].msg)
}

func TestRedirectLoopIsRefused(t *testing.T) {
	routes := []*Route{
		{Pattern: "/sign-in", Protected: true},
		{Pattern: "/dashboard", Protected: true},
	}
	f := newFixture(t, nil, routes)

	_, err := f.router.Navigate(context.Background(), "/dashboard")
	assert.ErrorIs(t, err, ErrRedirectLoop)
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t, nil, nil)
	_, err := f.router.Navigate(context.Background(), "/nowhere")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRouteParams(t *testing.T) {
	route := &Route{Pattern: "/messages/:chatId"}
	got, ok := route.match(splitPath("/messages/c42"))
	require.True(t, ok)
	assert.Equal(t, "c42", got["chatId"])

	_, ok = route.match(splitPath("/messages"))
	assert.False(t, ok)
}

func TestDonationsRendersPager(t *testing.T) {
	f := newFixture(t, signedIn(), nil)

	p, err := f.router.Navigate(context.Background(), "/donations?status=donated&page=2&pageSize=10")
	require.NoError(t, err)
	defer p.Close()

	var buf bytes.Buffer
	require.NoError(t, p.Render(&buf))
	assert.Contains(t, buf.String(), "Page 2 of 2")
	assert.Contains(t, buf.String(), "Dune")
}

func TestNotificationsPageSubscribesAndTearsDown(t *testing.T) {
	f := newFixture(t, signedIn(), nil)

	p, err := f.router.Navigate(context.Background(), "/notifications")
	require.NoError(t, err)
	require.NoError(t, p.Render(io.Discard))

	assert.Equal(t, []string{"notifications-u1"}, p.Topics())
	assert.Equal(t, 1, f.rt.active())
	handler := f.rt.handlerFor("notifications-u1")
	require.NotNil(t, handler)

	row, _ := json.Marshal(model.Notification{ID: "n2", Title: "New book request", ReceiverID: "u1"})
	ev := wstypes.ChangeData{Table: wstypes.TableNotifications, Event: wstypes.RowInsert, New: row}
	f.rt.deliver(ev, handler)

	var buf bytes.Buffer
	require.NoError(t, p.Render(&buf))
	assert.Contains(t, buf.String(), "New book request")

	p.Close()
	p.Close()
	assert.Zero(t, f.rt.active())
	assert.Equal(t, []string{"notifications-u1"}, f.rt.removed)

	// A late event for the unmounted page has no effect.
	row, _ = json.Marshal(model.Notification{ID: "n3", Title: "Too late", ReceiverID: "u1"})
	f.rt.deliver(wstypes.ChangeData{Table: wstypes.TableNotifications, Event: wstypes.RowInsert, New: row}, handler)

	key := queries.UserNotificationsKey("u1", params.ParseNotificationFilter(nil))
	page, ok := qc.PeekQuery[model.NotificationPage](f.cache, key)
	require.True(t, ok)
	for _, n := range page.Notifications {
		assert.NotEqual(t, "n3", n.ID)
	}
}

func TestDuplicateTopicOnOnePage(t *testing.T) {
	f := newFixture(t, signedIn(), nil)

	p, err := f.router.Navigate(context.Background(), "/notifications")
	require.NoError(t, err)
	defer p.Close()

	err = p.Subscribe(wstypes.SubscribeRequest{
		Topic:  "notifications-u1",
		Table:  wstypes.TableNotifications,
		Filter: wstypes.EqFilter("receiver_id", "u1"),
	}, func(wstypes.ChangeData) {})
	assert.ErrorIs(t, err, ErrDuplicateSubscription)
	assert.Equal(t, 1, f.rt.active())
}

func TestUserChangeClearsCache(t *testing.T) {
	f := newFixture(t, signedIn(), nil)
	f.cache.SetData(qc.K(queries.OpTotalDonations, "u1"), func(any) any { return 3 })
	require.Equal(t, 1, f.cache.Len())

	f.auth.emit(session.EventSignedOut, nil)
	assert.Zero(t, f.cache.Len())
}

func TestRunReportsBackendTextVerbatim(t *testing.T) {
	f := newFixture(t, signedIn(), nil)

	err := f.router.Run(context.Background(), "Book requested", func(context.Context) error {
		return &backend.APIError{Kind: backend.KindMutation, Status: 409, Message: "You have already requested this book"}
	})
	require.Error(t, err)
	require.Len(t, f.notifier.notices, 1)
	assert.Equal(t, notice{LevelError, "You have already requested this book"}, f.notifier.notices[0])

	require.NoError(t, f.router.Run(context.Background(), "Book requested", func(context.Context) error { return nil }))
	assert.Equal(t, notice{LevelSuccess, "Book requested"}, f.notifier.notices[1])
}
