package queries

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"segmentbook-service/internal/client/backend"
	"segmentbook-service/internal/client/model"
	"segmentbook-service/internal/client/params"
	wstypes "segmentbook-service/internal/domain/websocket"
	qc "segmentbook-service/internal/pkg/querycache"
)

func change(t *testing.T, table, event string, row any) wstypes.ChangeData {
	t.Helper()
	raw, err := json.Marshal(row)
	require.NoError(t, err)
	return wstypes.ChangeData{Table: table, Event: event, New: raw}
}

func firstPage() params.NotificationFilter {
	return params.NotificationFilter{
		Status:     params.StatusAll,
		Pagination: params.Pagination{Page: 1, PageSize: 10},
	}
}

func TestAppendMessageIsIdempotent(t *testing.T) {
	msgs := []model.Message{{ID: "m1"}}
	m := model.Message{ID: "m2", Content: "hi"}

	once := AppendMessage(msgs, m)
	twice := AppendMessage(once, m)

	assert.Len(t, once, 2)
	assert.Equal(t, once, twice)
	assert.Len(t, msgs, 1, "input must not be modified")
}

func TestPrependNotificationBumpsTotalOnlyWhenNew(t *testing.T) {
	page := model.NotificationPage{
		Notifications: []model.Notification{{ID: "n1"}, {ID: "n2"}},
		Total:         12,
	}
	n := model.Notification{ID: "n3"}

	once := PrependNotification(page, n, 2)
	require.Len(t, once.Notifications, 2)
	assert.Equal(t, "n3", once.Notifications[0].ID)
	assert.Equal(t, "n1", once.Notifications[1].ID)
	assert.Equal(t, 13, once.Total)

	twice := PrependNotification(once, n, 2)
	assert.Equal(t, once, twice)
}

func TestRequestListPatchers(t *testing.T) {
	list := []model.ActiveRequest{
		{DonationRequestID: "r1", Status: model.RequestPending},
		{DonationRequestID: "r2", Status: model.RequestPending},
	}

	accepted := SetRequestStatus(list, "r1", model.RequestAccepted)
	assert.Equal(t, model.RequestAccepted, accepted[0].Status)
	assert.Equal(t, model.RequestPending, list[0].Status)

	removed := RemoveRequest(list, "r2")
	require.Len(t, removed, 1)
	assert.Equal(t, "r1", removed[0].DonationRequestID)
}

func TestOnNotificationPatchesFirstPage(t *testing.T) {
	cache := qc.New(qc.Options{})
	f := firstPage()
	key := UserNotificationsKey("u2", f)
	cache.SetData(key, func(any) any {
		return model.NotificationPage{Notifications: []model.Notification{{ID: "old"}}, Total: 1}
	})

	handle := OnNotification(cache, "u2", f)
	ev := change(t, wstypes.TableNotifications, wstypes.RowInsert, model.Notification{
		ID:         "n-new",
		Title:      "New book request",
		ReceiverID: "u2",
	})

	// Delivered twice: at-least-once transport.
	handle(ev)
	handle(ev)

	page, ok := qc.PeekQuery[model.NotificationPage](cache, key)
	require.True(t, ok)
	require.Len(t, page.Notifications, 2)
	assert.Equal(t, "n-new", page.Notifications[0].ID)
	assert.Equal(t, 2, page.Total)
}

func TestOnNotificationLaterPageInvalidates(t *testing.T) {
	cache := qc.New(qc.Options{})
	f := firstPage()
	f.Page = 3
	key := UserNotificationsKey("u2", f)
	original := model.NotificationPage{Notifications: []model.Notification{{ID: "x"}}, Total: 25}
	cache.SetData(key, func(any) any { return original })

	OnNotification(cache, "u2", f)(change(t, wstypes.TableNotifications, wstypes.RowInsert, model.Notification{ID: "n", ReceiverID: "u2"}))

	snap, ok := cache.Peek(key)
	require.True(t, ok)
	assert.True(t, snap.IsStale)
	assert.Equal(t, original, snap.Data)
}

func TestOnNotificationUncachedPageIsNotCreated(t *testing.T) {
	cache := qc.New(qc.Options{})
	f := firstPage()

	OnNotification(cache, "u2", f)(change(t, wstypes.TableNotifications, wstypes.RowInsert, model.Notification{ID: "n", ReceiverID: "u2"}))

	_, ok := qc.PeekQuery[model.NotificationPage](cache, UserNotificationsKey("u2", f))
	assert.False(t, ok)
}

func TestOnChatMessageAppendsOnce(t *testing.T) {
	cache := qc.New(qc.Options{})
	key := ChatMessagesKey("c1")
	cache.SetData(key, func(any) any { return []model.Message{{ID: "m1", ChatID: "c1"}} })

	handle := OnChatMessage(cache, "c1", "u1")
	ev := change(t, wstypes.TableMessages, wstypes.RowInsert, model.Message{ID: "m2", ChatID: "c1", Content: "hello"})
	handle(ev)
	handle(ev)

	msgs, ok := qc.PeekQuery[[]model.Message](cache, key)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[1].Content)
}

func TestOnChatMessageSurvivesRefetchInFlight(t *testing.T) {
	cache := qc.New(qc.Options{})
	key := ChatMessagesKey("c1")

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	q := qc.Query[[]model.Message]{
		Key: key,
		Fetch: func(ctx context.Context) ([]model.Message, error) {
			if calls.Add(1) == 2 {
				close(started)
				<-release
			}
			return []model.Message{{ID: "m1", ChatID: "c1"}}, nil
		},
	}
	unwatch := cache.Subscribe(key, func(qc.Snapshot) {})
	defer unwatch()
	_, err := qc.GetQuery(context.Background(), cache, q)
	require.NoError(t, err)

	cache.Invalidate(key)
	<-started

	OnChatMessage(cache, "c1", "u1")(change(t, wstypes.TableMessages, wstypes.RowInsert, model.Message{ID: "m2", ChatID: "c1", Content: "hello"}))
	msgs, _ := qc.PeekQuery[[]model.Message](cache, key)
	require.Len(t, msgs, 2)

	close(release)
	require.Eventually(t, func() bool {
		snap, _ := cache.Peek(key)
		return !snap.IsFetching
	}, time.Second, time.Millisecond)

	msgs, ok := qc.PeekQuery[[]model.Message](cache, key)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m2", msgs[1].ID)
}

func TestOnChatMessageIgnoresOtherChats(t *testing.T) {
	cache := qc.New(qc.Options{})
	key := ChatMessagesKey("c1")
	cache.SetData(key, func(any) any { return []model.Message{{ID: "m1", ChatID: "c1"}} })

	OnChatMessage(cache, "c1", "u1")(change(t, wstypes.TableMessages, wstypes.RowInsert, model.Message{ID: "m9", ChatID: "c2"}))

	msgs, _ := qc.PeekQuery[[]model.Message](cache, key)
	assert.Len(t, msgs, 1)
}

func TestKeysShareUserPrefix(t *testing.T) {
	f := params.DonationFilter{Status: params.StatusDonated, Pagination: params.Pagination{Page: 2, PageSize: 10}}
	key := UserDonatedBooksKey("u1", f)

	for _, k := range MarkDonatedKeys("u1") {
		if k.Operation() == OpUserDonatedBooks {
			assert.True(t, key.HasPrefix(k))
		}
	}
	assert.False(t, key.HasPrefix(qc.K(OpUserDonatedBooks, "u2")))
}

// ---- mutations against an in-process backend ----

type fakeBackend struct {
	status int
	errMsg string
	data   any
	paths  []string
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.paths = append(f.paths, r.Method+" "+r.URL.Path)
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": status < 400,
		"message": "",
		"data":    f.data,
		"error":   f.errMsg,
	})
}

func newMutations(t *testing.T, fb *fakeBackend) (*Mutations, *qc.Cache) {
	t.Helper()
	srv := httptest.NewServer(fb)
	t.Cleanup(srv.Close)
	api, err := backend.New(srv.URL)
	require.NoError(t, err)
	cache := qc.New(qc.Options{})
	return NewMutations(api, cache), cache
}

func TestMarkDonatedRollsBackOnFailure(t *testing.T) {
	fb := &fakeBackend{status: http.StatusBadRequest, errMsg: "No pending request from that user"}
	m, cache := newMutations(t, fb)

	listed := qc.K(OpListedNotDonated, "u1")
	books := []model.Book{{ID: "b1"}, {ID: "b2"}}
	cache.SetData(listed, func(any) any { return books })

	err := m.MarkDonated(context.Background(), "u1", "b1", "bob")
	require.Error(t, err)
	assert.Equal(t, "No pending request from that user", err.Error())

	got, ok := qc.PeekQuery[[]model.Book](cache, listed)
	require.True(t, ok)
	assert.Equal(t, books, got)
	assert.Equal(t, []string{"POST /api/v1/books/b1/mark-donated"}, fb.paths)
}

func TestMarkDonatedInvalidatesGroupOnSuccess(t *testing.T) {
	m, cache := newMutations(t, &fakeBackend{})

	for _, k := range []qc.Key{
		UserDonatedBooksKey("u1", params.DonationFilter{Status: params.StatusAll, Pagination: params.Pagination{Page: 1, PageSize: 10}}),
		qc.K(OpTotalDonations, "u1"),
		qc.K(OpBookFilters, "", "", 1, 10),
	} {
		cache.SetData(k, func(any) any { return "cached" })
	}

	require.NoError(t, m.MarkDonated(context.Background(), "u1", "b1", "bob"))

	for _, k := range []qc.Key{qc.K(OpTotalDonations, "u1"), qc.K(OpBookFilters, "", "", 1, 10)} {
		snap, ok := cache.Peek(k)
		require.True(t, ok)
		assert.True(t, snap.IsStale, "%s should be stale", k.Operation())
	}
}

func TestAcceptRequestReturnsChatAndInvalidates(t *testing.T) {
	fb := &fakeBackend{data: backend.AcceptResult{RequestID: "r1", ChatID: "c9"}}
	m, cache := newMutations(t, fb)

	chats := qc.K(OpUserChats, "u1")
	cache.SetData(chats, func(any) any { return []model.Chat{} })

	chatID, err := m.AcceptRequest(context.Background(), "u1", "r1")
	require.NoError(t, err)
	assert.Equal(t, "c9", chatID)

	snap, _ := cache.Peek(chats)
	assert.True(t, snap.IsStale)
}

func TestReadAllZeroesBadgeOptimistically(t *testing.T) {
	m, cache := newMutations(t, &fakeBackend{})
	unread := qc.K(OpUnreadCount, "u1")
	cache.SetData(unread, func(any) any { return 4 })

	require.NoError(t, m.ReadAll(context.Background(), "u1"))

	n, ok := qc.PeekQuery[int](cache, unread)
	require.True(t, ok)
	assert.Zero(t, n)
}

func TestSendMessageEchoIsNoop(t *testing.T) {
	sent := model.Message{ID: "m5", ChatID: "c1", SenderID: "u1", Content: "see you at 5"}
	m, cache := newMutations(t, &fakeBackend{status: http.StatusCreated, data: sent})

	key := ChatMessagesKey("c1")
	cache.SetData(key, func(any) any { return []model.Message{} })

	_, err := m.SendMessage(context.Background(), "u1", "c1", sent.Content)
	require.NoError(t, err)

	// The realtime echo of our own insert arrives afterwards.
	OnChatMessage(cache, "c1", "u1")(change(t, wstypes.TableMessages, wstypes.RowInsert, sent))

	msgs, _ := qc.PeekQuery[[]model.Message](cache, key)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m5", msgs[0].ID)
}
