package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wstypes "segmentbook-service/internal/domain/websocket"
)

// fakeHub acks subscriptions and lets the test push changes.
type fakeHub struct {
	t      *testing.T
	token  string
	reject map[string]string

	mu   sync.Mutex
	conn *websocket.Conn
	subs map[string]wstypes.SubscribeRequest
	gone chan string
}

func newFakeHub(t *testing.T) (*fakeHub, *Client) {
	h := &fakeHub{
		t:      t,
		token:  "tok-1",
		reject: map[string]string{},
		subs:   map[string]wstypes.SubscribeRequest{},
		gone:   make(chan string, 8),
	}
	srv := httptest.NewServer(http.HandlerFunc(h.serve))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL)
	require.NoError(t, err)
	return h, c
}

func (h *fakeHub) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/ws" || r.URL.Query().Get("token") != h.token {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	up := websocket.Upgrader{}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.mu.Lock()
	h.conn = conn
	h.mu.Unlock()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := wstypes.ParseMessage(raw)
		if err != nil {
			continue
		}
		switch msg.Type {
		case wstypes.EventTypeSubscribe:
			var req wstypes.SubscribeRequest
			_ = msg.Decode(&req)
			if reason, ok := h.reject[req.Table]; ok {
				h.send(wstypes.NewReply(wstypes.EventTypeError, msg.ID, wstypes.ErrorData{Code: "FORBIDDEN", Message: reason}))
				continue
			}
			h.mu.Lock()
			h.subs[msg.ID] = req
			h.mu.Unlock()
			h.send(wstypes.NewReply(wstypes.EventTypeSubscribe, msg.ID, wstypes.SubscribeAck{Status: "subscribed", Topic: req.Topic}))
		case wstypes.EventTypeUnsubscribe:
			h.mu.Lock()
			delete(h.subs, msg.ID)
			h.mu.Unlock()
			h.gone <- msg.ID
		}
	}
}

func (h *fakeHub) send(msg *wstypes.WSMessage) {
	raw, _ := msg.ToJSON()
	h.mu.Lock()
	defer h.mu.Unlock()
	_ = h.conn.WriteMessage(websocket.TextMessage, raw)
}

func (h *fakeHub) push(subID string, row any) {
	h.mu.Lock()
	req := h.subs[subID]
	h.mu.Unlock()
	raw, _ := json.Marshal(row)
	h.send(wstypes.NewMessage(wstypes.EventTypeChange, wstypes.ChangeData{
		SubscriptionID: subID,
		Topic:          req.Topic,
		Table:          req.Table,
		Event:          wstypes.RowInsert,
		New:            raw,
	}))
}

func TestRealtimeSubscribeReceivesChanges(t *testing.T) {
	hub, api := newFakeHub(t)
	rt := NewRealtime(api, staticToken("tok-1"), nil)
	defer rt.Close()

	got := make(chan wstypes.ChangeData, 1)
	h, err := rt.Subscribe(context.Background(), wstypes.SubscribeRequest{
		Topic:  "chat-c1",
		Table:  wstypes.TableMessages,
		Event:  wstypes.RowInsert,
		Filter: wstypes.EqFilter("chat_id", "c1"),
	}, func(d wstypes.ChangeData) { got <- d })
	require.NoError(t, err)
	assert.Equal(t, "chat-c1", h.Topic)

	hub.push(h.ID, map[string]string{"id": "m1", "chat_id": "c1"})

	select {
	case d := <-got:
		assert.Equal(t, "chat-c1", d.Topic)
		assert.JSONEq(t, `{"id":"m1","chat_id":"c1"}`, string(d.New))
	case <-time.After(2 * time.Second):
		t.Fatal("change not delivered")
	}
}

func TestRealtimeRejectedSubscription(t *testing.T) {
	hub, api := newFakeHub(t)
	hub.reject[wstypes.TableNotifications] = "cannot subscribe to another user's notifications"
	rt := NewRealtime(api, staticToken("tok-1"), nil)
	defer rt.Close()

	_, err := rt.Subscribe(context.Background(), wstypes.SubscribeRequest{
		Topic:  "notifications-u2",
		Table:  wstypes.TableNotifications,
		Filter: wstypes.EqFilter("receiver_id", "u2"),
	}, func(wstypes.ChangeData) {})

	var subErr *SubscriptionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, "FORBIDDEN", subErr.Code)
}

func TestRealtimeInvalidFilterFailsLocally(t *testing.T) {
	_, api := newFakeHub(t)
	rt := NewRealtime(api, staticToken("tok-1"), nil)
	defer rt.Close()

	_, err := rt.Subscribe(context.Background(), wstypes.SubscribeRequest{
		Topic:  "x",
		Table:  wstypes.TableMessages,
		Filter: "chat_id>3",
	}, func(wstypes.ChangeData) {})
	require.Error(t, err)
}

func TestRealtimeBadTokenIsAuthError(t *testing.T) {
	_, api := newFakeHub(t)
	rt := NewRealtime(api, staticToken("wrong"), nil)
	defer rt.Close()

	_, err := rt.Subscribe(context.Background(), wstypes.SubscribeRequest{
		Topic:  "x",
		Table:  wstypes.TableMessages,
		Filter: wstypes.EqFilter("chat_id", "c1"),
	}, func(wstypes.ChangeData) {})
	assert.Equal(t, KindAuth, KindOf(err))
}

func TestRealtimeUnsubscribeStopsDelivery(t *testing.T) {
	hub, api := newFakeHub(t)
	rt := NewRealtime(api, staticToken("tok-1"), nil)
	defer rt.Close()

	var mu sync.Mutex
	delivered := 0
	h, err := rt.Subscribe(context.Background(), wstypes.SubscribeRequest{
		Topic:  "chat-c1",
		Table:  wstypes.TableMessages,
		Filter: wstypes.EqFilter("chat_id", "c1"),
	}, func(wstypes.ChangeData) {
		mu.Lock()
		delivered++
		mu.Unlock()
	})
	require.NoError(t, err)

	require.NoError(t, rt.Unsubscribe(h))
	select {
	case id := <-hub.gone:
		assert.Equal(t, h.ID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("unsubscribe not sent")
	}

	// A change racing the unsubscribe is dropped client-side.
	hub.push(h.ID, map[string]string{"id": "m1"})
	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, delivered)
}

func TestRealtimeClosedRefusesSubscribe(t *testing.T) {
	_, api := newFakeHub(t)
	rt := NewRealtime(api, staticToken("tok-1"), nil)
	require.NoError(t, rt.Close())

	_, err := rt.Subscribe(context.Background(), wstypes.SubscribeRequest{
		Topic:  "x",
		Table:  wstypes.TableMessages,
		Filter: wstypes.EqFilter("chat_id", "c1"),
	}, func(wstypes.ChangeData) {})
	assert.ErrorIs(t, err, ErrRealtimeClosed)
}
