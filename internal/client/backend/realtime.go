// internal/client/backend/realtime.go
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	wstypes "segmentbook-service/internal/domain/websocket"
)

const (
	writeWait         = 10 * time.Second
	minReconnectDelay = 500 * time.Millisecond
	maxReconnectDelay = 30 * time.Second
)

var ErrRealtimeClosed = errors.New("realtime connection closed")

// SubscriptionError is the server's refusal of a subscription.
type SubscriptionError struct {
	Code    string
	Message string
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription rejected: %s", e.Message)
}

// ChangeHandler receives row events for one subscription. It runs on the
// connection's read goroutine and must not block.
type ChangeHandler func(wstypes.ChangeData)

// Handle identifies an active subscription.
type Handle struct {
	ID    string
	Topic string
}

type realtimeSub struct {
	req     wstypes.SubscribeRequest
	handler ChangeHandler
}

// Realtime is the websocket client for row-change subscriptions.
type Realtime struct {
	wsURL  string
	tokens TokenSource
	dialer *websocket.Dialer
	logger *zap.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	subs    map[string]*realtimeSub
	pending map[string]chan error
	closed  bool

	writeMu sync.Mutex
}

// NewRealtime derives the websocket endpoint (ws[s]://host/ws) from api.
func NewRealtime(api *Client, tokens TokenSource, logger *zap.Logger) *Realtime {
	if logger == nil {
		logger = zap.NewNop()
	}
	u := api.BaseURL()
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"

	return &Realtime{
		wsURL:   u.String(),
		tokens:  tokens,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:  logger,
		subs:    make(map[string]*realtimeSub),
		pending: make(map[string]chan error),
	}
}

// Subscribe registers handler for req and waits for the server's ack.
func (r *Realtime) Subscribe(ctx context.Context, req wstypes.SubscribeRequest, handler ChangeHandler) (Handle, error) {
	if _, err := wstypes.ParseFilter(req.Filter); err != nil {
		return Handle{}, err
	}
	if req.Event == "" {
		req.Event = wstypes.RowAny
	}

	conn, err := r.connection(ctx)
	if err != nil {
		return Handle{}, err
	}

	h := Handle{ID: uuid.NewString(), Topic: req.Topic}
	ack := make(chan error, 1)

	r.mu.Lock()
	r.subs[h.ID] = &realtimeSub{req: req, handler: handler}
	r.pending[h.ID] = ack
	r.mu.Unlock()

	if err := r.write(conn, wstypes.NewReply(wstypes.EventTypeSubscribe, h.ID, req)); err != nil {
		r.forget(h.ID)
		return Handle{}, err
	}

	select {
	case err := <-ack:
		if err != nil {
			r.forget(h.ID)
			return Handle{}, err
		}
		r.logger.Debug("subscribed", zap.String("topic", req.Topic), zap.String("filter", req.Filter))
		return h, nil
	case <-ctx.Done():
		r.forget(h.ID)
		return Handle{}, ctx.Err()
	}
}

// Unsubscribe stops delivery for h. Unknown handles are ignored.
func (r *Realtime) Unsubscribe(h Handle) error {
	r.mu.Lock()
	_, ok := r.subs[h.ID]
	delete(r.subs, h.ID)
	conn := r.conn
	r.mu.Unlock()

	if !ok || conn == nil {
		return nil
	}
	return r.write(conn, wstypes.NewReply(wstypes.EventTypeUnsubscribe, h.ID, nil))
}

// Close drops every subscription and the connection.
func (r *Realtime) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	conn := r.conn
	r.conn = nil
	r.subs = make(map[string]*realtimeSub)
	r.failPendingLocked(ErrRealtimeClosed)
	r.mu.Unlock()

	if conn == nil {
		return nil
	}
	r.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	r.writeMu.Unlock()
	return conn.Close()
}

func (r *Realtime) connection(ctx context.Context) (*websocket.Conn, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRealtimeClosed
	}
	if r.conn != nil {
		conn := r.conn
		r.mu.Unlock()
		return conn, nil
	}
	r.mu.Unlock()

	conn, err := r.dial(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		conn.Close()
		return nil, ErrRealtimeClosed
	}
	if r.conn != nil {
		// Lost a race with another dial.
		existing := r.conn
		r.mu.Unlock()
		conn.Close()
		return existing, nil
	}
	r.conn = conn
	r.mu.Unlock()

	go r.readLoop(conn)
	return conn, nil
}

func (r *Realtime) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(r.wsURL)
	if err != nil {
		return nil, err
	}
	if r.tokens != nil {
		q := u.Query()
		q.Set("token", r.tokens.AccessToken())
		u.RawQuery = q.Encode()
	}

	conn, resp, err := r.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, &APIError{Kind: KindAuth, Status: resp.StatusCode, Message: "realtime authentication failed"}
		}
		return nil, fmt.Errorf("dial realtime: %w", err)
	}
	return conn, nil
}

func (r *Realtime) write(conn *websocket.Conn, msg *wstypes.WSMessage) error {
	raw, err := msg.ToJSON()
	if err != nil {
		return err
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, raw)
}

func (r *Realtime) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			r.disconnected(conn, err)
			return
		}
		msg, err := wstypes.ParseMessage(raw)
		if err != nil {
			r.logger.Warn("invalid realtime message", zap.Error(err))
			continue
		}
		r.dispatch(conn, msg)
	}
}

func (r *Realtime) dispatch(conn *websocket.Conn, msg *wstypes.WSMessage) {
	switch msg.Type {
	case wstypes.EventTypeSubscribe:
		r.resolve(msg.ID, nil)

	case wstypes.EventTypeError:
		var data wstypes.ErrorData
		_ = msg.Decode(&data)
		if msg.ID == "" || !r.resolve(msg.ID, &SubscriptionError{Code: data.Code, Message: data.Message}) {
			r.logger.Warn("realtime error", zap.String("code", data.Code), zap.String("message", data.Message))
		}

	case wstypes.EventTypeChange:
		var data wstypes.ChangeData
		if err := msg.Decode(&data); err != nil {
			r.logger.Warn("invalid change payload", zap.Error(err))
			return
		}
		r.mu.Lock()
		sub, ok := r.subs[data.SubscriptionID]
		r.mu.Unlock()
		if !ok {
			return
		}
		sub.handler(data)

	case wstypes.EventTypePing:
		_ = r.write(conn, wstypes.NewMessage(wstypes.EventTypePong, nil))

	case wstypes.EventTypeSessionRevoked:
		r.logger.Info("realtime session revoked by server")

	default:
		r.logger.Debug("ignored realtime message", zap.String("type", string(msg.Type)))
	}
}

func (r *Realtime) resolve(id string, err error) bool {
	r.mu.Lock()
	ch, ok := r.pending[id]
	delete(r.pending, id)
	r.mu.Unlock()
	if ok {
		ch <- err
	}
	return ok
}

func (r *Realtime) forget(id string) {
	r.mu.Lock()
	delete(r.subs, id)
	delete(r.pending, id)
	r.mu.Unlock()
}

func (r *Realtime) failPendingLocked(err error) {
	for id, ch := range r.pending {
		ch <- err
		delete(r.pending, id)
	}
}

func (r *Realtime) disconnected(conn *websocket.Conn, cause error) {
	r.mu.Lock()
	if r.conn != conn {
		r.mu.Unlock()
		return
	}
	r.conn = nil
	r.failPendingLocked(fmt.Errorf("realtime disconnected: %w", cause))
	closed := r.closed
	active := len(r.subs)
	r.mu.Unlock()

	conn.Close()
	if closed {
		return
	}
	r.logger.Warn("realtime connection lost", zap.Error(cause), zap.Int("subscriptions", active))
	if active > 0 {
		go r.reconnect()
	}
}

// reconnect redials with backoff and replays every active subscription
// under its existing id.
func (r *Realtime) reconnect() {
	delay := minReconnectDelay
	for {
		time.Sleep(delay)

		r.mu.Lock()
		if r.closed || len(r.subs) == 0 {
			r.mu.Unlock()
			return
		}
		r.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		conn, err := r.connection(ctx)
		cancel()
		if err != nil {
			r.logger.Debug("realtime reconnect failed", zap.Error(err), zap.Duration("retry_in", delay))
			if KindOf(err) == KindAuth || errors.Is(err, ErrRealtimeClosed) {
				return
			}
			delay *= 2
			if delay > maxReconnectDelay {
				delay = maxReconnectDelay
			}
			continue
		}

		r.mu.Lock()
		replay := make(map[string]wstypes.SubscribeRequest, len(r.subs))
		for id, sub := range r.subs {
			replay[id] = sub.req
		}
		r.mu.Unlock()

		for id, req := range replay {
			if err := r.write(conn, wstypes.NewReply(wstypes.EventTypeSubscribe, id, req)); err != nil {
				r.logger.Warn("resubscribe failed", zap.String("topic", req.Topic), zap.Error(err))
			}
		}
		r.logger.Info("realtime reconnected", zap.Int("subscriptions", len(replay)))
		return
	}
}
