// internal/websocket/hub.go
package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	wstypes "segmentbook-service/internal/domain/websocket"
	"segmentbook-service/internal/pkg/jwt"
)

// TokenValidator checks the access token a client connects with.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*jwt.Claims, error)
}

// Observer receives hub activity for metrics.
type Observer interface {
	ConnectionOpened()
	ConnectionClosed()
	ChangeReceived(table, event string)
	ChangeDelivered(table string, n int)
}

type nopObserver struct{}

func (nopObserver) ConnectionOpened()             {}
func (nopObserver) ConnectionClosed()             {}
func (nopObserver) ChangeReceived(string, string) {}
func (nopObserver) ChangeDelivered(string, int)   {}

// Hub tracks connected clients and fans database row changes out to the
// subscriptions that match them.
type Hub struct {
	// clients by user id
	clients map[string]map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	changes    chan wstypes.ChangeEvent
	done       chan struct{}
	closeOnce  sync.Once

	validator TokenValidator
	chats     ChatMembership
	observer  Observer
	logger    *zap.Logger
}

func NewHub(validator TokenValidator, chats ChatMembership, observer Observer, logger *zap.Logger) *Hub {
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		changes:    make(chan wstypes.ChangeEvent, 1024),
		done:       make(chan struct{}),
		validator:  validator,
		chats:      chats,
		observer:   observer,
		logger:     logger,
	}
}

// AuthenticateClient validates token the same way the REST API does.
func (h *Hub) AuthenticateClient(ctx context.Context, token string) (*ClientAuth, error) {
	claims, err := h.validator.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return &ClientAuth{UserID: claims.UserID, SessionID: claims.SessionID, Email: claims.Email}, nil
}

func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case ev := <-h.changes:
			h.dispatch(ev)
		}
	}
}

// Register adds client; after shutdown the client is closed instead.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// PublishChange queues a row change. It never blocks the listener; changes
// are dropped when the hub is saturated.
func (h *Hub) PublishChange(ev wstypes.ChangeEvent) {
	h.observer.ChangeReceived(ev.Table, ev.Event)
	select {
	case h.changes <- ev:
	case <-h.done:
	default:
		h.logger.Warn("change dropped, hub saturated", zap.String("table", ev.Table))
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	if h.clients[client.userID] == nil {
		h.clients[client.userID] = make(map[*Client]bool)
	}
	h.clients[client.userID][client] = true
	total := h.totalLocked()
	h.mu.Unlock()

	h.observer.ConnectionOpened()
	h.logger.Info("websocket client connected",
		zap.String("user_id", client.userID),
		zap.String("session_id", client.sessionID),
		zap.Int("total", total),
	)
	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeConnected, map[string]string{
		"user_id":    client.userID,
		"session_id": client.sessionID,
	}))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	clients, ok := h.clients[client.userID]
	if ok && clients[client] {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, client.userID)
		}
	} else {
		ok = false
	}
	h.mu.Unlock()

	client.Close()
	if ok {
		h.observer.ConnectionClosed()
		h.logger.Info("websocket client disconnected", zap.String("user_id", client.userID))
	}
}

func (h *Hub) dispatch(ev wstypes.ChangeEvent) {
	var row map[string]any
	if err := json.Unmarshal(ev.New, &row); err != nil {
		h.logger.Warn("change row is not an object", zap.String("table", ev.Table), zap.Error(err))
		return
	}

	h.mu.RLock()
	var targets []*Client
	for _, clients := range h.clients {
		for c := range clients {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		for _, sub := range c.matching(ev, row) {
			msg := wstypes.NewMessage(wstypes.EventTypeChange, wstypes.ChangeData{
				SubscriptionID: sub.id,
				Topic:          sub.req.Topic,
				Table:          ev.Table,
				Event:          ev.Event,
				New:            ev.New,
			})
			if c.SendMessage(msg) {
				delivered++
			}
		}
	}
	h.observer.ChangeDelivered(ev.Table, delivered)
}

// ForceLogout tells the connections of one session that it has ended and
// closes them.
func (h *Hub) ForceLogout(userID, sessionID, reason string) {
	h.mu.RLock()
	var targets []*Client
	for c := range h.clients[userID] {
		if c.sessionID == sessionID {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.SendMessage(wstypes.NewMessage(wstypes.EventTypeSessionRevoked, map[string]string{
			"session_id": sessionID,
			"reason":     reason,
		}))
		c.Close()
	}
}

// IsUserConnected reports whether the user has any open connection.
func (h *Hub) IsUserConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalLocked()
}

func (h *Hub) totalLocked() int {
	total := 0
	for _, clients := range h.clients {
		total += len(clients)
	}
	return total
}

func (h *Hub) shutdown() {
	h.closeOnce.Do(func() { close(h.done) })

	h.mu.Lock()
	defer h.mu.Unlock()
	for uid, clients := range h.clients {
		for c := range clients {
			c.Close()
			h.observer.ConnectionClosed()
		}
		delete(h.clients, uid)
	}
}
