// internal/websocket/client.go
package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	wstypes "segmentbook-service/internal/domain/websocket"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMessageSize   = 64 * 1024
	subscribeTimeout = 5 * time.Second
	sendBuffer       = 256
)

// ClientAuth identifies an authenticated connection.
type ClientAuth struct {
	UserID    string
	SessionID string
	Email     string
}

type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	userID    string
	sessionID string

	mu     sync.Mutex
	subs   map[string]*subscription
	closed bool
}

func NewClient(hub *Hub, conn *websocket.Conn, auth *ClientAuth) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		userID:    auth.UserID,
		sessionID: auth.SessionID,
		subs:      make(map[string]*subscription),
	}
}

func (c *Client) UserID() string { return c.userID }

func (c *Client) SessionID() string { return c.sessionID }

// ReadPump reads until the connection fails, then unregisters the client.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("websocket read failed", zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}
		// Any inbound traffic proves the peer is alive.
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.handleMessage(raw)
	}
}

// WritePump drains send and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			data, err := wstypes.NewMessage(wstypes.EventTypePing, nil).ToJSON()
			if err != nil {
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(raw []byte) {
	msg, err := wstypes.ParseMessage(raw)
	if err != nil {
		c.SendError("", CodeInvalidMessage, "Failed to parse message")
		return
	}

	switch msg.Type {
	case wstypes.EventTypePing:
		c.SendMessage(wstypes.NewMessage(wstypes.EventTypePong, nil))

	case wstypes.EventTypePong:
		// deadline already extended

	case wstypes.EventTypeSubscribe:
		c.subscribe(msg)

	case wstypes.EventTypeUnsubscribe:
		c.mu.Lock()
		delete(c.subs, msg.ID)
		c.mu.Unlock()
		c.SendMessage(wstypes.NewReply(wstypes.EventTypeUnsubscribe, msg.ID, wstypes.SubscribeAck{Status: "unsubscribed"}))

	default:
		c.SendError(msg.ID, CodeInvalidMessage, "Unsupported message type "+string(msg.Type))
	}
}

func (c *Client) subscribe(msg *wstypes.WSMessage) {
	if msg.ID == "" {
		c.SendError("", CodeInvalidMessage, "Subscribe requires an id")
		return
	}
	var req wstypes.SubscribeRequest
	if err := msg.Decode(&req); err != nil {
		c.SendError(msg.ID, CodeInvalidMessage, "Invalid subscribe request")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), subscribeTimeout)
	defer cancel()

	sub, err := authorize(ctx, c.hub.chats, c.userID, msg.ID, req)
	if err != nil {
		c.hub.logger.Info("subscription refused",
			zap.String("user_id", c.userID),
			zap.String("table", req.Table),
			zap.String("filter", req.Filter),
			zap.Error(err),
		)
		c.SendError(msg.ID, errorCode(err), err.Error())
		return
	}

	c.mu.Lock()
	c.subs[sub.id] = sub
	c.mu.Unlock()
	c.SendMessage(wstypes.NewReply(wstypes.EventTypeSubscribe, msg.ID, wstypes.SubscribeAck{Status: "subscribed", Topic: req.Topic}))
}

// matching returns the subscriptions interested in ev.
func (c *Client) matching(ev wstypes.ChangeEvent, row map[string]any) []*subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*subscription
	for _, s := range c.subs {
		if s.wants(ev, row) {
			out = append(out, s)
		}
	}
	return out
}

// SendMessage queues msg. A client whose buffer is full is dropped.
func (c *Client) SendMessage(msg *wstypes.WSMessage) bool {
	data, err := msg.ToJSON()
	if err != nil {
		c.hub.logger.Warn("marshal websocket message", zap.Error(err))
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		c.hub.logger.Warn("websocket client too slow, dropping", zap.String("user_id", c.userID))
		c.closeLocked()
		return false
	}
}

// SendError replies with an error; id ties it to the request that failed.
func (c *Client) SendError(id, code, message string) {
	c.SendMessage(wstypes.NewReply(wstypes.EventTypeError, id, wstypes.ErrorData{Code: code, Message: message}))
}

// Close stops the write pump after queued messages are flushed.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
