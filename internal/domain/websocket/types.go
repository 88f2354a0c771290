// internal/domain/websocket/types.go
package websocket

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType represents different real-time event types
type EventType string

const (
	// Connection events
	EventTypePing         EventType = "ping"
	EventTypePong         EventType = "pong"
	EventTypeConnected    EventType = "connected"
	EventTypeDisconnected EventType = "disconnected"
	EventTypeError        EventType = "error"

	// Subscription events
	EventTypeSubscribe   EventType = "subscribe"
	EventTypeUnsubscribe EventType = "unsubscribe"

	// Row change pushed to a subscription (server -> client)
	EventTypeChange EventType = "change"

	// Session events
	EventTypeSessionRevoked EventType = "session:revoked"
)

// WSMessage is the universal message format
type WSMessage struct {
	Type      EventType       `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	ID        string          `json:"id,omitempty"` // subscription id for subscribe/unsubscribe/error acks
}

// Tables that can be subscribed to.
const (
	TableNotifications    = "notifications"
	TableMessages         = "messages"
	TableDonationRequests = "donation_requests"
)

// Row events.
const (
	RowInsert = "INSERT"
	RowUpdate = "UPDATE"
	RowAny    = "*"
)

// SubscribeRequest asks for row events of Table matching Filter, tagged with Topic.
type SubscribeRequest struct {
	Topic  string `json:"topic"`
	Table  string `json:"table"`
	Event  string `json:"event"`
	Filter string `json:"filter"`
}

// SubscribeAck confirms a subscription.
type SubscribeAck struct {
	Status string `json:"status"`
	Topic  string `json:"topic"`
}

// ChangeEvent is one row change as produced by the database trigger.
type ChangeEvent struct {
	Table string          `json:"table"`
	Event string          `json:"event"`
	New   json.RawMessage `json:"new"`
}

// ChangeData is a ChangeEvent delivered to one subscription.
type ChangeData struct {
	SubscriptionID string          `json:"subscription_id"`
	Topic          string          `json:"topic"`
	Table          string          `json:"table"`
	Event          string          `json:"event"`
	New            json.RawMessage `json:"new"`
}

// ErrorData for error events
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Filter is a parsed "column=eq.value" predicate.
type Filter struct {
	Column string
	Value  string
}

// ParseFilter parses "column=eq.value". Only equality is supported.
func ParseFilter(s string) (Filter, error) {
	col, rest, ok := strings.Cut(s, "=")
	if !ok || col == "" {
		return Filter{}, fmt.Errorf("invalid filter %q: expected column=eq.value", s)
	}
	val, ok := strings.CutPrefix(rest, "eq.")
	if !ok || val == "" {
		return Filter{}, fmt.Errorf("invalid filter %q: only eq is supported", s)
	}
	return Filter{Column: col, Value: val}, nil
}

func (f Filter) String() string {
	return f.Column + "=eq." + f.Value
}

// Matches reports whether row has Column equal to Value.
func (f Filter) Matches(row map[string]any) bool {
	v, ok := row[f.Column]
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
	case string:
		return t == f.Value
	default:
		return fmt.Sprint(t) == f.Value
	}
}

// EqFilter builds the filter string for column == value.
func EqFilter(column, value string) string {
	return Filter{Column: column, Value: value}.String()
}

// Helper to create messages
func NewMessage(eventType EventType, data any) *WSMessage {
	return NewReply(eventType, generateMessageID(), data)
}

// NewReply creates a message carrying an explicit id.
func NewReply(eventType EventType, id string, data any) *WSMessage {
	msg := &WSMessage{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		ID:        id,
	}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			msg.Data = raw
		}
	}
	return msg
}

func (m *WSMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Decode unmarshals Data into v.
func (m *WSMessage) Decode(v any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("message %s has no data", m.Type)
	}
	return json.Unmarshal(m.Data, v)
}

func ParseMessage(data []byte) (*WSMessage, error) {
	var msg WSMessage
	err := json.Unmarshal(data, &msg)
	return &msg, err
}

func generateMessageID() string {
	return ulid.Make().String()
}
