// internal/db/listener.go
package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	wstypes "segmentbook-service/internal/domain/websocket"
)

// ChangeChannel is the NOTIFY channel the row triggers publish on.
const ChangeChannel = "segmentbook_changes"

// ChangeSink receives decoded row changes.
type ChangeSink interface {
	PublishChange(ev wstypes.ChangeEvent)
}

// RowLoader reloads a row whose payload was too large for NOTIFY.
type RowLoader func(ctx context.Context, table, id string) (json.RawMessage, error)

type changePayload struct {
	wstypes.ChangeEvent
	Truncated bool `json:"truncated"`
}

// ChangeListener feeds Postgres NOTIFY payloads into a sink.
type ChangeListener struct {
	listener *pq.Listener
	sink     ChangeSink
	loader   RowLoader
	logger   *zap.Logger
}

func NewChangeListener(dsn string, sink ChangeSink, loader RowLoader, logger *zap.Logger) (*ChangeListener, error) {
	cl := &ChangeListener{sink: sink, loader: loader, logger: logger}
	cl.listener = pq.NewListener(dsn, time.Second, time.Minute, cl.onEvent)
	if err := cl.listener.Listen(ChangeChannel); err != nil {
		_ = cl.listener.Close()
		return nil, fmt.Errorf("listen %s: %w", ChangeChannel, err)
	}
	return cl, nil
}

func (cl *ChangeListener) onEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected:
		cl.logger.Info("change listener connected")
	case pq.ListenerEventDisconnected:
		cl.logger.Warn("change listener disconnected", zap.Error(err))
	case pq.ListenerEventReconnected:
		cl.logger.Info("change listener reconnected")
	case pq.ListenerEventConnectionAttemptFailed:
		cl.logger.Warn("change listener reconnect failed", zap.Error(err))
	}
}

// Run forwards notifications until ctx is done.
func (cl *ChangeListener) Run(ctx context.Context) {
	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-cl.listener.Notify:
			// nil after a reconnect; events sent while disconnected are lost.
			if n == nil {
				continue
			}
			cl.handle(ctx, []byte(n.Extra))
		case <-ping.C:
			if err := cl.listener.Ping(); err != nil {
				cl.logger.Warn("change listener ping failed", zap.Error(err))
			}
		}
	}
}

func (cl *ChangeListener) handle(ctx context.Context, raw []byte) {
	ev, err := DecodeChange(ctx, raw, cl.loader)
	if err != nil {
		cl.logger.Warn("dropping change notification", zap.Error(err))
		return
	}
	cl.sink.PublishChange(ev)
}

// DecodeChange parses a trigger payload, reloading truncated rows.
func DecodeChange(ctx context.Context, raw []byte, loader RowLoader) (wstypes.ChangeEvent, error) {
	var p changePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return wstypes.ChangeEvent{}, fmt.Errorf("decode payload: %w", err)
	}
	if p.Table == "" || p.Event == "" {
		return wstypes.ChangeEvent{}, fmt.Errorf("payload missing table or event")
	}
	if !p.Truncated {
		return p.ChangeEvent, nil
	}

	if loader == nil {
		return wstypes.ChangeEvent{}, fmt.Errorf("truncated %s row and no loader", p.Table)
	}
	var ref struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(p.New, &ref); err != nil || ref.ID == "" {
		return wstypes.ChangeEvent{}, fmt.Errorf("truncated %s row without id", p.Table)
	}
	row, err := loader(ctx, p.Table, ref.ID)
	if err != nil {
		return wstypes.ChangeEvent{}, fmt.Errorf("reload %s %s: %w", p.Table, ref.ID, err)
	}
	p.New = row
	return p.ChangeEvent, nil
}

func (cl *ChangeListener) Close() error {
	return cl.listener.Close()
}
