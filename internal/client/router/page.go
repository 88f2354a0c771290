// internal/client/router/page.go
package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"segmentbook-service/internal/client/backend"
	"segmentbook-service/internal/client/guard"
	"segmentbook-service/internal/client/model"
	"segmentbook-service/internal/client/queries"
	"segmentbook-service/internal/client/session"
	wstypes "segmentbook-service/internal/domain/websocket"
	qc "segmentbook-service/internal/pkg/querycache"
)

var ErrDuplicateSubscription = errors.New("page already subscribed to topic")

// Page is one mounted route. It owns a context, its cache watches and its
// realtime subscriptions; Close releases all of them.
type Page struct {
	Route          *Route
	Path           string
	Params         map[string]string
	Query          url.Values
	Session        *session.Session
	Profile        *model.Profile
	RedirectedFrom string

	router *Router
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	unwatch []func()
	subs    map[string]backend.Handle
	changed chan struct{}
}

func (r *Router) newPage(ctx context.Context, route *Route, u *url.URL, params map[string]string, d guard.Decision) *Page {
	pctx, cancel := context.WithCancel(ctx)
	return &Page{
		Route:   route,
		Path:    u.Path,
		Params:  params,
		Query:   u.Query(),
		Session: d.Session,
		Profile: d.Profile,
		router:  r,
		ctx:     pctx,
		cancel:  cancel,
		subs:    make(map[string]backend.Handle),
		changed: make(chan struct{}, 1),
	}
}

// Context is cancelled when the page closes.
func (p *Page) Context() context.Context { return p.ctx }

func (p *Page) Cache() *qc.Cache { return p.router.cache }

func (p *Page) Catalog() *queries.Catalog { return p.router.catalog }

// UserID is the signed-in user, or "" on public pages without a session.
func (p *Page) UserID() string {
	if p.Session == nil {
		return ""
	}
	return p.Session.UserID
}

// Changed fires after any watched key changes.
func (p *Page) Changed() <-chan struct{} { return p.changed }

// Watch re-signals Changed whenever key changes.
func (p *Page) Watch(key qc.Key) {
	unwatch := p.router.cache.Subscribe(key, func(qc.Snapshot) {
		select {
		case p.changed <- struct{}{}:
		default:
		}
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		unwatch()
		return
	}
	p.unwatch = append(p.unwatch, unwatch)
}

// Subscribe opens a realtime subscription owned by the page. Events arriving
// after Close are dropped.
func (p *Page) Subscribe(req wstypes.SubscribeRequest, handler backend.ChangeHandler) error {
	rt := p.router.realtime
	if rt == nil {
		return nil
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPageClosed
	}
	if _, dup := p.subs[req.Topic]; dup {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateSubscription, req.Topic)
	}
	// Reserve the topic while the subscribe round-trip is in flight.
	p.subs[req.Topic] = backend.Handle{}
	p.mu.Unlock()

	h, err := rt.Subscribe(p.ctx, req, func(d wstypes.ChangeData) {
		if p.ctx.Err() != nil {
			return
		}
		handler(d)
	})

	p.mu.Lock()
	if err != nil {
		delete(p.subs, req.Topic)
		p.mu.Unlock()
		p.router.logger.Warn("realtime subscribe failed", zap.String("topic", req.Topic), zap.Error(err))
		p.router.Notify(LevelError, "Live updates unavailable: "+err.Error())
		return nil
	}
	if p.closed {
		p.mu.Unlock()
		return rt.Unsubscribe(h)
	}
	p.subs[req.Topic] = h
	p.mu.Unlock()
	return nil
}

// Topics lists the realtime topics the page holds.
func (p *Page) Topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.subs))
	for t := range p.subs {
		out = append(out, t)
	}
	return out
}

// Render writes the page's view.
func (p *Page) Render(w io.Writer) error {
	if p.ctx.Err() != nil {
		return ErrPageClosed
	}
	if p.Route.Render == nil {
		return nil
	}
	return p.Route.Render(p, w)
}

// Close unmounts the page. Safe to call more than once.
func (p *Page) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	unwatch := p.unwatch
	subs := p.subs
	p.unwatch = nil
	p.subs = make(map[string]backend.Handle)
	p.mu.Unlock()

	p.cancel()
	for _, fn := range unwatch {
		fn()
	}
	for topic, h := range subs {
		if h.ID == "" {
			continue
		}
		if err := p.router.realtime.Unsubscribe(h); err != nil {
			p.router.logger.Debug("unsubscribe failed", zap.String("topic", topic), zap.Error(err))
		}
	}
}

// Use warms q and watches its key.
func Use[T any](p *Page, q qc.Query[T]) {
	qc.EnsureQuery(p.Cache(), q)
	p.Watch(q.Key)
}

// Load waits for q under the page's context.
func Load[T any](p *Page, q qc.Query[T]) (T, error) {
	return qc.GetQuery(p.ctx, p.Cache(), q)
}
