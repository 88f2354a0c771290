// internal/client/router/router.go
package router

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"segmentbook-service/internal/client/backend"
	"segmentbook-service/internal/client/guard"
	"segmentbook-service/internal/client/queries"
	"segmentbook-service/internal/client/session"
	wstypes "segmentbook-service/internal/domain/websocket"
	qc "segmentbook-service/internal/pkg/querycache"
)

var (
	ErrNotFound     = errors.New("page not found")
	ErrRedirectLoop = errors.New("redirect loop")
	ErrPageClosed   = errors.New("page closed")
)

// Level is the severity of a user-visible notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notifier shows short messages to the user (toasts).
type Notifier interface {
	Notify(level Level, msg string)
}

// Subscriber is the realtime channel pages subscribe through.
type Subscriber interface {
	Subscribe(ctx context.Context, req wstypes.SubscribeRequest, handler backend.ChangeHandler) (backend.Handle, error)
	Unsubscribe(h backend.Handle) error
}

// Config holds the services a Router is built from. Realtime may be nil, in
// which case pages render without live updates.
type Config struct {
	Store    *session.Store
	Guard    *guard.Guard
	Cache    *qc.Cache
	Catalog  *queries.Catalog
	Realtime Subscriber
	Notifier Notifier
	Logger   *zap.Logger
	Routes   []*Route
}

// Router resolves paths to pages, running the guard for protected routes.
type Router struct {
	routes   []*Route
	store    *session.Store
	guard    *guard.Guard
	cache    *qc.Cache
	catalog  *queries.Catalog
	realtime Subscriber
	notifier Notifier
	logger   *zap.Logger

	mu       sync.Mutex
	lastUser string
	unsub    func()
}

func New(cfg Config) *Router {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	routes := cfg.Routes
	if routes == nil {
		routes = DefaultRoutes()
	}
	r := &Router{
		routes:   routes,
		store:    cfg.Store,
		guard:    cfg.Guard,
		cache:    cfg.Cache,
		catalog:  cfg.Catalog,
		realtime: cfg.Realtime,
		notifier: cfg.Notifier,
		logger:   logger,
	}
	if st := cfg.Store.State(); st.Session != nil {
		r.lastUser = st.Session.UserID
	}

	// Cached reads belong to one user; drop them when the user changes.
	r.unsub = cfg.Store.Subscribe(func(st session.AuthState) {
		if st.IsLoading {
			return
		}
		uid := ""
		if st.Session != nil {
			uid = st.Session.UserID
		}
		r.mu.Lock()
		changed := uid != r.lastUser
		r.lastUser = uid
		r.mu.Unlock()
		if changed {
			r.cache.Clear()
		}
	})
	return r
}

// Close detaches the router from the session store.
func (r *Router) Close() {
	if r.unsub != nil {
		r.unsub()
	}
}

// Navigate resolves target and mounts its page. A guard denial redirects
// once; a denial on the redirect target is ErrRedirectLoop.
func (r *Router) Navigate(ctx context.Context, target string) (*Page, error) {
	dest := target
	from := ""
	for hop := 0; ; hop++ {
		u, err := url.Parse(dest)
		if err != nil {
			return nil, fmt.Errorf("parse route %q: %w", dest, err)
		}
		route, params, ok := r.match(u.Path)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, u.Path)
		}

		var decision guard.Decision
		if route.Protected {
			decision, err = r.guard.Check(ctx)
			if err != nil {
				return nil, err
			}
			if !decision.Allowed {
				if hop > 0 || decision.RedirectTo == u.Path {
					return nil, fmt.Errorf("%w: %s -> %s", ErrRedirectLoop, target, decision.RedirectTo)
				}
				r.Notify(LevelInfo, decision.Notice)
				r.logger.Debug("route denied",
					zap.String("path", u.Path),
					zap.String("redirect", decision.RedirectTo),
				)
				from = dest
				dest = decision.RedirectTo
				continue
			}
		} else {
			decision.Session = r.store.State().Session
		}

		p := r.newPage(ctx, route, u, params, decision)
		p.RedirectedFrom = from
		if route.Mount != nil {
			if err := route.Mount(p); err != nil {
				p.Close()
				return nil, err
			}
		}
		return p, nil
	}
}

// Run executes a user write, reporting its outcome through the notifier.
// Backend messages are shown unchanged.
func (r *Router) Run(ctx context.Context, success string, fn func(ctx context.Context) error) error {
	if err := fn(ctx); err != nil {
		r.Notify(LevelError, err.Error())
		return err
	}
	if success != "" {
		r.Notify(LevelSuccess, success)
	}
	return nil
}

// Notify shows msg through the configured Notifier.
func (r *Router) Notify(level Level, msg string) {
	if r.notifier != nil && msg != "" {
		r.notifier.Notify(level, msg)
	}
}

func (r *Router) match(path string) (*Route, map[string]string, bool) {
	segs := splitPath(path)
	for _, route := range r.routes {
		if params, ok := route.match(segs); ok {
			return route, params, true
		}
	}
	return nil, nil, false
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
