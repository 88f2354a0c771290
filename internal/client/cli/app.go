package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"segmentbook-service/internal/client/backend"
	"segmentbook-service/internal/client/guard"
	"segmentbook-service/internal/client/model"
	"segmentbook-service/internal/client/queries"
	"segmentbook-service/internal/client/router"
	"segmentbook-service/internal/client/session"
	"segmentbook-service/internal/config"
	"segmentbook-service/internal/pkg/metrics"
	qc "segmentbook-service/internal/pkg/querycache"
)

// App is the application's service graph, built once per command.
type App struct {
	Config    config.ClientConfig
	Logger    *zap.Logger
	API       *backend.Client
	Auth      *backend.AuthClient
	Store     *session.Store
	Guard     *guard.Guard
	Cache     *qc.Cache
	Catalog   *queries.Catalog
	Mutations *queries.Mutations
	Realtime  *backend.Realtime
	Router    *router.Router
	Metrics   *metrics.Metrics
}

// newApp wires the application. live adds the realtime channel and the
// session file watch, for commands that keep a page mounted.
func newApp(ctx context.Context, opts *RootOptions, errOut io.Writer, live bool) (*App, error) {
	cfg := config.LoadClient()
	if opts.APIURL != "" {
		cfg.APIURL = opts.APIURL
	}
	if opts.SessionFile != "" {
		cfg.SessionFile = opts.SessionFile
	}

	logger := newLogger(opts.Verbose, errOut)
	api, err := backend.New(cfg.APIURL,
		backend.WithLogger(logger),
		backend.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("backend client: %w", err)
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		API:     api,
		Auth:    backend.NewAuthClient(api, backend.NewSessionFile(cfg.SessionFile), logger),
		Catalog: queries.NewCatalog(api),
		Metrics: metrics.New(),
	}
	a.Store = session.NewStore(a.Auth, logger)
	a.Cache = qc.New(qc.Options{
		StaleTime: cfg.StaleTime,
		GCTime:    cfg.GCTime,
		Retry:     cfg.Retry,
		Logger:    logger,
		Observer:  a.Metrics.CacheObserver(),
	})
	a.Mutations = queries.NewMutations(api, a.Cache)
	a.Guard = guard.New(a.Store,
		guard.WithPollInterval(cfg.GuardPoll),
		guard.WithLogger(logger),
		guard.WithProfileLoader(a.loadProfile),
	)

	// An unreadable session resolves to signed out; the command still runs.
	if err := a.Store.Initialize(ctx); err != nil {
		logger.Warn("session restore failed", zap.Error(err))
	}

	rc := router.Config{
		Store:    a.Store,
		Guard:    a.Guard,
		Cache:    a.Cache,
		Catalog:  a.Catalog,
		Notifier: newConsoleNotifier(errOut),
		Logger:   logger,
	}
	if live {
		a.Realtime = backend.NewRealtime(api, a.Auth, logger)
		rc.Realtime = a.Realtime
		if err := a.Auth.Watch(ctx); err != nil {
			logger.Warn("session file watch unavailable", zap.Error(err))
		}
	}
	a.Router = router.New(rc)
	return a, nil
}

func (a *App) loadProfile(ctx context.Context, s *session.Session) (*model.Profile, error) {
	p, err := qc.GetQuery(ctx, a.Cache, a.Catalog.Profile(s.UserID))
	if err != nil {
		return nil, err
	}
	if p != nil && (p.FullName != s.FullName || p.Username != s.Username) {
		a.Auth.ApplyProfile(p)
	}
	return p, nil
}

// requireSession runs the route guard for a write command.
func (a *App) requireSession(ctx context.Context) (*session.Session, error) {
	d, err := a.Guard.Check(ctx)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		a.Router.Notify(router.LevelInfo, d.Notice)
		return nil, shown(ErrSignInRequired)
	}
	return d.Session, nil
}

func (a *App) Close() {
	a.Router.Close()
	if a.Realtime != nil {
		if err := a.Realtime.Close(); err != nil {
			a.Logger.Debug("realtime close", zap.Error(err))
		}
	}
	a.Store.Close()
	_ = a.Logger.Sync()
}

func newLogger(verbose bool, w io.Writer) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), level))
}
