// internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"segmentbook-service/internal/config"
	"segmentbook-service/internal/db"
	authHandler "segmentbook-service/internal/handlers/auth"
	bookHandler "segmentbook-service/internal/handlers/book"
	chatHandler "segmentbook-service/internal/handlers/chat"
	donationHandler "segmentbook-service/internal/handlers/donation"
	notifyHandler "segmentbook-service/internal/handlers/notification"
	storageHandler "segmentbook-service/internal/handlers/storage"
	userHandler "segmentbook-service/internal/handlers/user"
	wsHandler "segmentbook-service/internal/handlers/websocket"
	"segmentbook-service/internal/middleware"
	"segmentbook-service/internal/pkg/jwt"
	"segmentbook-service/internal/pkg/metrics"
	"segmentbook-service/internal/pkg/session"
	"segmentbook-service/internal/pkg/validation"
	"segmentbook-service/internal/repository/postgres"
	authUsecase "segmentbook-service/internal/service/auth"
	bookUsecase "segmentbook-service/internal/service/book"
	chatUsecase "segmentbook-service/internal/service/chat"
	donationUsecase "segmentbook-service/internal/service/donation"
	notifyUsecase "segmentbook-service/internal/service/notification"
	storageUsecase "segmentbook-service/internal/service/storage"
	userUsecase "segmentbook-service/internal/service/user"
	"segmentbook-service/internal/websocket"
)

type Server struct {
	cfg     config.AppConfig
	engine  *gin.Engine
	logger  *zap.Logger
	httpSrv *http.Server

	// guarded by mu; Shutdown may race with a Start still wiring up
	mu       sync.Mutex
	pool     *pgxpool.Pool
	redis    redis.UniversalClient
	listener *db.ChangeListener
	cancel   context.CancelFunc
}

func NewServer(cfg config.AppConfig, logger *zap.Logger) *Server {
	engine := gin.New()
	return &Server{cfg: cfg, engine: engine, logger: logger}
}

// Start connects the backing services, wires the application and serves
// HTTP until Shutdown. It returns http.ErrServerClosed after a clean stop.
func (s *Server) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	s.mu.Lock()
	s.pool = pool
	s.mu.Unlock()
	if err := db.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	s.logger.Info("postgres ready")

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(ctx, db.RedisConfig{
		Addresses: []string{s.cfg.RedisAddr},
		Password:  s.cfg.RedisPass,
		PoolSize:  10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	s.mu.Lock()
	s.redis = redisClient
	s.mu.Unlock()
	s.logger.Info("redis ready")

	// ----- JWT Manager -----
	jwtManager, err := jwt.LoadAndBuild(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to load JWT manager: %w", err)
	}

	if err := validation.Register(); err != nil {
		return fmt.Errorf("failed to register validators: %w", err)
	}
	m := metrics.New()

	// ----- Repositories -----
	dbWrapper := postgres.NewDB(pool)
	authRepo := postgres.NewAuthRepository(pool)
	bookRepo := postgres.NewBookRepository(pool)
	donationRepo := postgres.NewDonationRepository(pool)
	notifyRepo := postgres.NewNotificationRepository(pool)
	chatRepo := postgres.NewChatRepository(pool)

	// ----- Session Manager & Rate Limiter -----
	sessionManager := session.NewManager(redisClient, authRepo, s.logger)
	rateLimiter := session.NewRateLimiter(redisClient, s.cfg.LoginAttempts, s.cfg.LoginWindow)

	// ----- Services (Usecases) -----
	authService := authUsecase.NewAuthService(authRepo, jwtManager, sessionManager, rateLimiter, nil, s.logger)
	userService := userUsecase.NewUserService(authRepo, s.logger)
	bookService := bookUsecase.NewBookService(bookRepo, s.logger)
	donationService := donationUsecase.NewDonationService(donationRepo, s.logger)
	notifService := notifyUsecase.NewNotificationService(notifyRepo, s.logger)
	chatService := chatUsecase.NewChatService(chatRepo, s.logger)
	storageService := storageUsecase.NewStorageService(s.cfg.UploadDir, s.cfg.PublicURL, s.cfg.MaxUploadSize, s.logger)

	// ----- WebSocket Hub & change feed -----
	hub := websocket.NewHub(authService, chatService, m, s.logger)
	authService.SetNotifier(hub)
	go hub.Run(runCtx)

	listener, err := db.NewChangeListener(s.cfg.DatabaseURL, hub, dbWrapper.LoadRow, s.logger)
	if err != nil {
		return fmt.Errorf("failed to start change listener: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	go listener.Run(runCtx)

	// ----- Middlewares -----
	s.engine.Use(
		middleware.RecoveryMiddleware(s.logger),
		middleware.LoggingMiddleware(s.logger),
		middleware.CORSMiddleware(s.cfg.CORSOrigins),
		middleware.MetricsMiddleware(m),
	)

	// ----- Router -----
	SetupRouter(s.engine, &Handlers{
		AuthHandler:     authHandler.NewAuthHandler(authService, s.logger),
		UserHandler:     userHandler.NewUserHandler(userService),
		BookHandler:     bookHandler.NewBookHandler(bookService, donationService),
		DonationHandler: donationHandler.NewDonationHandler(donationService),
		NotifHandler:    notifyHandler.NewNotificationHandler(notifService),
		ChatHandler:     chatHandler.NewChatHandler(chatService),
		StorageHandler:  storageHandler.NewStorageHandler(storageService, s.cfg.MaxUploadSize, s.logger),
		WSHandler:       wsHandler.NewWebSocketHandler(hub, s.cfg.CORSOrigins, s.logger),
		AuthMiddleware:  middleware.NewAuthMiddleware(authService),
		Metrics:         m.Handler(),
		UploadDir:       storageService.Root(),
	})

	httpSrv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	if err := ctx.Err(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.httpSrv = httpSrv
	s.mu.Unlock()

	s.logger.Info("server listening", zap.String("addr", s.cfg.HTTPAddr))
	return httpSrv.ListenAndServe()
}

// Shutdown stops accepting requests, then closes the change feed and the
// connection pools.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.httpSrv != nil {
		errs = append(errs, s.httpSrv.Shutdown(ctx))
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.listener != nil {
		errs = append(errs, s.listener.Close())
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	if s.pool != nil {
		s.pool.Close()
	}
	return errors.Join(errs...)
}
