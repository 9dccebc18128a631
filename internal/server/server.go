package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shoplist/core/config"
	"github.com/shoplist/core/internal/auth"
	"github.com/shoplist/core/internal/db"
	"github.com/shoplist/core/internal/docstore"
	"github.com/shoplist/core/internal/handlers"
	"github.com/shoplist/core/internal/mq"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      *mq.MQ
	logger     *slog.Logger
}

// Deps are the collaborators NewRouter wires into routes.
type Deps struct {
	Store    docstore.Client
	Auth     handlers.Authenticator
	Notifier handlers.ChangeNotifier
	Logger   *slog.Logger
	HTTP     config.HTTPConfig
}

// New constructs a Server backed by PostgreSQL with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store := docstore.NewPostgresStore(dbConn)

	authTransport, err := auth.NewLocalTransport(store, cfg.Auth.JWTSecret, auth.WithTokenTTL(cfg.Auth.TokenTTL))
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	queue, err := mq.Open(ctx, cfg, mq.WithLogger(logger))
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open message queue: %w", err)
	}

	var notifier handlers.ChangeNotifier
	if queue != nil {
		notifier = mq.NewChangeFeed(queue, cfg.MQ.Channel, logger)
		logger.Info("document change events enabled", "backend", cfg.MQ.Backend, "channel", cfg.MQ.Channel)
	}

	router := NewRouter(Deps{
		Store:    store,
		Auth:     authTransport,
		Notifier: notifier,
		Logger:   logger,
		HTTP:     cfg.HTTP,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		queue:      queue,
		logger:     logger,
	}, nil
}

// NewRouter builds the full route tree over the given collaborators.
func NewRouter(deps Deps) *chi.Mux {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	authMiddleware := handlers.RequireAuth(deps.Auth)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		handlers.Metrics,
		cors.Handler(cors.Options{
			AllowedOrigins: deps.HTTP.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}),
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Handle("/metrics", promhttp.Handler())
	router.Route("/auth", func(r chi.Router) {
		r.Use(handlers.RateLimiter(deps.HTTP.AuthRateLimit, deps.HTTP.AuthRateBurst))
		handlers.AuthRouter(r, deps.Auth, logger)
	})
	router.Route("/collections", func(r chi.Router) {
		handlers.DocumentRouter(r, deps.Store, deps.Notifier, logger, authMiddleware)
	})
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and releases the database and broker.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
