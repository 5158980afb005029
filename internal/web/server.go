package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/rehanbawakhan/vdetection/internal/config"
	"github.com/rehanbawakhan/vdetection/internal/database"
	"github.com/rehanbawakhan/vdetection/internal/metrics"
	"github.com/rehanbawakhan/vdetection/internal/web/handlers"
	"github.com/rehanbawakhan/vdetection/internal/web/middleware"
)

// Dependencies are the services the HTTP layer is built on.
type Dependencies struct {
	Store    database.Store
	Matcher  *database.FaceMatcher // defaults to a linear matcher over Store
	Notifier handlers.Notifier     // optional
	Metrics  *metrics.Metrics      // optional
	Logger   *zap.Logger           // optional
}

// Server represents the web server
type Server struct {
	config     *config.Config
	router     *chi.Mux
	httpServer *http.Server
	deps       Dependencies
	tokens     *middleware.TokenManager
	log        *zap.Logger
}

// NewServer creates a new web server
func NewServer(cfg *config.Config, port int, host string, deps Dependencies) *Server {
	r := chi.NewRouter()

	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Matcher == nil {
		deps.Matcher = database.NewFaceMatcher(deps.Store, nil)
	}

	s := &Server{
		config: cfg,
		router: r,
		deps:   deps,
		tokens: middleware.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Server.IsProduction()),
		log:    deps.Logger,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	if cfg.Server.TrustProxy {
		r.Use(chiMiddleware.RealIP)
	}
	r.Use(middleware.RequestLogger(s.log, deps.Metrics))
	r.Use(middleware.Recover(s.log))
	r.Use(chiMiddleware.Timeout(60 * time.Second))
	r.Use(middleware.SecurityHeaders(cfg.Server.IsProduction()))
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))
	r.Use(middleware.BodyLimit(cfg.Limits.BodyLimitBytes))

	// Set up routes
	s.setupRoutes()

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info("starting web server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down web server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Tokens returns the token manager
func (s *Server) Tokens() *middleware.TokenManager {
	return s.tokens
}
