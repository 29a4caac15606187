// Package api serves a read-only HTTP view of reconciliation runs, their
// outcomes, and the allocation rows of each transaction.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/eshaffer321/charter-reconciler/internal/api/handlers"
	"github.com/eshaffer321/charter-reconciler/internal/api/middleware"
	"github.com/eshaffer321/charter-reconciler/internal/infrastructure/config"
	"github.com/eshaffer321/charter-reconciler/internal/infrastructure/storage"
)

// Config holds API server configuration.
type Config struct {
	Addr           string
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		AllowedOrigins: middleware.DefaultCORSConfig().AllowedOrigins,
	}
}

// ConfigFrom builds the server config from the application config.
func ConfigFrom(cfg config.APIConfig) Config {
	return Config{
		Addr:           cfg.Addr,
		AllowedOrigins: cfg.AllowedOrigins,
	}
}

// Server is the HTTP API server.
type Server struct {
	config     Config
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
	repo       storage.Repository
}

// NewServer creates a new API server.
func NewServer(cfg Config, repo storage.Repository, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config: cfg,
		router: chi.NewRouter(),
		logger: logger,
		repo:   repo,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.Recoverer)

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = s.config.AllowedOrigins
	s.router.Use(middleware.CORS(corsConfig))

	s.router.Use(middleware.Logging(s.logger))
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check (no /api prefix - for load balancers)
	var schema handlers.SchemaVersioner
	if v, ok := s.repo.(handlers.SchemaVersioner); ok {
		schema = v
	}
	s.router.Get("/health", handlers.NewHealthHandler(schema).ServeHTTP)

	s.router.Route("/api", func(r chi.Router) {
		runsHandler := handlers.NewRunsHandler(s.repo)
		r.Get("/runs", runsHandler.List)
		r.Get("/runs/{id}", runsHandler.Get)
		r.Get("/runs/{id}/outcomes", runsHandler.Outcomes)

		txHandler := handlers.NewTransactionsHandler(s.repo)
		r.Get("/transactions/{id}", txHandler.Get)
		r.Get("/transactions/{id}/allocations", txHandler.Allocations)

		statsHandler := handlers.NewStatsHandler(s.repo)
		r.Get("/stats", statsHandler.Get)
	})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info("starting API server", "addr", s.config.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}
