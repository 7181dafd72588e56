// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer: it connects handlers, middleware, and
// routes, and decides how the server starts and stops gracefully.
//
// DEPENDENCY INJECTION FLOW:
// cmd/server builds the config, the logger and the generative client, then:
//
//	Server.New() creates: sqlite.DB → services → handlers → routes
//
// This is the "composition root" pattern: all dependencies are wired in one
// place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/promptcraft/internal/auth"
	"github.com/sakif/promptcraft/internal/config"
	"github.com/sakif/promptcraft/internal/genai"
	"github.com/sakif/promptcraft/internal/handler"
	"github.com/sakif/promptcraft/internal/middleware"
	sqliteRepo "github.com/sakif/promptcraft/internal/repository/sqlite"
	"github.com/sakif/promptcraft/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection. Start closes it on shutdown;
// callers that never call Start (tests) must call Close.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New creates a Server from a validated config.
//
// generator may be nil: the server still runs, and the generate endpoint
// answers 503 until an API key is configured.
func New(cfg *config.Config, logger *slog.Logger, generator genai.Generator) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	// === CREATE DATABASE ===
	db, err := sqliteRepo.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}
	s.setupRoutes(tokens, generator)

	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz                       → liveness + db ping
//	POST   /register                      → create account
//	POST   /login                         → Basic auth (or JSON) → token
//	POST   /logout                        → revoke bearer token
//	--- bearer token required below ---
//	GET    /me                            → current user
//	GET    /prompts?sort=newest|oldest    → own prompts
//	POST   /prompts                       → create
//	GET    /prompts/public                → shared prompts
//	GET    /prompts/public/search         → filtered shared prompts
//	GET    /prompts/{id}                  → one prompt
//	PUT    /prompts/{id}                  → partial update
//	DELETE /prompts/{id}                  → delete (cascades)
//	PUT    /prompts/{id}/publish          → share
//	POST   /prompts/{id}/vote             → vote -1|0|1
//	POST   /prompts/{id}/generate         → run through the model
//	GET    /prompts/{id}/history          → generations
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns unique ID to each request (the logger reads it)
// 2. RealIP: extracts real client IP from proxy headers
// 3. Recoverer: catches panics and returns 500 instead of crashing
// 4. Logger: logs each request with timing info
func (s *Server) setupRoutes(tokens *auth.TokenService, generator genai.Generator) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// DEPENDENCY CHAIN:
	//   s.db implements every repository interface
	//   services receive the interfaces, handlers receive the services
	guard := service.NewGuard(s.db)
	authService := service.NewAuthService(s.db, s.db, tokens,
		auth.NewPasswordServiceWithCost(s.config.Auth.BcryptCost), s.logger)
	promptService := service.NewPromptService(s.db, guard, s.logger)
	voteService := service.NewVoteService(s.db, guard, s.logger)
	generationService := service.NewGenerationService(s.db, guard, generator, s.config.GenAI.Timeout, s.logger)

	authHandler := handler.NewAuthHandler(authService, s.logger)
	promptHandler := handler.NewPromptHandler(promptService, voteService, generationService, s.logger)
	healthHandler := handler.NewHealthHandler(s.db, s.logger)

	s.router.Get("/healthz", healthHandler.HandleHealth)
	s.router.Post("/register", authHandler.HandleRegister)
	s.router.Post("/login", authHandler.HandleLogin)
	s.router.Post("/logout", authHandler.HandleLogout)

	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(authService))

		r.Get("/me", authHandler.HandleMe)

		r.Route("/prompts", func(r chi.Router) {
			r.Get("/", promptHandler.HandleListOwn)
			r.Post("/", promptHandler.HandleCreate)
			r.Get("/public", promptHandler.HandleListPublic)
			r.Get("/public/search", promptHandler.HandleSearchPublic)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", promptHandler.HandleGet)
				r.Put("/", promptHandler.HandleUpdate)
				r.Delete("/", promptHandler.HandleDelete)
				r.Put("/publish", promptHandler.HandlePublish)
				r.Post("/vote", promptHandler.HandleVote)
				r.Post("/generate", promptHandler.HandleGenerate)
				r.Get("/history", promptHandler.HandleHistory)
			})
		})
	})
}

// Handler returns the root http.Handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the database connection (flushes WAL, releases file lock)
//
// The write timeout leaves room for a generation call, which can take up to
// the configured GenAI timeout.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.config.GenAI.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Server.Port)),
			slog.String("database", s.config.Database.Path),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
