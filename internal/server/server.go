// Package server sets up the HTTP server, router, and all route
// definitions. This is the composition root: the one place where the
// database, services, and handlers are wired together, so main.go stays
// minimal and tests can assemble the same graph against a temp database.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/fortuneai/internal/auth"
	"github.com/sakif/fortuneai/internal/config"
	"github.com/sakif/fortuneai/internal/fortune"
	"github.com/sakif/fortuneai/internal/handler"
	"github.com/sakif/fortuneai/internal/middleware"
	sqliteRepo "github.com/sakif/fortuneai/internal/repository/sqlite"
	"github.com/sakif/fortuneai/internal/service"
	"github.com/sakif/fortuneai/internal/telemetry"
)

// Server owns the router and the resources that must be released on
// shutdown (the SQLite connection in particular — closing it flushes the
// WAL and releases the file lock).
type Server struct {
	router *chi.Mux
	cfg    *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// fortuneStreamer adapts the concrete OpenAI client to the small interface
// the relay handler consumes, so handler tests can script token streams
// without a network.
type fortuneStreamer struct {
	client *fortune.Client
}

func (f *fortuneStreamer) Stream(ctx context.Context, readingType, question string) (handler.TokenStream, error) {
	return f.client.Stream(ctx, readingType, question)
}

// New assembles the full dependency chain:
//
//	sqlite.DB → repositories → services → handlers → routes
//
// Each layer only receives what it needs: services get repository
// interfaces, handlers get services, and nothing below the handler layer
// knows HTTP exists.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes wires middleware, services, handlers, and URL patterns.
//
// ROUTE MAP:
//
//	POST   /api/chatgpt                  → stream a reading (public)
//	GET    /api/reading-types            → catalogue (public)
//	GET    /api/share/{token}            → resolve a share link (public)
//	POST   /api/readings                 → save a reading        ┐
//	GET    /api/readings                 → history               │
//	GET    /api/readings/{id}            → single reading        │
//	PATCH  /api/readings/{id}            → edit title/tags/fav   │ auth
//	DELETE /api/readings/{id}            → delete                │ required
//	POST/DELETE /api/readings/{id}/share → issue/revoke link     │
//	POST/GET    /api/readings/{id}/export→ export                │
//	GET    /api/me                       → current user          ┘
//	POST   /auth/register|login|logout, GET /auth/github/*
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	recorder := telemetry.NewSlogRecorder(s.logger)

	tokens, err := auth.NewTokenService(s.cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()

	var github *auth.GitHubProvider
	if s.cfg.GitHubClientID != "" {
		github = auth.NewGitHubProvider(s.cfg.GitHubClientID, s.cfg.GitHubClientSecret, s.cfg.GitHubCallbackURL)
	} else {
		s.logger.Info("GitHub OAuth not configured, OAuth routes disabled")
	}

	readingService := service.NewReadingService(s.db, s.db, s.db, s.logger, recorder)
	shareService := service.NewShareService(s.db, readingService, s.cfg.BaseURL, s.logger, recorder)
	exportService := service.NewExportService(s.db)
	typeService := service.NewReadingTypeService(s.db, s.logger)
	authService := service.NewAuthService(s.db, tokens, passwords, s.logger)

	fortuneClient := fortune.NewClient(s.cfg.OpenAIKey)
	if s.cfg.OpenAIBaseURL != "" {
		fortuneClient = fortune.NewClientWithBaseURL(s.cfg.OpenAIKey, s.cfg.OpenAIBaseURL)
	}
	fortuneHandler := handler.NewFortuneHandler(
		&fortuneStreamer{client: fortuneClient},
		s.logger,
		recorder,
	)
	readingHandler := handler.NewReadingHandler(readingService, shareService, exportService, s.logger)
	shareHandler := handler.NewShareHandler(shareService, s.logger)
	typeHandler := handler.NewReadingTypeHandler(typeService, s.logger)
	authHandler := handler.NewAuthHandler(authService, github, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		// Public surface. The relay endpoint is deliberately open: readings
		// stream before the user decides whether to sign in and save.
		r.Post("/chatgpt", fortuneHandler.Generate)
		r.Get("/reading-types", typeHandler.List)
		r.Get("/share/{token}", shareHandler.Resolve)

		// Authenticated surface.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Route("/readings", readingHandler.Routes)
			r.Get("/me", authHandler.HandleMe)
		})
	})

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
		r.Get("/github/login", authHandler.HandleGitHubLogin)
		r.Get("/github/callback", authHandler.HandleGitHubCallback)
	})

	return nil
}

// Router exposes the assembled handler for tests that drive the server
// through httptest instead of a real listener.
func (s *Server) Router() http.Handler {
	return s.router
}

// Close releases the server's resources. Tests that drive the router
// directly use it in place of Start's cleanup.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, give in-flight requests 30
// seconds, close the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", s.cfg.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: a streamed reading writes for as long as the
		// model talks, and a fixed deadline would cut long readings off.
		IdleTimeout: 60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.cfg.Port)),
			slog.String("database", s.cfg.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
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
