// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the wiring layer: it decides which URL patterns map to
// which handlers, which middleware runs where, and how the server stops.
// main.go stays minimal; tests build a Server without running main.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → TokenServices (session, caller)
//	              → rpc.Client (backend) → service.Queries → PageHandler
//	                                     ↘ service.AuthService → AuthHandler
//
// This is the "composition root": every dependency is built here, in New.
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
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sakif/skillswap/internal/auth"
	"github.com/sakif/skillswap/internal/backend/rpc"
	"github.com/sakif/skillswap/internal/config"
	"github.com/sakif/skillswap/internal/handler"
	"github.com/sakif/skillswap/internal/media"
	"github.com/sakif/skillswap/internal/middleware"
	"github.com/sakif/skillswap/internal/query"
	"github.com/sakif/skillswap/internal/service"
	"github.com/sakif/skillswap/internal/validate"
)

// callerTokenTTL bounds how long a caller token sent to the backend is
// valid. One is minted per call, so it only needs to outlive the call.
const callerTokenTTL = 5 * time.Minute

// Server represents the HTTP server and all its dependencies.
type Server struct {
	router  *chi.Mux
	handler http.Handler
	config  *config.Config
	logger  *slog.Logger
}

// New builds every dependency from cfg and registers the routes.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	sessions, err := auth.NewTokenService(cfg.Session.Secret, auth.SessionIssuer, cfg.Session.TTL)
	if err != nil {
		return nil, fmt.Errorf("session tokens: %w", err)
	}
	callers, err := auth.NewTokenService(cfg.Backend.Secret, auth.CallerIssuer, callerTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("caller tokens: %w", err)
	}

	render, err := handler.NewRenderer(logger)
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	var github *auth.GitHubProvider
	if cfg.GitHubEnabled() {
		github = auth.NewGitHubProvider(cfg.Auth.GitHub.ClientID, cfg.Auth.GitHub.ClientSecret, cfg.Auth.GitHub.CallbackURL)
	}

	client := rpc.NewClient(cfg.Backend.URL, callers, cfg.Backend.Timeout, logger)
	caches := query.NewRegistry(cfg.Cache.StaleTime, cfg.Cache.IdleTTL)
	queries := service.NewQueries(client, caches, validate.New(), logger)
	authService := service.NewAuthService(sessions, caches, logger)
	registry := media.NewRegistry(cfg.Media.TTL)

	authHandler := handler.NewAuthHandler(github, authService, queries, render, cfg.Auth.DevLogin, cfg.IsProduction(), logger)
	pages := handler.NewPageHandler(queries, registry, render, authHandler.Options(), logger)

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.PerMinute > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.PerMinute)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
	}
	s.setupRoutes(sessions, client, authHandler, pages, registry, limiter)
	s.handler = otelhttp.NewHandler(s.router, cfg.OTel.ServiceName)

	if !cfg.GitHubEnabled() && !cfg.Auth.DevLogin {
		logger.Warn("no sign-in method configured: set auth.github.client_id or auth.dev_login")
	}
	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz                 → liveness (JSON)
// GET    /auth/login              → sign-in page
// GET    /auth/github/login       → GitHub redirect
// GET    /auth/github/callback    → GitHub callback
// POST   /auth/dev                → development sign-in          [rate limited]
// POST   /auth/logout             → sign out
// GET    /api/me                  → caller as JSON               [auth]
// GET    /media/{token}           → lesson video bytes           [auth]
// GET    /                        → lesson list                  [shell]
// GET    /lesson/{id}             → lesson detail                [shell]
// POST   /lesson/{id}/complete    → complete a lesson            [shell, rate limited]
// GET    /upload                  → upload form                  [shell]
// POST   /upload                  → create a lesson              [shell, rate limited]
// GET    /profile                 → profile (?edit=1 to edit)    [shell]
// POST   /profile                 → save profile                 [shell, rate limited]
// POST   /profile/setup           → first profile                [shell, rate limited]
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID: assigns a unique ID to each request
//  2. RealIP: extracts the client IP from proxy headers (rate limit key)
//  3. Recoverer: turns panics into 500s
//  4. auth.Session: puts the signed-in identity in the context
//  5. Logger: logs each request, with the identity from step 4
func (s *Server) setupRoutes(
	sessions *auth.TokenService,
	ready handler.Pinger,
	authHandler *handler.AuthHandler,
	pages *handler.PageHandler,
	registry *media.Registry,
	limiter *middleware.RateLimiter,
) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(auth.Session(sessions))
	s.router.Use(middleware.Logger(s.logger))

	limit := middleware.RateLimit(limiter)
	requireAuth := auth.RequireAuth(sessions)

	s.router.Get("/healthz", handler.HandleHealth(ready))

	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/login", authHandler.HandleSignIn)
		r.Get("/github/login", authHandler.HandleGitHubLogin)
		r.Get("/github/callback", authHandler.HandleGitHubCallback)
		r.With(limit).Post("/dev", authHandler.HandleDevLogin)
		r.Post("/logout", authHandler.HandleLogout)
	})

	s.router.With(requireAuth).Get("/api/me", authHandler.HandleMe)
	s.router.With(requireAuth).Handle(media.PathPrefix+"{token}", registry)

	s.router.Group(func(r chi.Router) {
		r.Use(pages.Shell)

		r.Get("/", pages.HandleLessons)
		r.Get("/lesson/{id}", pages.HandleLesson)
		r.With(limit).Post("/lesson/{id}/complete", pages.HandleComplete)
		r.Get("/upload", pages.HandleUploadForm)
		r.With(limit).Post("/upload", pages.HandleUpload)
		r.Get("/profile", pages.HandleProfile)
		r.With(limit).Post("/profile", pages.HandleProfileSave)
		r.With(limit).Post("/profile/setup", pages.HandleSetup)
	})

	s.router.NotFound(pages.HandleNotFound)
}

// Handler returns the fully wrapped HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server and blocks until it stops.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//
// Uploads can be large and backend calls slow, so the write timeout follows
// the backend timeout rather than a fixed 15 seconds.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      s.config.Backend.Timeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("backend", s.config.Backend.URL),
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
