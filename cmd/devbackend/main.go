// Package main runs the development backend: the lesson backend's RPC
// contract served over HTTP from a SQLite file.
//
// Point the web server at it with --backend.url=http://localhost:9090 and
// the same --backend.secret on both sides.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/skillswap/internal/auth"
	"github.com/sakif/skillswap/internal/backend/rpc"
	"github.com/sakif/skillswap/internal/config"
	"github.com/sakif/skillswap/internal/devbackend"
	"github.com/sakif/skillswap/internal/middleware"
	"github.com/sakif/skillswap/internal/repository/sqlite"
)

// callerTokenTTL only matters for tokens this process would issue; it
// validates tokens minted by the web server.
const callerTokenTTL = 5 * time.Minute

func main() {
	cfg, err := config.LoadDevBackend(os.Args[1:])
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.ParseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("devbackend stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.DevBackendConfig, logger *slog.Logger) error {
	// === DATABASE ===
	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}
	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("database ready", slog.String("path", cfg.DBPath))

	// === SERVICE ===
	tokens, err := auth.NewTokenService(cfg.Backend.Secret, auth.CallerIssuer, callerTokenTTL)
	if err != nil {
		return fmt.Errorf("caller tokens: %w", err)
	}
	svc := devbackend.New(devbackend.Stores{Lessons: db, Profiles: db, Roles: db}, cfg.Admins, logger)

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(logger))
	router.Mount("/", rpc.NewServer(svc, tokens, logger).Routes())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	// === GRACEFUL SHUTDOWN ===
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("devbackend starting",
			slog.Int("port", cfg.Port),
			slog.Int("admins", len(cfg.Admins)),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		logger.Info("devbackend stopped gracefully")
	}
	return nil
}
