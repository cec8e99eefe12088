// Agent Relay - real-time monitor for job-application autofill runs
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/applyflow/agent-relay/internal/api"
	"github.com/applyflow/agent-relay/internal/config"
	"github.com/applyflow/agent-relay/internal/middleware"
	"github.com/applyflow/agent-relay/internal/relay"
	"github.com/applyflow/agent-relay/internal/store"
	"github.com/applyflow/agent-relay/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting relay", "port", cfg.Port, "max_actions", cfg.Driver.MaxActions)

	// Initialize the run archive.
	archive, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize run archive", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := archive.Close(); closeErr != nil {
			slog.Error("Failed to close run archive", "error", closeErr)
		}
	}()

	if err := archive.Ping(context.Background()); err != nil {
		slog.Error("Run archive health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Run archive connected", "path", cfg.DBPath)

	// Initialize the relay core.
	sessions := relay.NewStore()
	hub := relay.NewHub()
	svc := relay.NewService(sessions, hub, cfg.Driver, archive)

	// Initialize handlers.
	wsHandler := relay.NewWSHandler(svc, hub, cfg.AllowedOrigins)
	ingressHandler := api.NewHandler(hub, archive)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// HTTP ingress routes.
	ingressHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/monitor", wsHandler.ServeHTTP)

	// Serve embedded dashboard (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Create server.
	// Note: the WebSocket endpoint requires no write timeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server.
	go func() {
		slog.Info("Relay listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Relay stopped successfully")
}
