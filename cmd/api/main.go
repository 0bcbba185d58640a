// Command api is the signage notification delivery API server.
//
// Usage:
//
//	signage-notify-api
//	API_PORT=8080 signage-notify-api

// @title Signage Notification API
// @version 1.0.0
// @description Screen notification delivery subsystem for unattended display fleets: change intake with per-screen fan-out, deduplicated pending notifications, instant SSE push with heartbeat-poll fallback, and per-organization polling configuration.
// @host localhost:8000
// @BasePath /api/v1
// @schemes http https
// @license.name MIT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/pixelfleet/signage-notify/internal/api"
	"github.com/pixelfleet/signage-notify/internal/api/handler"
	"github.com/pixelfleet/signage-notify/internal/cache"
	"github.com/pixelfleet/signage-notify/internal/config"
	"github.com/pixelfleet/signage-notify/internal/db"
	"github.com/pixelfleet/signage-notify/internal/listener"
	"github.com/pixelfleet/signage-notify/internal/maintenance"
	"github.com/pixelfleet/signage-notify/internal/notify"
	"github.com/pixelfleet/signage-notify/internal/pollconfig"
	"github.com/pixelfleet/signage-notify/internal/push"

	_ "github.com/pixelfleet/signage-notify/docs" // swagger docs
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Connect to database
	logger.Info("Connecting to database...")
	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	// Stores
	store := notify.NewPostgresStore(pool.Pool)
	cfgStore := pollconfig.NewPostgresStore(pool.Pool)
	appCache := cache.New(cfg.CacheEnabled)

	// Push hub + dispatcher. Push is an accelerator; with PUSH_ENABLED
	// off the subsystem degrades to poll-only delivery.
	var (
		hub         *push.Hub
		pushChannel notify.PushChannel
	)
	if cfg.PushEnabled {
		hub = push.NewHub(logger)
		pushChannel = hub
	}
	dispatcher := notify.NewDispatcher(store, pushChannel, logger)
	service := notify.NewService(store, dispatcher, nil, logger)

	if cfg.PushEnabled {
		go dispatcher.StartRetryWorker(ctx, cfgStore)

		// Bridge committed change events to push across API instances.
		if cfg.ListenerEnabled {
			go listener.Start(ctx, cfg.DatabaseURL, dispatcher, logger)
		}
	}

	// Retention cleanup + catch-up sweep
	go maintenance.Start(ctx, pool.Pool, maintenance.DefaultConfig(cfg.RetentionDays), logger)

	// Create router
	h := handler.New(service, cfgStore, hub, appCache, cfg, pool, logger)
	router := api.NewRouter(h, cfg)

	// Create HTTP server. WriteTimeout is disabled because SSE push
	// channels are long-lived; slow handlers are bounded by their own
	// contexts.
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting Signage Notification API",
			"addr", addr,
			"environment", cfg.Environment,
			"push_enabled", cfg.PushEnabled,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
