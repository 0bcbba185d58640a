// Package handler provides HTTP handlers for the notification API:
// change intake, device heartbeat polls, the SSE push channel, and the
// polling-configuration surface.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/pixelfleet/signage-notify/internal/api/respond"
	"github.com/pixelfleet/signage-notify/internal/cache"
	"github.com/pixelfleet/signage-notify/internal/config"
	"github.com/pixelfleet/signage-notify/internal/notify"
	"github.com/pixelfleet/signage-notify/internal/pollconfig"
	"github.com/pixelfleet/signage-notify/internal/push"
)

// HealthChecker verifies backing-store connectivity.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	service *notify.Service
	pollcfg pollconfig.Store
	hub     *push.Hub
	cache   *cache.Cache
	cfg     *config.Config
	health  HealthChecker
	logger  *slog.Logger
}

// New creates a Handler with shared dependencies. hub and health may be
// nil (poll-only mode, store-less tests).
func New(service *notify.Service, pollcfg pollconfig.Store, hub *push.Hub, c *cache.Cache, cfg *config.Config, health HealthChecker, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		pollcfg: pollcfg,
		hub:     hub,
		cache:   c,
		cfg:     cfg,
		health:  health,
		logger:  logger,
	}
}

// Root serves API info at /.
// @Summary API root info
// @Description Returns API name, version, and status.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":    "Signage Notification API",
		"version": "1.0.0",
		"status":  "running",
		"docs":    "/docs",
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Description Returns basic health status, push hub stats, and timestamp.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.hub != nil {
		body["push"] = h.hub.Stats()
	}
	respond.WriteJSONObject(w, http.StatusOK, body)
}

// HealthCheckDB verifies database connectivity.
// @Summary Database health check
// @Description Verifies Postgres connectivity.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} respond.ErrorResponse
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if h.health == nil {
		respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"database": "not configured",
		})
		return
	}
	if err := h.health.HealthCheck(r.Context()); err != nil {
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "disconnected",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
