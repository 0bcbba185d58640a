package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/pixelfleet/signage-notify/internal/api/handler"
	"github.com/pixelfleet/signage-notify/internal/config"
)

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(h *handler.Handler, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TimingMiddleware)
	r.Use(middleware.Compress(5)) // gzip

	// CORS — the configuration surface is browser-facing; devices don't care.
	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Content-Type", "If-None-Match", "Cache-Control"},
		ExposedHeaders:   []string{"X-Process-Time", "X-Cache", "ETag"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// --- Routes ---

	// Root
	r.Get("/", h.Root)

	// Health checks
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/db", h.HealthCheckDB)
	})

	// Swagger UI
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/doc.json"),
	))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Mutation surface: rate-limited. Device heartbeat and push
		// channels are exempt — a fleet behind one NAT egress must not be
		// throttled into missing deliveries.
		r.Group(func(r chi.Router) {
			if cfg.RateLimitEnabled {
				r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
			}
			r.Post("/changes", h.RecordChange)
			r.Put("/orgs/{orgID}/polling-config", h.SetPollingConfig)
			r.Post("/orgs/polling-config/backfill", h.BackfillPollingConfigs)
		})

		// Device surface
		r.Get("/screens/{screenID}/notifications/poll", h.Poll)
		r.Get("/screens/{screenID}/events", h.Stream)

		// Configuration reads
		r.Get("/orgs/{orgID}/polling-config", h.GetPollingConfig)
	})

	return r
}
