package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/flexway/flextea/internal/api/middleware"
	"github.com/flexway/flextea/internal/handlers"
)

// NewRouter creates and configures the HTTP router. rateLimiter may be nil
// when Redis is not configured; everything else is required.
func NewRouter(logger zerolog.Logger, h *handlers.Handler, rdb *redis.Client, rlCfg middleware.RateLimiterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(64 * 1024)) // Telegram updates are small
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting for the public ops endpoints; the webhook is exempt
	if rdb != nil {
		limiter := middleware.NewRateLimiter(rdb, logger, rlCfg)
		r.Use(limiter.Middleware)
	}

	// CORS for the read-only ops endpoints (dashboards, status pages)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public ops endpoints
	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)

	// Telegram delivers updates here; the secret path segment is the gate
	r.Post("/webhook/{secret}", h.Webhook)

	return r
}
