package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mediscan-iq/mediscan-iq/internal/http/handlers"
	httpmiddleware "github.com/mediscan-iq/mediscan-iq/internal/http/middleware"
	"github.com/mediscan-iq/mediscan-iq/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	ReportsHandler     *handlers.ReportsHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// RateLimitRPS caps per-IP report submissions; zero disables limiting.
	RateLimitRPS   float64
	RateLimitBurst int
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", cfg.ReportsHandler.HealthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/v1/reports", func(r chi.Router) {
		if cfg.RateLimitRPS > 0 {
			r.Use(httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
		}
		r.Post("/ingest", cfg.ReportsHandler.Ingest)
		r.Post("/analyze", cfg.ReportsHandler.Analyze)
	})

	return r
}
