package api

import (
	"log/slog"
	"net/http"

	"github.com/ecomstream/analytics-pipeline/internal/ingest"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates and configures the collector's HTTP router.
func NewRouter(collector *ingest.Collector, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// CORS for the browser client emitting events
	r.Use(corsMiddleware)

	h := NewEventHandler(collector, logger)

	r.Post("/events", h.Create)
	r.Post("/simulate", h.Simulate)
	r.Get("/health", HealthHandler())

	return r
}

// corsMiddleware adds CORS headers for the storefront client.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
