package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xavierca1/ligue-crm/internal/infra/http/handlers"
	"github.com/xavierca1/ligue-crm/internal/infra/http/middleware"
)

func newRouter(
	leadHandler *handlers.LeadHandler,
	healthHandler *handlers.HealthHandler,
	limiter *middleware.RateLimiter,
	allowedOrigins []string,
) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", handlers.ActorHeader},
		MaxAge:         300,
	}))

	r.Get("/health", healthHandler.Handle)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/leads/{id}", func(r chi.Router) {
		r.Use(chimw.Timeout(30 * time.Second))
		r.With(limiter.Limit).Post("/convert", leadHandler.Convert)
		r.Get("/conversion", leadHandler.GetConversion)
	})

	return r
}
