package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"calculator-api/internal/handlers"
	"calculator-api/internal/observability"
	"calculator-api/internal/ratelimit"
	"calculator-api/internal/service"
)

// Deps are the collaborators the router mounts.
type Deps struct {
	Service        *service.Service
	Version        string
	AllowedOrigins []string
	// Limiter throttles calculation routes; nil disables rate limiting.
	Limiter *ratelimit.MapLimiter
	// Now stamps health responses; nil means time.Now.
	Now func() time.Time
}

// NewRouter builds the HTTP API. Every route is served both at the root and
// under /api.
func NewRouter(d Deps) http.Handler {

	r := chi.NewRouter()

	r.Use(observability.RecoverMiddleware)
	r.Use(middleware.RealIP)
	r.Use(observability.RequestIDMiddleware)
	r.Use(observability.TracingMiddleware)
	r.Use(observability.LoggingMiddleware)
	r.Use(observability.MetricsMiddleware)
	r.Use(corsMiddleware(d.AllowedOrigins))

	r.NotFound(handlers.NotFound)
	r.MethodNotAllowed(handlers.MethodNotAllowed)

	calc := handlers.NewCalculator(d.Service)
	health := handlers.Health(d.Version, d.Now)

	routes := func(r chi.Router) {
		r.Get("/health", health)

		r.Group(func(r chi.Router) {
			r.Use(ratelimit.Middleware(d.Limiter))
			r.Post("/calculate", calc.Calculate)
			r.Post("/calculate/chain", calc.Chain)
			r.Post("/calculate/{operation}", calc.CalculateOperation)
		})
	}

	routes(r)
	r.Route("/api", routes)

	r.Handle("/metrics", observability.PrometheusHandler())

	return r
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", observability.RequestIDHeader},
		ExposedHeaders: []string{observability.RequestIDHeader, "Retry-After"},
		MaxAge:         300,
	}).Handler
}
