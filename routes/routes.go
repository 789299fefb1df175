package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/llm-dev-ops/governance-gateway/app"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health and observability endpoints
	r.Get("/healthz", deps.HealthHandler.HandleHealth)
	r.Get("/readyz", deps.HealthHandler.HandleReady)
	if deps.Config.Observability.MetricsEnabled {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	// Governed completion endpoint
	r.Route("/v1/governance", func(r chi.Router) {
		r.Use(deps.AuthMiddleware.RequireIdentity)
		r.Post("/completions", deps.GovernanceHandler.HandleCompletion)
	})

	// Policy management
	r.Route("/api/v1/policies", func(r chi.Router) {
		r.Use(deps.AuthMiddleware.RequireIdentity)
		r.Post("/", deps.PolicyHandler.HandleCreate)
		r.Delete("/{id}", deps.PolicyHandler.HandleDeactivate)
	})

	return r
}
