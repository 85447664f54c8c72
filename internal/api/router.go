package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter wires every handler onto a chi router with the standard
// middleware stack. A nil allowedOrigins falls back to local development hosts.
func NewRouter(hooks *HookHandler, health *HealthChecker, segments *SegmentHandler, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", health.HandleHealth)
	r.Get("/health/live", health.HandleLiveness)
	r.Get("/health/ready", health.HandleReadiness)

	r.Route("/hooks", func(r chi.Router) {
		r.Post("/profile-changed", hooks.HandleProfileChanged)
		r.Post("/event-tracked", hooks.HandleEventTracked)
	})

	r.Get("/profiles/{profileID}/memberships", segments.HandleMembershipHistory)
	r.Route("/segments", func(r chi.Router) {
		r.Post("/validate", segments.HandleValidate)
		r.Get("/operators", segments.HandleOperators)
	})

	return r
}
