/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend
  5. Bearer:     Session-token check on everything except login

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Auth routes (login is the only unauthenticated endpoint)
		r.Post("/auth/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.requireSession)

			r.Post("/auth/logout", h.Logout)

			// Flock routes
			r.Route("/flocks", func(r chi.Router) {
				r.Get("/", h.ListFlocks)
				r.Post("/", h.CreateFlock)
				r.Get("/{id}", h.GetFlock)
				r.Delete("/{id}", h.DeleteFlock)
				r.Get("/{id}/barns", h.ListFlockBarns)
				r.Get("/{id}/provisions", h.ListProvisions)
				r.Delete("/{id}/provisions", h.ClearProvisions)
			})

			// Barn routes
			r.Route("/barns", func(r chi.Router) {
				r.Delete("/{id}", h.DeleteBarn)
				r.Get("/{id}/grid", h.GetGrid)
				r.Get("/{id}/diseases", h.ListBarnDiseases)
				r.Post("/{id}/diseases", h.LinkBarnDisease)
			})

			// Week routes
			r.Route("/weeks", func(r chi.Router) {
				r.Put("/{id}/weight", h.SetWeekWeight)
				r.Put("/{id}/days/{age}", h.UpsertDayField)
			})

			// Provision routes
			r.Route("/provisions", func(r chi.Router) {
				r.Post("/", h.RecordProvision)
				r.Put("/{id}", h.UpdateProvision)
				r.Delete("/{id}", h.DeleteProvision)
			})

			// Catalog routes
			r.Route("/treatments", func(r chi.Router) {
				r.Get("/", h.ListTreatments)
				r.Post("/", h.CreateTreatment)
			})
			r.Route("/diseases", func(r chi.Router) {
				r.Get("/", h.ListDiseases)
				r.Post("/", h.CreateDisease)
			})
		})
	})

	return r
}

// requireSession rejects requests without a valid bearer token. When no
// authenticator is configured the check is disabled (local development).
func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Auth == nil {
			next.ServeHTTP(w, r)
			return
		}
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
			return
		}
		if _, ok := h.Auth.Validate(token); !ok {
			writeError(w, http.StatusUnauthorized, "Invalid or expired session", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
