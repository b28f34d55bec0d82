/*
server.go - HTTP router and middleware configuration

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Outer panic safety net (handlers carry their own guard)
  4. Instrument: Prometheus RPS/latency/in-flight
  5. CORS

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/vacation-engine/obs"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(obs.Instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Get("/healthz", h.Healthz)
	r.Method("GET", "/metrics", obs.Handler())

	r.Post("/slack/events", h.guard("confirm_event_subscription", h.Events))

	r.Route("/api", func(r chi.Router) {
		r.Route("/workspaces", func(r chi.Router) {
			r.Post("/", h.guard("register_workspace", h.RegisterWorkspace))
			r.Put("/{id}/settings", h.guard("configure_workspace", h.ConfigureWorkspace))
			r.Get("/{id}/users/{userID}/vacations", h.guard("user_vacations", h.UserVacations))
		})
		r.Post("/vacations", h.guard("book_vacation", h.BookVacation))
		r.Post("/decisions", h.guard("process_decision", h.Decide))
	})

	return r
}
