package api

import (
	"log/slog"
	"net/http"

	"chat-relay/gateway"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the HTTP surface: credential endpoints, conversation
// lookups, static uploads, operational endpoints, and the websocket
// upgrade into the gateway.
func NewRouter(log *slog.Logger, h *Handler, gw *gateway.Gateway, uploadsDir, clientOrigin string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(Metrics)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(RequestLogger(log))
	r.Use(chimw.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{clientOrigin},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)

	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
	r.Get("/profile", h.Profile)

	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Get("/people", h.People)
		r.Get("/messages/{userId}", h.Messages)
	})

	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploadsDir))))

	r.Get("/ws", gw.HandleUpgrade)

	return r
}
