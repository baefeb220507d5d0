package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/odysseia-chat/worldbook/internal/api/handlers"
	"github.com/odysseia-chat/worldbook/internal/api/middleware"
)

type RouterConfig struct {
	ReviewHandler *handlers.ReviewHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 1 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", cfg.ReviewHandler.Health)

	r.Route("/pending", func(r chi.Router) {
		r.Get("/", cfg.ReviewHandler.ListPending)
		r.Get("/{id}", cfg.ReviewHandler.GetPending)
	})

	r.Post("/reindex", cfg.ReviewHandler.Reindex)

	return r
}
