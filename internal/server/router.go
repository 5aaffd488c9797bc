package server

import (
	"net/http"

	"github.com/clinsim-ai/clinsim/internal/api"
	"github.com/clinsim-ai/clinsim/internal/api/handlers"
	"github.com/clinsim-ai/clinsim/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	DocumentHandler  *handlers.DocumentHandler
	SimulatorHandler *handlers.SimulatorHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.UserAuth)

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", cfg.DocumentHandler.Create)
			r.Get("/", cfg.DocumentHandler.List)
			r.Get("/{id}", cfg.DocumentHandler.GetStatus)
			r.Get("/{id}/download", cfg.DocumentHandler.Download)
			r.Post("/{id}/deactivate", cfg.DocumentHandler.Deactivate)
			r.Delete("/{id}", cfg.DocumentHandler.Delete)
		})

		r.Route("/simulator", func(r chi.Router) {
			r.Post("/documents/{documentID}/questions", cfg.SimulatorHandler.NextQuestion)
			r.Post("/questions/{questionID}/answers", cfg.SimulatorHandler.SubmitAnswer)
			r.Get("/progress/{documentID}", cfg.SimulatorHandler.Progress)
		})
	})

	return r
}
