package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all result routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/runs", func(r chi.Router) {
		r.Get("/", h.HandleListRuns)
		r.Get("/{id}", h.HandleGetRun)
		r.Get("/{id}/table.csv", h.HandleGetRunTable)
	})
}
