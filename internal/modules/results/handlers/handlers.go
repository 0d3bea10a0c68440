// Package handlers provides HTTP handlers for sweep results.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/factorlab/internal/modules/results"
)

// Handler handles result HTTP requests
type Handler struct {
	repo *results.Repository
	log  zerolog.Logger
}

// NewHandler creates a new results handler
func NewHandler(repo *results.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "results").Logger(),
	}
}

// HandleListRuns handles GET /api/runs
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.repo.ListRuns()
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to list runs: "+err.Error())
		return
	}
	h.writeJSON(w, map[string]interface{}{"runs": runs})
}

// HandleGetRun handles GET /api/runs/{id}
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	detail, err := h.repo.GetRun(id)
	if err != nil {
		h.writeError(w, http.StatusNotFound, "Run not found: "+id)
		return
	}
	h.writeJSON(w, detail)
}

// HandleGetRunTable handles GET /api/runs/{id}/table.csv
func (h *Handler) HandleGetRunTable(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	detail, err := h.repo.GetRun(id)
	if err != nil {
		h.writeError(w, http.StatusNotFound, "Run not found: "+id)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "sharpe_table_"+id+".csv"))
	if err := results.WriteSharpeTableCSV(w, detail.Entries); err != nil {
		h.log.Error().Err(err).Str("run_id", id).Msg("Failed to stream CSV table")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
