// Package server provides the HTTP server and routing for the research
// service.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	resultshandlers "github.com/aristath/factorlab/internal/modules/results/handlers"
	"github.com/aristath/factorlab/internal/modules/sweeps"
)

// Config holds server configuration
type Config struct {
	Log             zerolog.Logger
	Port            int
	DevMode         bool
	SweepService    *sweeps.Service
	ResultsHandlers *resultshandlers.Handler
	ProgressHub     *ProgressHub
}

// Server represents the HTTP server
type Server struct {
	router       *chi.Mux
	server       *http.Server
	log          zerolog.Logger
	sweepService *sweeps.Service
	progressHub  *ProgressHub
	system       *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:       chi.NewRouter(),
		log:          cfg.Log.With().Str("component", "server").Logger(),
		sweepService: cfg.SweepService,
		progressHub:  cfg.ProgressHub,
		system:       NewSystemHandlers(cfg.Log),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(120 * time.Second))

	if cfg.DevMode {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))
	}

	s.router.Get("/api/health", s.system.HandleHealth)
	cfg.ResultsHandlers.RegisterRoutes(s.router)
	s.router.Post("/api/sweeps", s.handleTriggerSweep)
	s.router.Get("/api/sweeps/progress", s.handleProgressStream)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streaming endpoints manage their own deadlines
	}

	return s
}

// Start begins listening. Blocks until the server stops.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleTriggerSweep handles POST /api/sweeps: starts a sweep in the
// background and returns immediately. Progress is available on the
// websocket stream; the result lands in the runs listing.
func (s *Server) handleTriggerSweep(w http.ResponseWriter, r *http.Request) {
	if s.sweepService.Running() {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "a sweep is already running"})
		return
	}

	go func() {
		if _, err := s.sweepService.Run(context.Background()); err != nil {
			s.log.Error().Err(err).Msg("Triggered sweep failed")
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "started"})
}
