// Package sweeps wires the sweep core to its collaborators: the panel
// store, the results repository, progress streaming and backup.
package sweeps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/factorlab/internal/config"
	"github.com/aristath/factorlab/internal/features"
	"github.com/aristath/factorlab/internal/modules/results"
	"github.com/aristath/factorlab/internal/panel"
	"github.com/aristath/factorlab/internal/sweep"
)

// ProgressSink receives live sweep progress (the websocket hub implements
// this).
type ProgressSink interface {
	Publish(sweep.Progress)
}

// Backup uploads the results database after a completed run.
type Backup interface {
	BackupResults(ctx context.Context) error
}

// Service runs sweeps end to end. Only one sweep runs at a time; a second
// trigger while one is running is rejected.
type Service struct {
	cfg       config.SweepConfig
	store     *panel.Store
	repo      *results.Repository
	runner    *sweep.Runner
	progress  ProgressSink
	backup    Backup
	exportDir string
	log       zerolog.Logger

	mu      sync.Mutex
	running bool
}

// NewService creates a sweep service. progress and backup may be nil.
func NewService(
	cfg config.SweepConfig,
	store *panel.Store,
	repo *results.Repository,
	progress ProgressSink,
	backup Backup,
	exportDir string,
	log zerolog.Logger,
) *Service {
	return &Service{
		cfg:       cfg,
		store:     store,
		repo:      repo,
		runner:    sweep.NewRunner(log),
		progress:  progress,
		backup:    backup,
		exportDir: exportDir,
		log:       log.With().Str("service", "sweeps").Logger(),
	}
}

// Running reports whether a sweep is currently executing.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Run executes a full sweep over the stored panel and persists the result
// table. Returns the new run ID.
func (s *Service) Run(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return "", fmt.Errorf("a sweep is already running")
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	slices, err := s.store.LoadSlices()
	if err != nil {
		return "", fmt.Errorf("failed to load panel slices: %w", err)
	}
	if len(slices) == 0 {
		return "", fmt.Errorf("panel store is empty, nothing to sweep")
	}

	runID := uuid.New().String()
	started := time.Now().UTC()
	s.log.Info().
		Str("run_id", runID).
		Int("days", len(slices)).
		Ints("n_factors", s.cfg.NFactors).
		Floats64("lambdas", s.cfg.Lambdas).
		Msg("Sweep started")

	result, err := s.runner.Run(ctx, slices, s.buildConfig())
	if err != nil {
		return "", fmt.Errorf("sweep failed: %w", err)
	}

	if err := s.repo.SaveRun(runID, started, result); err != nil {
		return "", err
	}

	if err := s.exportTable(runID, result); err != nil {
		s.log.Warn().Err(err).Str("run_id", runID).Msg("Failed to export Sharpe table")
	}

	if s.backup != nil {
		if err := s.backup.BackupResults(ctx); err != nil {
			s.log.Warn().Err(err).Msg("Results backup failed")
		}
	}

	s.log.Info().
		Str("run_id", runID).
		Dur("elapsed", time.Since(started)).
		Int("entries", len(result.Entries)).
		Msg("Sweep completed")
	return runID, nil
}

// RunSlices executes a sweep over already-materialized slices, bypassing the
// panel store. Used by the batch CLI.
func (s *Service) RunSlices(ctx context.Context, slices []panel.DailySlice) (string, *sweep.Result, error) {
	runID := uuid.New().String()
	started := time.Now().UTC()

	result, err := s.runner.Run(ctx, slices, s.buildConfig())
	if err != nil {
		return "", nil, fmt.Errorf("sweep failed: %w", err)
	}
	if err := s.repo.SaveRun(runID, started, result); err != nil {
		return "", nil, err
	}
	return runID, result, nil
}

func (s *Service) buildConfig() sweep.Config {
	var reducer features.Reducer = features.IdentityReducer{}
	if s.cfg.UsePLS {
		reducer = features.PLSReducer{Components: s.cfg.PLSComponents}
	}

	cfg := sweep.Config{
		Grid: sweep.Grid{
			NFactors: s.cfg.NFactors,
			Lambdas:  s.cfg.Lambdas,
		},
		Seed:    s.cfg.Seed,
		Workers: s.cfg.Workers,
		Reducer: reducer,
		Sharpe: sweep.SharpeSpec{
			Convention:     sweep.Convention(s.cfg.Convention),
			TrailingWindow: s.cfg.TrailingWindow,
		},
	}
	if s.progress != nil {
		cfg.Progress = s.progress.Publish
	}
	return cfg
}

func (s *Service) exportTable(runID string, result *sweep.Result) error {
	if s.exportDir == "" {
		return nil
	}
	if err := os.MkdirAll(s.exportDir, 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	path := filepath.Join(s.exportDir, "sharpe_table_"+runID+".csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()
	if err := results.WriteSharpeTableCSV(f, result.Entries); err != nil {
		return err
	}
	s.log.Info().Str("path", path).Msg("Sharpe table exported")
	return nil
}
