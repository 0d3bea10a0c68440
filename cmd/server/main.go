// Package main is the entry point for the factorlab research service.
// The service owns the panel store and results database, runs hyperparameter
// sweeps on demand or on a schedule, and serves results over HTTP.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/factorlab/internal/config"
	"github.com/aristath/factorlab/internal/database"
	"github.com/aristath/factorlab/internal/jobs"
	"github.com/aristath/factorlab/internal/modules/results"
	resultshandlers "github.com/aristath/factorlab/internal/modules/results/handlers"
	"github.com/aristath/factorlab/internal/modules/sweeps"
	"github.com/aristath/factorlab/internal/panel"
	"github.com/aristath/factorlab/internal/reliability"
	"github.com/aristath/factorlab/internal/scheduler"
	"github.com/aristath/factorlab/internal/server"
	"github.com/aristath/factorlab/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Int("port", cfg.Port).
		Msg("Starting factorlab service")

	// Results live in their own database so sweep writes never contend
	// with panel ingestion.
	resultsDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "results.db"),
		Profile: database.ProfileResults,
		Name:    "results",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open results database")
	}
	defer resultsDB.Close()

	store, panelDB, err := panel.OpenStore(filepath.Join(cfg.DataDir, "panel.db"), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open panel store")
	}
	defer panelDB.Close()

	repo, err := results.NewRepository(resultsDB.Conn(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize results repository")
	}

	progressHub := server.NewProgressHub(log)

	var backup sweeps.Backup
	if cfg.BackupEnabled {
		backup = reliability.NewBackupService(
			cfg.BackupS3Bucket,
			cfg.BackupS3Region,
			cfg.AWSAccessKey,
			cfg.AWSSecretKey,
			resultsDB.Path(),
			log,
		)
		log.Info().Str("bucket", cfg.BackupS3Bucket).Msg("S3 backup enabled")
	}

	sweepService := sweeps.NewService(
		cfg.Sweep,
		store,
		repo,
		progressHub,
		backup,
		filepath.Join(cfg.DataDir, "exports"),
		log,
	)

	var sched *scheduler.Scheduler
	if cfg.SweepSchedule != "" {
		sched = scheduler.New(log)
		if err := sched.AddJob(cfg.SweepSchedule, jobs.NewSweepJob(sweepService, log)); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.SweepSchedule).Msg("Invalid sweep schedule")
		}
		sched.Start()
		defer sched.Stop()
	}

	srv := server.New(server.Config{
		Log:             log,
		Port:            cfg.Port,
		DevMode:         cfg.DevMode,
		SweepService:    sweepService,
		ResultsHandlers: resultshandlers.NewHandler(repo, log),
		ProgressHub:     progressHub,
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			log.Fatal().Err(err).Msg("Server failed")
		}
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}

	log.Info().Msg("Shutdown complete")
}
