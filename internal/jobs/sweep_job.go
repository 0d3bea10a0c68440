// Package jobs holds the scheduled background jobs of the research service.
package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/factorlab/internal/modules/sweeps"
)

// sweepTimeout bounds a single scheduled sweep run.
const sweepTimeout = 6 * time.Hour

// SweepJob re-runs the full Sharpe sweep over the current panel.
type SweepJob struct {
	service *sweeps.Service
	log     zerolog.Logger
}

// NewSweepJob creates a scheduled sweep job.
func NewSweepJob(service *sweeps.Service, log zerolog.Logger) *SweepJob {
	return &SweepJob{
		service: service,
		log:     log.With().Str("job", "sweep").Logger(),
	}
}

// Name implements scheduler.Job.
func (j *SweepJob) Name() string { return "sweep" }

// Run implements scheduler.Job.
func (j *SweepJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	runID, err := j.service.Run(ctx)
	if err != nil {
		return err
	}
	j.log.Info().Str("run_id", runID).Msg("Scheduled sweep finished")
	return nil
}
