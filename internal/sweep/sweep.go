package sweep

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/factorlab/internal/domain"
	"github.com/aristath/factorlab/internal/features"
	"github.com/aristath/factorlab/internal/panel"
	"github.com/aristath/factorlab/internal/portfolio"
	"github.com/aristath/factorlab/pkg/formulas"
)

// Config is the sweep configuration surface: the grid, the shared RFF seed,
// the reducer variant, the Sharpe convention and the worker pool bound.
type Config struct {
	Grid     Grid
	Seed     int64
	Workers  int
	Reducer  features.Reducer
	Sharpe   SharpeSpec
	Progress ProgressFunc
}

// Runner executes sweeps. It holds no mutable state; each Run is
// independent.
type Runner struct {
	log zerolog.Logger
}

// NewRunner creates a sweep runner.
func NewRunner(log zerolog.Logger) *Runner {
	return &Runner{log: log.With().Str("component", "sweep").Logger()}
}

// Run evaluates the full grid over the chronological daily slices and
// returns the result table in grid order. Configuration errors abort before
// any computation; per-day failures inside a grid point are recorded as
// skipped days; a broken row alignment is data corruption and aborts the
// sweep.
//
// Given identical slices, seed and grid, the result table is bit-for-bit
// reproducible: RFF configurations are drawn once per n_factors value before
// fan-out, workers write disjoint results, and the collector orders entries
// by grid index.
func (r *Runner) Run(ctx context.Context, slices []panel.DailySlice, cfg Config) (*Result, error) {
	if err := cfg.Grid.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Sharpe.Validate(); err != nil {
		return nil, err
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	reducer := cfg.Reducer
	if reducer == nil {
		reducer = features.IdentityReducer{}
	}

	for i := range slices {
		if err := slices[i].Validate(); err != nil {
			return nil, err
		}
	}

	// Chronological order is part of the contract regardless of how the
	// slices were produced.
	ordered := make([]panel.DailySlice, len(slices))
	copy(ordered, slices)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Day.Before(ordered[j].Day) })

	inputDim := 0
	for i := range ordered {
		if ordered[i].NAssets() > 0 {
			_, inputDim = ordered[i].Factors.Dims()
			break
		}
	}

	// One RFF configuration per n_factors value, shared across all lambda
	// values and all days of the sweep.
	rffByN := make(map[int]*features.RFFConfig, len(cfg.Grid.NFactors))
	if inputDim > 0 {
		for _, n := range cfg.Grid.NFactors {
			if _, ok := rffByN[n]; ok {
				continue
			}
			rff, err := features.NewRFFConfig(inputDim, n, cfg.Seed)
			if err != nil {
				return nil, err
			}
			rffByN[n] = rff
		}
	}

	points := cfg.Grid.Points()
	entries := make([]Entry, len(points))
	done := make(chan Point, len(points))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	for _, pt := range points {
		pt := pt
		g.Go(func() error {
			entry, err := r.runPoint(gctx, ordered, rffByN[pt.NFactors], reducer, cfg.Sharpe, pt)
			if err != nil {
				return err
			}
			entries[pt.Index] = *entry
			done <- pt
			return nil
		})
	}

	// Single collector: merges completion events and reports progress.
	// done is buffered so workers never block on it; it is closed once every
	// worker has returned.
	collectDone := make(chan struct{})
	go func() {
		defer close(collectDone)
		completed := 0
		for pt := range done {
			completed++
			if cfg.Progress != nil {
				cfg.Progress(Progress{
					Completed: completed,
					Total:     len(points),
					NFactors:  pt.NFactors,
					Lambda:    pt.Lambda,
				})
			}
		}
	}()

	err := g.Wait()
	close(done)
	<-collectDone
	if err != nil {
		return nil, err
	}

	return &Result{
		Seed:       cfg.Seed,
		Convention: cfg.Sharpe.Convention,
		Reducer:    reducer.Name(),
		Entries:    entries,
	}, nil
}

// runPoint evaluates one grid point across all days. Weights are fit on
// day-t information (that day's feature matrix and same-day returns) and
// evaluated out-of-sample on day-t's forward return; this temporal
// separation must never be violated.
func (r *Runner) runPoint(
	ctx context.Context,
	slices []panel.DailySlice,
	rff *features.RFFConfig,
	reducer features.Reducer,
	sharpe SharpeSpec,
	pt Point,
) (*Entry, error) {
	entry := &Entry{NFactors: pt.NFactors, Lambda: pt.Lambda}

	for i := range slices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		slice := &slices[i]

		// A day with zero assets is skipped and excluded from both the day
		// count and the aggregate statistics. Days with fewer assets than
		// n_factors proceed.
		if slice.NAssets() == 0 || rff == nil {
			entry.DaysSkipped++
			continue
		}

		dayReturn, err := r.evaluateDay(slice, rff, reducer, pt.Lambda)
		if err != nil {
			var alignErr *domain.AlignmentError
			if errors.As(err, &alignErr) {
				return nil, err
			}
			r.log.Debug().
				Err(err).
				Str("day", domain.DayKey(slice.Day)).
				Int("n_factors", pt.NFactors).
				Float64("lambda", pt.Lambda).
				Msg("Day skipped")
			entry.DaysSkipped++
			continue
		}

		entry.DailyReturns = append(entry.DailyReturns, dayReturn)
		entry.DaysUsed++
	}

	if entry.DaysUsed == 0 {
		entry.Undefined = true
		entry.MeanSharpe = math.NaN()
		entry.StdSharpe = math.NaN()
		entry.MeanReturn = math.NaN()
		entry.StdReturn = math.NaN()
		return entry, nil
	}

	entry.MeanReturn = formulas.Mean(entry.DailyReturns)
	entry.StdReturn = formulas.StdDev(entry.DailyReturns)
	entry.MeanSharpe, entry.StdSharpe = sharpe.Aggregate(entry.DailyReturns)
	return entry, nil
}

// evaluateDay runs the per-day pipeline: RFF expansion, optional reduction,
// ridge solve on same-day returns, then realized next-period return.
func (r *Runner) evaluateDay(
	slice *panel.DailySlice,
	rff *features.RFFConfig,
	reducer features.Reducer,
	lambda float64,
) (float64, error) {
	feats, err := rff.Transform(slice.Factors)
	if err != nil {
		return 0, err
	}

	reduced, err := reducer.Reduce(feats, slice.Returns)
	if err != nil {
		return 0, err
	}

	sol, err := portfolio.Solve(reduced, slice.Returns, lambda)
	if err != nil {
		return 0, err
	}

	return portfolio.RealizedReturn(sol, slice.NextReturns)
}
