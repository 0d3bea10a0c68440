// Package main is the batch sweep CLI. It loads a raw panel from CSV,
// preprocesses it, runs the configured hyperparameter sweep, and writes
// the Sharpe table to a CSV file. The run is also persisted to the
// results database so the server can serve it later.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aristath/factorlab/internal/config"
	"github.com/aristath/factorlab/internal/database"
	"github.com/aristath/factorlab/internal/modules/results"
	"github.com/aristath/factorlab/internal/modules/sweeps"
	"github.com/aristath/factorlab/internal/panel"
	"github.com/aristath/factorlab/internal/sweep"
	"github.com/aristath/factorlab/pkg/logger"
)

func main() {
	var (
		input       = flag.String("input", "", "panel CSV path, may contain {year}")
		years       = flag.String("years", "", "comma-separated years when -input contains {year}")
		dayCol      = flag.String("day-col", "trading_day", "trading day column name")
		assetCol    = flag.String("asset-col", "asset_id", "asset identifier column name")
		priceCol    = flag.String("price-col", "close", "price column used to compute returns")
		extras      = flag.String("extra", "", "extra datasets to left-merge on (day, asset), as path=col1+col2, comma-separated")
		factorCols  = flag.String("factor-cols", "", "comma-separated raw factor column names")
		trailingWin = flag.Int("trailing-mean", 0, "add a trailing mean return factor with this window (0 disables)")
		out         = flag.String("out", "", "sharpe table output path (default <data_dir>/exports/<run_id>.csv)")
		ingest      = flag.Bool("ingest", false, "persist the preprocessed panel to the panel store")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true})
	logger.SetGlobalLogger(log)

	if *input == "" {
		log.Fatal().Msg("-input is required")
	}
	if *factorCols == "" {
		log.Fatal().Msg("-factor-cols is required")
	}
	factors := splitCols(*factorCols)

	loader := panel.NewLoader(filepath.Dir(*input), log)
	spec := panel.DataSpec{
		Name:         "panel",
		FileTemplate: filepath.Base(*input),
		FileType:     "csv",
		DayColumn:    *dayCol,
		AssetColumn:  *assetCol,
		Columns:      append([]string{*priceCol}, factors...),
	}

	var frame *panel.Frame
	if strings.Contains(*input, "{year}") {
		yearList, err := parseYears(*years)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid -years")
		}
		frame, err = loader.LoadByYears(spec, yearList)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load panel")
		}
	} else {
		frame, err = loader.LoadCSV(*input, spec)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load panel")
		}
	}
	log.Info().Int("rows", len(frame.Records)).Msg("Panel loaded")

	if *extras != "" {
		frames := []*panel.Frame{frame}
		for _, spec := range splitCols(*extras) {
			path, cols, err := parseExtra(spec)
			if err != nil {
				log.Fatal().Err(err).Msg("Invalid -extra")
			}
			extra, err := loader.LoadCSV(path, panel.DataSpec{
				Name:        filepath.Base(path),
				DayColumn:   *dayCol,
				AssetColumn: *assetCol,
				Columns:     cols,
			})
			if err != nil {
				log.Fatal().Err(err).Str("path", path).Msg("Failed to load extra dataset")
			}
			frames = append(frames, extra)
		}
		frame, err = panel.MergeOnKeys(frames)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to merge datasets")
		}
		log.Info().Int("rows", len(frame.Records)).Msg("Datasets merged")
	}

	panel.AddReturns(frame, *priceCol, "ret", "next_ret")
	panel.ForwardFillByAsset(frame, factors)
	if *trailingWin > 0 {
		panel.AddTrailingMeanReturn(frame, "ret", "past_ret_ave", *trailingWin)
		factors = append(factors, "past_ret_ave")
	}
	panel.ZScoreByDay(frame, factors)
	required := append(append([]string{}, factors...), "ret", "next_ret")
	panel.DropMissing(frame, required)
	log.Info().
		Int("rows", len(frame.Records)).
		Int("factors", len(factors)).
		Msg("Panel preprocessed")

	slices, err := panel.BuildSlices(frame, factors, "ret", "next_ret")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build daily slices")
	}

	resultsDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "results.db"),
		Profile: database.ProfileResults,
		Name:    "results",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open results database")
	}
	defer resultsDB.Close()

	repo, err := results.NewRepository(resultsDB.Conn(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize results repository")
	}

	store, panelDB, err := panel.OpenStore(filepath.Join(cfg.DataDir, "panel.db"), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open panel store")
	}
	defer panelDB.Close()

	if *ingest {
		rows := panel.ToRows(frame, factors, "ret", "next_ret")
		if err := store.ReplaceRows(rows); err != nil {
			log.Fatal().Err(err).Msg("Failed to persist panel rows")
		}
		log.Info().Int("rows", len(rows)).Msg("Panel persisted to store")
	}

	service := sweeps.NewService(cfg.Sweep, store, repo, nil, nil, "", log)
	runID, result, err := service.RunSlices(context.Background(), slices)
	if err != nil {
		log.Fatal().Err(err).Msg("Sweep failed")
	}

	outPath := *out
	if outPath == "" {
		outPath = filepath.Join(cfg.DataDir, "exports", runID+".csv")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		log.Fatal().Err(err).Msg("Failed to create output directory")
	}
	f, err := os.Create(outPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create output file")
	}
	defer f.Close()
	if err := results.WriteSharpeTableCSV(f, result.Entries); err != nil {
		log.Fatal().Err(err).Msg("Failed to write sharpe table")
	}

	best := bestEntry(result.Entries)
	if best != nil {
		log.Info().
			Int("n_factors", best.NFactors).
			Float64("lambda", best.Lambda).
			Float64("mean_sharpe", best.MeanSharpe).
			Msg("Best grid point")
	}
	log.Info().Str("run_id", runID).Str("out", outPath).Msg("Sweep complete")
}

func splitCols(s string) []string {
	parts := strings.Split(s, ",")
	cols := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			cols = append(cols, trimmed)
		}
	}
	return cols
}

// parseExtra splits an -extra item "path=col1+col2" into path and columns.
func parseExtra(s string) (string, []string, error) {
	path, colSpec, ok := strings.Cut(s, "=")
	if !ok || path == "" || colSpec == "" {
		return "", nil, fmt.Errorf("expected path=col1+col2, got %q", s)
	}
	cols := strings.Split(colSpec, "+")
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
	}
	return strings.TrimSpace(path), cols, nil
}

func parseYears(s string) ([]int, error) {
	if s == "" {
		return nil, fmt.Errorf("-years is required when -input contains {year}")
	}
	var years []int
	for _, p := range strings.Split(s, ",") {
		y, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid year %q: %w", p, err)
		}
		years = append(years, y)
	}
	return years, nil
}

// bestEntry returns the defined entry with the highest mean Sharpe, or nil
// when every grid point is undefined.
func bestEntry(entries []sweep.Entry) *sweep.Entry {
	var best *sweep.Entry
	for i := range entries {
		e := &entries[i]
		if e.Undefined || math.IsNaN(e.MeanSharpe) {
			continue
		}
		if best == nil || e.MeanSharpe > best.MeanSharpe {
			best = e
		}
	}
	return best
}
