// Package sweep orchestrates the hyperparameter grid search: per-day RFF
// expansion, optional reduction, the ridge Markowitz solve, and cross-day
// Sharpe aggregation.
package sweep

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/aristath/factorlab/internal/domain"
)

// Grid is the Cartesian product of n_factors and lambda values, evaluated
// n_factors-major so result tables group by feature count.
type Grid struct {
	NFactors []int
	Lambdas  []float64
}

// Point is one cell of the grid. Index is its position in grid order and
// fixes the ordering of the result table regardless of worker completion
// order.
type Point struct {
	Index    int
	NFactors int
	Lambda   float64
}

// Points enumerates the grid in deterministic order.
func (g Grid) Points() []Point {
	pts := make([]Point, 0, len(g.NFactors)*len(g.Lambdas))
	for _, n := range g.NFactors {
		for _, l := range g.Lambdas {
			pts = append(pts, Point{Index: len(pts), NFactors: n, Lambda: l})
		}
	}
	return pts
}

// Validate rejects invalid grids before any computation starts.
func (g Grid) Validate() error {
	if len(g.NFactors) == 0 {
		return &domain.ConfigurationError{Field: "n_factors", Reason: "grid is empty"}
	}
	for _, n := range g.NFactors {
		if n <= 0 {
			return &domain.ConfigurationError{Field: "n_factors", Reason: fmt.Sprintf("must be positive, got %d", n)}
		}
	}
	if len(g.Lambdas) == 0 {
		return &domain.ConfigurationError{Field: "lambdas", Reason: "grid is empty"}
	}
	for _, l := range g.Lambdas {
		if l < 0 {
			return &domain.ConfigurationError{Field: "lambdas", Reason: fmt.Sprintf("must be non-negative, got %g", l)}
		}
	}
	return nil
}

// Entry is the immutable result of one grid point. Undefined marks grid
// points whose every day was skipped; their statistics are NaN, never zero,
// so downstream consumers can tell "bad Sharpe" from "no data".
type Entry struct {
	NFactors     int       `json:"n_factors"`
	Lambda       float64   `json:"lambda"`
	MeanSharpe   float64   `json:"mean_sharpe"`
	StdSharpe    float64   `json:"std_sharpe"`
	MeanReturn   float64   `json:"mean_return"`
	StdReturn    float64   `json:"std_return"`
	DailyReturns []float64 `json:"daily_returns"`
	DaysUsed     int       `json:"days_used"`
	DaysSkipped  int       `json:"days_skipped"`
	Undefined    bool      `json:"undefined"`
}

// MarshalJSON encodes undefined statistics as null; encoding/json rejects
// NaN and undefined entries must never degrade to zero.
func (e Entry) MarshalJSON() ([]byte, error) {
	type jsonEntry struct {
		NFactors     int       `json:"n_factors"`
		Lambda       float64   `json:"lambda"`
		MeanSharpe   *float64  `json:"mean_sharpe"`
		StdSharpe    *float64  `json:"std_sharpe"`
		MeanReturn   *float64  `json:"mean_return"`
		StdReturn    *float64  `json:"std_return"`
		DailyReturns []float64 `json:"daily_returns"`
		DaysUsed     int       `json:"days_used"`
		DaysSkipped  int       `json:"days_skipped"`
		Undefined    bool      `json:"undefined"`
	}
	finite := func(v float64) *float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		return &v
	}
	return json.Marshal(jsonEntry{
		NFactors:     e.NFactors,
		Lambda:       e.Lambda,
		MeanSharpe:   finite(e.MeanSharpe),
		StdSharpe:    finite(e.StdSharpe),
		MeanReturn:   finite(e.MeanReturn),
		StdReturn:    finite(e.StdReturn),
		DailyReturns: e.DailyReturns,
		DaysUsed:     e.DaysUsed,
		DaysSkipped:  e.DaysSkipped,
		Undefined:    e.Undefined,
	})
}

// Result is the append-only sweep result table, ordered by grid order.
type Result struct {
	Seed       int64      `json:"seed"`
	Convention Convention `json:"convention"`
	Reducer    string     `json:"reducer"`
	Entries    []Entry    `json:"entries"`
}

// Progress reports sweep advancement at grid-point granularity.
type Progress struct {
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	NFactors  int     `json:"n_factors"`
	Lambda    float64 `json:"lambda"`
}

// ProgressFunc receives progress updates. It is called from the collector
// only, never concurrently.
type ProgressFunc func(Progress)
