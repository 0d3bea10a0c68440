package sweep

import (
	"math"

	"github.com/aristath/factorlab/internal/domain"
	"github.com/aristath/factorlab/pkg/formulas"
)

// Convention fixes how the per-day Sharpe statistic is computed. It is set
// once per sweep; results are not comparable across conventions.
type Convention string

const (
	// ConventionOverall divides each daily return by the overall standard
	// deviation of the grid point's daily returns. Mean Sharpe then equals
	// the classic mean/std ratio, and the std of the per-day statistic is
	// identically 1 whenever the dispersion is non-zero.
	ConventionOverall Convention = "overall"
	// ConventionTrailing divides each daily return by a trailing
	// volatility estimate (rolling window, expanding during warm-up).
	ConventionTrailing Convention = "trailing"
)

// SharpeSpec is the Sharpe computation convention for a whole sweep.
type SharpeSpec struct {
	Convention     Convention
	TrailingWindow int
}

// Validate rejects unknown conventions before the sweep starts.
func (s SharpeSpec) Validate() error {
	switch s.Convention {
	case ConventionOverall:
		return nil
	case ConventionTrailing:
		if s.TrailingWindow < 2 {
			return &domain.ConfigurationError{Field: "trailing_window", Reason: "must be at least 2"}
		}
		return nil
	}
	return &domain.ConfigurationError{Field: "convention", Reason: "unknown Sharpe convention " + string(s.Convention)}
}

// PerDay computes the per-day Sharpe statistic for a sequence of daily
// realized returns. Positions where no volatility estimate exists are NaN.
func (s SharpeSpec) PerDay(returns []float64) []float64 {
	out := make([]float64, len(returns))

	switch s.Convention {
	case ConventionTrailing:
		vol := formulas.TrailingStdDev(returns, s.TrailingWindow)
		for t, r := range returns {
			if math.IsNaN(vol[t]) || vol[t] == 0 {
				out[t] = math.NaN()
			} else {
				out[t] = r / vol[t]
			}
		}
	default:
		sigma := formulas.StdDev(returns)
		for t, r := range returns {
			if len(returns) < 2 || sigma == 0 || math.IsNaN(sigma) {
				out[t] = math.NaN()
			} else {
				out[t] = r / sigma
			}
		}
	}

	return out
}

// Aggregate computes (mean_sharpe, std_sharpe) across days, dropping NaN
// positions (trailing warm-up). Returns NaNs when nothing is left.
func (s SharpeSpec) Aggregate(returns []float64) (meanSharpe, stdSharpe float64) {
	perDay := s.PerDay(returns)
	kept := perDay[:0:0]
	for _, v := range perDay {
		if !math.IsNaN(v) {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		return math.NaN(), math.NaN()
	}
	meanSharpe = formulas.Mean(kept)
	if len(kept) < 2 {
		stdSharpe = math.NaN()
	} else {
		stdSharpe = formulas.StdDev(kept)
	}
	return meanSharpe, stdSharpe
}
