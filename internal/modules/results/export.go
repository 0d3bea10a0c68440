package results

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/aristath/factorlab/internal/sweep"
)

// WriteSharpeTableCSV writes the result table as CSV: one row per grid
// point, with undefined statistics left empty rather than zeroed.
func WriteSharpeTableCSV(w io.Writer, entries []sweep.Entry) error {
	cw := csv.NewWriter(w)
	header := []string{"n_factors", "lambda", "mean_sharpe", "std_sharpe", "mean_return", "std_return", "days_used", "days_skipped", "undefined"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, e := range entries {
		row := []string{
			strconv.Itoa(e.NFactors),
			formatFloat(e.Lambda),
			formatFloat(e.MeanSharpe),
			formatFloat(e.StdSharpe),
			formatFloat(e.MeanReturn),
			formatFloat(e.StdReturn),
			strconv.Itoa(e.DaysUsed),
			strconv.Itoa(e.DaysSkipped),
			strconv.FormatBool(e.Undefined),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
