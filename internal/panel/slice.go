package panel

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/factorlab/internal/domain"
)

// DailySlice is all panel rows of one trading day, materialized as a factor
// matrix plus aligned return vectors. Row i of Factors, AssetIDs[i],
// Returns[i] and NextReturns[i] all describe the same asset; the order is
// fixed at construction and never mutated.
type DailySlice struct {
	Day         time.Time
	AssetIDs    []string
	Factors     *mat.Dense // nAssets x nInputFactors, nil when the day is empty
	Returns     []float64
	NextReturns []float64
}

// NAssets returns the number of usable assets in the slice.
func (s *DailySlice) NAssets() int { return len(s.AssetIDs) }

// Validate fails fast if the row alignment invariant is broken.
func (s *DailySlice) Validate() error {
	rows := 0
	if s.Factors != nil {
		rows, _ = s.Factors.Dims()
	}
	if rows != len(s.Returns) || rows != len(s.NextReturns) || rows != len(s.AssetIDs) {
		return &domain.AlignmentError{Rows: rows, Returns: len(s.Returns), Next: len(s.NextReturns)}
	}
	return nil
}

// BuildSlices materializes chronological daily slices from a preprocessed
// frame. Assets with a NaN in any factor column or in either return column
// are excluded from their day, not imputed. Days that end up with zero
// usable assets are still emitted (with a nil matrix) so the sweep can count
// them as skipped.
func BuildSlices(f *Frame, factorCols []string, retCol, nextRetCol string) ([]DailySlice, error) {
	if len(factorCols) == 0 {
		return nil, &domain.ConfigurationError{Field: "factor_cols", Reason: "no factor columns"}
	}
	f.Sort()

	var slices []DailySlice
	var cur *DailySlice
	var data []float64

	flush := func() {
		if cur == nil {
			return
		}
		if len(cur.AssetIDs) > 0 {
			cur.Factors = mat.NewDense(len(cur.AssetIDs), len(factorCols), data)
		}
		slices = append(slices, *cur)
		cur = nil
	}

	for _, r := range f.Records {
		if cur == nil || !cur.Day.Equal(r.Day) {
			flush()
			cur = &DailySlice{Day: r.Day}
			data = nil
		}

		usable := true
		row := make([]float64, len(factorCols))
		for j, c := range factorCols {
			v, has := r.Values[c]
			if !has || math.IsNaN(v) {
				usable = false
				break
			}
			row[j] = v
		}
		ret := r.Values[retCol]
		next := r.Values[nextRetCol]
		if math.IsNaN(ret) || math.IsNaN(next) {
			usable = false
		}
		if !usable {
			continue
		}

		cur.AssetIDs = append(cur.AssetIDs, r.AssetID)
		cur.Returns = append(cur.Returns, ret)
		cur.NextReturns = append(cur.NextReturns, next)
		data = append(data, row...)
	}
	flush()

	for i := range slices {
		if err := slices[i].Validate(); err != nil {
			return nil, err
		}
	}
	return slices, nil
}

// SlicesFromRows materializes daily slices from stored panel rows. Rows must
// share a common factor dimension.
func SlicesFromRows(rows []domain.PanelRow) ([]DailySlice, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	dim := len(rows[0].Factors)

	var slices []DailySlice
	var cur *DailySlice
	var data []float64

	flush := func() {
		if cur == nil {
			return
		}
		if len(cur.AssetIDs) > 0 {
			cur.Factors = mat.NewDense(len(cur.AssetIDs), dim, data)
		}
		slices = append(slices, *cur)
		cur = nil
	}

	for _, r := range rows {
		if len(r.Factors) != dim {
			return nil, &domain.AlignmentError{Rows: dim, Returns: len(r.Factors), Next: dim}
		}
		if cur == nil || !cur.Day.Equal(r.Day) {
			flush()
			cur = &DailySlice{Day: r.Day}
			data = nil
		}
		cur.AssetIDs = append(cur.AssetIDs, r.AssetID)
		cur.Returns = append(cur.Returns, r.Return)
		cur.NextReturns = append(cur.NextReturns, r.NextReturn)
		data = append(data, r.Factors...)
	}
	flush()

	return slices, nil
}

// ToRows flattens a preprocessed frame into panel rows for persistence.
// Rows excluded from slices (NaN factors or returns) are excluded here too.
func ToRows(f *Frame, factorCols []string, retCol, nextRetCol string) []domain.PanelRow {
	f.Sort()
	var out []domain.PanelRow
	for _, r := range f.Records {
		factors := make([]float64, len(factorCols))
		usable := true
		for j, c := range factorCols {
			v, has := r.Values[c]
			if !has || math.IsNaN(v) {
				usable = false
				break
			}
			factors[j] = v
		}
		ret := r.Values[retCol]
		next := r.Values[nextRetCol]
		if !usable || math.IsNaN(ret) || math.IsNaN(next) {
			continue
		}
		out = append(out, domain.PanelRow{
			Day:        r.Day,
			AssetID:    r.AssetID,
			Factors:    factors,
			Return:     ret,
			NextReturn: next,
		})
	}
	return out
}
