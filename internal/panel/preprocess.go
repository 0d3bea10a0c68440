package panel

import (
	"math"
	"sort"

	"github.com/aristath/factorlab/pkg/formulas"
)

// assetSeries collects the record indices of one asset in day order.
// The frame must already be sorted.
func assetSeries(f *Frame) map[string][]int {
	series := make(map[string][]int)
	for i, r := range f.Records {
		series[r.AssetID] = append(series[r.AssetID], i)
	}
	return series
}

// AddReturns computes per-asset returns from a price column:
// ret[t] = price[t]/price[t-1] - 1 and next_ret[t] = ret[t+1], both aligned
// to day t. First observations per asset have NaN returns; last observations
// have NaN next returns.
func AddReturns(f *Frame, priceCol, retCol, nextRetCol string) {
	f.Sort()
	for _, idxs := range assetSeries(f) {
		for pos, i := range idxs {
			r := &f.Records[i]
			if pos == 0 {
				r.Values[retCol] = math.NaN()
				continue
			}
			prev := f.Records[idxs[pos-1]].Values[priceCol]
			cur := r.Values[priceCol]
			if prev == 0 || math.IsNaN(prev) || math.IsNaN(cur) {
				r.Values[retCol] = math.NaN()
			} else {
				r.Values[retCol] = cur/prev - 1
			}
		}
		for pos, i := range idxs {
			r := &f.Records[i]
			if pos == len(idxs)-1 {
				r.Values[nextRetCol] = math.NaN()
			} else {
				r.Values[nextRetCol] = f.Records[idxs[pos+1]].Values[retCol]
			}
		}
	}
}

// ForwardFillByAsset fills NaN factor values with the last observed value of
// the same asset.
func ForwardFillByAsset(f *Frame, factorCols []string) {
	f.Sort()
	for _, idxs := range assetSeries(f) {
		for _, c := range factorCols {
			last := math.NaN()
			for _, i := range idxs {
				v := f.Records[i].Values[c]
				if math.IsNaN(v) {
					if !math.IsNaN(last) {
						f.Records[i].Values[c] = last
					}
				} else {
					last = v
				}
			}
		}
	}
}

// ZScoreByDay standardizes factor columns within each trading day:
// z = (x - mean_day) / std_day. Days with zero dispersion map to NaN.
func ZScoreByDay(f *Frame, factorCols []string) {
	f.Sort()
	byDay := make(map[string][]int)
	for i, r := range f.Records {
		k := r.Day.Format("2006-01-02")
		byDay[k] = append(byDay[k], i)
	}

	for _, idxs := range byDay {
		for _, c := range factorCols {
			var vals []float64
			for _, i := range idxs {
				if v := f.Records[i].Values[c]; !math.IsNaN(v) {
					vals = append(vals, v)
				}
			}
			mu := formulas.Mean(vals)
			sigma := formulas.StdDev(vals)
			for _, i := range idxs {
				v := f.Records[i].Values[c]
				if math.IsNaN(v) || sigma == 0 || len(vals) < 2 {
					f.Records[i].Values[c] = math.NaN()
					continue
				}
				f.Records[i].Values[c] = (v - mu) / sigma
			}
		}
	}
}

// AddTrailingMeanReturn adds the strictly backward-looking rolling mean of
// retCol per asset (the expected-return proxy). Positions without a full
// window are NaN.
func AddTrailingMeanReturn(f *Frame, retCol, outCol string, window int) {
	f.Sort()
	for _, idxs := range assetSeries(f) {
		rets := make([]float64, len(idxs))
		for pos, i := range idxs {
			rets[pos] = f.Records[i].Values[retCol]
		}
		proxy := formulas.TrailingMean(rets, window)
		for pos, i := range idxs {
			f.Records[i].Values[outCol] = proxy[pos]
		}
	}
}

// DropMissing removes records with NaN in any required column.
func DropMissing(f *Frame, requiredCols []string) {
	kept := f.Records[:0]
	for _, r := range f.Records {
		ok := true
		for _, c := range requiredCols {
			v, has := r.Values[c]
			if !has || math.IsNaN(v) {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, r)
		}
	}
	f.Records = kept
}

// TradingDays returns the distinct trading days of the frame in
// chronological order.
func TradingDays(f *Frame) []string {
	seen := map[string]bool{}
	for _, r := range f.Records {
		seen[r.Day.Format("2006-01-02")] = true
	}
	days := make([]string, 0, len(seen))
	for d := range seen {
		days = append(days, d)
	}
	sort.Strings(days)
	return days
}
