// Package panel prepares the cross-sectional asset/factor panel: loading,
// key standardization, sequential merging, return construction, forward-fill
// and z-score preprocessing, and materialization into per-day slices.
package panel

import (
	"math"
	"sort"
	"time"

	"github.com/aristath/factorlab/internal/domain"
)

// Record is one (day, asset) row of a frame with named columns. Missing
// values are NaN.
type Record struct {
	Day     time.Time
	AssetID string
	Values  map[string]float64
}

// Frame is an in-memory panel of records keyed by (day, asset). It is the
// working representation between loading and slice materialization.
type Frame struct {
	Records []Record
}

// key identifies a record for merging.
type key struct {
	day   string
	asset string
}

// Sort orders records by (day, asset). All downstream steps assume this
// order; it also fixes the iteration order that makes sweeps reproducible.
func (f *Frame) Sort() {
	sort.Slice(f.Records, func(i, j int) bool {
		a, b := f.Records[i], f.Records[j]
		if !a.Day.Equal(b.Day) {
			return a.Day.Before(b.Day)
		}
		return a.AssetID < b.AssetID
	})
}

// Columns returns the union of column names across records, sorted.
func (f *Frame) Columns() []string {
	seen := map[string]bool{}
	for _, r := range f.Records {
		for c := range r.Values {
			seen[c] = true
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// MergeOnKeys left-merges frames sequentially on (day, asset). The first
// frame is the base/universe frame; columns of later frames are attached to
// matching keys and missing matches stay NaN.
func MergeOnKeys(frames []*Frame) (*Frame, error) {
	if len(frames) == 0 {
		return nil, &domain.ConfigurationError{Field: "frames", Reason: "nothing to merge"}
	}

	merged := &Frame{Records: make([]Record, 0, len(frames[0].Records))}
	for _, r := range frames[0].Records {
		values := make(map[string]float64, len(r.Values))
		for c, v := range r.Values {
			values[c] = v
		}
		merged.Records = append(merged.Records, Record{Day: r.Day, AssetID: r.AssetID, Values: values})
	}

	for _, other := range frames[1:] {
		index := make(map[key]Record, len(other.Records))
		for _, r := range other.Records {
			index[key{domain.DayKey(r.Day), r.AssetID}] = r
		}
		cols := other.Columns()
		for i := range merged.Records {
			base := &merged.Records[i]
			match, ok := index[key{domain.DayKey(base.Day), base.AssetID}]
			for _, c := range cols {
				if ok {
					if v, has := match.Values[c]; has {
						base.Values[c] = v
						continue
					}
				}
				if _, has := base.Values[c]; !has {
					base.Values[c] = math.NaN()
				}
			}
		}
	}

	merged.Sort()
	return merged, nil
}
