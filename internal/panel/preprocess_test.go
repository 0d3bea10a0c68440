package panel

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(offset int) time.Time {
	return time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func rec(offset int, asset string, values map[string]float64) Record {
	return Record{Day: d(offset), AssetID: asset, Values: values}
}

func priceFrame(asset string, prices ...float64) *Frame {
	f := &Frame{}
	for i, p := range prices {
		f.Records = append(f.Records, rec(i, asset, map[string]float64{"close": p}))
	}
	return f
}

func TestAddReturns_Alignment(t *testing.T) {
	f := priceFrame("000001", 100, 102, 99, 99)

	AddReturns(f, "close", "ret", "next_ret")

	// ret[t] is the same-day return, next_ret[t] is ret[t+1].
	assert.True(t, math.IsNaN(f.Records[0].Values["ret"]))
	assert.InDelta(t, 0.02, f.Records[1].Values["ret"], 1e-12)
	assert.InDelta(t, 99.0/102.0-1, f.Records[2].Values["ret"], 1e-12)
	assert.InDelta(t, 0.0, f.Records[3].Values["ret"], 1e-12)

	assert.InDelta(t, 0.02, f.Records[0].Values["next_ret"], 1e-12)
	assert.InDelta(t, 99.0/102.0-1, f.Records[1].Values["next_ret"], 1e-12)
	assert.InDelta(t, 0.0, f.Records[2].Values["next_ret"], 1e-12)
	assert.True(t, math.IsNaN(f.Records[3].Values["next_ret"]))
}

func TestAddReturns_PerAsset(t *testing.T) {
	f := &Frame{Records: []Record{
		rec(0, "000001", map[string]float64{"close": 100}),
		rec(0, "000002", map[string]float64{"close": 50}),
		rec(1, "000001", map[string]float64{"close": 110}),
		rec(1, "000002", map[string]float64{"close": 45}),
	}}

	AddReturns(f, "close", "ret", "next_ret")

	// Returns never cross asset boundaries; each asset's first day is NaN.
	f.Sort()
	byKey := map[string]Record{}
	for _, r := range f.Records {
		byKey[r.Day.Format("2006-01-02")+r.AssetID] = r
	}
	assert.True(t, math.IsNaN(byKey["2024-01-08000001"].Values["ret"]))
	assert.True(t, math.IsNaN(byKey["2024-01-08000002"].Values["ret"]))
	assert.InDelta(t, 0.10, byKey["2024-01-09000001"].Values["ret"], 1e-12)
	assert.InDelta(t, -0.10, byKey["2024-01-09000002"].Values["ret"], 1e-12)
}

func TestAddReturns_ZeroPriceGivesNaN(t *testing.T) {
	f := priceFrame("000001", 100, 0, 50)

	AddReturns(f, "close", "ret", "next_ret")

	assert.True(t, math.IsNaN(f.Records[1].Values["ret"]), "return off a zero price is undefined")
	assert.True(t, math.IsNaN(f.Records[2].Values["ret"]), "return onto a zero base is undefined")
}

func TestForwardFillByAsset(t *testing.T) {
	f := &Frame{Records: []Record{
		rec(0, "000001", map[string]float64{"pe": math.NaN()}),
		rec(1, "000001", map[string]float64{"pe": 12.0}),
		rec(2, "000001", map[string]float64{"pe": math.NaN()}),
		rec(3, "000001", map[string]float64{"pe": 13.0}),
		rec(2, "000002", map[string]float64{"pe": math.NaN()}),
	}}

	ForwardFillByAsset(f, []string{"pe"})

	f.Sort()
	vals := map[string]float64{}
	for _, r := range f.Records {
		vals[r.AssetID+r.Day.Format("0102")] = r.Values["pe"]
	}
	assert.True(t, math.IsNaN(vals["0000010108"]), "nothing to fill from")
	assert.Equal(t, 12.0, vals["0000010109"])
	assert.Equal(t, 12.0, vals["0000010110"], "gap filled with last observation")
	assert.Equal(t, 13.0, vals["0000010111"])
	assert.True(t, math.IsNaN(vals["0000020110"]), "fills never cross assets")
}

func TestZScoreByDay(t *testing.T) {
	f := &Frame{Records: []Record{
		rec(0, "000001", map[string]float64{"mom": 1.0}),
		rec(0, "000002", map[string]float64{"mom": 2.0}),
		rec(0, "000003", map[string]float64{"mom": 3.0}),
	}}

	ZScoreByDay(f, []string{"mom"})

	f.Sort()
	var mean, sumSq float64
	for _, r := range f.Records {
		mean += r.Values["mom"]
	}
	mean /= 3
	for _, r := range f.Records {
		sumSq += (r.Values["mom"] - mean) * (r.Values["mom"] - mean)
	}
	assert.InDelta(t, 0, mean, 1e-12)
	assert.InDelta(t, 1, math.Sqrt(sumSq/2), 1e-12)
	assert.Less(t, f.Records[0].Values["mom"], f.Records[2].Values["mom"], "ordering preserved")
}

func TestZScoreByDay_ZeroDispersion(t *testing.T) {
	f := &Frame{Records: []Record{
		rec(0, "000001", map[string]float64{"mom": 5.0}),
		rec(0, "000002", map[string]float64{"mom": 5.0}),
	}}

	ZScoreByDay(f, []string{"mom"})

	for _, r := range f.Records {
		assert.True(t, math.IsNaN(r.Values["mom"]))
	}
}

func TestZScoreByDay_SingleObservation(t *testing.T) {
	f := &Frame{Records: []Record{
		rec(0, "000001", map[string]float64{"mom": 5.0}),
	}}

	ZScoreByDay(f, []string{"mom"})

	assert.True(t, math.IsNaN(f.Records[0].Values["mom"]))
}

func TestAddTrailingMeanReturn(t *testing.T) {
	f := &Frame{}
	rets := []float64{math.NaN(), 0.01, 0.02, 0.03, -0.01}
	for i, r := range rets {
		f.Records = append(f.Records, rec(i, "000001", map[string]float64{"ret": r}))
	}

	AddTrailingMeanReturn(f, "ret", "past_ret_ave", 2)

	f.Sort()
	// The proxy is the mean of the two returns strictly before day t.
	assert.True(t, math.IsNaN(f.Records[0].Values["past_ret_ave"]))
	assert.True(t, math.IsNaN(f.Records[1].Values["past_ret_ave"]))
	assert.InDelta(t, 0.025, f.Records[4].Values["past_ret_ave"], 1e-12)
}

func TestDropMissing(t *testing.T) {
	f := &Frame{Records: []Record{
		rec(0, "000001", map[string]float64{"a": 1, "b": 2}),
		rec(0, "000002", map[string]float64{"a": math.NaN(), "b": 2}),
		rec(0, "000003", map[string]float64{"a": 1}),
	}}

	DropMissing(f, []string{"a", "b"})

	require.Len(t, f.Records, 1)
	assert.Equal(t, "000001", f.Records[0].AssetID)
}

func TestTradingDays(t *testing.T) {
	f := &Frame{Records: []Record{
		rec(2, "000001", nil),
		rec(0, "000001", nil),
		rec(0, "000002", nil),
	}}

	days := TradingDays(f)
	assert.Equal(t, []string{"2024-01-08", "2024-01-10"}, days)
}
