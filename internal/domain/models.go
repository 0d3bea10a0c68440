package domain

import "time"

// PanelRow is one (trading day, asset) observation of the cleaned panel.
// Rows are unique per (Day, AssetID). NextReturn is the realized return over
// the holding period immediately following Day.
type PanelRow struct {
	Day        time.Time
	AssetID    string
	Factors    []float64
	Return     float64
	NextReturn float64
}

// DayKey formats a trading day the way it is stored and logged.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
