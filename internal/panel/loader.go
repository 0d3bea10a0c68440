package panel

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/factorlab/internal/domain"
)

// Filter keeps rows where Column Op Value holds. Supported operators:
// ">", ">=", "<", "<=", "!=", "==".
type Filter struct {
	Column string
	Op     string
	Value  float64
}

// DataSpec declares how to load one dataset. FileTemplate may reference
// {year} and is resolved relative to the data root.
type DataSpec struct {
	Name         string
	FileTemplate string
	FileType     string // only "csv" is supported
	DayColumn    string
	AssetColumn  string
	Columns      []string // value columns to load
	Filter       *Filter
}

// dayLayouts are the accepted trading-day formats, tried in order.
var dayLayouts = []string{"2006-01-02", "20060102", "2006/01/02"}

// Loader reads datasets from disk per their DataSpec.
type Loader struct {
	root string
	log  zerolog.Logger
}

// NewLoader creates a loader rooted at the data directory.
func NewLoader(root string, log zerolog.Logger) *Loader {
	return &Loader{
		root: root,
		log:  log.With().Str("component", "panel_loader").Logger(),
	}
}

// LoadByYears loads a dataset for each year and concatenates the frames.
func (l *Loader) LoadByYears(spec DataSpec, years []int) (*Frame, error) {
	if strings.ToLower(spec.FileType) != "csv" {
		return nil, &domain.ConfigurationError{
			Field:  spec.Name,
			Reason: fmt.Sprintf("unsupported file type %q, only csv is supported", spec.FileType),
		}
	}

	out := &Frame{}
	for _, year := range years {
		rel := strings.ReplaceAll(spec.FileTemplate, "{year}", strconv.Itoa(year))
		path := filepath.Join(l.root, rel)
		frame, err := l.LoadCSV(path, spec)
		if err != nil {
			return nil, fmt.Errorf("dataset %s year %d: %w", spec.Name, year, err)
		}
		out.Records = append(out.Records, frame.Records...)
	}

	out.Sort()
	l.log.Debug().Str("dataset", spec.Name).Int("rows", len(out.Records)).Msg("Dataset loaded")
	return out, nil
}

// LoadCSV reads a single CSV file into a frame, standardizing keys:
// the day column is parsed to a date and asset codes are zero-padded to six
// digits when numeric.
func (l *Loader) LoadCSV(path string, spec DataSpec) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	colIdx := make(map[string]int, len(header))
	for i, name := range header {
		colIdx[strings.TrimSpace(name)] = i
	}

	dayCol := spec.DayColumn
	if dayCol == "" {
		dayCol = "trading_day"
	}
	assetCol := spec.AssetColumn
	if assetCol == "" {
		assetCol = "asset_id"
	}
	for _, required := range append([]string{dayCol, assetCol}, spec.Columns...) {
		if _, ok := colIdx[required]; !ok {
			return nil, fmt.Errorf("%s is missing column %q", path, required)
		}
	}

	frame := &Frame{}
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line+1, err)
		}
		line++

		day, err := parseDay(row[colIdx[dayCol]])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}

		values := make(map[string]float64, len(spec.Columns))
		for _, c := range spec.Columns {
			values[c] = parseValue(row[colIdx[c]])
		}

		if spec.Filter != nil && !spec.Filter.keep(values) {
			continue
		}

		frame.Records = append(frame.Records, Record{
			Day:     day,
			AssetID: StandardizeAssetID(row[colIdx[assetCol]]),
			Values:  values,
		})
	}

	return frame, nil
}

// StandardizeAssetID normalizes asset codes: numeric codes are zero-padded
// to six digits, everything else is trimmed.
func StandardizeAssetID(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return s
	}
	if _, err := strconv.Atoi(s); err == nil && len(s) < 6 {
		return strings.Repeat("0", 6-len(s)) + s
	}
	return s
}

func parseDay(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	for _, layout := range dayLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable trading day %q", raw)
}

func parseValue(raw string) float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func (f *Filter) keep(values map[string]float64) bool {
	v, ok := values[f.Column]
	if !ok || math.IsNaN(v) {
		return false
	}
	switch f.Op {
	case ">":
		return v > f.Value
	case ">=":
		return v >= f.Value
	case "<":
		return v < f.Value
	case "<=":
		return v <= f.Value
	case "!=":
		return v != f.Value
	case "==":
		return v == f.Value
	}
	return false
}
