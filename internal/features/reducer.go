package features

import (
	"gonum.org/v1/gonum/mat"
)

// Reducer maps a day's feature matrix to a (possibly lower-dimensional)
// matrix sharing the row alignment invariant with the daily slice. The two
// variants are selected at configuration time so the pipeline carries no
// conditional branching.
type Reducer interface {
	// Reduce returns the reduced feature matrix for one day. target is the
	// vector the supervised variant fits against; the identity variant
	// ignores it.
	Reduce(feats *mat.Dense, target []float64) (*mat.Dense, error)
	// Name identifies the variant in logs and persisted run metadata.
	Name() string
}

// IdentityReducer passes the feature matrix through unchanged.
type IdentityReducer struct{}

// Reduce returns feats as-is.
func (IdentityReducer) Reduce(feats *mat.Dense, _ []float64) (*mat.Dense, error) {
	return feats, nil
}

// Name implements Reducer.
func (IdentityReducer) Name() string { return "identity" }

// PLSReducer fits a fresh PLS projection on each day's (features, target)
// pair and applies it, mirroring the per-day supervised reduction of the
// research pipeline.
type PLSReducer struct {
	Components int
}

// Reduce fits and applies a k-component PLS projection.
func (r PLSReducer) Reduce(feats *mat.Dense, target []float64) (*mat.Dense, error) {
	pls := NewPLS(r.Components)
	if err := pls.Fit(feats, target); err != nil {
		return nil, err
	}
	return pls.Transform(feats)
}

// Name implements Reducer.
func (r PLSReducer) Name() string { return "pls" }
