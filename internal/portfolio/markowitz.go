// Package portfolio implements the per-day ridge-regularized Markowitz solve
// in feature space.
package portfolio

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/factorlab/internal/domain"
)

// Solution holds the weights for a single trading day: the feature-space
// solution of the regularized system and its mapping back to asset space.
// Asset weights carry no budget or leverage constraint; constraints are an
// external concern.
type Solution struct {
	FeatureWeights []float64 // one per feature column
	AssetWeights   []float64 // one per asset row, w = F * w_f
}

// Solve computes portfolio weights for one trading day. Given the feature
// matrix F (rows = assets) and the day's return vector r, it forms
// Cov = F^T F / n and Ft = F^T r, solves (Cov + lambda*I) w_f = Ft by
// Cholesky factorization, and maps back with w = F * w_f.
//
// lambda > 0 is required whenever Cov may be singular (more features than
// assets, collinear factors); lambda = 0 is only valid for a well-conditioned
// Cov and otherwise fails with SingularSystemError.
func Solve(feats *mat.Dense, returns []float64, lambda float64) (*Solution, error) {
	if lambda < 0 {
		return nil, &domain.ConfigurationError{Field: "lambda", Reason: fmt.Sprintf("must be non-negative, got %g", lambda)}
	}
	n, d := feats.Dims()
	if n == 0 {
		return nil, &domain.InsufficientDataError{Day: "unknown"}
	}
	if len(returns) != n {
		return nil, &domain.AlignmentError{Rows: n, Returns: len(returns), Next: len(returns)}
	}

	// Cov = F^T F / n, built directly as a symmetric matrix with the ridge
	// penalty on the diagonal.
	cov := mat.NewSymDense(d, nil)
	inv := 1.0 / float64(n)
	for a := 0; a < d; a++ {
		for b := a; b < d; b++ {
			var s float64
			for i := 0; i < n; i++ {
				s += feats.At(i, a) * feats.At(i, b)
			}
			s *= inv
			if a == b {
				s += lambda
			}
			cov.SetSym(a, b, s)
		}
	}

	// Ft = F^T r
	ft := mat.NewVecDense(d, nil)
	r := mat.NewVecDense(n, returns)
	ft.MulVec(feats.T(), r)

	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		return nil, &domain.SingularSystemError{Dim: d, Lambda: lambda}
	}

	wf := mat.NewVecDense(d, nil)
	if err := chol.SolveVecTo(wf, ft); err != nil {
		return nil, &domain.SingularSystemError{Dim: d, Lambda: lambda}
	}

	w := mat.NewVecDense(n, nil)
	w.MulVec(feats, wf)

	sol := &Solution{
		FeatureWeights: make([]float64, d),
		AssetWeights:   make([]float64, n),
	}
	copy(sol.FeatureWeights, wf.RawVector().Data)
	copy(sol.AssetWeights, w.RawVector().Data)
	return sol, nil
}

// RealizedReturn evaluates asset weights against the next-period return
// vector, w . next.
func RealizedReturn(sol *Solution, next []float64) (float64, error) {
	if len(next) != len(sol.AssetWeights) {
		return 0, &domain.AlignmentError{Rows: len(sol.AssetWeights), Returns: len(next), Next: len(next)}
	}
	var out float64
	for i, w := range sol.AssetWeights {
		out += w * next[i]
	}
	return out, nil
}
