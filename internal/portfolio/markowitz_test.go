package portfolio

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/factorlab/internal/domain"
)

func randomFeatures(n, d int, seed int64) *mat.Dense {
	rng := rand.New(rand.NewSource(seed))
	x := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			x.Set(i, j, rng.NormFloat64())
		}
	}
	return x
}

func TestSolve_SatisfiesNormalEquations(t *testing.T) {
	n, d := 8, 3
	feats := randomFeatures(n, d, 1)
	returns := []float64{0.01, -0.02, 0.005, 0.03, -0.01, 0.0, 0.015, -0.005}
	lambda := 0.1

	sol, err := Solve(feats, returns, lambda)
	require.NoError(t, err)
	require.Len(t, sol.FeatureWeights, d)
	require.Len(t, sol.AssetWeights, n)

	// (F^T F / n + lambda I) w_f must reproduce F^T r.
	for a := 0; a < d; a++ {
		var lhs float64
		for b := 0; b < d; b++ {
			var cov float64
			for i := 0; i < n; i++ {
				cov += feats.At(i, a) * feats.At(i, b)
			}
			cov /= float64(n)
			if a == b {
				cov += lambda
			}
			lhs += cov * sol.FeatureWeights[b]
		}
		var rhs float64
		for i := 0; i < n; i++ {
			rhs += feats.At(i, a) * returns[i]
		}
		assert.InDelta(t, rhs, lhs, 1e-9)
	}

	// Asset weights are the feature weights mapped back through F.
	for i := 0; i < n; i++ {
		var w float64
		for j := 0; j < d; j++ {
			w += feats.At(i, j) * sol.FeatureWeights[j]
		}
		assert.InDelta(t, w, sol.AssetWeights[i], 1e-12)
	}
}

func TestSolve_LinearInReturns(t *testing.T) {
	feats := randomFeatures(6, 2, 2)
	returns := []float64{0.01, 0.02, -0.01, 0.0, 0.03, -0.02}

	sol, err := Solve(feats, returns, 0.5)
	require.NoError(t, err)

	doubled := make([]float64, len(returns))
	for i, r := range returns {
		doubled[i] = 2 * r
	}
	sol2, err := Solve(feats, doubled, 0.5)
	require.NoError(t, err)

	for j := range sol.FeatureWeights {
		assert.InDelta(t, 2*sol.FeatureWeights[j], sol2.FeatureWeights[j], 1e-9)
	}
}

func TestSolve_RankDeficientWithoutRidgeFails(t *testing.T) {
	// More features than assets: F^T F / n has rank at most 2 and lambda = 0
	// cannot be factorized.
	feats := randomFeatures(2, 5, 3)
	returns := []float64{0.01, -0.01}

	_, err := Solve(feats, returns, 0)
	var singErr *domain.SingularSystemError
	require.ErrorAs(t, err, &singErr)

	// The same system solves once the ridge penalty is on.
	sol, err := Solve(feats, returns, 1e-3)
	require.NoError(t, err)
	assert.Len(t, sol.FeatureWeights, 5)
}

func TestSolve_RidgeShrinksWeights(t *testing.T) {
	feats := randomFeatures(10, 4, 4)
	returns := []float64{0.02, -0.01, 0.015, 0.0, -0.02, 0.01, 0.005, -0.015, 0.03, -0.005}

	small, err := Solve(feats, returns, 1e-4)
	require.NoError(t, err)
	large, err := Solve(feats, returns, 10)
	require.NoError(t, err)

	var normSmall, normLarge float64
	for j := range small.FeatureWeights {
		normSmall += small.FeatureWeights[j] * small.FeatureWeights[j]
		normLarge += large.FeatureWeights[j] * large.FeatureWeights[j]
	}
	assert.Less(t, normLarge, normSmall)
}

func TestSolve_RejectsInvalidInputs(t *testing.T) {
	feats := randomFeatures(4, 2, 5)
	returns := []float64{0.01, 0.02, 0.03, 0.04}

	var cfgErr *domain.ConfigurationError
	_, err := Solve(feats, returns, -1)
	require.ErrorAs(t, err, &cfgErr)

	var alignErr *domain.AlignmentError
	_, err = Solve(feats, returns[:3], 0.1)
	require.ErrorAs(t, err, &alignErr)
}

func TestRealizedReturn_DotProduct(t *testing.T) {
	sol := &Solution{AssetWeights: []float64{0.5, -0.25, 1.0}}

	got, err := RealizedReturn(sol, []float64{0.02, 0.04, -0.01})
	require.NoError(t, err)
	assert.InDelta(t, 0.5*0.02-0.25*0.04+1.0*(-0.01), got, 1e-15)

	var alignErr *domain.AlignmentError
	_, err = RealizedReturn(sol, []float64{0.02, 0.04})
	require.ErrorAs(t, err, &alignErr)
}
