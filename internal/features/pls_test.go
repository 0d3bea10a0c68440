package features

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/factorlab/internal/domain"
)

// syntheticPanel builds features where the target depends only on the first
// column plus small noise.
func syntheticPanel(n, d int, seed int64) (*mat.Dense, []float64) {
	rng := rand.New(rand.NewSource(seed))
	x := mat.NewDense(n, d, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			x.Set(i, j, rng.NormFloat64())
		}
		y[i] = 2.0*x.At(i, 0) + 0.01*rng.NormFloat64()
	}
	return x, y
}

func TestPLS_FitTransformShape(t *testing.T) {
	x, y := syntheticPanel(40, 6, 1)

	pls := NewPLS(2)
	require.NoError(t, pls.Fit(x, y))

	scores, err := pls.Transform(x)
	require.NoError(t, err)

	rows, cols := scores.Dims()
	assert.Equal(t, 40, rows)
	assert.Equal(t, 2, cols)
}

func TestPLS_FirstComponentTracksPredictiveDirection(t *testing.T) {
	x, y := syntheticPanel(200, 5, 2)

	pls := NewPLS(1)
	require.NoError(t, pls.Fit(x, y))

	scores, err := pls.Transform(x)
	require.NoError(t, err)

	// The single latent component should be strongly correlated with the
	// target when the target is one-dimensional in feature space.
	n, _ := scores.Dims()
	col := make([]float64, n)
	for i := 0; i < n; i++ {
		col[i] = scores.At(i, 0)
	}
	corr := correlation(col, y)
	assert.Greater(t, math.Abs(corr), 0.99)
}

func TestPLS_TransformCentersWithFittedMeans(t *testing.T) {
	x, y := syntheticPanel(30, 4, 3)

	pls := NewPLS(2)
	require.NoError(t, pls.Fit(x, y))

	scores, err := pls.Transform(x)
	require.NoError(t, err)

	// In-sample scores are centered because the projection subtracts the
	// training means.
	n, k := scores.Dims()
	for j := 0; j < k; j++ {
		var mu float64
		for i := 0; i < n; i++ {
			mu += scores.At(i, j)
		}
		mu /= float64(n)
		assert.InDelta(t, 0, mu, 1e-9)
	}
}

func TestPLS_FitRejectsBadInputs(t *testing.T) {
	x, y := syntheticPanel(10, 4, 4)
	var fitErr *domain.FitError

	require.ErrorAs(t, NewPLS(0).Fit(x, y), &fitErr, "zero components")
	require.ErrorAs(t, NewPLS(11).Fit(x, y), &fitErr, "fewer rows than components")
	require.ErrorAs(t, NewPLS(5).Fit(x, y), &fitErr, "more components than features")
	require.ErrorAs(t, NewPLS(2).Fit(x, y[:5]), &fitErr, "misaligned target")

	bad := append([]float64{}, y...)
	bad[3] = math.NaN()
	require.ErrorAs(t, NewPLS(2).Fit(x, bad), &fitErr, "non-finite target")
}

func TestPLS_FitRejectsDegenerateTarget(t *testing.T) {
	x, _ := syntheticPanel(20, 4, 5)
	flat := make([]float64, 20) // constant target has zero covariance with X

	var fitErr *domain.FitError
	require.ErrorAs(t, NewPLS(1).Fit(x, flat), &fitErr)
}

func TestPLS_TransformBeforeFitFails(t *testing.T) {
	var fitErr *domain.FitError
	_, err := NewPLS(2).Transform(mat.NewDense(3, 4, nil))
	require.ErrorAs(t, err, &fitErr)
}

func TestIdentityReducer_PassesThrough(t *testing.T) {
	x, y := syntheticPanel(5, 3, 6)

	out, err := IdentityReducer{}.Reduce(x, y)
	require.NoError(t, err)
	assert.Same(t, x, out)
	assert.Equal(t, "identity", IdentityReducer{}.Name())
}

func TestPLSReducer_ReducesDimension(t *testing.T) {
	x, y := syntheticPanel(50, 8, 7)

	out, err := PLSReducer{Components: 3}.Reduce(x, y)
	require.NoError(t, err)

	rows, cols := out.Dims()
	assert.Equal(t, 50, rows)
	assert.Equal(t, 3, cols)
	assert.Equal(t, "pls", PLSReducer{Components: 3}.Name())
}

func correlation(a, b []float64) float64 {
	n := float64(len(a))
	var ma, mb float64
	for i := range a {
		ma += a[i]
		mb += b[i]
	}
	ma /= n
	mb /= n
	var cov, va, vb float64
	for i := range a {
		cov += (a[i] - ma) * (b[i] - mb)
		va += (a[i] - ma) * (a[i] - ma)
		vb += (b[i] - mb) * (b[i] - mb)
	}
	return cov / math.Sqrt(va*vb)
}
