// Package features implements the randomized feature expansion and the
// optional supervised dimensionality reduction used by the sweep.
package features

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/factorlab/internal/domain"
)

// bandwidths is the discrete set the projection bandwidth is drawn from,
// matching the research convention of sampling gamma from a small grid.
var bandwidths = []float64{0.5, 0.6, 0.7, 0.8, 0.9, 1.0}

// RFFConfig is an immutable Random Fourier Feature configuration. It is a
// pure function of (inputDim, nFactors, seed): the projection matrix, the
// bandwidth and the phase offsets are drawn once at construction from a
// deterministically seeded generator and reused for every day of a sweep.
// Regenerating per day would break reproducibility and the cross-day
// comparability of the resulting weight vectors.
type RFFConfig struct {
	inputDim  int
	nFactors  int
	seed      int64
	bandwidth float64
	scale     float64
	projection *mat.Dense // inputDim x nFactors, already scaled by bandwidth
	phases     []float64  // length nFactors, uniform over [0, 2pi)
}

// NewRFFConfig draws the projection matrix W ~ N(0,1)*bandwidth and the phase
// vector b ~ U[0, 2pi) from a generator seeded with seed. Identical
// (inputDim, nFactors, seed) always reproduce identical W and b.
func NewRFFConfig(inputDim, nFactors int, seed int64) (*RFFConfig, error) {
	if nFactors <= 0 {
		return nil, &domain.ConfigurationError{Field: "n_factors", Reason: fmt.Sprintf("must be positive, got %d", nFactors)}
	}
	if inputDim <= 0 {
		return nil, &domain.ConfigurationError{Field: "input_dim", Reason: fmt.Sprintf("must be positive, got %d", inputDim)}
	}

	rng := rand.New(rand.NewSource(seed))

	// Draw order is part of the reproducibility contract: omega, then
	// bandwidth, then phases.
	omega := make([]float64, inputDim*nFactors)
	for i := range omega {
		omega[i] = rng.NormFloat64()
	}
	bandwidth := bandwidths[rng.Intn(len(bandwidths))]
	for i := range omega {
		omega[i] *= bandwidth
	}

	phases := make([]float64, nFactors)
	for i := range phases {
		phases[i] = rng.Float64() * 2 * math.Pi
	}

	return &RFFConfig{
		inputDim:   inputDim,
		nFactors:   nFactors,
		seed:       seed,
		bandwidth:  bandwidth,
		scale:      math.Sqrt(2.0 / float64(nFactors)),
		projection: mat.NewDense(inputDim, nFactors, omega),
		phases:     phases,
	}, nil
}

// InputDim returns the fixed input dimension of the configuration.
func (c *RFFConfig) InputDim() int { return c.inputDim }

// NFactors returns the number of random basis functions.
func (c *RFFConfig) NFactors() int { return c.nFactors }

// Seed returns the seed the configuration was drawn from.
func (c *RFFConfig) Seed() int64 { return c.seed }

// Transform expands an [nAssets x inputDim] factor matrix into the
// [nAssets x nFactors] feature matrix sqrt(2/n)*cos(xW + b), row-wise.
// The input is not modified; a new matrix is allocated.
func (c *RFFConfig) Transform(x *mat.Dense) (*mat.Dense, error) {
	rows, cols := x.Dims()
	if rows == 0 {
		return nil, &domain.ConfigurationError{Field: "input", Reason: "factor matrix has zero rows"}
	}
	if cols != c.inputDim {
		return nil, &domain.ConfigurationError{
			Field:  "input",
			Reason: fmt.Sprintf("factor matrix has %d columns, configuration fixed at %d", cols, c.inputDim),
		}
	}

	out := mat.NewDense(rows, c.nFactors, nil)
	out.Mul(x, c.projection)
	for i := 0; i < rows; i++ {
		for j := 0; j < c.nFactors; j++ {
			out.Set(i, j, c.scale*math.Cos(out.At(i, j)+c.phases[j]))
		}
	}
	return out, nil
}
