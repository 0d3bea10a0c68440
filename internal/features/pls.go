package features

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/factorlab/internal/domain"
)

// degenerateTol is the squared-norm threshold below which a latent component
// is considered numerically zero.
const degenerateTol = 1e-12

// PLS is a single-target partial least squares projection (NIPALS). Fit
// computes a linear map from feature space to k latent components that
// maximizes covariance with the target; Transform applies it. The fitted
// projection is immutable after Fit.
type PLS struct {
	components int

	inputDim int
	xMeans   []float64
	rotation *mat.Dense // inputDim x components, R = W (P^T W)^-1
	fitted   bool
}

// NewPLS creates an unfitted projection with k latent components.
func NewPLS(components int) *PLS {
	return &PLS{components: components}
}

// Fit computes the projection from (features, target). Fails with FitError
// when the number of rows is smaller than k, the target is misaligned or
// non-finite, or a latent component degenerates.
func (p *PLS) Fit(feats *mat.Dense, target []float64) error {
	n, d := feats.Dims()
	k := p.components
	if k < 1 {
		return &domain.FitError{Reason: fmt.Sprintf("component count must be positive, got %d", k)}
	}
	if n < k {
		return &domain.FitError{Reason: fmt.Sprintf("%d rows is fewer than %d components", n, k)}
	}
	if k > d {
		return &domain.FitError{Reason: fmt.Sprintf("%d components exceed feature dimension %d", k, d)}
	}
	if len(target) != n {
		return &domain.FitError{Reason: fmt.Sprintf("target length %d does not match %d rows", len(target), n)}
	}
	for _, v := range target {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &domain.FitError{Reason: "target vector contains non-finite values"}
		}
	}

	// Center a working copy; deflation must not touch the caller's matrix.
	xc := mat.DenseCopyOf(feats)
	p.xMeans = make([]float64, d)
	for j := 0; j < d; j++ {
		var mu float64
		for i := 0; i < n; i++ {
			mu += xc.At(i, j)
		}
		mu /= float64(n)
		p.xMeans[j] = mu
		for i := 0; i < n; i++ {
			xc.Set(i, j, xc.At(i, j)-mu)
		}
	}

	yc := make([]float64, n)
	var yMean float64
	for _, v := range target {
		yMean += v
	}
	yMean /= float64(n)
	for i, v := range target {
		yc[i] = v - yMean
	}

	weights := mat.NewDense(d, k, nil)  // W
	loadings := mat.NewDense(d, k, nil) // P
	t := make([]float64, n)
	w := make([]float64, d)

	for c := 0; c < k; c++ {
		// w = Xc^T y, normalized
		var wNorm float64
		for j := 0; j < d; j++ {
			var s float64
			for i := 0; i < n; i++ {
				s += xc.At(i, j) * yc[i]
			}
			w[j] = s
			wNorm += s * s
		}
		if wNorm < degenerateTol {
			return &domain.FitError{Reason: fmt.Sprintf("latent component %d is degenerate", c+1)}
		}
		wNorm = math.Sqrt(wNorm)
		for j := 0; j < d; j++ {
			w[j] /= wNorm
			weights.Set(j, c, w[j])
		}

		// scores t = Xc w
		var tt float64
		for i := 0; i < n; i++ {
			var s float64
			for j := 0; j < d; j++ {
				s += xc.At(i, j) * w[j]
			}
			t[i] = s
			tt += s * s
		}
		if tt < degenerateTol {
			return &domain.FitError{Reason: fmt.Sprintf("latent component %d has zero variance", c+1)}
		}

		// loadings p = Xc^T t / (t^T t), then deflate Xc and y
		for j := 0; j < d; j++ {
			var s float64
			for i := 0; i < n; i++ {
				s += xc.At(i, j) * t[i]
			}
			pj := s / tt
			loadings.Set(j, c, pj)
			for i := 0; i < n; i++ {
				xc.Set(i, j, xc.At(i, j)-t[i]*pj)
			}
		}
		var q float64
		for i := 0; i < n; i++ {
			q += t[i] * yc[i]
		}
		q /= tt
		for i := 0; i < n; i++ {
			yc[i] -= t[i] * q
		}
	}

	// R = W (P^T W)^-1 maps raw centered features directly to scores.
	var ptw mat.Dense
	ptw.Mul(loadings.T(), weights)
	var ptwInv mat.Dense
	if err := ptwInv.Inverse(&ptw); err != nil {
		return &domain.FitError{Reason: fmt.Sprintf("loading system is singular: %v", err)}
	}
	rotation := mat.NewDense(d, k, nil)
	rotation.Mul(weights, &ptwInv)

	p.inputDim = d
	p.rotation = rotation
	p.fitted = true
	return nil
}

// Transform projects a feature matrix onto the fitted latent components.
func (p *PLS) Transform(feats *mat.Dense) (*mat.Dense, error) {
	if !p.fitted {
		return nil, &domain.FitError{Reason: "transform called before fit"}
	}
	n, d := feats.Dims()
	if d != p.inputDim {
		return nil, &domain.FitError{Reason: fmt.Sprintf("feature matrix has %d columns, projection fitted on %d", d, p.inputDim)}
	}

	centered := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			centered.Set(i, j, feats.At(i, j)-p.xMeans[j])
		}
	}

	out := mat.NewDense(n, p.components, nil)
	out.Mul(centered, p.rotation)
	return out, nil
}
