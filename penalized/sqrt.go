// Package penalized implements the penalized weighted least squares
// primitive used by the P-IRLS fitting loop: a PSD matrix square root, the
// penalty-augmented design matrix, the weighted solve, and the
// block-structured multivariate GAM penalty.
package penalized

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrInvalidPenalty reports a penalty matrix that is not positive
// semidefinite.
var ErrInvalidPenalty = errors.New("penalized: penalty matrix is not positive semidefinite")

// Relative eigenvalue tolerance separating numerical noise from a genuine
// negative eigenvalue.
const psdTol = 1e-10

// MatrixSqrt returns a matrix R such that Rᵀ R = S for a symmetric positive
// semidefinite S, computed from the symmetric eigendecomposition.  Any
// valid square root yields the same penalized solution, so no particular
// factor (Cholesky, principal root) is promised.  The zero matrix yields a
// zero matrix of the same shape.  Eigenvalues below -tol relative to the
// spectral radius make S invalid and return ErrInvalidPenalty.
func MatrixSqrt(s *mat.SymDense) (*mat.Dense, error) {
	p := s.SymmetricDim()

	var es mat.EigenSym
	if ok := es.Factorize(s, true); !ok {
		return nil, fmt.Errorf("%w: eigendecomposition failed", ErrInvalidPenalty)
	}
	vals := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	var radius float64
	for _, v := range vals {
		if a := math.Abs(v); a > radius {
			radius = a
		}
	}
	tol := psdTol * math.Max(radius, 1)

	// R = diag(sqrt(lambda)) Vᵀ, so Rᵀ R = V diag(lambda) Vᵀ = S.
	r := mat.NewDense(p, p, nil)
	for i, v := range vals {
		if v < -tol {
			return nil, fmt.Errorf("%w: eigenvalue %g", ErrInvalidPenalty, v)
		}
		if v < 0 {
			v = 0
		}
		sq := math.Sqrt(v)
		for j := 0; j < p; j++ {
			r.Set(i, j, sq*vecs.At(j, i))
		}
	}
	return r, nil
}
