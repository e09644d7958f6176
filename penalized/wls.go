package penalized

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrSingularMatrix reports that the (augmented) design matrix is rank
// deficient beyond what the penalty regularizes.
var ErrSingularMatrix = errors.New("penalized: singular design matrix")

// DefaultPenaltyScale is the factor applied to the penalty matrix before
// the square-root augmentation.  The value 2 reproduces reference fits with
// the deviance-halving convention; it is exposed as a parameter rather than
// a hardcode so alternative conventions can be validated against it.
const DefaultPenaltyScale = 2.0

// WLSResult holds the solution of a weighted least squares problem for
// reuse by the fitting loop.
type WLSResult struct {
	// Params is the coefficient vector, length p.
	Params []float64
	// Fitted is X·Params on the rows of the original (unaugmented) design.
	Fitted []float64
	// NormalizedCovParams is (XᵀWX)⁻¹ of the solved (augmented) system;
	// multiply by a scale estimate to obtain the parameter covariance.
	NormalizedCovParams *mat.SymDense
}

// WLS solves the weighted least squares problem min_b Σ w_i (y_i - x_i·b)²
// by Cholesky factorization of the normal equations.  A factorization
// failure surfaces as ErrSingularMatrix and is never patched.
func WLS(x *mat.Dense, y, w []float64) (*WLSResult, error) {
	n, p := x.Dims()
	if len(y) != n {
		return nil, fmt.Errorf("penalized: response length %d does not match %d rows", len(y), n)
	}
	if len(w) != n {
		return nil, fmt.Errorf("penalized: weights length %d does not match %d rows", len(w), n)
	}

	// Scale rows by sqrt(w) and solve the ordinary problem.
	xw := mat.NewDense(n, p, nil)
	yw := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		if w[i] < 0 {
			return nil, fmt.Errorf("penalized: negative weight %g at row %d", w[i], i)
		}
		sw := math.Sqrt(w[i])
		for j := 0; j < p; j++ {
			xw.Set(i, j, sw*x.At(i, j))
		}
		yw.SetVec(i, sw*y[i])
	}

	var xtx mat.SymDense
	xtx.SymOuterK(1, xw.T())

	var chol mat.Cholesky
	if ok := chol.Factorize(&xtx); !ok {
		return nil, ErrSingularMatrix
	}

	xty := mat.NewVecDense(p, nil)
	xty.MulVec(xw.T(), yw)

	params := mat.NewVecDense(p, nil)
	if err := chol.SolveVecTo(params, xty); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingularMatrix, err)
	}

	var cov mat.SymDense
	if err := chol.InverseTo(&cov); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingularMatrix, err)
	}

	fitted := mat.NewVecDense(n, nil)
	fitted.MulVec(x, params)

	res := &WLSResult{
		Params:              make([]float64, p),
		Fitted:              make([]float64, n),
		NormalizedCovParams: &cov,
	}
	copy(res.Params, params.RawVector().Data)
	copy(res.Fitted, fitted.RawVector().Data)
	return res, nil
}

// WLSAugmented solves the penalized weighted least squares problem given a
// precomputed penalty square root rs (RᵀR = scaled penalty).  The design is
// augmented with the p penalty rows, the response with zeros and the
// weights with ones; the extra rows contribute exactly bᵀRᵀRb to the
// weighted residual sum of squares.  Fitted values are reported on the
// original n rows only.
func WLSAugmented(x *mat.Dense, y []float64, rs *mat.Dense, w []float64) (*WLSResult, error) {
	n, p := x.Dims()
	if _, rc := rs.Dims(); rc != p {
		return nil, fmt.Errorf("penalized: penalty root has %d columns, design has %d", rc, p)
	}

	xa, ya, wa := makeAugmented(x, y, rs, w)
	res, err := WLS(xa, ya, wa)
	if err != nil {
		return nil, err
	}
	res.Fitted = res.Fitted[:n]
	return res, nil
}

// PenalizedWLS minimizes Σ w_i (y_i - x_i·b)² + penaltyScale · bᵀSb.  A
// penaltyScale <= 0 selects DefaultPenaltyScale.
func PenalizedWLS(x *mat.Dense, y []float64, s *mat.SymDense, w []float64, penaltyScale float64) (*WLSResult, error) {
	if penaltyScale <= 0 {
		penaltyScale = DefaultPenaltyScale
	}
	p := s.SymmetricDim()
	scaled := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			scaled.SetSym(i, j, penaltyScale*s.At(i, j))
		}
	}
	rs, err := MatrixSqrt(scaled)
	if err != nil {
		return nil, err
	}
	return WLSAugmented(x, y, rs, w)
}

// makeAugmented stacks the penalty square root under the design matrix and
// extends the response with zeros and the weights with ones.
func makeAugmented(x *mat.Dense, y []float64, rs *mat.Dense, w []float64) (*mat.Dense, []float64, []float64) {
	n, p := x.Dims()
	q, _ := rs.Dims()

	xa := mat.NewDense(n+q, p, nil)
	xa.Slice(0, n, 0, p).(*mat.Dense).Copy(x)
	xa.Slice(n, n+q, 0, p).(*mat.Dense).Copy(rs)

	ya := make([]float64, n+q)
	copy(ya, y)

	wa := make([]float64, n+q)
	copy(wa, w)
	for i := n; i < n+q; i++ {
		wa[i] = 1
	}
	return xa, ya, wa
}
