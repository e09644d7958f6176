// Package smooth builds spline basis expansions and their roughness
// penalties for generalized additive models.  A Univariate smoother turns
// one covariate into a block of basis columns plus a PSD penalty matrix; a
// Multivariate smoother combines several of them and tracks the column
// range of each term.
package smooth

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Univariate is a single-covariate basis expansion.
type Univariate interface {
	// Name identifies the covariate, for reporting.
	Name() string
	// Dim returns the number of basis columns.
	Dim() int
	// Basis returns the n x Dim basis matrix evaluated on the training
	// covariate.  The returned matrix is shared; callers must not modify it.
	Basis() *mat.Dense
	// Penalty returns the Dim x Dim symmetric PSD roughness penalty.
	Penalty() *mat.SymDense
	// Transform evaluates the basis on new covariate values.
	Transform(x []float64) (*mat.Dense, error)
}

// Smoother is the multi-term basis capability consumed by the GAM model:
// a combined basis matrix, per-term penalty matrices and column masks.
type Smoother interface {
	NumTerms() int
	// Dim returns the total number of basis columns over all terms.
	Dim() int
	Basis() *mat.Dense
	PenaltyMatrices() []*mat.SymDense
	// TermColumns returns the half-open column range of a term within the
	// combined basis.
	TermColumns(term int) (start, end int)
	TermName(term int) string
	// Transform evaluates the combined basis on new data, one column of x
	// per term.
	Transform(x *mat.Dense) (*mat.Dense, error)
}

// BSpline is a P-spline smoother: a B-spline basis on uniform knots with a
// difference penalty on adjacent coefficients.
type BSpline struct {
	name    string
	degree  int
	diffOrd int
	k       int
	lo, hi  float64
	knots   []float64
	basis   *mat.Dense
	penalty *mat.SymDense
}

// BSplineOption configures a BSpline.
type BSplineOption func(*BSpline)

// WithDegree sets the spline degree (default 3, cubic).
func WithDegree(degree int) BSplineOption {
	return func(s *BSpline) { s.degree = degree }
}

// WithDiffOrder sets the order of the difference penalty (default 2).
func WithDiffOrder(order int) BSplineOption {
	return func(s *BSpline) { s.diffOrd = order }
}

// WithName names the covariate for reporting.
func WithName(name string) BSplineOption {
	return func(s *BSpline) { s.name = name }
}

// NewBSpline builds a B-spline basis with numBasis columns over the range
// of x, with uniform knots extended past both ends.
func NewBSpline(x []float64, numBasis int, opts ...BSplineOption) (*BSpline, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("smooth: empty covariate")
	}
	s := &BSpline{
		name:    "x",
		degree:  3,
		diffOrd: 2,
		k:       numBasis,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.degree < 1 {
		return nil, fmt.Errorf("smooth: degree must be positive, got %d", s.degree)
	}
	if s.k <= s.degree+1 {
		return nil, fmt.Errorf("smooth: need more than %d basis columns for degree %d, got %d",
			s.degree+1, s.degree, s.k)
	}
	if s.diffOrd < 1 || s.diffOrd >= s.k {
		return nil, fmt.Errorf("smooth: difference order %d out of range for %d columns", s.diffOrd, s.k)
	}

	s.lo, s.hi = x[0], x[0]
	for _, v := range x {
		if v < s.lo {
			s.lo = v
		}
		if v > s.hi {
			s.hi = v
		}
	}
	if s.hi <= s.lo {
		return nil, fmt.Errorf("smooth: covariate %q is constant", s.name)
	}

	// Uniform knots t_0..t_{k+degree} with degree extra knots on each side,
	// so the domain [lo, hi] equals [t_degree, t_k].
	step := (s.hi - s.lo) / float64(s.k-s.degree)
	s.knots = make([]float64, s.k+s.degree+1)
	for i := range s.knots {
		s.knots[i] = s.lo + float64(i-s.degree)*step
	}

	basis, err := s.Transform(x)
	if err != nil {
		return nil, err
	}
	s.basis = basis
	s.penalty = diffPenalty(s.k, s.diffOrd)
	return s, nil
}

// Name returns the covariate name.
func (s *BSpline) Name() string { return s.name }

// Dim returns the number of basis columns.
func (s *BSpline) Dim() int { return s.k }

// Basis returns the training basis matrix.
func (s *BSpline) Basis() *mat.Dense { return s.basis }

// Penalty returns the difference penalty DᵀD.
func (s *BSpline) Penalty() *mat.SymDense { return s.penalty }

// Transform evaluates the basis on new covariate values.  Values outside
// the training range are clamped to the boundary.
func (s *BSpline) Transform(x []float64) (*mat.Dense, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("smooth: empty covariate")
	}
	b := mat.NewDense(len(x), s.k, nil)
	for i, v := range x {
		if v < s.lo {
			v = s.lo
		}
		if v > s.hi {
			v = s.hi
		}
		for j := 0; j < s.k; j++ {
			b.Set(i, j, s.bspl(j, s.degree, v))
		}
	}
	return b, nil
}

// bspl evaluates the i-th B-spline of degree d at v by the Cox-de Boor
// recursion.  The last interval is treated as closed on the right so the
// basis sums to one at v == hi.
func (s *BSpline) bspl(i, d int, v float64) float64 {
	if d == 0 {
		if v == s.hi {
			if s.knots[i] < v && v <= s.knots[i+1] {
				return 1
			}
			return 0
		}
		if s.knots[i] <= v && v < s.knots[i+1] {
			return 1
		}
		return 0
	}
	var out float64
	if den := s.knots[i+d] - s.knots[i]; den > 0 {
		out += (v - s.knots[i]) / den * s.bspl(i, d-1, v)
	}
	if den := s.knots[i+d+1] - s.knots[i+1]; den > 0 {
		out += (s.knots[i+d+1] - v) / den * s.bspl(i+1, d-1, v)
	}
	return out
}

// diffPenalty returns DᵀD for the order-th difference matrix D of shape
// (k-order) x k.
func diffPenalty(k, order int) *mat.SymDense {
	// Difference coefficients: alternating-sign binomials.
	c := make([]float64, order+1)
	c[0] = 1
	for i := 1; i <= order; i++ {
		c[i] = -c[i-1] * float64(order-i+1) / float64(i)
	}

	d := mat.NewDense(k-order, k, nil)
	for i := 0; i < k-order; i++ {
		for j := 0; j <= order; j++ {
			d.Set(i, i+j, c[j])
		}
	}
	var p mat.SymDense
	p.SymOuterK(1, d.T())
	return &p
}
