package smooth

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Poly is a polynomial smoother: basis columns x, x², ..., x^degree (no
// constant column) with an identity ridge penalty on the coefficients.
type Poly struct {
	name    string
	degree  int
	basis   *mat.Dense
	penalty *mat.SymDense
}

// NewPoly builds a polynomial basis of the given degree.
func NewPoly(x []float64, degree int, name string) (*Poly, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("smooth: empty covariate")
	}
	if degree < 1 {
		return nil, fmt.Errorf("smooth: polynomial degree must be positive, got %d", degree)
	}
	if name == "" {
		name = "x"
	}
	p := &Poly{name: name, degree: degree}

	basis, err := p.Transform(x)
	if err != nil {
		return nil, err
	}
	p.basis = basis

	pen := mat.NewSymDense(degree, nil)
	for i := 0; i < degree; i++ {
		pen.SetSym(i, i, 1)
	}
	p.penalty = pen
	return p, nil
}

// Name returns the covariate name.
func (p *Poly) Name() string { return p.name }

// Dim returns the number of basis columns.
func (p *Poly) Dim() int { return p.degree }

// Basis returns the training basis matrix.
func (p *Poly) Basis() *mat.Dense { return p.basis }

// Penalty returns the identity ridge penalty.
func (p *Poly) Penalty() *mat.SymDense { return p.penalty }

// Transform evaluates the power basis on new covariate values.
func (p *Poly) Transform(x []float64) (*mat.Dense, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("smooth: empty covariate")
	}
	b := mat.NewDense(len(x), p.degree, nil)
	for i, v := range x {
		pow := 1.0
		for j := 0; j < p.degree; j++ {
			pow *= v
			b.Set(i, j, pow)
		}
	}
	return b, nil
}
