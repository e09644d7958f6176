package smooth

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Multivariate combines several univariate smoothers into one basis whose
// columns are the per-term blocks in order.
type Multivariate struct {
	terms   []Univariate
	offsets []int
	dim     int
	basis   *mat.Dense
}

var _ Smoother = (*Multivariate)(nil)

// NewMultivariate combines the given smoothers.  All of them must have been
// built on covariates of the same length.
func NewMultivariate(terms ...Univariate) (*Multivariate, error) {
	if len(terms) == 0 {
		return nil, fmt.Errorf("smooth: no smooth terms")
	}
	n, _ := terms[0].Basis().Dims()
	m := &Multivariate{
		terms:   terms,
		offsets: make([]int, len(terms)),
	}
	for i, t := range terms {
		rows, _ := t.Basis().Dims()
		if rows != n {
			return nil, fmt.Errorf("smooth: term %q has %d rows, term %q has %d",
				t.Name(), rows, terms[0].Name(), n)
		}
		m.offsets[i] = m.dim
		m.dim += t.Dim()
	}

	m.basis = mat.NewDense(n, m.dim, nil)
	for i, t := range terms {
		m.basis.Slice(0, n, m.offsets[i], m.offsets[i]+t.Dim()).(*mat.Dense).Copy(t.Basis())
	}
	return m, nil
}

// NumTerms returns the number of smooth terms.
func (m *Multivariate) NumTerms() int { return len(m.terms) }

// Dim returns the total number of basis columns.
func (m *Multivariate) Dim() int { return m.dim }

// Basis returns the combined basis matrix.
func (m *Multivariate) Basis() *mat.Dense { return m.basis }

// PenaltyMatrices returns the per-term penalty matrices in column order.
func (m *Multivariate) PenaltyMatrices() []*mat.SymDense {
	out := make([]*mat.SymDense, len(m.terms))
	for i, t := range m.terms {
		out[i] = t.Penalty()
	}
	return out
}

// TermColumns returns the half-open column range of a term.
func (m *Multivariate) TermColumns(term int) (start, end int) {
	return m.offsets[term], m.offsets[term] + m.terms[term].Dim()
}

// TermName returns the covariate name of a term.
func (m *Multivariate) TermName(term int) string { return m.terms[term].Name() }

// Transform evaluates the combined basis on new data; column t of x is the
// covariate for term t.
func (m *Multivariate) Transform(x *mat.Dense) (*mat.Dense, error) {
	n, c := x.Dims()
	if c != len(m.terms) {
		return nil, fmt.Errorf("smooth: got %d covariate columns, want %d", c, len(m.terms))
	}
	out := mat.NewDense(n, m.dim, nil)
	col := make([]float64, n)
	for i, t := range m.terms {
		mat.Col(col, i, x)
		b, err := t.Transform(col)
		if err != nil {
			return nil, fmt.Errorf("smooth: term %q: %w", t.Name(), err)
		}
		out.Slice(0, n, m.offsets[i], m.offsets[i]+t.Dim()).(*mat.Dense).Copy(b)
	}
	return out, nil
}
