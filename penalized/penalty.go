package penalized

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrAlphaLength reports an alpha vector whose length does not match the
// number of smooth terms.
var ErrAlphaLength = errors.New("penalized: alpha length does not match number of smooth terms")

// GAMPenalty assembles the block-structured penalty matrix for a model
// whose design columns are [linear columns] ++ [smooth basis columns].
// Linear columns occupy a zero block; each smooth term contributes its own
// penalty matrix scaled by the term's alpha.  The assembled matrix is
// regenerated on each PenaltyMatrix call, so a single GAMPenalty can serve
// concurrent fits with different alpha vectors.
type GAMPenalty struct {
	terms    []*mat.SymDense
	offsets  []int // column offset of each term, relative to startIdx
	startIdx int   // first smooth column in the combined design
	nCols    int   // total design columns
}

// NewGAMPenalty builds a penalty over totalCols design columns whose smooth
// block starts at startIdx.  terms holds the per-term penalty matrices in
// column order; their sizes must tile exactly the columns after startIdx.
func NewGAMPenalty(terms []*mat.SymDense, startIdx, totalCols int) (*GAMPenalty, error) {
	if startIdx < 0 || startIdx > totalCols {
		return nil, fmt.Errorf("penalized: start index %d out of range for %d columns", startIdx, totalCols)
	}
	offsets := make([]int, len(terms))
	off := 0
	for i, t := range terms {
		offsets[i] = off
		off += t.SymmetricDim()
	}
	if startIdx+off != totalCols {
		return nil, fmt.Errorf("penalized: smooth terms cover %d columns, design has %d after the %d linear columns",
			off, totalCols-startIdx, startIdx)
	}
	return &GAMPenalty{
		terms:    terms,
		offsets:  offsets,
		startIdx: startIdx,
		nCols:    totalCols,
	}, nil
}

// NumTerms returns the number of smooth terms.
func (g *GAMPenalty) NumTerms() int { return len(g.terms) }

// StartIdx returns the index of the first smooth column.
func (g *GAMPenalty) StartIdx() int { return g.startIdx }

// TermColumns returns the half-open column range of a smooth term within
// the combined design matrix.
func (g *GAMPenalty) TermColumns(term int) (start, end int) {
	start = g.startIdx + g.offsets[term]
	return start, start + g.terms[term].SymmetricDim()
}

// ValidateAlpha checks the smoothing parameter vector against the terms.
func (g *GAMPenalty) ValidateAlpha(alpha []float64) error {
	if len(alpha) != len(g.terms) {
		return fmt.Errorf("%w: got %d, want %d", ErrAlphaLength, len(alpha), len(g.terms))
	}
	for i, a := range alpha {
		if a < 0 {
			return fmt.Errorf("penalized: negative alpha %g for term %d", a, i)
		}
	}
	return nil
}

// PenaltyMatrix assembles the full penalty matrix S(alpha).
func (g *GAMPenalty) PenaltyMatrix(alpha []float64) (*mat.SymDense, error) {
	if err := g.ValidateAlpha(alpha); err != nil {
		return nil, err
	}
	s := mat.NewSymDense(g.nCols, nil)
	for t, term := range g.terms {
		k := term.SymmetricDim()
		base := g.startIdx + g.offsets[t]
		for i := 0; i < k; i++ {
			for j := i; j < k; j++ {
				s.SetSym(base+i, base+j, alpha[t]*term.At(i, j))
			}
		}
	}
	return s, nil
}
