package penalized

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func twoTermPenalty(t *testing.T) *GAMPenalty {
	t.Helper()
	t1 := mat.NewSymDense(2, []float64{
		2, -1,
		-1, 2,
	})
	t2 := mat.NewSymDense(3, nil)
	for i := 0; i < 3; i++ {
		t2.SetSym(i, i, 1)
	}
	// 1 linear column, then a 2-column and a 3-column smooth block.
	p, err := NewGAMPenalty([]*mat.SymDense{t1, t2}, 1, 6)
	require.NoError(t, err)
	return p
}

func TestGAMPenaltyAssembly(t *testing.T) {
	p := twoTermPenalty(t)
	require.Equal(t, 2, p.NumTerms())
	require.Equal(t, 1, p.StartIdx())

	s, err := p.PenaltyMatrix([]float64{2, 10})
	require.NoError(t, err)
	require.Equal(t, 6, s.SymmetricDim())

	// Linear block stays zero.
	for j := 0; j < 6; j++ {
		assert.Zero(t, s.At(0, j))
	}
	// First term scaled by 2 at columns 1..2.
	assert.Equal(t, 4.0, s.At(1, 1))
	assert.Equal(t, -2.0, s.At(1, 2))
	assert.Equal(t, 4.0, s.At(2, 2))
	// Second term scaled by 10 at columns 3..5, no cross-block coupling.
	assert.Equal(t, 10.0, s.At(3, 3))
	assert.Equal(t, 10.0, s.At(5, 5))
	assert.Zero(t, s.At(2, 3))
}

func TestGAMPenaltyTermColumns(t *testing.T) {
	p := twoTermPenalty(t)
	start, end := p.TermColumns(0)
	assert.Equal(t, 1, start)
	assert.Equal(t, 3, end)
	start, end = p.TermColumns(1)
	assert.Equal(t, 3, start)
	assert.Equal(t, 6, end)
}

func TestGAMPenaltyAlphaLength(t *testing.T) {
	p := twoTermPenalty(t)

	_, err := p.PenaltyMatrix([]float64{1})
	require.ErrorIs(t, err, ErrAlphaLength)
	_, err = p.PenaltyMatrix([]float64{1, 2, 3})
	require.ErrorIs(t, err, ErrAlphaLength)

	require.ErrorIs(t, p.ValidateAlpha(nil), ErrAlphaLength)
	require.Error(t, p.ValidateAlpha([]float64{1, -2}))
	require.NoError(t, p.ValidateAlpha([]float64{0, 0}))
}

func TestGAMPenaltyBadTiling(t *testing.T) {
	term := mat.NewSymDense(2, nil)
	_, err := NewGAMPenalty([]*mat.SymDense{term}, 1, 5)
	require.Error(t, err)
	_, err = NewGAMPenalty([]*mat.SymDense{term}, -1, 3)
	require.Error(t, err)
}

func TestGAMPenaltyNoTerms(t *testing.T) {
	// A model without smooth columns carries an all-zero penalty.
	p, err := NewGAMPenalty(nil, 3, 3)
	require.NoError(t, err)
	s, err := p.PenaltyMatrix(nil)
	require.NoError(t, err)
	require.Equal(t, 3, s.SymmetricDim())
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.Zero(t, s.At(i, j))
		}
	}
}
