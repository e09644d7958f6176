package penalized

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func randomProblem(t *testing.T, n, p int, seed int64) (*mat.Dense, []float64, []float64) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	x := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		x.Set(i, 0, 1)
		for j := 1; j < p; j++ {
			x.Set(i, j, rng.NormFloat64())
		}
	}
	y := make([]float64, n)
	w := make([]float64, n)
	for i := range y {
		y[i] = rng.NormFloat64()
		w[i] = 0.5 + rng.Float64()
	}
	return x, y, w
}

func TestWLSMatchesNormalEquations(t *testing.T) {
	x, y, w := randomProblem(t, 40, 3, 7)
	res, err := WLS(x, y, w)
	require.NoError(t, err)

	// Reference solution of (XᵀWX) b = XᵀWy via dense solve.
	n, p := x.Dims()
	xtwx := mat.NewDense(p, p, nil)
	xtwy := mat.NewVecDense(p, nil)
	for i := 0; i < n; i++ {
		for a := 0; a < p; a++ {
			xtwy.SetVec(a, xtwy.AtVec(a)+w[i]*x.At(i, a)*y[i])
			for b := 0; b < p; b++ {
				xtwx.Set(a, b, xtwx.At(a, b)+w[i]*x.At(i, a)*x.At(i, b))
			}
		}
	}
	var want mat.VecDense
	require.NoError(t, want.SolveVec(xtwx, xtwy))

	for j := 0; j < p; j++ {
		assert.InDelta(t, want.AtVec(j), res.Params[j], 1e-9)
	}
}

func TestPenalizedWLSZeroPenalty(t *testing.T) {
	// An all-zero penalty matrix must have no augmentation effect.
	x, y, w := randomProblem(t, 30, 4, 11)
	s := mat.NewSymDense(4, nil)

	plain, err := WLS(x, y, w)
	require.NoError(t, err)
	pen, err := PenalizedWLS(x, y, s, w, DefaultPenaltyScale)
	require.NoError(t, err)

	for j := range plain.Params {
		assert.InDelta(t, plain.Params[j], pen.Params[j], 1e-10)
	}
	require.Len(t, pen.Fitted, 30)
}

func TestPenalizedWLSIdempotent(t *testing.T) {
	x, y, w := randomProblem(t, 25, 3, 3)
	s := mat.NewSymDense(3, []float64{
		2, -1, 0,
		-1, 2, -1,
		0, -1, 2,
	})

	first, err := PenalizedWLS(x, y, s, w, DefaultPenaltyScale)
	require.NoError(t, err)
	second, err := PenalizedWLS(x, y, s, w, DefaultPenaltyScale)
	require.NoError(t, err)

	// The solver is a pure function: identical inputs, identical output.
	require.Equal(t, first.Params, second.Params)
	require.Equal(t, first.Fitted, second.Fitted)
}

func TestPenalizedWLSShrinks(t *testing.T) {
	x, y, w := randomProblem(t, 50, 3, 19)
	eye := mat.NewSymDense(3, nil)
	for i := 0; i < 3; i++ {
		eye.SetSym(i, i, 1)
	}

	plain, err := WLS(x, y, w)
	require.NoError(t, err)
	pen, err := PenalizedWLS(x, y, eye, w, 1e6)
	require.NoError(t, err)

	normPlain := 0.0
	normPen := 0.0
	for j := range plain.Params {
		normPlain += plain.Params[j] * plain.Params[j]
		normPen += pen.Params[j] * pen.Params[j]
	}
	assert.Less(t, normPen, normPlain)
	assert.Less(t, normPen, 1e-3)
}

func TestWLSSingular(t *testing.T) {
	// Duplicate columns with no penalty: the solve must fail, not patch.
	n := 20
	x := mat.NewDense(n, 2, nil)
	y := make([]float64, n)
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		v := float64(i)
		x.Set(i, 0, v)
		x.Set(i, 1, v)
		y[i] = v
		w[i] = 1
	}
	_, err := WLS(x, y, w)
	require.ErrorIs(t, err, ErrSingularMatrix)

	_, err = PenalizedWLS(x, y, mat.NewSymDense(2, nil), w, DefaultPenaltyScale)
	require.ErrorIs(t, err, ErrSingularMatrix)
}

func TestWLSInputValidation(t *testing.T) {
	x := mat.NewDense(5, 2, nil)
	_, err := WLS(x, make([]float64, 4), make([]float64, 5))
	require.Error(t, err)
	_, err = WLS(x, make([]float64, 5), make([]float64, 4))
	require.Error(t, err)

	w := []float64{1, 1, -1, 1, 1}
	for i := 0; i < 5; i++ {
		x.Set(i, 0, 1)
		x.Set(i, 1, float64(i))
	}
	_, err = WLS(x, make([]float64, 5), w)
	require.Error(t, err)
}

func TestPenalizedWLSRidgeClosedForm(t *testing.T) {
	// With S = I and unit weights the estimator is (XᵀX + c·I)⁻¹ Xᵀy.
	x, y, _ := randomProblem(t, 30, 3, 23)
	w := make([]float64, 30)
	for i := range w {
		w[i] = 1
	}
	eye := mat.NewSymDense(3, nil)
	for i := 0; i < 3; i++ {
		eye.SetSym(i, i, 1)
	}
	const c = 3.5

	res, err := PenalizedWLS(x, y, eye, w, c)
	require.NoError(t, err)

	n, p := x.Dims()
	lhs := mat.NewDense(p, p, nil)
	rhs := mat.NewVecDense(p, nil)
	for i := 0; i < n; i++ {
		for a := 0; a < p; a++ {
			rhs.SetVec(a, rhs.AtVec(a)+x.At(i, a)*y[i])
			for b := 0; b < p; b++ {
				lhs.Set(a, b, lhs.At(a, b)+x.At(i, a)*x.At(i, b))
			}
		}
	}
	for a := 0; a < p; a++ {
		lhs.Set(a, a, lhs.At(a, a)+c)
	}
	var want mat.VecDense
	require.NoError(t, want.SolveVec(lhs, rhs))
	for j := 0; j < p; j++ {
		assert.InDelta(t, want.AtVec(j), res.Params[j], 1e-9)
	}
}
