package gam

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/n0madic/go-gam/penalized"
)

// ErrPerfectSeparation reports a degenerate fit in which the fitted means
// collapse onto the observed responses, making the likelihood unbounded.
// No result is returned in this case.
var ErrPerfectSeparation = errors.New("gam: perfect separation detected, results not available")

// Absolute residual bound for the perfect separation check.  The residuals
// are compared against zero, so no relative term applies; a relative bound
// on |y| would misfire on well-fitting models with large responses.
const sepAtol = 1e-8

// FitHistory is the append-only iteration log.  Entry 0 is the pre-fit
// sentinel (nil params, +Inf deviance); entry 1 is the initialization;
// each iteration appends one more (params, deviance) pair.
type FitHistory struct {
	Params     [][]float64
	Deviance   []float64
	Iterations int
}

// fitPIRLS runs penalized iteratively reweighted least squares.  All
// mutable iteration state lives in this invocation; the model is read-only
// throughout.
func (g *GAM) fitPIRLS(cfg *fitConfig, alpha []float64) (*Result, error) {
	y := g.endog
	x := g.exog
	n, p := x.Dims()

	// The penalty square root is computed once, up front: an invalid
	// penalty matrix fails here, before any iteration.
	s, err := g.penal.PenaltyMatrix(alpha)
	if err != nil {
		return nil, err
	}
	scaled := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			scaled.SetSym(i, j, g.penaltyScale*s.At(i, j))
		}
	}
	rs, err := penalized.MatrixSqrt(scaled)
	if err != nil {
		return nil, err
	}

	prior := g.prior()
	offset := g.offsetVec()

	var lp, mu []float64
	if cfg.startParams == nil {
		mu = g.fam.StartingMu(y)
		lp = g.fam.Predict(mu)
	} else {
		lp = make([]float64, n)
		xv := mat.NewVecDense(n, lp)
		xv.MulVec(x, mat.NewVecDense(p, cfg.startParams))
		for i := range lp {
			lp[i] += offset[i]
		}
		mu = g.fam.Fitted(lp)
	}
	dev := g.fam.Deviance(y, mu, prior)

	hist := FitHistory{
		Params:   [][]float64{nil, cloneFloats(cfg.startParams)},
		Deviance: []float64{math.Inf(1), dev},
	}

	params := cloneFloats(cfg.startParams)
	var cov *mat.SymDense
	converged := false

	if cfg.maxIter == 0 {
		// Evaluate deviance at a fixed parameter vector, no optimization.
		return g.newResult(methodPIRLS, params, cov, alpha, prior, mu, lp, converged, hist), nil
	}

	w := make([]float64, n)
	z := make([]float64, n)
	deriv := make([]float64, n)

	for it := 0; it < cfg.maxIter; it++ {
		fw := g.fam.Weights(mu)
		for i := range w {
			w[i] = prior[i] * fw[i]
		}

		// Working response z = eta + g'(mu)(y - mu) - offset.
		g.fam.Link().Deriv(mu, deriv)
		for i := range z {
			z[i] = lp[i] + deriv[i]*(y[i]-mu[i]) - offset[i]
		}

		wres, err := penalized.WLSAugmented(x, z, rs, w)
		if err != nil {
			return nil, err
		}
		params = wres.Params
		cov = wres.NormalizedCovParams

		for i := range lp {
			lp[i] = wres.Fitted[i] + offset[i]
		}
		mu = g.fam.Fitted(lp)
		dev = g.fam.Deviance(y, mu, prior)

		hist.Params = append(hist.Params, cloneFloats(params))
		hist.Deviance = append(hist.Deviance, dev)
		hist.Iterations = it + 1

		if allclose(mu, y) {
			return nil, fmt.Errorf("%w (iteration %d)", ErrPerfectSeparation, it+1)
		}

		nd := len(hist.Deviance)
		if deviancesConverged(hist.Deviance[nd-2], hist.Deviance[nd-1], cfg.tol) {
			converged = true
			break
		}
	}

	return g.newResult(methodPIRLS, params, cov, alpha, prior, mu, lp, converged, hist), nil
}

// estimateScale is the deviance-based scale estimator dev/(n - p).
func (g *GAM) estimateScale(mu, prior []float64) float64 {
	df := float64(len(g.endog) - g.NumParams())
	if df < 1 {
		df = 1
	}
	return g.fam.Deviance(g.endog, mu, prior) / df
}

// deviancesConverged compares the two most recent deviance values by
// relative change, falling back to absolute change near zero.
func deviancesConverged(prev, cur, tol float64) bool {
	if math.IsInf(prev, 0) {
		return false
	}
	return math.Abs(cur-prev) <= tol*math.Max(1, math.Abs(prev))
}

// allclose reports whether mu is numerically indistinguishable from y for
// every observation.
func allclose(mu, y []float64) bool {
	for i := range y {
		if math.Abs(mu[i]-y[i]) > sepAtol {
			return false
		}
	}
	return true
}

func cloneFloats(x []float64) []float64 {
	if x == nil {
		return nil
	}
	return append([]float64(nil), x...)
}
