package gam

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/n0madic/go-gam/penalized"
)

const (
	methodPIRLS    = "PIRLS"
	methodGradient = "gradient"
)

// Result holds a fitted model.  It is created once at loop termination and
// is immutable; accessors return copies of internal state.
type Result struct {
	// Params is the final coefficient vector, length NumParams.  It is nil
	// for a maxIter=0 evaluation without starting parameters.
	Params []float64
	// NormalizedCovParams is the normalized covariance of the last solve;
	// multiply by Scale for the parameter covariance.  Nil when the
	// reweighting loop never ran.
	NormalizedCovParams *mat.SymDense
	// Scale is the deviance-based scale estimate.
	Scale float64
	// Converged reports whether the deviance criterion was met before the
	// iteration cap; false after MaxIterationExceeded, which is not fatal.
	Converged bool
	// Method is the fitting method label ("PIRLS" or "gradient").
	Method string
	// Alpha is the smoothing parameter vector used by this fit.
	Alpha []float64
	// FitHistory is the per-iteration (params, deviance) log.
	FitHistory FitHistory

	model   *GAM
	mu      []float64
	linPred []float64
	prior   []float64
}

func (g *GAM) newResult(method string, params []float64, cov *mat.SymDense, alpha, prior, mu, lp []float64, converged bool, hist FitHistory) *Result {
	return &Result{
		Params:              params,
		NormalizedCovParams: cov,
		Scale:               g.estimateScale(mu, prior),
		Converged:           converged,
		Method:              method,
		Alpha:               cloneFloats(alpha),
		FitHistory:          hist,
		model:               g,
		mu:                  cloneFloats(mu),
		linPred:             cloneFloats(lp),
		prior:               prior,
	}
}

// Deviance returns the final deviance of the fit.
func (r *Result) Deviance() float64 {
	return r.model.fam.Deviance(r.model.endog, r.mu, r.prior)
}

// FittedValues returns the fitted means.
func (r *Result) FittedValues() []float64 { return cloneFloats(r.mu) }

// LinearPredictor returns the final linear predictor X·params + offset.
func (r *Result) LinearPredictor() []float64 { return cloneFloats(r.linPred) }

// Resid returns the response residuals y - mu.
func (r *Result) Resid() []float64 {
	out := make([]float64, len(r.mu))
	for i := range out {
		out[i] = r.model.endog[i] - r.mu[i]
	}
	return out
}

// PearsonResid returns the Pearson residuals (y - mu)·sqrt(w)/sqrt(V(mu)).
func (r *Result) PearsonResid() []float64 {
	n := len(r.mu)
	v := make([]float64, n)
	r.model.fam.Variance().Var(r.mu, v)
	out := make([]float64, n)
	for i := range out {
		out[i] = (r.model.endog[i] - r.mu[i]) * math.Sqrt(r.prior[i]/v[i])
	}
	return out
}

// CovParams returns the parameter covariance NormalizedCovParams · Scale.
func (r *Result) CovParams() (*mat.SymDense, error) {
	if r.NormalizedCovParams == nil {
		return nil, fmt.Errorf("gam: no covariance available (loop never ran)")
	}
	p := r.NormalizedCovParams.SymmetricDim()
	cov := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			cov.SetSym(i, j, r.Scale*r.NormalizedCovParams.At(i, j))
		}
	}
	return cov, nil
}

// hessianFactor returns the per-observation weighting of the hessian at the
// fitted means.  The expected (Fisher) factor is w / (g'(mu)² V(mu) scale);
// the observed factor adds a correction term proportional to the residual,
// which vanishes for canonical links.
func (r *Result) hessianFactor(observed bool) []float64 {
	mu := r.mu
	n := len(mu)
	link := r.model.fam.Link()
	vari := r.model.fam.Variance()

	d := make([]float64, n)
	v := make([]float64, n)
	link.Deriv(mu, d)
	vari.Var(mu, v)

	factor := make([]float64, n)
	for i := range factor {
		factor[i] = r.prior[i] / (d[i] * d[i] * v[i] * r.Scale)
	}
	if !observed {
		return factor
	}

	d2 := make([]float64, n)
	vd := make([]float64, n)
	link.Deriv2(mu, d2)
	vari.Deriv(mu, vd)
	for i := range factor {
		corr := (r.model.endog[i] - mu[i]) * (vd[i]/v[i] + d2[i]/d[i])
		factor[i] *= 1 + corr
	}
	return factor
}

// hatProducts computes wexog = sqrt(factor) ⊙ X and M = wexog · H⁻¹ with
// H⁻¹ the covariance of the parameters.  The elementwise product
// wexog ∘ M summed over rows gives the hat matrix diagonal; summed over
// columns it gives the effective degrees of freedom.
func (r *Result) hatProducts(observed bool) (wexog, m *mat.Dense, err error) {
	if r.NormalizedCovParams == nil {
		return nil, nil, fmt.Errorf("gam: no covariance available (loop never ran)")
	}
	n, p := r.model.exog.Dims()
	factor := r.hessianFactor(observed)

	wexog = mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		sw := math.Sqrt(math.Max(factor[i], 0))
		for j := 0; j < p; j++ {
			wexog.Set(i, j, sw*r.model.exog.At(i, j))
		}
	}

	hinv := mat.NewDense(p, p, nil)
	for i := 0; i < p; i++ {
		for j := 0; j < p; j++ {
			hinv.Set(i, j, r.Scale*r.NormalizedCovParams.At(i, j))
		}
	}
	m = mat.NewDense(n, p, nil)
	m.Mul(wexog, hinv)
	return wexog, m, nil
}

// HatMatrixDiag returns the diagonal of the hat matrix, one leverage value
// per observation.  observed selects the observed rather than expected
// hessian weighting; for canonical links the two agree.
func (r *Result) HatMatrixDiag(observed bool) ([]float64, error) {
	wexog, m, err := r.hatProducts(observed)
	if err != nil {
		return nil, err
	}
	n, p := wexog.Dims()
	hd := make([]float64, n)
	for i := 0; i < n; i++ {
		var s float64
		for j := 0; j < p; j++ {
			s += wexog.At(i, j) * m.At(i, j)
		}
		hd[i] = s
	}
	return hd, nil
}

// EDF returns the effective degrees of freedom per design column: the same
// product as the hat matrix diagonal, summed over observations instead of
// columns.  Its total equals the trace of the hat matrix.
func (r *Result) EDF() ([]float64, error) {
	wexog, m, err := r.hatProducts(true)
	if err != nil {
		return nil, err
	}
	n, p := wexog.Dims()
	edf := make([]float64, p)
	for j := 0; j < p; j++ {
		var s float64
		for i := 0; i < n; i++ {
			s += wexog.At(i, j) * m.At(i, j)
		}
		edf[j] = s
	}
	return edf, nil
}

// EDFTotal returns the trace of the hat matrix, the model's total effective
// degrees of freedom.
func (r *Result) EDFTotal() (float64, error) {
	edf, err := r.EDF()
	if err != nil {
		return 0, err
	}
	return floats.Sum(edf), nil
}

// termIndices returns the global design-column indices of a smooth term,
// optionally prepended with the constant linear column.
func (r *Result) termIndices(term int, includeConstant bool) ([]int, error) {
	if r.model.smoother == nil {
		return nil, fmt.Errorf("gam: model has no smooth terms")
	}
	if term < 0 || term >= r.model.penal.NumTerms() {
		return nil, fmt.Errorf("gam: smooth term %d out of range [0, %d)", term, r.model.penal.NumTerms())
	}
	start, end := r.model.penal.TermColumns(term)
	var idx []int
	if includeConstant && r.model.constIdx >= 0 {
		idx = append(idx, r.model.constIdx)
	}
	for j := start; j < end; j++ {
		idx = append(idx, j)
	}
	return idx, nil
}

// PartialValues returns the contribution of one smooth term to the linear
// prediction together with its pointwise standard error.  This is the
// linear-scale partial fit; it is not the expected response when the link
// is not linear.
func (r *Result) PartialValues(term int, includeConstant bool) (linpred, se []float64, err error) {
	idx, err := r.termIndices(term, includeConstant)
	if err != nil {
		return nil, nil, err
	}
	cov, err := r.CovParams()
	if err != nil {
		return nil, nil, err
	}
	n := len(r.model.endog)
	k := len(idx)

	exogPart := mat.NewDense(n, k, nil)
	sub := make([]float64, k)
	covSub := mat.NewDense(k, k, nil)
	for a, ja := range idx {
		sub[a] = r.Params[ja]
		for i := 0; i < n; i++ {
			exogPart.Set(i, a, r.model.exog.At(i, ja))
		}
		for b, jb := range idx {
			covSub.Set(a, b, cov.At(ja, jb))
		}
	}

	lpv := mat.NewVecDense(n, nil)
	lpv.MulVec(exogPart, mat.NewVecDense(k, sub))

	// var_i = x_i · covSub · x_iᵀ for each row of the partial design.
	tmp := mat.NewDense(n, k, nil)
	tmp.Mul(exogPart, covSub)
	se = make([]float64, n)
	for i := 0; i < n; i++ {
		var s float64
		for j := 0; j < k; j++ {
			s += tmp.At(i, j) * exogPart.At(i, j)
		}
		se[i] = math.Sqrt(math.Max(s, 0))
	}

	linpred = make([]float64, n)
	copy(linpred, lpv.RawVector().Data)
	return linpred, se, nil
}

// WaldTest is the result of a significance test on one smooth term.
type WaldTest struct {
	Statistic float64
	PValue    float64
	DF        int
}

// TestSignificance performs a Wald test of the hypothesis that all
// coefficients of one smooth term are zero, against a chi-squared reference
// with one degree of freedom per coefficient.
func (r *Result) TestSignificance(term int) (*WaldTest, error) {
	idx, err := r.termIndices(term, false)
	if err != nil {
		return nil, err
	}
	cov, err := r.CovParams()
	if err != nil {
		return nil, err
	}
	k := len(idx)

	sub := mat.NewVecDense(k, nil)
	covSub := mat.NewSymDense(k, nil)
	for a, ja := range idx {
		sub.SetVec(a, r.Params[ja])
		for b, jb := range idx {
			if b >= a {
				covSub.SetSym(a, b, cov.At(ja, jb))
			}
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(covSub); !ok {
		return nil, fmt.Errorf("%w: constrained covariance block", penalized.ErrSingularMatrix)
	}
	solved := mat.NewVecDense(k, nil)
	if err := chol.SolveVecTo(solved, sub); err != nil {
		return nil, fmt.Errorf("%w: %v", penalized.ErrSingularMatrix, err)
	}
	stat := mat.Dot(sub, solved)

	chi2 := distuv.ChiSquared{K: float64(k)}
	return &WaldTest{
		Statistic: stat,
		PValue:    chi2.Survival(stat),
		DF:        k,
	}, nil
}

// Predict evaluates the fitted model on new data.  exogLinear supplies the
// linear covariate columns (nil if the model has none) and x one covariate
// column per smooth term, transformed through the smoother's basis.
func (r *Result) Predict(exogLinear, x *mat.Dense) ([]float64, error) {
	if r.Params == nil {
		return nil, fmt.Errorf("gam: no parameters available")
	}
	g := r.model

	var n int
	switch {
	case exogLinear != nil:
		n, _ = exogLinear.Dims()
	case x != nil:
		n, _ = x.Dims()
	default:
		return nil, fmt.Errorf("gam: no prediction data")
	}

	if (exogLinear == nil) != (g.kExogLinear == 0) {
		return nil, fmt.Errorf("gam: model has %d linear columns", g.kExogLinear)
	}
	if exogLinear != nil {
		if _, c := exogLinear.Dims(); c != g.kExogLinear {
			return nil, fmt.Errorf("gam: got %d linear columns, want %d", c, g.kExogLinear)
		}
	}
	if (x == nil) != (g.smoother == nil) {
		return nil, fmt.Errorf("gam: smooth covariates required for a model with smooth terms")
	}

	p := g.NumParams()
	ex := mat.NewDense(n, p, nil)
	if exogLinear != nil {
		ex.Slice(0, n, 0, g.kExogLinear).(*mat.Dense).Copy(exogLinear)
	}
	if x != nil {
		if rows, _ := x.Dims(); rows != n {
			return nil, fmt.Errorf("gam: smooth covariates have %d rows, linear have %d", rows, n)
		}
		basis, err := g.smoother.Transform(x)
		if err != nil {
			return nil, err
		}
		ex.Slice(0, n, g.kExogLinear, p).(*mat.Dense).Copy(basis)
	}

	lp := mat.NewVecDense(n, nil)
	lp.MulVec(ex, mat.NewVecDense(p, r.Params))
	return g.fam.Fitted(lp.RawVector().Data), nil
}
