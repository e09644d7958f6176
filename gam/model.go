// Package gam fits generalized additive models by penalized iteratively
// reweighted least squares (P-IRLS).  A model combines linear covariate
// columns with smooth-term basis columns, penalizes each smooth term by an
// externally supplied smoothing parameter alpha, and exposes GLM-compatible
// result statistics (hat matrix diagonal, effective degrees of freedom,
// per-term partial fits and Wald tests).
package gam

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/n0madic/go-gam/family"
	"github.com/n0madic/go-gam/penalized"
	"github.com/n0madic/go-gam/smooth"
)

// GAM is a generalized additive model.  The design matrix, penalty and
// configuration are fixed at construction; Fit never mutates the model, so
// a single GAM may run concurrent fits with different smoothing parameters.
type GAM struct {
	endog        []float64
	exog         *mat.Dense
	kExogLinear  int
	constIdx     int
	smoother     smooth.Smoother
	penal        *penalized.GAMPenalty
	alpha        []float64
	fam          *family.Family
	offset       []float64
	priorWeights []float64
	penaltyScale float64

	// option staging, resolved by NewGAM
	optAlphaScalar *float64
	optAlphaVec    []float64
}

// Option configures a GAM at construction.
type Option func(*GAM)

// WithFamily sets the exponential family (default Gaussian with identity
// link).
func WithFamily(f *family.Family) Option {
	return func(g *GAM) { g.fam = f }
}

// WithAlpha sets a single smoothing parameter broadcast to every smooth
// term.
func WithAlpha(alpha float64) Option {
	return func(g *GAM) { g.optAlphaScalar = &alpha }
}

// WithAlphaVector sets one smoothing parameter per smooth term; the length
// must match the number of terms.
func WithAlphaVector(alpha []float64) Option {
	return func(g *GAM) { g.optAlphaVec = alpha }
}

// WithOffset sets a fixed offset added to the linear predictor.
func WithOffset(offset []float64) Option {
	return func(g *GAM) { g.offset = offset }
}

// WithWeights sets prior observation weights (default all ones).
func WithWeights(weights []float64) Option {
	return func(g *GAM) { g.priorWeights = weights }
}

// WithPenaltyScale sets the factor applied to the penalty matrix inside the
// augmented least squares step (default penalized.DefaultPenaltyScale).
func WithPenaltyScale(c float64) Option {
	return func(g *GAM) { g.penaltyScale = c }
}

// NewGAM builds a model for response endog, optional linear covariates
// exogLinear (one column per covariate) and an optional smoother.  The
// combined design matrix is [linear columns ++ smooth basis columns].
// Alpha validation happens here, before any fitting work.
func NewGAM(endog []float64, exogLinear *mat.Dense, sm smooth.Smoother, opts ...Option) (*GAM, error) {
	n := len(endog)
	if n == 0 {
		return nil, fmt.Errorf("gam: empty response")
	}

	g := &GAM{
		endog:        append([]float64(nil), endog...),
		smoother:     sm,
		constIdx:     -1,
		fam:          family.NewFamily(family.GaussianFamily),
		penaltyScale: penalized.DefaultPenaltyScale,
	}
	for _, opt := range opts {
		opt(g)
	}

	kLin := 0
	if exogLinear != nil {
		r, c := exogLinear.Dims()
		if r != n {
			return nil, fmt.Errorf("gam: exog has %d rows, response has %d", r, n)
		}
		kLin = c
	}
	g.kExogLinear = kLin

	kSmooth := 0
	numTerms := 0
	if sm != nil {
		if r, _ := sm.Basis().Dims(); r != n {
			return nil, fmt.Errorf("gam: smoother basis has %d rows, response has %d", r, n)
		}
		kSmooth = sm.Dim()
		numTerms = sm.NumTerms()
	}
	p := kLin + kSmooth
	if p == 0 {
		return nil, fmt.Errorf("gam: model has no columns")
	}

	g.exog = mat.NewDense(n, p, nil)
	if kLin > 0 {
		g.exog.Slice(0, n, 0, kLin).(*mat.Dense).Copy(exogLinear)
		g.constIdx = constantColumn(exogLinear)
	}
	if kSmooth > 0 {
		g.exog.Slice(0, n, kLin, p).(*mat.Dense).Copy(sm.Basis())
	}

	var terms []*mat.SymDense
	if sm != nil {
		terms = sm.PenaltyMatrices()
	}
	penal, err := penalized.NewGAMPenalty(terms, kLin, p)
	if err != nil {
		return nil, err
	}
	g.penal = penal

	alpha, err := g.resolveAlpha(g.optAlphaVec, g.optAlphaScalar, numTerms)
	if err != nil {
		return nil, err
	}
	g.alpha = alpha
	g.optAlphaScalar, g.optAlphaVec = nil, nil

	if g.offset != nil && len(g.offset) != n {
		return nil, fmt.Errorf("gam: offset length %d, want %d", len(g.offset), n)
	}
	if g.priorWeights != nil {
		if len(g.priorWeights) != n {
			return nil, fmt.Errorf("gam: weights length %d, want %d", len(g.priorWeights), n)
		}
		for i, w := range g.priorWeights {
			if w < 0 {
				return nil, fmt.Errorf("gam: negative prior weight %g at observation %d", w, i)
			}
		}
	}
	if g.penaltyScale <= 0 {
		return nil, fmt.Errorf("gam: penalty scale must be positive, got %g", g.penaltyScale)
	}
	return g, nil
}

// resolveAlpha turns the scalar-or-vector option into a validated
// fixed-length vector, defaulting to all zeros (no penalty).
func (g *GAM) resolveAlpha(vec []float64, scalar *float64, numTerms int) ([]float64, error) {
	var alpha []float64
	switch {
	case vec != nil:
		alpha = append([]float64(nil), vec...)
	case scalar != nil:
		alpha = make([]float64, numTerms)
		for i := range alpha {
			alpha[i] = *scalar
		}
	default:
		alpha = make([]float64, numTerms)
	}
	if err := g.penal.ValidateAlpha(alpha); err != nil {
		return nil, err
	}
	return alpha, nil
}

// constantColumn returns the index of the first constant nonzero column of
// x, or -1 if there is none.
func constantColumn(x *mat.Dense) int {
	n, p := x.Dims()
	for j := 0; j < p; j++ {
		v := x.At(0, j)
		if v == 0 {
			continue
		}
		constant := true
		for i := 1; i < n; i++ {
			if x.At(i, j) != v {
				constant = false
				break
			}
		}
		if constant {
			return j
		}
	}
	return -1
}

// NumParams returns the number of design columns.
func (g *GAM) NumParams() int {
	_, p := g.exog.Dims()
	return p
}

// NumObs returns the number of observations.
func (g *GAM) NumObs() int { return len(g.endog) }

// KExogLinear returns the number of linear covariate columns.
func (g *GAM) KExogLinear() int { return g.kExogLinear }

// Alpha returns the smoothing parameters configured at construction.
func (g *GAM) Alpha() []float64 { return append([]float64(nil), g.alpha...) }

// Family returns the model's exponential family.
func (g *GAM) Family() *family.Family { return g.fam }

// FitOption configures a single Fit call.
type FitOption func(*fitConfig)

type fitConfig struct {
	method      string
	startParams []float64
	tol         float64
	maxIter     int
	alpha       []float64
}

// WithMethod selects the fitting method: "pirls" (default) or "gradient".
func WithMethod(method string) FitOption {
	return func(c *fitConfig) { c.method = method }
}

// WithStartParams sets the starting coefficient vector.
func WithStartParams(params []float64) FitOption {
	return func(c *fitConfig) { c.startParams = append([]float64(nil), params...) }
}

// WithTol sets the convergence tolerance on the deviance (default 1e-8).
func WithTol(tol float64) FitOption {
	return func(c *fitConfig) { c.tol = tol }
}

// WithMaxIter caps the number of iterations (default 100).  Zero skips the
// loop entirely and evaluates the model at the starting parameters.
func WithMaxIter(n int) FitOption {
	return func(c *fitConfig) { c.maxIter = n }
}

// WithFitAlpha overrides the model's smoothing parameters for this fit
// only.  A single value is broadcast to all terms.
func WithFitAlpha(alpha ...float64) FitOption {
	return func(c *fitConfig) { c.alpha = alpha }
}

// Fit estimates the model parameters and returns an immutable Result.  The
// model itself is never modified.
func (g *GAM) Fit(opts ...FitOption) (*Result, error) {
	cfg := &fitConfig{
		method:  "pirls",
		tol:     1e-8,
		maxIter: 100,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.maxIter < 0 {
		return nil, fmt.Errorf("gam: maxIter must be non-negative, got %d", cfg.maxIter)
	}
	if cfg.tol <= 0 {
		return nil, fmt.Errorf("gam: tolerance must be positive, got %g", cfg.tol)
	}
	if cfg.startParams != nil && len(cfg.startParams) != g.NumParams() {
		return nil, fmt.Errorf("gam: start params length %d, want %d", len(cfg.startParams), g.NumParams())
	}

	alpha := g.alpha
	if cfg.alpha != nil {
		if len(cfg.alpha) == 1 && g.penal.NumTerms() != 1 {
			alpha = make([]float64, g.penal.NumTerms())
			for i := range alpha {
				alpha[i] = cfg.alpha[0]
			}
		} else {
			alpha = append([]float64(nil), cfg.alpha...)
		}
		if err := g.penal.ValidateAlpha(alpha); err != nil {
			return nil, err
		}
	}

	switch strings.ToLower(cfg.method) {
	case "pirls":
		return g.fitPIRLS(cfg, alpha)
	case "gradient":
		return g.fitGradient(cfg, alpha)
	default:
		return nil, fmt.Errorf("gam: unknown fit method %q", cfg.method)
	}
}

// ones and zeros helpers for default weights and offsets.
func (g *GAM) prior() []float64 {
	if g.priorWeights != nil {
		return g.priorWeights
	}
	w := make([]float64, len(g.endog))
	for i := range w {
		w[i] = 1
	}
	return w
}

func (g *GAM) offsetVec() []float64 {
	if g.offset != nil {
		return g.offset
	}
	return make([]float64, len(g.endog))
}
