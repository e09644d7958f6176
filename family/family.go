// Package family provides exponential-family distributions for generalized
// linear and additive models: the mean/link mapping, the mean-variance
// relationship, deviance, IRLS weights and starting values.
package family

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// FamilyType selects an exponential family.
type FamilyType uint8

const (
	GaussianFamily FamilyType = iota
	BinomialFamily
	PoissonFamily
	GammaFamily
)

// Family is an exponential-family capability consumed by the fitting loop.
// A Family is immutable and safe for concurrent use.
type Family struct {
	Name string

	typ  FamilyType
	link *Link
	vari *Variance
}

// NewFamily returns the family with its canonical link and variance
// function.
func NewFamily(t FamilyType) *Family {
	switch t {
	case GaussianFamily:
		return &Family{Name: "gaussian", typ: t, link: NewLink(IdentityLink), vari: NewVariance(ConstantVar)}
	case BinomialFamily:
		return &Family{Name: "binomial", typ: t, link: NewLink(LogitLink), vari: NewVariance(BinomialVar)}
	case PoissonFamily:
		return &Family{Name: "poisson", typ: t, link: NewLink(LogLink), vari: NewVariance(IdentityVar)}
	case GammaFamily:
		return &Family{Name: "gamma", typ: t, link: NewLink(RecipLink), vari: NewVariance(SquaredVar)}
	default:
		panic("family: unknown family type")
	}
}

// WithLink returns a copy of the family using a non-canonical link.
func (f *Family) WithLink(t LinkType) *Family {
	g := *f
	g.link = NewLink(t)
	return &g
}

// Link returns the family's link function.
func (f *Family) Link() *Link { return f.link }

// Variance returns the family's variance function.
func (f *Family) Variance() *Variance { return f.vari }

// StartingMu returns the starting values of the mean used to initialize the
// IRLS iterations.
func (f *Family) StartingMu(y []float64) []float64 {
	mu := make([]float64, len(y))
	switch f.typ {
	case BinomialFamily:
		for i, v := range y {
			mu[i] = (v + 0.5) / 2
		}
	default:
		mean := floats.Sum(y) / float64(len(y))
		for i, v := range y {
			mu[i] = (v + mean) / 2
		}
	}
	return mu
}

// Fitted maps a linear predictor to the mean via the inverse link.
func (f *Family) Fitted(lp []float64) []float64 {
	mu := make([]float64, len(lp))
	f.link.InvLink(lp, mu)
	return mu
}

// Predict maps the mean to the linear predictor via the link.
func (f *Family) Predict(mu []float64) []float64 {
	lp := make([]float64, len(mu))
	f.link.Link(mu, lp)
	return lp
}

// Weights returns the IRLS weight vector 1 / (g'(mu)^2 V(mu)).
func (f *Family) Weights(mu []float64) []float64 {
	n := len(mu)
	d := make([]float64, n)
	v := make([]float64, n)
	f.link.Deriv(mu, d)
	f.vari.Var(mu, v)
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / (d[i] * d[i] * v[i])
	}
	return w
}

// Deviance returns the total deviance of mu against the observed response.
// weights holds optional prior observation weights; nil means unit weights.
// The result is non-negative for any valid family.
func (f *Family) Deviance(y, mu, weights []float64) float64 {
	wt := func(i int) float64 {
		if weights == nil {
			return 1
		}
		return weights[i]
	}
	var dev float64
	switch f.typ {
	case GaussianFamily:
		for i := range y {
			r := y[i] - mu[i]
			dev += wt(i) * r * r
		}
	case BinomialFamily:
		for i := range y {
			m := clip(mu[i], linkClip, 1-linkClip)
			dev += 2 * wt(i) * (ylogydm(y[i], m) + ylogydm(1-y[i], 1-m))
		}
	case PoissonFamily:
		for i := range y {
			m := math.Max(mu[i], linkClip)
			dev += 2 * wt(i) * (ylogydm(y[i], m) - (y[i] - m))
		}
	case GammaFamily:
		for i := range y {
			m := math.Max(mu[i], linkClip)
			yy := math.Max(y[i], linkClip)
			dev += 2 * wt(i) * (-math.Log(yy/m) + (y[i]-m)/m)
		}
	}
	return dev
}

// ylogydm computes y*log(y/m) with the 0*log(0) = 0 convention.
func ylogydm(y, m float64) float64 {
	if y <= 0 {
		return 0
	}
	return y * math.Log(y/m)
}
