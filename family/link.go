package family

import "math"

// LinkType selects a link function g relating the mean of the response to
// the linear predictor, eta = g(mu).
type LinkType uint8

const (
	IdentityLink LinkType = iota
	LogitLink
	LogLink
	RecipLink
)

// mu values are clipped away from the boundary of the valid mean space
// before applying a link with a singular boundary (logit, log, recip).
const linkClip = 1e-10

// Link is a GLM link function with its first two derivatives.  All methods
// write into dst, which must have the same length as the source slice; dst
// may alias the source.
type Link struct {
	Name string

	link    func(mu, dst []float64)
	invLink func(lp, dst []float64)
	deriv   func(mu, dst []float64)
	deriv2  func(mu, dst []float64)
}

// Link evaluates eta = g(mu).
func (l *Link) Link(mu, dst []float64) { l.link(mu, dst) }

// InvLink evaluates mu = g^{-1}(eta).
func (l *Link) InvLink(lp, dst []float64) { l.invLink(lp, dst) }

// Deriv evaluates g'(mu).
func (l *Link) Deriv(mu, dst []float64) { l.deriv(mu, dst) }

// Deriv2 evaluates g''(mu).
func (l *Link) Deriv2(mu, dst []float64) { l.deriv2(mu, dst) }

// NewLink returns the link function for the given type.
func NewLink(t LinkType) *Link {
	switch t {
	case IdentityLink:
		return &Link{
			Name: "identity",
			link: func(mu, dst []float64) {
				copy(dst, mu)
			},
			invLink: func(lp, dst []float64) {
				copy(dst, lp)
			},
			deriv: func(mu, dst []float64) {
				for i := range mu {
					dst[i] = 1
				}
			},
			deriv2: func(mu, dst []float64) {
				for i := range mu {
					dst[i] = 0
				}
			},
		}
	case LogitLink:
		return &Link{
			Name: "logit",
			link: func(mu, dst []float64) {
				for i, m := range mu {
					m = clip(m, linkClip, 1-linkClip)
					dst[i] = math.Log(m / (1 - m))
				}
			},
			invLink: func(lp, dst []float64) {
				for i, x := range lp {
					dst[i] = 1 / (1 + math.Exp(-x))
				}
			},
			deriv: func(mu, dst []float64) {
				for i, m := range mu {
					m = clip(m, linkClip, 1-linkClip)
					dst[i] = 1 / (m * (1 - m))
				}
			},
			deriv2: func(mu, dst []float64) {
				for i, m := range mu {
					m = clip(m, linkClip, 1-linkClip)
					v := m * (1 - m)
					dst[i] = (2*m - 1) / (v * v)
				}
			},
		}
	case LogLink:
		return &Link{
			Name: "log",
			link: func(mu, dst []float64) {
				for i, m := range mu {
					dst[i] = math.Log(math.Max(m, linkClip))
				}
			},
			invLink: func(lp, dst []float64) {
				for i, x := range lp {
					dst[i] = math.Exp(x)
				}
			},
			deriv: func(mu, dst []float64) {
				for i, m := range mu {
					dst[i] = 1 / math.Max(m, linkClip)
				}
			},
			deriv2: func(mu, dst []float64) {
				for i, m := range mu {
					m = math.Max(m, linkClip)
					dst[i] = -1 / (m * m)
				}
			},
		}
	case RecipLink:
		return &Link{
			Name: "reciprocal",
			link: func(mu, dst []float64) {
				for i, m := range mu {
					dst[i] = 1 / math.Max(m, linkClip)
				}
			},
			invLink: func(lp, dst []float64) {
				for i, x := range lp {
					dst[i] = 1 / x
				}
			},
			deriv: func(mu, dst []float64) {
				for i, m := range mu {
					m = math.Max(m, linkClip)
					dst[i] = -1 / (m * m)
				}
			},
			deriv2: func(mu, dst []float64) {
				for i, m := range mu {
					m = math.Max(m, linkClip)
					dst[i] = 2 / (m * m * m)
				}
			},
		}
	default:
		panic("family: unknown link type")
	}
}

func clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
