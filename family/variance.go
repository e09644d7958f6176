package family

// VarianceType selects a variance function V giving the mean-variance
// relationship Var(y) = scale * V(mu).
type VarianceType uint8

const (
	ConstantVar VarianceType = iota
	BinomialVar
	IdentityVar
	SquaredVar
)

// Variance is a GLM variance function and its derivative.  Methods write
// into dst, which must have the same length as mu and may alias it.
type Variance struct {
	Name string

	vari  func(mu, dst []float64)
	deriv func(mu, dst []float64)
}

// Var evaluates V(mu).
func (v *Variance) Var(mu, dst []float64) { v.vari(mu, dst) }

// Deriv evaluates V'(mu).
func (v *Variance) Deriv(mu, dst []float64) { v.deriv(mu, dst) }

// NewVariance returns the variance function for the given type.
func NewVariance(t VarianceType) *Variance {
	switch t {
	case ConstantVar:
		return &Variance{
			Name: "constant",
			vari: func(mu, dst []float64) {
				for i := range mu {
					dst[i] = 1
				}
			},
			deriv: func(mu, dst []float64) {
				for i := range mu {
					dst[i] = 0
				}
			},
		}
	case BinomialVar:
		return &Variance{
			Name: "binomial",
			vari: func(mu, dst []float64) {
				for i, m := range mu {
					m = clip(m, linkClip, 1-linkClip)
					dst[i] = m * (1 - m)
				}
			},
			deriv: func(mu, dst []float64) {
				for i, m := range mu {
					dst[i] = 1 - 2*m
				}
			},
		}
	case IdentityVar:
		return &Variance{
			Name: "identity",
			vari: func(mu, dst []float64) {
				for i, m := range mu {
					if m < linkClip {
						m = linkClip
					}
					dst[i] = m
				}
			},
			deriv: func(mu, dst []float64) {
				for i := range mu {
					dst[i] = 1
				}
			},
		}
	case SquaredVar:
		return &Variance{
			Name: "squared",
			vari: func(mu, dst []float64) {
				for i, m := range mu {
					dst[i] = m * m
				}
			},
			deriv: func(mu, dst []float64) {
				for i, m := range mu {
					dst[i] = 2 * m
				}
			},
		}
	default:
		panic("family: unknown variance type")
	}
}
