package family

import (
	"math"
	"testing"
)

func TestLinkRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		link LinkType
		mu   []float64
	}{
		{"identity", IdentityLink, []float64{-2, 0, 3.5}},
		{"logit", LogitLink, []float64{0.1, 0.5, 0.9}},
		{"log", LogLink, []float64{0.1, 1, 7}},
		{"reciprocal", RecipLink, []float64{0.2, 1, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLink(tt.link)
			lp := make([]float64, len(tt.mu))
			back := make([]float64, len(tt.mu))
			l.Link(tt.mu, lp)
			l.InvLink(lp, back)
			for i := range tt.mu {
				if math.Abs(back[i]-tt.mu[i]) > 1e-10 {
					t.Errorf("%s: InvLink(Link(%g)) = %g", tt.name, tt.mu[i], back[i])
				}
			}
		})
	}
}

func TestLinkDerivatives(t *testing.T) {
	// Deriv and Deriv2 must agree with finite differences of Link.
	tests := []struct {
		name string
		link LinkType
		mu   []float64
	}{
		{"identity", IdentityLink, []float64{-1, 0.5, 2}},
		{"logit", LogitLink, []float64{0.2, 0.5, 0.8}},
		{"log", LogLink, []float64{0.5, 1, 3}},
		{"reciprocal", RecipLink, []float64{0.5, 1, 3}},
	}
	const h = 1e-6
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLink(tt.link)
			for _, m := range tt.mu {
				var lo, hi, d, d2 [1]float64
				l.Link([]float64{m - h}, lo[:])
				l.Link([]float64{m + h}, hi[:])
				num := (hi[0] - lo[0]) / (2 * h)
				l.Deriv([]float64{m}, d[:])
				if rel := math.Abs(d[0]-num) / math.Max(1, math.Abs(num)); rel > 1e-4 {
					t.Errorf("Deriv(%g) = %g, finite difference %g", m, d[0], num)
				}

				l.Deriv([]float64{m - h}, lo[:])
				l.Deriv([]float64{m + h}, hi[:])
				num2 := (hi[0] - lo[0]) / (2 * h)
				l.Deriv2([]float64{m}, d2[:])
				if rel := math.Abs(d2[0]-num2) / math.Max(1, math.Abs(num2)); rel > 1e-3 {
					t.Errorf("Deriv2(%g) = %g, finite difference %g", m, d2[0], num2)
				}
			}
		})
	}
}

func TestGaussianDevianceIsRSS(t *testing.T) {
	f := NewFamily(GaussianFamily)
	y := []float64{1, 2, 3, 4}
	mu := []float64{1.5, 2, 2.5, 4.5}
	want := 0.25 + 0 + 0.25 + 0.25
	if got := f.Deviance(y, mu, nil); math.Abs(got-want) > 1e-12 {
		t.Errorf("Deviance = %g, want %g", got, want)
	}
	w := []float64{2, 1, 1, 1}
	want += 0.25
	if got := f.Deviance(y, mu, w); math.Abs(got-want) > 1e-12 {
		t.Errorf("weighted Deviance = %g, want %g", got, want)
	}
}

func TestGaussianWeightsAreUnit(t *testing.T) {
	f := NewFamily(GaussianFamily)
	w := f.Weights([]float64{-1, 0, 2.5})
	for i, v := range w {
		if v != 1 {
			t.Errorf("Weights[%d] = %g, want 1", i, v)
		}
	}
}

func TestDevianceAtObservedIsZero(t *testing.T) {
	tests := []struct {
		name string
		typ  FamilyType
		y    []float64
	}{
		{"gaussian", GaussianFamily, []float64{-1, 0, 2}},
		{"binomial", BinomialFamily, []float64{0, 1, 1, 0}},
		{"poisson", PoissonFamily, []float64{0, 1, 3}},
		{"gamma", GammaFamily, []float64{0.5, 1, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFamily(tt.typ)
			if dev := f.Deviance(tt.y, tt.y, nil); dev > 1e-6 || dev < 0 {
				t.Errorf("Deviance(y, y) = %g, want ~0 and non-negative", dev)
			}
		})
	}
}

func TestBinomialWeights(t *testing.T) {
	// Canonical logit: w = mu(1-mu).
	f := NewFamily(BinomialFamily)
	mu := []float64{0.2, 0.5}
	w := f.Weights(mu)
	for i, m := range mu {
		want := m * (1 - m)
		if math.Abs(w[i]-want) > 1e-12 {
			t.Errorf("Weights[%d] = %g, want %g", i, w[i], want)
		}
	}
}

func TestStartingMu(t *testing.T) {
	y := []float64{0, 4}

	f := NewFamily(GaussianFamily)
	mu := f.StartingMu(y)
	if mu[0] != 1 || mu[1] != 3 {
		t.Errorf("gaussian StartingMu = %v, want [1 3]", mu)
	}

	b := NewFamily(BinomialFamily)
	mu = b.StartingMu([]float64{0, 1})
	for _, m := range mu {
		if m <= 0 || m >= 1 {
			t.Errorf("binomial StartingMu %g outside (0, 1)", m)
		}
	}
}

func TestPoissonDeviance(t *testing.T) {
	f := NewFamily(PoissonFamily)
	// Zero counts are allowed: 0*log(0) = 0.
	y := []float64{0, 2}
	mu := []float64{1, 2}
	want := 2.0 * (0 - (0 - 1.0)) // only the first observation contributes
	if got := f.Deviance(y, mu, nil); math.Abs(got-want) > 1e-12 {
		t.Errorf("Deviance = %g, want %g", got, want)
	}
}

func TestWithLink(t *testing.T) {
	f := NewFamily(PoissonFamily).WithLink(IdentityLink)
	if f.Link().Name != "identity" {
		t.Errorf("link = %q, want identity", f.Link().Name)
	}
	// The original family keeps its canonical link.
	if NewFamily(PoissonFamily).Link().Name != "log" {
		t.Error("canonical poisson link changed")
	}
}
