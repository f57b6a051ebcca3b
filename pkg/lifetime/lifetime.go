// Package lifetime evaluates the survival functions used by the cohort model.
package lifetime

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Family names a parametric lifetime distribution.
type Family string

const (
	Weibull      Family = "weibull"
	FoldedNormal Family = "folded-normal"
)

// ErrInvalidSurvival is returned when a parameter set yields a survival
// curve that is undefined, outside [0,1], not 1 at age 0 or increasing.
var ErrInvalidSurvival = errors.New("invalid survival function")

// ParseFamily maps a scenario string to a Family.
func ParseFamily(s string) (Family, error) {
	switch Family(s) {
	case Weibull, "":
		return Weibull, nil
	case FoldedNormal, "normal", "foldnorm":
		return FoldedNormal, nil
	}
	return "", fmt.Errorf("unknown lifetime family %q", s)
}

// Params is one lifetime parameter set. First and Second are shape and scale
// for Weibull, mean and standard deviation (years) for the folded normal.
type Params struct {
	Family Family  `json:"family" yaml:"family"`
	First  float64 `json:"first" yaml:"first"`
	Second float64 `json:"second" yaml:"second"`
}

func (p Params) String() string {
	switch p.Family {
	case FoldedNormal:
		return fmt.Sprintf("folded-normal(mean=%g, stddev=%g)", p.First, p.Second)
	default:
		return fmt.Sprintf("weibull(shape=%g, scale=%g)", p.First, p.Second)
	}
}

// Distribution returns the survival probability at a given age in years.
type Distribution interface {
	Survival(age float64) float64
}

type weibullDist struct {
	d distuv.Weibull
}

func (w weibullDist) Survival(age float64) float64 {
	if age <= 0 {
		return 1
	}
	return w.d.Survival(age)
}

// foldedNormalDist is |X| with X ~ N(mean, stddev).
type foldedNormalDist struct {
	d distuv.Normal
}

func (f foldedNormalDist) Survival(age float64) float64 {
	if age <= 0 {
		return 1
	}
	// P(|X| > a) = P(X > a) + P(X < -a)
	return f.d.Survival(age) + f.d.CDF(-age)
}

// New builds the distribution for p. Non-positive or non-finite parameters
// are rejected.
func New(p Params) (Distribution, error) {
	if math.IsNaN(p.First) || math.IsNaN(p.Second) || math.IsInf(p.First, 0) || math.IsInf(p.Second, 0) {
		return nil, fmt.Errorf("%w: %s has non-finite parameters", ErrInvalidSurvival, p)
	}
	switch p.Family {
	case Weibull, "":
		if p.First <= 0 || p.Second <= 0 {
			return nil, fmt.Errorf("%w: %s requires shape > 0 and scale > 0", ErrInvalidSurvival, p)
		}
		return weibullDist{d: distuv.Weibull{K: p.First, Lambda: p.Second}}, nil
	case FoldedNormal:
		if p.Second <= 0 {
			return nil, fmt.Errorf("%w: %s requires stddev > 0", ErrInvalidSurvival, p)
		}
		return foldedNormalDist{d: distuv.Normal{Mu: p.First, Sigma: p.Second}}, nil
	}
	return nil, fmt.Errorf("unknown lifetime family %q", p.Family)
}

// Curve evaluates survival at integer ages 0..n-1.
func Curve(d Distribution, n int) []float64 {
	out := make([]float64, n)
	for a := range out {
		out[a] = d.Survival(float64(a))
	}
	return out
}

// Check verifies that curve is a valid survival function: finite, in [0,1],
// exactly 1 at age 0 and non-increasing.
func Check(curve []float64) error {
	if len(curve) == 0 {
		return nil
	}
	if curve[0] != 1 {
		return fmt.Errorf("%w: survival(0) = %g, want 1", ErrInvalidSurvival, curve[0])
	}
	for a, v := range curve {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("%w: survival(%d) = %g outside [0,1]", ErrInvalidSurvival, a, v)
		}
		if a > 0 && v > curve[a-1] {
			return fmt.Errorf("%w: survival increases between age %d (%g) and %d (%g)", ErrInvalidSurvival, a-1, curve[a-1], a, v)
		}
	}
	return nil
}
