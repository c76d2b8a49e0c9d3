// Package variogram computes empirical semivariograms and fits parametric
// models to them.
package variogram

import (
	"math"

	"github.com/rotisserie/eris"
)

// Family is a closed set of variogram model shapes.
type Family int

const (
	Exponential Family = iota
	Spherical
	Gaussian
)

// ParseFamily maps a config value to a Family.
func ParseFamily(s string) (Family, error) {
	switch s {
	case "exponential":
		return Exponential, nil
	case "spherical":
		return Spherical, nil
	case "gaussian":
		return Gaussian, nil
	default:
		return Exponential, eris.Errorf("variogram: unknown model family %q", s)
	}
}

func (f Family) String() string {
	switch f {
	case Spherical:
		return "spherical"
	case Gaussian:
		return "gaussian"
	default:
		return "exponential"
	}
}

// MarshalText encodes the family by name in JSON and YAML reports.
func (f Family) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText decodes a family name.
func (f *Family) UnmarshalText(b []byte) error {
	v, err := ParseFamily(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// shape is the unit-sill structure of the family at lag h for range a.
func (f Family) shape(h, a float64) float64 {
	if h <= 0 {
		return 0
	}
	r := h / a
	switch f {
	case Spherical:
		if r >= 1 {
			return 1
		}
		return 1.5*r - 0.5*r*r*r
	case Gaussian:
		return 1 - math.Exp(-r*r)
	default:
		return 1 - math.Exp(-r)
	}
}

// Model is a fitted variogram: γ(h) = Nugget + PartialSill·shape(h/Range) for
// h > 0 and γ(0) = 0.
type Model struct {
	Family      Family  `json:"family" yaml:"family"`
	Nugget      float64 `json:"nugget" yaml:"nugget"`
	PartialSill float64 `json:"partial_sill" yaml:"partial_sill"`
	Range       float64 `json:"range" yaml:"range"`

	// RangeAtBound is set by Fit when the range ended near an edge of its
	// search interval: the data show no sill (or no structure) inside the
	// observed lags.
	RangeAtBound bool `json:"range_at_bound,omitempty" yaml:"range_at_bound,omitempty"`
}

// Sill is Nugget + PartialSill.
func (m Model) Sill() float64 { return m.Nugget + m.PartialSill }

// Semivariance evaluates γ(h).
func (m Model) Semivariance(h float64) float64 {
	if h <= 0 {
		return 0
	}
	return m.Nugget + m.PartialSill*m.Family.shape(h, m.Range)
}

// Covariance evaluates C(h) = Sill − γ(h); C(0) is the full sill.
func (m Model) Covariance(h float64) float64 {
	return m.Sill() - m.Semivariance(h)
}

// Validate checks the parameter constraints of a usable model.
func (m Model) Validate() error {
	switch {
	case m.Nugget < 0 || m.PartialSill < 0:
		return eris.Errorf("variogram: negative variance component (nugget %v, partial sill %v)", m.Nugget, m.PartialSill)
	case !(m.Range > 0) || math.IsInf(m.Range, 0):
		return eris.Errorf("variogram: range must be positive and finite, got %v", m.Range)
	case m.Sill() <= 0:
		return eris.New("variogram: sill is zero")
	}
	return nil
}
