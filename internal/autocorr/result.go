// Package autocorr computes global and local spatial-autocorrelation statistics
// with analytic significance under the normality or randomisation assumption.
package autocorr

import (
	"errors"
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sells-group/parking-stats/internal/weights"
)

var (
	// ErrDegenerateVariance is returned for a constant target field.
	ErrDegenerateVariance = errors.New("degenerate variance")
	// ErrEmptyWeights is returned when the weights sum to zero (no links).
	ErrEmptyWeights = errors.New("empty weights")
	// ErrTooFewObservations is returned when the moment formulas are undefined for n.
	ErrTooFewObservations = errors.New("too few observations")
)

// Assumption is the null-distribution assumption of the analytic variance.
type Assumption int

const (
	Randomization Assumption = iota
	Normality
)

// ParseAssumption maps a config value to an Assumption.
func ParseAssumption(s string) (Assumption, error) {
	switch s {
	case "randomization":
		return Randomization, nil
	case "normality":
		return Normality, nil
	default:
		return Randomization, eris.Errorf("autocorr: unknown assumption %q", s)
	}
}

func (a Assumption) String() string {
	if a == Normality {
		return "normality"
	}
	return "randomization"
}

// Alternative is the alternative hypothesis used for p-values.
type Alternative int

const (
	TwoSided Alternative = iota
	// Greater tests for positive autocorrelation.
	Greater
	// Less tests for negative autocorrelation.
	Less
)

// ParseAlternative maps a config value to an Alternative.
func ParseAlternative(s string) (Alternative, error) {
	switch s {
	case "two_sided":
		return TwoSided, nil
	case "greater":
		return Greater, nil
	case "less":
		return Less, nil
	default:
		return TwoSided, eris.Errorf("autocorr: unknown alternative %q", s)
	}
}

func (a Alternative) String() string {
	switch a {
	case Greater:
		return "greater"
	case Less:
		return "less"
	default:
		return "two_sided"
	}
}

// PValue returns the standard-normal p-value of z under the alternative.
func (a Alternative) PValue(z float64) float64 {
	switch a {
	case Greater:
		return distuv.UnitNormal.Survival(z)
	case Less:
		return distuv.UnitNormal.CDF(z)
	default:
		return 2 * distuv.UnitNormal.Survival(math.Abs(z))
	}
}

// Options configures a test.
type Options struct {
	Assumption  Assumption
	Alternative Alternative
}

// Result is a global test outcome. Z is oriented so that a positive value
// means positive autocorrelation for every statistic.
type Result struct {
	Statistic   string  `json:"statistic" yaml:"statistic"`
	Value       float64 `json:"value" yaml:"value"`
	Expected    float64 `json:"expected" yaml:"expected"`
	Variance    float64 `json:"variance" yaml:"variance"`
	Z           float64 `json:"z" yaml:"z"`
	P           float64 `json:"p" yaml:"p"`
	N           int     `json:"n" yaml:"n"`
	Assumption  string  `json:"assumption" yaml:"assumption"`
	Alternative string  `json:"alternative" yaml:"alternative"`
}

// Quadrant classifies a point on the Moran scatterplot.
type Quadrant string

const (
	HighHigh Quadrant = "HH"
	LowLow   Quadrant = "LL"
	HighLow  Quadrant = "HL"
	LowHigh  Quadrant = "LH"
	// NoQuadrant marks isolated points.
	NoQuadrant Quadrant = "none"
)

func quadrantOf(z, lag float64) Quadrant {
	switch {
	case z >= 0 && lag >= 0:
		return HighHigh
	case z < 0 && lag < 0:
		return LowLow
	case z >= 0:
		return HighLow
	default:
		return LowHigh
	}
}

// LocalResult is the Local Moran's I outcome for one point.
type LocalResult struct {
	Index    int      `json:"index" yaml:"index"`
	Ii       float64  `json:"ii" yaml:"ii"`
	Expected float64  `json:"expected" yaml:"expected"`
	Variance float64  `json:"variance" yaml:"variance"`
	Z        float64  `json:"z" yaml:"z"`
	P        float64  `json:"p" yaml:"p"`
	Quadrant Quadrant `json:"quadrant" yaml:"quadrant"`
}

// deviations validates x against w and returns x − x̄ with Σ(x − x̄)².
func deviations(x []float64, w *weights.SpatialWeights) ([]float64, float64, error) {
	if len(x) != w.Len() {
		return nil, 0, eris.Errorf("autocorr: %d values for %d weighted points", len(x), w.Len())
	}
	if len(x) == 0 || floats.Max(x) == floats.Min(x) {
		return nil, 0, eris.Wrap(ErrDegenerateVariance, "autocorr: constant target")
	}
	mean := floats.Sum(x) / float64(len(x))
	z := make([]float64, len(x))
	var ss float64
	for i, v := range x {
		z[i] = v - mean
		ss += z[i] * z[i]
	}
	if ss == 0 {
		return nil, 0, eris.Wrap(ErrDegenerateVariance, "autocorr: zero sum of squares")
	}
	return z, ss, nil
}

// kurtosis is the sample kurtosis b2 = n Σz⁴ / (Σz²)².
func kurtosis(z []float64, ss float64) float64 {
	var s4 float64
	for _, v := range z {
		s4 += v * v * v * v
	}
	return float64(len(z)) * s4 / (ss * ss)
}

func checkMoments(m weights.Moments, a Assumption) error {
	if m.S0 == 0 {
		return eris.Wrap(ErrEmptyWeights, "autocorr: weights sum to zero")
	}
	need := 4
	if a == Normality {
		need = 3
	}
	if m.N < need {
		return eris.Wrapf(ErrTooFewObservations, "autocorr: %s assumption needs %d linked points, got %d", a, need, m.N)
	}
	return nil
}

func finish(r Result, opts Options, signed float64) Result {
	r.Assumption = opts.Assumption.String()
	r.Alternative = opts.Alternative.String()
	if r.Variance > 0 {
		r.Z = signed / math.Sqrt(r.Variance)
		r.P = opts.Alternative.PValue(r.Z)
	} else {
		r.P = 1
	}
	return r
}
