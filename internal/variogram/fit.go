package variogram

import (
	"errors"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/optimize"
)

// ErrVariogramFit is returned when no acceptable model could be fitted.
var ErrVariogramFit = errors.New("variogram fit failed")

// Weighting selects the per-bin weights of the least-squares objective.
type Weighting int

const (
	// WeightCounts weights each bin by its pair count.
	WeightCounts Weighting = iota
	// WeightCountsOverLagSq weights each bin by N_h / h².
	WeightCountsOverLagSq
)

// ParseWeighting maps a config value to a Weighting.
func ParseWeighting(s string) (Weighting, error) {
	switch s {
	case "counts":
		return WeightCounts, nil
	case "counts_over_lag_sq":
		return WeightCountsOverLagSq, nil
	default:
		return WeightCounts, eris.Errorf("variogram: unknown fit weighting %q", s)
	}
}

func (w Weighting) String() string {
	if w == WeightCountsOverLagSq {
		return "counts_over_lag_sq"
	}
	return "counts"
}

// FitOptions configures Fit.
type FitOptions struct {
	Weighting     Weighting
	MaxIterations int
}

const (
	seedSteps = 40
	// search bounds for the range, as multiples of the largest bin lag
	minRangeFactor = 1e-3
	maxRangeFactor = 1e3
	// a fitted range within this factor of a search bound is reported as at the bound
	boundSlack = 2
)

// Fit fits (nugget, partial sill, range) of the family to emp by weighted least
// squares. For a fixed range the model is linear in the two variance
// components, which are solved exactly under non-negativity; the range is
// searched in log space with Nelder–Mead seeded from a coarse grid.
func Fit(emp *Empirical, family Family, opts FitOptions) (Model, error) {
	if emp == nil || len(emp.Bins) < 3 {
		n := 0
		if emp != nil {
			n = len(emp.Bins)
		}
		return Model{}, eris.Wrapf(ErrVariogramFit, "variogram: need at least 3 lag bins, got %d", n)
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 500
	}

	lags := make([]float64, len(emp.Bins))
	gamma := make([]float64, len(emp.Bins))
	wts := make([]float64, len(emp.Bins))
	hMax := 0.0
	for i, b := range emp.Bins {
		lags[i] = b.Lag
		gamma[i] = b.Gamma
		wts[i] = float64(b.Pairs)
		if opts.Weighting == WeightCountsOverLagSq {
			wts[i] /= b.Lag * b.Lag
		}
		hMax = math.Max(hMax, b.Lag)
	}
	lo := math.Log(hMax * minRangeFactor)
	hi := math.Log(hMax * maxRangeFactor)
	rangeAt := func(logA float64) float64 {
		return math.Exp(math.Max(lo, math.Min(hi, logA)))
	}

	shapes := make([]float64, len(lags))
	objective := func(x []float64) float64 {
		a := rangeAt(x[0])
		for i, h := range lags {
			shapes[i] = family.shape(h, a)
		}
		_, _, sse := solveSills(shapes, gamma, wts)
		return sse
	}

	seed, best := 0.0, math.Inf(1)
	gridLo, gridHi := math.Log(hMax/50), math.Log(hMax*5)
	for k := 0; k <= seedSteps; k++ {
		x := gridLo + (gridHi-gridLo)*float64(k)/seedSteps
		if f := objective([]float64{x}); f < best {
			seed, best = x, f
		}
	}

	res, err := optimize.Minimize(
		optimize.Problem{Func: objective},
		[]float64{seed},
		&optimize.Settings{
			MajorIterations: opts.MaxIterations,
			Converger:       &optimize.FunctionConverge{Absolute: 1e-12, Relative: 1e-10, Iterations: 25},
		},
		&optimize.NelderMead{SimplexSize: 0.25},
	)
	if res == nil {
		return Model{}, eris.Wrapf(ErrVariogramFit, "variogram: optimiser failed: %v", err)
	}
	if err != nil || res.Status.Early() {
		return Model{}, eris.Wrapf(ErrVariogramFit, "variogram: optimiser stopped with %s after %d iterations: %v",
			res.Status, res.MajorIterations, err)
	}

	a := rangeAt(res.X[0])
	for i, h := range lags {
		shapes[i] = family.shape(h, a)
	}
	c0, c1, sse := solveSills(shapes, gamma, wts)
	m := Model{Family: family, Nugget: c0, PartialSill: c1, Range: a}
	if err := m.Validate(); err != nil {
		return Model{}, eris.Wrapf(ErrVariogramFit, "variogram: %v", err)
	}

	log := zap.L().With(zap.String("component", "variogram"))
	if a >= hMax*maxRangeFactor/boundSlack || a <= hMax*minRangeFactor*boundSlack {
		m.RangeAtBound = true
		log.Warn("variogram range at search bound",
			zap.String("family", family.String()),
			zap.Float64("range", a),
			zap.Float64("max_lag", hMax),
		)
	}

	log.Debug("variogram fitted",
		zap.String("family", family.String()),
		zap.Float64("nugget", c0),
		zap.Float64("partial_sill", c1),
		zap.Float64("range", a),
		zap.Float64("sse", sse),
		zap.Int("iterations", res.MajorIterations),
	)
	return m, nil
}

// solveSills minimises Σ w (g − c0 − c1 f)² over c0, c1 ≥ 0.
func solveSills(f, g, w []float64) (c0, c1, sse float64) {
	var sw, sf, sff, sg, sfg float64
	for i := range f {
		sw += w[i]
		sf += w[i] * f[i]
		sff += w[i] * f[i] * f[i]
		sg += w[i] * g[i]
		sfg += w[i] * f[i] * g[i]
	}

	eval := func(a, b float64) float64 {
		var s float64
		for i := range f {
			r := g[i] - a - b*f[i]
			s += w[i] * r * r
		}
		return s
	}

	if det := sw*sff - sf*sf; det > 1e-12*sw*sff {
		b := (sw*sfg - sf*sg) / det
		a := (sg - b*sf) / sw
		if a >= 0 && b >= 0 {
			return a, b, eval(a, b)
		}
	}

	// Boundary candidates: no nugget, or pure nugget.
	c0, c1 = 0, 0
	if sff > 0 {
		c1 = math.Max(0, sfg/sff)
	}
	sse = eval(c0, c1)
	if a := math.Max(0, sg/sw); eval(a, 0) < sse {
		c0, c1 = a, 0
		sse = eval(a, 0)
	}
	return c0, c1, sse
}
