package variogram

import (
	"errors"
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/floats"

	"github.com/sells-group/parking-stats/internal/model"
	"github.com/sells-group/parking-stats/internal/neighbors"
)

// ErrConstantField is returned when every value is identical.
var ErrConstantField = errors.New("constant field")

// Bin is one lag class of an empirical variogram.
type Bin struct {
	Lag   float64 `json:"lag" yaml:"lag"` // mean pair distance in the class
	Gamma float64 `json:"gamma" yaml:"gamma"`
	Pairs int     `json:"pairs" yaml:"pairs"`
}

// Empirical is an ordered set of non-empty lag classes.
type Empirical struct {
	Bins   []Bin   `json:"bins" yaml:"bins"`
	Cutoff float64 `json:"cutoff" yaml:"cutoff"`
	Width  float64 `json:"width" yaml:"width"`
}

// Options configures Compute.
type Options struct {
	Lags int
	// CutoffFraction is the share of the largest pair distance covered by the bins.
	CutoffFraction float64
	Metric         neighbors.Metric
}

func (o Options) withDefaults() Options {
	if o.Lags <= 0 {
		o.Lags = 15
	}
	if o.CutoffFraction <= 0 || o.CutoffFraction > 1 {
		o.CutoffFraction = 1.0 / 3
	}
	return o
}

// Compute bins every pair i<j whose distance is within the cutoff and
// estimates γ(h) = Σ(x_i − x_j)² / 2N_h per bin. Coincident points are rejected.
func Compute(coords []model.Coord, values []float64, opts Options) (*Empirical, error) {
	if len(coords) != len(values) {
		return nil, eris.Errorf("variogram: %d coordinates for %d values", len(coords), len(values))
	}
	if len(coords) < 3 {
		return nil, eris.Errorf("variogram: need at least 3 points, got %d", len(coords))
	}
	if floats.Max(values) == floats.Min(values) {
		return nil, eris.Wrap(ErrConstantField, "variogram: semivariance of a constant field")
	}
	opts = opts.withDefaults()

	n := len(coords)
	dist := make([]float64, 0, n*(n-1)/2)
	maxD := 0.0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := opts.Metric.Distance(coords[i], coords[j])
			if d == 0 {
				return nil, eris.Wrapf(neighbors.ErrDuplicatePoints, "variogram: points %d and %d coincide", i, j)
			}
			dist = append(dist, d)
			maxD = math.Max(maxD, d)
		}
	}

	cutoff := maxD * opts.CutoffFraction
	width := cutoff / float64(opts.Lags)
	sumD := make([]float64, opts.Lags)
	sumSq := make([]float64, opts.Lags)
	count := make([]int, opts.Lags)

	k := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := dist[k]
			k++
			if d > cutoff {
				continue
			}
			b := int(d / width)
			if b >= opts.Lags {
				b = opts.Lags - 1
			}
			diff := values[i] - values[j]
			sumD[b] += d
			sumSq[b] += diff * diff
			count[b]++
		}
	}

	emp := &Empirical{Cutoff: cutoff, Width: width}
	for b := range count {
		if count[b] == 0 {
			continue
		}
		c := float64(count[b])
		emp.Bins = append(emp.Bins, Bin{Lag: sumD[b] / c, Gamma: sumSq[b] / (2 * c), Pairs: count[b]})
	}
	if len(emp.Bins) == 0 {
		return nil, eris.New("variogram: no pairs within cutoff")
	}
	return emp, nil
}
