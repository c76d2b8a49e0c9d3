package autocorr

import (
	"github.com/sells-group/parking-stats/internal/weights"
)

// Geary computes Global Geary's C of x over w. C below 1 indicates positive
// autocorrelation, so Z is reported as (E[C] − C)/sd.
func Geary(x []float64, w *weights.SpatialWeights, opts Options) (Result, error) {
	z, ss, err := deviations(x, w)
	if err != nil {
		return Result{}, err
	}
	m := w.Moments()
	if err := checkMoments(m, opts.Assumption); err != nil {
		return Result{}, err
	}

	var diff float64
	for i := range x {
		nbrs, wt := w.Row(i)
		for k, j := range nbrs {
			d := x[i] - x[j]
			diff += wt[k] * d * d
		}
	}

	n := float64(m.N)
	s02 := m.S0 * m.S0
	r := Result{
		Statistic: "geary_c",
		Value:     (n - 1) / (2 * m.S0) * diff / ss,
		Expected:  1,
		N:         m.N,
	}

	if opts.Assumption == Normality {
		r.Variance = ((2*m.S1+m.S2)*(n-1) - 4*s02) / (2 * (n + 1) * s02)
	} else {
		k := kurtosis(z, ss)
		v := (n - 1) * m.S1 * (n*n - 3*n + 3 - (n-1)*k)
		v -= 0.25 * (n - 1) * m.S2 * (n*n + 3*n - 6 - (n*n-n+2)*k)
		v += s02 * (n*n - 3 - (n-1)*(n-1)*k)
		r.Variance = v / (n * (n - 2) * (n - 3) * s02)
	}
	return finish(r, opts, r.Expected-r.Value), nil
}
