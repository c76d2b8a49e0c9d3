package autocorr

import (
	"github.com/sells-group/parking-stats/internal/weights"
)

// Moran computes Global Moran's I of x over w.
//
// With isolated points allowed, n in the moment formulas is the number of
// linked points; the mean and the sum of squares still use every value.
func Moran(x []float64, w *weights.SpatialWeights, opts Options) (Result, error) {
	z, ss, err := deviations(x, w)
	if err != nil {
		return Result{}, err
	}
	m := w.Moments()
	if err := checkMoments(m, opts.Assumption); err != nil {
		return Result{}, err
	}

	var cross float64
	for i := range z {
		nbrs, wt := w.Row(i)
		for k, j := range nbrs {
			cross += wt[k] * z[i] * z[j]
		}
	}

	n := float64(m.N)
	s02 := m.S0 * m.S0
	r := Result{
		Statistic: "moran_i",
		Value:     n / m.S0 * cross / ss,
		Expected:  -1 / (n - 1),
		N:         m.N,
	}
	e2 := r.Expected * r.Expected

	if opts.Assumption == Normality {
		r.Variance = (n*n*m.S1-n*m.S2+3*s02)/(s02*(n*n-1)) - e2
	} else {
		k := kurtosis(z, ss)
		num := n*((n*n-3*n+3)*m.S1-n*m.S2+3*s02) - k*((n*n-n)*m.S1-2*n*m.S2+6*s02)
		r.Variance = num/((n-1)*(n-2)*(n-3)*s02) - e2
	}
	return finish(r, opts, r.Value-r.Expected), nil
}
