package autocorr

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/parking-stats/internal/weights"
)

// LocalMoran computes Local Moran's I for every point under total
// randomisation. Each entry is a per-location diagnostic; no multiple-comparison
// correction is applied. Isolated points get Ii = 0, P = 1 and NoQuadrant.
func LocalMoran(x []float64, w *weights.SpatialWeights, opts Options) ([]LocalResult, error) {
	z, ss, err := deviations(x, w)
	if err != nil {
		return nil, err
	}
	if w.Moments().S0 == 0 {
		return nil, eris.Wrap(ErrEmptyWeights, "autocorr: weights sum to zero")
	}
	if len(z) < 3 {
		return nil, eris.Wrapf(ErrTooFewObservations, "autocorr: local moran needs 3 points, got %d", len(z))
	}

	n := float64(len(z))
	m2 := ss / n
	b2 := kurtosis(z, ss)
	a := (n - b2) / (n - 1)
	b := (2*b2 - n) / ((n - 1) * (n - 2))

	out := make([]LocalResult, len(z))
	for i := range z {
		nbrs, wt := w.Row(i)
		if len(nbrs) == 0 {
			out[i] = LocalResult{Index: i, P: 1, Quadrant: NoQuadrant}
			continue
		}
		var lag, wi, wi2 float64
		for k, j := range nbrs {
			lag += wt[k] * z[j]
			wi += wt[k]
			wi2 += wt[k] * wt[k]
		}
		r := LocalResult{
			Index:    i,
			Ii:       z[i] / m2 * lag,
			Expected: -wi / (n - 1),
			Quadrant: quadrantOf(z[i], lag),
		}
		r.Variance = a*wi2 + b*(wi*wi-wi2) - r.Expected*r.Expected
		if r.Variance > 0 {
			r.Z = (r.Ii - r.Expected) / math.Sqrt(r.Variance)
			r.P = opts.Alternative.PValue(r.Z)
		} else {
			r.P = 1
		}
		out[i] = r
	}
	return out, nil
}
