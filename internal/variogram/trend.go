package variogram

import (
	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/sells-group/parking-stats/internal/model"
)

// Detrend removes a first-order trend in the coordinates by ordinary least
// squares and returns the residuals. Coordinates are centred before the
// solve.
func Detrend(coords []model.Coord, values []float64) ([]float64, error) {
	n := len(coords)
	if n != len(values) {
		return nil, eris.Errorf("variogram: %d coordinates for %d values", n, len(values))
	}
	if n < 4 {
		return nil, eris.Errorf("variogram: linear trend needs at least 4 points, got %d", n)
	}
	if floats.Max(values) == floats.Min(values) {
		return nil, eris.Wrap(ErrConstantField, "variogram: detrend a constant field")
	}

	var mx, my float64
	for _, c := range coords {
		mx += c.X
		my += c.Y
	}
	mx /= float64(n)
	my /= float64(n)

	x := mat.NewDense(n, 3, nil)
	for i, c := range coords {
		x.Set(i, 0, 1)
		x.Set(i, 1, c.X-mx)
		x.Set(i, 2, c.Y-my)
	}
	y := mat.NewVecDense(n, append([]float64(nil), values...))

	var beta mat.VecDense
	if err := beta.SolveVec(x, y); err != nil {
		return nil, eris.Wrap(err, "variogram: trend regression")
	}

	var fitted mat.VecDense
	fitted.MulVec(x, &beta)
	out := make([]float64, n)
	for i := range out {
		out[i] = values[i] - fitted.AtVec(i)
	}
	return out, nil
}
