// Package kriging predicts a target surface from point observations and a
// fitted variogram by solving the kriging system with a polynomial trend.
package kriging

import (
	"context"
	"errors"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/parking-stats/internal/model"
	"github.com/sells-group/parking-stats/internal/neighbors"
	"github.com/sells-group/parking-stats/internal/variogram"
)

// ErrSingularSystem is returned when the kriging matrix cannot be factorised.
var ErrSingularSystem = errors.New("singular kriging system")

// Trend is the mean model of the kriging system.
type Trend int

const (
	// Linear models the mean as a + b·x + c·y (universal kriging).
	Linear Trend = iota
	// Constant models an unknown constant mean (ordinary kriging).
	Constant
)

// ParseTrend maps a config value to a Trend.
func ParseTrend(s string) (Trend, error) {
	switch s {
	case "linear":
		return Linear, nil
	case "constant":
		return Constant, nil
	default:
		return Linear, eris.Errorf("kriging: unknown trend %q", s)
	}
}

func (t Trend) String() string {
	if t == Constant {
		return "constant"
	}
	return "linear"
}

func (t Trend) terms() int {
	if t == Constant {
		return 1
	}
	return 3
}

// Options configures Krige.
type Options struct {
	Trend       Trend
	Metric      neighbors.Metric
	Concurrency int
	// ChunkSize is the number of grid points solved per task.
	ChunkSize int
}

// Prediction is the kriged value and variance at one location.
type Prediction struct {
	X        float64 `json:"x" yaml:"x"`
	Y        float64 `json:"y" yaml:"y"`
	Value    float64 `json:"value" yaml:"value"`
	Variance float64 `json:"variance" yaml:"variance"`
}

// Result is a kriged surface.
type Result struct {
	Model       variogram.Model `json:"model" yaml:"model"`
	Trend       string          `json:"trend" yaml:"trend"`
	NX          int             `json:"nx,omitempty" yaml:"nx,omitempty"`
	NY          int             `json:"ny,omitempty" yaml:"ny,omitempty"`
	Predictions []Prediction    `json:"predictions" yaml:"predictions"`
}

// basis evaluates trend terms on standardised coordinates.
type basis struct {
	trend          Trend
	mx, my, sx, sy float64
}

func newBasis(coords []model.Coord, t Trend) basis {
	xs := make([]float64, len(coords))
	ys := make([]float64, len(coords))
	for i, c := range coords {
		xs[i], ys[i] = c.X, c.Y
	}
	b := basis{trend: t}
	b.mx, b.sx = stat.MeanStdDev(xs, nil)
	b.my, b.sy = stat.MeanStdDev(ys, nil)
	if !(b.sx > 0) {
		b.sx = 1
	}
	if !(b.sy > 0) {
		b.sy = 1
	}
	return b
}

func (b basis) eval(c model.Coord, dst []float64) {
	dst[0] = 1
	if b.trend == Linear {
		dst[1] = (c.X - b.mx) / b.sx
		dst[2] = (c.Y - b.my) / b.sy
	}
}

// Krige predicts at every grid location. The (n+p)×(n+p) system
//
//	[C  F] [λ]   [c₀]
//	[Fᵀ 0] [μ] = [f₀]
//
// is factorised once; grid chunks are solved concurrently. The prediction is
// λᵀy and the variance C(0) − λᵀc₀ − μᵀf₀, clamped at zero. With the nugget
// included in C(0) the predictor interpolates observations exactly.
func Krige(ctx context.Context, coords []model.Coord, values []float64, vm variogram.Model, grid *Grid, opts Options) (*Result, error) {
	n := len(coords)
	if n != len(values) {
		return nil, eris.Errorf("kriging: %d coordinates for %d values", n, len(values))
	}
	p := opts.Trend.terms()
	if n <= p {
		return nil, eris.Errorf("kriging: %s trend needs more than %d points, got %d", opts.Trend, p, n)
	}
	if err := vm.Validate(); err != nil {
		return nil, eris.Wrap(err, "kriging: invalid model")
	}
	if grid == nil || grid.Len() == 0 {
		return nil, eris.New("kriging: empty prediction grid")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 256
	}

	log := zap.L().With(zap.String("component", "kriging"))
	fb := newBasis(coords, opts.Trend)

	size := n + p
	a := mat.NewDense(size, size, nil)
	f := make([]float64, p)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			c := vm.Covariance(opts.Metric.Distance(coords[i], coords[j]))
			a.Set(i, j, c)
			a.Set(j, i, c)
		}
		fb.eval(coords[i], f)
		for k := 0; k < p; k++ {
			a.Set(i, n+k, f[k])
			a.Set(n+k, i, f[k])
		}
	}

	var lu mat.LU
	lu.Factorize(a)
	if cond := lu.Cond(); math.IsInf(cond, 1) || math.IsNaN(cond) || cond > mat.ConditionTolerance {
		return nil, eris.Wrapf(ErrSingularSystem, "kriging: condition number %g", cond)
	}

	res := &Result{
		Model:       vm,
		Trend:       opts.Trend.String(),
		NX:          grid.NX,
		NY:          grid.NY,
		Predictions: make([]Prediction, grid.Len()),
	}
	c0 := vm.Covariance(0)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for start := 0; start < grid.Len(); start += opts.ChunkSize {
		start, end := start, min(start+opts.ChunkSize, grid.Len())
		g.Go(func() error {
			rhs := mat.NewVecDense(size, nil)
			var sol mat.VecDense
			fg := make([]float64, p)
			for k := start; k < end; k++ {
				if err := gCtx.Err(); err != nil {
					return err
				}
				pt := grid.Points[k]
				for i := 0; i < n; i++ {
					rhs.SetVec(i, vm.Covariance(opts.Metric.Distance(pt, coords[i])))
				}
				fb.eval(pt, fg)
				for j := 0; j < p; j++ {
					rhs.SetVec(n+j, fg[j])
				}
				if err := lu.SolveVecTo(&sol, false, rhs); err != nil {
					return eris.Wrapf(ErrSingularSystem, "kriging: solve at grid point %d: %v", k, err)
				}

				var value, reduction float64
				for i := 0; i < n; i++ {
					w := sol.AtVec(i)
					value += w * values[i]
					reduction += w * rhs.AtVec(i)
				}
				for j := 0; j < p; j++ {
					reduction += sol.AtVec(n+j) * fg[j]
				}
				res.Predictions[k] = Prediction{X: pt.X, Y: pt.Y, Value: value, Variance: math.Max(0, c0-reduction)}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Debug("kriging complete",
		zap.Int("observations", n),
		zap.Int("grid_points", grid.Len()),
		zap.String("trend", opts.Trend.String()),
		zap.Float64("condition", lu.Cond()),
	)
	return res, nil
}
