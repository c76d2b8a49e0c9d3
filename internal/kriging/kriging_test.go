package kriging

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/parking-stats/internal/model"
	"github.com/sells-group/parking-stats/internal/variogram"
)

var expModel = variogram.Model{Family: variogram.Exponential, Nugget: 0.2, PartialSill: 1.5, Range: 0.4}

func sample(seed int64, n int, f func(x, y float64) float64) ([]model.Coord, []float64) {
	rng := rand.New(rand.NewSource(seed))
	coords := make([]model.Coord, n)
	values := make([]float64, n)
	for i := range coords {
		coords[i] = model.Coord{X: rng.Float64(), Y: rng.Float64()}
		values[i] = f(coords[i].X, coords[i].Y)
	}
	return coords, values
}

func wavy(x, y float64) float64 { return 10 + 4*x*x - 3*y + x*y }

func TestKrige_ExactAtObservations(t *testing.T) {
	t.Parallel()

	coords, values := sample(1, 15, wavy)
	for _, trend := range []Trend{Linear, Constant} {
		res, err := Krige(context.Background(), coords, values, expModel, NewGrid(coords), Options{Trend: trend, Concurrency: 2, ChunkSize: 4})
		require.NoError(t, err)
		require.Len(t, res.Predictions, len(coords))
		for i, p := range res.Predictions {
			assert.InDelta(t, values[i], p.Value, 1e-6)
			assert.InDelta(t, 0, p.Variance, 1e-8)
			assert.Equal(t, coords[i].X, p.X)
		}
		assert.Equal(t, trend.String(), res.Trend)
	}
}

func TestKrige_VarianceGrowsWithDistance(t *testing.T) {
	t.Parallel()

	coords, values := sample(2, 20, wavy)
	grid := NewGrid([]model.Coord{{X: 1.5, Y: 0.5}, {X: 3, Y: 0.5}, {X: 6, Y: 0.5}, {X: 12, Y: 0.5}})

	res, err := Krige(context.Background(), coords, values, expModel, grid, Options{Trend: Linear})
	require.NoError(t, err)
	for i := 1; i < len(res.Predictions); i++ {
		assert.Greater(t, res.Predictions[i].Variance, res.Predictions[i-1].Variance)
	}
	assert.Greater(t, res.Predictions[0].Variance, 0.0)
}

func TestKrige_UniversalReproducesLinearTrend(t *testing.T) {
	t.Parallel()

	plane := func(x, y float64) float64 { return 5 + 2*x + 3*y }
	coords, values := sample(3, 12, plane)
	grid := NewGrid([]model.Coord{{X: 0.5, Y: 0.5}, {X: 3, Y: 3}})

	uk, err := Krige(context.Background(), coords, values, expModel, grid, Options{Trend: Linear})
	require.NoError(t, err)
	for _, p := range uk.Predictions {
		assert.InDelta(t, plane(p.X, p.Y), p.Value, 1e-6)
	}

	ok, err := Krige(context.Background(), coords, values, expModel, grid, Options{Trend: Constant})
	require.NoError(t, err)
	far := ok.Predictions[1]
	assert.Greater(t, plane(far.X, far.Y)-far.Value, 1.0)
	assert.Greater(t, uk.Predictions[1].Variance, ok.Predictions[1].Variance)
}

func TestKrige_ConcurrencyIsDeterministic(t *testing.T) {
	t.Parallel()

	coords, values := sample(4, 25, wavy)
	grid, err := RegularGrid(BBox{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}, 20, 15)
	require.NoError(t, err)

	serial, err := Krige(context.Background(), coords, values, expModel, grid, Options{Concurrency: 1})
	require.NoError(t, err)
	parallel, err := Krige(context.Background(), coords, values, expModel, grid, Options{Concurrency: 4, ChunkSize: 7})
	require.NoError(t, err)
	assert.Equal(t, serial.Predictions, parallel.Predictions)
	assert.Equal(t, 20, parallel.NX)
	assert.Equal(t, 15, parallel.NY)
}

func TestKrige_SingularSystem(t *testing.T) {
	t.Parallel()

	coords := []model.Coord{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}}
	values := []float64{1, 2, 3, 4, 2}
	_, err := Krige(context.Background(), coords, values, expModel, NewGrid(coords[:1]), Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSingularSystem))
}

func TestKrige_Errors(t *testing.T) {
	t.Parallel()

	coords, values := sample(5, 6, wavy)
	grid := NewGrid(coords)
	ctx := context.Background()

	_, err := Krige(ctx, coords, values[:5], expModel, grid, Options{})
	require.Error(t, err)

	_, err = Krige(ctx, coords[:3], values[:3], expModel, grid, Options{Trend: Linear})
	require.Error(t, err)

	_, err = Krige(ctx, coords, values, variogram.Model{PartialSill: 1}, grid, Options{})
	require.Error(t, err)

	_, err = Krige(ctx, coords, values, expModel, NewGrid(nil), Options{})
	require.Error(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = Krige(cancelled, coords, values, expModel, grid, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRegularGrid(t *testing.T) {
	t.Parallel()

	g, err := RegularGrid(BBox{MinX: 0, MinY: 10, MaxX: 2, MaxY: 11}, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, 6, g.Len())
	assert.Equal(t, model.Coord{X: 0, Y: 10}, g.Points[0])
	assert.Equal(t, model.Coord{X: 1, Y: 10}, g.Points[1])
	assert.Equal(t, model.Coord{X: 2, Y: 11}, g.Points[5])

	_, err = RegularGrid(BBox{MaxX: 1, MaxY: 1}, 1, 5)
	require.Error(t, err)
	_, err = RegularGrid(BBox{MaxX: 0, MaxY: 1}, 3, 3)
	require.Error(t, err)
}

func TestBoundsOf(t *testing.T) {
	t.Parallel()

	b, err := BoundsOf([]model.Coord{{X: 0, Y: 0}, {X: 10, Y: 4}}, 0.1)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, b.MinX, 1e-12)
	assert.InDelta(t, 11.0, b.MaxX, 1e-12)
	assert.InDelta(t, -0.4, b.MinY, 1e-12)
	assert.InDelta(t, 4.4, b.MaxY, 1e-12)

	_, err = BoundsOf(nil, 0)
	require.Error(t, err)
	_, err = BoundsOf([]model.Coord{{X: 1}}, -1)
	require.Error(t, err)
}

func TestParseTrend(t *testing.T) {
	t.Parallel()

	tr, err := ParseTrend("constant")
	require.NoError(t, err)
	assert.Equal(t, Constant, tr)
	_, err = ParseTrend("quadratic")
	require.Error(t, err)
}
