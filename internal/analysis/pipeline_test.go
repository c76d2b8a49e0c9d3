package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/parking-stats/internal/autocorr"
	"github.com/sells-group/parking-stats/internal/config"
	"github.com/sells-group/parking-stats/internal/model"
)

func testOptions(t *testing.T) Options {
	t.Helper()
	opts, err := ParseOptions(config.AnalysisConfig{
		Distance: "planar",
		Weights:  config.WeightsConfig{Style: "W", Power: 2},
		Autocorr: config.AutocorrConfig{Assumption: "randomization", Alternative: "two_sided"},
		Variogram: config.VariogramConfig{
			Lags: 10, CutoffFraction: 0.5, Family: "exponential", FitWeighting: "counts", MaxIterations: 500,
		},
		Kriging: config.KrigingConfig{Trend: "linear", GridNX: 6, GridNY: 5, Padding: 0.05, Concurrency: 2},
	})
	require.NoError(t, err)
	return opts
}

func box(lon, lat, d float64) string {
	return fmt.Sprintf("POLYGON((%g %g, %g %g, %g %g, %g %g, %g %g))",
		lon-d, lat-d, lon+d, lat-d, lon+d, lat+d, lon-d, lat+d, lon-d, lat-d)
}

func syntheticObservations(n int) []model.Observation {
	rng := rand.New(rand.NewSource(42))
	obs := make([]model.Observation, n)
	for i := range obs {
		lon := -79.6 + rng.Float64()*0.4
		lat := 43.6 + rng.Float64()*0.3
		obs[i] = model.Observation{
			ID:             fmt.Sprintf("g%03d", i),
			Country:        "CAN",
			City:           "Toronto",
			Lat:            lat,
			Lon:            lon,
			AvgTimeToPark:  5 + 20*math.Exp(-math.Hypot(lon+79.4, lat-43.7)*10) + rng.NormFloat64(),
			TotalSearching: 10 + i,
			Boundary:       box(lon, lat, 0.005),
		}
	}
	return obs
}

func TestRun_FullPipeline(t *testing.T) {
	obs := syntheticObservations(40)
	obs[3].Boundary = "POLYGON((1 2, 3))"
	dup := obs[10]
	dup.ID = "dup"
	obs = append(obs, dup)

	r, err := Run(context.Background(), obs, testOptions(t))
	require.NoError(t, err)

	_, err = uuid.Parse(r.RunID)
	require.NoError(t, err)

	assert.Equal(t, 41, r.Input.Observations)
	assert.Equal(t, 39, r.Input.Analyzed)
	require.Len(t, r.Input.Excluded, 1)
	assert.Equal(t, "g003", r.Input.Excluded[0].ID)
	assert.Equal(t, []string{"dup"}, r.Input.Duplicates)
	assert.Equal(t, 39, r.Summary.Count)
	require.Len(t, r.Features, 39)

	assert.Equal(t, StatusOK, r.Graph.Status)
	assert.Positive(t, r.Graph.Links)
	assert.InDelta(t, 39.0, r.Graph.S0, 1e-9)
	assert.Equal(t, "W", r.Graph.Style)

	for _, s := range []GlobalSection{r.Moran, r.Geary} {
		assert.True(t, s.Available())
		require.NotNil(t, s.Result)
	}
	assert.Greater(t, r.Moran.Result.Value, r.Moran.Result.Expected)

	require.True(t, r.Local.Available())
	require.Len(t, r.Local.Points, 39)
	for i, p := range r.Local.Points {
		assert.Equal(t, r.Features[i].Observation.ID, p.ID)
	}

	require.True(t, r.Variogram.Available(), r.Variogram.Error)
	assert.True(t, r.Variogram.Detrended)
	require.NotNil(t, r.Variogram.Model)
	assert.Greater(t, r.Variogram.Model.Range, 0.0)

	require.True(t, r.Kriging.Available(), r.Kriging.Error)
	require.NotNil(t, r.Kriging.Surface)
	assert.Len(t, r.Kriging.Surface.Predictions, 30)
	assert.Empty(t, r.StageErrors())
}

func TestRun_ConstantTargetIsPartialFailure(t *testing.T) {
	obs := syntheticObservations(20)
	for i := range obs {
		obs[i].AvgTimeToPark = 7
	}

	r, err := Run(context.Background(), obs, testOptions(t))
	require.NoError(t, err)

	assert.Equal(t, StatusOK, r.Graph.Status)
	for _, s := range []Section{r.Moran.Section, r.Geary.Section, r.Local.Section} {
		assert.Equal(t, StatusUnavailable, s.Status)
		require.NotNil(t, s.StageErr)
		assert.True(t, errors.Is(s.StageErr, autocorr.ErrDegenerateVariance))
		assert.NotEmpty(t, s.Error)
	}
	assert.Equal(t, StageNameMoran, r.Moran.StageErr.Stage)

	assert.Equal(t, StatusUnavailable, r.Variogram.Status)
	assert.Equal(t, StatusUnavailable, r.Kriging.Status)
	assert.True(t, errors.Is(r.Kriging.StageErr, ErrUpstream))
	assert.Len(t, r.StageErrors(), 5)
}

func TestRun_FivePointScenario(t *testing.T) {
	coords := [][2]float64{{0, 0}, {1, 0}, {0, 1}, {1, 1}, {0.5, 0.5}}
	values := []float64{10, 10, 10, 10, 1}
	obs := make([]model.Observation, len(coords))
	for i, c := range coords {
		obs[i] = model.Observation{ID: fmt.Sprintf("p%d", i), Lon: c[0], Lat: c[1], AvgTimeToPark: values[i]}
	}

	opts := testOptions(t)
	opts.Variogram.CutoffFraction = 1.0 / 3
	r, err := Run(context.Background(), obs, opts)
	require.NoError(t, err)

	require.True(t, r.Graph.Available())
	assert.Equal(t, 8, r.Graph.Links)
	require.True(t, r.Moran.Available(), r.Moran.Error)
	assert.InDelta(t, -1.0/3, r.Moran.Result.Value, 1e-12)
	require.True(t, r.Local.Available())
	assert.Less(t, r.Local.Points[4].Ii, 0.0)
	assert.Equal(t, autocorr.LowHigh, r.Local.Points[4].Quadrant)

	// no pair is closer than a third of the largest distance
	assert.Equal(t, StatusUnavailable, r.Variogram.Status)
	assert.Equal(t, StatusUnavailable, r.Kriging.Status)
}

func TestRun_TooFewPoints(t *testing.T) {
	obs := []model.Observation{{ID: "only", Lat: 1, Lon: 1, AvgTimeToPark: 3}}
	r, err := Run(context.Background(), obs, testOptions(t))
	require.NoError(t, err)

	assert.Equal(t, StatusUnavailable, r.Graph.Status)
	assert.True(t, errors.Is(r.Moran.StageErr, ErrUpstream))
	assert.Equal(t, StatusUnavailable, r.Variogram.Status)
	assert.Equal(t, StatusUnavailable, r.Kriging.Status)
	assert.Equal(t, 1, r.Summary.Count)
}

func TestRun_StageSelection(t *testing.T) {
	opts := testOptions(t)
	opts.Stages = StageGraph
	r, err := Run(context.Background(), syntheticObservations(15), opts)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, r.Graph.Status)
	assert.Equal(t, StatusSkipped, r.Moran.Status)
	assert.Equal(t, StatusSkipped, r.Variogram.Status)
	assert.Equal(t, StatusSkipped, r.Kriging.Status)

	opts.Stages = StageKriging
	r, err = Run(context.Background(), syntheticObservations(30), opts)
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, r.Graph.Status)
	assert.NotEqual(t, StatusSkipped, r.Variogram.Status)
	assert.NotEqual(t, StatusSkipped, r.Kriging.Status)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, syntheticObservations(5), testOptions(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestParseOptions_RejectsUnknown(t *testing.T) {
	_, err := ParseOptions(config.AnalysisConfig{Distance: "manhattan"})
	require.Error(t, err)
}

func TestStageError(t *testing.T) {
	err := &StageError{Stage: StageNameKriging, Err: ErrUpstream}
	assert.Equal(t, "analysis: kriging stage: upstream stage unavailable", err.Error())
	assert.True(t, errors.Is(err, ErrUpstream))
}
