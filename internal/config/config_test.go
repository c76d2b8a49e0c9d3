package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "stderr", cfg.Log.Output)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, "planar", cfg.Analysis.Distance)
	assert.Equal(t, "W", cfg.Analysis.Weights.Style)
	assert.False(t, cfg.Analysis.Weights.ZeroPolicy)
	assert.False(t, cfg.Analysis.Weights.InverseDistance)
	assert.InDelta(t, 2.0, cfg.Analysis.Weights.Power, 1e-9)
	assert.Equal(t, "randomization", cfg.Analysis.Autocorr.Assumption)
	assert.Equal(t, "two_sided", cfg.Analysis.Autocorr.Alternative)
	assert.Equal(t, 15, cfg.Analysis.Variogram.Lags)
	assert.InDelta(t, 1.0/3.0, cfg.Analysis.Variogram.CutoffFraction, 1e-9)
	assert.Equal(t, "exponential", cfg.Analysis.Variogram.Family)
	assert.Equal(t, "counts", cfg.Analysis.Variogram.FitWeighting)
	assert.Equal(t, 500, cfg.Analysis.Variogram.MaxIterations)
	assert.Equal(t, "linear", cfg.Analysis.Kriging.Trend)
	assert.Equal(t, 50, cfg.Analysis.Kriging.GridNX)
	assert.Equal(t, 50, cfg.Analysis.Kriging.GridNY)
	assert.Equal(t, 4, cfg.Analysis.Kriging.Concurrency)
	assert.Equal(t, "USA", cfg.Ingest.CountryCodes["united states of america"])
	assert.Equal(t, "utf-8", cfg.Ingest.Encoding)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
  format: console
analysis:
  distance: haversine
  weights:
    style: B
    zero_policy: true
  kriging:
    trend: constant
    grid_nx: 10
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "haversine", cfg.Analysis.Distance)
	assert.Equal(t, "B", cfg.Analysis.Weights.Style)
	assert.True(t, cfg.Analysis.Weights.ZeroPolicy)
	assert.Equal(t, "constant", cfg.Analysis.Kriging.Trend)
	assert.Equal(t, 10, cfg.Analysis.Kriging.GridNX)
	// Defaults still apply for unset values
	assert.Equal(t, 50, cfg.Analysis.Kriging.GridNY)
	assert.Equal(t, 15, cfg.Analysis.Variogram.Lags)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
analysis:
  weights:
    style: B
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("PARKSTAT_ANALYSIS_WEIGHTS_STYLE", "C")
	t.Setenv("PARKSTAT_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "C", cfg.Analysis.Weights.Style)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadRejectsUnknownFamily(t *testing.T) {
	chdirTemp(t)
	t.Setenv("PARKSTAT_ANALYSIS_VARIOGRAM_FAMILY", "matern")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analysis.variogram.family")
}

func validAnalysis() AnalysisConfig {
	return AnalysisConfig{
		Distance: "planar",
		Weights:  WeightsConfig{Style: "W", Power: 2},
		Autocorr: AutocorrConfig{Assumption: "randomization", Alternative: "two_sided"},
		Variogram: VariogramConfig{
			Lags: 15, CutoffFraction: 0.33, Family: "exponential",
			FitWeighting: "counts", MaxIterations: 100,
		},
		Kriging: KrigingConfig{Trend: "linear", GridNX: 5, GridNY: 5, Concurrency: 2},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(a *AnalysisConfig)
		wantErr string
	}{
		{"valid", func(a *AnalysisConfig) {}, ""},
		{"bad distance", func(a *AnalysisConfig) { a.Distance = "manhattan" }, "analysis.distance"},
		{"bad style", func(a *AnalysisConfig) { a.Weights.Style = "S" }, "analysis.weights.style"},
		{"bad alternative", func(a *AnalysisConfig) { a.Autocorr.Alternative = "both" }, "analysis.autocorr.alternative"},
		{"bad power", func(a *AnalysisConfig) { a.Weights.InverseDistance = true; a.Weights.Power = 0 }, "power must be positive"},
		{"zero lags", func(a *AnalysisConfig) { a.Variogram.Lags = 0 }, "lags must be at least 1"},
		{"cutoff above one", func(a *AnalysisConfig) { a.Variogram.CutoffFraction = 1.5 }, "cutoff_fraction"},
		{"zero grid", func(a *AnalysisConfig) { a.Kriging.GridNY = 0 }, "grid dimensions"},
		{"zero concurrency", func(a *AnalysisConfig) { a.Kriging.Concurrency = 0 }, "concurrency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validAnalysis()
			tt.mutate(&a)
			err := a.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

func TestInitLoggerUnknownFormat(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "logfmt"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.format")
}

func TestInitLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json", Output: path}))
	t.Cleanup(func() { _ = InitLogger(LogConfig{Level: "error", Format: "json"}) })

	zap.L().Info("kriging done", zap.Int("cells", 30))
	_ = zap.L().Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"app":"parking-stats"`)
	assert.Contains(t, string(data), `"cells":30`)
}

func TestLoadExplicitPath(t *testing.T) {
	chdirTemp(t)
	path := filepath.Join(t.TempDir(), "toronto.yaml")
	require.NoError(t, os.WriteFile(path, []byte("analysis:\n  distance: haversine\nlog:\n  output: stdout\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "haversine", cfg.Analysis.Distance)
	assert.Equal(t, "stdout", cfg.Log.Output)
	assert.Equal(t, "W", cfg.Analysis.Weights.Style)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.yaml")
}
