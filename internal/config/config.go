package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AppName tags every log entry.
const AppName = "parking-stats"

// Config holds the full application configuration.
type Config struct {
	Ingest   IngestConfig   `yaml:"ingest" mapstructure:"ingest"`
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// IngestConfig configures how observation files are read.
type IngestConfig struct {
	Sheet        string            `yaml:"sheet" mapstructure:"sheet"`
	Encoding     string            `yaml:"encoding" mapstructure:"encoding"`
	CountryCodes map[string]string `yaml:"country_codes" mapstructure:"country_codes"`
}

// AnalysisConfig groups the knobs of every analytic stage.
type AnalysisConfig struct {
	Distance  string          `yaml:"distance" mapstructure:"distance"`
	Weights   WeightsConfig   `yaml:"weights" mapstructure:"weights"`
	Autocorr  AutocorrConfig  `yaml:"autocorr" mapstructure:"autocorr"`
	Variogram VariogramConfig `yaml:"variogram" mapstructure:"variogram"`
	Kriging   KrigingConfig   `yaml:"kriging" mapstructure:"kriging"`
}

// WeightsConfig configures spatial weights construction.
type WeightsConfig struct {
	Style           string  `yaml:"style" mapstructure:"style"`
	ZeroPolicy      bool    `yaml:"zero_policy" mapstructure:"zero_policy"`
	InverseDistance bool    `yaml:"inverse_distance" mapstructure:"inverse_distance"`
	Power           float64 `yaml:"power" mapstructure:"power"`
}

// AutocorrConfig configures the significance tests.
type AutocorrConfig struct {
	Assumption  string `yaml:"assumption" mapstructure:"assumption"`
	Alternative string `yaml:"alternative" mapstructure:"alternative"`
}

// VariogramConfig configures the empirical variogram and model fit.
type VariogramConfig struct {
	Lags           int     `yaml:"lags" mapstructure:"lags"`
	CutoffFraction float64 `yaml:"cutoff_fraction" mapstructure:"cutoff_fraction"`
	Family         string  `yaml:"family" mapstructure:"family"`
	FitWeighting   string  `yaml:"fit_weighting" mapstructure:"fit_weighting"`
	MaxIterations  int     `yaml:"max_iterations" mapstructure:"max_iterations"`
}

// KrigingConfig configures the interpolation surface.
type KrigingConfig struct {
	Trend       string  `yaml:"trend" mapstructure:"trend"`
	GridNX      int     `yaml:"grid_nx" mapstructure:"grid_nx"`
	GridNY      int     `yaml:"grid_ny" mapstructure:"grid_ny"`
	Padding     float64 `yaml:"padding" mapstructure:"padding"`
	Concurrency int     `yaml:"concurrency" mapstructure:"concurrency"`
}

// OutputConfig configures report rendering.
type OutputConfig struct {
	Format string `yaml:"format" mapstructure:"format"`
}

// LogConfig configures logging. Output is a zap sink path such as "stderr"
// or a file name.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	Output string `yaml:"output" mapstructure:"output"`
}

// Load reads configuration from file and environment. An empty path looks for
// an optional config.yaml in the working directory; an explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("PARKSTAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("output.format", "json")
	v.SetDefault("ingest.sheet", "")
	v.SetDefault("ingest.encoding", "utf-8")
	v.SetDefault("ingest.country_codes", map[string]string{
		"united states of america": "USA",
		"united states":            "USA",
		"canada":                   "CAN",
		"mexico":                   "MEX",
	})
	v.SetDefault("analysis.distance", "planar")
	v.SetDefault("analysis.weights.style", "W")
	v.SetDefault("analysis.weights.zero_policy", false)
	v.SetDefault("analysis.weights.inverse_distance", false)
	v.SetDefault("analysis.weights.power", 2.0)
	v.SetDefault("analysis.autocorr.assumption", "randomization")
	v.SetDefault("analysis.autocorr.alternative", "two_sided")
	v.SetDefault("analysis.variogram.lags", 15)
	v.SetDefault("analysis.variogram.cutoff_fraction", 1.0/3.0)
	v.SetDefault("analysis.variogram.family", "exponential")
	v.SetDefault("analysis.variogram.fit_weighting", "counts")
	v.SetDefault("analysis.variogram.max_iterations", 500)
	v.SetDefault("analysis.kriging.trend", "linear")
	v.SetDefault("analysis.kriging.grid_nx", 50)
	v.SetDefault("analysis.kriging.grid_ny", 50)
	v.SetDefault("analysis.kriging.padding", 0.05)
	v.SetDefault("analysis.kriging.concurrency", 4)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrapf(err, "config: read file %q", v.ConfigFileUsed())
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Analysis.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects enum values and sizes the analysis stages cannot use.
func (a AnalysisConfig) Validate() error {
	checks := []struct {
		key, value string
		allowed    []string
	}{
		{"analysis.distance", a.Distance, []string{"planar", "haversine"}},
		{"analysis.weights.style", a.Weights.Style, []string{"W", "B", "C"}},
		{"analysis.autocorr.assumption", a.Autocorr.Assumption, []string{"normality", "randomization"}},
		{"analysis.autocorr.alternative", a.Autocorr.Alternative, []string{"two_sided", "greater", "less"}},
		{"analysis.variogram.family", a.Variogram.Family, []string{"exponential", "spherical", "gaussian"}},
		{"analysis.variogram.fit_weighting", a.Variogram.FitWeighting, []string{"counts", "counts_over_lag_sq"}},
		{"analysis.kriging.trend", a.Kriging.Trend, []string{"constant", "linear"}},
	}
	for _, c := range checks {
		if !contains(c.allowed, c.value) {
			return eris.Errorf("config: %s must be one of %v, got %q", c.key, c.allowed, c.value)
		}
	}

	if a.Weights.InverseDistance && a.Weights.Power <= 0 {
		return eris.New("config: analysis.weights.power must be positive")
	}
	if a.Variogram.Lags < 1 {
		return eris.New("config: analysis.variogram.lags must be at least 1")
	}
	if a.Variogram.CutoffFraction <= 0 || a.Variogram.CutoffFraction > 1 {
		return eris.New("config: analysis.variogram.cutoff_fraction must be in (0, 1]")
	}
	if a.Variogram.MaxIterations < 1 {
		return eris.New("config: analysis.variogram.max_iterations must be at least 1")
	}
	if a.Kriging.GridNX < 2 || a.Kriging.GridNY < 2 {
		return eris.New("config: analysis.kriging grid dimensions must be at least 2")
	}
	if a.Kriging.Concurrency < 1 {
		return eris.New("config: analysis.kriging.concurrency must be at least 1")
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// InitLogger replaces the global zap logger. Every entry carries the app name
// so runs can be picked out of shared log sinks.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	switch cfg.Format {
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
	case "json", "":
		zapCfg = zap.NewProductionConfig()
	default:
		return eris.Errorf("config: log.format must be json or console, got %q", cfg.Format)
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)
	if cfg.Output != "" {
		zapCfg.OutputPaths = []string{cfg.Output}
	}

	logger, err := zapCfg.Build(zap.Fields(zap.String("app", AppName)))
	if err != nil {
		return eris.Wrapf(err, "config: build logger for %q", cfg.Output)
	}
	zap.ReplaceGlobals(logger)
	return nil
}
