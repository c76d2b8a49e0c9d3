package analysis

import (
	"github.com/sells-group/parking-stats/internal/autocorr"
	"github.com/sells-group/parking-stats/internal/config"
	"github.com/sells-group/parking-stats/internal/kriging"
	"github.com/sells-group/parking-stats/internal/neighbors"
	"github.com/sells-group/parking-stats/internal/variogram"
	"github.com/sells-group/parking-stats/internal/weights"
)

// StageSet selects which analytic stages Run executes.
type StageSet uint8

const (
	StageGraph StageSet = 1 << iota
	StageAutocorr
	StageVariogram
	StageKriging

	// AllStages runs everything. Autocorrelation implies the graph stage and
	// kriging implies the variogram stage.
	AllStages = StageGraph | StageAutocorr | StageVariogram | StageKriging
)

func (s StageSet) has(st StageSet) bool { return s&st != 0 }

func (s StageSet) normalize() StageSet {
	if s == 0 {
		return AllStages
	}
	if s.has(StageAutocorr) {
		s |= StageGraph
	}
	if s.has(StageKriging) {
		s |= StageVariogram
	}
	return s
}

// Options holds the parsed settings of every stage.
type Options struct {
	Stages    StageSet
	Metric    neighbors.Metric
	Weights   weights.Options
	Autocorr  autocorr.Options
	Variogram variogram.Options
	Family    variogram.Family
	Fit       variogram.FitOptions
	Kriging   kriging.Options
	GridNX    int
	GridNY    int
	Padding   float64
}

// ParseOptions converts validated configuration into typed stage options.
func ParseOptions(cfg config.AnalysisConfig) (Options, error) {
	var (
		opts Options
		err  error
	)
	if opts.Metric, err = neighbors.ParseMetric(cfg.Distance); err != nil {
		return Options{}, err
	}
	if opts.Weights.Style, err = weights.ParseStyle(cfg.Weights.Style); err != nil {
		return Options{}, err
	}
	opts.Weights.ZeroPolicy = cfg.Weights.ZeroPolicy
	opts.Weights.InverseDistance = cfg.Weights.InverseDistance
	opts.Weights.Power = cfg.Weights.Power

	if opts.Autocorr.Assumption, err = autocorr.ParseAssumption(cfg.Autocorr.Assumption); err != nil {
		return Options{}, err
	}
	if opts.Autocorr.Alternative, err = autocorr.ParseAlternative(cfg.Autocorr.Alternative); err != nil {
		return Options{}, err
	}

	opts.Variogram = variogram.Options{
		Lags:           cfg.Variogram.Lags,
		CutoffFraction: cfg.Variogram.CutoffFraction,
		Metric:         opts.Metric,
	}
	if opts.Family, err = variogram.ParseFamily(cfg.Variogram.Family); err != nil {
		return Options{}, err
	}
	if opts.Fit.Weighting, err = variogram.ParseWeighting(cfg.Variogram.FitWeighting); err != nil {
		return Options{}, err
	}
	opts.Fit.MaxIterations = cfg.Variogram.MaxIterations

	if opts.Kriging.Trend, err = kriging.ParseTrend(cfg.Kriging.Trend); err != nil {
		return Options{}, err
	}
	opts.Kriging.Metric = opts.Metric
	opts.Kriging.Concurrency = cfg.Kriging.Concurrency
	opts.GridNX = cfg.Kriging.GridNX
	opts.GridNY = cfg.Kriging.GridNY
	opts.Padding = cfg.Kriging.Padding
	opts.Stages = AllStages
	return opts, nil
}
