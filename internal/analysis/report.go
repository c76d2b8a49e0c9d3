package analysis

import (
	"fmt"
	"time"

	"github.com/sells-group/parking-stats/internal/autocorr"
	"github.com/sells-group/parking-stats/internal/geometry"
	"github.com/sells-group/parking-stats/internal/kriging"
	"github.com/sells-group/parking-stats/internal/model"
	"github.com/sells-group/parking-stats/internal/variogram"
)

// Stage names used in reports and errors.
const (
	StageNameGraph      = "graph"
	StageNameMoran      = "moran"
	StageNameGeary      = "geary"
	StageNameLocalMoran = "local_moran"
	StageNameVariogram  = "variogram"
	StageNameKriging    = "kriging"
)

// Status is the outcome of a report section.
type Status string

const (
	StatusOK          Status = "ok"
	StatusUnavailable Status = "unavailable"
	StatusSkipped     Status = "skipped"
)

// StageError ties a failure to the stage it happened in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("analysis: %s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Section is the common status block of every report section.
type Section struct {
	Status     Status      `json:"status" yaml:"status"`
	Error      string      `json:"error,omitempty" yaml:"error,omitempty"`
	DurationMs int64       `json:"duration_ms" yaml:"duration_ms"`
	StageErr   *StageError `json:"-" yaml:"-"`
}

// Available reports whether the section holds results.
func (s Section) Available() bool { return s.Status == StatusOK }

func (s *Section) fail(stage string, err error) {
	s.Status = StatusUnavailable
	s.StageErr = &StageError{Stage: stage, Err: err}
	s.Error = s.StageErr.Error()
}

// InputSection describes what happened to the raw observations.
type InputSection struct {
	Observations int                  `json:"observations" yaml:"observations"`
	Analyzed     int                  `json:"analyzed" yaml:"analyzed"`
	Excluded     []geometry.Exclusion `json:"excluded,omitempty" yaml:"excluded,omitempty"`
	Duplicates   []string             `json:"duplicates,omitempty" yaml:"duplicates,omitempty"`
}

// GraphSection describes the neighbourhood graph and its weights.
type GraphSection struct {
	Section       `yaml:",inline"`
	Metric        string   `json:"metric" yaml:"metric"`
	Style         string   `json:"style" yaml:"style"`
	ZeroPolicy    bool     `json:"zero_policy" yaml:"zero_policy"`
	Points        int      `json:"points" yaml:"points"`
	Links         int      `json:"links" yaml:"links"`
	MeanNeighbors float64  `json:"mean_neighbors" yaml:"mean_neighbors"`
	Isolated      []string `json:"isolated,omitempty" yaml:"isolated,omitempty"`
	S0            float64  `json:"s0" yaml:"s0"`
	S1            float64  `json:"s1" yaml:"s1"`
	S2            float64  `json:"s2" yaml:"s2"`
}

// GlobalSection holds one global autocorrelation test.
type GlobalSection struct {
	Section `yaml:",inline"`
	Result  *autocorr.Result `json:"result,omitempty" yaml:"result,omitempty"`
}

// LocalPoint is a Local Moran's I entry with the observation it belongs to.
type LocalPoint struct {
	ID                   string  `json:"id" yaml:"id"`
	Lon                  float64 `json:"lon" yaml:"lon"`
	Lat                  float64 `json:"lat" yaml:"lat"`
	autocorr.LocalResult `yaml:",inline"`
}

// LocalSection holds Local Moran's I for every analysed point.
type LocalSection struct {
	Section `yaml:",inline"`
	Points  []LocalPoint `json:"points,omitempty" yaml:"points,omitempty"`
}

// VariogramSection holds the empirical variogram and fitted model.
type VariogramSection struct {
	Section   `yaml:",inline"`
	Detrended bool                 `json:"detrended" yaml:"detrended"`
	Empirical *variogram.Empirical `json:"empirical,omitempty" yaml:"empirical,omitempty"`
	Model     *variogram.Model     `json:"model,omitempty" yaml:"model,omitempty"`
}

// KrigingSection holds the predicted surface.
type KrigingSection struct {
	Section `yaml:",inline"`
	Bounds  *kriging.BBox   `json:"bounds,omitempty" yaml:"bounds,omitempty"`
	Surface *kriging.Result `json:"surface,omitempty" yaml:"surface,omitempty"`
}

// Report is the typed outcome of one analysis run. Every section is present;
// failed sections carry StatusUnavailable and the cause.
type Report struct {
	RunID       string           `json:"run_id" yaml:"run_id"`
	GeneratedAt time.Time        `json:"generated_at" yaml:"generated_at"`
	Input       InputSection     `json:"input" yaml:"input"`
	Summary     model.Summary    `json:"summary" yaml:"summary"`
	Graph       GraphSection     `json:"graph" yaml:"graph"`
	Moran       GlobalSection    `json:"moran" yaml:"moran"`
	Geary       GlobalSection    `json:"geary" yaml:"geary"`
	Local       LocalSection     `json:"local_moran" yaml:"local_moran"`
	Variogram   VariogramSection `json:"variogram" yaml:"variogram"`
	Kriging     KrigingSection   `json:"kriging" yaml:"kriging"`

	// Features are the analysed points, aligned with Local.Points.
	Features []geometry.Feature `json:"-" yaml:"-"`
}

// StageErrors returns the failures of every unavailable section.
func (r *Report) StageErrors() []*StageError {
	var errs []*StageError
	for _, s := range []*Section{
		&r.Graph.Section, &r.Moran.Section, &r.Geary.Section,
		&r.Local.Section, &r.Variogram.Section, &r.Kriging.Section,
	} {
		if s.StageErr != nil {
			errs = append(errs, s.StageErr)
		}
	}
	return errs
}
