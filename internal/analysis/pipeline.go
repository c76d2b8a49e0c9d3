// Package analysis runs the spatial-statistics stages over a batch of
// observations and collects their results into a Report.
package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/parking-stats/internal/autocorr"
	"github.com/sells-group/parking-stats/internal/geometry"
	"github.com/sells-group/parking-stats/internal/kriging"
	"github.com/sells-group/parking-stats/internal/model"
	"github.com/sells-group/parking-stats/internal/neighbors"
	"github.com/sells-group/parking-stats/internal/variogram"
	"github.com/sells-group/parking-stats/internal/weights"
)

// ErrUpstream marks a stage that could not run because a stage it depends on failed.
var ErrUpstream = errors.New("upstream stage unavailable")

// Run executes the selected stages. The graph, autocorrelation and kriging
// stages fail independently: a failure marks its section unavailable and the
// run continues. Run itself only fails on a cancelled context before any work.
func Run(ctx context.Context, obs []model.Observation, opts Options) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "analysis: run")
	}
	opts.Stages = opts.Stages.normalize()

	r := &Report{
		RunID:       uuid.New().String(),
		GeneratedAt: time.Now().UTC(),
	}
	log := zap.L().With(zap.String("component", "analysis"), zap.String("run_id", r.RunID))
	log.Info("analysis: starting run", zap.Int("observations", len(obs)))

	features, excluded := geometry.Build(obs)
	ps, dropped := model.NewPointSet(geometry.Observations(features)).Dedup()
	r.Features = keepFeatures(features, ps)
	r.Input = InputSection{
		Observations: len(obs),
		Analyzed:     ps.Len(),
		Excluded:     excluded,
		Duplicates:   dropped,
	}
	if len(dropped) > 0 {
		log.Warn("analysis: dropped coincident observations", zap.Strings("ids", dropped))
	}
	r.Summary = ps.Summary()

	coords := ps.Coords()
	values := ps.Values()

	track := func(s *Section, name string, fn func() error) bool {
		start := time.Now()
		err := fn()
		s.DurationMs = time.Since(start).Milliseconds()
		if err != nil {
			s.fail(name, err)
			log.Error("analysis: stage failed",
				zap.String("stage", name),
				zap.Int64("duration_ms", s.DurationMs),
				zap.Error(err),
			)
			return false
		}
		s.Status = StatusOK
		log.Info("analysis: stage complete",
			zap.String("stage", name),
			zap.Int64("duration_ms", s.DurationMs),
		)
		return true
	}
	skip := func(sections ...*Section) {
		for _, s := range sections {
			s.Status = StatusSkipped
		}
	}
	upstream := func(s *Section, name, dep string) {
		s.fail(name, eris.Wrapf(ErrUpstream, "requires %s", dep))
	}

	// Neighbourhood graph and autocorrelation.
	var sw *weights.SpatialWeights
	graphOK := false
	if opts.Stages.has(StageGraph) {
		graphOK = track(&r.Graph.Section, StageNameGraph, func() error {
			var err error
			sw, err = buildGraph(ps, coords, opts, &r.Graph)
			return err
		})
	} else {
		skip(&r.Graph.Section)
	}

	if !opts.Stages.has(StageAutocorr) {
		skip(&r.Moran.Section, &r.Geary.Section, &r.Local.Section)
	} else if !graphOK {
		upstream(&r.Moran.Section, StageNameMoran, StageNameGraph)
		upstream(&r.Geary.Section, StageNameGeary, StageNameGraph)
		upstream(&r.Local.Section, StageNameLocalMoran, StageNameGraph)
	} else {
		track(&r.Moran.Section, StageNameMoran, func() error {
			res, err := autocorr.Moran(values, sw, opts.Autocorr)
			if err == nil {
				r.Moran.Result = &res
			}
			return err
		})
		track(&r.Geary.Section, StageNameGeary, func() error {
			res, err := autocorr.Geary(values, sw, opts.Autocorr)
			if err == nil {
				r.Geary.Result = &res
			}
			return err
		})
		track(&r.Local.Section, StageNameLocalMoran, func() error {
			local, err := autocorr.LocalMoran(values, sw, opts.Autocorr)
			if err != nil {
				return err
			}
			r.Local.Points = make([]LocalPoint, len(local))
			for i, l := range local {
				o := ps.At(i)
				r.Local.Points[i] = LocalPoint{ID: o.ID, Lon: o.Lon, Lat: o.Lat, LocalResult: l}
			}
			return nil
		})
	}

	// Variogram and kriging.
	var vm variogram.Model
	variogramOK := false
	if opts.Stages.has(StageVariogram) {
		variogramOK = track(&r.Variogram.Section, StageNameVariogram, func() error {
			var err error
			vm, err = fitVariogram(coords, values, opts, &r.Variogram)
			return err
		})
	} else {
		skip(&r.Variogram.Section)
	}

	switch {
	case !opts.Stages.has(StageKriging):
		skip(&r.Kriging.Section)
	case !variogramOK:
		upstream(&r.Kriging.Section, StageNameKriging, StageNameVariogram)
	default:
		track(&r.Kriging.Section, StageNameKriging, func() error {
			return krige(ctx, coords, values, vm, opts, &r.Kriging)
		})
	}

	log.Info("analysis: run complete",
		zap.Int("analyzed", ps.Len()),
		zap.Int("excluded", len(excluded)),
		zap.Int("failed_stages", len(r.StageErrors())),
	)
	return r, nil
}

// keepFeatures returns the features that survived deduplication, in order.
func keepFeatures(features []geometry.Feature, ps model.PointSet) []geometry.Feature {
	kept := make([]geometry.Feature, 0, ps.Len())
	j := 0
	for _, f := range features {
		if j < ps.Len() && ps.At(j).ID == f.Observation.ID && ps.At(j).Coord() == f.Observation.Coord() {
			kept = append(kept, f)
			j++
		}
	}
	return kept
}

func buildGraph(ps model.PointSet, coords []model.Coord, opts Options, out *GraphSection) (*weights.SpatialWeights, error) {
	out.Metric = opts.Metric.String()
	out.Style = opts.Weights.Style.String()
	out.ZeroPolicy = opts.Weights.ZeroPolicy
	out.Points = len(coords)

	nl, err := neighbors.SOIGraph(coords, opts.Metric)
	if err != nil {
		return nil, err
	}
	out.Links = nl.Links() / 2
	if nl.Len() > 0 {
		out.MeanNeighbors = float64(nl.Links()) / float64(nl.Len())
	}
	for _, i := range nl.Isolated() {
		out.Isolated = append(out.Isolated, ps.At(i).ID)
	}

	var dists [][]float64
	if opts.Weights.InverseDistance {
		if dists, err = neighbors.EdgeDistances(nl, coords, opts.Metric); err != nil {
			return nil, err
		}
	}
	sw, err := weights.Build(nl, dists, opts.Weights)
	if err != nil {
		return nil, err
	}
	m := sw.Moments()
	out.S0, out.S1, out.S2 = m.S0, m.S1, m.S2
	return sw, nil
}

func fitVariogram(coords []model.Coord, values []float64, opts Options, out *VariogramSection) (variogram.Model, error) {
	target := values
	if opts.Kriging.Trend == kriging.Linear {
		resid, err := variogram.Detrend(coords, values)
		if err != nil {
			return variogram.Model{}, err
		}
		target = resid
		out.Detrended = true
	}

	emp, err := variogram.Compute(coords, target, opts.Variogram)
	if err != nil {
		return variogram.Model{}, err
	}
	out.Empirical = emp

	vm, err := variogram.Fit(emp, opts.Family, opts.Fit)
	if err != nil {
		return variogram.Model{}, err
	}
	out.Model = &vm
	return vm, nil
}

func krige(ctx context.Context, coords []model.Coord, values []float64, vm variogram.Model, opts Options, out *KrigingSection) error {
	bbox, err := kriging.BoundsOf(coords, opts.Padding)
	if err != nil {
		return err
	}
	out.Bounds = &bbox
	grid, err := kriging.RegularGrid(bbox, opts.GridNX, opts.GridNY)
	if err != nil {
		return err
	}
	res, err := kriging.Krige(ctx, coords, values, vm, grid, opts.Kriging)
	if err != nil {
		return err
	}
	out.Surface = res
	return nil
}
