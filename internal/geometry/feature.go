package geometry

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/parking-stats/internal/model"
)

// Feature is an observation paired with its point geometry and parsed boundary.
type Feature struct {
	Index       int               // position in the input slice
	Observation model.Observation // Polygon is set when a boundary was present
	Point       *geom.Point
}

// Exclusion records an observation dropped because its boundary could not be parsed.
type Exclusion struct {
	Index  int    `json:"index" yaml:"index"`
	ID     string `json:"id" yaml:"id"`
	Reason string `json:"reason" yaml:"reason"`
	Err    error  `json:"-" yaml:"-"`
}

// Build constructs point features for every observation. Observations with a
// malformed boundary are left out and reported instead of failing the batch.
// An empty boundary string yields a feature without a polygon.
func Build(obs []model.Observation) ([]Feature, []Exclusion) {
	log := zap.L().With(zap.String("component", "geometry"))

	features := make([]Feature, 0, len(obs))
	var excluded []Exclusion
	for i, o := range obs {
		if strings.TrimSpace(o.Boundary) != "" {
			poly, err := ParseBoundary(o.Boundary)
			if err != nil {
				log.Warn("excluding observation with malformed boundary",
					zap.Int("index", i),
					zap.String("id", o.ID),
					zap.Error(err),
				)
				excluded = append(excluded, Exclusion{Index: i, ID: o.ID, Reason: err.Error(), Err: err})
				continue
			}
			o.Polygon = poly
		}
		features = append(features, Feature{
			Index:       i,
			Observation: o,
			Point:       geom.NewPointFlat(geom.XY, []float64{o.Lon, o.Lat}).SetSRID(SRID),
		})
	}

	if len(excluded) > 0 {
		log.Info("geometry build complete",
			zap.Int("features", len(features)),
			zap.Int("excluded", len(excluded)),
		)
	}
	return features, excluded
}

// Observations returns the observations of the given features in order.
func Observations(features []Feature) []model.Observation {
	out := make([]model.Observation, len(features))
	for i, f := range features {
		out[i] = f.Observation
	}
	return out
}

// EncodeFeatureCollection renders features as a GeoJSON FeatureCollection of points.
// props, when non-nil, supplies extra properties per feature (for example a local
// autocorrelation score); the observation's own attributes are always included.
func EncodeFeatureCollection(features []Feature, props func(i int, f Feature) map[string]any) ([]byte, error) {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(features))}
	for i, f := range features {
		p := map[string]any{
			"country":          f.Observation.Country,
			"state":            f.Observation.State,
			"city":             f.Observation.City,
			"county":           f.Observation.County,
			"avg_time_to_park": f.Observation.AvgTimeToPark,
			"total_searching":  f.Observation.TotalSearching,
		}
		if props != nil {
			for k, v := range props(i, f) {
				p[k] = v
			}
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         f.Observation.ID,
			Geometry:   f.Point,
			Properties: p,
		})
	}

	data, err := json.Marshal(fc)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: encode geojson")
	}
	return data, nil
}
