package export

import (
	"io"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/parking-stats/internal/analysis"
	"github.com/sells-group/parking-stats/internal/geometry"
)

// WriteGeoJSON writes the analysed points as a FeatureCollection. When Local
// Moran's I is available each feature carries abs_z, the absolute z-score used
// to size map markers, along with ii, p and quadrant.
func WriteGeoJSON(w io.Writer, r *analysis.Report) error {
	var props func(int, geometry.Feature) map[string]any
	if r.Local.Available() && len(r.Local.Points) == len(r.Features) {
		props = func(i int, _ geometry.Feature) map[string]any {
			lp := r.Local.Points[i]
			return map[string]any{
				"abs_z":    math.Abs(lp.Z),
				"ii":       lp.Ii,
				"p":        lp.P,
				"quadrant": string(lp.Quadrant),
			}
		}
	}

	data, err := geometry.EncodeFeatureCollection(r.Features, props)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return eris.Wrap(err, "export: write geojson")
	}
	return nil
}

// WriteGeoJSONFile writes the GeoJSON output to path.
func WriteGeoJSONFile(path string, r *analysis.Report) error {
	return writeFile(path, func(w io.Writer) error { return WriteGeoJSON(w, r) })
}
