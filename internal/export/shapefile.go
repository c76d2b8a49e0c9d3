package export

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/parking-stats/internal/kriging"
)

// Attribute columns of the surface shapefile, in order.
const (
	FieldValue    = "VALUE"
	FieldVariance = "VARIANCE"
)

// WriteSurfaceShapefile writes every prediction as a point with VALUE and
// VARIANCE attributes. The .shx and .dbf siblings are created next to path.
func WriteSurfaceShapefile(path string, surface *kriging.Result) error {
	if surface == nil || len(surface.Predictions) == 0 {
		return eris.New("export: no kriging predictions to write")
	}

	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		return eris.Wrapf(err, "export: create shapefile %s", path)
	}
	defer w.Close()

	if err := w.SetFields([]shp.Field{
		shp.FloatField(FieldValue, 19, 6),
		shp.FloatField(FieldVariance, 19, 6),
	}); err != nil {
		return eris.Wrap(err, "export: set shapefile fields")
	}

	for _, p := range surface.Predictions {
		row := int(w.Write(&shp.Point{X: p.X, Y: p.Y}))
		if err := w.WriteAttribute(row, 0, p.Value); err != nil {
			return eris.Wrapf(err, "export: write %s for record %d", FieldValue, row)
		}
		if err := w.WriteAttribute(row, 1, p.Variance); err != nil {
			return eris.Wrapf(err, "export: write %s for record %d", FieldVariance, row)
		}
	}

	zap.L().Debug("export: wrote surface shapefile",
		zap.String("path", path),
		zap.Int("records", len(surface.Predictions)),
	)
	return nil
}
