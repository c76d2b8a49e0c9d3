package neighbors

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/parking-stats/internal/model"
)

// EarthRadiusKM is the mean Earth radius used for great-circle distances.
const EarthRadiusKM = 6371.0

// Metric selects how distances between coordinates are measured.
type Metric int

const (
	// Planar is Euclidean distance in coordinate units.
	Planar Metric = iota
	// Haversine is great-circle distance in kilometres; X is longitude and Y latitude.
	Haversine
)

// ParseMetric maps a config value to a Metric.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "planar":
		return Planar, nil
	case "haversine":
		return Haversine, nil
	default:
		return Planar, eris.Errorf("neighbors: unknown distance metric %q", s)
	}
}

func (m Metric) String() string {
	if m == Haversine {
		return "haversine"
	}
	return "planar"
}

// Distance returns the distance between a and b under the metric.
func (m Metric) Distance(a, b model.Coord) float64 {
	if m == Haversine {
		return haversine(a.Y, a.X, b.Y, b.X)
	}
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKM * c
}

// EdgeDistances returns, for each point, the distance to each of its neighbours
// in the order of l.Neighbors(i).
func EdgeDistances(l *NeighborList, coords []model.Coord, m Metric) ([][]float64, error) {
	if len(coords) != l.Len() {
		return nil, eris.Errorf("neighbors: %d coordinates for %d points", len(coords), l.Len())
	}
	out := make([][]float64, l.Len())
	for i := range out {
		nbrs := l.Neighbors(i)
		out[i] = make([]float64, len(nbrs))
		for k, j := range nbrs {
			out[i][k] = m.Distance(coords[i], coords[j])
		}
	}
	return out, nil
}
