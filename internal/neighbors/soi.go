package neighbors

import (
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/sells-group/parking-stats/internal/model"
)

// soiTol is the relative slack allowed when comparing an edge length with the
// sum of the two influence radii.
const soiTol = 1e-12

// NearestDistances returns, for each point, the distance to its nearest other
// point under the metric. The search runs on a k-d tree: planar coordinates
// directly, haversine coordinates as unit-sphere vectors whose chord length
// orders neighbours exactly like great-circle distance.
func NearestDistances(coords []model.Coord, m Metric) ([]float64, error) {
	if len(coords) < 2 {
		return nil, eris.Errorf("neighbors: nearest distance needs at least 2 points, got %d", len(coords))
	}

	pts := make(kdtree.Points, len(coords))
	for i, c := range coords {
		pts[i] = embed(c, m)
	}
	tree := kdtree.New(pts, false)

	out := make([]float64, len(coords))
	for i, c := range coords {
		keep := kdtree.NewNKeeper(2)
		tree.NearestSet(keep, embed(c, m))

		// The two closest entries are the point itself and its nearest neighbour.
		best := -1.0
		for _, cd := range keep.Heap {
			if cd.Comparable == nil {
				continue
			}
			if cd.Dist > best {
				best = cd.Dist
			}
		}
		if best <= 0 {
			return nil, eris.Wrapf(ErrDuplicatePoints, "neighbors: point %d has a coincident neighbour", i)
		}
		out[i] = unembedDistance(math.Sqrt(best), m)
	}
	return out, nil
}

func embed(c model.Coord, m Metric) kdtree.Point {
	if m == Haversine {
		lat := c.Y * math.Pi / 180
		lon := c.X * math.Pi / 180
		return kdtree.Point{math.Cos(lat) * math.Cos(lon), math.Cos(lat) * math.Sin(lon), math.Sin(lat)}
	}
	return kdtree.Point{c.X, c.Y}
}

func unembedDistance(d float64, m Metric) float64 {
	if m == Haversine {
		return EarthRadiusKM * 2 * math.Asin(math.Min(1, d/2))
	}
	return d
}

// SphereOfInfluence prunes a triangulation: an edge (p, q) is kept when the
// circles centred on p and q, each with radius equal to that point's
// nearest-neighbour distance, intersect.
func SphereOfInfluence(coords []model.Coord, tri *NeighborList, m Metric) (*NeighborList, error) {
	if len(coords) != tri.Len() {
		return nil, eris.Errorf("neighbors: %d coordinates for %d points", len(coords), tri.Len())
	}
	radius, err := NearestDistances(coords, m)
	if err != nil {
		return nil, err
	}

	edges := make(map[[2]int]struct{}, tri.Links()/2)
	for i := 0; i < tri.Len(); i++ {
		for _, j := range tri.Neighbors(i) {
			if j < i {
				continue
			}
			reach := radius[i] + radius[j]
			if m.Distance(coords[i], coords[j]) <= reach*(1+soiTol) {
				edges[edgeKey(i, j)] = struct{}{}
			}
		}
	}
	return fromEdgeSet(tri.Len(), edges), nil
}

// SOIGraph triangulates coords and prunes the result to a sphere-of-influence graph.
func SOIGraph(coords []model.Coord, m Metric) (*NeighborList, error) {
	tri, err := Delaunay(coords)
	if err != nil {
		return nil, err
	}
	return SphereOfInfluence(coords, tri, m)
}
