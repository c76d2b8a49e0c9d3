package neighbors

import (
	"errors"
	"math"
	"sort"

	"github.com/fogleman/delaunay"
	"github.com/rotisserie/eris"

	"github.com/sells-group/parking-stats/internal/model"
)

// ErrDuplicatePoints is returned when two input coordinates coincide.
var ErrDuplicatePoints = errors.New("duplicate points")

// collinearTol is the cross-product tolerance, in normalised units, below which
// the whole point set is treated as lying on one line.
const collinearTol = 1e-12

func edgeKey(i, j int) [2]int {
	if i > j {
		i, j = j, i
	}
	return [2]int{i, j}
}

// Delaunay triangulates coords and returns the triangulation edges as an
// undirected NeighborList. The result depends only on the coordinates and
// their order. Two points yield a single edge and a collinear set yields a
// chain along the line.
func Delaunay(coords []model.Coord) (*NeighborList, error) {
	n := len(coords)
	if n < 2 {
		return nil, eris.Errorf("neighbors: triangulation needs at least 2 points, got %d", n)
	}
	if i, j, ok := findDuplicate(coords); ok {
		return nil, eris.Wrapf(ErrDuplicatePoints, "neighbors: points %d and %d coincide", i, j)
	}

	pts := normalize(coords)
	if chain, ok := collinearChain(pts); ok {
		edges := make(map[[2]int]struct{}, n-1)
		for k := 1; k < len(chain); k++ {
			edges[edgeKey(chain[k-1], chain[k])] = struct{}{}
		}
		return fromEdgeSet(n, edges), nil
	}

	in := make([]delaunay.Point, n)
	for i, p := range pts {
		in[i] = delaunay.Point{X: p.X, Y: p.Y}
	}
	tri, err := delaunay.Triangulate(in)
	if err != nil {
		return nil, eris.Wrap(err, "neighbors: triangulate")
	}

	edges := make(map[[2]int]struct{}, 3*n)
	for t := 0; t+2 < len(tri.Triangles); t += 3 {
		a, b, c := tri.Triangles[t], tri.Triangles[t+1], tri.Triangles[t+2]
		edges[edgeKey(a, b)] = struct{}{}
		edges[edgeKey(b, c)] = struct{}{}
		edges[edgeKey(c, a)] = struct{}{}
	}
	return fromEdgeSet(n, edges), nil
}

func findDuplicate(coords []model.Coord) (int, int, bool) {
	seen := make(map[model.Coord]int, len(coords))
	for i, c := range coords {
		if j, ok := seen[c]; ok {
			return j, i, true
		}
		seen[c] = i
	}
	return 0, 0, false
}

// normalize maps coords into the unit box, preserving aspect ratio.
func normalize(coords []model.Coord) []model.Coord {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range coords {
		minX, maxX = math.Min(minX, c.X), math.Max(maxX, c.X)
		minY, maxY = math.Min(minY, c.Y), math.Max(maxY, c.Y)
	}
	scale := math.Max(maxX-minX, maxY-minY)
	out := make([]model.Coord, len(coords))
	for i, c := range coords {
		out[i] = model.Coord{X: (c.X - minX) / scale, Y: (c.Y - minY) / scale}
	}
	return out
}

// collinearChain reports whether all points lie on one line and, if so,
// returns their indices ordered along it.
func collinearChain(pts []model.Coord) ([]int, bool) {
	far, best := 0, -1.0
	for i, p := range pts {
		if d := math.Hypot(p.X-pts[0].X, p.Y-pts[0].Y); d > best {
			far, best = i, d
		}
	}
	dx, dy := pts[far].X-pts[0].X, pts[far].Y-pts[0].Y
	for _, p := range pts {
		cross := dx*(p.Y-pts[0].Y) - dy*(p.X-pts[0].X)
		if math.Abs(cross) > collinearTol {
			return nil, false
		}
	}

	order := make([]int, len(pts))
	proj := make([]float64, len(pts))
	for i, p := range pts {
		order[i] = i
		proj[i] = dx*(p.X-pts[0].X) + dy*(p.Y-pts[0].Y)
	}
	sort.SliceStable(order, func(a, b int) bool { return proj[order[a]] < proj[order[b]] })
	return order, true
}
