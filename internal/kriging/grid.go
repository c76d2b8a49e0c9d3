package kriging

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/parking-stats/internal/model"
)

// BBox is an axis-aligned bounding box in coordinate units.
type BBox struct {
	MinX float64 `json:"min_x" yaml:"min_x"`
	MinY float64 `json:"min_y" yaml:"min_y"`
	MaxX float64 `json:"max_x" yaml:"max_x"`
	MaxY float64 `json:"max_y" yaml:"max_y"`
}

// BoundsOf returns the bounding box of coords grown on each side by pad times
// its width and height.
func BoundsOf(coords []model.Coord, pad float64) (BBox, error) {
	if len(coords) == 0 {
		return BBox{}, eris.New("kriging: bounds of empty point set")
	}
	if pad < 0 {
		return BBox{}, eris.Errorf("kriging: negative padding %v", pad)
	}
	b := BBox{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for _, c := range coords {
		b.MinX = math.Min(b.MinX, c.X)
		b.MinY = math.Min(b.MinY, c.Y)
		b.MaxX = math.Max(b.MaxX, c.X)
		b.MaxY = math.Max(b.MaxY, c.Y)
	}
	dx := (b.MaxX - b.MinX) * pad
	dy := (b.MaxY - b.MinY) * pad
	b.MinX -= dx
	b.MaxX += dx
	b.MinY -= dy
	b.MaxY += dy
	return b, nil
}

// Grid is the set of prediction locations. NX and NY are set for regular
// grids, where points are stored row by row from MinY upwards.
type Grid struct {
	Points []model.Coord
	NX, NY int
	Bounds BBox
}

// NewGrid wraps arbitrary prediction locations.
func NewGrid(points []model.Coord) *Grid {
	return &Grid{Points: append([]model.Coord(nil), points...)}
}

// RegularGrid lays nx × ny cell-corner points over b, edges included.
func RegularGrid(b BBox, nx, ny int) (*Grid, error) {
	if nx < 2 || ny < 2 {
		return nil, eris.Errorf("kriging: grid needs at least 2x2 points, got %dx%d", nx, ny)
	}
	if !(b.MaxX > b.MinX) || !(b.MaxY > b.MinY) {
		return nil, eris.Errorf("kriging: degenerate grid bounds %+v", b)
	}
	g := &Grid{Points: make([]model.Coord, 0, nx*ny), NX: nx, NY: ny, Bounds: b}
	sx := (b.MaxX - b.MinX) / float64(nx-1)
	sy := (b.MaxY - b.MinY) / float64(ny-1)
	for r := 0; r < ny; r++ {
		for c := 0; c < nx; c++ {
			g.Points = append(g.Points, model.Coord{X: b.MinX + float64(c)*sx, Y: b.MinY + float64(r)*sy})
		}
	}
	return g, nil
}

// Len returns the number of prediction locations.
func (g *Grid) Len() int { return len(g.Points) }
