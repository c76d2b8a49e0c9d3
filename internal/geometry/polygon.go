// Package geometry parses observation boundary strings into go-geom polygons and
// builds the point features handed to the map renderer.
package geometry

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// SRID is the coordinate reference system of every geometry built here (WGS 84).
const SRID = 4326

// ErrMalformedGeometry is returned when a boundary string cannot be parsed into a ring.
var ErrMalformedGeometry = errors.New("malformed geometry")

// ParseBoundary parses a polygon boundary such as
//
//	POLYGON((-79.38 43.65, -79.37 43.65, -79.37 43.66, -79.38 43.66, -79.38 43.65))
//
// into a polygon. MULTIPOLYGON input yields its first polygon. The first ring
// is the shell, any further rings are holes. A bare coordinate list or a
// POLYGON with a single pair of parentheses is read as one shell. A ring that
// is not closed is closed by repeating its first vertex.
func ParseBoundary(s string) (*geom.Polygon, error) {
	body := strings.TrimSpace(s)
	if body == "" {
		return nil, eris.Wrap(ErrMalformedGeometry, "geometry: empty boundary")
	}
	if err := checkPairs(body); err != nil {
		return nil, err
	}

	g, err := wkt.Unmarshal(canonicalWKT(body))
	if err != nil {
		return nil, eris.Wrapf(ErrMalformedGeometry, "geometry: decode: %v", err)
	}

	var src *geom.Polygon
	switch t := g.(type) {
	case *geom.Polygon:
		src = t
	case *geom.MultiPolygon:
		if t.NumPolygons() == 0 {
			return nil, eris.Wrap(ErrMalformedGeometry, "geometry: empty multipolygon")
		}
		src = t.Polygon(0)
	default:
		return nil, eris.Wrapf(ErrMalformedGeometry, "geometry: unsupported geometry type %T", g)
	}
	if src.NumLinearRings() == 0 {
		return nil, eris.Wrap(ErrMalformedGeometry, "geometry: polygon has no rings")
	}

	poly := geom.NewPolygon(geom.XY).SetSRID(SRID)
	for i := 0; i < src.NumLinearRings(); i++ {
		flat, err := ringXY(src.LinearRing(i).FlatCoords(), src.Layout().Stride())
		if err != nil {
			return nil, eris.Wrapf(err, "geometry: ring %d", i)
		}
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
			return nil, eris.Wrapf(ErrMalformedGeometry, "geometry: push ring %d: %v", i, err)
		}
	}
	return poly, nil
}

// canonicalWKT rewrites the loose boundary forms into WKT the decoder accepts
// and closes open rings.
func canonicalWKT(body string) string {
	i := strings.IndexByte(body, '(')
	if i < 0 {
		return "POLYGON((" + closeRingText(body) + "))"
	}
	kind := strings.ToUpper(strings.TrimSpace(body[:i]))
	if kind == "" {
		kind = "POLYGON"
	}
	rest := strings.TrimSpace(body[i:])
	if kind == "POLYGON" && !strings.HasPrefix(strings.TrimSpace(rest[1:]), "(") {
		rest = "(" + rest + ")"
	}

	var b strings.Builder
	b.WriteString(kind)
	open := -1
	for j := 0; j < len(rest); j++ {
		switch rest[j] {
		case '(':
			if open >= 0 {
				b.WriteString(rest[open:j])
			}
			open = j
			continue
		case ')':
			if open >= 0 {
				b.WriteByte('(')
				b.WriteString(closeRingText(rest[open+1 : j]))
				open = -1
			}
		}
		if open < 0 {
			b.WriteByte(rest[j])
		}
	}
	if open >= 0 {
		b.WriteString(rest[open:])
	}
	return b.String()
}

// closeRingText appends the first pair of "x y, x y, ..." when the ring is open.
func closeRingText(ring string) string {
	pairs := strings.Split(ring, ",")
	first, last := strings.Fields(pairs[0]), strings.Fields(pairs[len(pairs)-1])
	if len(pairs) < 2 || len(first) != 2 || len(last) != 2 {
		return ring
	}
	for k := range first {
		a, errA := strconv.ParseFloat(first[k], 64)
		b, errB := strconv.ParseFloat(last[k], 64)
		if errA != nil || errB != nil {
			return ring
		}
		if a != b {
			return ring + ", " + strings.TrimSpace(pairs[0])
		}
	}
	return ring
}

// checkPairs verifies that every comma-separated token holds exactly two
// finite numbers, so the error names the offending token.
func checkPairs(body string) error {
	if i := strings.IndexByte(body, '('); i >= 0 {
		body = body[i:]
	}
	body = strings.NewReplacer("(", " ", ")", " ").Replace(body)
	for i, tok := range strings.Split(body, ",") {
		fields := strings.Fields(tok)
		if len(fields) != 2 {
			return eris.Wrapf(ErrMalformedGeometry, "geometry: pair %d %q has %d values, want 2", i, strings.TrimSpace(tok), len(fields))
		}
		for _, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return eris.Wrapf(ErrMalformedGeometry, "geometry: pair %d: invalid coordinate %q", i, f)
			}
		}
	}
	return nil
}

// ringXY copies a ring's XY coordinates and rejects rings with fewer than 3
// distinct vertices.
func ringXY(src []float64, stride int) ([]float64, error) {
	flat := make([]float64, 0, 2*len(src)/stride)
	for i := 0; i+1 < len(src); i += stride {
		flat = append(flat, src[i], src[i+1])
	}
	if len(flat) == 0 {
		return nil, eris.Wrap(ErrMalformedGeometry, "empty ring")
	}
	if distinctVertices(flat) < 3 {
		return nil, eris.Wrap(ErrMalformedGeometry, "ring needs at least 3 distinct vertices")
	}
	return flat, nil
}

func distinctVertices(flat []float64) int {
	seen := make(map[[2]float64]struct{}, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		seen[[2]float64{flat[i], flat[i+1]}] = struct{}{}
	}
	return len(seen)
}
