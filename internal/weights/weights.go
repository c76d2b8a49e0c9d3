// Package weights turns a neighbour list into a spatial weights structure.
package weights

import (
	"fmt"
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/parking-stats/internal/neighbors"
)

// Style selects how raw link weights are standardised.
type Style int

const (
	// StyleW row-standardises: every non-isolated row sums to 1.
	StyleW Style = iota
	// StyleB keeps raw weights (1 per link unless inverse distance is used).
	StyleB
	// StyleC standardises globally so that all weights sum to n.
	StyleC
)

// ParseStyle maps a config value to a Style.
func ParseStyle(s string) (Style, error) {
	switch s {
	case "W":
		return StyleW, nil
	case "B":
		return StyleB, nil
	case "C":
		return StyleC, nil
	default:
		return StyleW, eris.Errorf("weights: unknown style %q", s)
	}
}

func (s Style) String() string {
	switch s {
	case StyleB:
		return "B"
	case StyleC:
		return "C"
	default:
		return "W"
	}
}

// IsolatedPointError reports points left without neighbours while the zero
// policy is disabled.
type IsolatedPointError struct {
	Indices []int
}

func (e *IsolatedPointError) Error() string {
	return fmt.Sprintf("weights: %d point(s) without neighbours %v (zero policy disabled)", len(e.Indices), e.Indices)
}

// Options configures Build.
type Options struct {
	Style Style
	// ZeroPolicy allows isolated points; their rows stay empty and contribute
	// nothing downstream.
	ZeroPolicy bool
	// InverseDistance replaces the unit link weight with 1/d^Power before
	// standardisation. Distances must then be supplied to Build.
	InverseDistance bool
	Power           float64
}

// SpatialWeights is a NeighborList with one weight per link. It is read-only.
type SpatialWeights struct {
	nl         *neighbors.NeighborList
	w          [][]float64
	style      Style
	zeroPolicy bool
}

// Build computes weights for nl. dists must be aligned with nl (see
// neighbors.EdgeDistances) when opts.InverseDistance is set and is ignored otherwise.
func Build(nl *neighbors.NeighborList, dists [][]float64, opts Options) (*SpatialWeights, error) {
	if nl.Len() == 0 {
		return nil, eris.New("weights: empty neighbour list")
	}
	if iso := nl.Isolated(); len(iso) > 0 && !opts.ZeroPolicy {
		return nil, &IsolatedPointError{Indices: iso}
	}
	power := opts.Power
	if power == 0 {
		power = 2
	}
	if opts.InverseDistance && len(dists) != nl.Len() {
		return nil, eris.Errorf("weights: inverse distance needs %d distance rows, got %d", nl.Len(), len(dists))
	}

	n := nl.Len()
	w := make([][]float64, n)
	var total float64
	for i := 0; i < n; i++ {
		nbrs := nl.Neighbors(i)
		row := make([]float64, len(nbrs))
		for k := range nbrs {
			row[k] = 1
			if opts.InverseDistance {
				if len(dists[i]) != len(nbrs) {
					return nil, eris.Errorf("weights: point %d has %d distances for %d neighbours", i, len(dists[i]), len(nbrs))
				}
				d := dists[i][k]
				if d <= 0 || math.IsNaN(d) {
					return nil, eris.Errorf("weights: non-positive distance %v between %d and %d", d, i, nbrs[k])
				}
				row[k] = 1 / math.Pow(d, power)
			}
			total += row[k]
		}
		w[i] = row
	}

	switch opts.Style {
	case StyleW:
		for _, row := range w {
			var sum float64
			for _, v := range row {
				sum += v
			}
			for k := range row {
				row[k] /= sum
			}
		}
	case StyleC:
		if total > 0 {
			scale := float64(n) / total
			for _, row := range w {
				for k := range row {
					row[k] *= scale
				}
			}
		}
	}

	return &SpatialWeights{nl: nl, w: w, style: opts.Style, zeroPolicy: opts.ZeroPolicy}, nil
}

// Len returns the number of points.
func (sw *SpatialWeights) Len() int { return sw.nl.Len() }

// Style returns the standardisation used.
func (sw *SpatialWeights) Style() Style { return sw.style }

// ZeroPolicy reports whether isolated points were allowed.
func (sw *SpatialWeights) ZeroPolicy() bool { return sw.zeroPolicy }

// Neighbors returns the underlying topology.
func (sw *SpatialWeights) Neighbors() *neighbors.NeighborList { return sw.nl }

// Row returns the neighbours of i and their weights. Slices must not be modified.
func (sw *SpatialWeights) Row(i int) ([]int, []float64) {
	return sw.nl.Neighbors(i), sw.w[i]
}

// RowSum returns Σ_j w_ij.
func (sw *SpatialWeights) RowSum(i int) float64 {
	var s float64
	for _, v := range sw.w[i] {
		s += v
	}
	return s
}

// Weight returns w_ij, or 0 when j is not a neighbour of i.
func (sw *SpatialWeights) Weight(i, j int) float64 {
	nbrs := sw.nl.Neighbors(i)
	k := sort.SearchInts(nbrs, j)
	if k < len(nbrs) && nbrs[k] == j {
		return sw.w[i][k]
	}
	return 0
}

// Lag returns the spatial lag Σ_j w_ij x_j for every i.
func (sw *SpatialWeights) Lag(x []float64) ([]float64, error) {
	if len(x) != sw.Len() {
		return nil, eris.Errorf("weights: lag of %d values over %d points", len(x), sw.Len())
	}
	out := make([]float64, sw.Len())
	for i := range out {
		nbrs, w := sw.Row(i)
		for k, j := range nbrs {
			out[i] += w[k] * x[j]
		}
	}
	return out, nil
}

// Moments holds the weight-matrix constants used by the analytic tests.
type Moments struct {
	N  int     // points with at least one neighbour
	S0 float64 // Σ_i Σ_j w_ij
	S1 float64 // ½ Σ_i Σ_j (w_ij + w_ji)²
	S2 float64 // Σ_i (w_i. + w_.i)²
}

// Moments computes S0, S1 and S2.
func (sw *SpatialWeights) Moments() Moments {
	n := sw.Len()
	rowSum := make([]float64, n)
	colSum := make([]float64, n)
	m := Moments{}
	for i := 0; i < n; i++ {
		nbrs, w := sw.Row(i)
		if len(nbrs) > 0 {
			m.N++
		}
		for k, j := range nbrs {
			rowSum[i] += w[k]
			colSum[j] += w[k]
			s := w[k] + sw.Weight(j, i)
			m.S1 += s * s
			if !sw.nl.HasEdge(j, i) {
				// (j, i) is not visited from row j
				m.S1 += s * s
			}
		}
	}
	m.S1 /= 2
	for i := 0; i < n; i++ {
		m.S0 += rowSum[i]
		s := rowSum[i] + colSum[i]
		m.S2 += s * s
	}
	return m
}
