// Package neighbors builds spatial neighbourhood graphs over point coordinates:
// a Delaunay triangulation refined into a sphere-of-influence graph.
package neighbors

import (
	"sort"

	"github.com/rotisserie/eris"
)

// NeighborList maps each point index to the sorted indices of its neighbours.
// It is immutable once built.
type NeighborList struct {
	adj      [][]int
	directed bool
}

// FromAdjacency validates adj and returns it as a NeighborList. Neighbour sets
// are copied, sorted and de-duplicated. Unless directed is true every link
// i→j must be matched by j→i.
func FromAdjacency(adj [][]int, directed bool) (*NeighborList, error) {
	n := len(adj)
	out := make([][]int, n)
	for i, nbrs := range adj {
		set := make([]int, 0, len(nbrs))
		for _, j := range nbrs {
			if j < 0 || j >= n {
				return nil, eris.Errorf("neighbors: point %d has neighbour %d out of range [0, %d)", i, j, n)
			}
			if j == i {
				return nil, eris.Errorf("neighbors: point %d lists itself as a neighbour", i)
			}
			set = append(set, j)
		}
		out[i] = sortUnique(set)
	}

	l := &NeighborList{adj: out, directed: directed}
	if !directed {
		for i := range out {
			for _, j := range out[i] {
				if !l.HasEdge(j, i) {
					return nil, eris.Errorf("neighbors: link %d->%d has no reverse link", i, j)
				}
			}
		}
	}
	return l, nil
}

// fromEdgeSet builds an undirected list from already-validated edges.
func fromEdgeSet(n int, edges map[[2]int]struct{}) *NeighborList {
	adj := make([][]int, n)
	for e := range edges {
		adj[e[0]] = append(adj[e[0]], e[1])
		adj[e[1]] = append(adj[e[1]], e[0])
	}
	for i := range adj {
		adj[i] = sortUnique(adj[i])
	}
	return &NeighborList{adj: adj}
}

func sortUnique(s []int) []int {
	sort.Ints(s)
	out := s[:0]
	for i, v := range s {
		if i > 0 && v == s[i-1] {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Len returns the number of points.
func (l *NeighborList) Len() int { return len(l.adj) }

// Directed reports whether the list was built without the symmetry requirement.
func (l *NeighborList) Directed() bool { return l.directed }

// Neighbors returns the sorted neighbours of point i. The slice must not be modified.
func (l *NeighborList) Neighbors(i int) []int { return l.adj[i] }

// Cardinality returns the number of neighbours of point i.
func (l *NeighborList) Cardinality(i int) int { return len(l.adj[i]) }

// Links returns the total number of directed links (twice the edge count when symmetric).
func (l *NeighborList) Links() int {
	total := 0
	for _, nbrs := range l.adj {
		total += len(nbrs)
	}
	return total
}

// HasEdge reports whether j is a neighbour of i.
func (l *NeighborList) HasEdge(i, j int) bool {
	nbrs := l.adj[i]
	k := sort.SearchInts(nbrs, j)
	return k < len(nbrs) && nbrs[k] == j
}

// Isolated returns the indices of points without neighbours.
func (l *NeighborList) Isolated() []int {
	var out []int
	for i, nbrs := range l.adj {
		if len(nbrs) == 0 {
			out = append(out, i)
		}
	}
	return out
}

// Adjacency returns a deep copy of the neighbour sets.
func (l *NeighborList) Adjacency() [][]int {
	out := make([][]int, len(l.adj))
	for i, nbrs := range l.adj {
		out[i] = append([]int(nil), nbrs...)
	}
	return out
}
