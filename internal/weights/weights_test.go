package weights

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/parking-stats/internal/model"
	"github.com/sells-group/parking-stats/internal/neighbors"
)

func squareWithCentre(t *testing.T) (*neighbors.NeighborList, []model.Coord) {
	t.Helper()
	coords := []model.Coord{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 0.5, Y: 0.5}}
	nl, err := neighbors.SOIGraph(coords, neighbors.Planar)
	require.NoError(t, err)
	return nl, coords
}

func TestBuild_RowStandardised(t *testing.T) {
	nl, _ := squareWithCentre(t)
	w, err := Build(nl, nil, Options{Style: StyleW})
	require.NoError(t, err)

	for i := 0; i < w.Len(); i++ {
		assert.InDelta(t, 1.0, w.RowSum(i), 1e-12)
	}
	assert.InDelta(t, 0.25, w.Weight(4, 0), 1e-12)
	assert.InDelta(t, 1.0/3, w.Weight(0, 4), 1e-12)
	assert.Zero(t, w.Weight(0, 3))
	assert.Equal(t, StyleW, w.Style())
}

func TestBuild_NeighborsRoundTrip(t *testing.T) {
	adj := [][]int{{1, 2}, {0}, {0, 3}, {2}}
	nl, err := neighbors.FromAdjacency(adj, false)
	require.NoError(t, err)

	for _, style := range []Style{StyleW, StyleB, StyleC} {
		w, err := Build(nl, nil, Options{Style: style})
		require.NoError(t, err)
		assert.Equal(t, adj, w.Neighbors().Adjacency(), style.String())
		for i, nbrs := range adj {
			got, wts := w.Row(i)
			assert.Equal(t, nbrs, got)
			assert.Len(t, wts, len(nbrs))
		}
	}
}

func TestMoments(t *testing.T) {
	nl, _ := squareWithCentre(t)

	w, err := Build(nl, nil, Options{Style: StyleW})
	require.NoError(t, err)
	m := w.Moments()
	assert.Equal(t, 5, m.N)
	assert.InDelta(t, 5.0, m.S0, 1e-12)
	assert.InDelta(t, 113.0/36, m.S1, 1e-12)
	assert.InDelta(t, 725.0/36, m.S2, 1e-12)

	b, err := Build(nl, nil, Options{Style: StyleB})
	require.NoError(t, err)
	m = b.Moments()
	assert.InDelta(t, 16.0, m.S0, 1e-12)
	assert.InDelta(t, 32.0, m.S1, 1e-12)
	assert.InDelta(t, 208.0, m.S2, 1e-12)
}

func TestMoments_Directed(t *testing.T) {
	// 2→0 has no reverse link.
	nl, err := neighbors.FromAdjacency([][]int{{1}, {0, 2}, {0, 1}}, true)
	require.NoError(t, err)
	w, err := Build(nl, nil, Options{Style: StyleB})
	require.NoError(t, err)

	m := w.Moments()
	assert.InDelta(t, 5.0, m.S0, 1e-12)
	assert.InDelta(t, 9.0, m.S1, 1e-12)
	assert.InDelta(t, 34.0, m.S2, 1e-12)
}

func TestBuild_GlobalStandardisation(t *testing.T) {
	nl, _ := squareWithCentre(t)
	w, err := Build(nl, nil, Options{Style: StyleC})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, w.Moments().S0, 1e-12)
	assert.InDelta(t, 5.0/16, w.Weight(0, 1), 1e-12)
}

func TestBuild_InverseDistance(t *testing.T) {
	nl, coords := squareWithCentre(t)
	d, err := neighbors.EdgeDistances(nl, coords, neighbors.Planar)
	require.NoError(t, err)

	w, err := Build(nl, d, Options{Style: StyleB, InverseDistance: true})
	require.NoError(t, err)
	// 1/d² with d = 1 for sides and d² = 0.5 for the centre
	assert.InDelta(t, 1.0, w.Weight(0, 1), 1e-12)
	assert.InDelta(t, 2.0, w.Weight(0, 4), 1e-12)

	rw, err := Build(nl, d, Options{Style: StyleW, InverseDistance: true, Power: 1})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, rw.RowSum(0), 1e-12)
	assert.Greater(t, rw.Weight(0, 4), rw.Weight(0, 1))

	_, err = Build(nl, nil, Options{InverseDistance: true})
	require.Error(t, err)
}

func TestBuild_ZeroPolicy(t *testing.T) {
	nl, err := neighbors.FromAdjacency([][]int{{1}, {0}, {}}, false)
	require.NoError(t, err)

	_, err = Build(nl, nil, Options{Style: StyleW})
	require.Error(t, err)
	var iso *IsolatedPointError
	require.True(t, errors.As(err, &iso))
	assert.Equal(t, []int{2}, iso.Indices)
	assert.Contains(t, err.Error(), "zero policy")

	w, err := Build(nl, nil, Options{Style: StyleW, ZeroPolicy: true})
	require.NoError(t, err)
	assert.True(t, w.ZeroPolicy())
	assert.Zero(t, w.RowSum(2))
	assert.Equal(t, 2, w.Moments().N)
	assert.InDelta(t, 2.0, w.Moments().S0, 1e-12)
}

func TestLag(t *testing.T) {
	nl, _ := squareWithCentre(t)
	w, err := Build(nl, nil, Options{Style: StyleW})
	require.NoError(t, err)

	lag, err := w.Lag([]float64{1, 2, 3, 4, 10})
	require.NoError(t, err)
	assert.InDelta(t, (2+3+10)/3.0, lag[0], 1e-12)
	assert.InDelta(t, 2.5, lag[4], 1e-12)

	_, err = w.Lag([]float64{1})
	require.Error(t, err)
}

func TestParseStyle(t *testing.T) {
	for _, s := range []string{"W", "B", "C"} {
		st, err := ParseStyle(s)
		require.NoError(t, err)
		assert.Equal(t, s, st.String())
	}
	_, err := ParseStyle("S")
	require.Error(t, err)
}
