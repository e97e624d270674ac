package cost

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/viam-labs/avoidance/histogram"
	"github.com/viam-labs/avoidance/polar"
)

// BestCandidates returns the k cheapest flyable directions from a cost
// matrix, cheapest first. Cells at or above the blocked threshold never
// qualify; if everything is blocked the result is empty. Ties keep row-major
// scan order.
func BestCandidates(m *mat.Dense, k int) []polar.Point {
	nE, nZ := m.Dims()

	type cell struct {
		cost float64
		e, z int
	}
	cells := make([]cell, 0, nE*nZ)
	for e := 0; e < nE; e++ {
		for z := 0; z < nZ; z++ {
			c := m.At(e, z)
			if Blocked(c) {
				continue
			}
			cells = append(cells, cell{c, e, z})
		}
	}
	sort.SliceStable(cells, func(i, j int) bool { return cells[i].cost < cells[j].cost })

	if k > len(cells) {
		k = len(cells)
	}
	out := make([]polar.Point, 0, k)
	for _, c := range cells[:k] {
		out = append(out, polar.FromHistogramIndex(c.e, c.z, histogram.AlphaRes, 1.0))
	}
	return out
}
