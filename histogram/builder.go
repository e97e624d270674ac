package histogram

import (
	"github.com/golang/geo/r3"

	"github.com/viam-labs/avoidance/polar"
)

// Reprojected points closer than this to the vehicle are discarded: they are
// almost certainly the vehicle itself seen through a stale cell.
const minReprojectionDist = 0.3

// GenerateNewHistogram bins the filtered cloud into a fresh histogram around
// the vehicle position. A cell keeps the nearest return that falls into it,
// with age zero.
func GenerateNewHistogram(cloud []r3.Vector, position r3.Vector) *Histogram {
	h := New(AlphaRes)
	for _, p := range cloud {
		pol := polar.FromCartesian(p, position)
		e, z := polar.HistogramIndex(pol, AlphaRes)
		if cur := h.Dist(e, z); cur == 0 || pol.R < cur {
			h.SetDist(e, z, pol.R)
			h.SetAge(e, z, 0)
		}
	}
	return h
}

// ReprojectPoints reconstructs Cartesian points from the previous tick's
// histogram by casting the four corners of every non-empty cell through the
// previous vehicle position. Points too old, too close, or beyond twice the
// box radius are dropped. The returned age slice parallels the points.
func ReprojectPoints(
	prev *Histogram,
	prevPosition, position r3.Vector,
	boxRadius float64,
	reprojAge int,
) ([]r3.Vector, []int) {
	halfRes := float64(prev.Resolution()) / 2.0
	nE, nZ := prev.Dims()

	var points []r3.Vector
	var ages []int
	corners := [4][2]float64{
		{halfRes, halfRes},
		{-halfRes, halfRes},
		{halfRes, -halfRes},
		{-halfRes, -halfRes},
	}
	for e := 0; e < nE; e++ {
		for z := 0; z < nZ; z++ {
			d := prev.Dist(e, z)
			if d == 0 {
				continue
			}
			age := prev.Age(e, z)
			if age >= reprojAge {
				continue
			}
			center := prev.CellCenter(e, z, d)
			for _, c := range corners {
				corner := polar.Point{E: center.E + c[0], Z: center.Z + c[1], R: d}
				pt := corner.Cartesian(prevPosition)
				dist := position.Sub(pt).Norm()
				if dist > minReprojectionDist && dist < 2.0*boxRadius {
					points = append(points, pt)
					ages = append(ages, age)
				}
			}
		}
	}
	return points, ages
}

// PropagateHistogram bins the reprojected points into a histogram at twice
// the base resolution, so stale observations fill gaps without dominating
// fresh data. Cells hold the mean distance and the mean age advanced by one
// tick.
func PropagateHistogram(points []r3.Vector, ages []int, position r3.Vector) *Histogram {
	h := New(2 * AlphaRes)
	nE, nZ := h.Dims()
	counter := make([]int, nE*nZ)
	ageSum := make([]int, nE*nZ)

	for i, p := range points {
		pol := polar.FromCartesian(p, position)
		e, z := polar.HistogramIndex(pol, 2*AlphaRes)
		counter[e*nZ+z]++
		ageSum[e*nZ+z] += ages[i]
		h.SetDist(e, z, h.Dist(e, z)+pol.R)
	}
	for e := 0; e < nE; e++ {
		for z := 0; z < nZ; z++ {
			n := counter[e*nZ+z]
			if n == 0 {
				continue
			}
			h.SetDist(e, z, h.Dist(e, z)/float64(n))
			h.SetAge(e, z, ageSum[e*nZ+z]/n+1)
		}
	}
	return h
}

// CombineHistogram fills the cells of the fresh histogram that are both empty
// and outside the current field of view from the propagated histogram's
// corresponding coarser bin. Fresh observations are never overwritten. It
// reports whether the combined histogram is entirely empty.
func CombineHistogram(fresh, propagated *Histogram, fov FOV) bool {
	empty := true
	nE, nZ := fresh.Dims()
	for e := 0; e < nE; e++ {
		for z := 0; z < nZ; z++ {
			if fresh.Dist(e, z) > 0 {
				fresh.SetAge(e, z, 0)
				empty = false
				continue
			}
			if fov.Contains(e, z) {
				continue
			}
			if d := propagated.Dist(e/2, z/2); d > 0 {
				fresh.SetDist(e, z, d)
				fresh.SetAge(e, z, propagated.Age(e/2, z/2))
				empty = false
			}
		}
	}
	return empty
}
