// Package cost turns the combined polar histogram into a scalar cost field
// over candidate flight directions, and selects the cheapest candidates from
// it.
package cost

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/viam-labs/avoidance/histogram"
	"github.com/viam-labs/avoidance/polar"
)

// blockedCellCost is the flat part of the obstacle penalty. Every non-obstacle
// term sums well below it, so any cell at or above this cost is unflyable.
const blockedCellCost = 5000.0

// Params are the cost weights. HeightChangeCostAdapted tracks
// HeightChangeCost but is modulated by the observed progress rate toward the
// goal.
type Params struct {
	GoalCost                float64
	HeadingCost             float64
	SmoothCost              float64
	HeightChangeCost        float64
	HeightChangeCostAdapted float64
	PitchCost               float64
}

// Matrix evaluates the cost of every histogram cell as a flight direction.
//
// The goal term charges the full angular distance to the goal bearing; the
// height term charges climbing above the goal elevation with the adapted
// weight plus an asymmetric penalty on upward bearings; the heading term
// discourages turning while moving and is disabled when near-stationary; the
// smooth term charges deviation from the last sent waypoint direction. Cells
// holding an obstacle, or within smoothingMarginDeg of one, receive a large
// penalty growing with obstacle proximity.
func Matrix(
	hist *histogram.Histogram,
	goal, position, lastSentWaypoint r3.Vector,
	headingZDeg float64,
	params Params,
	isStationary bool,
	smoothingMarginDeg float64,
) *mat.Dense {
	nE, nZ := hist.Dims()
	m := mat.NewDense(nE, nZ, nil)

	goalPol := polar.FromCartesian(goal, position)
	lastPol := polar.FromCartesian(lastSentWaypoint, position)
	heading := polar.Point{E: 0, Z: headingZDeg}

	type occupied struct {
		center polar.Point
		dist   float64
	}
	var obstacles []occupied
	for e := 0; e < nE; e++ {
		for z := 0; z < nZ; z++ {
			if d := hist.Dist(e, z); d > 0 {
				obstacles = append(obstacles, occupied{hist.CellCenter(e, z, d), d})
			}
		}
	}

	for e := 0; e < nE; e++ {
		for z := 0; z < nZ; z++ {
			cell := hist.CellCenter(e, z, 1.0)

			c := params.GoalCost * polar.Dist2D(cell, goalPol)
			c += params.HeightChangeCostAdapted * math.Max(0, cell.E-goalPol.E)
			c += params.PitchCost * math.Max(0, cell.E)
			if !isStationary {
				c += params.HeadingCost * polar.IndexAngleDifference(cell.Z, heading.Z)
			}
			c += params.SmoothCost * polar.Dist2D(cell, lastPol)

			// nearest obstacle within the smoothing margin, if any
			obstacleDist := math.Inf(1)
			for _, o := range obstacles {
				if polar.Dist2D(cell, o.center) <= smoothingMarginDeg && o.dist < obstacleDist {
					obstacleDist = o.dist
				}
			}
			if !math.IsInf(obstacleDist, 1) {
				c += blockedCellCost * (1.0 + 1.0/obstacleDist)
			}

			m.Set(e, z, c)
		}
	}
	return m
}

// Blocked reports whether a cell cost marks an unflyable direction.
func Blocked(c float64) bool {
	return c >= blockedCellCost
}
