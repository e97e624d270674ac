package planner

import (
	"math"

	"github.com/viam-labs/avoidance/histogram"
)

// distanceRingBins is the size of the 1-degree obstacle-distance ring sent to
// the flight controller.
const distanceRingBins = 360

// noDataSentinel marks ring bins outside the camera field of view. In-FOV
// bins with no obstacle carry rangeMax+1 instead; the flight controller
// treats both as free but can tell them apart.
const noDataSentinel = float64(math.MaxUint16)

// buildDistanceRing expands the elevation-compressed histogram into the
// 1-degree ring. The histogram azimuth origin points south; the ring is
// rotated to reference local north.
func (l *LocalPlanner) buildDistanceRing(compressed []float64) []float64 {
	ring := make([]float64, distanceRingBins)
	for i := 0; i < distanceRingBins; i++ {
		northBin := i / histogram.AlphaRes
		histIdx := northBin - histogram.GridLengthZ/2
		if histIdx < 0 {
			histIdx += histogram.GridLengthZ
		}

		switch {
		case !l.fov.ContainsZ(histIdx):
			ring[i] = noDataSentinel
		case compressed[histIdx] == 0:
			ring[i] = distanceRingRangeMax + 1.0
		default:
			ring[i] = compressed[histIdx]
		}
	}
	return ring
}

// ObstacleDistances returns the most recent 1-degree obstacle-distance ring,
// nil when obstacle forwarding is disabled.
func (l *LocalPlanner) ObstacleDistances() []float64 {
	return l.distanceRing
}
