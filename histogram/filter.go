package histogram

import (
	"math"

	"github.com/golang/geo/r3"
)

// FilterResult is the cropped cloud plus the closest-obstacle diagnostics the
// strategy selector keys off.
type FilterResult struct {
	Cloud             []r3.Vector
	ClosestPoint      r3.Vector
	DistanceToClosest float64
	// CloseCount is the number of retained points closer than the backoff
	// threshold.
	CloseCount int
}

// FilterPointCloud merges the per-camera clouds and crops them to the box.
// Points closer than minSensorDist are sensor artifacts and dropped. Whether
// the result is large enough to count as an obstacle (minCloudSize) is the
// caller's decision; the filtered set is returned either way.
func FilterPointCloud(
	clouds [][]r3.Vector,
	box Box,
	position r3.Vector,
	minSensorDist float64,
	minBackoffDist float64,
) FilterResult {
	res := FilterResult{DistanceToClosest: math.Inf(1)}
	for _, cloud := range clouds {
		for _, p := range cloud {
			if !box.Contains(p) {
				continue
			}
			dist := position.Sub(p).Norm()
			if dist <= minSensorDist {
				continue
			}
			res.Cloud = append(res.Cloud, p)
			if dist < minBackoffDist {
				res.CloseCount++
			}
			if dist < res.DistanceToClosest {
				res.DistanceToClosest = dist
				res.ClosestPoint = p
			}
		}
	}
	return res
}
