package histogram

import (
	"math"
)

// FOV is the set of histogram cells the cameras currently cover: the azimuth
// bins swept by the horizontal field of view and the elevation bin bounds of
// the vertical one.
type FOV struct {
	ZIndices []int
	EMin     int
	EMax     int
}

// ContainsZ reports whether azimuth bin z is covered.
func (f FOV) ContainsZ(z int) bool {
	for _, idx := range f.ZIndices {
		if idx == z {
			return true
		}
	}
	return false
}

// Contains reports whether cell (e, z) lies inside the field of view.
func (f FOV) Contains(e, z int) bool {
	return e > f.EMin && e < f.EMax && f.ContainsZ(z)
}

// CalculateFOV computes the covered cells from the camera fields of view in
// degrees and the current yaw and pitch in radians. The azimuth range wraps
// across the histogram seam.
func CalculateFOV(hFOVDeg, vFOVDeg, yaw, pitch float64) FOV {
	yawDeg := -yaw * 180.0 / math.Pi
	pitchDeg := -pitch * 180.0 / math.Pi

	zMax := int(math.Round((yawDeg+hFOVDeg/2.0+270.0)/AlphaRes)) - 1
	zMin := int(math.Round((yawDeg-hFOVDeg/2.0+270.0)/AlphaRes)) - 1
	eMax := int(math.Round((pitchDeg+vFOVDeg/2.0+90.0)/AlphaRes)) - 1
	eMin := int(math.Round((pitchDeg-vFOVDeg/2.0+90.0)/AlphaRes)) - 1

	if zMax >= GridLengthZ && zMin >= GridLengthZ {
		zMax -= GridLengthZ
		zMin -= GridLengthZ
	}
	if zMax < 0 && zMin < 0 {
		zMax += GridLengthZ
		zMin += GridLengthZ
	}

	fov := FOV{EMin: eMin, EMax: eMax}
	switch {
	case zMax >= GridLengthZ && zMin < GridLengthZ:
		for i := 0; i <= zMax-GridLengthZ; i++ {
			fov.ZIndices = append(fov.ZIndices, i)
		}
		for i := zMin; i < GridLengthZ; i++ {
			fov.ZIndices = append(fov.ZIndices, i)
		}
	case zMin < 0 && zMax >= 0:
		for i := 0; i <= zMax; i++ {
			fov.ZIndices = append(fov.ZIndices, i)
		}
		for i := zMin + GridLengthZ; i < GridLengthZ; i++ {
			fov.ZIndices = append(fov.ZIndices, i)
		}
	default:
		for i := zMin; i <= zMax; i++ {
			fov.ZIndices = append(fov.ZIndices, i)
		}
	}
	return fov
}
