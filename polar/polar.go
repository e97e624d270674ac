// Package polar implements the angular geometry the planner is built on:
// conversions between Cartesian vectors, polar bearings, and histogram cell
// indices, plus yaw and pitch helpers.
//
// A bearing is expressed as elevation from the horizontal plane in (-90, 90]
// degrees and azimuth from the positive y axis in (-180, 180] degrees, so an
// azimuth of zero points north.
package polar

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

const (
	degToRad = math.Pi / 180.0
	radToDeg = 180.0 / math.Pi
)

// Point is a bearing plus range: elevation and azimuth in degrees, radius in
// meters.
type Point struct {
	E float64
	Z float64
	R float64
}

// FromCartesian computes the bearing from origin to pos.
func FromCartesian(pos, origin r3.Vector) Point {
	d := pos.Sub(origin)
	horizontal := math.Hypot(d.X, d.Y)
	return Point{
		E: math.Atan2(d.Z, horizontal) * radToDeg,
		Z: math.Atan2(d.X, d.Y) * radToDeg,
		R: d.Norm(),
	}
}

// Cartesian projects the polar point from the given origin back into
// Cartesian space.
func (p Point) Cartesian(origin r3.Vector) r3.Vector {
	e := p.E * degToRad
	z := p.Z * degToRad
	return r3.Vector{
		X: origin.X + p.R*math.Cos(e)*math.Sin(z),
		Y: origin.Y + p.R*math.Cos(e)*math.Cos(z),
		Z: origin.Z + p.R*math.Sin(e),
	}
}

// FromHistogramIndex returns the bearing of the center of cell (e, z) at the
// given angular resolution, carrying the provided radius.
func FromHistogramIndex(e, z, res int, radius float64) Point {
	return Point{
		E: (float64(e)+0.5)*float64(res) - 90.0,
		Z: (float64(z)+0.5)*float64(res) - 180.0,
		R: radius,
	}
}

// HistogramIndex maps a bearing to cell indices at the given resolution. The
// input is wrapped first; results are clamped so that floating point edge
// cases at the domain boundary cannot index out of range.
func HistogramIndex(p Point, res int) (int, int) {
	w := Wrap(p)
	e := int(math.Floor((w.E + 90.0) / float64(res)))
	z := int(math.Floor((w.Z + 180.0) / float64(res)))

	nE := 180 / res
	nZ := 360 / res
	if e >= nE {
		e = nE - 1
	}
	if e < 0 {
		e = 0
	}
	if z >= nZ {
		z = nZ - 1
	}
	if z < 0 {
		z = 0
	}
	return e, z
}

// Wrap brings a bearing back into elevation (-90, 90] and azimuth
// (-180, 180]. Elevations beyond the poles reflect and flip the azimuth by
// 180 degrees.
func Wrap(p Point) Point {
	p.E = WrapTo180(p.E)
	p.Z = WrapTo180(p.Z)

	if p.E > 90.0 {
		p.E = 180.0 - p.E
		p.Z += 180.0
	} else if p.E < -90.0 {
		p.E = -(180.0 + p.E)
		p.Z += 180.0
	}
	p.Z = WrapTo180(p.Z)
	return p
}

// WrapTo180 wraps an angle in degrees into (-180, 180].
func WrapTo180(angle float64) float64 {
	for angle > 180.0 {
		angle -= 360.0
	}
	for angle <= -180.0 {
		angle += 360.0
	}
	return angle
}

// WrapToPi wraps an angle in radians into (-pi, pi].
func WrapToPi(angle float64) float64 {
	for angle > math.Pi {
		angle -= 2.0 * math.Pi
	}
	for angle <= -math.Pi {
		angle += 2.0 * math.Pi
	}
	return angle
}

// IndexAngleDifference is the magnitude of the shortest rotation between two
// angles in degrees.
func IndexAngleDifference(a, b float64) float64 {
	d := a - b
	return math.Min(math.Abs(d), math.Min(math.Abs(d-360.0), math.Abs(d+360.0)))
}

// Dist2D is the angular distance between two bearings, with the azimuth
// difference taken along the shorter rotation.
func Dist2D(a, b Point) float64 {
	de := a.E - b.E
	dz := IndexAngleDifference(a.Z, b.Z)
	return math.Hypot(de, dz)
}

// NextYaw is the heading in radians from u toward v, measured from the
// positive y axis.
func NextYaw(u, v r3.Vector) float64 {
	return math.Atan2(v.X-u.X, v.Y-u.Y)
}

// AngularVelocity returns a yaw rate in rad/s that turns from currYaw toward
// desiredYaw along the shorter direction.
func AngularVelocity(desiredYaw, currYaw float64) float64 {
	desiredYaw = WrapToPi(desiredYaw)
	vel1 := desiredYaw - currYaw
	var vel2 float64
	if vel1 > 0.0 {
		vel2 = -(2.0*math.Pi - vel1)
	} else {
		vel2 = 2.0*math.Pi + vel1
	}
	if math.Abs(vel1) <= math.Abs(vel2) {
		return 0.5 * vel1
	}
	return 0.5 * vel2
}

// YawFromQuaternion extracts the yaw angle in radians.
func YawFromQuaternion(q quat.Number) float64 {
	sinyCosp := 2.0 * (q.Real*q.Kmag + q.Imag*q.Jmag)
	cosyCosp := 1.0 - 2.0*(q.Jmag*q.Jmag+q.Kmag*q.Kmag)
	return math.Atan2(sinyCosp, cosyCosp)
}

// PitchFromQuaternion extracts the pitch angle in radians.
func PitchFromQuaternion(q quat.Number) float64 {
	sinp := 2.0 * (q.Real*q.Jmag - q.Kmag*q.Imag)
	if math.Abs(sinp) >= 1.0 {
		return math.Copysign(math.Pi/2.0, sinp)
	}
	return math.Asin(sinp)
}
