package histogram

import (
	"math"

	"github.com/golang/geo/r3"
)

// Box is the axis-aligned cube the raw clouds are cropped to. The lower face
// is additionally raised to the measured ground level so ground returns do
// not register as obstacles.
type Box struct {
	Radius float64

	min r3.Vector
	max r3.Vector
}

// NewBox returns a box with the given half-side. SetLimits must be called
// before Contains.
func NewBox(radius float64) Box {
	return Box{Radius: radius}
}

// SetLimits centers the box on pos. The lower plane sits at the ground level
// when the ground is closer than the box radius.
func (b *Box) SetLimits(pos r3.Vector, groundDistance float64) {
	zBelow := math.Min(b.Radius, groundDistance)
	b.min = r3.Vector{X: pos.X - b.Radius, Y: pos.Y - b.Radius, Z: pos.Z - zBelow}
	b.max = r3.Vector{X: pos.X + b.Radius, Y: pos.Y + b.Radius, Z: pos.Z + b.Radius}
}

// Contains reports whether p lies inside the box.
func (b Box) Contains(p r3.Vector) bool {
	return p.X >= b.min.X && p.X <= b.max.X &&
		p.Y >= b.min.Y && p.Y <= b.max.Y &&
		p.Z >= b.min.Z && p.Z <= b.max.Z
}

// ZMin returns the height of the lower plane.
func (b Box) ZMin() float64 { return b.min.Z }
