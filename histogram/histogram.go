// Package histogram builds the polar obstacle representation: cropping raw
// depth clouds to a box around the vehicle, binning them into a 2D polar
// histogram, and carrying obstacles that left the field of view forward via
// reprojection.
package histogram

import (
	"gonum.org/v1/gonum/mat"

	"github.com/viam-labs/avoidance/polar"
)

// AlphaRes is the angular bin size of the polar histogram in degrees. It must
// stay even so that cell corners land on half-resolution offsets.
const AlphaRes = 6

// Grid dimensions at AlphaRes.
const (
	GridLengthE = 180 / AlphaRes
	GridLengthZ = 360 / AlphaRes
)

// Histogram is a polar depth grid. Each cell stores the distance to the
// obstacle seen in that direction (zero meaning empty) and the age of the
// observation in planner ticks.
type Histogram struct {
	resolution int
	nE, nZ     int
	dist       *mat.Dense
	age        *mat.Dense
}

// New returns an empty histogram at the given angular resolution in degrees.
func New(resolution int) *Histogram {
	nE := 180 / resolution
	nZ := 360 / resolution
	return &Histogram{
		resolution: resolution,
		nE:         nE,
		nZ:         nZ,
		dist:       mat.NewDense(nE, nZ, nil),
		age:        mat.NewDense(nE, nZ, nil),
	}
}

// Resolution returns the angular bin size in degrees.
func (h *Histogram) Resolution() int { return h.resolution }

// Dims returns the number of elevation and azimuth bins.
func (h *Histogram) Dims() (int, int) { return h.nE, h.nZ }

// Dist returns the obstacle distance stored at cell (e, z), zero if empty.
func (h *Histogram) Dist(e, z int) float64 { return h.dist.At(e, z) }

// SetDist stores an obstacle distance at cell (e, z).
func (h *Histogram) SetDist(e, z int, d float64) { h.dist.Set(e, z, d) }

// Age returns the age in ticks of the observation at cell (e, z).
func (h *Histogram) Age(e, z int) int { return int(h.age.At(e, z)) }

// SetAge stores the observation age at cell (e, z).
func (h *Histogram) SetAge(e, z, a int) { h.age.Set(e, z, float64(a)) }

// SetZero empties every cell.
func (h *Histogram) SetZero() {
	h.dist.Zero()
	h.age.Zero()
}

// IsEmpty reports whether every cell is empty.
func (h *Histogram) IsEmpty() bool {
	for e := 0; e < h.nE; e++ {
		for z := 0; z < h.nZ; z++ {
			if h.dist.At(e, z) > 0 {
				return false
			}
		}
	}
	return true
}

// CellCenter returns the bearing of the center of cell (e, z) with the given
// radius.
func (h *Histogram) CellCenter(e, z int, radius float64) polar.Point {
	return polar.FromHistogramIndex(e, z, h.resolution, radius)
}

// CompressElevation collapses the histogram to one value per azimuth bin: the
// distance of the nearest obstacle across all elevations, zero when the
// column is empty.
func (h *Histogram) CompressElevation() []float64 {
	out := make([]float64, h.nZ)
	for z := 0; z < h.nZ; z++ {
		for e := 0; e < h.nE; e++ {
			d := h.dist.At(e, z)
			if d == 0 {
				continue
			}
			if out[z] == 0 || d < out[z] {
				out[z] = d
			}
		}
	}
	return out
}
