package cost

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/mat"
)

// ImageRGB renders a cost matrix as packed RGB8 rows for debugging, top row
// being the highest elevation. Free cells run green to red with rising cost;
// blocked cells are drawn dark.
func ImageRGB(m *mat.Dense) []uint8 {
	nE, nZ := m.Dims()

	maxFree := 0.0
	for e := 0; e < nE; e++ {
		for z := 0; z < nZ; z++ {
			if c := m.At(e, z); !Blocked(c) && c > maxFree {
				maxFree = c
			}
		}
	}

	out := make([]uint8, 0, 3*nE*nZ)
	for e := nE - 1; e >= 0; e-- {
		for z := 0; z < nZ; z++ {
			c := m.At(e, z)
			var col colorful.Color
			if Blocked(c) {
				col = colorful.Hsv(0, 1.0, 0.25)
			} else {
				frac := 0.0
				if maxFree > 0 {
					frac = math.Min(1.0, c/maxFree)
				}
				// hue 120 (green) down to 0 (red)
				col = colorful.Hsv(120.0*(1.0-frac), 1.0, 1.0)
			}
			r, g, b := col.RGB255()
			out = append(out, r, g, b)
		}
	}
	return out
}
