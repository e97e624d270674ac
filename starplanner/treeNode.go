// Package starplanner implements the VFH* lookahead search: a bounded
// best-first expansion over candidate flight directions, re-evaluating the
// cost field at every expanded node.
package starplanner

import (
	"github.com/golang/geo/r3"
)

// TreeNode is one node of the lookahead tree. The tree is a flat array;
// edges are implicit through Origin, which points at an earlier index (the
// root, at index 0, points at itself), so no cycles are possible.
type TreeNode struct {
	Position r3.Vector
	Yaw      float64

	// TotalCost is the accumulated edge cost from the root, Heuristic the
	// remaining distance to the goal.
	TotalCost float64
	Heuristic float64

	Origin int
	Depth  int

	closed bool
}

// Closed reports whether the node has already been expanded.
func (n TreeNode) Closed() bool { return n.closed }

func (n TreeNode) f() float64 { return n.TotalCost + n.Heuristic }
