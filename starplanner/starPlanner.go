package starplanner

import (
	"math"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"

	"github.com/viam-labs/avoidance"
	"github.com/viam-labs/avoidance/cost"
	"github.com/viam-labs/avoidance/histogram"
	"github.com/viam-labs/avoidance/polar"
)

// maxTreeAge bounds how many ticks a previously found path may be reused when
// the current tick's tree produces no usable path.
const maxTreeAge = 10

// StarPlanner expands a bounded lookahead tree from the current position
// toward the goal and extracts the cheapest path through it. It is rebuilt
// from scratch every tick.
type StarPlanner struct {
	position r3.Vector
	yaw      float64
	goal     r3.Vector

	cloud       []r3.Vector
	reprojected []r3.Vector

	params                 cost.Params
	hFOV, vFOV             float64
	lastDirection          r3.Vector
	childrenPerNode        int
	nExpandedNodes         int
	treeNodeDistance       float64
	smoothingMarginDegrees float64

	tree              []TreeNode
	closedSet         []int
	pathNodePositions []r3.Vector
	treeAge           int

	logger golog.Logger
}

// New returns a star planner with the given tree shape configuration.
func New(cfg avoidance.Config, logger golog.Logger) *StarPlanner {
	sp := &StarPlanner{logger: logger}
	sp.SetConfig(cfg)
	return sp
}

// SetConfig updates the tree shape parameters.
func (sp *StarPlanner) SetConfig(cfg avoidance.Config) {
	sp.childrenPerNode = cfg.ChildrenPerNode
	sp.nExpandedNodes = cfg.NExpandedNodes
	sp.treeNodeDistance = cfg.TreeNodeDistance
	sp.smoothingMarginDegrees = cfg.SmoothingMarginDegrees
}

// SetPose updates the root position and yaw for the next build.
func (sp *StarPlanner) SetPose(position r3.Vector, yaw float64) {
	sp.position = position
	sp.yaw = yaw
}

// SetGoal updates the search target.
func (sp *StarPlanner) SetGoal(goal r3.Vector) {
	sp.goal = goal
	sp.treeAge = 0
	sp.pathNodePositions = nil
}

// SetFOV records the camera fields of view in degrees.
func (sp *StarPlanner) SetFOV(hFOVDeg, vFOVDeg float64) {
	sp.hFOV = hFOVDeg
	sp.vFOV = vFOVDeg
}

// SetCostParams updates the cost weights used at each expansion.
func (sp *StarPlanner) SetCostParams(params cost.Params) {
	sp.params = params
}

// SetCloud provides the current filtered cloud.
func (sp *StarPlanner) SetCloud(cloud []r3.Vector) {
	sp.cloud = cloud
}

// SetReprojectedPoints provides the obstacle evidence carried over from
// previous ticks.
func (sp *StarPlanner) SetReprojectedPoints(points []r3.Vector) {
	sp.reprojected = points
}

// SetLastDirection sets the previously chosen direction used by the smooth
// cost term.
func (sp *StarPlanner) SetLastDirection(dir r3.Vector) {
	sp.lastDirection = dir
}

// AgeTree advances the age of the cached path by one tick.
func (sp *StarPlanner) AgeTree() {
	sp.treeAge++
}

// Tree returns the node array of the last build.
func (sp *StarPlanner) Tree() []TreeNode { return sp.tree }

// ClosedSet returns the indices of the expanded nodes, in expansion order.
func (sp *StarPlanner) ClosedSet() []int { return sp.closedSet }

// PathNodePositions returns the best path, root first.
func (sp *StarPlanner) PathNodePositions() []r3.Vector { return sp.pathNodePositions }

// BuildLookAheadTree runs one tick's search. The tree is expanded best-first
// on accumulated cost plus distance-to-goal; each expansion rebuilds the cost
// field from the obstacle evidence recentered at the expanded node.
// Expansion stops after the configured node budget or as soon as an expanded
// node comes within one step of the goal. Ties break by insertion order.
func (sp *StarPlanner) BuildLookAheadTree() {
	sp.tree = sp.tree[:0]
	sp.closedSet = sp.closedSet[:0]

	root := TreeNode{
		Position:  sp.position,
		Yaw:       sp.yaw,
		Origin:    0,
		Heuristic: sp.goal.Sub(sp.position).Norm(),
	}
	sp.tree = append(sp.tree, root)

	points := make([]r3.Vector, 0, len(sp.cloud)+len(sp.reprojected))
	points = append(points, sp.cloud...)
	points = append(points, sp.reprojected...)

	for n := 0; n < sp.nExpandedNodes; n++ {
		origin := sp.bestOpenNode()
		if origin < 0 {
			break
		}
		originPos := sp.tree[origin].Position

		sp.tree[origin].closed = true
		sp.closedSet = append(sp.closedSet, origin)

		if origin != 0 && sp.goal.Sub(originPos).Norm() < sp.treeNodeDistance {
			break
		}

		hist := histogram.GenerateNewHistogram(points, originPos)
		headingZ := math.Round(-sp.tree[origin].Yaw*180.0/math.Pi) + 90.0
		matrix := cost.Matrix(
			hist, sp.goal, originPos, sp.lastDirection, headingZ,
			sp.params, false, sp.smoothingMarginDegrees)
		candidates := cost.BestCandidates(matrix, sp.childrenPerNode)

		for _, cand := range candidates {
			step := polar.Point{E: cand.E, Z: cand.Z, R: sp.treeNodeDistance}
			childPos := step.Cartesian(originPos)
			e, z := polar.HistogramIndex(cand, histogram.AlphaRes)
			edgeCost := matrix.At(e, z) + sp.treeNodeDistance

			sp.tree = append(sp.tree, TreeNode{
				Position:  childPos,
				Yaw:       polar.NextYaw(originPos, childPos),
				TotalCost: sp.tree[origin].TotalCost + edgeCost,
				Heuristic: sp.goal.Sub(childPos).Norm(),
				Origin:    origin,
				Depth:     sp.tree[origin].Depth + 1,
			})
		}
	}

	best := sp.bestTerminalNode()
	if best <= 0 {
		// nothing beyond the root; fall back to the cached path while it
		// is young enough
		if sp.treeAge < maxTreeAge && len(sp.pathNodePositions) > 1 {
			sp.logger.Debugw("tree search found no path, reusing cached path",
				"tree_age", sp.treeAge)
			return
		}
		sp.pathNodePositions = nil
		return
	}

	var reversed []r3.Vector
	for i := best; i != 0; i = sp.tree[i].Origin {
		reversed = append(reversed, sp.tree[i].Position)
	}
	reversed = append(reversed, sp.tree[0].Position)

	path := make([]r3.Vector, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		path = append(path, reversed[i])
	}
	sp.pathNodePositions = path
	sp.treeAge = 0
}

// bestOpenNode returns the index of the unexpanded node with the lowest
// estimated total cost, -1 when everything is closed. The first node found
// wins ties, which makes the search deterministic.
func (sp *StarPlanner) bestOpenNode() int {
	best := -1
	bestF := math.Inf(1)
	for i := range sp.tree {
		if sp.tree[i].closed {
			continue
		}
		if f := sp.tree[i].f(); f < bestF {
			bestF = f
			best = i
		}
	}
	return best
}

// bestTerminalNode picks the node the extracted path should end at: the
// lowest estimated total cost over every node but the root.
func (sp *StarPlanner) bestTerminalNode() int {
	best := -1
	bestF := math.Inf(1)
	for i := 1; i < len(sp.tree); i++ {
		if f := sp.tree[i].f(); f < bestF {
			bestF = f
			best = i
		}
	}
	return best
}
