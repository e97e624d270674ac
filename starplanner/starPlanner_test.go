package starplanner

import (
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/viam-labs/avoidance"
	"github.com/viam-labs/avoidance/cost"
	"github.com/viam-labs/avoidance/polar"
)

func newTestPlanner(t *testing.T) *StarPlanner {
	t.Helper()
	cfg := avoidance.DefaultConfig()
	cfg.ChildrenPerNode = 4
	cfg.NExpandedNodes = 20
	sp := New(cfg, golog.NewTestLogger(t))
	sp.SetCostParams(cost.Params{
		GoalCost:                10,
		HeadingCost:             0.5,
		SmoothCost:              1.5,
		HeightChangeCost:        4,
		HeightChangeCostAdapted: 4,
		PitchCost:               5,
	})
	sp.SetFOV(59, 46)
	return sp
}

func TestTreeHeadsTowardGoal(t *testing.T) {
	sp := newTestPlanner(t)
	start := r3.Vector{Z: 5}
	goal := r3.Vector{X: 10, Z: 5}
	sp.SetPose(start, 0)
	sp.SetGoal(goal)
	sp.SetLastDirection(goal)
	sp.BuildLookAheadTree()

	path := sp.PathNodePositions()
	test.That(t, len(path), test.ShouldBeGreaterThan, 1)
	test.That(t, path[0], test.ShouldResemble, start)
	// first step points into +x
	test.That(t, path[1].X-start.X, test.ShouldBeGreaterThan, 0.9)

	// parent indices always point backward, so paths cannot cycle
	for i, n := range sp.Tree() {
		test.That(t, n.Origin, test.ShouldBeLessThanOrEqualTo, i)
	}
}

func TestTreeStopsNearGoal(t *testing.T) {
	sp := newTestPlanner(t)
	start := r3.Vector{Z: 5}
	goal := r3.Vector{X: 2.2, Z: 5}
	sp.SetPose(start, 0)
	sp.SetGoal(goal)
	sp.SetLastDirection(goal)
	sp.BuildLookAheadTree()

	path := sp.PathNodePositions()
	test.That(t, len(path), test.ShouldBeGreaterThan, 1)
	end := path[len(path)-1]
	test.That(t, goal.Sub(end).Norm(), test.ShouldBeLessThan, 2.0)
	// the expansion budget was not exhausted
	test.That(t, len(sp.ClosedSet()), test.ShouldBeLessThan, 20)
}

func TestTreeAvoidsObstacle(t *testing.T) {
	sp := newTestPlanner(t)
	start := r3.Vector{Z: 5}
	goal := r3.Vector{X: 10, Z: 5}

	// wall directly between start and goal
	var wall []r3.Vector
	for y := -2.0; y <= 2.0; y += 0.2 {
		for z := 3.0; z <= 7.0; z += 0.2 {
			wall = append(wall, r3.Vector{X: 2.5, Y: y, Z: z})
		}
	}
	sp.SetPose(start, 0)
	sp.SetGoal(goal)
	sp.SetCloud(wall)
	sp.SetLastDirection(goal)
	sp.BuildLookAheadTree()

	path := sp.PathNodePositions()
	test.That(t, len(path), test.ShouldBeGreaterThan, 1)
	// the first step cannot head straight into the wall
	step := path[1].Sub(start)
	straightIn := step.Y > -0.3 && step.Y < 0.3 && step.Z > -0.3 && step.Z < 0.3 && step.X > 0.9
	test.That(t, straightIn, test.ShouldBeFalse)
}

func TestCachedPathReuse(t *testing.T) {
	sp := newTestPlanner(t)
	start := r3.Vector{Z: 5}
	goal := r3.Vector{X: 10, Z: 5}
	sp.SetPose(start, 0)
	sp.SetGoal(goal)
	sp.SetLastDirection(goal)
	sp.BuildLookAheadTree()
	want := sp.PathNodePositions()
	test.That(t, len(want), test.ShouldBeGreaterThan, 1)

	// everything blocked: no candidates anywhere, so the young cached
	// path survives
	var sphere []r3.Vector
	for e := -85.0; e <= 85.0; e += 10 {
		for z := -175.0; z <= 175.0; z += 10 {
			sphere = append(sphere, polar.Point{E: e, Z: z, R: 3.5}.Cartesian(start))
		}
	}
	sp.SetCloud(sphere)
	sp.AgeTree()
	sp.BuildLookAheadTree()
	test.That(t, sp.PathNodePositions(), test.ShouldResemble, want)

	// once the cache ages out it is dropped
	for i := 0; i < maxTreeAge; i++ {
		sp.AgeTree()
	}
	sp.BuildLookAheadTree()
	test.That(t, len(sp.PathNodePositions()), test.ShouldEqual, 0)
}
