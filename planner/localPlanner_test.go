package planner

import (
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"

	"github.com/viam-labs/avoidance"
	"github.com/viam-labs/avoidance/polar"
	"github.com/viam-labs/avoidance/waypoint"
)

var identity = quat.Number{Real: 1}

func yawQuat(yaw float64) quat.Number {
	return quat.Number{Real: math.Cos(yaw / 2), Kmag: math.Sin(yaw / 2)}
}

func scenarioConfig() avoidance.Config {
	cfg := avoidance.DefaultConfig()
	cfg.BoxRadius = 10
	cfg.KeepDistance = 2
	cfg.MinDistBackoff = 3
	cfg.DisableRiseToGoalAltitude = true
	return cfg
}

func newTestPlanner(t *testing.T, cfg avoidance.Config) (*LocalPlanner, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	lp, err := NewLocalPlanner(cfg, clk, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return lp, clk
}

// frontalWall is ~200 points on the plane x=3, |y|<2, |z-5|<1, plus one
// point dead ahead at exactly 3 m.
func frontalWall() []r3.Vector {
	pts := []r3.Vector{{X: 3, Y: 0, Z: 5}}
	for y := -1.9; y < 2.0; y += 0.2 {
		for z := 4.1; z < 6.0; z += 0.2 {
			pts = append(pts, r3.Vector{X: 3, Y: y, Z: z})
		}
	}
	return pts
}

func TestEmptyWorldTriesPath(t *testing.T) {
	lp, _ := newTestPlanner(t, scenarioConfig())
	lp.SetState(true, true, false)
	lp.SetPose(r3.Vector{Z: 5}, identity)
	lp.SetGoal(r3.Vector{X: 10, Z: 5})
	lp.SetClouds(nil)
	lp.RunPlanner()

	out := lp.Output()
	test.That(t, out.WaypointType, test.ShouldEqual, avoidance.TryPath)
	test.That(t, out.ObstacleAhead, test.ShouldBeFalse)

	// with no tree the generator heads straight at the goal: +x
	gen := waypoint.New(10, 3, clock.NewMock(), golog.NewTestLogger(t))
	gen.SetPlannerInfo(out)
	gen.UpdateState(r3.Vector{Z: 5}, identity, r3.Vector{X: 10, Z: 5}, r3.Vector{}, false, true)
	res := gen.Waypoints()
	test.That(t, res.GotoPosition.X, test.ShouldAlmostEqual, 1)
	test.That(t, res.GotoPosition.Y, test.ShouldAlmostEqual, 0)
}

func TestFrontalWallBrakes(t *testing.T) {
	cfg := scenarioConfig()
	cfg.StopInFront = true
	lp, _ := newTestPlanner(t, cfg)
	lp.SetState(true, true, false)
	lp.SetPose(r3.Vector{Z: 5}, identity)
	lp.SetGoal(r3.Vector{X: 10, Z: 5})
	lp.SetClouds([][]r3.Vector{frontalWall()})
	lp.RunPlanner()

	out := lp.Output()
	test.That(t, out.WaypointType, test.ShouldEqual, avoidance.Direct)
	test.That(t, lp.StopInFrontActive(), test.ShouldBeTrue)
	// braking goal sits distance-to-closest minus keep-distance ahead
	test.That(t, lp.Goal().X, test.ShouldAlmostEqual, 1.0, 1e-6)
	test.That(t, lp.Goal().Y, test.ShouldAlmostEqual, 0, 1e-6)

	// the brake latches: a second tick must not move the goal again
	lp.SetClouds([][]r3.Vector{frontalWall()})
	lp.RunPlanner()
	test.That(t, lp.Goal().X, test.ShouldAlmostEqual, 1.0, 1e-6)
}

func TestTakeoffReachesHeightFirst(t *testing.T) {
	cfg := scenarioConfig()
	cfg.DisableRiseToGoalAltitude = false
	lp, _ := newTestPlanner(t, cfg)

	// disarmed pose updates track the take-off pose
	lp.SetState(false, false, false)
	lp.SetPose(r3.Vector{Z: 0.2}, identity)
	lp.SetState(true, true, false)
	lp.SetGoal(r3.Vector{Z: 5})
	lp.SetClouds(nil)
	lp.RunPlanner()

	out := lp.Output()
	test.That(t, out.WaypointType, test.ShouldEqual, avoidance.ReachHeight)
	test.That(t, out.TakeOffPose.Z, test.ShouldAlmostEqual, 0.2)
	test.That(t, lp.startingHeight, test.ShouldAlmostEqual, 4.5)

	// still below the start height
	lp.SetPose(r3.Vector{Z: 4.4}, identity)
	lp.RunPlanner()
	test.That(t, lp.Output().WaypointType, test.ShouldEqual, avoidance.ReachHeight)

	// above it, lateral planning begins
	lp.SetPose(r3.Vector{Z: 4.6}, identity)
	lp.RunPlanner()
	test.That(t, lp.Output().WaypointType, test.ShouldEqual, avoidance.Direct)
	test.That(t, lp.reachAltitude, test.ShouldBeTrue)
}

func TestObstacleMemoryOutsideFOV(t *testing.T) {
	lp, _ := newTestPlanner(t, scenarioConfig())
	lp.SetState(true, true, false)
	lp.SetGoal(r3.Vector{Y: 20, Z: 5})

	// facing north, obstacle dead ahead
	lp.SetPose(r3.Vector{Z: 5}, yawQuat(math.Pi/2))
	lp.SetClouds([][]r3.Vector{{{X: 0, Y: 5, Z: 5}, {X: 0.2, Y: 5, Z: 5}}})
	lp.RunPlanner()
	test.That(t, lp.Histogram().IsEmpty(), test.ShouldBeFalse)

	// now facing east with nothing in view: the north obstacle is outside
	// the FOV and must survive via reprojection
	lp.SetPose(r3.Vector{Z: 5}, identity)
	lp.SetClouds(nil)
	lp.RunPlanner()

	h := lp.Histogram()
	test.That(t, h.IsEmpty(), test.ShouldBeFalse)
	e, z := polar.HistogramIndex(polar.Point{E: 0, Z: 0, R: 5}, 6)
	test.That(t, h.Dist(e, z), test.ShouldBeGreaterThan, 0)
}

func TestObstacleMemoryExpires(t *testing.T) {
	cfg := scenarioConfig()
	cfg.ReprojAge = 2
	lp, _ := newTestPlanner(t, cfg)
	lp.SetState(true, true, false)
	lp.SetGoal(r3.Vector{Y: 20, Z: 5})

	lp.SetPose(r3.Vector{Z: 5}, yawQuat(math.Pi/2))
	lp.SetClouds([][]r3.Vector{{{X: 0, Y: 5, Z: 5}}})
	lp.RunPlanner()

	lp.SetPose(r3.Vector{Z: 5}, identity)
	lp.SetClouds(nil)
	for i := 0; i < 5; i++ {
		lp.RunPlanner()
	}
	test.That(t, lp.Histogram().IsEmpty(), test.ShouldBeTrue)
}

func TestAllDirectionsBlockedStopsInFront(t *testing.T) {
	cfg := scenarioConfig()
	cfg.UseVFHStar = false
	lp, _ := newTestPlanner(t, cfg)
	lp.SetState(true, true, false)
	pos := r3.Vector{Z: 5}
	lp.SetPose(pos, identity)
	lp.SetGoal(r3.Vector{X: 10, Z: 5})
	// keep the ground below the box so the whole sphere survives the crop
	lp.SetGroundDistance(cfg.BoxRadius)

	var sphere []r3.Vector
	for e := -85.0; e <= 85.0; e += 10 {
		for z := -175.0; z <= 175.0; z += 10 {
			sphere = append(sphere, polar.Point{E: e, Z: z, R: 3.5}.Cartesian(pos))
		}
	}
	lp.SetClouds([][]r3.Vector{sphere})
	lp.RunPlanner()

	out := lp.Output()
	test.That(t, out.WaypointType, test.ShouldEqual, avoidance.Direct)
	test.That(t, lp.StopInFrontActive(), test.ShouldBeTrue)
	// stop-in-front latched into the configuration
	test.That(t, lp.cfg.StopInFront, test.ShouldBeTrue)
}

func TestCostmapDirectionWhenTreeDisabled(t *testing.T) {
	cfg := scenarioConfig()
	cfg.UseVFHStar = false
	lp, _ := newTestPlanner(t, cfg)
	lp.SetState(true, true, false)
	lp.SetPose(r3.Vector{Z: 5}, identity)
	lp.SetGoal(r3.Vector{X: 10, Z: 5})
	lp.SetLastSentWaypoint(r3.Vector{X: 1, Z: 5})

	// a single obstacle off to the north leaves plenty of candidates
	lp.SetClouds([][]r3.Vector{{{X: 0, Y: 4, Z: 5}, {X: 0.2, Y: 4, Z: 5}}})
	lp.RunPlanner()

	out := lp.Output()
	test.That(t, out.WaypointType, test.ShouldEqual, avoidance.Costmap)
	// the chosen bearing is a valid cell center
	e, z := polar.HistogramIndex(
		polar.Point{E: out.CostmapDirectionE, Z: out.CostmapDirectionZ, R: 1}, 6)
	test.That(t, e, test.ShouldBeBetweenOrEqual, 0, 29)
	test.That(t, z, test.ShouldBeBetweenOrEqual, 0, 59)
}

func TestBackoffLatchAndRelease(t *testing.T) {
	lp, _ := newTestPlanner(t, scenarioConfig())
	lp.SetState(true, true, false)
	lp.SetPose(r3.Vector{Z: 5}, identity)
	lp.SetGoal(r3.Vector{X: 10, Z: 5})

	var cluster []r3.Vector
	for i := 0; i < 250; i++ {
		cluster = append(cluster, r3.Vector{Y: 1.4 + float64(i)*0.001, Z: 5})
	}
	lp.SetClouds([][]r3.Vector{cluster})
	lp.RunPlanner()

	out := lp.Output()
	test.That(t, out.WaypointType, test.ShouldEqual, avoidance.GoBack)
	test.That(t, out.BackOffPoint, test.ShouldResemble, r3.Vector{Y: 1.4, Z: 5})
	test.That(t, out.BackOffStartPoint, test.ShouldResemble, r3.Vector{Z: 5})

	// still latched while close, even with nothing in view
	lp.SetPose(r3.Vector{X: -1, Z: 5}, identity)
	lp.SetClouds(nil)
	lp.RunPlanner()
	test.That(t, lp.Output().WaypointType, test.ShouldEqual, avoidance.GoBack)

	// beyond min-dist-backoff plus one meter the latch releases
	lp.SetPose(r3.Vector{X: -4, Z: 5}, identity)
	lp.RunPlanner()
	test.That(t, lp.backOff, test.ShouldBeFalse)
	lp.RunPlanner()
	test.That(t, lp.Output().WaypointType, test.ShouldNotEqual, avoidance.GoBack)
}

func TestProgressRateAdaptsHeightWeight(t *testing.T) {
	cfg := scenarioConfig()
	lp, clk := newTestPlanner(t, cfg)
	lp.SetState(true, true, false)
	lp.SetPose(r3.Vector{Z: 5}, identity)
	lp.SetGoal(r3.Vector{X: 10, Z: 5})
	lp.SetClouds(nil)

	// hovering in place: zero progress, so once the window fills the
	// adapted weight decays toward the fly-around floor
	for i := 0; i < 25; i++ {
		clk.Add(100 * time.Millisecond)
		lp.RunPlanner()
	}
	test.That(t, lp.costParams.HeightChangeCostAdapted,
		test.ShouldBeLessThan, cfg.HeightChangeCostParam)
	test.That(t, lp.costParams.HeightChangeCostAdapted,
		test.ShouldBeGreaterThanOrEqualTo, 0.75)
}

func TestProgressRateDisabled(t *testing.T) {
	cfg := scenarioConfig()
	cfg.AdaptCostParams = false
	lp, clk := newTestPlanner(t, cfg)
	lp.SetState(true, true, false)
	lp.SetPose(r3.Vector{Z: 5}, identity)
	lp.SetGoal(r3.Vector{X: 10, Z: 5})
	lp.SetClouds(nil)

	for i := 0; i < 15; i++ {
		clk.Add(100 * time.Millisecond)
		lp.RunPlanner()
	}
	test.That(t, lp.costParams.HeightChangeCostAdapted,
		test.ShouldAlmostEqual, cfg.HeightChangeCostParam)
}

func TestObstacleDistanceRing(t *testing.T) {
	cfg := scenarioConfig()
	cfg.SendObstaclesFCU = true
	lp, _ := newTestPlanner(t, cfg)
	lp.SetState(true, true, false)
	lp.SetGoal(r3.Vector{Y: 20, Z: 5})
	lp.SetPose(r3.Vector{Z: 5}, yawQuat(math.Pi/2)) // facing north
	lp.SetClouds([][]r3.Vector{{{X: 0, Y: 5, Z: 5}}})
	lp.RunPlanner()

	ring := lp.ObstacleDistances()
	test.That(t, len(ring), test.ShouldEqual, 360)
	// dead ahead: the obstacle at 5 m
	test.That(t, ring[0], test.ShouldAlmostEqual, 5, 1e-6)
	// behind: outside the FOV, the no-data sentinel
	test.That(t, ring[180], test.ShouldEqual, float64(math.MaxUint16))
	// inside the FOV but clear: range-max plus one
	test.That(t, ring[330], test.ShouldAlmostEqual, 21.0)
}

func TestSetConfigGoalZOverride(t *testing.T) {
	cfg := scenarioConfig()
	lp, _ := newTestPlanner(t, cfg)
	lp.SetGoal(r3.Vector{X: 10, Z: 3.5})

	cfg.GoalZ = 7
	test.That(t, lp.SetConfig(cfg), test.ShouldBeNil)
	test.That(t, lp.Goal().Z, test.ShouldAlmostEqual, 7)
	test.That(t, lp.Goal().X, test.ShouldAlmostEqual, 10)
}

func TestInvalidConfigRejected(t *testing.T) {
	cfg := scenarioConfig()
	cfg.BoxRadius = -1
	clk := clock.NewMock()
	_, err := NewLocalPlanner(cfg, clk, golog.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}
