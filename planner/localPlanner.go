// Package planner contains the top-level local planner: the per-tick strategy
// state machine, progress-rate adaptation, the obstacle-distance ring for the
// flight controller, and the background worker that runs planning ticks.
package planner

import (
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"github.com/viam-labs/avoidance"
	"github.com/viam-labs/avoidance/cost"
	"github.com/viam-labs/avoidance/histogram"
	"github.com/viam-labs/avoidance/polar"
	"github.com/viam-labs/avoidance/starplanner"
)

const (
	// distInclineWindowSize is the length of the goal-progress sliding
	// window.
	distInclineWindowSize = 10

	// closePointBackoffThreshold is how many very-close points trigger the
	// backoff behavior.
	closePointBackoffThreshold = 200

	// Obstacle-distance ring limits, meters.
	distanceRingRangeMax = 20.0

	// Default camera fields of view in degrees until the host reports the
	// real ones.
	defaultHFOV = 59.0
	defaultVFOV = 46.0
)

// LocalPlanner runs one planning tick at a time over the freshest inputs and
// exposes the chosen strategy plus diagnostics. It is not safe for concurrent
// use; the Worker serializes access.
type LocalPlanner struct {
	cfg        avoidance.Config
	costParams cost.Params

	position    r3.Vector
	positionOld r3.Vector
	yaw         float64
	pitch       float64
	velocity    r3.Vector
	goal        r3.Vector

	armed    bool
	offboard bool
	mission  bool

	groundDistance   float64
	clouds           [][]r3.Vector
	hFOV, vFOV       float64
	lastSentWaypoint r3.Vector

	takeOffPose    r3.Vector
	reachAltitude  bool
	startingHeight float64

	box histogram.Box
	fov histogram.FOV

	polarHistogram *histogram.Histogram
	reprojPoints   []r3.Vector
	reprojAges     []int
	filtered       histogram.FilterResult
	histIsEmpty    bool

	costMatrix    *mat.Dense
	costmapDirE   float64
	costmapDirZ   float64
	waypointType  avoidance.WaypointType
	obstacleAhead bool

	backOff           bool
	backOffPoint      r3.Vector
	backOffStartPoint r3.Vector
	firstBrake        bool
	stopInFrontActive bool

	goalDistIncline []float64
	integralTimeOld time.Time

	star         *starplanner.StarPlanner
	lastPathTime time.Time

	distanceRing   []float64
	histogramImage []uint8
	costImage      []uint8

	clock  clock.Clock
	logger golog.Logger
}

// NewLocalPlanner returns a planner with the given configuration.
func NewLocalPlanner(cfg avoidance.Config, clk clock.Clock, logger golog.Logger) (*LocalPlanner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l := &LocalPlanner{
		cfg:            cfg,
		box:            histogram.NewBox(cfg.BoxRadius),
		polarHistogram: histogram.New(histogram.AlphaRes),
		hFOV:           defaultHFOV,
		vFOV:           defaultVFOV,
		groundDistance: 2.0,
		firstBrake:     true,
		star:           starplanner.New(cfg, logger),
		clock:          clk,
		logger:         logger,
	}
	l.costParams = paramsFromConfig(cfg, cfg.HeightChangeCostParam)
	l.integralTimeOld = clk.Now()
	return l, nil
}

func paramsFromConfig(cfg avoidance.Config, adapted float64) cost.Params {
	return cost.Params{
		GoalCost:                cfg.GoalCostParam,
		HeadingCost:             cfg.HeadingCostParam,
		SmoothCost:              cfg.SmoothCostParam,
		HeightChangeCost:        cfg.HeightChangeCostParam,
		HeightChangeCostAdapted: adapted,
		PitchCost:               cfg.PitchCostParam,
	}
}

// SetPose updates the vehicle position and attitude. While disarmed the
// take-off pose follows the vehicle so the climb-out starts from wherever
// arming happens.
func (l *LocalPlanner) SetPose(position r3.Vector, attitude quat.Number) {
	l.position = position
	l.yaw = polar.YawFromQuaternion(attitude)
	l.pitch = polar.PitchFromQuaternion(attitude)
	l.star.SetPose(position, l.yaw)

	if !l.armed && !l.cfg.DisableRiseToGoalAltitude {
		l.takeOffPose = position
		l.reachAltitude = false
	}
}

// SetVelocity updates the vehicle velocity estimate.
func (l *LocalPlanner) SetVelocity(v r3.Vector) {
	l.velocity = v
}

// SetGoal installs a new goal and resets goal-derived state.
func (l *LocalPlanner) SetGoal(goal r3.Vector) {
	l.goal = goal
	l.logger.Infow("new goal", "x", goal.X, "y", goal.Y, "z", goal.Z)
	l.applyGoal()
}

func (l *LocalPlanner) applyGoal() {
	l.star.SetGoal(l.goal)
	l.goalDistIncline = nil
}

// Goal returns the current goal, including any braking substitution.
func (l *LocalPlanner) Goal() r3.Vector { return l.goal }

// Position returns the last pose update.
func (l *LocalPlanner) Position() r3.Vector { return l.position }

// SetState updates the flight-controller state flags.
func (l *LocalPlanner) SetState(armed, offboard, mission bool) {
	l.armed = armed
	l.offboard = offboard
	l.mission = mission
}

// SetGroundDistance updates the range-sensor ground clearance.
func (l *LocalPlanner) SetGroundDistance(d float64) {
	l.groundDistance = d
}

// SetClouds installs the per-camera clouds for the next tick, already
// transformed into the local origin frame.
func (l *LocalPlanner) SetClouds(clouds [][]r3.Vector) {
	l.clouds = clouds
}

// SetFOV records the combined camera fields of view in degrees.
func (l *LocalPlanner) SetFOV(hFOVDeg, vFOVDeg float64) {
	l.hFOV = hFOVDeg
	l.vFOV = vFOVDeg
}

// SetLastSentWaypoint records the setpoint most recently sent to the flight
// controller, which the smooth cost term pulls toward.
func (l *LocalPlanner) SetLastSentWaypoint(p r3.Vector) {
	l.lastSentWaypoint = p
}

// SetConfig swaps the configuration; it takes effect on the next tick. A
// changed goal altitude re-targets the goal.
func (l *LocalPlanner) SetConfig(cfg avoidance.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	goalZChanged := cfg.GoalZ != l.cfg.GoalZ
	l.cfg = cfg
	l.box = histogram.NewBox(cfg.BoxRadius)
	adapted := l.costParams.HeightChangeCostAdapted
	if adapted == 0 || adapted > cfg.HeightChangeCostParam {
		adapted = cfg.HeightChangeCostParam
	}
	l.costParams = paramsFromConfig(cfg, adapted)
	l.star.SetConfig(cfg)
	if goalZChanged {
		goal := l.goal
		goal.Z = cfg.GoalZ
		l.SetGoal(goal)
	}
	return nil
}

// RunPlanner advances one planning tick over the freshest inputs.
func (l *LocalPlanner) RunPlanner() {
	l.stopInFrontActive = false

	l.logger.Debugw("planning started", "cameras", len(l.clouds))

	l.fov = histogram.CalculateFOV(l.hFOV, l.vFOV, l.yaw, l.pitch)
	l.box.SetLimits(l.position, l.groundDistance)

	l.filtered = histogram.FilterPointCloud(
		l.clouds, l.box, l.position, l.cfg.MinSensorDist, l.cfg.MinDistBackoff)

	l.determineStrategy()
}

// create2DObstacleRepresentation rebuilds the polar histogram: reproject the
// previous tick's cells, propagate them into a coarse histogram, bin the new
// cloud, and combine. Optionally refresh the obstacle-distance ring for the
// flight controller.
func (l *LocalPlanner) create2DObstacleRepresentation(sendToFCU bool) {
	l.reprojPoints, l.reprojAges = histogram.ReprojectPoints(
		l.polarHistogram, l.positionOld, l.position, l.box.Radius, l.cfg.ReprojAge)
	propagated := histogram.PropagateHistogram(l.reprojPoints, l.reprojAges, l.position)
	fresh := histogram.GenerateNewHistogram(l.filtered.Cloud, l.position)
	l.histIsEmpty = histogram.CombineHistogram(fresh, propagated, l.fov)

	if sendToFCU {
		l.distanceRing = l.buildDistanceRing(fresh.CompressElevation())
	}
	l.polarHistogram = fresh
	l.histogramImage = l.renderHistogramImage(fresh)
}

func (l *LocalPlanner) determineStrategy() {
	l.star.AgeTree()

	if l.cfg.DisableRiseToGoalAltitude {
		l.reachAltitude = true
	}

	switch {
	case !l.reachAltitude:
		l.startingHeight = math.Max(l.goal.Z-0.5, l.takeOffPose.Z+1.0)
		l.logger.Infow("reaching start height first", "height", l.startingHeight)
		l.waypointType = avoidance.ReachHeight

		if l.position.Z > l.startingHeight {
			l.reachAltitude = true
			l.waypointType = avoidance.Direct
		}
		if l.cfg.SendObstaclesFCU {
			l.create2DObstacleRepresentation(true)
		}

	case len(l.filtered.Cloud) > l.cfg.MinCloudSize && l.cfg.StopInFront:
		l.obstacleAhead = true
		l.logger.Info("obstacle ahead, stopping in front")
		l.stopInFrontObstacles()
		l.waypointType = avoidance.Direct
		if l.cfg.SendObstaclesFCU {
			l.create2DObstacleRepresentation(true)
		}

	default:
		closePoints := l.filtered.CloseCount > closePointBackoffThreshold &&
			len(l.filtered.Cloud) > l.cfg.MinCloudSize
		if (closePoints || l.backOff) && l.cfg.UseBackOff {
			if !l.backOff {
				l.backOffPoint = l.filtered.ClosestPoint
				l.backOffStartPoint = l.position
				l.backOff = true
				l.logger.Infow("backing off close obstacle",
					"distance", l.filtered.DistanceToClosest)
			} else if l.position.Sub(l.backOffPoint).Norm() > l.cfg.MinDistBackoff+1.0 {
				l.backOff = false
				l.logger.Info("backoff complete")
			}
			l.waypointType = avoidance.GoBack
			if l.cfg.SendObstaclesFCU {
				l.create2DObstacleRepresentation(true)
			}
		} else {
			l.evaluateProgressRate()
			l.create2DObstacleRepresentation(l.cfg.SendObstaclesFCU)

			if l.histIsEmpty {
				l.obstacleAhead = false
				l.waypointType = avoidance.TryPath
			} else {
				l.obstacleAhead = true
				l.planAroundObstacles()
			}
			l.firstBrake = true
		}
	}
	l.positionOld = l.position
}

// planAroundObstacles evaluates the cost field and either runs the lookahead
// tree or takes the single best costmap direction.
func (l *LocalPlanner) planAroundObstacles() {
	headingZ := math.Round(-l.yaw*180.0/math.Pi) + 90.0
	l.costMatrix = cost.Matrix(
		l.polarHistogram, l.goal, l.position, l.lastSentWaypoint, headingZ,
		l.costParams, l.velocity.Norm() < 0.1, l.cfg.SmoothingMarginDegrees)
	l.costImage = cost.ImageRGB(l.costMatrix)

	if l.cfg.UseVFHStar {
		l.star.SetCostParams(l.costParams)
		l.star.SetFOV(l.hFOV, l.vFOV)
		l.star.SetReprojectedPoints(l.reprojPoints)
		l.star.SetCloud(l.filtered.Cloud)

		// project the last sent waypoint out to goal range so the smooth
		// term compares directions, not magnitudes
		lastPol := polar.FromCartesian(l.lastSentWaypoint, l.position)
		lastPol.R = l.position.Sub(l.goal).Norm()
		l.star.SetLastDirection(lastPol.Cartesian(l.position))

		l.star.BuildLookAheadTree()
		l.waypointType = avoidance.TryPath
		l.lastPathTime = l.clock.Now()
		return
	}

	candidates := cost.BestCandidates(l.costMatrix, 1)
	if len(candidates) == 0 {
		l.stopInFrontObstacles()
		l.waypointType = avoidance.Direct
		l.cfg.StopInFront = true
		l.logger.Info("all directions blocked, stopping in front of obstacle")
		return
	}
	l.costmapDirE = candidates[0].E
	l.costmapDirZ = candidates[0].Z
	l.waypointType = avoidance.Costmap
}

// stopInFrontObstacles replaces the goal with a braking point keep-distance
// short of the closest obstacle, once per approach.
func (l *LocalPlanner) stopInFrontObstacles() {
	if l.firstBrake {
		brakingDistance := math.Abs(l.filtered.DistanceToClosest - l.cfg.KeepDistance)
		toGoal := r3.Vector{X: l.goal.X - l.position.X, Y: l.goal.Y - l.position.Y}
		if n := toGoal.Norm(); n > 1e-6 {
			toGoal = toGoal.Mul(brakingDistance / n)
		}
		l.goal.X = l.position.X + toGoal.X
		l.goal.Y = l.position.Y + toGoal.Y
		l.firstBrake = false
		l.stopInFrontActive = true
	}
	l.logger.Infow("braking goal set",
		"x", l.goal.X, "y", l.goal.Y, "z", l.goal.Z,
		"obstacle_distance", l.filtered.DistanceToClosest)
}

// evaluateProgressRate maintains the sliding window of goal-distance change
// and trades the height-change weight between flying over and flying around.
func (l *LocalPlanner) evaluateProgressRate() {
	if !l.reachAltitude || !l.cfg.AdaptCostParams {
		l.costParams.HeightChangeCostAdapted = l.costParams.HeightChangeCost
		return
	}

	goalDist := l.position.Sub(l.goal).Norm()
	goalDistOld := l.positionOld.Sub(l.goal).Norm()

	now := l.clock.Now()
	dt := now.Sub(l.integralTimeOld).Seconds()
	l.integralTimeOld = now
	if dt <= 0 {
		return
	}

	l.goalDistIncline = append(l.goalDistIncline, (goalDist-goalDistOld)/dt)
	if len(l.goalDistIncline) > distInclineWindowSize {
		l.goalDistIncline = l.goalDistIncline[1:]
	}
	avgIncline := floats.Sum(l.goalDistIncline) / float64(len(l.goalDistIncline))

	if avgIncline > l.cfg.NoProgressSlope && len(l.goalDistIncline) == distInclineWindowSize {
		if l.costParams.HeightChangeCostAdapted > 0.75 {
			l.costParams.HeightChangeCostAdapted -= 0.02
		}
	}
	if avgIncline < l.cfg.NoProgressSlope {
		if l.costParams.HeightChangeCostAdapted < l.costParams.HeightChangeCost-0.03 {
			l.costParams.HeightChangeCostAdapted += 0.03
		}
	}
	l.logger.Debugw("progress rate",
		"avg_incline", avgIncline,
		"adapted_height_change_cost", l.costParams.HeightChangeCostAdapted)
}

// Output returns the tick result the waypoint generator consumes.
func (l *LocalPlanner) Output() avoidance.Output {
	return avoidance.Output{
		WaypointType:             l.waypointType,
		ObstacleAhead:            l.obstacleAhead,
		DistanceToClosest:        l.filtered.DistanceToClosest,
		VelocityAroundObstacles:  l.cfg.VelocityAroundObstacles,
		VelocityFarFromObstacles: l.cfg.VelocityFarFromObstacles,
		VelocitySigmoidSlope:     l.cfg.VelocitySigmoidSlope,
		BackOffPoint:             l.backOffPoint,
		BackOffStartPoint:        l.backOffStartPoint,
		MinDistBackoff:           l.cfg.MinDistBackoff,
		TakeOffPose:              l.takeOffPose,
		CostmapDirectionE:        l.costmapDirE,
		CostmapDirectionZ:        l.costmapDirZ,
		PathNodePositions:        l.star.PathNodePositions(),
		LastPathTime:             l.lastPathTime,
	}
}

// StopInFrontActive reports whether this tick substituted a braking goal; the
// boundary mirrors the new goal back into its mission state when it did.
func (l *LocalPlanner) StopInFrontActive() bool { return l.stopInFrontActive }

// Tree exposes the lookahead tree for visualization.
func (l *LocalPlanner) Tree() ([]starplanner.TreeNode, []int, []r3.Vector) {
	return l.star.Tree(), l.star.ClosedSet(), l.star.PathNodePositions()
}

// Histogram returns the combined polar histogram of the last tick.
func (l *LocalPlanner) Histogram() *histogram.Histogram { return l.polarHistogram }

// ClosestPoint returns the nearest filtered obstacle point and its distance.
func (l *LocalPlanner) ClosestPoint() (r3.Vector, float64) {
	return l.filtered.ClosestPoint, l.filtered.DistanceToClosest
}

// FilteredCloud returns the cropped cloud of the last tick.
func (l *LocalPlanner) FilteredCloud() []r3.Vector { return l.filtered.Cloud }

// ReprojectedPoints returns the carried-over obstacle points of the last
// tick.
func (l *LocalPlanner) ReprojectedPoints() []r3.Vector { return l.reprojPoints }

// HistogramImage returns the last tick's histogram as grayscale rows, top
// row the highest elevation.
func (l *LocalPlanner) HistogramImage() []uint8 { return l.histogramImage }

// CostImage returns the last cost field as packed RGB8 rows.
func (l *LocalPlanner) CostImage() []uint8 { return l.costImage }

func (l *LocalPlanner) renderHistogramImage(h *histogram.Histogram) []uint8 {
	nE, nZ := h.Dims()
	img := make([]uint8, 0, nE*nZ)
	for e := nE - 1; e >= 0; e-- {
		for z := 0; z < nZ; z++ {
			depth := 255.0 * h.Dist(e, z) / l.box.Radius
			img = append(img, uint8(math.Max(0, math.Min(255, depth))))
		}
	}
	return img
}
