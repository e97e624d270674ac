// Package waypoint converts the strategy chosen by the planner into the
// position and velocity setpoints handed to the flight controller: a raw goto
// direction, a speed-adapted version of it, and a critically damped smoothed
// setpoint.
package waypoint

import (
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/viam-labs/avoidance"
	"github.com/viam-labs/avoidance/polar"
)

// Result is one tick's worth of setpoints. When velocity setpoints are in
// use, LinearVelocityWP and AngularVelocityWP are primary; otherwise
// PositionWP and OrientationWP are.
type Result struct {
	GotoPosition         r3.Vector
	AdaptedGotoPosition  r3.Vector
	SmoothedGotoPosition r3.Vector

	LinearVelocityWP  r3.Vector
	AngularVelocityWP float64

	PositionWP    r3.Vector
	OrientationWP quat.Number

	WaypointType avoidance.WaypointType
}

// Generator derives setpoints from the planner output and the freshest
// vehicle state. It persists the smoothing filter state between ticks.
type Generator struct {
	plannerInfo avoidance.Output

	position   r3.Vector
	yaw        float64
	goal       r3.Vector
	velocity   r3.Vector
	hover      bool
	isAirborne bool

	smoothingSpeedXY float64
	smoothingSpeedZ  float64
	hFOV, vFOV       float64

	smoothedGoto    r3.Vector
	smoothedGotoVel r3.Vector
	smoothingValid  bool
	lastUpdate      time.Time

	clock  clock.Clock
	logger golog.Logger
}

// New returns a generator with the given smoothing natural frequencies.
func New(smoothingSpeedXY, smoothingSpeedZ float64, clk clock.Clock, logger golog.Logger) *Generator {
	return &Generator{
		smoothingSpeedXY: smoothingSpeedXY,
		smoothingSpeedZ:  smoothingSpeedZ,
		clock:            clk,
		logger:           logger,
	}
}

// SetPlannerInfo installs the output of the latest planner tick.
func (g *Generator) SetPlannerInfo(out avoidance.Output) {
	g.plannerInfo = out
}

// SetSmoothingSpeed updates the per-axis smoothing natural frequencies.
func (g *Generator) SetSmoothingSpeed(xy, z float64) {
	g.smoothingSpeedXY = xy
	g.smoothingSpeedZ = z
}

// SetFOV records the camera fields of view in degrees.
func (g *Generator) SetFOV(hFOVDeg, vFOVDeg float64) {
	g.hFOV = hFOVDeg
	g.vFOV = vFOVDeg
}

// UpdateState feeds the freshest vehicle state before a Waypoints call.
func (g *Generator) UpdateState(
	position r3.Vector,
	attitude quat.Number,
	goal, velocity r3.Vector,
	hover, isAirborne bool,
) {
	g.position = position
	g.yaw = polar.YawFromQuaternion(attitude)
	g.goal = goal
	g.velocity = velocity
	g.hover = hover
	g.isAirborne = isAirborne
}

// Waypoints computes the setpoints for the current strategy.
func (g *Generator) Waypoints() Result {
	res := Result{WaypointType: g.plannerInfo.WaypointType}

	if g.hover || !g.isAirborne {
		res.WaypointType = avoidance.Hover
		res.GotoPosition = g.position
		res.AdaptedGotoPosition = g.position
		res.SmoothedGotoPosition = g.position
		res.PositionWP = g.position
		res.OrientationWP = yawToQuaternion(g.yaw)
		g.resetSmoothing()
		return res
	}

	res.GotoPosition = g.gotoPosition()
	res.AdaptedGotoPosition = g.adaptSpeed(res.GotoPosition)
	res.SmoothedGotoPosition = g.smooth(res.AdaptedGotoPosition)

	desiredYaw := polar.NextYaw(g.position, res.GotoPosition)
	speed := res.AdaptedGotoPosition.Sub(g.position).Norm()
	dir := res.SmoothedGotoPosition.Sub(g.position)
	if n := dir.Norm(); n > 1e-6 {
		res.LinearVelocityWP = dir.Mul(speed / n)
	}
	res.AngularVelocityWP = polar.AngularVelocity(desiredYaw, g.yaw)

	res.PositionWP = res.SmoothedGotoPosition
	res.OrientationWP = yawToQuaternion(desiredYaw)
	return res
}

// gotoPosition projects the chosen direction at unit length from the current
// position.
func (g *Generator) gotoPosition() r3.Vector {
	switch g.plannerInfo.WaypointType {
	case avoidance.Costmap:
		step := polar.Point{
			E: g.plannerInfo.CostmapDirectionE,
			Z: g.plannerInfo.CostmapDirectionZ,
			R: 1.0,
		}
		return step.Cartesian(g.position)

	case avoidance.TryPath:
		if setpoint, ok := directionFromTree(g.plannerInfo.PathNodePositions, g.position); ok {
			return g.position.Add(unitOr(setpoint.Sub(g.position), r3.Vector{}))
		}
		return g.goFast(g.goal)

	case avoidance.GoBack:
		retreat := g.position.Sub(g.plannerInfo.BackOffPoint)
		retreat.Z = 0
		return g.position.Add(unitOr(retreat, r3.Vector{Y: -1}))

	case avoidance.ReachHeight:
		target := r3.Vector{
			X: g.plannerInfo.TakeOffPose.X,
			Y: g.plannerInfo.TakeOffPose.Y,
			Z: startingHeight(g.goal, g.plannerInfo.TakeOffPose),
		}
		return g.goFast(target)

	default: // direct
		return g.goFast(g.goal)
	}
}

// goFast heads straight at the target.
func (g *Generator) goFast(target r3.Vector) r3.Vector {
	return g.position.Add(unitOr(target.Sub(g.position), r3.Vector{}))
}

// adaptSpeed scales the unit goto step by a speed derived from the distance
// to the closest obstacle: a sigmoid between the around-obstacles and
// far-from-obstacles limits.
func (g *Generator) adaptSpeed(gotoPos r3.Vector) r3.Vector {
	vFar := g.plannerInfo.VelocityFarFromObstacles
	vNear := g.plannerInfo.VelocityAroundObstacles

	speed := vFar
	if g.plannerInfo.ObstacleAhead && !math.IsInf(g.plannerInfo.DistanceToClosest, 1) {
		slope := g.plannerInfo.VelocitySigmoidSlope
		x := slope * (g.plannerInfo.DistanceToClosest - vFar)
		speed = vNear + (vFar-vNear)/(1.0+math.Exp(-x))
	}

	dir := gotoPos.Sub(g.position)
	return g.position.Add(unitOr(dir, r3.Vector{}).Mul(speed))
}

// smooth runs a critically damped second order filter toward the adapted
// position with separate horizontal and vertical time constants. It is
// bypassed when the vehicle is not airborne or smoothing is disabled.
func (g *Generator) smooth(target r3.Vector) r3.Vector {
	now := g.clock.Now()
	if !g.smoothingValid || g.smoothingSpeedXY <= 0 {
		g.smoothedGoto = target
		g.smoothedGotoVel = r3.Vector{}
		g.smoothingValid = true
		g.lastUpdate = now
		return target
	}

	dt := now.Sub(g.lastUpdate).Seconds()
	g.lastUpdate = now
	if dt <= 0 {
		return g.smoothedGoto
	}

	wXY := g.smoothingSpeedXY
	wZ := g.smoothingSpeedZ
	accel := r3.Vector{
		X: wXY*wXY*(target.X-g.smoothedGoto.X) - 2.0*wXY*g.smoothedGotoVel.X,
		Y: wXY*wXY*(target.Y-g.smoothedGoto.Y) - 2.0*wXY*g.smoothedGotoVel.Y,
		Z: wZ*wZ*(target.Z-g.smoothedGoto.Z) - 2.0*wZ*g.smoothedGotoVel.Z,
	}
	g.smoothedGotoVel = g.smoothedGotoVel.Add(accel.Mul(dt))
	g.smoothedGoto = g.smoothedGoto.Add(g.smoothedGotoVel.Mul(dt))
	return g.smoothedGoto
}

func (g *Generator) resetSmoothing() {
	g.smoothingValid = false
	g.smoothedGotoVel = r3.Vector{}
}

// directionFromTree picks the path node the vehicle should head at: the node
// after the one it is currently closest to.
func directionFromTree(path []r3.Vector, position r3.Vector) (r3.Vector, bool) {
	if len(path) < 2 {
		return r3.Vector{}, false
	}
	closest := 0
	closestDist := math.Inf(1)
	for i, p := range path {
		if d := position.Sub(p).Norm(); d < closestDist {
			closestDist = d
			closest = i
		}
	}
	next := closest + 1
	if next >= len(path) {
		next = len(path) - 1
	}
	return path[next], true
}

// startingHeight is the altitude the vehicle climbs to before lateral
// planning begins.
func startingHeight(goal, takeOffPose r3.Vector) float64 {
	return math.Max(goal.Z-0.5, takeOffPose.Z+1.0)
}

func unitOr(v, fallback r3.Vector) r3.Vector {
	n := v.Norm()
	if n < 1e-6 {
		return fallback
	}
	return v.Mul(1.0 / n)
}

func yawToQuaternion(yaw float64) quat.Number {
	return quat.Number{Real: math.Cos(yaw / 2.0), Kmag: math.Sin(yaw / 2.0)}
}
