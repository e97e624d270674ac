// Command avoidance-sim runs the local planner against a synthetic scene: a
// wall of depth points between the vehicle and its goal. It prints the chosen
// strategy and setpoint per tick. Development tool only; nothing here talks
// to a flight controller.
package main

import (
	"context"
	"math"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/num/quat"

	"github.com/viam-labs/avoidance"
	"github.com/viam-labs/avoidance/planner"
	"github.com/viam-labs/avoidance/waypoint"
)

var logger = golog.NewDevelopmentLogger("avoidance-sim")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// wall builds a plane of points at the given x, spanning y and z around the
// flight altitude.
func wall(x float64) []r3.Vector {
	var pts []r3.Vector
	for y := -3.0; y <= 3.0; y += 0.1 {
		for z := 2.0; z <= 8.0; z += 0.1 {
			pts = append(pts, r3.Vector{X: x, Y: y, Z: z})
		}
	}
	return pts
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	cfg := avoidance.DefaultConfig()
	cfg.DisableRiseToGoalAltitude = true

	clk := clock.New()
	lp, err := planner.NewLocalPlanner(cfg, clk, logger)
	if err != nil {
		return err
	}
	gen := waypoint.New(cfg.SmoothingSpeedXY, cfg.SmoothingSpeedZ, clk, logger)

	position := r3.Vector{Z: 5}
	goal := r3.Vector{X: 20, Z: 5}
	attitude := quat.Number{Real: 1}
	obstacles := wall(8)

	lp.SetState(true, true, false)
	lp.SetGoal(goal)

	for tick := 0; tick < 60; tick++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lp.SetPose(position, attitude)
		lp.SetClouds([][]r3.Vector{obstacles})
		lp.RunPlanner()

		gen.SetPlannerInfo(lp.Output())
		gen.UpdateState(position, attitude, goal, r3.Vector{}, false, true)
		res := gen.Waypoints()

		logger.Infow("tick",
			"n", tick,
			"strategy", res.WaypointType.String(),
			"position", position,
			"setpoint", res.SmoothedGotoPosition)

		// fly a fraction of the way to the setpoint and face it
		step := res.SmoothedGotoPosition.Sub(position).Mul(0.5)
		position = position.Add(step)
		lp.SetLastSentWaypoint(res.SmoothedGotoPosition)
		yaw := math.Atan2(step.X, step.Y)
		attitude = quat.Number{Real: math.Cos(yaw / 2), Kmag: math.Sin(yaw / 2)}

		if goal.Sub(position).Norm() < 0.5 {
			logger.Info("goal reached")
			break
		}
	}
	return nil
}
