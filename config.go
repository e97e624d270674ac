package avoidance

import (
	"time"

	"github.com/pkg/errors"
)

// Config is the full planner configuration. The host delivers a new copy at
// tick boundaries; changes take effect on the next tick.
type Config struct {
	// BoxRadius is the half-side of the cube the raw clouds are cropped to.
	BoxRadius float64

	// Cost weights.
	GoalCostParam         float64
	HeadingCostParam      float64
	SmoothCostParam       float64
	HeightChangeCostParam float64
	PitchCostParam        float64

	// Speed limits and the slope of the distance to speed sigmoid.
	VelocityAroundObstacles  float64
	VelocityFarFromObstacles float64
	VelocitySigmoidSlope     float64

	// Braking and backoff thresholds.
	KeepDistance   float64
	MinDistBackoff float64

	// ReprojAge bounds reprojection: only cells younger than this many
	// ticks are carried forward.
	ReprojAge int

	// NoProgressSlope is the goal-distance derivative above which the
	// adapted height-change weight starts decaying.
	NoProgressSlope float64

	// MinCloudSize is the minimum number of filtered points treated as an
	// obstacle. MinSensorDist drops points closer than the sensor can
	// reliably measure.
	MinCloudSize  int
	MinSensorDist float64

	// Failsafe thresholds.
	TimeoutCritical    time.Duration
	TimeoutTermination time.Duration

	// Tree search shape.
	ChildrenPerNode  int
	NExpandedNodes   int
	TreeNodeDistance float64

	// SmoothingMarginDegrees is the angular margin added around obstacle
	// cells in the cost field.
	SmoothingMarginDegrees float64

	// Waypoint smoothing natural frequencies.
	SmoothingSpeedXY float64
	SmoothingSpeedZ  float64

	// GoalZ overrides the goal altitude when it changes between ticks.
	GoalZ float64

	// Behavior toggles.
	UseVelSetpoints           bool
	StopInFront               bool
	UseBackOff                bool
	UseVFHStar                bool
	AdaptCostParams           bool
	SendObstaclesFCU          bool
	DisableRiseToGoalAltitude bool
}

// DefaultConfig returns the configuration the planner flies with when the
// host provides nothing else.
func DefaultConfig() Config {
	return Config{
		BoxRadius:                12.0,
		GoalCostParam:            10.0,
		HeadingCostParam:         0.5,
		SmoothCostParam:          1.5,
		HeightChangeCostParam:    4.0,
		PitchCostParam:           5.0,
		VelocityAroundObstacles:  1.0,
		VelocityFarFromObstacles: 3.0,
		VelocitySigmoidSlope:     1.0,
		KeepDistance:             5.0,
		MinDistBackoff:           1.0,
		ReprojAge:                10,
		NoProgressSlope:          -0.0007,
		MinCloudSize:             160,
		MinSensorDist:            0.2,
		TimeoutCritical:          500 * time.Millisecond,
		TimeoutTermination:       15 * time.Second,
		ChildrenPerNode:          8,
		NExpandedNodes:           40,
		TreeNodeDistance:         1.0,
		SmoothingMarginDegrees:   30.0,
		SmoothingSpeedXY:         10.0,
		SmoothingSpeedZ:          3.0,
		GoalZ:                    3.5,
		UseBackOff:               true,
		UseVFHStar:               true,
		AdaptCostParams:          true,
	}
}

// Validate rejects configurations the planner cannot run with.
func (c Config) Validate() error {
	if c.BoxRadius <= 0 {
		return errors.New("box radius must be positive")
	}
	if c.MinSensorDist < 0 {
		return errors.New("min sensor distance cannot be negative")
	}
	if c.VelocityAroundObstacles > c.VelocityFarFromObstacles {
		return errors.Errorf(
			"velocity around obstacles (%.2f) cannot exceed velocity far from obstacles (%.2f)",
			c.VelocityAroundObstacles, c.VelocityFarFromObstacles)
	}
	if c.ChildrenPerNode <= 0 || c.NExpandedNodes <= 0 {
		return errors.New("tree shape parameters must be positive")
	}
	if c.TreeNodeDistance <= 0 {
		return errors.New("tree node distance must be positive")
	}
	if c.ReprojAge < 0 {
		return errors.New("reprojection age cannot be negative")
	}
	if c.TimeoutCritical > c.TimeoutTermination {
		return errors.New("critical timeout cannot exceed termination timeout")
	}
	return nil
}
