// Package avoidance holds the types shared between the local planner and the
// waypoint generator: the strategy chosen for a tick, the planner output the
// generator consumes, and the planner configuration.
package avoidance

import (
	"time"

	"github.com/golang/geo/r3"
)

// WaypointType is the strategy the planner selected for the current tick.
type WaypointType int

// The available strategies.
const (
	Hover WaypointType = iota
	TryPath
	Direct
	ReachHeight
	GoBack
	Costmap
)

func (w WaypointType) String() string {
	switch w {
	case Hover:
		return "hover"
	case TryPath:
		return "tryPath"
	case Direct:
		return "direct"
	case ReachHeight:
		return "reachHeight"
	case GoBack:
		return "goBack"
	case Costmap:
		return "costmap"
	}
	return "unknown"
}

// Output is everything the waypoint generator needs from one planner tick.
type Output struct {
	WaypointType  WaypointType
	ObstacleAhead bool

	// DistanceToClosest is the range to the nearest filtered obstacle
	// point, +Inf when none was seen this tick.
	DistanceToClosest float64

	VelocityAroundObstacles  float64
	VelocityFarFromObstacles float64
	VelocitySigmoidSlope     float64

	BackOffPoint      r3.Vector
	BackOffStartPoint r3.Vector
	MinDistBackoff    float64

	TakeOffPose r3.Vector

	// Bearing chosen from the cost matrix when tree search is disabled,
	// degrees in the histogram frame.
	CostmapDirectionE float64
	CostmapDirectionZ float64

	PathNodePositions []r3.Vector
	LastPathTime      time.Time
}
