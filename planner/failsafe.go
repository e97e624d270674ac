package planner

import (
	"time"

	"github.com/viam-labs/avoidance"
)

// FailsafeState is the health the boundary reports to the flight controller.
type FailsafeState int

const (
	// FailsafeHealthy means clouds are arriving on time.
	FailsafeHealthy FailsafeState = iota
	// FailsafeCritical means clouds are stale; the vehicle should hover.
	FailsafeCritical
	// FailsafeTermination means clouds have been gone long enough that
	// flight termination should be requested.
	FailsafeTermination
)

func (s FailsafeState) String() string {
	switch s {
	case FailsafeHealthy:
		return "healthy"
	case FailsafeCritical:
		return "critical"
	case FailsafeTermination:
		return "termination"
	}
	return "unknown"
}

// CheckFailsafe grades cloud freshness against the configured timeouts. Both
// durations must exceed a threshold before it fires, so a freshly started
// planner is not terminated before its first cloud.
func CheckFailsafe(sinceLastCloud, sinceStart time.Duration, cfg avoidance.Config) FailsafeState {
	if sinceLastCloud > cfg.TimeoutTermination && sinceStart > cfg.TimeoutTermination {
		return FailsafeTermination
	}
	if sinceLastCloud > cfg.TimeoutCritical && sinceStart > cfg.TimeoutCritical {
		return FailsafeCritical
	}
	return FailsafeHealthy
}
