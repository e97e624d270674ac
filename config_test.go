package avoidance

import (
	"testing"

	"go.viam.com/test"
)

func TestDefaultConfigValid(t *testing.T) {
	test.That(t, DefaultConfig().Validate(), test.ShouldBeNil)
}

func TestConfigValidation(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative box radius", func(c *Config) { c.BoxRadius = -1 }},
		{"negative sensor distance", func(c *Config) { c.MinSensorDist = -0.1 }},
		{"inverted speed limits", func(c *Config) { c.VelocityAroundObstacles = 5 }},
		{"zero children", func(c *Config) { c.ChildrenPerNode = 0 }},
		{"zero node distance", func(c *Config) { c.TreeNodeDistance = 0 }},
		{"negative reprojection age", func(c *Config) { c.ReprojAge = -1 }},
		{"inverted timeouts", func(c *Config) { c.TimeoutTermination = 0 }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			test.That(t, cfg.Validate(), test.ShouldNotBeNil)
		})
	}
}

func TestWaypointTypeString(t *testing.T) {
	test.That(t, TryPath.String(), test.ShouldEqual, "tryPath")
	test.That(t, ReachHeight.String(), test.ShouldEqual, "reachHeight")
	test.That(t, GoBack.String(), test.ShouldEqual, "goBack")
	test.That(t, WaypointType(99).String(), test.ShouldEqual, "unknown")
}
