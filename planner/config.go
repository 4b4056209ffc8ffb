package planner

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/highway/behavior"
	"go.viam.com/highway/traffic"
	"go.viam.com/highway/trajectory"
)

// Config configures a Planner.
type Config struct {
	Lanes traffic.Lanes `json:"lanes"`
	// StartLane is the target lane before the first cycle.
	StartLane  int               `json:"start_lane"`
	Behavior   behavior.Config   `json:"behavior"`
	Trajectory trajectory.Config `json:"trajectory"`
}

// DefaultConfig returns the standard highway setup, starting in the middle lane.
func DefaultConfig() Config {
	return Config{
		Lanes:      traffic.DefaultLanes(),
		StartLane:  1,
		Behavior:   behavior.DefaultConfig(),
		Trajectory: trajectory.DefaultConfig(),
	}
}

// Validate ensures all parts of the config are valid.
func (cfg Config) Validate(path string) error {
	err := multierr.Combine(
		cfg.Lanes.Validate(path+".lanes"),
		cfg.Behavior.Validate(path+".behavior"),
		cfg.Trajectory.Validate(path+".trajectory"),
	)
	if cfg.Lanes.Count > 0 && !cfg.Lanes.Contains(cfg.StartLane) {
		err = multierr.Append(err, errors.Errorf("%s.start_lane %d is not one of the %d lanes", path, cfg.StartLane, cfg.Lanes.Count))
	}
	return err
}
