package sim

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Config describes a simulated drive.
type Config struct {
	// Cycles is the number of planning cycles Run executes.
	Cycles int `json:"cycles"`
	// ConsumedPerCycle is how many path points the ego drives between two telemetry messages.
	ConsumedPerCycle int `json:"consumed_per_cycle"`
	// StartS is the ego arc-length at the start of the drive.
	StartS float64 `json:"start_s"`

	// Traffic is the number of other vehicles, placed in random lanes ahead of the ego.
	Traffic int `json:"traffic"`
	// Seed makes the traffic placement reproducible.
	Seed int64 `json:"seed"`
	// Traffic speeds are drawn from [MinTrafficSpeed, MaxTrafficSpeed] meters per second.
	MinTrafficSpeed float64 `json:"min_traffic_speed"`
	MaxTrafficSpeed float64 `json:"max_traffic_speed"`
	// TrafficSpread is the arc-length over which traffic is spread ahead of the ego.
	TrafficSpread float64 `json:"traffic_spread"`

	// Realtime paces cycles to the wall clock.
	Realtime bool `json:"realtime"`
}

// DefaultConfig returns a one minute drive in moderate traffic.
func DefaultConfig() Config {
	return Config{
		Cycles:           1000,
		ConsumedPerCycle: 3,
		StartS:           124.8,
		Traffic:          12,
		Seed:             1,
		MinTrafficSpeed:  14,
		MaxTrafficSpeed:  21,
		TrafficSpread:    600,
	}
}

// Validate returns every invalid field.
func (cfg Config) Validate(path string) error {
	var err error
	if cfg.Cycles < 0 {
		err = multierr.Append(err, errors.Errorf("%s.cycles must not be negative, got %d", path, cfg.Cycles))
	}
	if cfg.ConsumedPerCycle < 1 {
		err = multierr.Append(err, errors.Errorf("%s.consumed_per_cycle must be at least 1, got %d", path, cfg.ConsumedPerCycle))
	}
	if cfg.Traffic < 0 {
		err = multierr.Append(err, errors.Errorf("%s.traffic must not be negative, got %d", path, cfg.Traffic))
	}
	if cfg.MinTrafficSpeed < 0 || cfg.MaxTrafficSpeed < cfg.MinTrafficSpeed {
		err = multierr.Append(err, errors.Errorf("%s: traffic speeds must satisfy 0 <= min <= max, got [%v, %v]",
			path, cfg.MinTrafficSpeed, cfg.MaxTrafficSpeed))
	}
	if cfg.Traffic > 0 && cfg.TrafficSpread <= 0 {
		err = multierr.Append(err, errors.Errorf("%s.traffic_spread must be positive, got %v", path, cfg.TrafficSpread))
	}
	return err
}
