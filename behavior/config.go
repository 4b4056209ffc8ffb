package behavior

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Config holds the thresholds of the lane keeping and lane change policy. Distances are in
// meters of arc-length; speeds share the reference speed's units.
type Config struct {
	SpeedLimit float64 `json:"speed_limit"`
	// SpeedStep is the per-cycle speed change used for ramping up and for hard braking.
	SpeedStep float64 `json:"speed_step"`

	// FollowDistance is how far ahead in the ego lane a vehicle triggers following.
	FollowDistance float64 `json:"follow_distance"`
	// CloseGap is the gap below which the full SpeedStep is taken off.
	CloseGap float64 `json:"close_gap"`
	// SpeedBand separates closing in on a lead vehicle from matching its speed.
	SpeedBand float64 `json:"speed_band"`
	// GapScale scales the closing decrement inversely with the gap.
	GapScale float64 `json:"gap_scale"`

	// LaneScanDistance is how far ahead an adjacent lane's traffic speed is considered.
	LaneScanDistance float64 `json:"lane_scan_distance"`
	// SafetyGapScale sets the free-lane margin: SafetyGapScale * SpeedLimit / reference speed.
	SafetyGapScale float64 `json:"safety_gap_scale"`
	// Vehicles more than TrailingDistance behind and at least TrailingSpeedSlack slower than the
	// reference speed cannot conflict with a lane change and are ignored.
	TrailingDistance   float64 `json:"trailing_distance"`
	TrailingSpeedSlack float64 `json:"trailing_speed_slack"`
	// EmptyLaneGap and EmptyLaneSpeed are reported for a lane without relevant traffic.
	EmptyLaneGap   float64 `json:"empty_lane_gap"`
	EmptyLaneSpeed float64 `json:"empty_lane_speed"`
	// MinEvaluationSpeed is the reference speed below which lanes are not evaluated.
	MinEvaluationSpeed float64 `json:"min_evaluation_speed"`
}

// DefaultConfig returns the tuning of the standard highway.
func DefaultConfig() Config {
	return Config{
		SpeedLimit:         49.5,
		SpeedStep:          0.224,
		FollowDistance:     30,
		CloseGap:           10,
		SpeedBand:          3,
		GapScale:           15,
		LaneScanDistance:   60,
		SafetyGapScale:     30,
		TrailingDistance:   10,
		TrailingSpeedSlack: 5,
		EmptyLaneGap:       100,
		EmptyLaneSpeed:     50,
		MinEvaluationSpeed: 1,
	}
}

// Validate returns every invalid field.
func (cfg Config) Validate(path string) error {
	var err error
	for _, field := range []struct {
		name  string
		value float64
	}{
		{"speed_limit", cfg.SpeedLimit},
		{"speed_step", cfg.SpeedStep},
		{"follow_distance", cfg.FollowDistance},
		{"lane_scan_distance", cfg.LaneScanDistance},
		{"safety_gap_scale", cfg.SafetyGapScale},
		{"min_evaluation_speed", cfg.MinEvaluationSpeed},
	} {
		if field.value <= 0 {
			err = multierr.Append(err, errors.Errorf("%s.%s must be positive, got %v", path, field.name, field.value))
		}
	}
	if cfg.CloseGap < 0 || cfg.CloseGap > cfg.FollowDistance {
		err = multierr.Append(err, errors.Errorf("%s.close_gap must be within [0, follow_distance], got %v", path, cfg.CloseGap))
	}
	if cfg.SpeedBand < 0 || cfg.GapScale < 0 || cfg.TrailingDistance < 0 || cfg.TrailingSpeedSlack < 0 {
		err = multierr.Append(err, errors.Errorf("%s: gap and speed thresholds must not be negative", path))
	}
	if cfg.EmptyLaneGap <= 0 || cfg.EmptyLaneSpeed <= 0 {
		err = multierr.Append(err, errors.Errorf("%s: empty lane gap and speed must be positive", path))
	}
	return err
}
