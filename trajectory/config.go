package trajectory

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Config parameterizes path synthesis.
type Config struct {
	// Horizon is the number of points in every emitted path.
	Horizon int `json:"horizon"`
	// CyclePeriod is the time, in seconds, between consecutive path points.
	CyclePeriod float64 `json:"cycle_period"`

	// AnchorSpacing and AnchorCount place the spline anchors ahead of the planning arc-length.
	AnchorSpacing float64 `json:"anchor_spacing"`
	AnchorCount   int     `json:"anchor_count"`

	// ChordTarget is the local x distance over which the point spacing is computed.
	ChordTarget float64 `json:"chord_target"`
	// SpeedConversion divides the reference speed to get meters per second.
	SpeedConversion float64 `json:"speed_conversion"`
}

// DefaultConfig returns the standard path parameters.
func DefaultConfig() Config {
	return Config{
		Horizon:         50,
		CyclePeriod:     0.02,
		AnchorSpacing:   30,
		AnchorCount:     3,
		ChordTarget:     30,
		SpeedConversion: 2.24,
	}
}

// Validate returns every invalid field.
func (cfg Config) Validate(path string) error {
	var err error
	if cfg.Horizon < 1 {
		err = multierr.Append(err, errors.Errorf("%s.horizon must be at least 1, got %d", path, cfg.Horizon))
	}
	if cfg.AnchorCount < 1 {
		err = multierr.Append(err, errors.Errorf("%s.anchor_count must be at least 1, got %d", path, cfg.AnchorCount))
	}
	for _, field := range []struct {
		name  string
		value float64
	}{
		{"cycle_period", cfg.CyclePeriod},
		{"anchor_spacing", cfg.AnchorSpacing},
		{"chord_target", cfg.ChordTarget},
		{"speed_conversion", cfg.SpeedConversion},
	} {
		if field.value <= 0 {
			err = multierr.Append(err, errors.Errorf("%s.%s must be positive, got %v", path, field.name, field.value))
		}
	}
	return err
}
