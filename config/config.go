// Package config reads the JSON configuration of the highway planner. Every key is optional;
// missing keys keep their defaults.
package config

import (
	"encoding/json"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/highway/highwaymap"
	"go.viam.com/highway/logging"
	"go.viam.com/highway/planner"
	"go.viam.com/highway/sim"
)

// Map locates the waypoint table.
type Map struct {
	// Path is the waypoint table file. Empty selects the synthetic circuit.
	Path string `json:"path"`
	// MaxS is the track length; zero derives it from the table.
	MaxS      float64   `json:"max_s"`
	Reference r3.Vector `json:"reference"`

	// CircuitRadius and CircuitWaypoints shape the synthetic circuit.
	CircuitRadius    float64 `json:"circuit_radius"`
	CircuitWaypoints int     `json:"circuit_waypoints"`
}

// Validate ensures the map settings are usable.
func (m Map) Validate(path string) error {
	var err error
	if m.MaxS < 0 {
		err = multierr.Append(err, errors.Errorf("%s.max_s must not be negative, got %v", path, m.MaxS))
	}
	if m.Path == "" {
		if m.CircuitRadius <= 0 {
			err = multierr.Append(err, errors.Errorf("%s.circuit_radius must be positive, got %v", path, m.CircuitRadius))
		}
		if m.CircuitWaypoints < 3 {
			err = multierr.Append(err, errors.Errorf("%s.circuit_waypoints must be at least 3, got %d", path, m.CircuitWaypoints))
		}
	}
	return err
}

// Build loads the table, or builds the synthetic circuit when no table is configured.
func (m Map) Build() (*highwaymap.Map, error) {
	if m.Path == "" {
		return highwaymap.Circuit(m.Reference, m.CircuitRadius, m.CircuitWaypoints)
	}
	return highwaymap.Load(m.Path, m.MaxS, m.Reference)
}

// Config is the whole configuration.
type Config struct {
	Map     Map            `json:"map"`
	Planner planner.Config `json:"planner"`
	Sim     sim.Config     `json:"sim"`
	// LogLevel is one of debug, info, warn or error.
	LogLevel string `json:"log_level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Map: Map{
			MaxS:             highwaymap.DefaultMaxS,
			Reference:        highwaymap.DefaultReference,
			CircuitRadius:    1000,
			CircuitWaypoints: 200,
		},
		Planner:  planner.DefaultConfig(),
		Sim:      sim.DefaultConfig(),
		LogLevel: "info",
	}
}

// Validate returns every problem found in the configuration.
func (cfg *Config) Validate() error {
	err := multierr.Combine(
		cfg.Map.Validate("map"),
		cfg.Planner.Validate("planner"),
		cfg.Sim.Validate("sim"),
	)
	if _, lerr := logging.LevelFromString(cfg.LogLevel); lerr != nil {
		err = multierr.Append(err, errors.Wrap(lerr, "log_level"))
	}
	return err
}

// Read decodes a JSON document over the defaults and validates the result. Unknown keys are
// errors.
func Read(r io.Reader) (*Config, error) {
	var raw map[string]interface{}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "cannot parse config")
	}

	cfg := Default()
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:  "json",
		Result:   cfg,
		Metadata: &md,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, errors.Wrap(err, "cannot decode config")
	}
	if len(md.Unused) > 0 {
		sort.Strings(md.Unused)
		return nil, errors.Errorf("unknown config keys: %s", strings.Join(md.Unused, ", "))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads the configuration file at path.
func Load(path string) (*Config, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	cfg, err := Read(f)
	if err != nil {
		return nil, errors.Wrapf(err, "config %q", path)
	}
	return cfg, nil
}
