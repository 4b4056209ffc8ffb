// Package planner runs one planning cycle per telemetry message: it builds the traffic snapshot,
// lets the behavior policy update the target lane and reference speed, and synthesizes the next
// path. Telemetry that cannot be planned on yields the manual sentinel and leaves the planner
// state as it was.
package planner

import (
	"context"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/highway/behavior"
	"go.viam.com/highway/frenet"
	"go.viam.com/highway/highwaymap"
	"go.viam.com/highway/logging"
	"go.viam.com/highway/traffic"
	"go.viam.com/highway/trajectory"
	"go.viam.com/highway/utils"
)

var (
	// ErrNoTelemetry is returned for a cycle without telemetry.
	ErrNoTelemetry = errors.New("no telemetry")
	// ErrMalformedTelemetry is returned for telemetry with unusable fields.
	ErrMalformedTelemetry = errors.New("malformed telemetry")
)

// Telemetry is one inbound message from the vehicle.
type Telemetry struct {
	Position r3.Vector `json:"position"`
	// Yaw is the ego heading in degrees.
	Yaw   float64 `json:"yaw"`
	Speed float64 `json:"speed"`
	S     float64 `json:"s"`
	D     float64 `json:"d"`

	// Tail is the unconsumed remainder of the previously emitted path.
	Tail []r3.Vector `json:"previous_path"`
	// EndS and EndD are the Frenet coordinates of the last tail point.
	EndS float64 `json:"end_path_s"`
	EndD float64 `json:"end_path_d"`

	Vehicles []traffic.TrackedVehicle `json:"sensor_fusion"`
}

// Kind tells the vehicle whether to follow the path or revert to manual driving.
type Kind int

const (
	// Control carries a path to follow.
	Control Kind = iota
	// Manual asks the vehicle to drive itself this cycle.
	Manual
)

func (k Kind) String() string {
	if k == Manual {
		return "manual"
	}
	return "control"
}

// Response is the outbound answer to one telemetry message.
type Response struct {
	Kind Kind
	Path []r3.Vector
	// Err is why a Manual response was produced.
	Err error
	// Decision is the behavior outcome of a Control cycle.
	Decision behavior.Decision
}

// Planner holds the cross-cycle state. It is not safe for concurrent use; cycles are run one at
// a time.
type Planner struct {
	cfg       Config
	transform *frenet.Transform
	traffic   *traffic.Model
	behavior  *behavior.Planner
	generator *trajectory.Generator
	logger    logging.Logger

	state  behavior.State
	cycles int
}

// New returns a Planner driving on m. A nil logger selects the global logger.
func New(cfg Config, m *highwaymap.Map, logger logging.Logger) (*Planner, error) {
	if m == nil {
		return nil, errors.New("planner needs a map")
	}
	if logger == nil {
		logger = logging.Global()
	}
	if err := cfg.Validate("planner"); err != nil {
		return nil, err
	}
	transform := frenet.New(m)
	return &Planner{
		cfg:       cfg,
		transform: transform,
		traffic:   traffic.NewModel(cfg.Lanes, cfg.Trajectory.CyclePeriod, m.MaxS()),
		behavior:  behavior.NewPlanner(cfg.Behavior, cfg.Lanes, logger.Sublogger("behavior")),
		generator: trajectory.NewGenerator(cfg.Trajectory, cfg.Lanes, transform, logger.Sublogger("trajectory")),
		logger:    logger,
		state:     behavior.NewState(cfg.StartLane),
	}, nil
}

// State returns a copy of the cross-cycle state.
func (p *Planner) State() behavior.State {
	return p.state
}

// Transform returns the coordinate transform of the planner's map.
func (p *Planner) Transform() *frenet.Transform {
	return p.transform
}

// Config returns the planner configuration.
func (p *Planner) Config() Config {
	return p.cfg
}

// Step runs one cycle. It never fails; unusable telemetry produces a Manual response.
func (p *Planner) Step(ctx context.Context, tel *Telemetry) Response {
	path, dec, err := p.Plan(ctx, tel)
	if err != nil {
		p.logger.Warnw("reverting to manual", "error", err)
		return Response{Kind: Manual, Err: err}
	}
	return Response{Kind: Control, Path: path, Decision: dec}
}

// Plan runs one cycle and returns the path, or an error without touching the planner state.
func (p *Planner) Plan(ctx context.Context, tel *Telemetry) ([]r3.Vector, behavior.Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, behavior.Decision{}, err
	}
	if err := p.validate(tel); err != nil {
		return nil, behavior.Decision{}, err
	}

	tail := tel.Tail
	if len(tail) > p.cfg.Trajectory.Horizon {
		tail = tail[:p.cfg.Trajectory.Horizon]
	}

	egoS := tel.S
	if len(tail) > 0 {
		egoS = tel.EndS
	}

	snap := p.traffic.Snapshot(egoS, len(tail), tel.Vehicles)
	if snap.Dropped > 0 {
		p.logger.Debugw("dropped non-finite traffic records", "count", snap.Dropped)
	}
	dec := p.behavior.Decide(&p.state, snap)

	traj := p.generator.Generate(trajectory.Input{
		Position:       tel.Position,
		Heading:        utils.DegToRad(tel.Yaw),
		S:              egoS,
		Tail:           tail,
		Lane:           p.state.TargetLane,
		ReferenceSpeed: p.state.ReferenceSpeed,
	})

	p.cycles++
	p.logger.Debugw("cycle",
		"n", p.cycles,
		"s", egoS,
		"retained", traj.Retained,
		"mode", p.state.Mode.String(),
		"lane", p.state.TargetLane,
		"ref_speed", p.state.ReferenceSpeed,
	)
	return traj.Points, dec, nil
}

func (p *Planner) validate(tel *Telemetry) error {
	if tel == nil {
		return ErrNoTelemetry
	}
	if !utils.IsFinite(tel.Position.X, tel.Position.Y, tel.Yaw, tel.Speed, tel.S, tel.D) {
		return errors.Wrap(ErrMalformedTelemetry, "ego state is not finite")
	}
	if len(tel.Tail) == 0 {
		return nil
	}
	if !utils.IsFinite(tel.EndS, tel.EndD) {
		return errors.Wrap(ErrMalformedTelemetry, "end of previous path is not finite")
	}
	for i, pt := range tel.Tail {
		if !utils.IsFinite(pt.X, pt.Y) {
			return errors.Wrapf(ErrMalformedTelemetry, "previous path point %d is not finite", i)
		}
	}
	return nil
}
