// Package sim is a closed-loop kinematic highway the planner can be driven on. The ego follows
// each emitted path exactly, consuming a fixed number of points per cycle, and the other vehicles
// keep their lane at constant speed.
package sim

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"go.viam.com/highway/frenet"
	"go.viam.com/highway/logging"
	"go.viam.com/highway/planner"
	"go.viam.com/highway/traffic"
	"go.viam.com/highway/utils"
)

// Stats summarizes a drive.
type Stats struct {
	Cycles      int
	LaneChanges int
	// Manual counts cycles answered with the manual sentinel.
	Manual int
	// MinGap is the closest arc-length distance to another vehicle in the ego's lane, in meters.
	MinGap float64
	// MeanSpeed and MaxSpeed are the ego speeds over the drive in meters per second.
	MeanSpeed float64
	MaxSpeed  float64
	// Distance is the path length driven in meters.
	Distance  float64
	FinalS    float64
	FinalLane int
}

type ego struct {
	position r3.Vector
	// yaw is in radians.
	yaw   float64
	speed float64
	s, d  float64
}

type vehicle struct {
	id    int
	lane  int
	s     float64
	speed float64
}

// Simulator owns the world state of one drive.
type Simulator struct {
	cfg       Config
	planner   *planner.Planner
	transform *frenet.Transform
	lanes     traffic.Lanes
	period    float64
	clock     clock.Clock
	logger    logging.Logger

	ego      ego
	path     []r3.Vector
	vehicles []vehicle
	trace    []r3.Vector

	cycles      int
	laneChanges int
	manual      int
	minGap      float64
	speeds      []float64
	distance    float64
}

// New places the ego and the traffic on the planner's map.
func New(cfg Config, p *planner.Planner, clk clock.Clock, logger logging.Logger) (*Simulator, error) {
	if err := cfg.Validate("sim"); err != nil {
		return nil, err
	}
	pcfg := p.Config()
	if horizon := pcfg.Trajectory.Horizon; cfg.ConsumedPerCycle > horizon {
		return nil, errors.Errorf("sim.consumed_per_cycle %d exceeds the path horizon %d", cfg.ConsumedPerCycle, horizon)
	}

	s := &Simulator{
		cfg:       cfg,
		planner:   p,
		transform: p.Transform(),
		lanes:     pcfg.Lanes,
		period:    pcfg.Trajectory.CyclePeriod,
		clock:     clk,
		logger:    logger,
		minGap:    math.Inf(1),
	}

	startS := utils.WrapLength(cfg.StartS, s.transform.Map().MaxS())
	d := s.lanes.Center(pcfg.StartLane)
	s.ego = ego{
		position: s.transform.ToCartesian(startS, d),
		yaw:      s.transform.TrackHeading(startS),
		s:        startS,
		d:        d,
	}
	s.trace = []r3.Vector{s.ego.position}

	rng := rand.New(rand.NewSource(cfg.Seed))
	for i := 0; i < cfg.Traffic; i++ {
		s.vehicles = append(s.vehicles, vehicle{
			id:    i,
			lane:  rng.Intn(s.lanes.Count),
			s:     s.wrap(startS + 30 + rng.Float64()*cfg.TrafficSpread),
			speed: cfg.MinTrafficSpeed + rng.Float64()*(cfg.MaxTrafficSpeed-cfg.MinTrafficSpeed),
		})
	}
	return s, nil
}

// Run drives Config.Cycles cycles, pacing them to the clock when Config.Realtime is set.
func (s *Simulator) Run(ctx context.Context) (Stats, error) {
	var ticks <-chan time.Time
	if s.cfg.Realtime {
		interval := time.Duration(float64(s.cfg.ConsumedPerCycle) * s.period * float64(time.Second))
		ticker := s.clock.Ticker(interval)
		defer ticker.Stop()
		ticks = ticker.C
	}

	for i := 0; i < s.cfg.Cycles; i++ {
		if ticks != nil {
			select {
			case <-ctx.Done():
				return s.Stats(), ctx.Err()
			case <-ticks:
			}
		}
		if _, err := s.Step(ctx); err != nil {
			return s.Stats(), err
		}
	}

	stats := s.Stats()
	s.logger.Infow("drive finished",
		"cycles", stats.Cycles,
		"lane_changes", stats.LaneChanges,
		"manual", stats.Manual,
		"min_gap", stats.MinGap,
		"mean_speed", stats.MeanSpeed,
	)
	return stats, nil
}

// Step runs one planning cycle and advances the world by its execution.
func (s *Simulator) Step(ctx context.Context) (planner.Response, error) {
	resp := s.planner.Step(ctx, s.Telemetry())
	if err := ctx.Err(); err != nil {
		return resp, err
	}

	s.cycles++
	if resp.Kind == planner.Manual {
		s.manual++
	} else {
		s.path = resp.Path
		if resp.Decision.LaneChange != 0 {
			s.laneChanges++
		}
	}

	s.drive()
	for i := range s.vehicles {
		v := &s.vehicles[i]
		v.s = s.wrap(v.s + v.speed*s.period*float64(s.cfg.ConsumedPerCycle))
	}
	s.recordGap()
	return resp, nil
}

// Telemetry is what the vehicle reports at the current world state.
func (s *Simulator) Telemetry() *planner.Telemetry {
	tel := &planner.Telemetry{
		Position: s.ego.position,
		Yaw:      utils.RadToDeg(s.ego.yaw),
		Speed:    s.ego.speed * s.planner.Config().Trajectory.SpeedConversion,
		S:        s.ego.s,
		D:        s.ego.d,
		Tail:     append([]r3.Vector(nil), s.path...),
	}

	if n := len(s.path); n > 0 {
		heading := s.ego.yaw
		if n >= 2 {
			heading = math.Atan2(s.path[n-1].Y-s.path[n-2].Y, s.path[n-1].X-s.path[n-2].X)
		}
		tel.EndS, tel.EndD = s.transform.ToFrenet(s.path[n-1], heading)
	}

	for _, v := range s.vehicles {
		d := s.lanes.Center(v.lane)
		heading := s.transform.TrackHeading(v.s)
		tel.Vehicles = append(tel.Vehicles, traffic.TrackedVehicle{
			ID:       v.id,
			Position: s.transform.ToCartesian(v.s, d),
			Velocity: r3.Vector{X: math.Cos(heading), Y: math.Sin(heading)}.Mul(v.speed),
			S:        v.s,
			D:        d,
		})
	}
	return tel
}

// Stats returns the summary of the drive so far.
func (s *Simulator) Stats() Stats {
	stats := Stats{
		Cycles:      s.cycles,
		LaneChanges: s.laneChanges,
		Manual:      s.manual,
		MinGap:      s.minGap,
		Distance:    s.distance,
		FinalS:      s.ego.s,
		FinalLane:   s.planner.State().TargetLane,
	}
	if len(s.speeds) > 0 {
		stats.MeanSpeed = stat.Mean(s.speeds, nil)
		for _, v := range s.speeds {
			stats.MaxSpeed = math.Max(stats.MaxSpeed, v)
		}
	}
	return stats
}

// Trace returns the ego positions at the start and after every cycle that moved it.
func (s *Simulator) Trace() []r3.Vector {
	return append([]r3.Vector(nil), s.trace...)
}

// drive moves the ego along the first ConsumedPerCycle points of the current path.
func (s *Simulator) drive() {
	n := min(s.cfg.ConsumedPerCycle, len(s.path))
	if n == 0 {
		s.speeds = append(s.speeds, s.ego.speed)
		return
	}

	prev := s.ego.position
	for _, p := range s.path[:n] {
		s.distance += p.Sub(prev).Norm()
		prev = p
	}

	last := s.path[n-1]
	before := s.ego.position
	if n >= 2 {
		before = s.path[n-2]
	}
	if step := last.Sub(before).Norm(); step > 1e-9 {
		s.ego.yaw = math.Atan2(last.Y-before.Y, last.X-before.X)
		s.ego.speed = step / s.period
	} else {
		s.ego.speed = 0
	}

	s.ego.position = last
	s.ego.s, s.ego.d = s.transform.ToFrenet(last, s.ego.yaw)
	s.path = s.path[n:]
	s.speeds = append(s.speeds, s.ego.speed)
	s.trace = append(s.trace, last)
}

func (s *Simulator) recordGap() {
	lane := s.lanes.Of(s.ego.d)
	if lane == traffic.NoLane {
		return
	}
	for _, v := range s.vehicles {
		if v.lane != lane {
			continue
		}
		if gap := math.Abs(utils.WrapDelta(v.s, s.ego.s, s.transform.Map().MaxS())); gap < s.minGap {
			s.minGap = gap
		}
	}
}

func (s *Simulator) wrap(arc float64) float64 {
	return utils.WrapLength(arc, s.transform.Map().MaxS())
}
