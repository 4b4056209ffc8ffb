// Package behavior decides the target lane and reference speed of the ego vehicle each cycle.
//
// The planner is a small state machine over CRUISE, FOLLOWING and EVALUATING_LANE_CHANGE. A
// vehicle close ahead in the ego lane slows the ego down and raises a sticky evaluation flag;
// while the flag is set the adjacent lanes are scanned every cycle and a lane change is
// committed as soon as one of them is free and faster. The flag is cleared only by a commit.
// A committed change is not re-validated in later cycles.
package behavior

import (
	"math"

	"go.viam.com/highway/logging"
	"go.viam.com/highway/traffic"
	"go.viam.com/highway/utils"
)

// Mode is the behavior state reported after a cycle.
type Mode int

const (
	// Cruise drives the target lane, ramping towards the speed limit.
	Cruise Mode = iota
	// Following slows down for a vehicle ahead in the ego lane.
	Following
	// EvaluatingLaneChange waits for a free, faster adjacent lane.
	EvaluatingLaneChange
)

func (m Mode) String() string {
	switch m {
	case Cruise:
		return "CRUISE"
	case Following:
		return "FOLLOWING"
	case EvaluatingLaneChange:
		return "EVALUATING_LANE_CHANGE"
	}
	return "UNKNOWN"
}

// State is the planner state that persists across cycles. Decide mutates it in place.
type State struct {
	TargetLane     int
	ReferenceSpeed float64
	// EvaluateLaneChange is the sticky flag enabling adjacent lane evaluation.
	EvaluateLaneChange bool
	Mode               Mode
}

// NewState returns the state of a vehicle starting in lane at rest.
func NewState(lane int) State {
	return State{TargetLane: lane, Mode: Cruise}
}

// LaneAssessment is the gap analysis of one adjacent lane.
type LaneAssessment struct {
	Lane   int
	Exists bool
	// MinGap is the smallest absolute arc-length distance to a relevant vehicle in the lane.
	MinGap float64
	// MinSpeed is the slowest vehicle ahead within the scan distance.
	MinSpeed float64
	Free     bool
}

// Decision records what happened in one call to Decide.
type Decision struct {
	Mode Mode
	// Leads are the ego lane vehicles that triggered following, with the rule applied to each.
	Leads []traffic.Vehicle
	Rules []string
	// Evaluated is set when adjacent lanes were assessed this cycle.
	Evaluated    bool
	SafetyMargin float64
	Left, Right  LaneAssessment
	// LaneChange is -1 for a committed change to the left, +1 to the right, else 0.
	LaneChange int
}

// Planner applies the policy. It holds no per-cycle state of its own.
type Planner struct {
	cfg    Config
	lanes  traffic.Lanes
	logger logging.Logger
}

// NewPlanner returns a Planner for the given policy and lane layout.
func NewPlanner(cfg Config, lanes traffic.Lanes, logger logging.Logger) *Planner {
	return &Planner{cfg: cfg, lanes: lanes, logger: logger}
}

// Config returns the policy configuration.
func (p *Planner) Config() Config {
	return p.cfg
}

// Decide runs one cycle of the policy against snap and updates state.
func (p *Planner) Decide(state *State, snap *traffic.Snapshot) Decision {
	var dec Decision
	if !p.lanes.Contains(state.TargetLane) {
		state.TargetLane = int(utils.Clamp(float64(state.TargetLane), 0, float64(p.lanes.Count-1)))
	}
	state.ReferenceSpeed = utils.Clamp(state.ReferenceSpeed, 0, p.cfg.SpeedLimit)

	for _, v := range snap.InLane(state.TargetLane) {
		if v.Gap <= 0 || v.Gap >= p.cfg.FollowDistance {
			continue
		}
		dec.Leads = append(dec.Leads, v)
		state.EvaluateLaneChange = true

		rule, decrement, ok := followDecrement(p.cfg, state.ReferenceSpeed, v.Speed, v.Gap)
		if !ok {
			dec.Rules = append(dec.Rules, "")
			continue
		}
		dec.Rules = append(dec.Rules, rule)
		state.ReferenceSpeed = utils.Clamp(state.ReferenceSpeed-decrement, 0, p.cfg.SpeedLimit)
	}
	following := len(dec.Leads) > 0

	if state.EvaluateLaneChange && state.ReferenceSpeed >= p.cfg.MinEvaluationSpeed {
		p.evaluateLanes(state, snap, &dec)
	}

	if !following {
		state.ReferenceSpeed = math.Min(state.ReferenceSpeed+p.cfg.SpeedStep, p.cfg.SpeedLimit)
	}

	switch {
	case dec.LaneChange != 0:
		state.Mode = Cruise
	case following && !dec.Evaluated:
		state.Mode = Following
	case state.EvaluateLaneChange:
		state.Mode = EvaluatingLaneChange
	default:
		state.Mode = Cruise
	}
	dec.Mode = state.Mode

	p.logger.Debugw("behavior",
		"mode", state.Mode.String(),
		"lane", state.TargetLane,
		"ref_speed", state.ReferenceSpeed,
		"leads", len(dec.Leads),
		"evaluated", dec.Evaluated,
	)
	return dec
}

func (p *Planner) evaluateLanes(state *State, snap *traffic.Snapshot, dec *Decision) {
	ref := state.ReferenceSpeed
	margin := p.cfg.SafetyGapScale * p.cfg.SpeedLimit / ref

	dec.Evaluated = true
	dec.SafetyMargin = margin
	dec.Left = p.assess(state.TargetLane-1, snap, ref, margin)
	dec.Right = p.assess(state.TargetLane+1, snap, ref, margin)

	left, right := dec.Left, dec.Right
	change := 0
	switch {
	case left.Free && right.Free && ref < math.Min(left.MinSpeed, right.MinSpeed):
		if left.MinSpeed >= right.MinSpeed {
			change = -1
		} else {
			change = 1
		}
	case left.Free && ref < left.MinSpeed:
		change = -1
	case right.Free && ref < right.MinSpeed:
		change = 1
	}
	if change == 0 {
		return
	}

	from := state.TargetLane
	state.TargetLane += change
	state.EvaluateLaneChange = false
	dec.LaneChange = change

	side, assessment := "left", left
	if change > 0 {
		side, assessment = "right", right
	}
	p.logger.Infow("changing lanes",
		"side", side,
		"from", from,
		"to", state.TargetLane,
		"min_gap", assessment.MinGap,
		"min_speed", assessment.MinSpeed,
		"ref_speed", ref,
	)
}

// assess computes the gap and speed picture of lane. Lanes outside the layout are never free.
func (p *Planner) assess(lane int, snap *traffic.Snapshot, ref, margin float64) LaneAssessment {
	a := LaneAssessment{Lane: lane}
	if !p.lanes.Contains(lane) {
		return a
	}
	a.Exists = true
	a.MinGap = p.cfg.EmptyLaneGap
	a.MinSpeed = p.cfg.EmptyLaneSpeed

	for _, v := range snap.InLane(lane) {
		dist := math.Abs(v.Gap)
		trailingSlow := v.Speed+p.cfg.TrailingSpeedSlack <= ref && v.Gap <= -p.cfg.TrailingDistance
		if dist < a.MinGap && !trailingSlow {
			a.MinGap = dist
		}
		if v.Gap > 0 && dist < p.cfg.LaneScanDistance && v.Speed < a.MinSpeed {
			a.MinSpeed = v.Speed
		}
	}
	a.Free = a.MinGap > margin
	return a
}
