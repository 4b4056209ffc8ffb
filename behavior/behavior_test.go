package behavior

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/highway/logging"
	"go.viam.com/highway/traffic"
)

const egoS = 100.0

func newTestPlanner(t *testing.T) *Planner {
	t.Helper()
	return NewPlanner(DefaultConfig(), traffic.DefaultLanes(), logging.NewTestLogger(t))
}

// car places a vehicle in lane at gap meters from the ego, driving at speed along +x.
func car(id, lane int, gap, speed float64) traffic.TrackedVehicle {
	return traffic.TrackedVehicle{
		ID:       id,
		Velocity: r3.Vector{X: speed},
		S:        egoS + gap,
		D:        traffic.DefaultLanes().Center(lane),
	}
}

func snapshot(vehicles ...traffic.TrackedVehicle) *traffic.Snapshot {
	return traffic.NewModel(traffic.DefaultLanes(), 0.02, 6945.554).Snapshot(egoS, 0, vehicles)
}

func TestDefaultConfigValidates(t *testing.T) {
	test.That(t, DefaultConfig().Validate("behavior"), test.ShouldBeNil)

	cfg := DefaultConfig()
	cfg.SpeedLimit = 0
	cfg.CloseGap = 40
	err := cfg.Validate("behavior")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "behavior.speed_limit")
	test.That(t, err.Error(), test.ShouldContainSubstring, "behavior.close_gap")
}

func TestSpeedUpConverges(t *testing.T) {
	p := newTestPlanner(t)
	limit := p.Config().SpeedLimit
	for _, start := range []float64{0.1, 10, 49.4, limit} {
		state := State{TargetLane: 1, ReferenceSpeed: start}
		for i := 0; i < 1000; i++ {
			dec := p.Decide(&state, snapshot())
			test.That(t, state.ReferenceSpeed, test.ShouldBeLessThanOrEqualTo, limit)
			test.That(t, dec.Mode, test.ShouldEqual, Cruise)
		}
		test.That(t, state.ReferenceSpeed, test.ShouldEqual, limit)
		test.That(t, state.TargetLane, test.ShouldEqual, 1)
	}
}

func TestCloseLeadSlowsDownAndSetsFlag(t *testing.T) {
	p := newTestPlanner(t)
	state := State{TargetLane: 1, ReferenceSpeed: 40}

	// adjacent lanes are blocked right next to the ego
	dec := p.Decide(&state, snapshot(
		car(0, 1, 8, 10),
		car(1, 0, 0, 40),
		car(2, 2, 2, 40),
	))

	test.That(t, state.ReferenceSpeed, test.ShouldBeLessThan, 40)
	test.That(t, state.ReferenceSpeed, test.ShouldAlmostEqual, 40-0.224)
	test.That(t, state.EvaluateLaneChange, test.ShouldBeTrue)
	test.That(t, state.TargetLane, test.ShouldEqual, 1)
	test.That(t, dec.Rules, test.ShouldResemble, []string{"close"})
	test.That(t, len(dec.Leads), test.ShouldEqual, 1)
	test.That(t, dec.Evaluated, test.ShouldBeTrue)
	test.That(t, dec.Left.Free, test.ShouldBeFalse)
	test.That(t, dec.Right.Free, test.ShouldBeFalse)
	test.That(t, dec.Mode, test.ShouldEqual, EvaluatingLaneChange)

	// the lead drives away, the flag stays set until a lane change commits
	dec = p.Decide(&state, snapshot(car(1, 0, 0, 40), car(2, 2, 2, 40)))
	test.That(t, state.EvaluateLaneChange, test.ShouldBeTrue)
	test.That(t, dec.Mode, test.ShouldEqual, EvaluatingLaneChange)
	test.That(t, state.ReferenceSpeed, test.ShouldAlmostEqual, 40)
}

func TestLeadOutsideFollowDistanceIgnored(t *testing.T) {
	p := newTestPlanner(t)
	state := State{TargetLane: 1, ReferenceSpeed: 20}
	dec := p.Decide(&state, snapshot(car(0, 1, 30, 5), car(1, 1, -5, 5)))
	test.That(t, dec.Leads, test.ShouldBeEmpty)
	test.That(t, state.EvaluateLaneChange, test.ShouldBeFalse)
	test.That(t, state.ReferenceSpeed, test.ShouldAlmostEqual, 20.224)
}

func TestBothLanesFreeLeftFaster(t *testing.T) {
	p := newTestPlanner(t)
	state := State{TargetLane: 1, ReferenceSpeed: 30, EvaluateLaneChange: true}

	// margin is 30 * 49.5 / 30 = 49.5
	dec := p.Decide(&state, snapshot(car(0, 0, 55, 45), car(1, 2, 55, 40)))

	test.That(t, dec.SafetyMargin, test.ShouldAlmostEqual, 49.5)
	test.That(t, dec.Left.Free, test.ShouldBeTrue)
	test.That(t, dec.Left.MinSpeed, test.ShouldAlmostEqual, 45)
	test.That(t, dec.Right.Free, test.ShouldBeTrue)
	test.That(t, dec.Right.MinSpeed, test.ShouldAlmostEqual, 40)
	test.That(t, state.TargetLane, test.ShouldEqual, 0)
	test.That(t, state.EvaluateLaneChange, test.ShouldBeFalse)
	test.That(t, dec.LaneChange, test.ShouldEqual, -1)
	test.That(t, dec.Mode, test.ShouldEqual, Cruise)
}

func TestBothLanesFreeRightFaster(t *testing.T) {
	p := newTestPlanner(t)
	state := State{TargetLane: 1, ReferenceSpeed: 30, EvaluateLaneChange: true}
	p.Decide(&state, snapshot(car(0, 0, 55, 40), car(1, 2, 55, 45)))
	test.That(t, state.TargetLane, test.ShouldEqual, 2)
	test.That(t, state.EvaluateLaneChange, test.ShouldBeFalse)
}

func TestEqualSpeedsPreferLeft(t *testing.T) {
	p := newTestPlanner(t)
	state := State{TargetLane: 1, ReferenceSpeed: 30, EvaluateLaneChange: true}
	p.Decide(&state, snapshot())
	test.That(t, state.TargetLane, test.ShouldEqual, 0)
}

func TestOnlyOneLaneFree(t *testing.T) {
	p := newTestPlanner(t)

	state := State{TargetLane: 1, ReferenceSpeed: 30, EvaluateLaneChange: true}
	dec := p.Decide(&state, snapshot(car(0, 0, 0, 30), car(1, 2, 55, 40)))
	test.That(t, dec.Left.Free, test.ShouldBeFalse)
	test.That(t, state.TargetLane, test.ShouldEqual, 2)

	// the free lane is slower than the reference speed
	state = State{TargetLane: 1, ReferenceSpeed: 30, EvaluateLaneChange: true}
	dec = p.Decide(&state, snapshot(car(0, 0, 0, 30), car(1, 2, 55, 25)))
	test.That(t, dec.Right.Free, test.ShouldBeTrue)
	test.That(t, state.TargetLane, test.ShouldEqual, 1)
	test.That(t, state.EvaluateLaneChange, test.ShouldBeTrue)
	test.That(t, dec.Mode, test.ShouldEqual, EvaluatingLaneChange)
}

func TestBothFreeButOnlyLeftFaster(t *testing.T) {
	p := newTestPlanner(t)
	state := State{TargetLane: 1, ReferenceSpeed: 30, EvaluateLaneChange: true}
	p.Decide(&state, snapshot(car(0, 0, 55, 45), car(1, 2, 55, 25)))
	test.That(t, state.TargetLane, test.ShouldEqual, 0)
}

func TestEdgeLanesStayInRange(t *testing.T) {
	p := newTestPlanner(t)

	state := State{TargetLane: 0, ReferenceSpeed: 30, EvaluateLaneChange: true}
	dec := p.Decide(&state, snapshot())
	test.That(t, dec.Left.Exists, test.ShouldBeFalse)
	test.That(t, dec.Left.Free, test.ShouldBeFalse)
	test.That(t, state.TargetLane, test.ShouldEqual, 1)

	state = State{TargetLane: 2, ReferenceSpeed: 30, EvaluateLaneChange: true}
	dec = p.Decide(&state, snapshot())
	test.That(t, dec.Right.Exists, test.ShouldBeFalse)
	test.That(t, state.TargetLane, test.ShouldEqual, 1)

	// an out of range lane is pulled back into the layout
	state = State{TargetLane: 7, ReferenceSpeed: 30}
	p.Decide(&state, snapshot())
	test.That(t, state.TargetLane, test.ShouldEqual, 2)
}

func TestLaneChangesAlwaysInRange(t *testing.T) {
	p := newTestPlanner(t)
	lanes := traffic.DefaultLanes()
	state := State{TargetLane: 1, ReferenceSpeed: 25}
	for i := 0; i < 200; i++ {
		// a slow lead in whatever lane the ego is in keeps lane changes coming
		p.Decide(&state, snapshot(car(i, state.TargetLane, 15, 10)))
		test.That(t, lanes.Contains(state.TargetLane), test.ShouldBeTrue)
		test.That(t, state.ReferenceSpeed, test.ShouldBeGreaterThanOrEqualTo, 0)
		test.That(t, state.ReferenceSpeed, test.ShouldBeLessThanOrEqualTo, p.Config().SpeedLimit)
	}
}

func TestTrailingSlowVehicleIgnored(t *testing.T) {
	p := newTestPlanner(t)
	state := State{TargetLane: 1, ReferenceSpeed: 30, EvaluateLaneChange: true}

	dec := p.Decide(&state, snapshot(car(0, 0, -20, 10), car(1, 2, -20, 40)))
	test.That(t, dec.Left.MinGap, test.ShouldAlmostEqual, 100)
	test.That(t, dec.Right.MinGap, test.ShouldAlmostEqual, 20)
	test.That(t, dec.Right.Free, test.ShouldBeFalse)
	test.That(t, state.TargetLane, test.ShouldEqual, 0)
}

func TestEvaluationSkippedBelowFloorSpeed(t *testing.T) {
	p := newTestPlanner(t)
	state := State{TargetLane: 1, ReferenceSpeed: 0.5, EvaluateLaneChange: true}
	dec := p.Decide(&state, snapshot())
	test.That(t, dec.Evaluated, test.ShouldBeFalse)
	test.That(t, state.TargetLane, test.ShouldEqual, 1)
	test.That(t, state.EvaluateLaneChange, test.ShouldBeTrue)
	test.That(t, state.ReferenceSpeed, test.ShouldAlmostEqual, 0.724)
	test.That(t, dec.Mode, test.ShouldEqual, EvaluatingLaneChange)
}

func TestFollowingWithoutEvaluation(t *testing.T) {
	p := newTestPlanner(t)
	state := State{TargetLane: 1, ReferenceSpeed: 0.2}
	dec := p.Decide(&state, snapshot(car(0, 1, 5, 0)))
	test.That(t, dec.Mode, test.ShouldEqual, Following)
	test.That(t, state.ReferenceSpeed, test.ShouldEqual, 0.0)
}

func TestCommitIsLogged(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	p := NewPlanner(DefaultConfig(), traffic.DefaultLanes(), logger)
	state := State{TargetLane: 1, ReferenceSpeed: 30, EvaluateLaneChange: true}
	p.Decide(&state, snapshot())

	commits := logs.FilterMessage("changing lanes").All()
	test.That(t, len(commits), test.ShouldEqual, 1)
	test.That(t, commits[0].ContextMap()["side"], test.ShouldEqual, "left")
}

func TestModeString(t *testing.T) {
	test.That(t, Cruise.String(), test.ShouldEqual, "CRUISE")
	test.That(t, Following.String(), test.ShouldEqual, "FOLLOWING")
	test.That(t, EvaluatingLaneChange.String(), test.ShouldEqual, "EVALUATING_LANE_CHANGE")
	test.That(t, Mode(9).String(), test.ShouldEqual, "UNKNOWN")
	test.That(t, NewState(1), test.ShouldResemble, State{TargetLane: 1})
}
