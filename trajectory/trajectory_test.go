package trajectory

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.viam.com/test"

	"go.viam.com/highway/frenet"
	"go.viam.com/highway/highwaymap"
	"go.viam.com/highway/logging"
	"go.viam.com/highway/traffic"
)

func rotate(p r3.Vector, theta float64) r3.Vector {
	c, s := math.Cos(theta), math.Sin(theta)
	return r3.Vector{X: p.X*c - p.Y*s, Y: p.X*s + p.Y*c}
}

// straightTrack is 40 waypoints 30 apart from the origin along heading theta.
func straightTrack(t *testing.T, theta float64) *frenet.Transform {
	t.Helper()
	wps := make([]highwaymap.Waypoint, 40)
	for i := range wps {
		wps[i] = highwaymap.Waypoint{
			Position: rotate(r3.Vector{X: float64(i) * 30}, theta),
			S:        float64(i) * 30,
			Normal:   rotate(r3.Vector{Y: -1}, theta),
		}
	}
	m, err := highwaymap.NewMap(wps, 0, rotate(highwaymap.DefaultReference, theta))
	test.That(t, err, test.ShouldBeNil)
	return frenet.New(m)
}

func newGenerator(t *testing.T, tf *frenet.Transform) *Generator {
	t.Helper()
	return NewGenerator(DefaultConfig(), traffic.DefaultLanes(), tf, logging.NewTestLogger(t))
}

// laneTail is n points spaced apart along lane 1 of the straight track, starting after x0.
func laneTail(x0, spacing float64, n int) []r3.Vector {
	tail := make([]r3.Vector, n)
	for i := range tail {
		tail[i] = r3.Vector{X: x0 + float64(i+1)*spacing, Y: -6}
	}
	return tail
}

func TestDefaultConfigValidates(t *testing.T) {
	test.That(t, DefaultConfig().Validate("trajectory"), test.ShouldBeNil)

	cfg := DefaultConfig()
	cfg.Horizon = 0
	cfg.SpeedConversion = -1
	err := cfg.Validate("trajectory")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "trajectory.horizon")
	test.That(t, err.Error(), test.ShouldContainSubstring, "trajectory.speed_conversion")
}

func TestPathAlwaysFillsHorizon(t *testing.T) {
	g := newGenerator(t, straightTrack(t, 0))
	for n := 0; n <= 60; n++ {
		tail := laneTail(100, 0.4, n)
		s := 100.0
		if n > 0 {
			s = tail[n-1].X
		}
		traj := g.Generate(Input{
			Position:       r3.Vector{X: 100, Y: -6},
			S:              s,
			Tail:           tail,
			Lane:           1,
			ReferenceSpeed: 30,
		})
		test.That(t, len(traj.Points), test.ShouldEqual, 50)
		test.That(t, traj.Retained, test.ShouldEqual, min(n, 50))
	}
}

func TestSampleXs(t *testing.T) {
	test.That(t, sampleXs(0.5, 0), test.ShouldBeEmpty)
	test.That(t, sampleXs(0.5, 1), test.ShouldResemble, []float64{0.5})
	test.That(t, cmp.Diff([]float64{0.5, 1, 1.5, 2}, sampleXs(0.5, 4), cmpopts.EquateApprox(0, 1e-12)), test.ShouldBeEmpty)
	test.That(t, sampleXs(0, 3), test.ShouldResemble, []float64{0, 0, 0})
}

func TestStraightLaneKeeping(t *testing.T) {
	g := newGenerator(t, straightTrack(t, 0))
	traj := g.Generate(Input{
		Position:       r3.Vector{X: 100, Y: -6},
		S:              100,
		Lane:           1,
		ReferenceSpeed: 20,
	})

	test.That(t, traj.Straight, test.ShouldBeFalse)
	test.That(t, traj.Retained, test.ShouldEqual, 0)
	test.That(t, len(traj.Anchors), test.ShouldEqual, 5)

	step := 0.02 * 20 / 2.24
	for i, p := range traj.Points {
		test.That(t, p.Y, test.ShouldAlmostEqual, -6, 1e-9)
		test.That(t, p.X, test.ShouldAlmostEqual, 100+float64(i+1)*step, 1e-9)
	}
}

func TestAtRestStaysPut(t *testing.T) {
	g := newGenerator(t, straightTrack(t, 0))
	traj := g.Generate(Input{
		Position: r3.Vector{X: 100, Y: -6},
		S:        100,
		Lane:     1,
	})
	test.That(t, len(traj.Points), test.ShouldEqual, 50)
	for _, p := range traj.Points {
		test.That(t, p.Sub(r3.Vector{X: 100, Y: -6}).Norm(), test.ShouldAlmostEqual, 0, 1e-9)
	}
}

func TestContinuousWithTail(t *testing.T) {
	g := newGenerator(t, straightTrack(t, 0))
	tail := laneTail(100, 0.4, 10)
	traj := g.Generate(Input{
		Position:       r3.Vector{X: 100, Y: -6},
		S:              104,
		Tail:           tail,
		Lane:           1,
		ReferenceSpeed: 20,
	})

	test.That(t, traj.Points[:10], test.ShouldResemble, tail)
	test.That(t, traj.Origin, test.ShouldResemble, tail[9])
	test.That(t, traj.Heading, test.ShouldAlmostEqual, 0)

	step := 0.02 * 20 / 2.24
	test.That(t, traj.Points[10].Sub(tail[9]).Norm(), test.ShouldAlmostEqual, step, 1e-9)
	for i := 11; i < len(traj.Points); i++ {
		test.That(t, traj.Points[i].X, test.ShouldBeGreaterThan, traj.Points[i-1].X)
	}
}

func TestCoincidentTailUsesHeading(t *testing.T) {
	g := newGenerator(t, straightTrack(t, 0))
	tail := []r3.Vector{{X: 104, Y: -6}, {X: 104, Y: -6}}
	traj := g.Generate(Input{
		Position:       r3.Vector{X: 100, Y: -6},
		Heading:        0,
		S:              104,
		Tail:           tail,
		Lane:           1,
		ReferenceSpeed: 20,
	})

	test.That(t, traj.Origin, test.ShouldResemble, tail[1])
	test.That(t, traj.Anchors[0].X, test.ShouldAlmostEqual, 103)
	test.That(t, traj.Straight, test.ShouldBeFalse)
	test.That(t, traj.Points[2].X, test.ShouldBeGreaterThan, 104.0)
}

func TestLaneChangeMovesTowardsTargetLane(t *testing.T) {
	g := newGenerator(t, straightTrack(t, 0))
	traj := g.Generate(Input{
		Position:       r3.Vector{X: 100, Y: -6},
		S:              100,
		Lane:           2,
		ReferenceSpeed: 40,
	})

	last := traj.Points[len(traj.Points)-1]
	test.That(t, last.Y, test.ShouldBeLessThan, -6.0)
	test.That(t, last.Y, test.ShouldBeGreaterThan, -10.0)
	for i := 1; i < len(traj.Points); i++ {
		test.That(t, traj.Points[i].X, test.ShouldBeGreaterThan, traj.Points[i-1].X)
		test.That(t, traj.Points[i].Y, test.ShouldBeLessThanOrEqualTo, traj.Points[i-1].Y+1e-9)
	}
}

func TestRotatedTrackRotatesPath(t *testing.T) {
	theta := math.Pi / 6
	in := Input{
		Position:       r3.Vector{X: 100, Y: -6},
		S:              100,
		Lane:           2,
		ReferenceSpeed: 35,
	}
	flat := newGenerator(t, straightTrack(t, 0)).Generate(in)

	in.Position = rotate(in.Position, theta)
	in.Heading = theta
	turned := newGenerator(t, straightTrack(t, theta)).Generate(in)

	want := make([]r3.Vector, len(flat.Points))
	for i, p := range flat.Points {
		want[i] = rotate(p, theta)
	}
	test.That(t, cmp.Diff(want, turned.Points, cmpopts.EquateApprox(0, 1e-6)), test.ShouldBeEmpty)
}

func TestWrapsAroundTrackEnd(t *testing.T) {
	m, err := highwaymap.Circuit(highwaymap.DefaultReference, 1000, 200)
	test.That(t, err, test.ShouldBeNil)
	tf := frenet.New(m)
	g := newGenerator(t, tf)

	s := m.MaxS() - 20
	traj := g.Generate(Input{
		Position:       tf.ToCartesian(s, 6),
		Heading:        tf.TrackHeading(s),
		S:              s,
		Lane:           1,
		ReferenceSpeed: 49.5,
	})

	test.That(t, traj.Straight, test.ShouldBeFalse)
	test.That(t, len(traj.Points), test.ShouldEqual, 50)

	spacing := 0.02 * 49.5 / 2.24
	prev := traj.Origin
	for _, p := range traj.Points {
		test.That(t, p.Sub(m.Reference()).Norm(), test.ShouldAlmostEqual, 1006, 0.5)
		test.That(t, p.Sub(prev).Norm(), test.ShouldAlmostEqual, spacing, 0.05)
		prev = p
	}
}

func TestTooFewAnchorsExtendsStraight(t *testing.T) {
	g := newGenerator(t, straightTrack(t, 0))

	// heading backwards puts every track anchor behind the local origin
	traj := g.Generate(Input{
		Position:       r3.Vector{X: 100, Y: -6},
		Heading:        math.Pi,
		S:              100,
		Lane:           1,
		ReferenceSpeed: 20,
	})
	test.That(t, traj.Straight, test.ShouldBeTrue)
	test.That(t, len(traj.Points), test.ShouldEqual, 50)
	for i, p := range traj.Points {
		test.That(t, p.Y, test.ShouldAlmostEqual, -6, 1e-9)
		test.That(t, p.X, test.ShouldBeLessThan, 100.0)
		if i > 0 {
			test.That(t, p.X, test.ShouldBeLessThan, traj.Points[i-1].X)
		}
	}
}

func TestFirstPointsFollowHeadingFromRest(t *testing.T) {
	m, err := highwaymap.Circuit(highwaymap.DefaultReference, 1000, 200)
	test.That(t, err, test.ShouldBeNil)
	tf := frenet.New(m)
	g := newGenerator(t, tf)

	ego := tf.ToCartesian(500, 6)
	heading := tf.TrackHeading(500)
	traj := g.Generate(Input{
		Position:       ego,
		Heading:        heading,
		S:              500,
		Lane:           1,
		ReferenceSpeed: 0.224,
	})

	first := traj.Points[0].Sub(ego)
	second := traj.Points[1].Sub(traj.Points[0])
	dir := r3.Vector{X: math.Cos(heading), Y: math.Sin(heading)}
	test.That(t, first.Angle(dir).Radians(), test.ShouldBeLessThan, 0.02)
	test.That(t, second.Angle(first).Radians(), test.ShouldBeLessThan, 1e-3)
}
