// Package trajectory synthesizes the path driven over the next planning horizon. The path keeps
// the unconsumed tail of the previous cycle and extends it along a natural cubic spline through
// anchors in the target lane, sampled so consecutive points are one cycle period apart at the
// reference speed.
package trajectory

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"

	"go.viam.com/highway/frenet"
	"go.viam.com/highway/logging"
	"go.viam.com/highway/traffic"
	"go.viam.com/highway/utils"
)

// minAnchors is the number of usable anchors required for a spline fit.
const minAnchors = 3

// Input is what one cycle of path synthesis needs.
type Input struct {
	// Position and Heading (radians) are the ego pose.
	Position r3.Vector
	Heading  float64
	// S is the arc-length anchors are placed ahead of; the end of the tail when there is one.
	S    float64
	Tail []r3.Vector

	Lane           int
	ReferenceSpeed float64
}

// Trajectory is one emitted path with what it was built from.
type Trajectory struct {
	Points []r3.Vector
	// Retained is how many leading points were copied from the tail.
	Retained int
	// Anchors are the spline anchors in world coordinates that survived filtering.
	Anchors []r3.Vector
	// Origin and Heading define the local frame the spline was fitted in.
	Origin  r3.Vector
	Heading float64
	// Straight is set when too few anchors were usable and the path extends in a straight line.
	Straight bool
}

// Generator builds trajectories over one track.
type Generator struct {
	cfg       Config
	lanes     traffic.Lanes
	transform *frenet.Transform
	logger    logging.Logger
}

// NewGenerator returns a Generator.
func NewGenerator(cfg Config, lanes traffic.Lanes, transform *frenet.Transform, logger logging.Logger) *Generator {
	return &Generator{cfg: cfg, lanes: lanes, transform: transform, logger: logger}
}

// Config returns the path parameters.
func (g *Generator) Config() Config {
	return g.cfg
}

// Generate returns a path of exactly Horizon points.
func (g *Generator) Generate(in Input) Trajectory {
	tail := in.Tail
	if len(tail) > g.cfg.Horizon {
		tail = tail[:g.cfg.Horizon]
	}

	f, history := g.referenceFrame(in.Position, in.Heading, tail)
	anchors := history
	d := g.lanes.Center(in.Lane)
	for i := 1; i <= g.cfg.AnchorCount; i++ {
		anchors = append(anchors, g.transform.ToCartesian(in.S+float64(i)*g.cfg.AnchorSpacing, d))
	}

	traj := Trajectory{
		Points:   make([]r3.Vector, 0, g.cfg.Horizon),
		Retained: len(tail),
		Origin:   f.origin,
		Heading:  f.heading,
	}
	traj.Points = append(traj.Points, tail...)

	c, kept := g.fit(f, anchors)
	traj.Anchors = kept
	if _, ok := c.(straight); ok {
		traj.Straight = true
		g.logger.Debugw("too few usable anchors, extending straight", "anchors", len(kept))
	}

	for _, x := range sampleXs(g.sampleStep(c, in.ReferenceSpeed), g.cfg.Horizon-len(traj.Points)) {
		traj.Points = append(traj.Points, f.toWorld(r3.Vector{X: x, Y: c.Predict(x)}))
	}
	return traj
}

// sampleXs returns the local x of n new points spaced step apart, starting one step ahead.
func sampleXs(step float64, n int) []float64 {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []float64{step}
	}
	return floats.Span(make([]float64, n), step, float64(n)*step)
}

// referenceFrame picks the local frame origin and heading and the two history anchors behind
// it. With fewer than two distinct tail points the anchors are synthesized from the heading.
func (g *Generator) referenceFrame(position r3.Vector, heading float64, tail []r3.Vector) (frame, []r3.Vector) {
	n := len(tail)
	if n >= 2 && tail[n-1] != tail[n-2] {
		last, prev := tail[n-1], tail[n-2]
		f := newFrame(last, math.Atan2(last.Y-prev.Y, last.X-prev.X))
		return f, []r3.Vector{prev, last}
	}

	origin := position
	if n > 0 {
		origin = tail[n-1]
	}
	f := newFrame(origin, heading)
	behind := origin.Sub(r3.Vector{X: math.Cos(heading), Y: math.Sin(heading)})
	return f, []r3.Vector{behind, origin}
}

// fit fits the curve through anchors in the local frame, dropping anchors that are not finite
// or do not advance in local x.
func (g *Generator) fit(f frame, anchors []r3.Vector) (curve, []r3.Vector) {
	xs := make([]float64, 0, len(anchors))
	ys := make([]float64, 0, len(anchors))
	kept := make([]r3.Vector, 0, len(anchors))
	for _, a := range anchors {
		local := f.toLocal(a)
		if !utils.IsFinite(local.X, local.Y) {
			continue
		}
		if len(xs) > 0 && local.X <= xs[len(xs)-1] {
			continue
		}
		xs = append(xs, local.X)
		ys = append(ys, local.Y)
		kept = append(kept, a)
	}
	if len(xs) < minAnchors {
		return straight{}, kept
	}

	var nc interp.NaturalCubic
	if err := nc.Fit(xs, ys); err != nil {
		g.logger.Warnw("spline fit failed", "error", err)
		return straight{}, kept
	}
	return &nc, kept
}

// sampleStep is the local x advance per point: ChordTarget split into as many pieces as it
// takes to drive the chord to the curve at ChordTarget at the reference speed.
func (g *Generator) sampleStep(c curve, ref float64) float64 {
	if ref <= 0 {
		return 0
	}
	target := g.cfg.ChordTarget
	dist := math.Hypot(target, c.Predict(target))
	n := dist / (g.cfg.CyclePeriod * ref / g.cfg.SpeedConversion)
	return target / n
}

type curve interface {
	Predict(x float64) float64
}

// straight is the local x axis.
type straight struct{}

func (straight) Predict(float64) float64 { return 0 }

// frame is a translation by origin followed by a rotation by -heading.
type frame struct {
	origin   r3.Vector
	heading  float64
	cos, sin float64
}

func newFrame(origin r3.Vector, heading float64) frame {
	return frame{origin: origin, heading: heading, cos: math.Cos(heading), sin: math.Sin(heading)}
}

func (f frame) toLocal(p r3.Vector) r3.Vector {
	d := p.Sub(f.origin)
	return r3.Vector{X: d.X*f.cos + d.Y*f.sin, Y: -d.X*f.sin + d.Y*f.cos}
}

func (f frame) toWorld(p r3.Vector) r3.Vector {
	return r3.Vector{
		X: p.X*f.cos - p.Y*f.sin + f.origin.X,
		Y: p.X*f.sin + p.Y*f.cos + f.origin.Y,
	}
}
