// Package frenet converts between world (Cartesian) coordinates and track-relative Frenet
// coordinates: s, the arc-length along the track centerline, and d, the signed lateral offset
// from it. Positive d lies on the side of the track away from the map's reference point.
package frenet

import (
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/highway/highwaymap"
	"go.viam.com/highway/utils"
)

// Transform converts coordinates over a single waypoint map.
type Transform struct {
	m *highwaymap.Map
}

// New returns a Transform over m.
func New(m *highwaymap.Map) *Transform {
	return &Transform{m: m}
}

// Map returns the underlying waypoint map.
func (t *Transform) Map() *highwaymap.Map {
	return t.m
}

// ToFrenet converts the world point p, travelling along heading (radians), into (s, d).
func (t *Transform) ToFrenet(p r3.Vector, heading float64) (s, d float64) {
	next := t.m.NextWaypoint(p, heading)
	prev := t.m.Prev(next)
	origin := t.m.Waypoint(prev).Position

	segment := t.m.Waypoint(next).Position.Sub(origin)
	x := p.Sub(origin)

	var proj r3.Vector
	if norm2 := segment.Norm2(); norm2 > 0 {
		proj = segment.Mul(x.Dot(segment) / norm2)
	}

	d = x.Sub(proj).Norm()

	// Sign d by whether the point is farther from the reference point than its projection.
	center := t.m.Reference().Sub(origin)
	if center.Sub(x).Norm() <= center.Sub(proj).Norm() {
		d = -d
	}

	s = t.m.Waypoint(prev).S + proj.Norm()
	return utils.WrapLength(s, t.m.MaxS()), d
}

// ToCartesian converts (s, d) into a world point. s is wrapped at the map's max_s.
func (t *Transform) ToCartesian(s, d float64) r3.Vector {
	prev, next, residual := t.m.SegmentAt(s)
	heading := t.segmentHeading(prev, next)

	seg := t.m.Waypoint(prev).Position.Add(r3.Vector{X: math.Cos(heading), Y: math.Sin(heading)}.Mul(residual))

	perp := heading - math.Pi/2
	return seg.Add(r3.Vector{X: math.Cos(perp), Y: math.Sin(perp)}.Mul(d))
}

// TrackHeading returns the heading, in radians, of the segment containing s.
func (t *Transform) TrackHeading(s float64) float64 {
	prev, next, _ := t.m.SegmentAt(s)
	return t.segmentHeading(prev, next)
}

func (t *Transform) segmentHeading(prev, next int) float64 {
	a := t.m.Waypoint(prev).Position
	b := t.m.Waypoint(next).Position
	return math.Atan2(b.Y-a.Y, b.X-a.X)
}
