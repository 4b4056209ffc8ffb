// Package highwaymap owns the static, cyclic waypoint table of a highway track and answers
// nearest and next waypoint queries over it.
package highwaymap

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/highway/utils"
)

// DefaultMaxS is the track length of the standard highway loop, in meters.
const DefaultMaxS = 6945.554

// DefaultReference is the point used to sign lateral offsets on the standard highway loop. It lies
// inside the loop, so offsets towards the outside of the loop are positive.
var DefaultReference = r3.Vector{X: 1000, Y: 2000}

// ErrTooFewWaypoints is returned when a table cannot form a single segment.
var ErrTooFewWaypoints = errors.New("waypoint table needs at least two waypoints")

// normalTolerance is how far a waypoint normal's length may stray from 1.
const normalTolerance = 1e-2

// nextWaypointAngle is the heading deviation past which the closest waypoint is treated as behind.
const nextWaypointAngle = math.Pi / 4

// Waypoint is a single row of the waypoint table.
type Waypoint struct {
	Index    int
	Position r3.Vector
	S        float64
	// Normal is the unit lateral normal (dx, dy), pointing towards increasing d.
	Normal r3.Vector
}

// Map is a cyclic waypoint table. It is immutable once built.
type Map struct {
	waypoints []Waypoint
	// order lists waypoint indices by increasing s, starting after the wrap boundary.
	order     []int
	maxS      float64
	reference r3.Vector
}

// NewMap validates waypoints and builds a Map. A non-positive maxS is replaced by the table's
// last arc-length plus the closing segment back to the first waypoint.
func NewMap(waypoints []Waypoint, maxS float64, reference r3.Vector) (*Map, error) {
	if len(waypoints) < 2 {
		return nil, ErrTooFewWaypoints
	}

	wps := make([]Waypoint, len(waypoints))
	copy(wps, waypoints)

	var err error
	wrapAt := 0
	maxTableS := math.Inf(-1)
	for i := range wps {
		wp := &wps[i]
		wp.Index = i
		if !utils.IsFinite(wp.Position.X, wp.Position.Y, wp.S, wp.Normal.X, wp.Normal.Y) {
			err = multierr.Append(err, errors.Errorf("waypoint %d has a non-finite field", i))
			continue
		}
		if deviation := math.Abs(wp.Normal.Norm() - 1); deviation > normalTolerance {
			err = multierr.Append(err, errors.Errorf("waypoint %d: normal (%v, %v) is not a unit vector", i, wp.Normal.X, wp.Normal.Y))
		}
		maxTableS = math.Max(maxTableS, wp.S)
		if i > 0 && wp.S < wps[i-1].S {
			if wrapAt != 0 {
				err = multierr.Append(err, errors.Errorf("waypoint %d: arc-length decreases more than once", i))
				continue
			}
			wrapAt = i
		}
	}
	if err != nil {
		return nil, err
	}
	if wrapAt != 0 && wps[len(wps)-1].S > wps[0].S {
		return nil, errors.Errorf("waypoint %d: arc-length wraps but does not stay below the start", wrapAt)
	}

	if maxS <= 0 {
		maxS = maxTableS + wps[len(wps)-1].Position.Sub(wps[0].Position).Norm()
	}
	if maxS <= maxTableS {
		return nil, errors.Errorf("max_s %.3f must exceed the largest tabulated arc-length %.3f", maxS, maxTableS)
	}

	order := make([]int, len(wps))
	for i := range order {
		order[i] = (wrapAt + i) % len(wps)
	}

	return &Map{
		waypoints: wps,
		order:     order,
		maxS:      maxS,
		reference: reference,
	}, nil
}

// Len returns the number of waypoints.
func (m *Map) Len() int {
	return len(m.waypoints)
}

// MaxS returns the arc-length at which the track wraps back to zero.
func (m *Map) MaxS() float64 {
	return m.maxS
}

// Reference returns the fixed point used to sign lateral offsets.
func (m *Map) Reference() r3.Vector {
	return m.reference
}

// Waypoint returns the waypoint at index i, wrapping i into the table.
func (m *Map) Waypoint(i int) Waypoint {
	return m.waypoints[m.wrapIndex(i)]
}

// Waypoints returns a copy of the table.
func (m *Map) Waypoints() []Waypoint {
	out := make([]Waypoint, len(m.waypoints))
	copy(out, m.waypoints)
	return out
}

// Prev returns the index before i, wrapping to the last waypoint.
func (m *Map) Prev(i int) int {
	return m.wrapIndex(i - 1)
}

// Next returns the index after i, wrapping to 0 at the end of the table.
func (m *Map) Next(i int) int {
	return m.wrapIndex(i + 1)
}

func (m *Map) wrapIndex(i int) int {
	n := len(m.waypoints)
	return ((i % n) + n) % n
}

// ClosestWaypoint returns the index of the waypoint nearest to p.
func (m *Map) ClosestWaypoint(p r3.Vector) int {
	closestLen := math.Inf(1)
	closest := 0
	for i, wp := range m.waypoints {
		dist := utils.Square(p.X-wp.Position.X) + utils.Square(p.Y-wp.Position.Y)
		if dist < closestLen {
			closestLen = dist
			closest = i
		}
	}
	return closest
}

// NextWaypoint returns the first waypoint ahead of p when travelling along heading (radians).
// The closest waypoint is used unless the bearing to it deviates from heading by more than 45
// degrees, in which case it is behind and the following waypoint is returned.
func (m *Map) NextWaypoint(p r3.Vector, heading float64) int {
	closest := m.ClosestWaypoint(p)
	wp := m.waypoints[closest].Position

	bearing := math.Atan2(wp.Y-p.Y, wp.X-p.X)
	if utils.AngleDiffRad(heading, bearing) > nextWaypointAngle {
		return m.Next(closest)
	}
	return closest
}

// SegmentAt locates the segment whose arc-length bracket contains s. s is first wrapped into
// [0, MaxS). It returns the segment's start and end waypoint indices and the arc-length
// remaining from the start waypoint.
func (m *Map) SegmentAt(s float64) (prev, next int, residual float64) {
	s = utils.WrapLength(s, m.maxS)

	// Largest position in order whose s is <= the query.
	j := sort.Search(len(m.order), func(k int) bool {
		return m.waypoints[m.order[k]].S > s
	}) - 1
	if j < 0 {
		// Below the smallest tabulated s: the closing segment from the last waypoint.
		j = len(m.order) - 1
	}

	prev = m.order[j]
	next = m.Next(prev)
	residual = utils.WrapLength(s-m.waypoints[prev].S, m.maxS)
	return prev, next, residual
}

// Circuit builds a counter-clockwise circular track of count waypoints around center. Normals
// point outward, so positive offsets are to the right of travel, and arc-lengths are chord sums.
func Circuit(center r3.Vector, radius float64, count int) (*Map, error) {
	if radius <= 0 {
		return nil, errors.Errorf("circuit radius must be positive, got %v", radius)
	}
	if count < 3 {
		return nil, errors.Errorf("circuit needs at least three waypoints, got %d", count)
	}

	chord := 2 * radius * math.Sin(math.Pi/float64(count))
	wps := make([]Waypoint, count)
	for i := range wps {
		theta := 2 * math.Pi * float64(i) / float64(count)
		normal := r3.Vector{X: math.Cos(theta), Y: math.Sin(theta)}
		wps[i] = Waypoint{
			Index:    i,
			Position: center.Add(normal.Mul(radius)),
			S:        float64(i) * chord,
			Normal:   normal,
		}
	}
	return NewMap(wps, float64(count)*chord, center)
}
