// Package traffic builds the per-cycle view of nearby vehicles from raw sensor records: each
// vehicle is bucketed into a lane and its arc-length is projected forward to when the
// unconsumed part of the previous path has been driven.
package traffic

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"go.viam.com/highway/utils"
)

// NoLane is the lane of a vehicle whose offset is outside every lane.
const NoLane = -1

// Lanes describes the lane layout of one side of the highway. Lane i occupies lateral offsets
// [Width*i, Width*(i+1)).
type Lanes struct {
	Count int     `json:"count"`
	Width float64 `json:"width"`
}

// DefaultLanes returns the three lane, four meter layout of the standard highway.
func DefaultLanes() Lanes {
	return Lanes{Count: 3, Width: 4}
}

// Validate ensures the layout is usable.
func (l Lanes) Validate(path string) error {
	var err error
	if l.Count < 1 {
		err = multierr.Append(err, errors.Errorf("%s: lane count must be at least 1, got %d", path, l.Count))
	}
	if l.Width <= 0 {
		err = multierr.Append(err, errors.Errorf("%s: lane width must be positive, got %v", path, l.Width))
	}
	return err
}

// Of returns the lane containing lateral offset d, or NoLane.
func (l Lanes) Of(d float64) int {
	if math.IsNaN(d) || d < 0 {
		return NoLane
	}
	lane := int(math.Floor(d / l.Width))
	if lane >= l.Count {
		return NoLane
	}
	return lane
}

// Center returns the lateral offset of the middle of lane.
func (l Lanes) Center(lane int) float64 {
	return l.Width * (float64(lane) + 0.5)
}

// Contains reports whether lane is a valid index.
func (l Lanes) Contains(lane int) bool {
	return lane >= 0 && lane < l.Count
}

// TrackedVehicle is one raw sensor record.
type TrackedVehicle struct {
	ID       int       `json:"id"`
	Position r3.Vector `json:"position"`
	Velocity r3.Vector `json:"velocity"`
	S        float64   `json:"s"`
	D        float64   `json:"d"`
}

// Speed is the magnitude of the velocity.
func (v TrackedVehicle) Speed() float64 {
	return math.Hypot(v.Velocity.X, v.Velocity.Y)
}

// Vehicle is a tracked vehicle as the planner sees it in one cycle.
type Vehicle struct {
	TrackedVehicle
	Speed float64
	Lane  int
	// ProjectedS is S advanced by the time it takes to drive the unconsumed path.
	ProjectedS float64
	// Gap is ProjectedS minus the ego arc-length, taking the shorter way around the track.
	Gap float64
}

// Snapshot is the traffic picture for one planning cycle.
type Snapshot struct {
	EgoS     float64
	Vehicles []Vehicle
	// Dropped counts records ignored for having non-finite fields.
	Dropped int

	byLane map[int][]Vehicle
}

// InLane returns the vehicles bucketed to lane, in record order.
func (s *Snapshot) InLane(lane int) []Vehicle {
	return s.byLane[lane]
}

// Model turns raw records into snapshots.
type Model struct {
	lanes  Lanes
	period float64
	maxS   float64
}

// NewModel returns a Model for the given lane layout, cycle period and track length.
func NewModel(lanes Lanes, period, maxS float64) *Model {
	return &Model{lanes: lanes, period: period, maxS: maxS}
}

// Lanes returns the lane layout.
func (m *Model) Lanes() Lanes {
	return m.lanes
}

// Snapshot builds the traffic picture relative to ego arc-length egoS, projecting every vehicle
// forward by unconsumed cycle periods.
func (m *Model) Snapshot(egoS float64, unconsumed int, records []TrackedVehicle) *Snapshot {
	snap := &Snapshot{EgoS: egoS}
	horizon := float64(unconsumed) * m.period

	for _, rec := range records {
		if !utils.IsFinite(rec.S, rec.D, rec.Velocity.X, rec.Velocity.Y) {
			snap.Dropped++
			continue
		}
		speed := rec.Speed()
		projected := utils.WrapLength(rec.S+horizon*speed, m.maxS)
		snap.Vehicles = append(snap.Vehicles, Vehicle{
			TrackedVehicle: rec,
			Speed:          speed,
			Lane:           m.lanes.Of(rec.D),
			ProjectedS:     projected,
			Gap:            utils.WrapDelta(projected, egoS, m.maxS),
		})
	}

	snap.byLane = lo.GroupBy(snap.Vehicles, func(v Vehicle) int {
		return v.Lane
	})
	delete(snap.byLane, NoLane)
	return snap
}
