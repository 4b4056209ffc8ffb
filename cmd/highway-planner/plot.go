package main

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"go.viam.com/highway/highwaymap"
)

const plotSize = 8 * vg.Inch

// plotDrive renders the waypoints of m and the driven trace to path. The image format follows the
// file extension.
func plotDrive(path string, m *highwaymap.Map, trace []r3.Vector) error {
	p := plot.New()
	p.Title.Text = "Highway drive"
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"
	p.Add(plotter.NewGrid())

	waypoints := make(plotter.XYs, 0, m.Len()+1)
	for _, wp := range m.Waypoints() {
		waypoints = append(waypoints, plotter.XY{X: wp.Position.X, Y: wp.Position.Y})
	}
	if len(waypoints) > 0 {
		waypoints = append(waypoints, waypoints[0])
	}
	track, err := plotter.NewLine(waypoints)
	if err != nil {
		return errors.Wrap(err, "cannot plot waypoints")
	}
	track.Color = plotutil.Color(0)
	track.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(track)
	p.Legend.Add("waypoints", track)

	if len(trace) > 1 {
		driven := make(plotter.XYs, len(trace))
		for i, pt := range trace {
			driven[i] = plotter.XY{X: pt.X, Y: pt.Y}
		}
		line, err := plotter.NewLine(driven)
		if err != nil {
			return errors.Wrap(err, "cannot plot trace")
		}
		line.Color = plotutil.Color(1)
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add("ego", line)
	}

	return errors.Wrapf(p.Save(plotSize, plotSize, path), "cannot save plot %q", path)
}
