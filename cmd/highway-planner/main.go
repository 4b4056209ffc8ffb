// Package main runs the highway planner against the closed-loop simulator.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/benbjohnson/clock"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/highway/config"
	"go.viam.com/highway/highwaymap"
	"go.viam.com/highway/logging"
	"go.viam.com/highway/planner"
	"go.viam.com/highway/sim"
)

const (
	// Flags.
	flagConfig   = "config"
	flagDebug    = "debug"
	flagMap      = "map"
	flagMaxS     = "max-s"
	flagCycles   = "cycles"
	flagTraffic  = "traffic"
	flagSeed     = "seed"
	flagRealtime = "realtime"
	flagPlot     = "plot"
	flagSeeds    = "seeds"
	flagParallel = "parallel"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	var logger logging.Logger

	return &cli.App{
		Name:            "highway-planner",
		Usage:           "plan highway trajectories on a simulated track",
		HideHelpCommand: true,
		Writer:          out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(flagDebug) {
				logger = logging.NewDebugLogger("highway")
			} else {
				logger = logging.NewLogger("highway")
			}
			logging.ReplaceGlobal(logger)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "drive the simulated highway and print a summary",
				UsageText: "highway-planner [global options] run [--map FILE] [--cycles N] [--traffic N] [--seed N] [--realtime]",
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:  flagMap,
						Usage: "waypoint table `FILE`; the synthetic circuit is used when unset",
					},
					&cli.IntFlag{
						Name:  flagCycles,
						Usage: "number of planning cycles",
					},
					&cli.IntFlag{
						Name:  flagTraffic,
						Usage: "number of other vehicles",
					},
					&cli.Int64Flag{
						Name:  flagSeed,
						Usage: "seed of the traffic placement",
					},
					&cli.BoolFlag{
						Name:  flagRealtime,
						Usage: "pace cycles to the wall clock",
					},
					&cli.PathFlag{
						Name:  flagPlot,
						Usage: "render the waypoints and the driven trace to `FILE` (.png, .svg or .pdf)",
					},
				},
				Action: func(c *cli.Context) error {
					return RunAction(c, logger)
				},
			},
			{
				Name:      "sweep",
				Usage:     "drive one simulation per seed and compare them",
				UsageText: "highway-planner [global options] sweep [--map FILE] [--cycles N] [--traffic N] [--seed N] [--seeds N] [--parallel N]",
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:  flagMap,
						Usage: "waypoint table `FILE`; the synthetic circuit is used when unset",
					},
					&cli.IntFlag{
						Name:  flagCycles,
						Usage: "number of planning cycles per drive",
					},
					&cli.IntFlag{
						Name:  flagTraffic,
						Usage: "number of other vehicles",
					},
					&cli.Int64Flag{
						Name:  flagSeed,
						Usage: "first seed of the sweep",
					},
					&cli.IntFlag{
						Name:  flagSeeds,
						Value: 4,
						Usage: "number of consecutive seeds to drive",
					},
					&cli.IntFlag{
						Name:  flagParallel,
						Usage: "drives run at once; 0 uses every CPU",
					},
				},
				Action: func(c *cli.Context) error {
					return SweepAction(c, logger)
				},
			},
			{
				Name:  "check-map",
				Usage: "load a waypoint table and report its shape",
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:     flagMap,
						Required: true,
						Usage:    "waypoint table `FILE`",
					},
					&cli.Float64Flag{
						Name:  flagMaxS,
						Value: highwaymap.DefaultMaxS,
						Usage: "track length; 0 derives it from the table",
					},
				},
				Action: CheckMapAction,
			},
		},
	}
}

// loadConfig reads the --config file, or returns the defaults.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String(flagConfig)
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// applyLogLevel sets the configured log level unless --debug asked for everything.
func applyLogLevel(c *cli.Context, cfg *config.Config, logger logging.Logger) error {
	if c.Bool(flagDebug) {
		return nil
	}
	level, err := logging.LevelFromString(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	return nil
}

// RunAction drives the simulator for the configured number of cycles.
func RunAction(c *cli.Context, logger logging.Logger) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet(flagMap) {
		cfg.Map.Path = c.Path(flagMap)
	}
	if c.IsSet(flagCycles) {
		cfg.Sim.Cycles = c.Int(flagCycles)
	}
	if c.IsSet(flagTraffic) {
		cfg.Sim.Traffic = c.Int(flagTraffic)
	}
	if c.IsSet(flagSeed) {
		cfg.Sim.Seed = c.Int64(flagSeed)
	}
	if c.IsSet(flagRealtime) {
		cfg.Sim.Realtime = c.Bool(flagRealtime)
	}
	if err := applyLogLevel(c, cfg, logger); err != nil {
		return err
	}

	m, err := cfg.Map.Build()
	if err != nil {
		return errors.Wrap(err, "cannot load map")
	}
	p, err := planner.New(cfg.Planner, m, logger.Sublogger("planner"))
	if err != nil {
		return err
	}
	simulator, err := sim.New(cfg.Sim, p, clock.New(), logger.Sublogger("sim"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	stats, err := simulator.Run(ctx)
	printStats(c.App.Writer, m, stats)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if c.IsSet(flagPlot) {
		return plotDrive(c.Path(flagPlot), m, simulator.Trace())
	}
	return nil
}

// CheckMapAction loads a waypoint table and prints its summary.
func CheckMapAction(c *cli.Context) error {
	m, err := highwaymap.Load(c.Path(flagMap), c.Float64(flagMaxS), highwaymap.DefaultReference)
	if err != nil {
		return err
	}

	first, last := m.Waypoint(0), m.Waypoint(m.Len()-1)
	t := table.NewWriter()
	t.SetOutputMirror(c.App.Writer)
	t.AppendHeader(table.Row{"Waypoints", "Max S", "First", "Last"})
	t.AppendRow(table.Row{
		m.Len(),
		fmt.Sprintf("%.3f", m.MaxS()),
		fmt.Sprintf("(%.2f, %.2f) s=%.2f", first.Position.X, first.Position.Y, first.S),
		fmt.Sprintf("(%.2f, %.2f) s=%.2f", last.Position.X, last.Position.Y, last.S),
	})
	t.Render()
	return nil
}

func printStats(w io.Writer, m *highwaymap.Map, stats sim.Stats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Track length", fmt.Sprintf("%.3f m", m.MaxS())},
		{"Cycles", stats.Cycles},
		{"Manual cycles", stats.Manual},
		{"Lane changes", stats.LaneChanges},
		{"Final lane", stats.FinalLane},
		{"Distance", fmt.Sprintf("%.1f m", stats.Distance)},
		{"Mean speed", fmt.Sprintf("%.2f m/s", stats.MeanSpeed)},
		{"Max speed", fmt.Sprintf("%.2f m/s", stats.MaxSpeed)},
		{"Min gap in lane", fmt.Sprintf("%.2f m", stats.MinGap)},
	})
	t.Render()
}
