package main

import (
	"fmt"
	"io"
	"runtime"

	"github.com/benbjohnson/clock"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"go.uber.org/multierr"

	"go.viam.com/highway/logging"
	"go.viam.com/highway/planner"
	"go.viam.com/highway/sim"
)

// SweepAction drives one simulation per consecutive seed, several at a time, and tabulates them.
// Each drive owns its planner and simulator; only the map is shared.
func SweepAction(c *cli.Context, logger logging.Logger) error {
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
	firstSeed := cfg.Sim.Seed
	if c.IsSet(flagSeed) {
		firstSeed = c.Int64(flagSeed)
	}
	cfg.Sim.Realtime = false
	if err := applyLogLevel(c, cfg, logger); err != nil {
		return err
	}

	seeds := c.Int(flagSeeds)
	if seeds < 1 {
		return errors.Errorf("--%s must be at least 1, got %d", flagSeeds, seeds)
	}
	parallel := c.Int(flagParallel)
	if parallel < 1 {
		parallel = runtime.NumCPU()
	}

	m, err := cfg.Map.Build()
	if err != nil {
		return errors.Wrap(err, "cannot load map")
	}

	results := make([]sim.Stats, seeds)
	g, ctx := errgroup.WithContext(c.Context)
	g.SetLimit(parallel)
	for i := range results {
		i := i // per-iteration copy; go directive is 1.21 (pre-loopvar semantics)
		simCfg := cfg.Sim
		simCfg.Seed = firstSeed + int64(i)
		g.Go(func() error {
			simLogger := logger.Sublogger(fmt.Sprintf("seed%d", simCfg.Seed))
			p, err := planner.New(cfg.Planner, m, simLogger.Sublogger("planner"))
			if err != nil {
				return err
			}
			simulator, err := sim.New(simCfg, p, clock.New(), simLogger.Sublogger("sim"))
			if err != nil {
				return err
			}
			results[i], err = simulator.Run(ctx)
			return errors.Wrapf(err, "seed %d", simCfg.Seed)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return printSweep(c.App.Writer, firstSeed, results)
}

func printSweep(w io.Writer, firstSeed int64, results []sim.Stats) error {
	speeds := make([]float64, len(results))
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Seed", "Lane changes", "Manual", "Min gap (m)", "Mean speed (m/s)", "Distance (m)"})
	for i, r := range results {
		speeds[i] = r.MeanSpeed
		t.AppendRow(table.Row{
			firstSeed + int64(i),
			r.LaneChanges,
			r.Manual,
			fmt.Sprintf("%.2f", r.MinGap),
			fmt.Sprintf("%.2f", r.MeanSpeed),
			fmt.Sprintf("%.1f", r.Distance),
		})
	}

	median, errMedian := stats.Median(speeds)
	spread, errSpread := stats.StandardDeviation(speeds)
	if err := multierr.Combine(errMedian, errSpread); err != nil {
		return errors.Wrap(err, "cannot summarize sweep")
	}
	t.AppendFooter(table.Row{"", "", "", "median", fmt.Sprintf("%.2f", median), fmt.Sprintf("sd %.2f", spread)})
	t.Render()
	return nil
}
