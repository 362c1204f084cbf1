package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/rustyeddy/portsim/backtest"
	"github.com/rustyeddy/portsim/config"
	"github.com/rustyeddy/portsim/feed"
	"github.com/rustyeddy/portsim/journal"
	"github.com/rustyeddy/portsim/market"
	"github.com/rustyeddy/portsim/stats"
)

// inputFlags are shared by run and sweep.
type inputFlags struct {
	data      []string
	dir       string
	benchmark string
	from, to  string
}

func (in *inputFlags) register(fs *pflag.FlagSet) {
	fs.StringArrayVarP(&in.data, "data", "d", nil, "instrument bar file, NAME=path or path (repeatable)")
	fs.StringVar(&in.dir, "dir", "", "directory of .csv/.parquet bar files, one instrument per file")
	fs.StringVarP(&in.benchmark, "benchmark", "b", "", "benchmark bar file (overrides simulation.benchmark)")
	fs.StringVar(&in.from, "from", "", "first bar time to include (YYYY-MM-DD or RFC3339)")
	fs.StringVar(&in.to, "to", "", "first bar time to exclude (YYYY-MM-DD or RFC3339)")
}

func (in *inputFlags) window() (from, to time.Time, err error) {
	if in.from != "" {
		if from, err = feed.ParseTime(in.from); err != nil {
			return
		}
	}
	if in.to != "" {
		if to, err = feed.ParseTime(in.to); err != nil {
			return
		}
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		err = fmt.Errorf("--from must be before --to")
	}
	return
}

func (in *inputFlags) sources() ([]feed.Source, error) {
	var out []feed.Source
	for _, d := range in.data {
		out = append(out, feed.ParseSource(d))
	}
	if in.dir != "" {
		ds, err := feed.DirSources(in.dir)
		if err != nil {
			return nil, err
		}
		out = append(out, ds...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no instruments: use --data or --dir")
	}
	return out, nil
}

func (in *inputFlags) load() ([]backtest.Instrument, market.Series, error) {
	from, to, err := in.window()
	if err != nil {
		return nil, nil, err
	}
	srcs, err := in.sources()
	if err != nil {
		return nil, nil, err
	}

	instruments := make([]backtest.Instrument, 0, len(srcs))
	for _, s := range srcs {
		bars, err := feed.LoadBars(s.Path, s.Name, from, to, log.WithField("instrument", s.Name))
		if err != nil {
			return nil, nil, fmt.Errorf("load %s: %w", s.Name, err)
		}
		log.WithField("instrument", s.Name).WithField("bars", len(bars)).Debug("loaded bars")
		instruments = append(instruments, backtest.Instrument{Name: s.Name, Bars: bars})
	}

	benchPath := in.benchmark
	if benchPath == "" {
		benchPath = cfg.Simulation.Benchmark
	}
	var bench market.Series
	if benchPath != "" {
		src := feed.ParseSource(benchPath)
		bars, err := feed.LoadBars(src.Path, src.Name, from, to, log.WithField("benchmark", src.Name))
		if err != nil {
			return nil, nil, fmt.Errorf("load benchmark: %w", err)
		}
		bench = market.CloseSeries(bars)
	}
	return instruments, bench, nil
}

func simOptions() backtest.Options {
	return backtest.Options{
		Risk:               cfg.Risk,
		VolatilityLookback: cfg.Simulation.VolatilityLookback,
		VolatilityMethod:   cfg.Simulation.VolatilityMethod,
		LiquidateAtEnd:     cfg.Simulation.LiquidateAtEnd,
		Workers:            cfg.Simulation.Workers,
		Log:                log,
	}
}

func statsOptions() stats.Options {
	return stats.Options{RiskFreeRate: cfg.Stats.RiskFreeRate, Log: log}
}

func openJournal(jc config.JournalConfig) (journal.Journal, error) {
	switch jc.Type {
	case "", "none":
		return journal.Discard{}, nil
	case "csv":
		return journal.NewCSV(jc.TradesFile, jc.EquityFile, jc.RunsFile)
	case "sqlite":
		return journal.NewSQLite(jc.DBPath)
	}
	return nil, fmt.Errorf("unknown journal type %q", jc.Type)
}
