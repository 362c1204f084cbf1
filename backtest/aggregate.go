package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/portsim/market"
	"github.com/rustyeddy/portsim/portfolio"
)

// Instrument is one tradable series supplied to RunAll.
type Instrument struct {
	Name string
	Bars []market.Bar
}

// AggregateResult combines per-instrument results into one portfolio.
type AggregateResult struct {
	Values      market.Series // summed over the common dates
	Benchmark   market.Series // rebased to 100 at the first common date
	Trades      []portfolio.Trade
	Instruments []InstrumentResult
	Dropped     []string // instruments that contributed no values
}

// Empty reports whether the aggregate has no common dates.
func (a AggregateResult) Empty() bool { return len(a.Values) == 0 }

// RunAll splits initialCash equally and simulates every instrument on a
// bounded pool. A failing instrument does not stop the others; its error is
// joined into the returned error and its (possibly empty) result is kept so
// Combine can report it.
func RunAll(ctx context.Context, instruments []Instrument, initialCash float64, opts Options) ([]InstrumentResult, error) {
	if len(instruments) == 0 {
		return nil, fmt.Errorf("backtest: no instruments")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if initialCash <= 0 {
		return nil, fmt.Errorf("backtest: initial cash must be positive, got %v", initialCash)
	}

	seen := map[string]bool{}
	for _, in := range instruments {
		if in.Name == "" {
			return nil, fmt.Errorf("backtest: instrument name is required")
		}
		if seen[in.Name] {
			return nil, fmt.Errorf("backtest: duplicate instrument %q", in.Name)
		}
		seen[in.Name] = true
	}

	workers := opts.Workers
	if workers == 0 {
		workers = 4
	}
	share := initialCash / float64(len(instruments))

	results := make([]InstrumentResult, len(instruments))
	errs := make([]error, len(instruments))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, in := range instruments {
		i, in := i, in
		g.Go(func() error {
			sim := &Simulator{
				Instrument:  in.Name,
				Feed:        NewSliceFeed(in.Bars),
				InitialCash: share,
				Options:     opts,
			}
			res, err := sim.Run(ctx)
			if res.Instrument == "" {
				res.Instrument = in.Name
				res.Allocation = share
			}
			results[i], errs[i] = res, err
			return nil
		})
	}
	_ = g.Wait()

	return results, errors.Join(errs...)
}

// Combine sums the instruments' value series over the dates every
// instrument with data shares, and merges their trades ordered by entry
// time then instrument. Instruments without values are skipped with a
// warning. Disjoint date ranges yield an empty aggregate, not an error.
func Combine(results []InstrumentResult, log *logrus.Entry) AggregateResult {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	agg := AggregateResult{Instruments: results}

	var live []InstrumentResult
	for _, r := range results {
		if len(r.Values) == 0 {
			agg.Dropped = append(agg.Dropped, r.Instrument)
			log.WithField("instrument", r.Instrument).Warn("combine: instrument has no values, skipped")
			continue
		}
		live = append(live, r)
		agg.Trades = append(agg.Trades, r.Trades...)
	}

	sort.SliceStable(agg.Trades, func(i, j int) bool {
		a, b := agg.Trades[i], agg.Trades[j]
		if !a.EntryTime.Equal(b.EntryTime) {
			return a.EntryTime.Before(b.EntryTime)
		}
		return a.Instrument < b.Instrument
	})

	if len(live) == 0 {
		return agg
	}

	// count how many instruments have each date
	counts := map[int64]int{}
	sums := map[int64]float64{}
	for _, r := range live {
		for _, p := range r.Values {
			k := p.Time.UnixNano()
			counts[k]++
			sums[k] += p.Value
		}
	}

	for _, p := range live[0].Values.Sorted() {
		k := p.Time.UnixNano()
		if counts[k] == len(live) {
			agg.Values = append(agg.Values, market.Point{Time: p.Time, Value: sums[k]})
		}
	}

	if agg.Empty() {
		names := make([]string, len(live))
		for i, r := range live {
			names[i] = r.Instrument
		}
		log.WithField("instruments", names).Warn("combine: instruments share no dates, aggregate is empty")
	}
	return agg
}

// AttachBenchmark restricts bench to the aggregate's date window and
// rebases it to 100 at its first observation inside the window.
func AttachBenchmark(agg AggregateResult, bench market.Series) AggregateResult {
	first, ok := agg.Values.First()
	if !ok {
		agg.Benchmark = nil
		return agg
	}
	last, _ := agg.Values.Last()
	agg.Benchmark = bench.Sorted().Window(first.Time, last.Time).Rebase(100)
	return agg
}
