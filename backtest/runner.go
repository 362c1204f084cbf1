// Package backtest drives portfolios through bar series: one simulator per
// instrument, an aggregator over instruments and parameter sweeps over
// whole runs.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/portsim/indicators"
	"github.com/rustyeddy/portsim/market"
	"github.com/rustyeddy/portsim/pkg/id"
	"github.com/rustyeddy/portsim/portfolio"
	"github.com/rustyeddy/portsim/risk"
)

// ErrNoBars is returned when a feed yields no usable bar.
var ErrNoBars = errors.New("no valid bars")

// DefaultVolatilityLookback is the number of returns used to estimate
// volatility for risk-per-trade sizing.
const DefaultVolatilityLookback = 20

// Options are shared by every simulator of a run.
type Options struct {
	Risk               risk.Config
	VolatilityLookback int    // 0 uses DefaultVolatilityLookback
	VolatilityMethod   string // "returns", "atr" or "ewma"
	LiquidateAtEnd     bool   // close open positions after the last bar
	Workers            int    // instruments simulated concurrently, 0 means 4
	IDs                *id.Generator
	Log                *logrus.Entry
}

// Validate reports configuration errors before any simulation work.
func (o Options) Validate() error {
	if err := o.Risk.Validate(); err != nil {
		return fmt.Errorf("backtest: %w", err)
	}
	if o.VolatilityLookback < 0 {
		return fmt.Errorf("backtest: volatility lookback must not be negative")
	}
	if o.Workers < 0 {
		return fmt.Errorf("backtest: workers must not be negative")
	}
	switch o.VolatilityMethod {
	case "", "returns", "atr", "ewma":
	default:
		return fmt.Errorf("backtest: unknown volatility method %q", o.VolatilityMethod)
	}
	return nil
}

func (o Options) logger() *logrus.Entry {
	if o.Log == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return o.Log
}

func (o Options) lookback() int {
	if o.VolatilityLookback == 0 {
		return DefaultVolatilityLookback
	}
	return o.VolatilityLookback
}

// SignalPoint is the raw strategy output kept for charting.
type SignalPoint struct {
	Time     time.Time
	Signal   market.Signal
	Position market.Direction
}

// InstrumentResult is the outcome of simulating one instrument.
type InstrumentResult struct {
	Instrument string
	Allocation float64

	Values    market.Series // total value of the instrument's account at each bar close
	Snapshots []portfolio.Snapshot
	Trades    []portfolio.Trade
	Signals   []SignalPoint
	Open      []portfolio.Position // positions still open after the last bar
	Cash      float64

	Bars       int // bars processed
	Skipped    int // malformed or out of order bars
	Rejections int // refused opens
	Breaches   int // bars with advisory limit violations
}

// Simulator walks one instrument's bars through a portfolio.
type Simulator struct {
	Instrument  string
	Feed        BarFeed
	InitialCash float64
	Options     Options
}

// Run executes the bar loop:
//  1. skip malformed or non-chronological bars
//  2. act on the previous bar's signal at this bar's open
//  3. check stops and targets on this bar's range, closing at the trigger
//  4. value the account at the close and check the advisory limits
//
// Positions still open at the end are left open unless LiquidateAtEnd is
// set.
func (s *Simulator) Run(ctx context.Context) (InstrumentResult, error) {
	if s.Instrument == "" {
		return InstrumentResult{}, fmt.Errorf("backtest: Instrument is required")
	}
	if s.Feed == nil {
		return InstrumentResult{}, fmt.Errorf("backtest: Feed is required")
	}
	defer s.Feed.Close()

	if err := s.Options.Validate(); err != nil {
		return InstrumentResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return InstrumentResult{}, err
	}

	log := s.Options.logger().WithField("instrument", s.Instrument)
	pf, err := portfolio.New(s.InitialCash, s.Options.Risk, log)
	if err != nil {
		return InstrumentResult{}, fmt.Errorf("backtest: %w", err)
	}
	if s.Options.IDs != nil {
		pf.SetIDGenerator(s.Options.IDs)
	}

	run := &instrumentRun{
		name: s.Instrument,
		pf:   pf,
		vol:  indicators.New(s.Options.VolatilityMethod, s.Options.lookback()),
		log:  log,
		res: InstrumentResult{
			Instrument: s.Instrument,
			Allocation: s.InitialCash,
		},
	}

	var prev *market.Bar
	for {
		b, ok, err := s.Feed.Next()
		if err != nil {
			return InstrumentResult{}, fmt.Errorf("backtest %s: %w", s.Instrument, err)
		}
		if !ok {
			break
		}

		if !b.Valid() {
			run.res.Skipped++
			log.WithField("time", b.Time).Warn("skipping malformed bar")
			continue
		}
		if prev != nil && !b.Time.After(prev.Time) {
			run.res.Skipped++
			log.WithFields(logrus.Fields{"time": b.Time, "prev": prev.Time}).Warn("skipping out of order bar")
			continue
		}

		var lagged market.Signal
		if prev != nil {
			lagged = prev.Signal
		}
		run.step(b, lagged)

		bar := b
		prev = &bar
	}

	if prev != nil && s.Options.LiquidateAtEnd {
		pf.CloseAll(map[string]float64{s.Instrument: prev.Close}, prev.Time, portfolio.ReasonLiquidation)
	}

	if err := pf.Reconcile(); err != nil {
		log.WithError(err).Warn("ledger check failed")
	}

	res := run.res
	res.Trades = pf.Trades()
	res.Open = pf.Positions()
	res.Cash = pf.Cash()
	res.Snapshots = pf.Snapshots()

	if res.Bars == 0 {
		return res, fmt.Errorf("backtest %s: %w", s.Instrument, ErrNoBars)
	}

	log.WithFields(logrus.Fields{
		"bars":       res.Bars,
		"skipped":    res.Skipped,
		"trades":     len(res.Trades),
		"rejections": res.Rejections,
		"open":       len(res.Open),
	}).Debug("instrument simulated")
	return res, nil
}

type instrumentRun struct {
	name string
	pf   *portfolio.Portfolio
	vol  indicators.Indicator
	log  *logrus.Entry
	res  InstrumentResult

	lastBreach string
}

func (r *instrumentRun) step(b market.Bar, lagged market.Signal) {
	r.res.Bars++
	r.res.Signals = append(r.res.Signals, SignalPoint{Time: b.Time, Signal: b.Signal, Position: b.Position})

	r.act(b, lagged)

	if intent, hit := r.pf.TickBar(r.name, b); hit {
		if _, err := r.pf.Close(r.name, intent.Price, b.Time, intent.Reason); err != nil {
			r.log.WithError(err).Warn("exit failed")
		}
	}

	snap := r.pf.Snapshot(b.Time, map[string]float64{r.name: b.Close})
	r.res.Values = append(r.res.Values, market.Point{Time: b.Time, Value: snap.Total})

	r.checkLimits(b.Time)
	r.vol.Update(b)
}

// act applies the lagged signal at the bar's open.
func (r *instrumentRun) act(b market.Bar, sig market.Signal) {
	pos, open := r.pf.Position(r.name)

	switch {
	case sig == market.Exit:
		if open {
			r.close(b, "exit signal")
		}
	case sig.IsEntry():
		want := sig.Direction()
		if open && pos.Direction == want {
			return
		}
		if open {
			r.close(b, "reversal")
		}
		r.open(b, want)
	}
}

func (r *instrumentRun) open(b market.Bar, dir market.Direction) {
	var vol float64
	if r.vol.Ready() {
		vol = r.vol.Value()
	}
	_, err := r.pf.Open(portfolio.OpenRequest{
		Instrument: r.name,
		Time:       b.Time,
		Price:      b.Open,
		Direction:  dir,
		Volatility: vol,
	})
	if errors.Is(err, portfolio.ErrRejected) {
		r.res.Rejections++
	}
}

func (r *instrumentRun) close(b market.Bar, why string) {
	if _, err := r.pf.Close(r.name, b.Open, b.Time, portfolio.ReasonSignal); err != nil {
		r.log.WithError(err).WithField("why", why).Warn("close failed")
	}
}

// checkLimits logs advisory breaches when the set of violations changes so
// a long drawdown does not flood the log.
func (r *instrumentRun) checkLimits(t time.Time) {
	d := r.pf.CheckLimits()
	key := ""
	for _, v := range d.Violations {
		key += v.Code + ";"
	}
	if !d.OK() {
		r.res.Breaches++
	}
	if key == r.lastBreach {
		return
	}
	r.lastBreach = key
	for _, v := range d.Violations {
		r.log.WithFields(logrus.Fields{
			"time": t,
			"code": v.Code,
		}).Warn(v.Msg + " (advisory, trading continues)")
	}
}
