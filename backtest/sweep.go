package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/portsim/market"
	"github.com/rustyeddy/portsim/risk"
	"github.com/rustyeddy/portsim/stats"
)

// ErrNoData is returned by a sweep task whose aggregate has no dates.
var ErrNoData = errors.New("no data in window")

// Task is one full run of a sweep. Each task carries its own risk config.
type Task struct {
	Name        string
	Risk        risk.Config
	InitialCash float64
	From, To    time.Time          // [From, To), zero bounds are open
	Params      map[string]float64 // the swept values, for reporting
}

// RunOutcome is the result of one task.
type RunOutcome struct {
	Task    Task
	Result  AggregateResult
	Report  stats.Report
	Err     error
	Elapsed time.Duration
}

func (o RunOutcome) OK() bool { return o.Err == nil }

// SweepSummary lists every outcome in task order.
type SweepSummary struct {
	Outcomes  []RunOutcome
	Succeeded int
	Failed    int
}

// Best returns the successful outcome with the best defined value of
// metric. Ties keep the earlier task.
func (s SweepSummary) Best(metric string, higherIsBetter bool) (RunOutcome, bool) {
	var (
		best  RunOutcome
		bestV float64
		found bool
	)
	for _, o := range s.Outcomes {
		if !o.OK() {
			continue
		}
		v, ok := o.Report.Metric(metric)
		if !ok {
			continue
		}
		x, ok := v.Float()
		if !ok || math.IsNaN(x) {
			continue
		}
		if !found || (higherIsBetter && x > bestV) || (!higherIsBetter && x < bestV) {
			best, bestV, found = o, x, true
		}
	}
	return best, found
}

// Ranked returns the successful outcomes ordered best first by metric.
// Outcomes where the metric is undefined sort last.
func (s SweepSummary) Ranked(metric string, higherIsBetter bool) []RunOutcome {
	var out []RunOutcome
	for _, o := range s.Outcomes {
		if o.OK() {
			out = append(out, o)
		}
	}
	val := func(o RunOutcome) (float64, bool) {
		v, _ := o.Report.Metric(metric)
		return v.Float()
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, aok := val(out[i])
		b, bok := val(out[j])
		if aok != bok {
			return aok
		}
		if higherIsBetter {
			return a > b
		}
		return a < b
	})
	return out
}

// Sweeper runs independent tasks over the same instruments.
type Sweeper struct {
	Instruments []Instrument
	Benchmark   market.Series
	Base        Options // risk and initial cash come from each task
	Stats       stats.Options
	Workers     int // concurrent tasks, 0 means 4
	Log         *logrus.Entry
}

// Run executes tasks on a bounded pool. A failing task never cancels its
// siblings. Cancelling ctx stops tasks that have not started yet; they
// report ctx.Err().
func (s *Sweeper) Run(ctx context.Context, tasks []Task) SweepSummary {
	log := s.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	workers := s.Workers
	if workers <= 0 {
		workers = 4
	}

	out := make([]RunOutcome, len(tasks))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				out[i] = RunOutcome{Task: task, Err: err}
				return nil
			}
			out[i] = s.runTask(ctx, task)
			return nil
		})
	}
	_ = g.Wait()

	sum := SweepSummary{Outcomes: out}
	for _, o := range out {
		if o.OK() {
			sum.Succeeded++
			continue
		}
		sum.Failed++
		log.WithError(o.Err).WithField("task", o.Task.Name).Warn("sweep task failed")
	}
	log.WithFields(logrus.Fields{
		"tasks":     len(tasks),
		"succeeded": sum.Succeeded,
		"failed":    sum.Failed,
	}).Info("sweep finished")
	return sum
}

func (s *Sweeper) runTask(ctx context.Context, task Task) (o RunOutcome) {
	start := time.Now()
	o.Task = task
	defer func() {
		if r := recover(); r != nil {
			o.Err = fmt.Errorf("task %s: panic: %v", task.Name, r)
		}
		o.Elapsed = time.Since(start)
	}()

	opts := s.Base
	opts.Risk = task.Risk
	opts.Log = s.logFor(task)
	if err := opts.Validate(); err != nil {
		o.Err = fmt.Errorf("task %s: %w", task.Name, err)
		return o
	}

	instruments := make([]Instrument, len(s.Instruments))
	for i, in := range s.Instruments {
		instruments[i] = Instrument{Name: in.Name, Bars: windowBars(in.Bars, task.From, task.To)}
	}

	results, err := RunAll(ctx, instruments, task.InitialCash, opts)
	if results == nil && err != nil {
		o.Err = fmt.Errorf("task %s: %w", task.Name, err)
		return o
	}

	agg := AttachBenchmark(Combine(results, opts.Log), s.Benchmark)
	o.Result = agg
	if agg.Empty() {
		o.Err = fmt.Errorf("task %s: %w", task.Name, ErrNoData)
		return o
	}

	so := s.Stats
	so.Log = opts.Log
	o.Report = stats.Compute(agg.Values, agg.Benchmark, agg.Trades, so)
	return o
}

func (s *Sweeper) logFor(task Task) *logrus.Entry {
	l := s.Base.Log
	if l == nil {
		l = s.Log
	}
	if l == nil {
		l = logrus.NewEntry(logrus.StandardLogger())
	}
	return l.WithField("task", task.Name)
}

// windowBars returns bars with from <= t < to. Zero bounds are open.
func windowBars(bars []market.Bar, from, to time.Time) []market.Bar {
	if from.IsZero() && to.IsZero() {
		return bars
	}
	var out []market.Bar
	for _, b := range bars {
		if !from.IsZero() && b.Time.Before(from) {
			continue
		}
		if !to.IsZero() && !b.Time.Before(to) {
			continue
		}
		out = append(out, b)
	}
	return out
}
