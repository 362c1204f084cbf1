package backtest

import (
	"context"
	"fmt"
	"time"
)

// Window is one walk-forward split: parameters are chosen on the train
// span and evaluated on the following test span.
type Window struct {
	TrainFrom, TrainTo time.Time
	TestFrom, TestTo   time.Time
}

// Windows rolls train/test spans of the given lengths across [start, end],
// advancing by step. Only windows whose test span ends by end are returned.
func Windows(start, end time.Time, train, test, step time.Duration) ([]Window, error) {
	if train <= 0 || test <= 0 || step <= 0 {
		return nil, fmt.Errorf("walk forward: train, test and step must be positive")
	}
	var out []Window
	for from := start; ; from = from.Add(step) {
		w := Window{
			TrainFrom: from,
			TrainTo:   from.Add(train),
			TestFrom:  from.Add(train),
			TestTo:    from.Add(train + test),
		}
		if w.TestTo.After(end) {
			break
		}
		out = append(out, w)
	}
	return out, nil
}

// WalkForwardStep is the outcome of one window.
type WalkForwardStep struct {
	Window Window
	Train  SweepSummary
	Best   RunOutcome // best in-sample outcome, zero if none succeeded
	Test   RunOutcome // out-of-sample run of Best's parameters
}

// WalkForward optimises axes on each train span by metric and runs the
// winning parameters on the test span. Windows are processed in order;
// cancelling ctx stops before the next window.
func (s *Sweeper) WalkForward(ctx context.Context, base Task, axes []Axis, windows []Window, metric string, higherIsBetter bool) ([]WalkForwardStep, error) {
	var steps []WalkForwardStep
	for i, w := range windows {
		if err := ctx.Err(); err != nil {
			return steps, err
		}

		tb := cloneTask(base)
		tb.From, tb.To = w.TrainFrom, w.TrainTo
		tb.Name = fmt.Sprintf("wf%02d", i)

		step := WalkForwardStep{Window: w}
		step.Train = s.Run(ctx, GridTasks(tb, axes...))

		best, ok := step.Train.Best(metric, higherIsBetter)
		if !ok {
			step.Test = RunOutcome{Err: fmt.Errorf("walk forward window %d: no successful train run", i)}
			steps = append(steps, step)
			continue
		}
		step.Best = best

		test := cloneTask(best.Task)
		test.From, test.To = w.TestFrom, w.TestTo
		test.Name = best.Task.Name + ":test"
		step.Test = s.runTask(ctx, test)
		steps = append(steps, step)
	}
	return steps, nil
}
