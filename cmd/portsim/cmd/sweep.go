package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/portsim/backtest"
	"github.com/rustyeddy/portsim/journal"
	"github.com/rustyeddy/portsim/pkg/id"
	"github.com/rustyeddy/portsim/stats"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run many simulations over a grid or random sample of risk parameters",
	Long: `Sweep runs one full portfolio simulation per parameter set on a bounded
worker pool. Failed runs are reported and never stop the others.

Parameters are risk settings such as stop_loss_pct or profit_target_ratio;
see "portsim config params" for the list.

Examples:
  portsim sweep --dir data/ -a stop_loss_pct=0.01,0.02,0.04 -a profit_target_ratio=1.5,2,3
  portsim sweep --dir data/ -r stop_loss_pct=0.005:0.05 --samples 200 --seed 7
  portsim sweep --dir data/ -a stop_loss_pct=0.01,0.02 --walk-forward --train 8760h --test 2160h`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

var (
	sweepInputs      inputFlags
	sweepAxes        []string
	sweepRanges      []string
	sweepSamples     int
	sweepSeed        int64
	sweepMetric      string
	sweepLowerBetter bool
	sweepTop         int
	sweepWorkers     int

	sweepWalkForward bool
	sweepTrain       time.Duration
	sweepTest        time.Duration
	sweepStep        time.Duration
)

func init() {
	rootCmd.AddCommand(sweepCmd)

	f := sweepCmd.Flags()
	sweepInputs.register(f)
	f.StringArrayVarP(&sweepAxes, "axis", "a", nil, "grid axis name=v1,v2,... (repeatable)")
	f.StringArrayVarP(&sweepRanges, "range", "r", nil, "random range name=min:max (repeatable)")
	f.IntVar(&sweepSamples, "samples", 100, "number of random parameter sets drawn from --range")
	f.Int64Var(&sweepSeed, "seed", 1, "random seed for --range sampling")
	f.StringVarP(&sweepMetric, "metric", "m", stats.MetricSharpe, "metric used to rank runs")
	f.BoolVar(&sweepLowerBetter, "lower-better", false, "rank by ascending metric")
	f.IntVar(&sweepTop, "top", 10, "rows to print")
	f.IntVarP(&sweepWorkers, "workers", "w", 0, "concurrent runs (default simulation.workers)")

	f.BoolVar(&sweepWalkForward, "walk-forward", false, "optimise the grid on rolling train windows and test out of sample")
	f.DurationVar(&sweepTrain, "train", 365*24*time.Hour, "walk-forward train span")
	f.DurationVar(&sweepTest, "test", 90*24*time.Hour, "walk-forward test span")
	f.DurationVar(&sweepStep, "step", 90*24*time.Hour, "walk-forward step")
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	axes := make([]backtest.Axis, 0, len(sweepAxes))
	for _, s := range sweepAxes {
		ax, err := backtest.ParseAxis(s)
		if err != nil {
			return err
		}
		axes = append(axes, ax)
	}
	ranges := make([]backtest.Range, 0, len(sweepRanges))
	for _, s := range sweepRanges {
		r, err := backtest.ParseRange(s)
		if err != nil {
			return err
		}
		ranges = append(ranges, r)
	}
	if len(axes) == 0 && len(ranges) == 0 {
		return fmt.Errorf("nothing to sweep: use --axis or --range")
	}

	instruments, bench, err := sweepInputs.load()
	if err != nil {
		return err
	}

	workers := sweepWorkers
	if workers == 0 {
		workers = cfg.Simulation.Workers
	}
	base := simOptions()
	// Each task already runs on its own pool slot.
	base.Workers = 1

	s := &backtest.Sweeper{
		Instruments: instruments,
		Benchmark:   bench,
		Base:        base,
		Stats:       statsOptions(),
		Workers:     workers,
		Log:         log,
	}
	baseTask := backtest.Task{Risk: cfg.Risk, InitialCash: cfg.Account.InitialCash}
	out := cmd.OutOrStdout()

	if sweepWalkForward {
		return runWalkForward(cmd, s, baseTask, axes, instruments)
	}

	tasks := backtest.GridTasks(baseTask, axes...)
	if len(ranges) > 0 {
		var sampled []backtest.Task
		for _, t := range tasks {
			sampled = append(sampled, backtest.MonteCarloTasks(t, sweepSamples, sweepSeed, ranges...)...)
		}
		tasks = sampled
	}
	log.WithField("tasks", len(tasks)).Info("starting sweep")

	sum := s.Run(ctx, tasks)
	if err := journalSweep(sum); err != nil {
		return err
	}

	fmt.Fprintf(out, "%d runs: %d succeeded, %d failed\n\n", len(sum.Outcomes), sum.Succeeded, sum.Failed)
	printRanked(out, sum.Ranked(sweepMetric, !sweepLowerBetter), sweepMetric, sweepTop)
	for _, o := range sum.Outcomes {
		if !o.OK() {
			fmt.Fprintf(out, "failed %s: %v\n", o.Task.Name, o.Err)
		}
	}
	return ctx.Err()
}

func runWalkForward(cmd *cobra.Command, s *backtest.Sweeper, base backtest.Task, axes []backtest.Axis, instruments []backtest.Instrument) error {
	if len(axes) == 0 {
		return fmt.Errorf("walk-forward needs at least one --axis")
	}
	start, end, ok := span(instruments)
	if !ok {
		return fmt.Errorf("walk-forward: no bars")
	}
	windows, err := backtest.Windows(start, end, sweepTrain, sweepTest, sweepStep)
	if err != nil {
		return err
	}
	if len(windows) == 0 {
		return fmt.Errorf("walk-forward: data span %s .. %s is shorter than train+test", start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	steps, err := s.WalkForward(cmd.Context(), base, axes, windows, sweepMetric, !sweepLowerBetter)

	out := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "TRAIN\tTEST\tBEST\tIN-SAMPLE %s\tOUT-OF-SAMPLE %s\n", sweepMetric, sweepMetric)
	for _, st := range steps {
		best, test := "-", "-"
		var in, oos stats.Value
		if st.Best.OK() && st.Best.Task.Name != "" {
			best = st.Best.Task.Name
			in, _ = st.Best.Report.Metric(sweepMetric)
		}
		if st.Test.OK() && st.Test.Task.Name != "" {
			oos, _ = st.Test.Report.Metric(sweepMetric)
			test = oos.String()
		} else if st.Test.Err != nil {
			test = "error: " + st.Test.Err.Error()
		}
		fmt.Fprintf(tw, "%s..%s\t%s..%s\t%s\t%s\t%s\n",
			st.Window.TrainFrom.Format("2006-01-02"), st.Window.TrainTo.Format("2006-01-02"),
			st.Window.TestFrom.Format("2006-01-02"), st.Window.TestTo.Format("2006-01-02"),
			best, in, test)
	}
	tw.Flush()
	return err
}

func span(instruments []backtest.Instrument) (start, end time.Time, ok bool) {
	for _, in := range instruments {
		for _, b := range in.Bars {
			if !ok || b.Time.Before(start) {
				start = b.Time
			}
			if !ok || b.Time.After(end) {
				end = b.Time
			}
			ok = true
		}
	}
	return
}

func printRanked(w io.Writer, ranked []backtest.RunOutcome, metric string, top int) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "RANK\tTASK\t%s\tTOTAL RETURN\tMAX DD\tTRADES\tELAPSED\n", metric)
	for i, o := range ranked {
		if top > 0 && i >= top {
			break
		}
		v, _ := o.Report.Metric(metric)
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
			i+1, o.Task.Name, v, o.Report.TotalReturn, o.Report.MaxDrawdown, o.Report.Trades.Total, o.Elapsed.Round(time.Millisecond))
	}
	tw.Flush()
}

// journalSweep records every successful run of a sweep.
func journalSweep(sum backtest.SweepSummary) error {
	j, err := openJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	for _, o := range sum.Outcomes {
		if !o.OK() {
			continue
		}
		rec := journal.NewRunRecord(id.New(), o.Task.Name, o.Task.InitialCash, o.Result, o.Report)
		if rec.Config, err = json.Marshal(o.Task.Risk); err != nil {
			return err
		}
		if err := journal.WriteRun(j, rec, o.Result); err != nil {
			return fmt.Errorf("journal %s: %w", o.Task.Name, err)
		}
	}
	return nil
}
