package cmd

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/rustyeddy/portsim/backtest"
	"github.com/rustyeddy/portsim/portfolio"
	"github.com/rustyeddy/portsim/stats"
)

func printInstruments(w io.Writer, agg backtest.AggregateResult) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INSTRUMENT\tALLOCATION\tBARS\tSKIPPED\tTRADES\tOPEN\tREJECTED\tBREACHES")
	for _, r := range agg.Instruments {
		fmt.Fprintf(tw, "%s\t%.2f\t%d\t%d\t%d\t%d\t%d\t%d\n",
			r.Instrument, r.Allocation, r.Bars, r.Skipped, len(r.Trades), len(r.Open), r.Rejections, r.Breaches)
	}
	tw.Flush()

	if len(agg.Dropped) > 0 {
		fmt.Fprintf(w, "no data: %v\n", agg.Dropped)
	}
	if agg.Empty() {
		fmt.Fprintln(w, "instruments share no common dates; portfolio series is empty")
	}
}

func printReport(w io.Writer, rep stats.Report) {
	if rep.Periods > 0 {
		fmt.Fprintf(w, "Period %s .. %s, %d points, %.0f per year\n\n",
			rep.Start.Format("2006-01-02"), rep.End.Format("2006-01-02"), rep.Periods, rep.PeriodsPerYear)
	}

	m := rep.Metrics()
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "METRIC\tVALUE")
	for _, n := range names {
		fmt.Fprintf(tw, "%s\t%s\n", n, m[n])
	}
	tw.Flush()

	if len(rep.Trades.ByReason) > 0 {
		fmt.Fprintln(w)
		reasons := make([]portfolio.ExitReason, 0, len(rep.Trades.ByReason))
		for r := range rep.Trades.ByReason {
			reasons = append(reasons, r)
		}
		sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })
		for _, r := range reasons {
			fmt.Fprintf(w, "exits by %s: %d\n", r, rep.Trades.ByReason[r])
		}
	}
}
