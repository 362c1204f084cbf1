package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/portsim/backtest"
	"github.com/rustyeddy/portsim/journal"
	"github.com/rustyeddy/portsim/pkg/id"
	"github.com/rustyeddy/portsim/stats"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Simulate a portfolio over signal-annotated bar files",
	Long: `Run splits the initial cash equally across the instruments, replays every
instrument's bars through its own ledger, sums the value series over the
dates all instruments share and reports performance statistics.

Bar files are CSV (time,open,high,low,close,signal[,position]) or Parquet.

Examples:
  portsim run -d SPY=data/spy.csv -d QQQ=data/qqq.csv -b data/benchmark.csv
  portsim run --dir data/ --from 2020-01-01 --json
  portsim run -c portsim.yaml --dir data/ --org reports/run.org`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var (
	runInputs    inputFlags
	runName      string
	runOrgPath   string
	runJSON      bool
	runLiquidate bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runInputs.register(runCmd.Flags())
	runCmd.Flags().StringVarP(&runName, "name", "n", "run", "run name recorded in the journal")
	runCmd.Flags().StringVar(&runOrgPath, "org", "", "write an Org-mode report to this path")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print metrics as JSON")
	runCmd.Flags().BoolVar(&runLiquidate, "liquidate", false, "close open positions after the last bar")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	instruments, bench, err := runInputs.load()
	if err != nil {
		return err
	}

	opts := simOptions()
	if cmd.Flags().Changed("liquidate") {
		opts.LiquidateAtEnd = runLiquidate
	}

	results, err := backtest.RunAll(ctx, instruments, cfg.Account.InitialCash, opts)
	if results == nil && err != nil {
		return err
	}
	if err != nil {
		log.WithError(err).Warn("some instruments failed")
	}

	agg := backtest.AttachBenchmark(backtest.Combine(results, log), bench)
	rep := stats.Compute(agg.Values, agg.Benchmark, agg.Trades, statsOptions())

	runID := id.New()
	rec := journal.NewRunRecord(runID, runName, cfg.Account.InitialCash, agg, rep)
	if rec.Config, err = json.Marshal(opts.Risk); err != nil {
		return fmt.Errorf("encode risk config: %w", err)
	}

	j, err := openJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()
	if err := journal.WriteRun(j, rec, agg); err != nil {
		return fmt.Errorf("journal run: %w", err)
	}

	if runOrgPath != "" {
		trades := make([]journal.TradeRecord, len(agg.Trades))
		for i, t := range agg.Trades {
			trades[i] = journal.FromTrade(runID, t)
		}
		if err := journal.WriteRunOrg(runOrgPath, rec, trades); err != nil {
			return fmt.Errorf("write org report: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	if runJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			RunID   string                 `json:"run_id"`
			Metrics map[string]stats.Value `json:"metrics"`
		}{runID, rep.Metrics()})
	}

	fmt.Fprintf(out, "Run %s (%s)\n", runID, runName)
	printInstruments(out, agg)
	fmt.Fprintln(out)
	printReport(out, rep)
	return nil
}
