package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/portsim/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the SQLite run journal",
	Long: `Query runs, trades and equity recorded in a SQLite journal.

Subcommands:
  runs    - List recorded runs
  show    - Render one run as an Org-mode report
  trade   - Get details of a specific trade by ID
  day     - List trades closed on a specific day
  equity  - Export a run's equity snapshots to Parquet

Examples:
  portsim journal runs
  portsim journal show 01J2Z3...
  portsim journal day 2024-01-15
  portsim journal equity 01J2Z3... -o equity.parquet`,
}

var journalRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs",
	Args:  cobra.NoArgs,
	RunE:  runJournalRuns,
}

var journalShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Render a run as an Org-mode report",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalShow,
}

var journalTradeCmd = &cobra.Command{
	Use:   "trade <trade-id>",
	Short: "Get details of a specific trade",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrade,
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List trades closed on a specific day (UTC)",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDay,
}

var journalEquityCmd = &cobra.Command{
	Use:   "equity <run-id>",
	Short: "Export a run's equity snapshots to Parquet",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalEquity,
}

var (
	journalDBPath     string
	journalEquityOut  string
	journalInstrument string
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalRunsCmd, journalShowCmd, journalTradeCmd, journalDayCmd, journalEquityCmd)

	journalCmd.PersistentFlags().StringVar(&journalDBPath, "db", "", "path to SQLite journal DB (default journal.db_path or ./portsim.sqlite)")
	journalEquityCmd.Flags().StringVarP(&journalEquityOut, "output", "o", "equity.parquet", "Parquet output path")
	journalEquityCmd.Flags().StringVarP(&journalInstrument, "instrument", "i", "", "only this instrument ('*' for the combined portfolio)")
}

func openSQLite() (*journal.SQLite, error) {
	path := journalDBPath
	if path == "" {
		path = cfg.Journal.DBPath
	}
	if path == "" {
		path = "./portsim.sqlite"
	}
	j, err := journal.NewSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return j, nil
}

func runJournalRuns(cmd *cobra.Command, args []string) error {
	j, err := openSQLite()
	if err != nil {
		return err
	}
	defer j.Close()

	runs, err := j.ListRuns(cmd.Context())
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tNAME\tCREATED\tTRADES\tFINAL VALUE\tTOTAL RETURN\tSHARPE")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.2f\t%s\t%s\n",
			r.RunID, r.Name, r.Created.Format("2006-01-02 15:04"), r.Trades, r.FinalValue, r.TotalReturn, r.Sharpe)
	}
	return tw.Flush()
}

func runJournalShow(cmd *cobra.Command, args []string) error {
	j, err := openSQLite()
	if err != nil {
		return err
	}
	defer j.Close()

	s, err := j.ExportRunOrg(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), s)
	return nil
}

func runJournalTrade(cmd *cobra.Command, args []string) error {
	j, err := openSQLite()
	if err != nil {
		return err
	}
	defer j.Close()

	rec, err := j.GetTrade(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("get trade: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradeOrg(rec))
	return nil
}

func runJournalDay(cmd *cobra.Command, args []string) error {
	j, err := openSQLite()
	if err != nil {
		return err
	}
	defer j.Close()

	start, end, err := dayBounds(time.UTC, args[0])
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}

	recs, err := j.ListTradesClosedBetween(cmd.Context(), start, end)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradesOrg(recs))
	return nil
}

func runJournalEquity(cmd *cobra.Command, args []string) error {
	j, err := openSQLite()
	if err != nil {
		return err
	}
	defer j.Close()

	snaps, err := j.ListEquityByRunID(cmd.Context(), args[0], journalInstrument)
	if err != nil {
		return fmt.Errorf("query equity: %w", err)
	}
	if len(snaps) == 0 {
		return fmt.Errorf("run %s has no equity rows", args[0])
	}
	if err := journal.WriteEquityParquet(journalEquityOut, snaps); err != nil {
		return fmt.Errorf("write parquet: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", len(snaps), journalEquityOut)
	return nil
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start, end, nil
}
