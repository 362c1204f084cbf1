package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/portsim/config"
	"github.com/rustyeddy/portsim/internal/logging"
)

var (
	cfgPath   string
	logLevel  string
	logFormat string

	cfg *config.Config
	log *logrus.Entry
)

var rootCmd = &cobra.Command{
	Use:   "portsim",
	Short: "Portfolio and risk simulation over signal-annotated bar data",
	Long: `Portsim replays per-instrument bar series carrying strategy signals through
a cash ledger with position sizing, stop-loss, take-profit and trailing
stops, combines the instruments into one portfolio and reports performance
statistics.

It provides tools for:
  - Running a portfolio simulation over CSV or Parquet bar files
  - Parameter sweeps: grid search, Monte-Carlo sampling and walk-forward
  - Journaling trades, equity and run summaries to CSV or SQLite
  - Managing configuration files`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			c.Logging.Level = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			c.Logging.Format = logFormat
		}
		l, err := logging.New(c.Logging.Level, c.Logging.Format)
		if err != nil {
			return err
		}
		cfg = c
		log = logrus.NewEntry(l)
		return nil
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (YAML or JSON, optional)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug|info|warn|error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text|json")
}
