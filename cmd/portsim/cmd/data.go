package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/portsim/feed"
)

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Inspect and convert bar files",
}

var dataConvertCmd = &cobra.Command{
	Use:   "convert <in> <out>",
	Short: "Convert a bar file between CSV and Parquet",
	Long: `Convert reads bars from a .csv or .parquet file and writes them in the
format given by the output extension.

Example:
  portsim data convert data/spy.csv data/spy.parquet --symbol SPY`,
	Args: cobra.ExactArgs(2),
	RunE: runDataConvert,
}

var dataSymbolsCmd = &cobra.Command{
	Use:   "symbols <file.parquet>",
	Short: "List the symbols stored in a Parquet bar file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		syms, err := feed.Symbols(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(syms, "\n"))
		return nil
	},
}

var dataSymbol string

func init() {
	rootCmd.AddCommand(dataCmd)
	dataCmd.AddCommand(dataConvertCmd, dataSymbolsCmd)

	dataConvertCmd.Flags().StringVarP(&dataSymbol, "symbol", "s", "", "symbol to store or select (default: input file name)")
}

func runDataConvert(cmd *cobra.Command, args []string) error {
	in, out := args[0], args[1]

	symbol := dataSymbol
	if symbol == "" {
		symbol = feed.ParseSource(in).Name
	}
	sel := symbol
	if strings.EqualFold(filepath.Ext(in), ".parquet") && dataSymbol == "" {
		sel = ""
	}

	bars, err := feed.LoadBars(in, sel, time.Time{}, time.Time{}, log)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(out)) {
	case ".csv":
		err = feed.WriteCSV(out, bars)
	case ".parquet":
		err = feed.WriteParquet(out, symbol, bars)
	default:
		err = fmt.Errorf("unsupported output type %q", out)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bars to %s\n", len(bars), out)
	return nil
}
