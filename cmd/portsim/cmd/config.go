package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/portsim/backtest"
	"github.com/rustyeddy/portsim/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage configuration files for portfolio simulations.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file
  params   - List the risk parameters a sweep can vary

Examples:
  portsim config init -o portsim.yaml
  portsim config validate -f portsim.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

var configParamsCmd = &cobra.Command{
	Use:   "params",
	Short: "List sweepable risk parameters",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(backtest.AxisNames(), "\n"))
	},
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configValidateCmd, configParamsCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "portsim.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	c := config.Default()
	if err := c.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created default configuration: %s\n", configInitOutput)
	fmt.Fprintln(out, "\nEdit the file and run with:")
	fmt.Fprintf(out, "  portsim run -c %s --dir data/\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	c, err := config.LoadFromFile(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration valid: %s\n", configValidatePath)
	fmt.Fprintf(out, "  Account: %s (%.2f %s)\n", c.Account.ID, c.Account.InitialCash, c.Account.Currency)
	fmt.Fprintf(out, "  Sizing: max %.1f%%, stop %.1f%%, target %.1fR, trailing %v\n",
		c.Risk.MaxPositionSizePct*100, c.Risk.StopLossPct*100, c.Risk.ProfitTargetRatio, c.Risk.UseTrailingStop)
	fmt.Fprintf(out, "  Journal: %s\n", c.Journal.Type)
	return nil
}
