// trader runs approved crypto trading signals against Bybit with a fixed
// fractional risk, a protective bracket and a position ceiling.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ducminhle1904/crypto-signal-trader/cmd/common"
)

var (
	configPath string
	envFile    string
	logLevel   string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "trader",
		Short: "Signal-driven crypto trader",
		Long: `trader turns human-approved trading signals into bracketed Bybit
positions, watches them until the stop or target is reached and keeps a
journal of every signal, trade and balance snapshot.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return common.LoadEnvFile(envFile, cmd.Flags().Changed("env"))
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "trader", "Config file path, or a name under configs/")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "Environment file with API credentials")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(cycleCmd())
	rootCmd.AddCommand(signalsCmd())
	rootCmd.AddCommand(tradesCmd())
	rootCmd.AddCommand(portfolioCmd())
	rootCmd.AddCommand(exportCmd())

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			common.PrintVersion(cmd.OutOrStdout(), "trader")
		},
	}
}
