package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ducminhle1904/crypto-signal-trader/pkg/reporting"
	"github.com/ducminhle1904/crypto-signal-trader/pkg/types"
)

func tradesCmd() *cobra.Command {
	var status string
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "trades",
		Aliases: []string{"trade"},
		Short:   "List trades with a performance summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.close()

			var statuses []types.TradeStatus
			if status != "" {
				s, err := types.ParseTradeStatus(status)
				if err != nil {
					return err
				}
				statuses = append(statuses, s)
			}
			trades, err := a.store.ListTrades(cmd.Context(), statuses...)
			if err != nil {
				return err
			}

			if asJSON {
				return reporting.WriteJSON(cmd.OutOrStdout(), trades)
			}
			console := reporting.NewDefaultConsoleReporter(cmd.OutOrStdout())
			console.PrintTrades(trades)
			console.PrintSummary(reporting.Summarize(trades))
			return nil
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", "OPEN, CLOSED, STOPPED_OUT or TAKE_PROFIT")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func portfolioCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Show the synced balance history, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.close()

			snaps, err := a.store.ListPortfolio(cmd.Context(), limit)
			if err != nil {
				return err
			}
			reporting.NewDefaultConsoleReporter(cmd.OutOrStdout()).PrintPortfolio(snaps)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Snapshots to show, 0 for all")
	return cmd
}

func exportCmd() *cobra.Command {
	var (
		format string
		out    string
		dir    string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the trade journal to xlsx, csv or json",
		Long: `Export every trade and the balance history. Without --out the file is
written to <dir>/journal_YYYYMMDD_HHMMSS.<format>; with --out the format
follows the file extension.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			trades, err := a.store.ListTrades(ctx)
			if err != nil {
				return err
			}
			snaps, err := a.store.ListPortfolio(ctx, 0)
			if err != nil {
				return err
			}

			reporter := reporting.NewDefaultReporter(cmd.OutOrStdout(), dir)
			path := out
			if path == "" {
				path = reporter.Paths().JournalPath(time.Now(), format)
			}
			if err := reporter.Paths().EnsureDirectoryExists(path); err != nil {
				return err
			}
			if err := reporter.Export(reporting.Journal{Trades: trades, Portfolio: snaps}, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d trade(s) and %d snapshot(s) to %s\n", len(trades), len(snaps), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "xlsx", "xlsx, csv or json")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file")
	cmd.Flags().StringVar(&dir, "dir", "results", "Output directory when --out is not set")
	return cmd
}
