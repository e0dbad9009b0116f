package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ducminhle1904/crypto-signal-trader/pkg/reporting"
	"github.com/ducminhle1904/crypto-signal-trader/pkg/types"
)

func signalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "signals",
		Aliases: []string{"signal"},
		Short:   "Submit, review and decide trading signals",
	}

	cmd.AddCommand(signalsListCmd())
	cmd.AddCommand(signalsShowCmd())
	cmd.AddCommand(signalsSubmitCmd())
	cmd.AddCommand(signalsDecideCmd("approve"))
	cmd.AddCommand(signalsDecideCmd("reject"))
	cmd.AddCommand(signalsExpireCmd())
	return cmd
}

func signalsListCmd() *cobra.Command {
	var status string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List signals, optionally by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.close()

			var statuses []types.SignalStatus
			if status != "" {
				s, err := types.ParseSignalStatus(status)
				if err != nil {
					return err
				}
				statuses = append(statuses, s)
			}
			signals, err := a.store.ListSignals(cmd.Context(), statuses...)
			if err != nil {
				return err
			}
			if asJSON {
				return reporting.WriteJSON(cmd.OutOrStdout(), signals)
			}
			reporting.NewDefaultConsoleReporter(cmd.OutOrStdout()).PrintSignals(signals)
			return nil
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", "PENDING, APPROVED, REJECTED, EXECUTED or EXPIRED")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func signalsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one signal as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.close()

			sig, err := a.store.GetSignal(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return reporting.WriteJSON(cmd.OutOrStdout(), sig)
		},
	}
}

func signalsSubmitCmd() *cobra.Command {
	var (
		file    string
		in      types.SignalCreate
		side    string
		summary string
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Record a new PENDING signal",
		Long: `Record a new PENDING signal from flags or from a YAML file.
A missing stop or target is derived from the entry price.

Example:
  trader signals submit --symbol BTCUSDT --side BUY --confidence 92 --entry 64000
  trader signals submit --file signal.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				in = types.SignalCreate{}
				if err := yaml.Unmarshal(data, &in); err != nil {
					return fmt.Errorf("failed to parse signal file: %w", err)
				}
			} else {
				parsed, err := types.ParseSide(side)
				if err != nil {
					return err
				}
				in.Side = parsed
				in.AnalysisSummary = summary
			}

			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.close()

			sig, err := a.approvals().Submit(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signal %s recorded: %s %s entry %s stop %s target %s (expires %s)\n",
				sig.ID, sig.Side, sig.Symbol,
				strconv.FormatFloat(sig.EntryPrice, 'f', -1, 64),
				strconv.FormatFloat(sig.StopLossPrice, 'f', -1, 64),
				strconv.FormatFloat(sig.TakeProfitPrice, 'f', -1, 64),
				expiry(sig))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file describing the signal")
	cmd.Flags().StringVar(&in.Symbol, "symbol", "", "Trading pair, e.g. BTCUSDT")
	cmd.Flags().StringVar(&side, "side", "", "BUY or SELL")
	cmd.Flags().Float64Var(&in.Confidence, "confidence", 0, "Confidence score 0-100")
	cmd.Flags().Float64Var(&in.EntryPrice, "entry", 0, "Entry price")
	cmd.Flags().Float64Var(&in.StopLossPrice, "stop", 0, "Stop-loss price")
	cmd.Flags().Float64Var(&in.TakeProfitPrice, "target", 0, "Take-profit price")
	cmd.Flags().StringVar(&summary, "summary", "", "Analysis summary")
	cmd.MarkFlagsMutuallyExclusive("file", "symbol")
	return cmd
}

func expiry(sig *types.Signal) string {
	if sig.ExpiresAt == nil {
		return "never"
	}
	return sig.ExpiresAt.UTC().Format("2006-01-02 15:04 MST")
}

func signalsDecideCmd(decision string) *cobra.Command {
	var by string

	cmd := &cobra.Command{
		Use:   decision + " <id>",
		Short: "Mark a PENDING signal as " + decision + "d",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.close()

			svc := a.approvals()
			var sig *types.Signal
			if decision == "approve" {
				sig, err = svc.Approve(cmd.Context(), args[0], by)
			} else {
				sig, err = svc.Reject(cmd.Context(), args[0], by)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signal %s is now %s\n", sig.ID, sig.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&by, "by", defaultOperator(), "Who made the decision")
	return cmd
}

func signalsExpireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expire",
		Short: "Expire PENDING and APPROVED signals past their deadline",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.approvals().Expire(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d signal(s) expired\n", n)
			return nil
		},
	}
}

func defaultOperator() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "cli"
}
