package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ducminhle1904/crypto-signal-trader/internal/api"
	"github.com/ducminhle1904/crypto-signal-trader/internal/monitoring"
	"github.com/ducminhle1904/crypto-signal-trader/internal/notifications"
	"github.com/ducminhle1904/crypto-signal-trader/internal/trader"
	"github.com/ducminhle1904/crypto-signal-trader/pkg/reporting"
)

func runCmd() *cobra.Command {
	var noServer bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run trading cycles on the configured interval",
		Long: `Run a trading cycle immediately and then every cycle_interval until
interrupted. Each cycle expires stale signals, executes approved ones within
the position ceiling, closes positions whose stop or target was reached and
syncs the wallet balance. The status API serves health, metrics and signal
approval unless --no-server is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.enableTracing(); err != nil {
				return err
			}

			cycle, err := a.newCycle()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			interval := a.cfg.Trading.CycleInterval
			health := monitoring.NewHealthChecker(3 * interval)
			runner := trader.NewRunner(cycle, interval, health, a.options()...)
			runner.OnReport(func(r *trader.Report, err error) {
				a.log.Info("cycle report",
					zap.Int("executed", r.Executed()),
					zap.Int("closed", r.Closed()),
					zap.Int("open_positions", r.OpenPositions),
					zap.Strings("unit_errors", r.UnitErrors()),
				)
			})

			var srv *api.Server
			serverErr := make(chan error, 1)
			if a.cfg.Server.Enabled && !noServer {
				srv = api.NewServer(a.cfg.Server.Addr, a.store, a.approvals(), health, a.metrics, a.log.Logger)
				go func() { serverErr <- srv.ListenAndServe() }()
			}

			notify(a, notifications.LevelInfo, fmt.Sprintf("Trader started (%s, every %s)", a.cfg.Exchange.Category, interval))

			runErr := make(chan error, 1)
			go func() { runErr <- runner.Run(ctx) }()

			select {
			case err = <-runErr:
			case err = <-serverErr:
				if err != nil {
					err = fmt.Errorf("status API: %w", err)
				}
				stop()
				if rerr := <-runErr; err == nil {
					err = rerr
				}
			}

			if srv != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if serr := srv.Shutdown(shutdownCtx); serr != nil {
					a.log.Warn("status API shutdown failed", zap.Error(serr))
				}
			}

			if err != nil {
				notify(a, notifications.LevelError, fmt.Sprintf("Trader stopped: %v", err))
				return err
			}
			notify(a, notifications.LevelInfo, "Trader stopped")
			return nil
		},
	}

	cmd.Flags().BoolVar(&noServer, "no-server", false, "Do not start the status API")
	return cmd
}

func cycleCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Run a single trading cycle and print its report",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(asJSON)
			if err != nil {
				return err
			}
			defer a.close()

			cycle, err := a.newCycle()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			report, runErr := cycle.Run(ctx)
			if asJSON {
				if err := reporting.WriteJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
			} else {
				reporting.NewDefaultConsoleReporter(cmd.OutOrStdout()).PrintCycleReport(report)
			}
			if runErr != nil {
				return fmt.Errorf("cycle stopped: %w", runErr)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

func notify(a *app, level, message string) {
	if err := a.notifier.SendAlert(level, message); err != nil {
		a.log.Warn("notification failed", zap.Error(err))
	}
}
