package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/ducminhle1904/crypto-signal-trader/internal/approval"
	"github.com/ducminhle1904/crypto-signal-trader/internal/config"
	"github.com/ducminhle1904/crypto-signal-trader/internal/exchange"
	"github.com/ducminhle1904/crypto-signal-trader/internal/exchange/adapters"
	"github.com/ducminhle1904/crypto-signal-trader/internal/logger"
	"github.com/ducminhle1904/crypto-signal-trader/internal/monitoring"
	"github.com/ducminhle1904/crypto-signal-trader/internal/notifications"
	"github.com/ducminhle1904/crypto-signal-trader/internal/risk"
	"github.com/ducminhle1904/crypto-signal-trader/internal/store"
	"github.com/ducminhle1904/crypto-signal-trader/internal/telemetry"
	"github.com/ducminhle1904/crypto-signal-trader/internal/trader"
)

// app holds the components every subcommand shares
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	store    store.Store
	metrics  *monitoring.Metrics
	notifier notifications.Notifier
	tracing  *telemetry.Provider
}

// newApp loads the configuration and opens the store. Quiet commands keep
// the console free for tables and JSON and log to the file only.
func newApp(quiet bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if quiet {
		cfg.Logging.Console = false
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	st, err := store.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		store:    st,
		metrics:  monitoring.NewMetrics(),
		notifier: notifications.Nop{},
		tracing:  telemetry.Noop(),
	}
	if cfg.Notifications.Enabled {
		a.notifier = notifications.NewTelegramNotifier(cfg.Notifications.TelegramToken, cfg.Notifications.TelegramChat)
	}
	return a, nil
}

// enableTracing switches span export on for long-running commands
func (a *app) enableTracing() error {
	provider, err := telemetry.Setup(a.cfg.Tracing, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracing = provider
	return nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tracing.Shutdown(ctx); err != nil {
		a.log.Warn("failed to flush spans", zap.Error(err))
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("failed to close store", zap.Error(err))
	}
	a.log.Close()
}

func (a *app) options() []trader.Option {
	return []trader.Option{
		trader.WithLogger(a.log.Logger),
		trader.WithTracer(a.tracing.Tracer()),
		trader.WithMetrics(a.metrics),
		trader.WithNotifier(a.notifier),
	}
}

func (a *app) approvals() *approval.Service {
	t := a.cfg.Trading
	return approval.NewService(a.store, approval.Policy{
		MinConfidence: t.MinConfidence,
		StopLossPct:   t.StopLossPct,
		TakeProfitPct: t.TakeProfitPct,
		Expiry:        t.SignalExpiry,
	}, a.log.Logger, a.notifier)
}

func (a *app) exchangeClient() (exchange.Client, error) {
	if err := a.cfg.ValidateExchange(); err != nil {
		return nil, err
	}
	return adapters.NewFactory().CreateExchange(a.cfg.Exchange, a.log.Logger)
}

// newCycle wires the trading pipeline against the configured venue
func (a *app) newCycle() (*trader.Cycle, error) {
	ex, err := a.exchangeClient()
	if err != nil {
		return nil, err
	}
	sizer, err := risk.NewSizer(a.cfg.Trading.RiskPerTrade, a.cfg.Trading.PositionSafetyCap)
	if err != nil {
		return nil, err
	}

	a.log.Info("trading pipeline ready",
		zap.String("exchange", ex.GetName()),
		zap.String("category", a.cfg.Exchange.Category),
		zap.Float64("risk_per_trade", a.cfg.Trading.RiskPerTrade),
		zap.Int("max_open_positions", a.cfg.Trading.MaxOpenPositions),
	)
	return trader.NewCycle(a.store, ex, sizer, trader.Settings{
		MaxOpenPositions: a.cfg.Trading.MaxOpenPositions,
		QuoteAsset:       a.cfg.Trading.QuoteAsset,
	}, a.options()...), nil
}
