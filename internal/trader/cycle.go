package trader

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	apperrors "github.com/ducminhle1904/crypto-signal-trader/internal/errors"
	"github.com/ducminhle1904/crypto-signal-trader/internal/exchange"
	"github.com/ducminhle1904/crypto-signal-trader/internal/logger"
	"github.com/ducminhle1904/crypto-signal-trader/internal/risk"
	"github.com/ducminhle1904/crypto-signal-trader/internal/store"
	"github.com/ducminhle1904/crypto-signal-trader/pkg/types"
)

// Settings are the cycle parameters taken from the trading config
type Settings struct {
	MaxOpenPositions int
	QuoteAsset       string
}

// Cycle runs one pass of the pipeline: expiry sweep, admission and execution
// of approved signals, monitoring of open trades and a portfolio resync.
// Every step reads the store afresh, so rerunning with nothing new is a no-op.
type Cycle struct {
	store        store.Store
	exchange     exchange.Client
	gate         *Gate
	orchestrator *Orchestrator
	monitor      *Monitor
	quoteAsset   string
	env
}

// NewCycle wires the gate, orchestrator and monitor around one store and venue
func NewCycle(st store.Store, ex exchange.Client, sizer *risk.Sizer, settings Settings, opts ...Option) *Cycle {
	return &Cycle{
		store:        st,
		exchange:     ex,
		gate:         NewGate(st, settings.MaxOpenPositions, opts...),
		orchestrator: NewOrchestrator(st, ex, sizer, settings.QuoteAsset, opts...),
		monitor:      NewMonitor(st, ex, opts...),
		quoteAsset:   settings.QuoteAsset,
		env:          newEnv(opts),
	}
}

// Run executes one cycle. Unit failures are captured in the report and the
// cycle moves on. An error is returned only when a failure calls for the
// cycle to stop, in which case the report holds the progress made so far.
func (c *Cycle) Run(ctx context.Context) (*Report, error) {
	ctx, span := c.tracer.Start(ctx, "cycle.Run")
	defer span.End()

	report := &Report{StartedAt: c.now()}
	err := c.run(ctx, report)
	report.FinishedAt = c.now()

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "fatal"
	case len(report.Errors) > 0:
		outcome = "degraded"
	}
	c.metrics.RecordCycle(outcome, report.Duration())
	span.SetAttributes(
		attribute.String("outcome", outcome),
		attribute.Int("signals", len(report.Signals)),
		attribute.Int("trades", len(report.Trades)),
	)

	log := logger.WithTrace(ctx, c.log)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cycle stopped")
		log.Error("cycle stopped", zap.Error(err))
		return report, err
	}
	log.Info("cycle finished",
		zap.String("outcome", outcome),
		zap.Int("expired", report.Expired),
		zap.Int("executed", report.Executed()),
		zap.Int("closed", report.Closed()),
		zap.Int("open", report.OpenPositions),
		zap.Int("errors", len(report.Errors)),
		zap.Duration("took", report.Duration()),
	)
	return report, nil
}

func (c *Cycle) run(ctx context.Context, r *Report) error {
	expired, err := c.store.ExpireSignals(ctx, c.now())
	if err != nil {
		if fatal := c.tolerate(r, "expiry", apperrors.NewStorageError("cycle", "expire signals", err)); fatal != nil {
			return fatal
		}
	}
	r.Expired = expired

	if err := c.processSignals(ctx, r); err != nil {
		return err
	}
	if err := c.monitorTrades(ctx, r); err != nil {
		return err
	}

	snap, err := c.SyncPortfolio(ctx)
	if err != nil {
		if fatal := c.tolerate(r, "portfolio", err); fatal != nil {
			return fatal
		}
	}
	r.Portfolio = snap

	open, err := c.store.GetOpenTradeCount(ctx)
	if err != nil {
		return c.tolerate(r, "open count", apperrors.NewStorageError("cycle", "count open trades", err))
	}
	r.OpenPositions = open
	c.metrics.SetOpenPositions(open)
	return nil
}

// processSignals walks approved signals in creation order through the gate
// and the orchestrator
func (c *Cycle) processSignals(ctx context.Context, r *Report) error {
	signals, err := c.store.GetApprovedSignals(ctx)
	if err != nil {
		return c.tolerate(r, "signals", apperrors.NewStorageError("cycle", "list approved signals", err))
	}

	for _, sig := range signals {
		if err := ctx.Err(); err != nil {
			c.tolerate(r, "signals", err)
			return err
		}

		res := SignalResult{SignalID: sig.ID, Symbol: sig.Symbol, Side: sig.Side}
		admission, err := c.gate.Admit(ctx, sig)
		switch {
		case err != nil:
			res.Outcome = SignalFailed
			res.Err = err
		case admission == Admitted:
			res = c.orchestrator.Execute(ctx, sig)
		case admission == Deferred:
			res.Outcome = SignalDeferred
		case admission == Expired:
			res.Outcome = SignalExpired
		default:
			continue
		}

		c.metrics.RecordSignal(string(res.Outcome))
		r.Signals = append(r.Signals, res)
		if res.Err != nil {
			if fatal := c.tolerate(r, "signal "+sig.ID, res.Err); fatal != nil {
				return fatal
			}
		}
	}
	return nil
}

// monitorTrades checks every open trade, including the ones opened this cycle
func (c *Cycle) monitorTrades(ctx context.Context, r *Report) error {
	trades, err := c.store.GetOpenTrades(ctx)
	if err != nil {
		return c.tolerate(r, "trades", apperrors.NewStorageError("cycle", "list open trades", err))
	}

	for _, t := range trades {
		if err := ctx.Err(); err != nil {
			c.tolerate(r, "trades", err)
			return err
		}
		res := c.monitor.Check(ctx, t)
		r.Trades = append(r.Trades, res)
		if res.Err != nil {
			if fatal := c.tolerate(r, "trade "+t.ID, res.Err); fatal != nil {
				return fatal
			}
		}
	}
	return nil
}

// SyncPortfolio reads the quote asset balance and appends a snapshot
func (c *Cycle) SyncPortfolio(ctx context.Context) (*types.PortfolioSnapshot, error) {
	ctx, span := c.tracer.Start(ctx, "cycle.SyncPortfolio")
	defer span.End()

	balance, err := c.exchange.GetBalance(ctx, c.quoteAsset)
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.NewExchangeError("cycle", "get balance", err)
	}
	if balance.Asset == "" {
		balance.Asset = c.quoteAsset
	}

	snap, err := types.NewPortfolioSnapshot(*balance, c.now())
	if err != nil {
		return nil, apperrors.WrapError(err, apperrors.ErrorCategoryValidation, "cycle", "build snapshot")
	}
	if err := c.store.UpdatePortfolio(ctx, snap); err != nil {
		span.RecordError(err)
		return nil, apperrors.NewStorageError("cycle", "update portfolio", err)
	}
	c.metrics.UpdateBalance(snap.Asset, snap.TotalBalance, snap.AvailableBalance, snap.LockedBalance)
	span.SetAttributes(attribute.Float64("balance.total", snap.TotalBalance))
	return &snap, nil
}

// tolerate records a unit failure. It returns the categorised error when the
// failure stops the cycle and nil when the cycle can carry on.
func (c *Cycle) tolerate(r *Report, unit string, err error) error {
	botErr := r.record(unit, err, "cycle", unit)
	c.metrics.RecordError(string(botErr.Category))

	if botErr.GetRecoveryAction() == apperrors.RecoveryActionStop {
		return botErr
	}
	c.log.Warn("unit failed, continuing",
		zap.String("unit", unit),
		zap.String("category", string(botErr.Category)),
		zap.String("action", string(botErr.GetRecoveryAction())),
		zap.Error(err),
	)
	return nil
}
