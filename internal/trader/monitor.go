package trader

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	apperrors "github.com/ducminhle1904/crypto-signal-trader/internal/errors"
	"github.com/ducminhle1904/crypto-signal-trader/internal/exchange"
	"github.com/ducminhle1904/crypto-signal-trader/internal/logger"
	"github.com/ducminhle1904/crypto-signal-trader/internal/notifications"
	"github.com/ducminhle1904/crypto-signal-trader/pkg/types"
)

// closingStore is the slice of the Store the monitor writes to
type closingStore interface {
	CloseTrade(ctx context.Context, id string, c types.TradeClose) (*types.Trade, error)
}

// Monitor enforces the exits of open trades. It works the same whether or not
// the protective legs were accepted by the venue.
type Monitor struct {
	store  closingStore
	closer exchange.PositionCloser
	env
}

// NewMonitor wires the monitor
func NewMonitor(st closingStore, closer exchange.PositionCloser, opts ...Option) *Monitor {
	return &Monitor{store: st, closer: closer, env: newEnv(opts)}
}

// ExitCondition tests the stop first, so a price that gapped through both
// thresholds counts as stopped out. It returns the closing status and the
// trigger price, or false when the trade should stay open.
func ExitCondition(t *types.Trade, price float64) (types.TradeStatus, float64, bool) {
	switch t.Side {
	case types.SideBuy:
		if price <= t.StopLossPrice {
			return types.TradeStatusStoppedOut, t.StopLossPrice, true
		}
		if price >= t.TakeProfitPrice {
			return types.TradeStatusTakeProfit, t.TakeProfitPrice, true
		}
	case types.SideSell:
		if price >= t.StopLossPrice {
			return types.TradeStatusStoppedOut, t.StopLossPrice, true
		}
		if price <= t.TakeProfitPrice {
			return types.TradeStatusTakeProfit, t.TakeProfitPrice, true
		}
	}
	return "", 0, false
}

// Check evaluates one open trade against the current price and closes it when
// an exit condition holds
func (m *Monitor) Check(ctx context.Context, t *types.Trade) TradeResult {
	ctx, span := m.tracer.Start(ctx, "monitor.Check", trace.WithAttributes(
		attribute.String("trade.id", t.ID),
		attribute.String("trade.symbol", t.Symbol),
	))
	defer span.End()

	res := m.check(ctx, t)
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, string(res.Action))
	}
	span.SetAttributes(attribute.String("action", string(res.Action)))
	return res
}

func (m *Monitor) check(ctx context.Context, t *types.Trade) TradeResult {
	log := logger.WithTrace(ctx, m.log).With(zap.String("trade_id", t.ID), zap.String("symbol", t.Symbol))
	res := TradeResult{TradeID: t.ID, Symbol: t.Symbol, Side: t.Side}

	price, err := m.closer.GetCurrentPrice(ctx, t.Symbol)
	if err != nil {
		log.Warn("price unavailable, skipping trade", zap.Error(err))
		res.Action = TradePriceUnavailable
		res.Err = apperrors.NewExchangeError("monitor", "get price", err)
		return res
	}
	res.Price = price
	m.metrics.UpdatePrice(t.Symbol, price)

	status, exit, hit := ExitCondition(t, price)
	if !hit {
		log.Debug("no exit condition", zap.Float64("price", price))
		res.Action = TradeHeld
		return res
	}
	log.Info("exit condition met",
		zap.String("status", string(status)),
		zap.Float64("price", price),
		zap.Float64("trigger", exit),
	)

	// Spot TP/SL legs reserve the base asset, so they come off before the close
	m.cancelLegs(ctx, log, t)

	if _, err := m.closer.CreateMarketOrder(ctx, t.Symbol, t.Side.Opposite(), t.Quantity); err != nil {
		if !errors.Is(err, exchange.ErrInsufficientBalance) {
			log.Error("close order failed, trade stays open without venue protection", zap.Error(err))
			res.Action = TradeFailed
			res.Err = apperrors.NewPositionError("monitor", "close position", err).WithRetryable(true)
			return res
		}
		// Nothing left to sell: a protective leg already flattened the position
		log.Warn("position already flat on venue", zap.Error(err))
	}

	pnl, pct := types.CalculatePnL(t.Side, t.EntryPrice, exit, t.Quantity)
	closed, err := m.store.CloseTrade(ctx, t.ID, types.TradeClose{
		ExitPrice:     exit,
		Status:        status,
		PnLAmount:     pnl,
		PnLPercentage: pct,
		ClosedAt:      m.now(),
	})
	if err != nil {
		res.Action = TradeFailed
		if errors.Is(err, types.ErrTradeClosed) {
			res.Err = apperrors.WrapError(err, apperrors.ErrorCategoryValidation, "monitor", "close trade")
		} else {
			res.Err = apperrors.NewStorageError("monitor", "close trade", err)
		}
		return res
	}

	logger.TradeClosed(log, closed)
	m.metrics.RecordTradeClosed(closed.Symbol, string(closed.Status), pnl)
	level := notifications.LevelSuccess
	if status == types.TradeStatusStoppedOut {
		level = notifications.LevelWarning
	}
	m.notify(level, notifications.TradeClosedMessage(closed))

	res.Action = TradeTookProfit
	if status == types.TradeStatusStoppedOut {
		res.Action = TradeStoppedOut
	}
	res.ExitPrice = exit
	res.PnL = pnl
	res.PnLPct = pct
	return res
}

// cancelLegs pulls the protective orders still resting on the book.
// A leg that already fired or was never placed is skipped or fails quietly.
func (m *Monitor) cancelLegs(ctx context.Context, log *zap.Logger, t *types.Trade) {
	legs := []struct{ name, id string }{
		{LegStopLoss, t.OrderIDs.StopLoss},
		{LegTakeProfit, t.OrderIDs.TakeProfit},
	}
	for _, leg := range legs {
		if leg.id == "" {
			continue
		}
		if err := m.closer.CancelOrder(ctx, t.Symbol, leg.id); err != nil {
			log.Debug("cancel protective leg failed", zap.String("leg", leg.name), zap.String("order_id", leg.id), zap.Error(err))
		}
	}
}
