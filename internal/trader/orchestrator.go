package trader

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	apperrors "github.com/ducminhle1904/crypto-signal-trader/internal/errors"
	"github.com/ducminhle1904/crypto-signal-trader/internal/exchange"
	"github.com/ducminhle1904/crypto-signal-trader/internal/logger"
	"github.com/ducminhle1904/crypto-signal-trader/internal/notifications"
	"github.com/ducminhle1904/crypto-signal-trader/internal/risk"
	"github.com/ducminhle1904/crypto-signal-trader/internal/store"
	"github.com/ducminhle1904/crypto-signal-trader/pkg/types"
)

// Protective leg names used in logs, metrics and results
const (
	LegStopLoss   = "stop_loss"
	LegTakeProfit = "take_profit"
)

// executionStore is the slice of the Store the orchestrator needs
type executionStore interface {
	GetTradeBySignal(ctx context.Context, signalID string) (*types.Trade, error)
	CreateTrade(ctx context.Context, c types.TradeCreate) (*types.Trade, error)
	UpdateTradeOrderIDs(ctx context.Context, id string, ids types.OrderIDs) error
	UpdateSignalStatus(ctx context.Context, id string, status types.SignalStatus, opts ...store.UpdateOption) (*types.Signal, error)
}

// Orchestrator turns one approved signal into a protected position:
// market entry, then a stop leg and a target leg, then the trade record.
type Orchestrator struct {
	store      executionStore
	exchange   exchange.Client
	sizer      *risk.Sizer
	quoteAsset string
	env
}

// NewOrchestrator wires the orchestrator. quoteAsset is the wallet asset whose
// available balance is treated as equity.
func NewOrchestrator(st executionStore, ex exchange.Client, sizer *risk.Sizer, quoteAsset string, opts ...Option) *Orchestrator {
	return &Orchestrator{
		store:      st,
		exchange:   ex,
		sizer:      sizer,
		quoteAsset: quoteAsset,
		env:        newEnv(opts),
	}
}

// Execute runs the entry and protection sequence for sig. A failure before the
// entry fills leaves no state behind and the signal stays APPROVED. Protective
// leg failures are tolerated and reported in Degraded.
func (o *Orchestrator) Execute(ctx context.Context, sig *types.Signal) SignalResult {
	ctx, span := o.tracer.Start(ctx, "orchestrator.Execute", trace.WithAttributes(
		attribute.String("signal.id", sig.ID),
		attribute.String("signal.symbol", sig.Symbol),
		attribute.String("signal.side", string(sig.Side)),
	))
	defer span.End()

	res := o.execute(ctx, sig)
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, string(res.Outcome))
	}
	span.SetAttributes(attribute.String("outcome", string(res.Outcome)))
	return res
}

func (o *Orchestrator) execute(ctx context.Context, sig *types.Signal) SignalResult {
	log := logger.WithTrace(ctx, o.log).With(
		zap.String("signal_id", sig.ID),
		zap.String("symbol", sig.Symbol),
		zap.String("side", string(sig.Side)),
	)
	res := SignalResult{SignalID: sig.ID, Symbol: sig.Symbol, Side: sig.Side}
	fail := func(err error) SignalResult {
		res.Outcome = SignalFailed
		res.Err = err
		return res
	}

	// A trade already recorded for this signal means a previous run stopped
	// between the trade write and the status update.
	existing, err := o.store.GetTradeBySignal(ctx, sig.ID)
	switch {
	case err == nil:
		log.Warn("trade already recorded for signal, repairing status", zap.String("trade_id", existing.ID))
		if err := o.markExecuted(ctx, sig.ID); err != nil {
			return fail(err)
		}
		res.Outcome = SignalAlreadyExecuted
		res.TradeID = existing.ID
		return res
	case !errors.Is(err, store.ErrNotFound):
		return fail(apperrors.NewStorageError("orchestrator", "lookup trade", err))
	}

	balance, err := o.exchange.GetBalance(ctx, o.quoteAsset)
	if err != nil {
		return fail(apperrors.NewExchangeError("orchestrator", "get balance", err))
	}
	equity := balance.Available

	qty, err := o.sizer.Size(equity, sig.EntryPrice, sig.StopLossPrice)
	if err != nil {
		return fail(apperrors.WrapError(err, apperrors.ErrorCategoryValidation, "orchestrator", "size position"))
	}
	qty, err = o.exchange.RoundQuantity(ctx, sig.Symbol, qty)
	if err != nil {
		return fail(apperrors.NewExchangeError("orchestrator", "round quantity", err))
	}
	if qty <= 0 {
		return fail(apperrors.WrapError(risk.ErrQuantityTooSmall, apperrors.ErrorCategoryValidation, "orchestrator", "round quantity").
			WithContext("equity", equity))
	}
	log.Info("position sized", zap.Float64("equity", equity), zap.Float64("qty", qty))

	order, err := o.exchange.CreateMarketOrder(ctx, sig.Symbol, sig.Side, qty)
	if err != nil {
		log.Error("entry order failed", zap.Float64("qty", qty), zap.Error(err))
		return fail(apperrors.NewOrderError("orchestrator", "place entry", err).WithRetryable(exchange.IsRetryable(err)))
	}

	entry := order.AvgFillPrice
	if entry <= 0 {
		log.Warn("venue did not report a fill price, using signal entry",
			zap.String("order_id", order.OrderID),
			zap.Float64("entry", sig.EntryPrice),
		)
		entry = sig.EntryPrice
	}
	if order.FilledQty > 0 && order.FilledQty != qty {
		log.Warn("partial fill", zap.Float64("requested", qty), zap.Float64("filled", order.FilledQty))
		qty = order.FilledQty
	}

	ids := types.OrderIDs{Entry: order.OrderID}
	exitSide := sig.Side.Opposite()

	ids.StopLoss, err = o.exchange.CreateStopOrder(ctx, sig.Symbol, exitSide, qty, sig.StopLossPrice)
	if err != nil {
		o.degraded(log, &res, sig, LegStopLoss, err)
	}
	ids.TakeProfit, err = o.exchange.CreateTakeProfitOrder(ctx, sig.Symbol, exitSide, qty, sig.TakeProfitPrice)
	if err != nil {
		o.degraded(log, &res, sig, LegTakeProfit, err)
	}

	create := types.TradeCreate{
		SignalID:        sig.ID,
		Symbol:          sig.Symbol,
		Side:            sig.Side,
		EntryPrice:      entry,
		Quantity:        qty,
		StopLossPrice:   sig.StopLossPrice,
		TakeProfitPrice: sig.TakeProfitPrice,
	}
	if !create.WithinBracket() {
		log.Warn("fill landed outside the protective bracket", zap.Float64("entry", entry))
	}

	trade, err := o.store.CreateTrade(ctx, create)
	if err != nil {
		// The position is live on the venue without a record
		log.Error("failed to record trade for filled order",
			zap.String("order_id", order.OrderID),
			zap.Float64("qty", qty),
			zap.Error(err),
		)
		return fail(apperrors.NewStorageError("orchestrator", "create trade", err).
			WithContext("order_id", order.OrderID))
	}
	if err := o.store.UpdateTradeOrderIDs(ctx, trade.ID, ids); err != nil {
		return fail(apperrors.NewStorageError("orchestrator", "attach order ids", err).
			WithContext("trade_id", trade.ID))
	}
	trade.OrderIDs = ids

	if err := o.markExecuted(ctx, sig.ID); err != nil {
		return fail(err)
	}

	logger.TradeOpened(log, trade)
	o.metrics.RecordTradeOpened(trade.Symbol, string(trade.Side))
	o.notify(notifications.LevelSuccess, notifications.TradeOpenedMessage(trade))

	res.Outcome = SignalExecuted
	res.TradeID = trade.ID
	res.Quantity = qty
	res.EntryPrice = entry
	return res
}

// degraded records a protective leg the venue refused. The trade is still
// recorded and the monitor enforces the missing exit.
func (o *Orchestrator) degraded(log *zap.Logger, res *SignalResult, sig *types.Signal, leg string, err error) {
	logger.ProtectionDegraded(log, sig.ID, sig.Symbol, leg, apperrors.NewProtectionError("orchestrator", "place "+leg, err))
	o.metrics.RecordProtectionDegraded(leg)
	o.notify(notifications.LevelWarning, notifications.ProtectionMessage(sig.Symbol, leg, err))
	res.Degraded = append(res.Degraded, leg)
}

func (o *Orchestrator) markExecuted(ctx context.Context, signalID string) error {
	_, err := o.store.UpdateSignalStatus(ctx, signalID, types.SignalStatusExecuted)
	if err == nil {
		return nil
	}
	if errors.Is(err, types.ErrInvalidTransition) {
		// Already EXECUTED, or moved on by an operator
		o.log.Warn("signal status not updated", zap.String("signal_id", signalID), zap.Error(err))
		return nil
	}
	return apperrors.NewStorageError("orchestrator", "mark executed", fmt.Errorf("signal %s: %w", signalID, err))
}
