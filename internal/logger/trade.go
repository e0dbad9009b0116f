package logger

import (
	"go.uber.org/zap"

	"github.com/ducminhle1904/crypto-signal-trader/pkg/types"
)

// TradeFields returns the fields every trade log line carries
func TradeFields(t *types.Trade) []zap.Field {
	return []zap.Field{
		zap.String("trade_id", t.ID),
		zap.String("signal_id", t.SignalID),
		zap.String("symbol", t.Symbol),
		zap.String("side", string(t.Side)),
		zap.Float64("qty", t.Quantity),
		zap.Float64("entry", t.EntryPrice),
		zap.Float64("stop", t.StopLossPrice),
		zap.Float64("target", t.TakeProfitPrice),
	}
}

// TradeOpened logs a newly recorded position
func TradeOpened(log *zap.Logger, t *types.Trade) {
	fields := append(TradeFields(t),
		zap.String("entry_order_id", t.OrderIDs.Entry),
		zap.Bool("fully_protected", t.HasFullProtection()),
	)
	log.Info("trade opened", fields...)
}

// TradeClosed logs a closed position with its realised result
func TradeClosed(log *zap.Logger, t *types.Trade) {
	fields := append(TradeFields(t), zap.String("status", string(t.Status)))
	if t.ExitPrice != nil {
		fields = append(fields, zap.Float64("exit", *t.ExitPrice))
	}
	if t.PnLAmount != nil {
		fields = append(fields, zap.Float64("pnl", *t.PnLAmount))
	}
	if t.PnLPercentage != nil {
		fields = append(fields, zap.Float64("pnl_pct", *t.PnLPercentage))
	}
	log.Info("trade closed", fields...)
}

// ProtectionDegraded logs a protective leg that could not be placed.
// The position is live without that leg until the monitor closes it.
func ProtectionDegraded(log *zap.Logger, signalID, symbol, leg string, err error) {
	log.Warn("protection degraded",
		zap.String("signal_id", signalID),
		zap.String("symbol", symbol),
		zap.String("leg", leg),
		zap.Error(err),
	)
}
