package notifications

import (
	"fmt"
	"strings"

	"github.com/ducminhle1904/crypto-signal-trader/pkg/types"
)

// SignalMessage announces a signal waiting for approval
func SignalMessage(s *types.Signal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New %s signal for *%s* (%.0f%% confidence)\n", s.Side, s.Symbol, s.Confidence)
	fmt.Fprintf(&b, "Entry: %g\nStop: %g\nTarget: %g\n", s.EntryPrice, s.StopLossPrice, s.TakeProfitPrice)
	if s.ExpiresAt != nil {
		fmt.Fprintf(&b, "Expires: %s\n", s.ExpiresAt.UTC().Format("2006-01-02 15:04 MST"))
	}
	fmt.Fprintf(&b, "ID: `%s`", s.ID)
	return b.String()
}

// TradeOpenedMessage announces an executed signal
func TradeOpenedMessage(t *types.Trade) string {
	msg := fmt.Sprintf("Opened %s %g *%s* @ %g\nStop: %g\nTarget: %g",
		t.Side, t.Quantity, t.Symbol, t.EntryPrice, t.StopLossPrice, t.TakeProfitPrice)
	if !t.HasFullProtection() {
		msg += "\nProtection incomplete, monitor will manage the exit"
	}
	return msg
}

// TradeClosedMessage reports a realised result
func TradeClosedMessage(t *types.Trade) string {
	var exit, pnl, pct float64
	if t.ExitPrice != nil {
		exit = *t.ExitPrice
	}
	if t.PnLAmount != nil {
		pnl = *t.PnLAmount
	}
	if t.PnLPercentage != nil {
		pct = *t.PnLPercentage
	}
	return fmt.Sprintf("Closed *%s* %s (%s) @ %g\nP&L: %.2f (%.2f%%)",
		t.Symbol, t.Side, t.Status, exit, pnl, pct)
}

// ProtectionMessage warns about a protective leg the venue refused
func ProtectionMessage(symbol, leg string, err error) string {
	return fmt.Sprintf("Protective %s order for *%s* was not placed: %v", leg, symbol, err)
}
