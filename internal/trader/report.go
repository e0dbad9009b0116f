package trader

import (
	"fmt"
	"time"

	apperrors "github.com/ducminhle1904/crypto-signal-trader/internal/errors"
	"github.com/ducminhle1904/crypto-signal-trader/pkg/types"
)

// SignalOutcome is what the cycle did with one approved signal
type SignalOutcome string

const (
	SignalExecuted        SignalOutcome = "executed"
	SignalAlreadyExecuted SignalOutcome = "already_executed"
	SignalDeferred        SignalOutcome = "deferred"
	SignalExpired         SignalOutcome = "expired"
	SignalFailed          SignalOutcome = "failed"
)

// SignalResult is the per-signal outcome of admission and execution
type SignalResult struct {
	SignalID   string        `json:"signal_id"`
	Symbol     string        `json:"symbol"`
	Side       types.Side    `json:"side"`
	Outcome    SignalOutcome `json:"outcome"`
	TradeID    string        `json:"trade_id,omitempty"`
	Quantity   float64       `json:"quantity,omitempty"`
	EntryPrice float64       `json:"entry_price,omitempty"`
	// Degraded lists the protective legs the venue refused
	Degraded []string `json:"degraded,omitempty"`
	Err      error    `json:"-"`
}

// TradeAction is what the monitor did with one open trade
type TradeAction string

const (
	TradeHeld             TradeAction = "held"
	TradeStoppedOut       TradeAction = "stopped_out"
	TradeTookProfit       TradeAction = "take_profit"
	TradePriceUnavailable TradeAction = "price_unavailable"
	TradeFailed           TradeAction = "failed"
)

// TradeResult is the per-trade outcome of one monitor check
type TradeResult struct {
	TradeID   string      `json:"trade_id"`
	Symbol    string      `json:"symbol"`
	Side      types.Side  `json:"side"`
	Action    TradeAction `json:"action"`
	Price     float64     `json:"price,omitempty"`
	ExitPrice float64     `json:"exit_price,omitempty"`
	PnL       float64     `json:"pnl,omitempty"`
	PnLPct    float64     `json:"pnl_pct,omitempty"`
	Err       error       `json:"-"`
}

// Closed reports whether the check moved the trade out of OPEN
func (r TradeResult) Closed() bool {
	return r.Action == TradeStoppedOut || r.Action == TradeTookProfit
}

// UnitError is a failure the cycle tolerated or stopped on
type UnitError struct {
	Unit     string                   `json:"unit"`
	Category apperrors.ErrorCategory  `json:"category"`
	Action   apperrors.RecoveryAction `json:"action"`
	Message  string                   `json:"message"`
}

func (u UnitError) String() string {
	return fmt.Sprintf("%s: %s (%s)", u.Unit, u.Category, u.Message)
}

// Report aggregates one trading cycle
type Report struct {
	StartedAt     time.Time                `json:"started_at"`
	FinishedAt    time.Time                `json:"finished_at"`
	Expired       int                      `json:"expired"`
	Signals       []SignalResult           `json:"signals"`
	Trades        []TradeResult            `json:"trades"`
	Portfolio     *types.PortfolioSnapshot `json:"portfolio,omitempty"`
	OpenPositions int                      `json:"open_positions"`
	Errors        []UnitError              `json:"errors,omitempty"`
}

// Duration is the wall time of the cycle
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Executed counts signals that produced a trade this cycle
func (r *Report) Executed() int {
	n := 0
	for _, s := range r.Signals {
		if s.Outcome == SignalExecuted {
			n++
		}
	}
	return n
}

// Closed counts trades the monitor closed this cycle
func (r *Report) Closed() int {
	n := 0
	for _, t := range r.Trades {
		if t.Closed() {
			n++
		}
	}
	return n
}

// UnitErrors renders the tolerated failures for health reporting
func (r *Report) UnitErrors() []string {
	out := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		out = append(out, e.String())
	}
	return out
}

// record classifies err and appends it. It returns the categorised error.
func (r *Report) record(unit string, err error, component, operation string) *apperrors.BotError {
	botErr := apperrors.CategorizeError(err, component, operation)
	r.Errors = append(r.Errors, UnitError{
		Unit:     unit,
		Category: botErr.Category,
		Action:   botErr.GetRecoveryAction(),
		Message:  err.Error(),
	})
	return botErr
}
