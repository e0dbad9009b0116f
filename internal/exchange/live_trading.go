package exchange

import (
	"context"
	"errors"

	"github.com/ducminhle1904/crypto-signal-trader/pkg/types"
)

// PositionCloser is the venue capability the position monitor needs:
// a price to test exit conditions, a market order to flatten and a cancel
// for the protective legs still resting on the book.
type PositionCloser interface {
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)
	CreateMarketOrder(ctx context.Context, symbol string, side types.Side, qty float64) (*MarketOrder, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
}

// BalanceReader reads account balances for one asset
type BalanceReader interface {
	GetBalance(ctx context.Context, asset string) (*types.Balance, error)
}

// Client is the thin venue capability used by the trading pipeline.
// It owns no business logic.
type Client interface {
	PositionCloser
	BalanceReader

	GetName() string

	// CreateStopOrder places a conditional market order that fires when the
	// price reaches stopPrice. It returns the venue order id.
	CreateStopOrder(ctx context.Context, symbol string, side types.Side, qty, stopPrice float64) (string, error)

	// CreateTakeProfitOrder places a conditional limit order at price.
	CreateTakeProfitOrder(ctx context.Context, symbol string, side types.Side, qty, price float64) (string, error)

	// RoundQuantity floors qty to the venue quantity step for symbol
	RoundQuantity(ctx context.Context, symbol string, qty float64) (float64, error)
}

// MarketOrder is the result of a filled market order.
// AvgFillPrice is zero when the venue did not report it.
type MarketOrder struct {
	OrderID      string     `json:"order_id"`
	Symbol       string     `json:"symbol"`
	Side         types.Side `json:"side"`
	Quantity     float64    `json:"quantity"`
	FilledQty    float64    `json:"filled_qty"`
	AvgFillPrice float64    `json:"avg_fill_price"`
	Status       string     `json:"status"`
}

// ExchangeError represents standardized errors from exchanges
type ExchangeError struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Details     string `json:"details,omitempty"`
	IsRetryable bool   `json:"is_retryable"`
	Err         error  `json:"-"`
}

func (e *ExchangeError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// Is matches exchange errors by code so callers can test against the
// sentinels below with errors.Is.
func (e *ExchangeError) Is(target error) bool {
	var t *ExchangeError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// Common error types
var (
	ErrInsufficientBalance = &ExchangeError{
		Code:        "INSUFFICIENT_BALANCE",
		Message:     "Insufficient balance for trade",
		IsRetryable: false,
	}

	ErrInvalidSymbol = &ExchangeError{
		Code:        "INVALID_SYMBOL",
		Message:     "Invalid trading symbol",
		IsRetryable: false,
	}

	ErrOrderSizeTooSmall = &ExchangeError{
		Code:        "ORDER_SIZE_TOO_SMALL",
		Message:     "Order size below minimum requirements",
		IsRetryable: false,
	}

	ErrOrderRejected = &ExchangeError{
		Code:        "ORDER_REJECTED",
		Message:     "Order rejected by exchange",
		IsRetryable: false,
	}

	ErrPriceUnavailable = &ExchangeError{
		Code:        "PRICE_UNAVAILABLE",
		Message:     "Price unavailable",
		IsRetryable: true,
	}

	ErrRateLimitExceeded = &ExchangeError{
		Code:        "RATE_LIMIT_EXCEEDED",
		Message:     "API rate limit exceeded",
		IsRetryable: true,
	}

	ErrConnectionFailed = &ExchangeError{
		Code:        "CONNECTION_FAILED",
		Message:     "Failed to connect to exchange",
		IsRetryable: true,
	}

	ErrAuthenticationFailed = &ExchangeError{
		Code:        "AUTHENTICATION_FAILED",
		Message:     "API authentication failed",
		IsRetryable: false,
	}
)

// IsRetryable reports whether err is an exchange error worth retrying
func IsRetryable(err error) bool {
	var exErr *ExchangeError
	if errors.As(err, &exErr) {
		return exErr.IsRetryable
	}
	return false
}
