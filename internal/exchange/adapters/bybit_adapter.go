package adapters

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ducminhle1904/crypto-signal-trader/internal/exchange"
	"github.com/ducminhle1904/crypto-signal-trader/internal/exchange/bybit"
	"github.com/ducminhle1904/crypto-signal-trader/internal/risk"
	"github.com/ducminhle1904/crypto-signal-trader/pkg/types"
)

// bybitVenue is the part of *bybit.Client the adapter drives
type bybitVenue interface {
	Category() string
	GetEnvironment() string
	GetCoinBalance(ctx context.Context, accountType bybit.AccountType, coin string) (*bybit.Balance, error)
	GetLatestPrice(ctx context.Context, symbol string) (float64, error)
	PlaceMarketOrder(ctx context.Context, symbol string, side bybit.OrderSide, qty float64) (*bybit.Order, error)
	PlaceConditionalOrder(ctx context.Context, symbol string, side bybit.OrderSide, qty, trigger, limitPrice float64, direction bybit.TriggerDirection) (*bybit.Order, error)
	CancelOrder(ctx context.Context, symbol, orderID, orderFilter string) error
	WaitForFill(ctx context.Context, symbol, orderID string, attempts int, interval time.Duration) (*bybit.Order, error)
	GetQuantityConstraints(ctx context.Context, symbol string) (minQty, maxQty, qtyStep float64, err error)
}

// FillPolling controls how long the adapter waits to learn a market order's fill
type FillPolling struct {
	Attempts int
	Interval time.Duration
}

// DefaultFillPolling waits roughly 1.5s for a fill report
func DefaultFillPolling() FillPolling {
	return FillPolling{Attempts: 5, Interval: 300 * time.Millisecond}
}

// BybitAdapter implements exchange.Client for Bybit
type BybitAdapter struct {
	client  bybitVenue
	log     *zap.Logger
	polling FillPolling
}

// NewBybitAdapter creates a new Bybit adapter instance
func NewBybitAdapter(config exchange.ExchangeConfig, log *zap.Logger) (*BybitAdapter, error) {
	if config.Bybit == nil {
		return nil, &exchange.ExchangeError{
			Code:        "MISSING_CONFIG",
			Message:     "Bybit configuration is required",
			IsRetryable: false,
		}
	}

	client := bybit.NewClient(bybit.Config{
		APIKey:    config.Bybit.APIKey,
		APISecret: config.Bybit.APISecret,
		Testnet:   config.Bybit.Testnet,
		Demo:      config.Bybit.Demo,
		Category:  config.Category,
	})

	return newBybitAdapter(client, log), nil
}

func newBybitAdapter(client bybitVenue, log *zap.Logger) *BybitAdapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &BybitAdapter{
		client:  client,
		log:     log.With(zap.String("exchange", "bybit"), zap.String("category", client.Category())),
		polling: DefaultFillPolling(),
	}
}

// SetFillPolling overrides how long market orders wait for a fill report
func (b *BybitAdapter) SetFillPolling(p FillPolling) {
	b.polling = p
}

// GetName returns the exchange name
func (b *BybitAdapter) GetName() string {
	return "bybit"
}

// GetEnvironment returns the current environment string
func (b *BybitAdapter) GetEnvironment() string {
	return b.client.GetEnvironment()
}

// GetBalance reads the unified wallet balance of asset. An asset missing
// from the wallet is a zero balance.
func (b *BybitAdapter) GetBalance(ctx context.Context, asset string) (*types.Balance, error) {
	balance, err := b.client.GetCoinBalance(ctx, bybit.AccountTypeUnified, asset)
	if errors.Is(err, bybit.ErrCoinNotFound) {
		return &types.Balance{Asset: asset}, nil
	}
	if err != nil {
		return nil, b.convertError(err)
	}

	return &types.Balance{
		Asset:     asset,
		Total:     balance.WalletBalance,
		Available: balance.Available(),
		Locked:    balance.Locked,
	}, nil
}

// GetCurrentPrice retrieves the latest price for a symbol
func (b *BybitAdapter) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	price, err := b.client.GetLatestPrice(ctx, symbol)
	if err != nil {
		converted := b.convertError(err)
		var exErr *exchange.ExchangeError
		if errors.As(converted, &exErr) && exErr.Code == "UNKNOWN_ERROR" {
			return 0, &exchange.ExchangeError{
				Code:        exchange.ErrPriceUnavailable.Code,
				Message:     exchange.ErrPriceUnavailable.Message,
				Details:     err.Error(),
				IsRetryable: true,
				Err:         err,
			}
		}
		return 0, converted
	}
	return price, nil
}

// CreateMarketOrder places a market order and waits briefly for its fill.
// When the fill cannot be confirmed AvgFillPrice is left at zero. An order
// the venue rejected or cancelled without any fill is an error.
func (b *BybitAdapter) CreateMarketOrder(ctx context.Context, symbol string, side types.Side, qty float64) (*exchange.MarketOrder, error) {
	placed, err := b.client.PlaceMarketOrder(ctx, symbol, convertOrderSide(side), qty)
	if err != nil {
		return nil, b.convertError(err)
	}

	result := &exchange.MarketOrder{
		OrderID:  placed.OrderID,
		Symbol:   symbol,
		Side:     side,
		Quantity: qty,
		Status:   string(bybit.OrderStatusNew),
	}

	filled, err := b.client.WaitForFill(ctx, symbol, placed.OrderID, b.polling.Attempts, b.polling.Interval)
	if err != nil && deadOrder(filled) {
		b.log.Error("market order not filled",
			zap.String("symbol", symbol),
			zap.String("order_id", placed.OrderID),
			zap.String("status", string(filled.OrderStatus)),
		)
		return nil, b.convertError(err)
	}
	if err != nil {
		b.log.Warn("market order fill not confirmed",
			zap.String("symbol", symbol),
			zap.String("order_id", placed.OrderID),
			zap.Error(err),
		)
		if filled != nil {
			result.Status = string(filled.OrderStatus)
		}
		return result, nil
	}

	result.Status = string(filled.OrderStatus)
	result.AvgFillPrice = filled.AvgFillPrice()
	if cum, err := strconv.ParseFloat(filled.CumExecQty, 64); err == nil {
		result.FilledQty = cum
	}
	return result, nil
}

// CreateStopOrder places a conditional market order at stopPrice. A SELL
// stop protects a long and fires on a falling price.
func (b *BybitAdapter) CreateStopOrder(ctx context.Context, symbol string, side types.Side, qty, stopPrice float64) (string, error) {
	direction := bybit.TriggerRise
	if side == types.SideSell {
		direction = bybit.TriggerFall
	}

	order, err := b.client.PlaceConditionalOrder(ctx, symbol, convertOrderSide(side), qty, stopPrice, 0, direction)
	if err != nil {
		return "", b.convertError(err)
	}
	return order.OrderID, nil
}

// CreateTakeProfitOrder places a conditional limit order at price. A SELL
// target closes a long and fires on a rising price.
func (b *BybitAdapter) CreateTakeProfitOrder(ctx context.Context, symbol string, side types.Side, qty, price float64) (string, error) {
	direction := bybit.TriggerFall
	if side == types.SideSell {
		direction = bybit.TriggerRise
	}

	order, err := b.client.PlaceConditionalOrder(ctx, symbol, convertOrderSide(side), qty, price, price, direction)
	if err != nil {
		return "", b.convertError(err)
	}
	return order.OrderID, nil
}

// CancelOrder cancels a resting protective order
func (b *BybitAdapter) CancelOrder(ctx context.Context, symbol, orderID string) error {
	if err := b.client.CancelOrder(ctx, symbol, orderID, bybit.OrderFilterTPSL); err != nil {
		return b.convertError(err)
	}
	return nil
}

// RoundQuantity floors qty to the instrument step and caps it at the
// maximum order size. Anything below the minimum order size becomes zero.
func (b *BybitAdapter) RoundQuantity(ctx context.Context, symbol string, qty float64) (float64, error) {
	minQty, maxQty, qtyStep, err := b.client.GetQuantityConstraints(ctx, symbol)
	if err != nil {
		return 0, b.convertError(err)
	}

	if maxQty > 0 && qty > maxQty {
		qty = maxQty
	}
	rounded := risk.FloorToStep(qty, qtyStep)
	if rounded < minQty {
		b.log.Debug("quantity below venue minimum",
			zap.String("symbol", symbol),
			zap.Float64("qty", rounded),
			zap.Float64("min_qty", minQty),
		)
		return 0, nil
	}
	return rounded, nil
}

// deadOrder reports whether the venue ended the order without executing any of it
func deadOrder(order *bybit.Order) bool {
	if order == nil {
		return false
	}
	if order.OrderStatus != bybit.OrderStatusRejected && order.OrderStatus != bybit.OrderStatusCancelled {
		return false
	}
	cum, _ := strconv.ParseFloat(order.CumExecQty, 64)
	return cum <= 0
}

// convertOrderSide converts the trading side to the Bybit side
func convertOrderSide(side types.Side) bybit.OrderSide {
	if side == types.SideSell {
		return bybit.OrderSideSell
	}
	return bybit.OrderSideBuy
}

// convertError converts Bybit-specific errors to our standard error format
func (b *BybitAdapter) convertError(err error) error {
	if err == nil {
		return nil
	}

	var exErr *exchange.ExchangeError
	if errors.As(err, &exErr) {
		return err
	}

	wrap := func(base *exchange.ExchangeError) error {
		return &exchange.ExchangeError{
			Code:        base.Code,
			Message:     base.Message,
			Details:     err.Error(),
			IsRetryable: base.IsRetryable,
			Err:         err,
		}
	}

	var bybitErr *bybit.BybitError
	switch {
	case bybit.IsInsufficientBalanceError(err):
		return wrap(exchange.ErrInsufficientBalance)
	case bybit.IsAuthenticationError(err):
		return wrap(exchange.ErrAuthenticationFailed)
	case bybit.IsRateLimitError(err):
		return wrap(exchange.ErrRateLimitExceeded)
	case errors.As(err, &bybitErr) && bybitErr.Code == bybit.ErrCodeSymbolNotFound:
		return wrap(exchange.ErrInvalidSymbol)
	case errors.As(err, &bybitErr) && bybitErr.Code == bybit.ErrCodeInvalidQuantity:
		return wrap(exchange.ErrOrderSizeTooSmall)
	case errors.Is(err, bybit.ErrOrderNotFilled):
		return wrap(exchange.ErrOrderRejected)
	}

	return &exchange.ExchangeError{
		Code:        "UNKNOWN_ERROR",
		Message:     "Unknown error from Bybit",
		Details:     err.Error(),
		IsRetryable: bybit.IsRetryableError(err),
		Err:         err,
	}
}
