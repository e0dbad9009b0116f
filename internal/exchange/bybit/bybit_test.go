package bybit

import (
	"errors"
	"fmt"
	"testing"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okResponse(result interface{}) *bybit_api.ServerResponse {
	return &bybit_api.ServerResponse{RetCode: 0, RetMsg: "OK", Result: result}
}

// TestDecodeResult tests the response envelope handling
func TestDecodeResult(t *testing.T) {
	var out struct {
		OrderID string `json:"orderId"`
	}

	err := decodeResult(okResponse(map[string]interface{}{"orderId": "abc"}), &out)
	require.NoError(t, err)
	assert.Equal(t, "abc", out.OrderID)

	err = decodeResult(&bybit_api.ServerResponse{RetCode: 170131, RetMsg: "Insufficient balance."}, &out)
	require.Error(t, err)
	assert.True(t, IsInsufficientBalanceError(err))

	err = decodeResult("not a response", &out)
	assert.Error(t, err)
}

// TestParseOrderResponses tests placement and list parsing
func TestParseOrderResponses(t *testing.T) {
	order, err := parseOrderResponse(okResponse(map[string]interface{}{
		"orderId":     "1001",
		"orderLinkId": "link-1",
	}))
	require.NoError(t, err)
	assert.Equal(t, "1001", order.OrderID)
	assert.Equal(t, "link-1", order.OrderLinkID)

	orders, err := parseOrdersResponse(okResponse(map[string]interface{}{
		"category": "spot",
		"list": []map[string]interface{}{
			{
				"orderId":      "1001",
				"symbol":       "BTCUSDT",
				"side":         "Buy",
				"orderType":    "Market",
				"orderStatus":  "Filled",
				"cumExecQty":   "0.5",
				"cumExecValue": "25000",
				"avgPrice":     "",
				"createdTime":  "1700000000000",
			},
			{
				"orderId":     "1002",
				"symbol":      "BTCUSDT",
				"orderStatus": "Untriggered",
			},
		},
	}))
	require.NoError(t, err)
	require.Len(t, orders, 2)

	filled := findOrder(orders, "1001")
	require.NotNil(t, filled)
	assert.True(t, filled.IsFilled())
	assert.InDelta(t, 50000.0, filled.AvgFillPrice(), 1e-9)
	assert.Equal(t, time.UnixMilli(1700000000000), filled.CreatedTime)

	assert.False(t, orders[1].IsFilled())
	assert.Zero(t, orders[1].AvgFillPrice())
	assert.Nil(t, findOrder(orders, "missing"))
}

// TestPlaceOrderParams tests parameter validation and conversion
func TestPlaceOrderParams(t *testing.T) {
	params := PlaceOrderParams{
		Category:         CategoryLinear,
		Symbol:           "ETHUSDT",
		Side:             OrderSideSell,
		OrderType:        OrderTypeMarket,
		Qty:              "1.5",
		TriggerPrice:     "1900",
		TriggerDirection: TriggerFall,
		ReduceOnly:       true,
		CloseOnTrigger:   true,
	}
	require.NoError(t, params.validate())

	api := params.toAPIParams()
	assert.Equal(t, "linear", api["category"])
	assert.Equal(t, "Sell", api["side"])
	assert.Equal(t, "1900", api["triggerPrice"])
	assert.Equal(t, 2, api["triggerDirection"])
	assert.Equal(t, true, api["reduceOnly"])
	assert.Equal(t, true, api["closeOnTrigger"])
	assert.NotContains(t, api, "price")
	assert.NotContains(t, api, "orderFilter")

	limit := PlaceOrderParams{Symbol: "ETHUSDT", Side: OrderSideBuy, OrderType: OrderTypeLimit, Qty: "1"}
	assert.Error(t, limit.validate())
	assert.Error(t, PlaceOrderParams{Side: OrderSideBuy, OrderType: OrderTypeMarket, Qty: "1"}.validate())
}

// TestParseAccountBalanceResponse tests balance parsing and the locked fallback
func TestParseAccountBalanceResponse(t *testing.T) {
	info, err := parseAccountBalanceResponse(okResponse(map[string]interface{}{
		"list": []map[string]interface{}{
			{
				"accountType":        "UNIFIED",
				"totalEquity":        "1500",
				"totalWalletBalance": "1500",
				"coin": []map[string]interface{}{
					{"coin": "USDT", "walletBalance": "1000", "availableToTrade": "", "locked": "", "totalOrderIM": "150", "totalPositionIM": "50"},
					{"coin": "BTC", "walletBalance": "0.01", "availableToTrade": "0.008", "locked": "0.002"},
				},
			},
		},
	}))
	require.NoError(t, err)
	assert.Equal(t, "UNIFIED", info.AccountType)
	require.Len(t, info.Coin, 2)

	usdt := info.Coin[0]
	assert.InDelta(t, 200.0, usdt.Locked, 1e-9)
	assert.InDelta(t, 800.0, usdt.Available(), 1e-9)

	btc := info.Coin[1]
	assert.InDelta(t, 0.008, btc.Available(), 1e-12)

	_, err = parseAccountBalanceResponse(okResponse(map[string]interface{}{"list": []interface{}{}}))
	assert.Error(t, err)
}

// TestParseTickerResponse tests ticker lookup by symbol
func TestParseTickerResponse(t *testing.T) {
	resp := okResponse(map[string]interface{}{
		"category": "spot",
		"list": []map[string]interface{}{
			{"symbol": "ETHUSDT", "lastPrice": "2000.5"},
			{"symbol": "BTCUSDT", "lastPrice": "64000", "bid1Price": "63999", "ask1Price": "64001"},
		},
	})

	ticker, err := parseTickerResponse(resp, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 64000.0, ticker.LastPrice)
	assert.Equal(t, 63999.0, ticker.Bid1Price)

	_, err = parseTickerResponse(resp, "SOLUSDT")
	assert.Error(t, err)
}

// TestParseInstrumentInfoResponse tests lot size parsing for spot and linear
func TestParseInstrumentInfoResponse(t *testing.T) {
	spot := okResponse(map[string]interface{}{
		"category": "spot",
		"list": []map[string]interface{}{
			{
				"symbol":        "BTCUSDT",
				"status":        "Trading",
				"priceFilter":   map[string]string{"tickSize": "0.01"},
				"lotSizeFilter": map[string]string{"basePrecision": "0.000001", "minOrderQty": "0.000048", "maxOrderQty": "71", "minOrderAmt": "1"},
			},
		},
	})
	info, err := parseInstrumentInfoResponse(spot, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 0.000001, info.QtyStep)
	assert.Equal(t, 0.000048, info.MinOrderQty)
	assert.Equal(t, 1.0, info.MinNotional)

	linear := okResponse(map[string]interface{}{
		"category": "linear",
		"list": []map[string]interface{}{
			{
				"symbol":        "ETHUSDT",
				"lotSizeFilter": map[string]string{"qtyStep": "0.01", "minOrderQty": "0.01", "maxOrderQty": "1500", "minNotionalValue": "5"},
			},
		},
	})
	info, err = parseInstrumentInfoResponse(linear, "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, 0.01, info.QtyStep)
	assert.Equal(t, 5.0, info.MinNotional)

	_, err = parseInstrumentInfoResponse(linear, "BTCUSDT")
	assert.Error(t, err)
}

// TestErrorClassification tests the error predicates through wrapping
func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name         string
		code         int
		retryable    bool
		auth         bool
		insufficient bool
		notFound     bool
	}{
		{"rate limit", ErrCodeRateLimitExceeded, true, false, false, false},
		{"bad gateway", 502, true, false, false, false},
		{"invalid key", ErrCodeInvalidAPIKey, false, true, false, false},
		{"linear balance", ErrCodeInsufficientBalance, false, false, true, false},
		{"spot balance", ErrCodeSpotInsufficientBalance, false, false, true, false},
		{"spot not found", ErrCodeSpotOrderNotFound, false, false, false, true},
		{"invalid qty", ErrCodeInvalidQuantity, false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := WrapAPIError("place order", NewBybitError(tt.code, "boom"))
			assert.Equal(t, tt.retryable, IsRetryableError(err))
			assert.Equal(t, tt.auth, IsAuthenticationError(err))
			assert.Equal(t, tt.insufficient, IsInsufficientBalanceError(err))
			assert.Equal(t, tt.notFound, IsOrderNotFoundError(err))
		})
	}

	assert.Nil(t, ParseAPIError(0, "OK"))
	assert.Nil(t, WrapAPIError("noop", nil))
	assert.Equal(t, "Insufficient balance", GetErrorDescription(ErrCodeSpotInsufficientBalance))
	assert.Contains(t, GetErrorDescription(42), "Unknown")
}

// TestCircuitBreaker tests that only infrastructure failures trip the breaker
func TestCircuitBreaker(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Hour)

	rejected := NewBybitError(ErrCodeInsufficientBalance, "no funds")
	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, cb.Call(func() error { return rejected }), rejected)
	}
	assert.Equal(t, CircuitClosed, cb.State())

	transport := errors.New("connection reset")
	_ = cb.Call(func() error { return transport })
	_ = cb.Call(func() error { return transport })
	assert.Equal(t, CircuitOpen, cb.State())

	called := false
	err := cb.Call(func() error { called = true; return nil })
	assert.False(t, called)
	assert.True(t, IsRetryableError(err))

	cb.ResetTimeout = 0
	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, CircuitClosed, cb.State())
}

// TestRetryWithConfig tests retry counts for retryable and final errors
func TestRetryWithConfig(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 2}

	calls := 0
	err := RetryWithConfig(testContext(t), func() error {
		calls++
		if calls < 3 {
			return NewBybitError(ErrCodeRateLimitExceeded, "slow down")
		}
		return nil
	}, cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = RetryWithConfig(testContext(t), func() error {
		calls++
		return fmt.Errorf("wrapped: %w", NewBybitError(ErrCodeInvalidQuantity, "bad qty"))
	}, cfg)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

// TestCalculateDelay tests exponential growth and the max delay ceiling
func TestCalculateDelay(t *testing.T) {
	cfg := RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, BackoffFactor: 2}

	assert.Equal(t, 100*time.Millisecond, calculateDelay(0, cfg))
	assert.Equal(t, 400*time.Millisecond, calculateDelay(2, cfg))
	assert.Equal(t, time.Second, calculateDelay(10, cfg))

	cfg.JitterEnabled = true
	d := calculateDelay(1, cfg)
	assert.InDelta(t, float64(200*time.Millisecond), float64(d), float64(20*time.Millisecond))
}

// TestFormatFloat tests decimal rendering of quantities
func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "0.001", formatFloat(0.001))
	assert.Equal(t, "64000", formatFloat(64000))
	assert.Equal(t, 0.0, parseFloat64(""))
	assert.True(t, parseTimestamp("").IsZero())
}
