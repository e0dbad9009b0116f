package bybit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// OrderSide represents the side of an order
type OrderSide string

const (
	OrderSideBuy  OrderSide = "Buy"
	OrderSideSell OrderSide = "Sell"
)

// OrderType represents the type of an order
type OrderType string

const (
	OrderTypeMarket OrderType = "Market"
	OrderTypeLimit  OrderType = "Limit"
)

// TimeInForce represents how long an order remains active
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC" // Good Till Cancelled
	TimeInForceIOC TimeInForce = "IOC" // Immediate Or Cancel
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "New"
	OrderStatusPartiallyFilled OrderStatus = "PartiallyFilled"
	OrderStatusFilled          OrderStatus = "Filled"
	OrderStatusCancelled       OrderStatus = "Cancelled"
	OrderStatusRejected        OrderStatus = "Rejected"
	OrderStatusUntriggered     OrderStatus = "Untriggered"
	OrderStatusTriggered       OrderStatus = "Triggered"
)

// TriggerDirection tells the venue which way the price must cross triggerPrice
type TriggerDirection int

const (
	TriggerRise TriggerDirection = 1
	TriggerFall TriggerDirection = 2
)

// Spot order filters
const (
	OrderFilterOrder = "Order"
	OrderFilterTPSL  = "tpslOrder"
)

// ErrOrderNotFilled is returned when a fill could not be confirmed in time
var ErrOrderNotFilled = errors.New("order fill not confirmed")

// Order represents a trading order
type Order struct {
	OrderID      string      `json:"orderId"`
	OrderLinkID  string      `json:"orderLinkId"`
	Symbol       string      `json:"symbol"`
	Side         OrderSide   `json:"side"`
	OrderType    OrderType   `json:"orderType"`
	Qty          string      `json:"qty"`
	Price        string      `json:"price"`
	TriggerPrice string      `json:"triggerPrice"`
	TimeInForce  TimeInForce `json:"timeInForce"`
	OrderStatus  OrderStatus `json:"orderStatus"`
	CumExecQty   string      `json:"cumExecQty"`
	CumExecValue string      `json:"cumExecValue"`
	AvgPrice     string      `json:"avgPrice"`
	CreatedTime  time.Time   `json:"createdTime"`
	UpdatedTime  time.Time   `json:"updatedTime"`
}

// AvgFillPrice returns the average execution price, deriving it from the
// executed value when avgPrice is empty.
func (o *Order) AvgFillPrice() float64 {
	if p := parseFloat64(o.AvgPrice); p > 0 {
		return p
	}
	qty := parseFloat64(o.CumExecQty)
	if qty > 0 {
		return parseFloat64(o.CumExecValue) / qty
	}
	return 0
}

// IsFilled reports whether the venue finished executing the order
func (o *Order) IsFilled() bool {
	return o.OrderStatus == OrderStatusFilled
}

// PlaceOrderParams holds parameters for placing an order
type PlaceOrderParams struct {
	Category         string           `json:"category"`
	Symbol           string           `json:"symbol"`
	Side             OrderSide        `json:"side"`
	OrderType        OrderType        `json:"orderType"`
	Qty              string           `json:"qty"`
	Price            string           `json:"price,omitempty"`
	TimeInForce      TimeInForce      `json:"timeInForce,omitempty"`
	OrderLinkID      string           `json:"orderLinkId,omitempty"`
	MarketUnit       string           `json:"marketUnit,omitempty"` // baseCoin, quoteCoin (spot market orders)
	OrderFilter      string           `json:"orderFilter,omitempty"`
	TriggerPrice     string           `json:"triggerPrice,omitempty"`
	TriggerDirection TriggerDirection `json:"triggerDirection,omitempty"`
	ReduceOnly       bool             `json:"reduceOnly,omitempty"`
	CloseOnTrigger   bool             `json:"closeOnTrigger,omitempty"`
}

func (p PlaceOrderParams) validate() error {
	if p.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if p.Side == "" {
		return fmt.Errorf("side is required")
	}
	if p.OrderType == "" {
		return fmt.Errorf("orderType is required")
	}
	if p.Qty == "" {
		return fmt.Errorf("qty is required")
	}
	if p.OrderType == OrderTypeLimit && p.Price == "" {
		return fmt.Errorf("price is required for limit orders")
	}
	return nil
}

func (p PlaceOrderParams) toAPIParams() map[string]interface{} {
	apiParams := map[string]interface{}{
		"category":  p.Category,
		"symbol":    p.Symbol,
		"side":      string(p.Side),
		"orderType": string(p.OrderType),
		"qty":       p.Qty,
	}

	if p.Price != "" {
		apiParams["price"] = p.Price
	}
	if p.TimeInForce != "" {
		apiParams["timeInForce"] = string(p.TimeInForce)
	}
	if p.OrderLinkID != "" {
		apiParams["orderLinkId"] = p.OrderLinkID
	}
	if p.MarketUnit != "" {
		apiParams["marketUnit"] = p.MarketUnit
	}
	if p.OrderFilter != "" {
		apiParams["orderFilter"] = p.OrderFilter
	}
	if p.TriggerPrice != "" {
		apiParams["triggerPrice"] = p.TriggerPrice
	}
	if p.TriggerDirection != 0 {
		apiParams["triggerDirection"] = int(p.TriggerDirection)
	}
	if p.ReduceOnly {
		apiParams["reduceOnly"] = true
	}
	if p.CloseOnTrigger {
		apiParams["closeOnTrigger"] = true
	}
	return apiParams
}

// PlaceOrder places a new order. Placement is never retried.
func (c *Client) PlaceOrder(ctx context.Context, params PlaceOrderParams) (*Order, error) {
	if params.Category == "" {
		params.Category = c.category
	}
	if err := params.validate(); err != nil {
		return nil, err
	}
	if params.OrderType == OrderTypeLimit && params.TimeInForce == "" {
		params.TimeInForce = TimeInForceGTC
	}

	var order *Order
	err := c.do(ctx, "place order", false, func() error {
		result, err := c.httpClient.NewUtaBybitServiceWithParams(params.toAPIParams()).PlaceOrder(ctx)
		if err != nil {
			return err
		}
		order, err = parseOrderResponse(result)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// PlaceMarketOrder places a market order sized in the base coin
func (c *Client) PlaceMarketOrder(ctx context.Context, symbol string, side OrderSide, qty float64) (*Order, error) {
	params := PlaceOrderParams{
		Symbol:    symbol,
		Side:      side,
		OrderType: OrderTypeMarket,
		Qty:       formatFloat(qty),
	}
	if c.IsSpot() {
		params.MarketUnit = "baseCoin"
	}
	return c.PlaceOrder(ctx, params)
}

// PlaceConditionalOrder places an order that rests until the price crosses
// trigger in the given direction. A zero limitPrice makes it a market order.
func (c *Client) PlaceConditionalOrder(ctx context.Context, symbol string, side OrderSide, qty, trigger, limitPrice float64, direction TriggerDirection) (*Order, error) {
	params := PlaceOrderParams{
		Symbol:       symbol,
		Side:         side,
		OrderType:    OrderTypeMarket,
		Qty:          formatFloat(qty),
		TriggerPrice: formatFloat(trigger),
	}
	if limitPrice > 0 {
		params.OrderType = OrderTypeLimit
		params.Price = formatFloat(limitPrice)
	}

	if c.IsSpot() {
		params.OrderFilter = OrderFilterTPSL
	} else {
		params.TriggerDirection = direction
		params.ReduceOnly = true
		params.CloseOnTrigger = limitPrice == 0
	}
	return c.PlaceOrder(ctx, params)
}

// CancelOrder cancels an existing order. Spot conditional orders need the
// tpslOrder filter.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID, orderFilter string) error {
	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
		"orderId":  orderID,
	}
	if c.IsSpot() && orderFilter != "" {
		params["orderFilter"] = orderFilter
	}

	return c.do(ctx, "cancel order", true, func() error {
		result, err := c.httpClient.NewUtaBybitServiceWithParams(params).CancelOrder(ctx)
		if err != nil {
			return err
		}
		_, err = parseOrderResponse(result)
		return err
	})
}

// GetOrder looks an order up among open orders first, then in history
func (c *Client) GetOrder(ctx context.Context, symbol, orderID string) (*Order, error) {
	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
		"orderId":  orderID,
	}

	var orders []Order
	err := c.do(ctx, "get open orders", true, func() error {
		result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetOpenOrders(ctx)
		if err != nil {
			return err
		}
		orders, err = parseOrdersResponse(result)
		return err
	})
	if err != nil {
		return nil, err
	}
	if order := findOrder(orders, orderID); order != nil {
		return order, nil
	}

	err = c.do(ctx, "get order history", true, func() error {
		result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetOrderHistory(ctx)
		if err != nil {
			return err
		}
		orders, err = parseOrdersResponse(result)
		return err
	})
	if err != nil {
		return nil, err
	}
	if order := findOrder(orders, orderID); order != nil {
		return order, nil
	}

	return nil, NewBybitError(ErrCodeOrderNotFound, fmt.Sprintf("order with ID %s not found", orderID))
}

// WaitForFill polls the order until it is filled or attempts run out
func (c *Client) WaitForFill(ctx context.Context, symbol, orderID string, attempts int, interval time.Duration) (*Order, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		order, err := c.GetOrder(ctx, symbol, orderID)
		if err == nil && order.IsFilled() {
			return order, nil
		}
		if err != nil {
			lastErr = err
		}
		if order != nil && (order.OrderStatus == OrderStatusRejected || order.OrderStatus == OrderStatusCancelled) {
			if order.AvgFillPrice() > 0 {
				return order, nil
			}
			return order, fmt.Errorf("order %s is %s: %w", orderID, order.OrderStatus, ErrOrderNotFilled)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderNotFilled, lastErr)
	}
	return nil, ErrOrderNotFilled
}

func findOrder(orders []Order, orderID string) *Order {
	for i := range orders {
		if orders[i].OrderID == orderID {
			return &orders[i]
		}
	}
	return nil
}

// orderData is the wire shape shared by placement, open orders and history
type orderData struct {
	OrderID      string `json:"orderId"`
	OrderLinkID  string `json:"orderLinkId"`
	Symbol       string `json:"symbol"`
	Side         string `json:"side"`
	OrderType    string `json:"orderType"`
	Qty          string `json:"qty"`
	Price        string `json:"price"`
	TriggerPrice string `json:"triggerPrice"`
	TimeInForce  string `json:"timeInForce"`
	OrderStatus  string `json:"orderStatus"`
	CumExecQty   string `json:"cumExecQty"`
	CumExecValue string `json:"cumExecValue"`
	AvgPrice     string `json:"avgPrice"`
	CreatedTime  string `json:"createdTime"`
	UpdatedTime  string `json:"updatedTime"`
}

func (d orderData) toOrder() Order {
	return Order{
		OrderID:      d.OrderID,
		OrderLinkID:  d.OrderLinkID,
		Symbol:       d.Symbol,
		Side:         OrderSide(d.Side),
		OrderType:    OrderType(d.OrderType),
		Qty:          d.Qty,
		Price:        d.Price,
		TriggerPrice: d.TriggerPrice,
		TimeInForce:  TimeInForce(d.TimeInForce),
		OrderStatus:  OrderStatus(d.OrderStatus),
		CumExecQty:   d.CumExecQty,
		CumExecValue: d.CumExecValue,
		AvgPrice:     d.AvgPrice,
		CreatedTime:  parseTimestamp(d.CreatedTime),
		UpdatedTime:  parseTimestamp(d.UpdatedTime),
	}
}

// parseOrderResponse parses the order placement and cancel API response
func parseOrderResponse(response interface{}) (*Order, error) {
	var data orderData
	if err := decodeResult(response, &data); err != nil {
		return nil, err
	}
	order := data.toOrder()
	return &order, nil
}

// parseOrdersResponse parses the orders list API response
func parseOrdersResponse(response interface{}) ([]Order, error) {
	var list struct {
		List           []orderData `json:"list"`
		NextPageCursor string      `json:"nextPageCursor"`
		Category       string      `json:"category"`
	}
	if err := decodeResult(response, &list); err != nil {
		return nil, err
	}

	orders := make([]Order, 0, len(list.List))
	for _, d := range list.List {
		orders = append(orders, d.toOrder())
	}
	return orders, nil
}
