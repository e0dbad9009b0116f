package bybit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// InstrumentInfo holds the trading rules of one instrument
type InstrumentInfo struct {
	Symbol    string `json:"symbol"`
	Status    string `json:"status"`
	BaseCoin  string `json:"baseCoin"`
	QuoteCoin string `json:"quoteCoin"`

	MinOrderQty float64 `json:"minOrderQty"`
	MaxOrderQty float64 `json:"maxOrderQty"`
	QtyStep     float64 `json:"qtyStep"`
	TickSize    float64 `json:"tickSize"`
	MinNotional float64 `json:"minNotionalValue"`
}

type cachedInstrument struct {
	info      *InstrumentInfo
	fetchedAt time.Time
}

// InstrumentManager caches instrument rules. These are venue metadata that
// change rarely, not trading state.
type InstrumentManager struct {
	client         *Client
	instruments    map[string]cachedInstrument
	mutex          sync.RWMutex
	updateInterval time.Duration
}

// NewInstrumentManager creates a new instrument manager
func NewInstrumentManager(client *Client) *InstrumentManager {
	return &InstrumentManager{
		client:         client,
		instruments:    make(map[string]cachedInstrument),
		updateInterval: time.Hour,
	}
}

func cacheKey(category, symbol string) string {
	return category + ":" + symbol
}

// GetInstrumentInfo retrieves and caches instrument information
func (im *InstrumentManager) GetInstrumentInfo(ctx context.Context, category, symbol string) (*InstrumentInfo, error) {
	key := cacheKey(category, symbol)

	im.mutex.RLock()
	cached, ok := im.instruments[key]
	im.mutex.RUnlock()
	if ok && time.Since(cached.fetchedAt) < im.updateInterval {
		return cached.info, nil
	}

	instrument, err := im.fetchInstrumentInfo(ctx, category, symbol)
	if err != nil {
		return nil, err
	}

	im.mutex.Lock()
	im.instruments[key] = cachedInstrument{info: instrument, fetchedAt: time.Now()}
	im.mutex.Unlock()

	return instrument, nil
}

// fetchInstrumentInfo fetches instrument information from Bybit API
func (im *InstrumentManager) fetchInstrumentInfo(ctx context.Context, category, symbol string) (*InstrumentInfo, error) {
	params := map[string]interface{}{
		"category": category,
		"symbol":   symbol,
	}

	var instrument *InstrumentInfo
	err := im.client.do(ctx, "get instrument info", true, func() error {
		result, err := im.client.httpClient.NewUtaBybitServiceWithParams(params).GetInstrumentInfo(ctx)
		if err != nil {
			return err
		}
		instrument, err = parseInstrumentInfoResponse(result, symbol)
		return err
	})
	if err != nil {
		return nil, err
	}
	return instrument, nil
}

// parseInstrumentInfoResponse parses the instrument info API response
func parseInstrumentInfoResponse(response interface{}, targetSymbol string) (*InstrumentInfo, error) {
	var instrumentResult struct {
		Category string `json:"category"`
		List     []struct {
			Symbol      string `json:"symbol"`
			Status      string `json:"status"`
			BaseCoin    string `json:"baseCoin"`
			QuoteCoin   string `json:"quoteCoin"`
			PriceFilter struct {
				TickSize string `json:"tickSize"`
			} `json:"priceFilter"`
			LotSizeFilter struct {
				// Linear contracts report qtyStep, spot reports basePrecision
				MinOrderQty      string `json:"minOrderQty"`
				MaxOrderQty      string `json:"maxOrderQty"`
				QtyStep          string `json:"qtyStep"`
				BasePrecision    string `json:"basePrecision"`
				MinNotionalValue string `json:"minNotionalValue"`
				MinOrderAmt      string `json:"minOrderAmt"`
			} `json:"lotSizeFilter"`
		} `json:"list"`
	}

	if err := decodeResult(response, &instrumentResult); err != nil {
		return nil, err
	}

	for _, item := range instrumentResult.List {
		if item.Symbol != targetSymbol {
			continue
		}

		lot := item.LotSizeFilter
		step := parseFloat64(lot.QtyStep)
		if step == 0 {
			step = parseFloat64(lot.BasePrecision)
		}
		minNotional := parseFloat64(lot.MinNotionalValue)
		if minNotional == 0 {
			minNotional = parseFloat64(lot.MinOrderAmt)
		}

		return &InstrumentInfo{
			Symbol:      item.Symbol,
			Status:      item.Status,
			BaseCoin:    item.BaseCoin,
			QuoteCoin:   item.QuoteCoin,
			MinOrderQty: parseFloat64(lot.MinOrderQty),
			MaxOrderQty: parseFloat64(lot.MaxOrderQty),
			QtyStep:     step,
			TickSize:    parseFloat64(item.PriceFilter.TickSize),
			MinNotional: minNotional,
		}, nil
	}

	return nil, fmt.Errorf("instrument %s not found", targetSymbol)
}

// GetQuantityConstraints returns the quantity constraints for a symbol
func (im *InstrumentManager) GetQuantityConstraints(ctx context.Context, category, symbol string) (minQty, maxQty, qtyStep float64, err error) {
	instrument, err := im.GetInstrumentInfo(ctx, category, symbol)
	if err != nil {
		return 0, 0, 0, err
	}
	return instrument.MinOrderQty, instrument.MaxOrderQty, instrument.QtyStep, nil
}

// Invalidate drops every cached instrument
func (im *InstrumentManager) Invalidate() {
	im.mutex.Lock()
	defer im.mutex.Unlock()
	im.instruments = make(map[string]cachedInstrument)
}
