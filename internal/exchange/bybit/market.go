package bybit

import (
	"context"
	"fmt"
)

// Ticker is the subset of ticker data the trader reads
type Ticker struct {
	Symbol    string  `json:"symbol"`
	LastPrice float64 `json:"lastPrice"`
	Bid1Price float64 `json:"bid1Price"`
	Ask1Price float64 `json:"ask1Price"`
}

// GetLatestPrice gets the latest traded price for a symbol
func (c *Client) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	ticker, err := c.GetTicker(ctx, symbol)
	if err != nil {
		return 0, err
	}
	if ticker.LastPrice <= 0 {
		return 0, fmt.Errorf("no last price for %s", symbol)
	}
	return ticker.LastPrice, nil
}

// GetTicker gets the ticker for a symbol in the client's category
func (c *Client) GetTicker(ctx context.Context, symbol string) (*Ticker, error) {
	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
	}

	var ticker *Ticker
	err := c.do(ctx, "get ticker", true, func() error {
		result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
		if err != nil {
			return err
		}
		ticker, err = parseTickerResponse(result, symbol)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ticker, nil
}

// parseTickerResponse parses the ticker response for symbol
func parseTickerResponse(response interface{}, symbol string) (*Ticker, error) {
	var tickerResult struct {
		Category string `json:"category"`
		List     []struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
			Bid1Price string `json:"bid1Price"`
			Ask1Price string `json:"ask1Price"`
		} `json:"list"`
	}

	if err := decodeResult(response, &tickerResult); err != nil {
		return nil, err
	}

	for _, item := range tickerResult.List {
		if item.Symbol == symbol || symbol == "" {
			return &Ticker{
				Symbol:    item.Symbol,
				LastPrice: parseFloat64(item.LastPrice),
				Bid1Price: parseFloat64(item.Bid1Price),
				Ask1Price: parseFloat64(item.Ask1Price),
			}, nil
		}
	}

	return nil, fmt.Errorf("no ticker data found for %s", symbol)
}
