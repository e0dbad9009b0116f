package bybit

import (
	"context"
	"strings"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	"github.com/ducminhle1904/crypto-signal-trader/internal/safety"
)

// Request budget per API key, kept below the venue's per-second limits
const (
	requestBurst = 10
	requestRate  = 8
)

// Product categories
const (
	CategorySpot   = "spot"
	CategoryLinear = "linear"
)

// Client wraps the Bybit API client with rate limiting, retry, circuit
// breaking and instrument metadata.
type Client struct {
	httpClient        *bybit_api.Client
	category          string
	testnet           bool
	demo              bool
	retry             RetryConfig
	breaker           *CircuitBreaker
	limiter           *safety.RateLimiter
	instrumentManager *InstrumentManager
}

// Config holds the configuration for the Bybit client
type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
	Demo      bool   // Demo trading environment
	Category  string // spot or linear, defaults to spot
}

// NewClient creates a new Bybit client
func NewClient(config Config) *Client {
	var baseURL string
	if config.Demo {
		// Demo trading environment (paper trading)
		baseURL = "https://api-demo.bybit.com"
	} else if config.Testnet {
		baseURL = bybit_api.TESTNET
	} else {
		baseURL = bybit_api.MAINNET
	}

	httpClient := bybit_api.NewBybitHttpClient(
		config.APIKey,
		config.APISecret,
		bybit_api.WithBaseURL(baseURL),
	)

	category := strings.ToLower(strings.TrimSpace(config.Category))
	if category == "" {
		category = CategorySpot
	}

	c := &Client{
		httpClient: httpClient,
		category:   category,
		testnet:    config.Testnet,
		demo:       config.Demo,
		retry:      DefaultRetryConfig(),
		breaker:    NewCircuitBreaker(5, 30*time.Second),
		limiter:    safety.NewRateLimiter("bybit", requestBurst, requestRate),
	}
	c.instrumentManager = NewInstrumentManager(c)
	return c
}

// Category returns the product category orders are placed in
func (c *Client) Category() string {
	return c.category
}

// IsSpot reports whether the client trades spot
func (c *Client) IsSpot() bool {
	return c.category == CategorySpot
}

// IsDemo returns whether the client is configured for demo trading
func (c *Client) IsDemo() bool {
	return c.demo
}

// GetEnvironment returns a string describing the current environment
func (c *Client) GetEnvironment() string {
	if c.demo {
		return "demo"
	} else if c.testnet {
		return "testnet"
	}
	return "mainnet"
}

// GetInstrumentManager returns the instrument metadata cache
func (c *Client) GetInstrumentManager() *InstrumentManager {
	return c.instrumentManager
}

// SetRetryConfig overrides the retry policy used for read calls
func (c *Client) SetRetryConfig(cfg RetryConfig) {
	c.retry = cfg
}

// GetQuantityConstraints returns min, max and step quantities for symbol in
// the client's category
func (c *Client) GetQuantityConstraints(ctx context.Context, symbol string) (minQty, maxQty, qtyStep float64, err error) {
	return c.instrumentManager.GetQuantityConstraints(ctx, c.category, symbol)
}
