package adapters

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ducminhle1904/crypto-signal-trader/internal/exchange"
)

// Factory creates exchange instances based on configuration
type Factory struct {
	validator *exchange.ExchangeFactory
}

// NewFactory creates a new exchange factory instance
func NewFactory() *Factory {
	return &Factory{validator: exchange.NewExchangeFactory()}
}

// CreateExchange creates an exchange instance based on the provided configuration
func (f *Factory) CreateExchange(config exchange.ExchangeConfig, log *zap.Logger) (exchange.Client, error) {
	if err := f.validator.ValidateConfig(config); err != nil {
		return nil, err
	}

	switch strings.ToLower(strings.TrimSpace(config.Name)) {
	case "bybit":
		adapter, err := NewBybitAdapter(config, log)
		if err != nil {
			return nil, &exchange.ExchangeError{
				Code:        "ADAPTER_CREATION_FAILED",
				Message:     "Failed to create Bybit adapter",
				Details:     err.Error(),
				IsRetryable: false,
				Err:         err,
			}
		}
		return adapter, nil
	default:
		return nil, &exchange.ExchangeError{
			Code:        "UNSUPPORTED_EXCHANGE",
			Message:     fmt.Sprintf("Exchange '%s' is not supported", config.Name),
			Details:     fmt.Sprintf("Supported exchanges: %v", f.validator.GetSupportedExchanges()),
			IsRetryable: false,
		}
	}
}

// ExchangeCapabilities represents what features each exchange supports
type ExchangeCapabilities struct {
	SpotTrading        bool `json:"spot_trading"`
	LinearTrading      bool `json:"linear_trading"`
	DemoMode           bool `json:"demo_mode"`
	TestnetMode        bool `json:"testnet_mode"`
	NativeConditionals bool `json:"native_conditionals"`
}

// GetExchangeCapabilities returns the capabilities of a specific exchange
func (f *Factory) GetExchangeCapabilities(exchangeName string) (*ExchangeCapabilities, error) {
	switch strings.ToLower(strings.TrimSpace(exchangeName)) {
	case "bybit":
		return &ExchangeCapabilities{
			SpotTrading:        true,
			LinearTrading:      true,
			DemoMode:           true,
			TestnetMode:        true,
			NativeConditionals: true,
		}, nil
	default:
		return nil, &exchange.ExchangeError{
			Code:        "UNSUPPORTED_EXCHANGE",
			Message:     fmt.Sprintf("Exchange '%s' is not supported", exchangeName),
			IsRetryable: false,
		}
	}
}
