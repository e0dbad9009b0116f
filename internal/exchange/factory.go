package exchange

import (
	"fmt"
	"strings"
)

// Bybit product categories the trader can run against
const (
	CategorySpot   = "spot"
	CategoryLinear = "linear"
)

// ExchangeConfig holds configuration for creating exchange instances
type ExchangeConfig struct {
	Name     string       `yaml:"name" json:"name"`         // Exchange name (bybit)
	Category string       `yaml:"category" json:"category"` // spot or linear
	Bybit    *BybitConfig `yaml:"bybit,omitempty" json:"bybit,omitempty"`
}

// BybitConfig holds Bybit-specific configuration
type BybitConfig struct {
	APIKey    string `yaml:"api_key" json:"api_key"`
	APISecret string `yaml:"api_secret" json:"api_secret"`
	Testnet   bool   `yaml:"testnet" json:"testnet"` // Use testnet infrastructure
	Demo      bool   `yaml:"demo" json:"demo"`       // Use demo trading (paper trading)
}

// ExchangeFactory validates exchange configuration. Construction lives in the
// adapters package to avoid an import cycle with the venue clients.
type ExchangeFactory struct{}

// NewExchangeFactory creates a new exchange factory instance
func NewExchangeFactory() *ExchangeFactory {
	return &ExchangeFactory{}
}

// GetSupportedExchanges returns a list of supported exchange names
func (f *ExchangeFactory) GetSupportedExchanges() []string {
	return []string{"bybit"}
}

// ValidateConfig validates the exchange configuration
func (f *ExchangeFactory) ValidateConfig(config ExchangeConfig) error {
	if config.Name == "" {
		return &ExchangeError{
			Code:        "MISSING_EXCHANGE_NAME",
			Message:     "Exchange name is required",
			IsRetryable: false,
		}
	}

	switch strings.ToLower(strings.TrimSpace(config.Category)) {
	case CategorySpot, CategoryLinear:
	default:
		return &ExchangeError{
			Code:        "UNSUPPORTED_CATEGORY",
			Message:     fmt.Sprintf("Category '%s' is not supported", config.Category),
			Details:     "Supported categories: spot, linear",
			IsRetryable: false,
		}
	}

	switch strings.ToLower(strings.TrimSpace(config.Name)) {
	case "bybit":
		return f.validateBybitConfig(config.Bybit)
	default:
		return &ExchangeError{
			Code:        "UNSUPPORTED_EXCHANGE",
			Message:     fmt.Sprintf("Exchange '%s' is not supported", config.Name),
			Details:     fmt.Sprintf("Supported exchanges: %v", f.GetSupportedExchanges()),
			IsRetryable: false,
		}
	}
}

// validateBybitConfig validates Bybit-specific configuration
func (f *ExchangeFactory) validateBybitConfig(config *BybitConfig) error {
	if config == nil {
		return &ExchangeError{
			Code:        "MISSING_BYBIT_CONFIG",
			Message:     "Bybit configuration is required",
			IsRetryable: false,
		}
	}

	if config.APIKey == "" {
		return &ExchangeError{
			Code:        "MISSING_API_KEY",
			Message:     "Bybit API key is required",
			Details:     "Set BYBIT_API_KEY environment variable or provide in config",
			IsRetryable: false,
		}
	}

	if config.APISecret == "" {
		return &ExchangeError{
			Code:        "MISSING_API_SECRET",
			Message:     "Bybit API secret is required",
			Details:     "Set BYBIT_API_SECRET environment variable or provide in config",
			IsRetryable: false,
		}
	}

	if config.Testnet && config.Demo {
		return &ExchangeError{
			Code:        "INVALID_ENVIRONMENT_CONFIG",
			Message:     "Cannot use both testnet and demo mode simultaneously",
			Details:     "Choose either testnet OR demo mode, not both",
			IsRetryable: false,
		}
	}

	return nil
}
