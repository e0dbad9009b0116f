package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ducminhle1904/crypto-signal-trader/internal/exchange"
	"github.com/ducminhle1904/crypto-signal-trader/internal/logger"
	"github.com/ducminhle1904/crypto-signal-trader/internal/telemetry"
)

// Store drivers
const (
	StoreDriverFile   = "file"
	StoreDriverMemory = "memory"
)

// Config represents the complete configuration for the trader
type Config struct {
	Trading       TradingConfig           `yaml:"trading"`
	Exchange      exchange.ExchangeConfig `yaml:"exchange"`
	Store         StoreConfig             `yaml:"store"`
	Logging       logger.Config           `yaml:"logging"`
	Tracing       telemetry.Config        `yaml:"tracing"`
	Notifications NotificationConfig      `yaml:"notifications"`
	Server        ServerConfig            `yaml:"server"`
}

// TradingConfig holds the risk and signal lifecycle parameters
type TradingConfig struct {
	RiskPerTrade      float64       `yaml:"risk_per_trade"`      // Fraction of equity lost when the stop is hit
	MaxOpenPositions  int           `yaml:"max_open_positions"`  // Ceiling on concurrently OPEN trades
	PositionSafetyCap float64       `yaml:"position_safety_cap"` // Max fraction of equity committed as notional
	MinConfidence     float64       `yaml:"min_confidence"`      // Signals below this are refused at intake
	SignalExpiry      time.Duration `yaml:"signal_expiry"`
	StopLossPct       float64       `yaml:"stop_loss_pct"`   // Fills a missing stop relative to entry
	TakeProfitPct     float64       `yaml:"take_profit_pct"` // Fills a missing target relative to entry
	QuoteAsset        string        `yaml:"quote_asset"`
	CycleInterval     time.Duration `yaml:"cycle_interval"`
}

// StoreConfig selects the persistence backend
type StoreConfig struct {
	Driver string `yaml:"driver"` // file or memory
	Path   string `yaml:"path"`
}

// NotificationConfig holds notification settings
type NotificationConfig struct {
	Enabled       bool   `yaml:"enabled"`
	TelegramToken string `yaml:"telegram_token,omitempty"`
	TelegramChat  string `yaml:"telegram_chat,omitempty"`
}

// ServerConfig controls the status API
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Default returns the configuration used when no file overrides a value
func Default() *Config {
	c := &Config{
		Logging: logger.Config{Level: "info", Dir: "logs", Console: true},
		Tracing: telemetry.Config{ServiceName: "crypto-signal-trader"},
	}
	c.setDefaults()
	return c
}

// Load reads a YAML config file, applies defaults and environment overrides
// and validates the result. A bare file name is looked up in configs/.
func Load(path string) (*Config, error) {
	if !strings.ContainsAny(path, "/\\") {
		path = filepath.Join("configs", path)
	}
	if filepath.Ext(path) == "" {
		path += ".yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return Parse(data)
}

// Parse builds a config from YAML bytes
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.setDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// setDefaults sets default values for missing configuration
func (c *Config) setDefaults() {
	t := &c.Trading
	if t.RiskPerTrade == 0 {
		t.RiskPerTrade = 0.02
	}
	if t.MaxOpenPositions == 0 {
		t.MaxOpenPositions = 5
	}
	if t.PositionSafetyCap == 0 {
		t.PositionSafetyCap = 0.95
	}
	if t.MinConfidence == 0 {
		t.MinConfidence = 90
	}
	if t.SignalExpiry == 0 {
		t.SignalExpiry = 4 * time.Hour
	}
	if t.StopLossPct == 0 {
		t.StopLossPct = 0.02
	}
	if t.TakeProfitPct == 0 {
		t.TakeProfitPct = 0.04
	}
	if t.QuoteAsset == "" {
		t.QuoteAsset = "USDT"
	}
	if t.CycleInterval == 0 {
		t.CycleInterval = 5 * time.Minute
	}

	if c.Exchange.Name == "" {
		c.Exchange.Name = "bybit"
	}
	if c.Exchange.Category == "" {
		c.Exchange.Category = exchange.CategorySpot
	}

	if c.Store.Driver == "" {
		c.Store.Driver = StoreDriverFile
	}
	if c.Store.Path == "" {
		c.Store.Path = filepath.Join("data", "trader_state.json")
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
}

// applyEnv lets secrets and the log level come from the environment
func (c *Config) applyEnv() {
	key, secret := os.Getenv("BYBIT_API_KEY"), os.Getenv("BYBIT_API_SECRET")
	if key != "" || secret != "" {
		if c.Exchange.Bybit == nil {
			c.Exchange.Bybit = &exchange.BybitConfig{}
		}
		if key != "" {
			c.Exchange.Bybit.APIKey = key
		}
		if secret != "" {
			c.Exchange.Bybit.APISecret = secret
		}
	}

	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		c.Notifications.TelegramToken = token
	}
	if chat := os.Getenv("TELEGRAM_CHAT_ID"); chat != "" {
		c.Notifications.TelegramChat = chat
	}
	if level := os.Getenv("TRADER_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// Validate checks ranges and enumerations. Credentials are checked when the
// exchange client is built so offline commands work without them.
func (c *Config) Validate() error {
	t := c.Trading
	if t.RiskPerTrade <= 0 || t.RiskPerTrade > 1 {
		return fmt.Errorf("risk_per_trade must be in (0, 1], got %v", t.RiskPerTrade)
	}
	if t.PositionSafetyCap <= 0 || t.PositionSafetyCap > 1 {
		return fmt.Errorf("position_safety_cap must be in (0, 1], got %v", t.PositionSafetyCap)
	}
	if t.MaxOpenPositions < 1 {
		return fmt.Errorf("max_open_positions must be at least 1, got %d", t.MaxOpenPositions)
	}
	if t.MinConfidence < 0 || t.MinConfidence > 100 {
		return fmt.Errorf("min_confidence must be in [0, 100], got %v", t.MinConfidence)
	}
	if t.StopLossPct <= 0 || t.StopLossPct >= 1 {
		return fmt.Errorf("stop_loss_pct must be in (0, 1), got %v", t.StopLossPct)
	}
	if t.TakeProfitPct <= 0 {
		return fmt.Errorf("take_profit_pct must be positive, got %v", t.TakeProfitPct)
	}
	if t.SignalExpiry < 0 {
		return fmt.Errorf("signal_expiry must not be negative")
	}
	if t.CycleInterval < time.Second {
		return fmt.Errorf("cycle_interval must be at least 1s, got %s", t.CycleInterval)
	}

	if !strings.EqualFold(c.Exchange.Name, "bybit") {
		return fmt.Errorf("exchange %q is not supported", c.Exchange.Name)
	}
	switch strings.ToLower(c.Exchange.Category) {
	case exchange.CategorySpot, exchange.CategoryLinear:
	default:
		return fmt.Errorf("exchange category %q is not supported", c.Exchange.Category)
	}

	switch c.Store.Driver {
	case StoreDriverFile, StoreDriverMemory:
	default:
		return fmt.Errorf("store driver %q is not supported", c.Store.Driver)
	}

	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return err
	}

	if c.Notifications.Enabled && (c.Notifications.TelegramToken == "" || c.Notifications.TelegramChat == "") {
		return fmt.Errorf("notifications enabled but telegram token or chat id missing")
	}
	return nil
}

// ValidateExchange runs the full exchange check, credentials included
func (c *Config) ValidateExchange() error {
	return exchange.NewExchangeFactory().ValidateConfig(c.Exchange)
}
