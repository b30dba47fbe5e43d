// Package config handles configuration management with validation.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete engine configuration.
type Config struct {
	App         AppConfig                 `yaml:"app"`
	Exchanges   map[string]ExchangeConfig `yaml:"exchanges"`
	EventBus    EventBusConfig            `yaml:"event_bus"`
	CandleStore CandleStoreConfig         `yaml:"candle_store"`
	Risk        RiskConfig                `yaml:"risk"`
	Retry       RetryConfig               `yaml:"retry"`
	Strategy    map[string]StrategyConfig `yaml:"strategy"`
	System      SystemConfig              `yaml:"system"`
	Telemetry   TelemetryConfig           `yaml:"telemetry"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	CurrentExchange string   `yaml:"current_exchange"`
	ActiveExchanges []string `yaml:"active_exchanges"`
	Testnet         bool     `yaml:"testnet"`
	Symbols         []string `yaml:"symbols" validate:"required,min=1"`
}

// ExchangeConfig contains exchange-specific credentials.
type ExchangeConfig struct {
	APIKey    string `yaml:"api_key" validate:"required"`
	SecretKey string `yaml:"secret_key" validate:"required"`
	BaseURL   string `yaml:"base_url"`
}

// EventBusConfig tunes the event bus (§4.1).
type EventBusConfig struct {
	WorkerCount  int `yaml:"worker_count" validate:"required,min=1"`
	MaxQueueSize int `yaml:"max_queue_size" validate:"required,min=1"`
}

// CandleStoreConfig tunes the candle ring and active timeframe set (§4.2).
type CandleStoreConfig struct {
	MaxCandlesPerStorage int      `yaml:"max_candles_per_storage" validate:"required,min=1"`
	Timeframes           []string `yaml:"timeframes" validate:"required,min=1"`
	OutlierFraction      float64  `yaml:"outlier_fraction" validate:"min=0,max=1"`
}

// RiskConfig mirrors the Risk Validator's configuration surface (§4.9, §6).
type RiskConfig struct {
	RiskPerTradePct          float64    `yaml:"risk_per_trade_pct" validate:"min=0,max=100"`
	Leverage                 int        `yaml:"leverage" validate:"required,min=1"`
	DailyLossLimitPct        float64    `yaml:"daily_loss_limit_pct" validate:"min=0,max=100"`
	PositionSizeTolerancePct float64    `yaml:"position_size_tolerance_pct"`
	StopDistancePct          [2]float64 `yaml:"stop_distance_pct"`
	RiskRewardRatio          [2]float64 `yaml:"risk_reward_ratio"`
	MinSize                  float64    `yaml:"min_size"`
	MaxSize                  float64    `yaml:"max_size"`
}

// RetryConfig is the shared retry policy object referenced by §9's
// "retry as a policy object" note.
type RetryConfig struct {
	MaxRetries int    `yaml:"max_retries" validate:"min=1"`
	BaseDelay  string `yaml:"base_delay"`
	MaxDelay   string `yaml:"max_delay"`
	Strategy   string `yaml:"strategy" validate:"oneof=FIXED LINEAR EXPONENTIAL CUSTOM"`
}

// StrategyConfig is the per-strategy knob set from §6.
type StrategyConfig struct {
	Enabled       bool    `yaml:"enabled"`
	MinConfidence float64 `yaml:"min_confidence"`
	MaxPositions  int     `yaml:"max_positions"`
}

// SystemConfig contains system-wide settings.
type SystemConfig struct {
	LogLevel                     string `yaml:"log_level" validate:"required,oneof=DEBUG INFO WARN ERROR FATAL"`
	EmergencyLiquidationEnabled  bool   `yaml:"emergency_liquidation_enabled"`
	PositionSyncIntervalSeconds  int    `yaml:"position_sync_interval_seconds"`
	ShutdownDeadlineSeconds      int    `yaml:"shutdown_deadline_seconds"`
}

// TelemetryConfig contains telemetry settings.
type TelemetryConfig struct {
	MetricsPort   int  `yaml:"metrics_port"`
	EnableMetrics bool `yaml:"enable_metrics"`
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment
// variable expansion.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate performs comprehensive validation of the configuration.
func (c *Config) Validate() error {
	var errs []string

	if err := c.validateApp(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateExchanges(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateEventBus(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateCandleStore(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateRisk(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateSystem(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errs, "\n"))
	}
	return nil
}

func (c *Config) validateApp() error {
	if len(c.App.ActiveExchanges) == 0 {
		if c.App.CurrentExchange != "" {
			c.App.ActiveExchanges = []string{c.App.CurrentExchange}
		} else {
			return ValidationError{Field: "app.active_exchanges", Message: "at least one exchange must be active"}
		}
	}
	if len(c.App.Symbols) == 0 {
		return ValidationError{Field: "app.symbols", Message: "at least one symbol is required"}
	}
	return nil
}

func (c *Config) validateExchanges() error {
	for _, ex := range c.App.ActiveExchanges {
		if ex == "mock" {
			continue
		}
		cfg, exists := c.Exchanges[ex]
		if !exists {
			return ValidationError{Field: "app.active_exchanges", Value: ex, Message: "exchange configuration not found in exchanges section"}
		}
		if cfg.APIKey == "" || cfg.SecretKey == "" {
			return ValidationError{Field: fmt.Sprintf("exchanges.%s", ex), Message: "api_key and secret_key are required"}
		}
	}
	return nil
}

func (c *Config) validateEventBus() error {
	if c.EventBus.WorkerCount < 1 {
		return ValidationError{Field: "event_bus.worker_count", Value: c.EventBus.WorkerCount, Message: "must be >= 1"}
	}
	if c.EventBus.MaxQueueSize < 1 {
		return ValidationError{Field: "event_bus.max_queue_size", Value: c.EventBus.MaxQueueSize, Message: "must be > 0"}
	}
	return nil
}

func (c *Config) validateCandleStore() error {
	if c.CandleStore.MaxCandlesPerStorage < 1 {
		return ValidationError{Field: "candle_store.max_candles_per_storage", Message: "must be > 0"}
	}
	if len(c.CandleStore.Timeframes) == 0 {
		return ValidationError{Field: "candle_store.timeframes", Message: "at least one timeframe is required"}
	}
	return nil
}

func (c *Config) validateRisk() error {
	if c.Risk.Leverage < 1 {
		return ValidationError{Field: "risk.leverage", Value: c.Risk.Leverage, Message: "must be >= 1"}
	}
	if c.Risk.DailyLossLimitPct <= 0 || c.Risk.DailyLossLimitPct > 100 {
		return ValidationError{Field: "risk.daily_loss_limit_pct", Value: c.Risk.DailyLossLimitPct, Message: "must be in (0,100]"}
	}
	return nil
}

func (c *Config) validateSystem() error {
	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLevels, strings.ToUpper(c.System.LogLevel)) {
		return ValidationError{Field: "system.log_level", Value: c.System.LogLevel, Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", "))}
	}
	return nil
}

// String returns a string representation of the configuration with
// sensitive data masked.
func (c *Config) String() string {
	cp := *c
	cp.Exchanges = make(map[string]ExchangeConfig, len(c.Exchanges))
	for name, ex := range c.Exchanges {
		ex.APIKey = maskString(ex.APIKey)
		ex.SecretKey = maskString(ex.SecretKey)
		cp.Exchanges[name] = ex
	}
	data, _ := yaml.Marshal(cp)
	return string(data)
}

func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		return os.Getenv(key)
	})
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func maskString(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}

// DefaultConfig returns a working configuration for tests.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			CurrentExchange: "mock",
			ActiveExchanges: []string{"mock"},
			Testnet:         true,
			Symbols:         []string{"BTCUSDT"},
		},
		Exchanges: map[string]ExchangeConfig{},
		EventBus: EventBusConfig{
			WorkerCount:  3,
			MaxQueueSize: 1000,
		},
		CandleStore: CandleStoreConfig{
			MaxCandlesPerStorage: 500,
			Timeframes:           []string{"M1", "M15", "H1"},
			OutlierFraction:      0.5,
		},
		Risk: RiskConfig{
			RiskPerTradePct:          2.0,
			Leverage:                 5,
			DailyLossLimitPct:        6.0,
			PositionSizeTolerancePct: 5.0,
			StopDistancePct:          [2]float64{0.3, 3.0},
			RiskRewardRatio:          [2]float64{1.5, 5.0},
			MinSize:                  0.0001,
			MaxSize:                  1000,
		},
		Retry: RetryConfig{
			MaxRetries: 3,
			BaseDelay:  "1s",
			MaxDelay:   "30s",
			Strategy:   "EXPONENTIAL",
		},
		Strategy: map[string]StrategyConfig{
			"A": {Enabled: true, MinConfidence: 0.80, MaxPositions: 3},
			"B": {Enabled: true, MinConfidence: 0.60, MaxPositions: 3},
			"C": {Enabled: true, MinConfidence: 0.70, MaxPositions: 3},
		},
		System: SystemConfig{
			LogLevel:                    "INFO",
			EmergencyLiquidationEnabled: true,
			PositionSyncIntervalSeconds: 60,
			ShutdownDeadlineSeconds:     30,
		},
		Telemetry: TelemetryConfig{
			MetricsPort:   9090,
			EnableMetrics: true,
		},
	}
}
