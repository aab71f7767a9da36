// Package config handles configuration management with validation
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete configuration for one gridbot process. A process
// may run several bots, each with its own Grid/Tuning block, sharing one
// System/Telemetry/Persistence block.
type Config struct {
	System      SystemConfig      `yaml:"system"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Chain       ChainConfig       `yaml:"chain"`
	LiveServer  LiveServerConfig  `yaml:"live_server"`
	Alert       AlertConfig       `yaml:"alert"`
	Bots        []BotConfig       `yaml:"bots" validate:"required,min=1"`
}

// AlertConfig configures the operator alert channels a circuit-breaker trip
// or unrepairable grid index corruption fans out to. Each channel is optional;
// leaving its fields blank omits it.
type AlertConfig struct {
	SlackWebhookURL  Secret `yaml:"slack_webhook_url"`
	TelegramBotToken Secret `yaml:"telegram_bot_token"`
	TelegramChatID   string `yaml:"telegram_chat_id"`
}

// LiveServerConfig configures the read-only operator WebSocket feed
// (pkg/liveserver) that broadcasts each bot's grid status and fills.
type LiveServerConfig struct {
	Enable         bool     `yaml:"enable"`
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// SystemConfig contains process-level settings.
type SystemConfig struct {
	LogLevel     string `yaml:"log_level" validate:"required,oneof=DEBUG INFO WARN ERROR FATAL"`
	CancelOnExit bool   `yaml:"cancel_on_exit"`
}

// TelemetryConfig contains metrics/tracing export settings.
type TelemetryConfig struct {
	MetricsPort   int  `yaml:"metrics_port"`
	EnableMetrics bool `yaml:"enable_metrics"`
}

// PersistenceConfig selects and configures the Persistence contract
// implementation.
type PersistenceConfig struct {
	Driver string `yaml:"driver" validate:"required,oneof=memory sqlite"`
	DSN    string `yaml:"dsn"`
}

// ChainConfig configures the Chain Adapter.
type ChainConfig struct {
	Driver           string `yaml:"driver" validate:"required,oneof=fake rpc"`
	Endpoint         string `yaml:"endpoint"`
	AccountID        string `yaml:"account_id"`
	APIKey           Secret `yaml:"api_key"`
	SecretKey        Secret `yaml:"secret_key"`
	RequestsPerSecond int   `yaml:"requests_per_second" validate:"min=1,max=1000"`
}

// GridConfig holds the recognized grid-shape options for one bot.
type GridConfig struct {
	AssetA              string            `yaml:"asset_a" validate:"required"`
	AssetB              string            `yaml:"asset_b" validate:"required"`
	StartPrice          string            `yaml:"start_price" validate:"required"` // number | "pool" | "market"
	MinPrice            float64           `yaml:"min_price" validate:"required,min=0"`
	MaxPrice            float64           `yaml:"max_price" validate:"required,gtfield=MinPrice"`
	IncrementPercent    float64           `yaml:"increment_percent" validate:"required,min=0"`
	TargetSpreadPercent float64           `yaml:"target_spread_percent" validate:"min=0"`
	WeightDistribution  WeightDistribution `yaml:"weight_distribution"`
	BotFunds            FundsConfig       `yaml:"bot_funds"`
	ActiveOrders        ActiveOrdersConfig `yaml:"active_orders"`
}

// WeightDistribution is the per-side weight exponent, constrained to [-1, 2].
type WeightDistribution struct {
	Buy  float64 `yaml:"buy" validate:"min=-1,max=2"`
	Sell float64 `yaml:"sell" validate:"min=-1,max=2"`
}

// FundsConfig holds either an absolute amount or a "N%" share string per
// side; resolution against the account's free balance happens at bot
// startup, not here.
type FundsConfig struct {
	Buy  string `yaml:"buy" validate:"required"`
	Sell string `yaml:"sell" validate:"required"`
}

// ActiveOrdersConfig is the target resting-order count per side.
type ActiveOrdersConfig struct {
	Buy  int `yaml:"buy" validate:"required,min=1"`
	Sell int `yaml:"sell" validate:"required,min=1"`
}

// BotConfig is one grid bot's full configuration: identity, grid shape, and
// tuning overrides.
type BotConfig struct {
	Key              string     `yaml:"key" validate:"required"`
	PreferredAccount string     `yaml:"preferred_account"`
	DryRun           bool       `yaml:"dry_run"`
	Active           bool       `yaml:"active"`
	Grid             GridConfig `yaml:"grid"`
	Tuning           Tuning     `yaml:"tuning"`
}

// Tuning is the named tuning-constant block; DefaultTuning applies sensible
// defaults for every field.
type Tuning struct {
	GridRegenerationPercent       float64 `yaml:"grid_regeneration_percentage" validate:"min=0"`
	RMSPercent                    float64 `yaml:"rms_percentage" validate:"min=0"`
	PartialDustThresholdPercent   float64 `yaml:"partial_dust_threshold_percentage" validate:"min=0"`
	BlockchainFetchIntervalMin    int     `yaml:"blockchain_fetch_interval_min" validate:"min=1"`
	SyncDelayMs                   int     `yaml:"sync_delay_ms" validate:"min=0"`
	LockTimeoutMs                 int     `yaml:"lock_timeout_ms" validate:"min=1"`
	AccountTotalsTimeoutMs        int     `yaml:"account_totals_timeout_ms" validate:"min=1"`
	RunLoopMs                     int     `yaml:"run_loop_ms" validate:"min=1"`
}

// DefaultTuning returns the baseline tuning constants used when a bot's
// config doesn't override them.
func DefaultTuning() Tuning {
	return Tuning{
		GridRegenerationPercent:     3,
		RMSPercent:                  14.3,
		PartialDustThresholdPercent: 5,
		BlockchainFetchIntervalMin:  240,
		SyncDelayMs:                 500,
		LockTimeoutMs:               10000,
		AccountTotalsTimeoutMs:      10000,
		RunLoopMs:                   5000,
	}
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

// LoadConfig loads configuration from a YAML file with environment variable
// expansion, applies tuning defaults for any zero-valued field, and
// validates the result.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	for i := range cfg.Bots {
		applyTuningDefaults(&cfg.Bots[i].Tuning)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func applyTuningDefaults(t *Tuning) {
	d := DefaultTuning()
	if t.GridRegenerationPercent == 0 {
		t.GridRegenerationPercent = d.GridRegenerationPercent
	}
	if t.RMSPercent == 0 {
		t.RMSPercent = d.RMSPercent
	}
	if t.PartialDustThresholdPercent == 0 {
		t.PartialDustThresholdPercent = d.PartialDustThresholdPercent
	}
	if t.BlockchainFetchIntervalMin == 0 {
		t.BlockchainFetchIntervalMin = d.BlockchainFetchIntervalMin
	}
	if t.SyncDelayMs == 0 {
		t.SyncDelayMs = d.SyncDelayMs
	}
	if t.LockTimeoutMs == 0 {
		t.LockTimeoutMs = d.LockTimeoutMs
	}
	if t.AccountTotalsTimeoutMs == 0 {
		t.AccountTotalsTimeoutMs = d.AccountTotalsTimeoutMs
	}
	if t.RunLoopMs == 0 {
		t.RunLoopMs = d.RunLoopMs
	}
}

// Validate performs comprehensive validation of the configuration.
func (c *Config) Validate() error {
	var errs []string

	if err := c.validateSystemConfig(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validatePersistenceConfig(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateChainConfig(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateBots(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errs, "\n"))
	}
	return nil
}

func (c *Config) validateSystemConfig() error {
	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLevels, strings.ToUpper(c.System.LogLevel)) {
		return ValidationError{Field: "system.log_level", Value: c.System.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", "))}
	}
	return nil
}

func (c *Config) validatePersistenceConfig() error {
	validDrivers := []string{"memory", "sqlite"}
	if !contains(validDrivers, c.Persistence.Driver) {
		return ValidationError{Field: "persistence.driver", Value: c.Persistence.Driver,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validDrivers, ", "))}
	}
	if c.Persistence.Driver == "sqlite" && c.Persistence.DSN == "" {
		return ValidationError{Field: "persistence.dsn", Message: "required when driver is sqlite"}
	}
	return nil
}

func (c *Config) validateChainConfig() error {
	validDrivers := []string{"fake", "rpc"}
	if !contains(validDrivers, c.Chain.Driver) {
		return ValidationError{Field: "chain.driver", Value: c.Chain.Driver,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validDrivers, ", "))}
	}
	if c.Chain.Driver == "rpc" && c.Chain.Endpoint == "" {
		return ValidationError{Field: "chain.endpoint", Message: "required when driver is rpc"}
	}
	return nil
}

func (c *Config) validateBots() error {
	if len(c.Bots) == 0 {
		return ValidationError{Field: "bots", Message: "at least one bot must be configured"}
	}
	seen := map[string]bool{}
	for _, b := range c.Bots {
		if b.Key == "" {
			return ValidationError{Field: "bots[].key", Message: "bot key is required"}
		}
		if seen[b.Key] {
			return ValidationError{Field: "bots[].key", Value: b.Key, Message: "duplicate bot key"}
		}
		seen[b.Key] = true
		if b.Grid.AssetA == "" || b.Grid.AssetB == "" {
			return ValidationError{Field: "bots[].grid", Value: b.Key, Message: "asset_a and asset_b are required"}
		}
		if b.Grid.MaxPrice <= b.Grid.MinPrice {
			return ValidationError{Field: "bots[].grid.max_price", Value: b.Key, Message: "max_price must exceed min_price"}
		}
		if b.Grid.WeightDistribution.Buy < -1 || b.Grid.WeightDistribution.Buy > 2 ||
			b.Grid.WeightDistribution.Sell < -1 || b.Grid.WeightDistribution.Sell > 2 {
			return ValidationError{Field: "bots[].grid.weight_distribution", Value: b.Key, Message: "weight must be in [-1, 2]"}
		}
	}
	return nil
}

// String returns a string representation of the configuration with
// sensitive fields redacted by Secret's own marshaling.
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}

func expandEnvVars(s string) string {
	return os.Expand(s, os.Getenv)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// DefaultConfig returns a default configuration for testing.
func DefaultConfig() *Config {
	return &Config{
		System:      SystemConfig{LogLevel: "INFO", CancelOnExit: true},
		Telemetry:   TelemetryConfig{EnableMetrics: true, MetricsPort: 9090},
		Persistence: PersistenceConfig{Driver: "memory"},
		Chain:       ChainConfig{Driver: "fake", RequestsPerSecond: 10},
		LiveServer:  LiveServerConfig{Enable: false, Addr: ":8090"},
		Bots: []BotConfig{
			{
				Key:    "btc-usd-1",
				Active: true,
				Grid: GridConfig{
					AssetA:              "BTC",
					AssetB:              "USD",
					StartPrice:          "market",
					MinPrice:            20000,
					MaxPrice:            40000,
					IncrementPercent:    1.0,
					TargetSpreadPercent: 2.0,
					WeightDistribution:  WeightDistribution{Buy: 0, Sell: 0},
					BotFunds:            FundsConfig{Buy: "50%", Sell: "50%"},
					ActiveOrders:        ActiveOrdersConfig{Buy: 5, Sell: 5},
				},
				Tuning: DefaultTuning(),
			},
		},
	}
}
