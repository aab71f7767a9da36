package bootstrap

import (
	"fmt"
	"gridbot/internal/config"
)

// Config is an alias for the project's main configuration struct
type Config = config.Config

// LoadConfig delegates to the project's config loader and applies
// pre-flight checks the schema-level validation in config.Validate can't
// express on its own.
func LoadConfig(path string) (*Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	if err := checkPreFlight(cfg); err != nil {
		return nil, fmt.Errorf("pre-flight checks failed: %w", err)
	}

	return cfg, nil
}

// checkPreFlight performs environment checks beyond schema validation.
func checkPreFlight(cfg *Config) error {
	if cfg.Chain.Driver == "rpc" && cfg.Chain.APIKey == "" {
		return fmt.Errorf("chain.api_key is required when chain.driver is 'rpc'")
	}
	if cfg.Persistence.Driver == "sqlite" && cfg.Persistence.DSN == "" {
		return fmt.Errorf("persistence.dsn is required when persistence.driver is 'sqlite'")
	}
	return nil
}
