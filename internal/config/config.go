package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"marketplace/internal/models"
)

// EnvPrefix prefixes every environment variable override, e.g.
// MARKETPLACE_SERVER_PORT or MARKETPLACE_RATE_LIMIT_ANONYMOUS_PER_MINUTE.
const EnvPrefix = "MARKETPLACE_"

// Load builds the configuration from defaults, the YAML file at configPath
// (when non-empty), and environment overrides, then validates the result.
func Load(configPath string) (*models.Config, error) {
	config := models.NewDefaultConfig()

	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := loadFromEnvironment(config); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile overlays the YAML file onto config. Keys absent from the file
// keep their current values.
func loadFromFile(config *models.Config, filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", filePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

// loadFromEnvironment applies MARKETPLACE_* variables. Unset variables leave
// the field untouched; malformed values are an error.
func loadFromEnvironment(config *models.Config) error {
	return env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix})
}

// SaveExample writes an example configuration including sample role and
// endpoint overrides.
func SaveExample(filePath string) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	config := models.NewDefaultConfig()

	config.Auth.Enabled = true
	config.Auth.JWTSecret = "replace-with-a-secret-of-at-least-32-bytes"
	config.Auth.Issuer = "marketplace"

	config.RateLimit.General.IPWhitelistEnabled = true
	config.RateLimit.General.WhitelistedIPs = []string{"127.0.0.1"}
	config.RateLimit.RoleLimits = map[string]models.TierLimitConfig{
		"seller": {RequestsPerMinute: 300, RequestsPerHour: 10000, RequestsPerDay: 100000},
		"admin":  {RequestsPerMinute: 1000, RequestsPerHour: 50000, RequestsPerDay: 500000},
	}
	config.RateLimit.EndpointLimits = map[string]models.EndpointLimitConfig{
		"search": {
			Pattern:              "/api/v1/search*",
			Methods:              []string{"GET"},
			TierLimitConfig:      models.TierLimitConfig{RequestsPerMinute: 30, RequestsPerHour: 500},
			ApplyToAnonymous:     true,
			ApplyToAuthenticated: false,
		},
		"create-listing": {
			Pattern:              "/api/v1/listings",
			Methods:              []string{"POST"},
			TierLimitConfig:      models.TierLimitConfig{RequestsPerMinute: 10, RequestsPerDay: 200},
			ApplyToAnonymous:     true,
			ApplyToAuthenticated: true,
		},
	}

	config.Server.TLSCertFile = "/path/to/cert.pem"
	config.Server.TLSKeyFile = "/path/to/key.pem"

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
