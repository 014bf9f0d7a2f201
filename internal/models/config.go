// Package models - Service configuration and operational settings.
// This file defines the configuration structures for all service components.
//
// Configuration Philosophy:
// - Hierarchical configuration with logical grouping (server, storage, rate limiting, etc.)
// - Environment-friendly defaults that work out of the box
// - Comprehensive validation to catch misconfigurations before they reach runtime code
// - The rate limit section is the only part that can change while the service runs
package models

import (
	"errors"
	"fmt"
	"time"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypePostgres = "postgres"
	StorageTypeSQLite   = "sqlite"
)

// Config is the root configuration structure containing all service settings.
//
// Configuration Structure:
// - Server: HTTP server and network settings
// - Storage: Listing persistence
// - Auth: Bearer token validation
// - RateLimit: Quota policy consumed by the rate limiting middleware
// - Logging: Structured logging and output configuration
// - Metrics / Observability: Prometheus and OpenTelemetry
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server" envPrefix:"SERVER_"`
	Storage       StorageConfig       `yaml:"storage" json:"storage" envPrefix:"STORAGE_"`
	Auth          AuthConfig          `yaml:"auth" json:"auth" envPrefix:"AUTH_"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit" json:"rate_limit" envPrefix:"RATE_LIMIT_"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging" envPrefix:"LOG_"`
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics" envPrefix:"METRICS_"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability" envPrefix:"OTEL_"`
}

type ServerConfig struct {
	Port         int           `yaml:"port" json:"port" env:"PORT"`
	Host         string        `yaml:"host" json:"host" env:"HOST"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout" env:"WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout" env:"IDLE_TIMEOUT"`
	TLSEnabled   bool          `yaml:"tls_enabled" json:"tls_enabled" env:"TLS_ENABLED"`
	TLSCertFile  string        `yaml:"tls_cert_file" json:"tls_cert_file" env:"TLS_CERT_FILE"`
	TLSKeyFile   string        `yaml:"tls_key_file" json:"tls_key_file" env:"TLS_KEY_FILE"`
}

type StorageConfig struct {
	Type     string         `yaml:"type" json:"type" env:"TYPE"`
	Database DatabaseConfig `yaml:"database" json:"database" envPrefix:"DATABASE_"`
}

type DatabaseConfig struct {
	DSN             string        `yaml:"dsn" json:"dsn" env:"DSN"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time" env:"CONN_MAX_IDLE_TIME"`
}

// AuthConfig configures the bearer token authenticator. Tokens are HS256
// JWTs whose "sub" claim identifies the caller and whose "roles" claim lists
// role names.
type AuthConfig struct {
	Enabled   bool          `yaml:"enabled" json:"enabled" env:"ENABLED"`
	JWTSecret string        `yaml:"jwt_secret" json:"-" env:"JWT_SECRET"`
	Issuer    string        `yaml:"issuer" json:"issuer" env:"ISSUER"`
	TokenTTL  time.Duration `yaml:"token_ttl" json:"token_ttl" env:"TOKEN_TTL"`
}

// RateLimitConfig is the serialized form of the rate limit policy.
//
// RoleLimits and EndpointLimits are maps so that operators can address
// entries by name in YAML; the runtime snapshot orders endpoint entries by
// name so evaluation order is stable across reloads. Neither can be set from
// the environment.
type RateLimitConfig struct {
	General         RateLimitGeneralConfig         `yaml:"general" json:"general"`
	Anonymous       TierLimitConfig                `yaml:"anonymous" json:"anonymous" envPrefix:"ANONYMOUS_"`
	Authenticated   TierLimitConfig                `yaml:"authenticated" json:"authenticated" envPrefix:"AUTHENTICATED_"`
	RoleLimits      map[string]TierLimitConfig     `yaml:"role_limits" json:"role_limits"`
	EndpointLimits  map[string]EndpointLimitConfig `yaml:"endpoint_limits" json:"endpoint_limits"`
	CleanupInterval time.Duration                  `yaml:"cleanup_interval" json:"cleanup_interval" env:"CLEANUP_INTERVAL"`
	ReloadDebounce  time.Duration                  `yaml:"reload_debounce" json:"reload_debounce" env:"RELOAD_DEBOUNCE"`
}

type RateLimitGeneralConfig struct {
	Enabled               bool     `yaml:"enabled" json:"enabled" env:"ENABLED"`
	WindowSeconds         int      `yaml:"window_seconds" json:"window_seconds" env:"WINDOW_SECONDS"`
	IPWhitelistEnabled    bool     `yaml:"ip_whitelist_enabled" json:"ip_whitelist_enabled" env:"IP_WHITELIST_ENABLED"`
	WhitelistedIPs        []string `yaml:"whitelisted_ips" json:"whitelisted_ips" env:"WHITELISTED_IPS"`
	ErrorMessage          string   `yaml:"error_message" json:"error_message" env:"ERROR_MESSAGE"`
	TrustForwardedHeaders bool     `yaml:"trust_forwarded_headers" json:"trust_forwarded_headers" env:"TRUST_FORWARDED_HEADERS"`
}

// TierLimitConfig holds per-period quotas. Zero disables a period.
type TierLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute" env:"PER_MINUTE"`
	RequestsPerHour   int `yaml:"requests_per_hour" json:"requests_per_hour" env:"PER_HOUR"`
	RequestsPerDay    int `yaml:"requests_per_day" json:"requests_per_day" env:"PER_DAY"`
}

type EndpointLimitConfig struct {
	Pattern              string   `yaml:"pattern" json:"pattern"`
	Methods              []string `yaml:"methods" json:"methods,omitempty"`
	TierLimitConfig      `yaml:",inline" json:",inline"`
	ApplyToAnonymous     bool `yaml:"apply_to_anonymous" json:"apply_to_anonymous"`
	ApplyToAuthenticated bool `yaml:"apply_to_authenticated" json:"apply_to_authenticated"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level" env:"LEVEL"`
	Format   string `yaml:"format" json:"format" env:"FORMAT"`
	Output   string `yaml:"output" json:"output" env:"OUTPUT"`
	FilePath string `yaml:"file_path" json:"file_path" env:"FILE_PATH"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled" env:"ENABLED"`
	Path    string `yaml:"path" json:"path" env:"PATH"`
	Port    int    `yaml:"port" json:"port" env:"PORT"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name" env:"SERVICE_NAME"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing" envPrefix:"TRACING_"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled" env:"ENABLED"`
	Exporter     string  `yaml:"exporter" json:"exporter" env:"EXPORTER"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate" env:"SAMPLE_RATE"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint" env:"OTLP_ENDPOINT"`
}

// DefaultRateLimitMessage is returned in the body of a 429 when no message is configured.
const DefaultRateLimitMessage = "Too many requests. Please try again later."

// NewDefaultConfig creates a configuration with production-ready defaults.
//
// Default Values Rationale:
// - Port 8080: Standard non-privileged HTTP port
// - Memory storage: Simple setup without external dependencies
// - Rate limiting enabled with a one minute window
// - Authenticated callers get a larger quota than anonymous ones
// - Structured JSON logging for log aggregation
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			TLSEnabled:   false,
		},
		Storage: StorageConfig{
			Type: StorageTypeMemory,
			Database: DatabaseConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
				ConnMaxIdleTime: 5 * time.Minute,
			},
		},
		Auth: AuthConfig{
			Enabled:  false,
			Issuer:   "marketplace",
			TokenTTL: time.Hour,
		},
		RateLimit: RateLimitConfig{
			General: RateLimitGeneralConfig{
				Enabled:        true,
				WindowSeconds:  60,
				WhitelistedIPs: []string{},
				ErrorMessage:   DefaultRateLimitMessage,
			},
			Anonymous: TierLimitConfig{
				RequestsPerMinute: 60,
				RequestsPerHour:   1000,
				RequestsPerDay:    10000,
			},
			Authenticated: TierLimitConfig{
				RequestsPerMinute: 120,
				RequestsPerHour:   5000,
				RequestsPerDay:    50000,
			},
			RoleLimits:      map[string]TierLimitConfig{},
			EndpointLimits:  map[string]EndpointLimitConfig{},
			CleanupInterval: time.Minute,
			ReloadDebounce:  250 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "marketplace",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "stdout",
				SampleRate: 1.0,
			},
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("invalid storage config: %w", err)
	}

	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("invalid auth config: %w", err)
	}

	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("invalid rate limit config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}

	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("invalid observability config: %w", err)
	}

	return nil
}

func (sc *ServerConfig) Validate() error {
	if sc.Port <= 0 || sc.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}

	if sc.Host == "" {
		return errors.New("host cannot be empty")
	}

	if sc.ReadTimeout < 0 {
		return errors.New("read timeout cannot be negative")
	}

	if sc.WriteTimeout < 0 {
		return errors.New("write timeout cannot be negative")
	}

	if sc.IdleTimeout < 0 {
		return errors.New("idle timeout cannot be negative")
	}

	if sc.TLSEnabled {
		if sc.TLSCertFile == "" {
			return errors.New("TLS cert file is required when TLS is enabled")
		}
		if sc.TLSKeyFile == "" {
			return errors.New("TLS key file is required when TLS is enabled")
		}
	}

	return nil
}

func (stc *StorageConfig) Validate() error {
	switch stc.Type {
	case StorageTypeMemory:
		return nil
	case StorageTypePostgres, StorageTypeSQLite:
		if stc.Database.DSN == "" {
			return errors.New("database DSN is required for database storage")
		}
		return nil
	default:
		return fmt.Errorf("invalid storage type: %s", stc.Type)
	}
}

func (ac *AuthConfig) Validate() error {
	if !ac.Enabled {
		return nil
	}
	if len(ac.JWTSecret) < 32 {
		return errors.New("jwt secret must be at least 32 bytes when auth is enabled")
	}
	if ac.TokenTTL < 0 {
		return errors.New("token TTL cannot be negative")
	}
	return nil
}

// Validate checks the rate limit policy. The middleware assumes every
// snapshot it receives has passed this check.
func (rc *RateLimitConfig) Validate() error {
	if rc.General.WindowSeconds <= 0 {
		return errors.New("window seconds must be positive")
	}

	if err := rc.Anonymous.Validate(); err != nil {
		return fmt.Errorf("anonymous: %w", err)
	}

	if err := rc.Authenticated.Validate(); err != nil {
		return fmt.Errorf("authenticated: %w", err)
	}

	for role, limit := range rc.RoleLimits {
		if role == "" {
			return errors.New("role limit name cannot be empty")
		}
		if err := limit.Validate(); err != nil {
			return fmt.Errorf("role %s: %w", role, err)
		}
	}

	for name, endpoint := range rc.EndpointLimits {
		if endpoint.Pattern == "" {
			return fmt.Errorf("endpoint %s: pattern cannot be empty", name)
		}
		if endpoint.Pattern[0] != '/' && endpoint.Pattern[0] != '*' {
			return fmt.Errorf("endpoint %s: pattern must start with '/' or '*'", name)
		}
		if err := endpoint.TierLimitConfig.Validate(); err != nil {
			return fmt.Errorf("endpoint %s: %w", name, err)
		}
	}

	if rc.CleanupInterval < 0 {
		return errors.New("cleanup interval cannot be negative")
	}

	if rc.ReloadDebounce < 0 {
		return errors.New("reload debounce cannot be negative")
	}

	return nil
}

func (tl *TierLimitConfig) Validate() error {
	if tl.RequestsPerMinute < 0 {
		return errors.New("requests per minute cannot be negative")
	}
	if tl.RequestsPerHour < 0 {
		return errors.New("requests per hour cannot be negative")
	}
	if tl.RequestsPerDay < 0 {
		return errors.New("requests per day cannot be negative")
	}
	return nil
}

func (lc *LoggingConfig) Validate() error {
	validLevels := []string{"debug", "info", "warn", "error"}
	found := false
	for _, vl := range validLevels {
		if lc.Level == vl {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}

	validFormats := []string{"json", "text"}
	found = false
	for _, vf := range validFormats {
		if lc.Format == vf {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid log format: %s", lc.Format)
	}

	validOutputs := []string{"stdout", "stderr", "file"}
	found = false
	for _, vo := range validOutputs {
		if lc.Output == vo {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("invalid log output: %s", lc.Output)
	}

	if lc.Output == "file" && lc.FilePath == "" {
		return errors.New("file path is required when output is file")
	}

	return nil
}

func (mc *MetricsConfig) Validate() error {
	if !mc.Enabled {
		return nil
	}

	if mc.Path == "" {
		return errors.New("metrics path cannot be empty")
	}

	if mc.Port <= 0 || mc.Port > 65535 {
		return errors.New("metrics port must be between 1 and 65535")
	}

	return nil
}

func (oc *ObservabilityConfig) Validate() error {
	if !oc.Tracing.Enabled {
		return nil
	}

	switch oc.Tracing.Exporter {
	case "stdout", "otlp":
	default:
		return fmt.Errorf("invalid tracing exporter: %s", oc.Tracing.Exporter)
	}

	if oc.Tracing.SampleRate < 0 || oc.Tracing.SampleRate > 1 {
		return errors.New("tracing sample rate must be between 0 and 1")
	}

	if oc.Tracing.Exporter == "otlp" && oc.Tracing.OTLPEndpoint == "" {
		return errors.New("OTLP endpoint is required when tracing exporter is otlp")
	}

	return nil
}
