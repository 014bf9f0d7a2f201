package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace/internal/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8081
  host: "localhost"
  read_timeout: 15s

storage:
  type: "sqlite"
  database:
    dsn: "file:marketplace.db"
    max_open_conns: 4

auth:
  enabled: true
  jwt_secret: "0123456789abcdef0123456789abcdef"
  issuer: "marketplace-test"

rate_limit:
  general:
    enabled: true
    window_seconds: 30
    ip_whitelist_enabled: true
    whitelisted_ips: ["127.0.0.1", "10.0.0.5"]
    error_message: "Slow down"
  anonymous:
    requests_per_minute: 10
    requests_per_hour: 100
  authenticated:
    requests_per_minute: 50
  role_limits:
    seller:
      requests_per_minute: 200
  endpoint_limits:
    search:
      pattern: "/api/v1/search*"
      methods: ["GET"]
      requests_per_minute: 5
      apply_to_anonymous: true
      apply_to_authenticated: false

logging:
  level: "debug"
  format: "text"
`)

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8081, config.Server.Port)
	assert.Equal(t, "localhost", config.Server.Host)
	assert.Equal(t, 15*time.Second, config.Server.ReadTimeout)

	assert.Equal(t, models.StorageTypeSQLite, config.Storage.Type)
	assert.Equal(t, "file:marketplace.db", config.Storage.Database.DSN)
	assert.Equal(t, 4, config.Storage.Database.MaxOpenConns)

	assert.True(t, config.Auth.Enabled)
	assert.Equal(t, "marketplace-test", config.Auth.Issuer)

	rl := config.RateLimit
	assert.Equal(t, 30, rl.General.WindowSeconds)
	assert.True(t, rl.General.IPWhitelistEnabled)
	assert.Equal(t, []string{"127.0.0.1", "10.0.0.5"}, rl.General.WhitelistedIPs)
	assert.Equal(t, "Slow down", rl.General.ErrorMessage)
	assert.Equal(t, 10, rl.Anonymous.RequestsPerMinute)
	assert.Equal(t, 100, rl.Anonymous.RequestsPerHour)
	assert.Equal(t, 50, rl.Authenticated.RequestsPerMinute)
	assert.Equal(t, 200, rl.RoleLimits["seller"].RequestsPerMinute)

	search, ok := rl.EndpointLimits["search"]
	require.True(t, ok)
	assert.Equal(t, "/api/v1/search*", search.Pattern)
	assert.Equal(t, []string{"GET"}, search.Methods)
	assert.Equal(t, 5, search.RequestsPerMinute)
	assert.True(t, search.ApplyToAnonymous)
	assert.False(t, search.ApplyToAuthenticated)

	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, "text", config.Logging.Format)
}

func TestLoad_WithDefaults(t *testing.T) {
	config, err := Load("")
	require.NoError(t, err)

	defaults := models.NewDefaultConfig()
	assert.Equal(t, defaults.Server.Port, config.Server.Port)
	assert.Equal(t, models.StorageTypeMemory, config.Storage.Type)
	assert.True(t, config.RateLimit.General.Enabled)
	assert.Equal(t, 60, config.RateLimit.General.WindowSeconds)
	assert.Equal(t, defaults.RateLimit.Anonymous, config.RateLimit.Anonymous)
}

func TestLoad_WithEnvironmentVariables(t *testing.T) {
	t.Setenv("MARKETPLACE_SERVER_PORT", "9999")
	t.Setenv("MARKETPLACE_SERVER_HOST", "127.0.0.1")
	t.Setenv("MARKETPLACE_SERVER_READ_TIMEOUT", "5s")
	t.Setenv("MARKETPLACE_STORAGE_TYPE", "postgres")
	t.Setenv("MARKETPLACE_STORAGE_DATABASE_DSN", "postgres://localhost/marketplace")
	t.Setenv("MARKETPLACE_AUTH_ENABLED", "true")
	t.Setenv("MARKETPLACE_AUTH_JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("MARKETPLACE_RATE_LIMIT_ENABLED", "false")
	t.Setenv("MARKETPLACE_RATE_LIMIT_WINDOW_SECONDS", "120")
	t.Setenv("MARKETPLACE_RATE_LIMIT_WHITELISTED_IPS", "10.0.0.1,10.0.0.2")
	t.Setenv("MARKETPLACE_RATE_LIMIT_ANONYMOUS_PER_MINUTE", "7")
	t.Setenv("MARKETPLACE_RATE_LIMIT_AUTHENTICATED_PER_DAY", "70000")
	t.Setenv("MARKETPLACE_LOG_LEVEL", "warn")
	t.Setenv("MARKETPLACE_METRICS_PORT", "9191")
	t.Setenv("MARKETPLACE_OTEL_TRACING_ENABLED", "true")

	config, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9999, config.Server.Port)
	assert.Equal(t, "127.0.0.1", config.Server.Host)
	assert.Equal(t, 5*time.Second, config.Server.ReadTimeout)
	assert.Equal(t, models.StorageTypePostgres, config.Storage.Type)
	assert.Equal(t, "postgres://localhost/marketplace", config.Storage.Database.DSN)
	assert.True(t, config.Auth.Enabled)
	assert.False(t, config.RateLimit.General.Enabled)
	assert.Equal(t, 120, config.RateLimit.General.WindowSeconds)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, config.RateLimit.General.WhitelistedIPs)
	assert.Equal(t, 7, config.RateLimit.Anonymous.RequestsPerMinute)
	assert.Equal(t, 70000, config.RateLimit.Authenticated.RequestsPerDay)
	assert.Equal(t, "warn", config.Logging.Level)
	assert.Equal(t, 9191, config.Metrics.Port)
	assert.True(t, config.Observability.Tracing.Enabled)

	// Untouched fields keep their defaults
	assert.Equal(t, 1000, config.RateLimit.Anonymous.RequestsPerHour)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, `
rate_limit:
  general:
    enabled: true
    window_seconds: 60
  anonymous:
    requests_per_minute: 10
`)
	t.Setenv("MARKETPLACE_RATE_LIMIT_ANONYMOUS_PER_MINUTE", "3")

	config, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, config.RateLimit.Anonymous.RequestsPerMinute)
}

func TestLoad_MalformedEnvironment(t *testing.T) {
	t.Setenv("MARKETPLACE_SERVER_PORT", "not-a-number")

	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_NonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server:\n  port: [unterminated\n")

	_, err := Load(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML config")
}

func TestLoad_EmptyConfigFile(t *testing.T) {
	path := writeConfig(t, "")

	config, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, models.NewDefaultConfig().Server.Port, config.Server.Port)
}

func TestLoad_InvalidRateLimitPolicy(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errPart string
	}{
		{
			name: "zero window",
			content: `
rate_limit:
  general:
    window_seconds: 0
`,
			errPart: "window seconds must be positive",
		},
		{
			name: "negative role limit",
			content: `
rate_limit:
  role_limits:
    seller:
      requests_per_hour: -1
`,
			errPart: "role seller",
		},
		{
			name: "endpoint without pattern",
			content: `
rate_limit:
  endpoint_limits:
    broken:
      requests_per_minute: 1
`,
			errPart: "endpoint broken: pattern cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errPart)
		})
	}
}

func TestLoad_AuthSecretTooShort(t *testing.T) {
	path := writeConfig(t, `
auth:
  enabled: true
  jwt_secret: "short"
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "example.yaml")

	require.NoError(t, SaveExample(path))

	config, err := Load(path)
	require.NoError(t, err, "the example config should load cleanly")
	assert.True(t, config.Auth.Enabled)
	assert.Contains(t, config.RateLimit.RoleLimits, "seller")
	assert.Contains(t, config.RateLimit.EndpointLimits, "search")
	assert.Equal(t, []string{"GET"}, config.RateLimit.EndpointLimits["search"].Methods)
}
