package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"marketplace/internal/models"
)

// Factory provides a centralized way to create storage instances based on configuration.
type Factory struct {
	connectRetries uint64
	retryBase      time.Duration
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithConnectRetries sets how many times a failed database connection is
// retried, with exponential backoff starting at base. Zero disables retries.
func WithConnectRetries(retries uint64, base time.Duration) FactoryOption {
	return func(f *Factory) {
		f.connectRetries = retries
		f.retryBase = base
	}
}

// NewFactory creates a new storage factory. By default database connections
// are retried 5 times starting at 500ms so the service can start alongside
// its database.
func NewFactory(opts ...FactoryOption) *Factory {
	f := &Factory{
		connectRetries: 5,
		retryBase:      500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create instantiates a storage provider based on the provided configuration.
// Supported providers:
//   - memory: In-memory storage (for testing/development)
//   - postgres: PostgreSQL database storage (production-ready)
//   - sqlite: SQLite database storage (lightweight database)
func (f *Factory) Create(ctx context.Context, config models.StorageConfig) (Storage, error) {
	if err := f.ValidateConfig(config); err != nil {
		return nil, err
	}
	storageConfig := ConfigFromModel(config)

	switch config.Type {
	case models.StorageTypeMemory:
		return NewMemoryStorage(storageConfig)
	case models.StorageTypePostgres:
		return connect(ctx, f, config.Type, func(ctx context.Context) (Storage, error) {
			return NewPostgresStorage(ctx, storageConfig)
		})
	case models.StorageTypeSQLite:
		return connect(ctx, f, config.Type, func(context.Context) (Storage, error) {
			return NewSQLiteStorage(storageConfig)
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", config.Type)
	}
}

// GetSupportedProviders returns a list of all supported storage provider types
func (f *Factory) GetSupportedProviders() []string {
	return []string{models.StorageTypeMemory, models.StorageTypePostgres, models.StorageTypeSQLite}
}

// ValidateConfig validates that a storage configuration is valid for its type
func (f *Factory) ValidateConfig(config models.StorageConfig) error {
	switch config.Type {
	case models.StorageTypeMemory:
		// Memory storage requires no additional configuration
	case models.StorageTypePostgres, models.StorageTypeSQLite:
		if config.Database.DSN == "" {
			return fmt.Errorf("database DSN is required for %s storage", config.Type)
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", config.Type)
	}
	return nil
}

func connect(ctx context.Context, f *Factory, storageType string, open func(context.Context) (Storage, error)) (Storage, error) {
	if f.connectRetries == 0 {
		return open(ctx)
	}

	backoff := retry.WithMaxRetries(f.connectRetries, retry.NewExponential(f.retryBase))

	var s Storage
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		var err error
		s, err = open(ctx)
		if err != nil {
			slog.Warn("Storage connection failed", "type", storageType, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s storage after %d attempts: %w", storageType, attempt, err)
	}
	return s, nil
}
