package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"marketplace/internal/api"
	"marketplace/internal/auth"
	"marketplace/internal/catalog"
	"marketplace/internal/config"
	"marketplace/internal/logger"
	"marketplace/internal/models"
	"marketplace/internal/observability"
	"marketplace/internal/ratelimit"
	"marketplace/internal/storage"
	"marketplace/internal/version"
)

var (
	configFile    = flag.String("config", "", "Path to configuration file")
	envFile       = flag.String("env-file", ".env", "Optional dotenv file loaded before the environment is read")
	exampleConfig = flag.String("write-example-config", "", "Write an example configuration to this path and exit")
	showVersion   = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()

	ver := version.GetInfo()
	if *showVersion {
		fmt.Println(ver.String())
		return
	}

	if *exampleConfig != "" {
		if err := config.SaveExample(*exampleConfig); err != nil {
			slog.Error("Failed to write example configuration", "error", err)
			os.Exit(1)
		}
		return
	}

	// A missing dotenv file is normal outside local development.
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load env file", "path", *envFile, "error", err)
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logging
	log, closer, err := logger.Setup(cfg.Logging, ver)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	// Initialize observability (OpenTelemetry)
	otelProvider, err := observability.Setup(cfg.Metrics, cfg.Observability, ver)
	if err != nil {
		slog.Error("Failed to initialize observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown observability", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	storageInstance, err := initializeStorage(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer storageInstance.Close()

	// Wrap storage with instrumentation if metrics are enabled
	var activeStorage storage.Storage = storageInstance
	if cfg.Metrics.Enabled {
		instrumented, err := observability.NewInstrumentedStorage(storageInstance)
		if err != nil {
			slog.Error("Failed to create instrumented storage", "error", err)
			os.Exit(1)
		}
		activeStorage = instrumented
	}

	handlers := api.NewHandlers(catalog.NewService(activeStorage),
		api.WithStorage(activeStorage),
		api.WithVersion(ver),
	)

	routeOpts := []api.RouteOption{}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}
	if cfg.Auth.Enabled {
		routeOpts = append(routeOpts, api.WithAuthenticator(auth.NewAuthenticator(cfg.Auth)))
	} else {
		slog.Warn("Authentication is disabled; all callers are anonymous and writes are rejected")
	}

	snap, err := ratelimit.NewSnapshot(cfg.RateLimit)
	if err != nil {
		slog.Error("Invalid rate limit policy", "error", err)
		os.Exit(1)
	}
	policy := ratelimit.NewAtomicPolicy(snap)

	limiter, counters, err := initializeRateLimiter(cfg, policy)
	if err != nil {
		slog.Error("Failed to initialize rate limiter", "error", err)
		os.Exit(1)
	}
	defer counters.Close()
	routeOpts = append(routeOpts, api.WithRateLimiter(limiter.Middleware))

	if *configFile != "" {
		watcher := config.NewWatcher(*configFile, cfg.RateLimit.ReloadDebounce, func(rl models.RateLimitConfig) error {
			next, err := ratelimit.NewSnapshot(rl)
			if err != nil {
				return err
			}
			policy.Store(next)
			return nil
		}, slog.Default())
		if err := watcher.Start(ctx); err != nil {
			slog.Error("Failed to watch configuration file", "path", *configFile, "error", err)
			os.Exit(1)
		}
	}

	router := api.SetupRoutes(handlers, routeOpts...)

	// Start metrics server if enabled
	var metricsServer *observability.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = observability.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, otelProvider)
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Starting server", append([]any{"addr", server.Addr, "tls", cfg.Server.TLSEnabled}, ver.LogAttrs()...)...)
		if cfg.Server.TLSEnabled {
			serveErr <- server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
			return
		}
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server shutdown complete")
}

// initializeStorage connects the configured listing backend, retrying
// transient connection failures.
func initializeStorage(ctx context.Context, cfg *models.Config) (storage.Storage, error) {
	return storage.NewFactory().Create(ctx, cfg.Storage)
}

// initializeRateLimiter builds the limiter around policy. The returned store
// must be closed on shutdown.
func initializeRateLimiter(cfg *models.Config, policy *ratelimit.AtomicPolicy) (*ratelimit.Limiter, ratelimit.CounterStore, error) {
	var counters ratelimit.CounterStore = ratelimit.NewMemoryStore(cfg.RateLimit.CleanupInterval)
	var notifier ratelimit.Notifier = ratelimit.NewLogNotifier(slog.Default())
	opts := []ratelimit.Option{ratelimit.WithLogger(slog.Default())}

	if cfg.Metrics.Enabled {
		instrumented, err := observability.NewInstrumentedCounterStore(counters)
		if err != nil {
			return nil, nil, fmt.Errorf("instrument counter store: %w", err)
		}
		counters = instrumented

		metrics, err := observability.NewRateLimitMetrics(notifier)
		if err != nil {
			return nil, nil, fmt.Errorf("rate limit metrics: %w", err)
		}
		notifier = metrics
		opts = append(opts, ratelimit.WithObserver(metrics))
	}
	opts = append(opts, ratelimit.WithNotifier(notifier))

	return ratelimit.New(policy, counters, opts...), counters, nil
}
