// Package cli wires configuration into a running engine for the flowstate binary.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/flowstate"
	"github.com/aretw0/flowstate/internal/config"
	"github.com/aretw0/flowstate/internal/logging"
	"github.com/aretw0/flowstate/pkg/adapters/file"
	"github.com/aretw0/flowstate/pkg/adapters/memory"
	redisadapter "github.com/aretw0/flowstate/pkg/adapters/redis"
	"github.com/aretw0/flowstate/pkg/loader"
	"github.com/aretw0/flowstate/pkg/observability"
	"github.com/aretw0/flowstate/pkg/persistence/middleware"
	"github.com/aretw0/flowstate/pkg/ports"
	"github.com/aretw0/flowstate/pkg/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	backend "github.com/redis/go-redis/v9"
)

// App is an engine plus everything the commands need around it.
type App struct {
	Engine   *flowstate.Engine
	Loader   *loader.Loader
	Registry *prometheus.Registry
	Logger   *slog.Logger

	closers []func() error
}

// NewLogger creates the process logger from the configuration.
func NewLogger(cfg *config.Config) *slog.Logger {
	return logging.New(logging.ParseLevel(cfg.LogLevel), logging.Format(cfg.LogFormat))
}

// NewApp builds the engine described by cfg: store backend and middlewares,
// redis locking and publishing, metrics and logging hooks.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Loader:   loader.New(registry.Builtins(logger)),
		Registry: prometheus.NewRegistry(),
		Logger:   logger,
	}

	opts := []flowstate.Option{
		flowstate.WithLogger(logger),
		flowstate.WithCallbackTimeout(cfg.CallbackTimeout),
		flowstate.WithLockTTL(cfg.LockTTL),
	}

	var store ports.InstanceStore
	switch cfg.Store {
	case config.StoreFile:
		store = file.New(cfg.FileDir)
		logger.Debug("Using file store", "dir", cfg.FileDir)
	case config.StoreRedis:
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		app.closers = append(app.closers, client.Close)

		redisStore := redisadapter.NewFromClient(client,
			redisadapter.WithPrefix(cfg.Redis.Prefix),
			redisadapter.WithTTL(cfg.Redis.TTL),
		)
		if err := redisStore.Ping(ctx); err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		store = redisStore
		opts = append(opts, flowstate.WithLocker(redisadapter.NewLocker(client, cfg.Redis.Prefix)))
		if cfg.Redis.Publish {
			opts = append(opts, flowstate.WithPublisher(redisadapter.NewPublisher(client, cfg.Redis.Prefix)))
		}
		logger.Debug("Using redis store", "addr", cfg.Redis.Addr, "prefix", cfg.Redis.Prefix)
	default:
		store = memory.NewStore()
	}

	mws, err := storeMiddlewares(cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	opts = append(opts, flowstate.WithInstanceStore(middleware.Chain(store, mws...)))

	hooks := observability.LoggingHooks(logger)
	var metrics *observability.Metrics
	if cfg.Metrics {
		app.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = observability.NewMetrics(app.Registry)
		hooks = observability.Combine(hooks, metrics.Hooks())
	}
	opts = append(opts, flowstate.WithLifecycleHooks(hooks))

	app.Engine = flowstate.New(opts...)
	if metrics != nil {
		app.Engine.Events().SubscribeAll(metrics.Listen)
	}
	return app, nil
}

// storeMiddlewares returns the configured middlewares, innermost last:
// PII masking runs before encryption seals the instance.
func storeMiddlewares(cfg *config.Config) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(cfg.PIIFields) > 0 {
		pii, err := middleware.CompilePIIMiddleware(cfg.PIIFields)
		if err != nil {
			return nil, err
		}
		mws = append(mws, pii)
	}
	if cfg.Encryption.Key != "" {
		active, err := middleware.DecodeKey(cfg.Encryption.Key)
		if err != nil {
			return nil, fmt.Errorf("invalid encryption key: %w", err)
		}
		enc := middleware.EncryptionConfig{ActiveKey: active}
		for i, k := range cfg.Encryption.FallbackKeys {
			key, err := middleware.DecodeKey(k)
			if err != nil {
				return nil, fmt.Errorf("invalid fallback key %d: %w", i, err)
			}
			enc.FallbackKeys = append(enc.FallbackKeys, key)
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(enc))
	}
	return mws, nil
}

// LoadWorkflows defines every workflow found at path (a file or a directory).
// An empty path is a no-op.
func (a *App) LoadWorkflows(ctx context.Context, path string) (int, error) {
	if path == "" {
		return 0, nil
	}
	defs, err := a.Loader.Load(path)
	if err != nil {
		return 0, err
	}
	for _, def := range defs {
		if _, err := a.Engine.DefineWorkflow(ctx, def); err != nil {
			return 0, fmt.Errorf("failed to define %q: %w", def.Name, err)
		}
	}
	a.Logger.Info("Workflows loaded", "path", path, "count", len(defs))
	return len(defs), nil
}

// Close releases backend connections.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Exit prints err to stderr and exits with status 1.
func Exit(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
