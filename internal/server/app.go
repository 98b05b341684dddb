package server

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/HendryAvila/toolvault/internal/artifact"
	"github.com/HendryAvila/toolvault/internal/config"
	"github.com/HendryAvila/toolvault/internal/localstore"
	"github.com/HendryAvila/toolvault/internal/metrics"
	"github.com/HendryAvila/toolvault/internal/reconcile"
	"github.com/HendryAvila/toolvault/internal/remote"
	"github.com/HendryAvila/toolvault/internal/repository"
)

// App holds every long-lived component of a toolvault process.
type App struct {
	Config   config.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Local  *localstore.Store
	Cache  *artifact.Cache
	Remote *remote.Client // nil when the remote store is disabled
	Repo   *repository.Repository
	Engine *reconcile.Engine
}

// NewMetricsRegistry returns a registry with the process and Go
// collectors registered.
func NewMetricsRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	registry.MustRegister(prometheus.NewGoCollector())
	return registry
}

// Build opens the stores and wires the repository and sync engine. The
// caller must Close the returned App.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{Config: cfg, Logger: logger, Registry: NewMetricsRegistry()}
	app.Metrics = metrics.New(app.Registry)

	local, err := localstore.New(localstore.Config{DataDir: cfg.DataDir, RecentLimit: cfg.RecentLimit})
	if err != nil {
		return nil, fmt.Errorf("opening local store: %w", err)
	}
	app.Local = local

	cache, err := artifact.Open(artifact.Config{
		Path:       filepath.Join(cfg.DataDir, "artifacts.db"),
		MaxBytes:   cfg.CacheMaxBytes,
		DefaultTTL: cfg.CacheTTL(),
		Logger:     logger,
		Recorder:   app.Metrics,
	})
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("opening artifact cache: %w", err)
	}
	app.Cache = cache

	opts := repository.Options{
		LocalOnly: cfg.LocalOnlyMode,
		Cache:     cache,
		Logger:    logger,
		Metrics:   app.Metrics,
	}
	if cfg.RemoteEnabled {
		client, err := remote.NewClient(remote.ClientConfig{
			BaseURL:   cfg.RemoteURL,
			TokenFile: cfg.TokenFile(),
			Logger:    logger,
		})
		if err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("creating remote client: %w", err)
		}
		app.Remote = client
		opts.Remote = client
	}
	app.Repo = repository.New(local, opts)

	engine, err := reconcile.New(ctx, app.Repo, local, reconcile.Config{
		AutoSyncInterval: cfg.AutoSyncInterval,
		StaleAfter:       cfg.StaleAfter,
		RetryBase:        cfg.RetryBase,
		RetryMax:         cfg.RetryMax,
		Logger:           logger,
		Metrics:          app.Metrics,
	})
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("creating sync engine: %w", err)
	}
	app.Engine = engine

	logger.Info("toolvault ready",
		zap.String("data_dir", cfg.DataDir),
		zap.Bool("remote", cfg.RemoteEnabled),
		zap.Bool("local_only", cfg.LocalOnlyMode),
	)
	return app, nil
}

// Close stops the sync engine and closes both stores. It is safe on a
// partially built App.
func (a *App) Close() error {
	if a.Engine != nil {
		a.Engine.Stop()
	}
	var errs []error
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("artifact cache close: %w", err))
		}
	}
	if a.Local != nil {
		if err := a.Local.Close(); err != nil {
			errs = append(errs, fmt.Errorf("local store close: %w", err))
		}
	}
	_ = a.Logger.Sync()
	return errors.Join(errs...)
}
