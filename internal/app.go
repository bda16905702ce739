// Package internal contains core application functionality
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/karloscodes/cartridge"

	"trackly/internal/analytics"
	"trackly/internal/config"
	"trackly/internal/database"
	"trackly/internal/events"
	"trackly/internal/jobs"
	"trackly/internal/pkg/async"
	"trackly/internal/pkg/geoip"
	"trackly/internal/tags"
	"trackly/internal/timeframe"
)

var _ cartridge.BackgroundWorker = (*jobs.Scheduler)(nil)

// Application wraps cartridge.Application with trackly-specific components
type Application struct {
	*cartridge.Application
	Config    *config.Config      // Typed configuration; cartridge only sees its interface
	DBManager *database.DBManager // Trackly-specific DB manager with migration methods
	Services  Services

	maxmind *geoip.MaxMindResolver
}

// NewApp creates a new application instance from the process configuration
func NewApp() (*Application, error) {
	return NewAppWithConfig(config.GetConfig())
}

// NewAppWithConfig creates a new application with the provided config
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	logger := cartridge.NewLogger(cfg, nil)

	if err := EnsureStorage(cfg); err != nil {
		return nil, err
	}

	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	db := dbManager.GetConnection()

	store := events.NewGormStore(db, &timeframe.DefaultTimeProvider{}, logger)

	var resolvers geoip.Chain
	maxmind, err := geoip.OpenMaxMind(cfg.GeoDBPath, logger)
	if err != nil {
		logger.Info("MaxMind lookups disabled", slog.Any("reason", err))
	} else {
		resolvers = append(resolvers, maxmind)
	}
	if cfg.GeoAPIURL != "" {
		resolvers = append(resolvers, geoip.NewIPAPIResolver(cfg.GeoAPIURL, cfg.GeoRatePerMinute, &http.Client{Timeout: cfg.GeoTimeout}))
	}

	var resolver geoip.Resolver
	if len(resolvers) > 0 {
		resolver = resolvers
	}

	services := Services{
		Config:     cfg,
		Logger:     logger,
		Reader:     store,
		Aggregator: events.NewAggregator(store, logger),
		Enricher:   events.NewEnricher(resolver, cfg.GeoTimeout, cfg.DeriveUserAgent),
		Engine: analytics.NewEngine(store, async.NewPool(cfg.ReportWorkers), logger,
			analytics.WithActiveWindow(time.Duration(cfg.ActiveWindowMinutes)*time.Minute)),
		Tags: tags.NewService(db, logger),
	}

	maintenance := []jobs.Job{jobs.CheckpointJob(dbManager, cfg.MaintenanceInterval)}
	if maxmind != nil {
		maintenance = append(maintenance, jobs.GeoLiteReloadJob(cfg.GeoDBPath, maxmind, cfg.MaintenanceInterval, logger))
	}
	scheduler := jobs.NewScheduler(logger, maintenance...)

	server, err := NewServer(services, dbManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	app, err := cartridge.NewApplication(cartridge.ApplicationOptions{
		Config:            cfg,
		Logger:            logger,
		DBManager:         dbManager,
		Server:            server,
		BackgroundWorkers: []cartridge.BackgroundWorker{scheduler},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	return &Application{
		Application: app,
		Config:      cfg,
		DBManager:   dbManager,
		Services:    services,
		maxmind:     maxmind,
	}, nil
}

// Run starts the background jobs and the HTTP server and blocks until a
// termination signal arrives or the listener fails. Either way everything is
// shut down within timeout.
func (a *Application) Run(timeout time.Duration) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	a.Logger.Info("Starting server", slog.String("port", a.Config.AppPort), slog.String("env", a.Config.Environment))
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Start()
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.Logger.Info("Shutdown signal received")
	case runErr = <-errCh:
		a.Logger.Error("Server stopped", slog.Any("error", runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		return errors.Join(runErr, err)
	}
	a.Logger.Info("Shutdown complete")
	return runErr
}

// Shutdown stops the server and background jobs, then flushes and closes
// the database.
func (a *Application) Shutdown(ctx context.Context) error {
	var errs []error

	if err := a.Application.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}

	if err := a.DBManager.CheckpointWAL("TRUNCATE"); err != nil {
		a.Logger.Warn("Failed to checkpoint WAL on shutdown", slog.Any("error", err))
	}

	if a.maxmind != nil {
		if err := a.maxmind.Close(); err != nil {
			errs = append(errs, fmt.Errorf("geoip close: %w", err))
		}
	}

	if db := a.DBManager.GetConnection(); db != nil {
		if sqlDB, err := db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("database close: %w", err))
			}
		}
	}

	return errors.Join(errs...)
}

// EnsureStorage creates the directory holding the database file.
func EnsureStorage(cfg *config.Config) error {
	if err := os.MkdirAll(cfg.DatabasePath, 0o755); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}
	return nil
}
