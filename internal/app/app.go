package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"OfferTracker/internal/api"
	"OfferTracker/internal/config"
	"OfferTracker/internal/infrastructure/catalog"
	"OfferTracker/internal/infrastructure/marketplace"
	"OfferTracker/internal/infrastructure/storage"
	"OfferTracker/internal/logging"
	"OfferTracker/internal/ports"
	"OfferTracker/internal/store"
	"OfferTracker/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	server    *http.Server
	scheduler *usecase.Scheduler
	database  *storage.PostgresRepository
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(nil, cfg.Logging.Level)
	}

	registry := store.New()
	source := marketplace.NewClient(
		cfg.Marketplace.BaseURL,
		&http.Client{Timeout: cfg.Marketplace.Timeout()},
		baseLogger.With("component", "marketplace"),
	)

	var (
		database   *storage.PostgresRepository
		repository ports.OfferRepository
	)
	if cfg.Database.DSN != "" {
		db, err := storage.Open(cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		database = db
		repository = db
	} else {
		baseLogger.Info("no database configured, durable offer storage disabled")
	}

	metrics := usecase.NewMetrics()
	refresher := usecase.NewRefresher(usecase.RefresherDeps{
		Source:     source,
		Registry:   registry,
		Repository: repository,
		FetchLimit: cfg.Marketplace.FetchLimit,
		Metrics:    metrics,
		Logger:     baseLogger.With("component", "refresher"),
	})
	scheduler := usecase.NewScheduler(refresher, cfg.Scheduler.Interval(), baseLogger.With("component", "scheduler"))

	filterCatalog := catalog.Load(
		cfg.Catalog.FiltersPath,
		cfg.Catalog.CategoriesPath,
		baseLogger.With("component", "catalog"),
	)

	server := api.New(api.Deps{
		Registry:   registry,
		Refresher:  refresher,
		Scheduler:  scheduler,
		Source:     source,
		Repository: repository,
		Catalog:    filterCatalog,
		Metrics:    metrics,
		Logger:     baseLogger.With("component", "api"),
	})

	httpServer := &http.Server{
		Addr:    cfg.HTTP.ListenAddr,
		Handler: server,
		// Write timeout must leave room for a full marketplace fetch.
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.Marketplace.Timeout() + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		server:    httpServer,
		scheduler: scheduler,
		database:  database,
	}, nil
}

// Run serves HTTP until the context is cancelled, then shuts down the
// scheduler, the server and the database connection.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server started", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	a.scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	if a.database != nil {
		if err := a.database.Close(); err != nil {
			a.logger.Warn("database close failed", "error", err)
		}
	}

	a.logger.Info("server stopped")
	return nil
}
