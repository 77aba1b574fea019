// Package app assembles the engine from configuration for the binaries.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"medslots/internal/availability"
	"medslots/internal/config"
	"medslots/internal/database"
	"medslots/internal/directory"
	"medslots/internal/events"
	"medslots/internal/metrics"
	"medslots/internal/repository"
	"medslots/internal/slots"
	"medslots/internal/store"
)

// App holds the wired components.
type App struct {
	Config       *config.Config
	Location     *time.Location
	Service      *availability.Service
	Directory    *directory.Directory
	Memory       *repository.Memory
	Settings     *repository.CachedSettings
	Appointments repository.AppointmentRepository
	Bus          *events.EventBus
	DB           *database.DB  // nil unless storage is sqlite
	Redis        *redis.Client // nil unless redis.address is set

	// CatalogVersion is the clinics.yaml mtime observed before the initial load.
	CatalogVersion time.Time

	logger *zerolog.Logger
}

// Options overrides parts of the wiring, mainly for tests.
type Options struct {
	Clock slots.Clock
}

// Build loads the catalog and wires repositories, the generator and the service.
func Build(ctx context.Context, cfg *config.Config, logger *zerolog.Logger, opts Options) (*App, error) {
	loc, err := cfg.EngineLocation()
	if err != nil {
		return nil, err
	}

	cat, version, err := cfg.LoadCatalog()
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	logger.Info().Str("path", cfg.Catalog.Path).Msg(cat.String())

	a := &App{
		Config:         cfg,
		Location:       loc,
		CatalogVersion: version,
		Memory:         repository.FromCatalog(cat),
		Bus:            events.NewEventBus(logger),
		logger:         logger,
	}

	a.Directory, err = directory.FromCatalog(cat)
	if err != nil {
		return nil, err
	}

	var catalog repository.CatalogRepository = a.Memory
	a.Appointments = a.Memory

	if cfg.Storage == "sqlite" {
		a.DB, err = database.NewDB(cfg.Database.Path, logger)
		if err != nil {
			return nil, err
		}
		if err := a.DB.SyncCatalogFromConfig(ctx, cat); err != nil {
			_ = a.DB.Close()
			return nil, fmt.Errorf("sync catalog: %w", err)
		}
		catalog = repository.NewFailoverCatalog(a.DB, a.Memory, logger)
		a.Appointments = a.DB
	}

	if cfg.Redis.Address != "" {
		a.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	a.Settings = repository.NewCachedSettings(catalog, a.Redis, cfg.SettingsCacheTTL(), logger)

	generator := slots.NewGenerator(catalog, a.Appointments, slots.Options{
		Clock:             opts.Clock,
		Location:          loc,
		UseClinicTimezone: cfg.Engine.UseClinicTimezone,
	})

	a.Service = availability.NewService(generator, a.Settings, store.New(), a.Bus, logger)
	a.Service.AddSource(a.Directory)

	return a, nil
}

// ApplyCatalog swaps in a reloaded catalog. Generated slots are kept.
func (a *App) ApplyCatalog(ctx context.Context, cat *config.Catalog) error {
	if cat == nil {
		return fmt.Errorf("catalog is nil")
	}

	if err := a.Directory.Load(cat); err != nil {
		metrics.IncCatalogReload("error")
		return err
	}
	a.Memory.Replace(cat)

	if a.DB != nil {
		if err := a.DB.SyncCatalogFromConfig(ctx, cat); err != nil {
			metrics.IncCatalogReload("error")
			return fmt.Errorf("sync catalog: %w", err)
		}
	}

	if err := a.Settings.Invalidate(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("failed to invalidate settings cache")
	}

	metrics.IncCatalogReload("ok")
	a.Bus.PublishPayload(events.CatalogReloaded, events.CatalogPayload{
		Clinics:     len(cat.Clinics),
		Specialists: len(cat.Specialists),
		Directory:   len(cat.Directory),
	})
	return nil
}

// WatchCatalog applies clinics.yaml revisions newer than the one Build loaded.
// It blocks until ctx is done.
func (a *App) WatchCatalog(ctx context.Context) {
	watcher := config.NewCatalogWatcher(a.Config.Catalog.Path, a.Config.CatalogReloadInterval(), a.CatalogVersion, a.logger)
	watcher.Run(ctx, func(updated *config.Catalog) {
		if err := a.ApplyCatalog(ctx, updated); err != nil {
			a.logger.Error().Err(err).Msg("failed to reapply clinics config")
			return
		}
		a.logger.Info().Time("reloaded_at", time.Now()).Msg(updated.String())
	})
}

// Ping checks the backing stores.
func (a *App) Ping(ctx context.Context) error {
	if a.DB != nil {
		if err := a.DB.PingContext(ctx); err != nil {
			return fmt.Errorf("db not ready: %w", err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis not ready: %w", err)
		}
	}
	return nil
}

// Close releases the database and redis connections.
func (a *App) Close() error {
	var firstErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			firstErr = err
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
