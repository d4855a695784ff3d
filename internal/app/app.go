// Package app assembles the meme engine from configuration. Both binaries
// build on it.
package app

import (
	"context"
	"fmt"

	"github.com/timmy/memebot/internal/config"
	"github.com/timmy/memebot/internal/logger"
	"github.com/timmy/memebot/internal/repository"
	"github.com/timmy/memebot/internal/service"
	"github.com/timmy/memebot/internal/source"
	"github.com/timmy/memebot/internal/source/giphy"
	"github.com/timmy/memebot/internal/source/memeapi"
	"github.com/timmy/memebot/internal/source/pikabu"
	"github.com/timmy/memebot/internal/source/reddit"
	"github.com/timmy/memebot/internal/storage"
	"gorm.io/gorm"
)

// App holds the wired components.
type App struct {
	Config   *config.Config
	DB       *gorm.DB
	Store    *storage.LocalStore
	Delivery *service.DeliveryService
	Locks    *service.LockService
	Memes    *service.MemeService
	Logger   *logger.Logger
}

// New opens the store, the download directory and the providers.
// Parameters:
//   - ctx: context for startup checks (bucket creation).
//   - cfg: loaded configuration.
//   - log: application logger.
//
// Returns:
//   - *App: wired application; call Close when done.
//   - error: non-nil if any component cannot be initialized.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	archive, err := newArchive(ctx, cfg.Storage)
	if err != nil {
		closeDB(db)
		return nil, err
	}

	store, err := storage.NewLocalStore(storage.LocalConfig{
		Dir:           cfg.Delivery.DownloadDir,
		Timeout:       cfg.Delivery.DownloadTimeout,
		UserAgent:     cfg.Providers.UserAgent,
		ArchivePrefix: cfg.Storage.Prefix,
	}, archive)
	if err != nil {
		closeDB(db)
		return nil, err
	}

	aggregator := service.NewAggregator(NewProviders(cfg.Providers), service.AggregatorConfig{
		PrimaryCategories:   cfg.Providers.PrimarySubs,
		SecondaryCategories: cfg.Providers.SecondarySubs,
		MaxAttempts:         cfg.Delivery.MaxAttempts,
	}, nil)

	assets := repository.NewAssetRepository(db)
	registrations := repository.NewRegistrationRepository(db)

	delivery := service.NewDeliveryService(assets, aggregator, store, log, &service.DeliveryConfig{
		MaxAttempts: cfg.Delivery.MaxAttempts,
	})
	locks := service.NewLockService(repository.NewLockRepository(db), registrations)
	memes := service.NewMemeService(delivery, locks, registrations, log)

	return &App{
		Config:   cfg,
		DB:       db,
		Store:    store,
		Delivery: delivery,
		Locks:    locks,
		Memes:    memes,
		Logger:   log,
	}, nil
}

// NewProviders builds one HTTP client per provider, each with its own rate
// limiter and circuit breaker.
func NewProviders(cfg config.ProvidersConfig) service.Providers {
	client := func(name, baseURL string) *source.HTTPClient {
		return source.NewHTTPClient(source.ClientConfig{
			Name:            name,
			BaseURL:         baseURL,
			UserAgent:       cfg.UserAgent,
			Timeout:         cfg.Timeout,
			RequestsPerSec:  cfg.RequestsPerSec,
			Burst:           cfg.Burst,
			BreakerFailures: cfg.BreakerFailures,
			BreakerCooldown: cfg.BreakerCooldown,
		})
	}

	providers := service.Providers{
		Random:            memeapi.NewAdapter(client(memeapi.SourceID, cfg.MemeAPI.BaseURL)),
		Search:            reddit.NewAdapter(client(reddit.SourceID, cfg.Reddit.BaseURL)),
		SecondaryFallback: pikabu.NewAdapter(client(pikabu.SourceID, cfg.Pikabu.BaseURL)),
	}

	gif := giphy.NewAdapter(client(giphy.SourceID, cfg.Giphy.BaseURL), giphy.Config{
		APIKey: cfg.Giphy.APIKey,
		Limit:  cfg.Giphy.Limit,
		Rating: cfg.Giphy.Rating,
	})
	if gif.Enabled() {
		providers.SecondarySearch = gif
	} else {
		logger.Warn("GIPHY_KEY not set, Giphy stage disabled")
	}
	return providers
}

func newArchive(ctx context.Context, cfg config.StorageConfig) (storage.Archive, error) {
	archive, err := storage.NewArchive(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if archive == nil {
		return nil, nil
	}
	if s3, ok := archive.(*storage.S3Storage); ok {
		if err := s3.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure storage bucket: %w", err)
		}
	}
	logger.Info("Archiving images to bucket %s", cfg.Bucket)
	return archive, nil
}

// Ping checks the database connection.
func (a *App) Ping(ctx context.Context) error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the database connection.
func (a *App) Close() error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
