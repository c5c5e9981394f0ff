// Package app initializes and holds the long-lived services of the crawl
// service, acting as its dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	gcsstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/crowley/internal/api"
	"github.com/JakeFAU/crowley/internal/config"
	"github.com/JakeFAU/crowley/internal/crawler"
	collyfetcher "github.com/JakeFAU/crowley/internal/fetcher/colly"
	"github.com/JakeFAU/crowley/internal/fetcher/httpfetch"
	mempublisher "github.com/JakeFAU/crowley/internal/publisher/memory"
	"github.com/JakeFAU/crowley/internal/publisher/pubsub"
	"github.com/JakeFAU/crowley/internal/storage/gcs"
	"github.com/JakeFAU/crowley/internal/storage/local"
	"github.com/JakeFAU/crowley/internal/storage/memory"
	"github.com/JakeFAU/crowley/internal/storage/postgres"
	"github.com/JakeFAU/crowley/internal/storage/sqlite"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// App holds the shared services built from one Config. It is created once at
// startup and closed on shutdown.
type App struct {
	Config  config.Config
	Logger  *zap.Logger
	Store   crawler.Store
	Service *crawler.Service
	// Events records published crawl events when the memory publisher is
	// configured.
	Events *mempublisher.Publisher

	closers []func() error
}

// New builds every service cfg asks for. It fails fast: when one component
// cannot be built, the ones already built are closed again.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}
	if err := a.init(ctx); err != nil {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("cleanup after failed init", zap.Error(closeErr))
		}
		return nil, err
	}
	logger.Info("application services initialized",
		zap.String("store", cfg.Store.Driver),
		zap.String("fetcher", cfg.Crawler.Fetcher),
		zap.String("archive", cfg.Archive.Backend),
		zap.Bool("pubsub", cfg.PubSub.TopicName != ""),
	)
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	store, err := a.newStore(ctx)
	if err != nil {
		return err
	}
	a.Store = store

	extractor, err := crawler.NewExtractor(a.Config.Crawler.Selector)
	if err != nil {
		return err //nolint:wrapcheck // already an ErrExtraction
	}
	engine := crawler.NewEngine(a.newFetcher(), extractor, a.Config.Crawler.BatchSize, a.Logger.Named("engine"))

	sinks, err := a.newSinks(ctx)
	if err != nil {
		return err
	}
	a.Service = crawler.NewService(store, engine, sinks, nil, nil, a.Logger.Named("service"))
	return nil
}

func (a *App) newStore(ctx context.Context) (crawler.Store, error) {
	cfg := a.Config.Store
	switch cfg.Driver {
	case config.DriverSQLite:
		a.Logger.Info("using sqlite store", zap.String("path", cfg.SQLitePath))
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("initialize sqlite store: %w", err)
		}
		return store, nil
	case config.DriverPostgres:
		a.Logger.Info("connecting to postgres")
		store, err := postgres.New(ctx, postgres.Config{DSN: cfg.PostgresDSN, MaxConns: cfg.MaxConns})
		if err != nil {
			return nil, fmt.Errorf("initialize postgres store: %w", err)
		}
		a.closers = append(a.closers, func() error { store.Close(); return nil })
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("initialize postgres store: %w", err)
		}
		return store, nil
	case config.DriverMemory:
		a.Logger.Info("using in-memory store; results are lost on exit")
		return memory.NewLinkStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Driver)
	}
}

func (a *App) newFetcher() crawler.Fetcher {
	cfg := a.Config
	if cfg.Crawler.Fetcher == config.FetcherColly {
		return collyfetcher.New(collyfetcher.Config{UserAgent: cfg.Crawler.UserAgent, Timeout: cfg.RequestTimeout()})
	}
	return httpfetch.New(httpfetch.Config{UserAgent: cfg.Crawler.UserAgent, Timeout: cfg.RequestTimeout()})
}

func (a *App) newSinks(ctx context.Context) (crawler.Sinks, error) {
	sinks := crawler.Sinks{ArchivePrefix: a.Config.Archive.Prefix}

	archive := a.Config.Archive
	switch archive.Backend {
	case config.ArchiveNone, "":
	case config.ArchiveMemory:
		sinks.Archive = memory.NewBlobStore()
	case config.ArchiveLocal:
		blobs, err := local.New(local.Config{BaseDir: archive.LocalDir})
		if err != nil {
			return crawler.Sinks{}, fmt.Errorf("initialize local archive: %w", err)
		}
		sinks.Archive = blobs
	case config.ArchiveGCS:
		client, err := gcsstorage.NewClient(ctx)
		if err != nil {
			return crawler.Sinks{}, fmt.Errorf("create gcs client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		blobs, err := gcs.New(client, gcs.Config{Bucket: archive.GCSBucket})
		if err != nil {
			return crawler.Sinks{}, fmt.Errorf("initialize gcs archive: %w", err)
		}
		sinks.Archive = blobs
	default:
		return crawler.Sinks{}, fmt.Errorf("unknown archive backend: %s", archive.Backend)
	}

	if topic := a.Config.PubSub.TopicName; topic != "" {
		a.Logger.Info("publishing crawl events",
			zap.String("topic", topic),
			zap.String("backend", a.Config.PubSub.Backend),
		)
		switch a.Config.PubSub.Backend {
		case config.PublisherMemory:
			a.Events = mempublisher.New()
			sinks.Publisher = a.Events
		case config.PublisherGCP, "":
			pub, err := pubsub.NewClient(ctx, a.Config.PubSub.ProjectID)
			if err != nil {
				return crawler.Sinks{}, fmt.Errorf("initialize pubsub: %w", err)
			}
			a.closers = append(a.closers, pub.Close)
			sinks.Publisher = pub
		default:
			return crawler.Sinks{}, fmt.Errorf("unknown publisher backend: %s", a.Config.PubSub.Backend)
		}
		sinks.Topic = topic
	}
	return sinks, nil
}

// Ready pings the store when it supports it.
func (a *App) Ready(ctx context.Context) error {
	if p, ok := a.Store.(pinger); ok {
		return p.Ping(ctx) //nolint:wrapcheck // stores wrap their own errors
	}
	return nil
}

// Handler returns the HTTP surface over the service.
func (a *App) Handler() http.Handler {
	return api.NewServer(a.Service, a.Ready, a.Config, a.Logger.Named("api")).Handler()
}

// Close shuts services down in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
