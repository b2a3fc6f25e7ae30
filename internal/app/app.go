// Package app assembles the messaging core from configuration. Both the API
// server and the CLI build on it.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sudwiptokm/TravelBuddy/internal/cache"
	"github.com/sudwiptokm/TravelBuddy/internal/config"
	"github.com/sudwiptokm/TravelBuddy/internal/identity"
	"github.com/sudwiptokm/TravelBuddy/internal/live"
	natsclient "github.com/sudwiptokm/TravelBuddy/internal/nats"
	"github.com/sudwiptokm/TravelBuddy/internal/service"
	"github.com/sudwiptokm/TravelBuddy/internal/store"
	"github.com/sudwiptokm/TravelBuddy/internal/store/memory"
	"github.com/sudwiptokm/TravelBuddy/internal/store/postgres"
	"github.com/sudwiptokm/TravelBuddy/internal/store/sqlite"
	"github.com/sudwiptokm/TravelBuddy/pkg/logger"
)

// App holds the process-wide collaborators.
type App struct {
	Config   *config.Config
	Store    store.Store
	Feed     live.Feed
	NATS     *natsclient.Client
	Throttle cache.Throttle
	Session  *service.Session

	logger *logger.Logger
}

// Open connects the store, the feed and the throttle selected by cfg.
func Open(ctx context.Context, cfg *config.Config, ident identity.Provider, log *logger.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{Config: cfg, logger: log}

	st, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Store = st

	if cfg.NATSURL != "" {
		nc, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			Name:     "travelbuddy",
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log.Named("nats"))
		if err != nil {
			a.Close()
			return nil, err
		}
		a.NATS = nc
		if err := nc.EnsureStream(ctx); err != nil {
			a.Close()
			return nil, err
		}
		a.Feed = natsclient.NewFeed(nc)
	} else {
		log.Info("NATS_URL not set, using in-process feed")
		a.Feed = live.NewHub()
	}

	if cfg.RedisURL != "" {
		th, err := cache.NewRedisThrottle(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Throttle = th
	} else {
		a.Throttle = cache.NewMemoryThrottle()
	}

	dir := service.NewDirectory(a.Store, a.Feed, a.Throttle, log,
		service.WithPresenceWindow(cfg.PresenceWindow),
		service.WithTouchInterval(cfg.PresenceTouchInterval),
	)
	a.Session = service.NewSession(service.SessionConfig{
		Identity:    ident,
		Store:       a.Store,
		Feed:        a.Feed,
		Directory:   dir,
		Concurrency: cfg.AggregateConcurrency,
	}, log)

	log.Info("messaging core ready",
		zap.String("store", cfg.StoreDriver),
		zap.Bool("nats", a.NATS != nil),
		zap.Bool("redis", cfg.RedisURL != ""),
	)
	return a, nil
}

// OpenStore opens the store adapter named by cfg.StoreDriver and applies its schema.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.DBURL)
		if err != nil {
			return nil, err
		}
		st := postgres.New(pool)
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, err
		}
		return st, nil
	case config.DriverSQLite:
		return sqlite.Open(cfg.SQLitePath)
	case config.DriverMemory:
		return memory.New(), nil
	}
	return nil, fmt.Errorf("app: unknown store driver %q", cfg.StoreDriver)
}

// Close releases every connection. It is safe on a partially opened App.
func (a *App) Close() {
	if a.Throttle != nil {
		if err := a.Throttle.Close(); err != nil {
			a.logger.Warn("failed to close throttle", zap.Error(err))
		}
	}
	if a.NATS != nil {
		a.NATS.Close()
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.logger.Warn("failed to close store", zap.Error(err))
		}
	}
}
