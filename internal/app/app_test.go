package app_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudwiptokm/TravelBuddy/internal/app"
	"github.com/sudwiptokm/TravelBuddy/internal/config"
	"github.com/sudwiptokm/TravelBuddy/internal/identity"
	"github.com/sudwiptokm/TravelBuddy/internal/live"
	"github.com/sudwiptokm/TravelBuddy/internal/model"
	"github.com/sudwiptokm/TravelBuddy/pkg/logger"
)

func baseConfig() *config.Config {
	cfg := config.Load()
	cfg.NATSURL = ""
	cfg.RedisURL = ""
	cfg.StoreDriver = config.DriverMemory
	return cfg
}

func TestOpen_InProcess(t *testing.T) {
	ctx := context.Background()
	a, err := app.Open(ctx, baseConfig(), identity.Static("u1"), logger.Nop())
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &live.Hub{}, a.Feed)
	assert.Nil(t, a.NATS)
	require.NotNil(t, a.Session)

	_, err = a.Session.Directory.Register(ctx, model.Profile{ID: "u1", Username: "alice"})
	require.NoError(t, err)
	_, err = a.Session.Directory.Register(ctx, model.Profile{ID: "u2", Username: "bob"})
	require.NoError(t, err)

	conv, err := a.Session.Resolve(ctx, "u2")
	require.NoError(t, err)
	_, err = a.Session.Send(ctx, conv, "hello")
	require.NoError(t, err)
}

func TestOpen_SQLite(t *testing.T) {
	cfg := baseConfig()
	cfg.StoreDriver = config.DriverSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "app.db")

	a, err := app.Open(context.Background(), cfg, identity.Static(""), logger.Nop())
	require.NoError(t, err)
	defer a.Close()
	require.NoError(t, a.Store.Ping(context.Background()))
}

func TestOpen_RejectsInvalidConfig(t *testing.T) {
	cfg := baseConfig()
	cfg.StoreDriver = "cassandra"
	_, err := app.Open(context.Background(), cfg, identity.Static(""), logger.Nop())
	assert.Error(t, err)
}
