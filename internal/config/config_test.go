package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudwiptokm/TravelBuddy/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("PRESENCE_WINDOW", "")

	cfg := config.Load()
	assert.Equal(t, config.DriverMemory, cfg.StoreDriver)
	assert.Equal(t, 5*time.Minute, cfg.PresenceWindow)
	assert.Equal(t, 8, cfg.AggregateConcurrency)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DB_URL", "postgres://localhost/travelbuddy")
	t.Setenv("PRESENCE_WINDOW", "2m")
	t.Setenv("AGGREGATE_CONCURRENCY", "not-a-number")

	cfg := config.Load()
	assert.Equal(t, config.DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 2*time.Minute, cfg.PresenceWindow)
	assert.Equal(t, 8, cfg.AggregateConcurrency, "unparsable values fall back to the default")
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{name: "postgres without url", mutate: func(c *config.Config) { c.StoreDriver = config.DriverPostgres; c.DBURL = "" }},
		{name: "unknown driver", mutate: func(c *config.Config) { c.StoreDriver = "mongo" }},
		{name: "zero window", mutate: func(c *config.Config) { c.PresenceWindow = 0 }},
		{name: "zero concurrency", mutate: func(c *config.Config) { c.AggregateConcurrency = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Load()
			cfg.StoreDriver = config.DriverMemory
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
