package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, 15*time.Second, c.ShutdownTimeout)
	assert.Equal(t, DriverMemory, c.StoreDriver)
	assert.True(t, c.AutoStart)
	assert.Equal(t, 500*time.Millisecond, c.TickMinDelay)
	assert.Equal(t, 3*time.Second, c.TickMaxDelay)
	assert.Equal(t, time.Second, c.ErrorBackoff)
	assert.InDelta(t, 0.1, c.RestockProbability, 1e-9)
	assert.Equal(t, []string{"*"}, c.CORSOrigins)
	assert.Equal(t, 64, c.FeedBuffer)
	assert.Equal(t, 10000, c.FeedBacklogLimit)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("SHUTDOWN_TIMEOUT", "2s")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/x.db")
	t.Setenv("AUTO_START", "false")
	t.Setenv("TICK_MIN_DELAY", "10ms")
	t.Setenv("TICK_MAX_DELAY", "20ms")
	t.Setenv("RESTOCK_PROBABILITY", "0.5")
	t.Setenv("CORS_ORIGINS", "http://a.test,http://b.test")
	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", c.HTTPAddr)
	assert.Equal(t, 2*time.Second, c.ShutdownTimeout)
	assert.Equal(t, DriverSQLite, c.StoreDriver)
	assert.Equal(t, "/tmp/x.db", c.SQLitePath)
	assert.False(t, c.AutoStart)
	assert.Equal(t, 10*time.Millisecond, c.TickMinDelay)
	assert.Equal(t, 20*time.Millisecond, c.TickMaxDelay)
	assert.InDelta(t, 0.5, c.RestockProbability, 1e-9)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, c.CORSOrigins)
}

func TestValidate(t *testing.T) {
	base, err := Load()
	require.NoError(t, err)

	cases := map[string]func(*Config){
		"unknown driver":        func(c *Config) { c.StoreDriver = "oracle" },
		"postgres without dsn":  func(c *Config) { c.StoreDriver = DriverPostgres },
		"mongo without url":     func(c *Config) { c.StoreDriver = DriverMongo },
		"inverted delays":       func(c *Config) { c.TickMinDelay, c.TickMaxDelay = time.Second, time.Millisecond },
		"probability above one": func(c *Config) { c.RestockProbability = 1.5 },
		"zero backoff":          func(c *Config) { c.ErrorBackoff = 0 },
		"negative backlog":      func(c *Config) { c.FeedBacklogLimit = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base
			mutate(&c)
			assert.ErrorIs(t, c.Validate(), ErrInvalid)
		})
	}

	t.Setenv("STORE_DRIVER", "postgres")
	_, err = Load()
	assert.ErrorIs(t, err, ErrInvalid)
}
