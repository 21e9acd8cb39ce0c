// Package config provides runtime configuration values for the service.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// ErrInvalid is returned by Validate for inconsistent settings.
var ErrInvalid = errors.New("invalid configuration")

// Config holds configuration knobs for the HTTP server, the store and the simulator.
type Config struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	CORSOrigins     []string      `envconfig:"CORS_ORIGINS" default:"*"`

	StoreDriver   string `envconfig:"STORE_DRIVER" default:"memory"`
	SQLitePath    string `envconfig:"SQLITE_PATH" default:"simulator.db"`
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	MongoURL      string `envconfig:"MONGO_URL"`
	MongoDatabase string `envconfig:"MONGO_DATABASE" default:"ecommerce"`

	SeedCatalogFile string `envconfig:"SEED_CATALOG_FILE"`
	AutoStart       bool   `envconfig:"AUTO_START" default:"true"`

	TickMinDelay       time.Duration `envconfig:"TICK_MIN_DELAY" default:"500ms"`
	TickMaxDelay       time.Duration `envconfig:"TICK_MAX_DELAY" default:"3s"`
	ErrorBackoff       time.Duration `envconfig:"ERROR_BACKOFF" default:"1s"`
	RestockProbability float64       `envconfig:"RESTOCK_PROBABILITY" default:"0.1"`
	SampleCandidates   int           `envconfig:"SAMPLE_CANDIDATES" default:"1000"`

	FeedBuffer        int `envconfig:"FEED_BUFFER" default:"64"`
	FeedHighWatermark int `envconfig:"FEED_HIGH_WATERMARK" default:"1000"`
	FeedBacklogLimit  int `envconfig:"FEED_BACKLOG_LIMIT" default:"10000"`
}

// Load collects configuration from environment with defaults.
func Load() (Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, errors.Wrap(err, "load config")
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.Wrap(ErrInvalid, "DATABASE_URL is required for the postgres driver")
		}
	case DriverMongo:
		if c.MongoURL == "" {
			return errors.Wrap(ErrInvalid, "MONGO_URL is required for the mongo driver")
		}
	default:
		return errors.Wrapf(ErrInvalid, "unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.TickMinDelay <= 0 || c.TickMaxDelay < c.TickMinDelay {
		return errors.Wrap(ErrInvalid, "tick delays must satisfy 0 < TICK_MIN_DELAY <= TICK_MAX_DELAY")
	}
	if c.ErrorBackoff <= 0 {
		return errors.Wrap(ErrInvalid, "ERROR_BACKOFF must be positive")
	}
	if c.RestockProbability < 0 || c.RestockProbability > 1 {
		return errors.Wrap(ErrInvalid, "RESTOCK_PROBABILITY must be within [0, 1]")
	}
	if c.FeedBacklogLimit < 0 {
		return errors.Wrap(ErrInvalid, "FEED_BACKLOG_LIMIT must not be negative")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.Wrap(ErrInvalid, "SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}
