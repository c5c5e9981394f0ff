// Package config loads and validates crowley configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/crowley/internal/crawler"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Archive backends.
const (
	ArchiveNone   = "none"
	ArchiveMemory = "memory"
	ArchiveLocal  = "local"
	ArchiveGCS    = "gcs"
)

// Event publisher backends.
const (
	PublisherGCP    = "gcp"
	PublisherMemory = "memory"
)

// Fetcher implementations.
const (
	FetcherHTTP  = "http"
	FetcherColly = "colly"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Logging LoggingConfig `mapstructure:"logging"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Store   StoreConfig   `mapstructure:"store"`
	Archive ArchiveConfig `mapstructure:"archive"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// CrawlerConfig governs the crawl engine.
type CrawlerConfig struct {
	BatchSize             int    `mapstructure:"batch_size"`
	UserAgent             string `mapstructure:"user_agent"`
	Fetcher               string `mapstructure:"fetcher"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds"`
	Selector              string `mapstructure:"selector"`
}

// StoreConfig selects and configures the crawl result store.
type StoreConfig struct {
	Driver      string `mapstructure:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
	MaxConns    int32  `mapstructure:"max_conns"`
}

// ArchiveConfig controls where crawl manifests are written.
type ArchiveConfig struct {
	Backend   string `mapstructure:"backend"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for crawl completion events.
type PubSubConfig struct {
	Backend   string `mapstructure:"backend"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CROWLEY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3030)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("crawler.batch_size", crawler.BatchSize)
	v.SetDefault("crawler.user_agent", "crowley/0.1")
	v.SetDefault("crawler.fetcher", FetcherHTTP)
	v.SetDefault("crawler.request_timeout_seconds", 0)
	v.SetDefault("crawler.selector", crawler.DefaultSelector)
	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.sqlite_path", "./database.db")
	v.SetDefault("store.postgres_dsn", "")
	v.SetDefault("store.max_conns", 0)
	v.SetDefault("archive.backend", ArchiveNone)
	v.SetDefault("archive.local_dir", "./manifests")
	v.SetDefault("archive.gcs_bucket", "")
	v.SetDefault("archive.prefix", "crawls")
	v.SetDefault("pubsub.backend", PublisherGCP)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return errors.New("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return errors.New("auth.api_key must be set when auth is enabled")
	}
	if c.Crawler.BatchSize <= 0 {
		return errors.New("crawler.batch_size must be > 0")
	}
	if c.Crawler.RequestTimeoutSeconds < 0 {
		return errors.New("crawler.request_timeout_seconds must be >= 0")
	}
	switch c.Crawler.Fetcher {
	case FetcherHTTP, FetcherColly:
	default:
		return fmt.Errorf("crawler.fetcher %q is not one of http, colly", c.Crawler.Fetcher)
	}
	switch c.Store.Driver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		if c.Store.PostgresDSN == "" {
			return errors.New("store.postgres_dsn must be set for the postgres driver")
		}
	default:
		return fmt.Errorf("store.driver %q is not one of sqlite, postgres, memory", c.Store.Driver)
	}
	switch c.Archive.Backend {
	case ArchiveNone, ArchiveMemory:
	case ArchiveLocal:
		if c.Archive.LocalDir == "" {
			return errors.New("archive.local_dir must be set for the local backend")
		}
	case ArchiveGCS:
		if c.Archive.GCSBucket == "" {
			return errors.New("archive.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("archive.backend %q is not one of none, memory, local, gcs", c.Archive.Backend)
	}
	switch c.PubSub.Backend {
	case PublisherGCP, "":
		if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
			return errors.New("pubsub.project_id must be set when pubsub.topic_name is")
		}
	case PublisherMemory:
	default:
		return fmt.Errorf("pubsub.backend %q is not one of gcp, memory", c.PubSub.Backend)
	}
	return nil
}

// RequestTimeout converts the per-request timeout into a duration. Zero
// means no explicit timeout.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Crawler.RequestTimeoutSeconds) * time.Second
}
