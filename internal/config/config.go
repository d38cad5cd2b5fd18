package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/soochol/dbadmin/internal/dbadmin"
)

// Config holds the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Remote    RemoteConfig    `yaml:"remote"`
	Registry  RegistryConfig  `yaml:"registry"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
	Tracking  TrackingConfig  `yaml:"tracking"`
	Engines   EngineCatalog   `yaml:"engines"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// APIKeyHash is a bcrypt hash guarding the embedded REST surface.
	APIKeyHash string `yaml:"api_key_hash"`
}

// DatabaseConfig holds the PostgreSQL settings of the embedded registry.
// An empty URL keeps everything in memory.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RemoteConfig points the manager at a remote data-access service. An empty
// URL selects the embedded service.
type RemoteConfig struct {
	URL     string              `yaml:"url"`
	APIKey  string              `yaml:"api_key"`
	Timeout time.Duration       `yaml:"timeout"`
	Retry   dbadmin.RetryPolicy `yaml:"retry"`
}

// RegistryConfig tunes the registry manager.
type RegistryConfig struct {
	SerializePerDatabase bool `yaml:"serialize_per_database"`
	MaxInFlight          int  `yaml:"max_in_flight"` // max concurrent remote mutations (default: 10)
}

// SchedulerConfig holds cron expressions for background jobs. Empty
// expressions disable the job.
type SchedulerConfig struct {
	RefreshCron     string `yaml:"refresh_cron"`
	SyncCron        string `yaml:"sync_cron"`
	SyncConcurrency int    `yaml:"sync_concurrency"`
}

// LoggingConfig controls the slog handler and the optional rotating file.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // "text" or "json"
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"` // megabytes
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"` // days
	Compress   bool   `yaml:"compress"`
}

// SecurityConfig holds the key used to seal secret connection settings.
type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

// TrackingConfig selects the usage-tracking sink. With a Redis URL events
// go to a capped Redis list; otherwise to Postgres or memory.
type TrackingConfig struct {
	RedisURL string `yaml:"redis_url"`
	Capacity int    `yaml:"capacity"`
}

// defaults returns a Config populated with sensible default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Remote: RemoteConfig{
			Timeout: 30 * time.Second,
			Retry:   dbadmin.DefaultRetryPolicy(),
		},
		Registry: RegistryConfig{
			SerializePerDatabase: true,
			MaxInFlight:          10,
		},
		Scheduler: SchedulerConfig{
			SyncConcurrency: 4,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		},
		Tracking: TrackingConfig{
			Capacity: 1000,
		},
		Engines: DefaultEngines(),
	}
}

// Load reads a YAML configuration file at path, then applies DBADMIN_*
// environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads an optional ".env" file into the environment, then tries
// "config.yaml" from the current directory. If the file does not exist, it
// returns defaults with environment overrides applied.
// Any other error (e.g. permission denied, malformed YAML) is returned.
func LoadDefault() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn(".env file could not be loaded", "err", err)
	}

	cfg, err := Load("config.yaml")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg = defaults()
			if err := cfg.finish(); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}
	return cfg, nil
}

func (c *Config) finish() error {
	c.applyEnv()
	if len(c.Engines) == 0 {
		c.Engines = DefaultEngines()
	}
	if err := c.Engines.validate(); err != nil {
		return fmt.Errorf("invalid engines: %w", err)
	}
	if c.Remote.Timeout <= 0 {
		c.Remote.Timeout = 30 * time.Second
	}
	return nil
}

// applyEnv overrides settings from DBADMIN_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("DBADMIN_REMOTE_URL"); v != "" {
		c.Remote.URL = v
	}
	if v := os.Getenv("DBADMIN_REMOTE_API_KEY"); v != "" {
		c.Remote.APIKey = v
	}
	if v := os.Getenv("DBADMIN_DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("DBADMIN_ENCRYPTION_KEY"); v != "" {
		c.Security.EncryptionKey = v
	}
	if v := os.Getenv("DBADMIN_TRACKING_REDIS_URL"); v != "" {
		c.Tracking.RedisURL = v
	}
	if v := os.Getenv("DBADMIN_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("DBADMIN_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		} else {
			slog.Warn("ignoring invalid DBADMIN_PORT", "value", v)
		}
	}
}
