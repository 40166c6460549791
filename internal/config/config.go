package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/renderinc/report-search/internal/storage"
)

// Config holds the report-search configuration.
type Config struct {
	Env     string        `yaml:"env"`      // local, dev, prod (default: local)
	DataDir string        `yaml:"data_dir"` // default: ./data
	Logging LoggingConfig `yaml:"logging"`
	HTTP    HTTPConfig    `yaml:"http"`
	Index   IndexConfig   `yaml:"index"`
	Store   StoreConfig   `yaml:"store"`
	Search  SearchConfig  `yaml:"search"`
	Import  ImportConfig  `yaml:"import"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Host              string  `yaml:"host"`
	Port              int     `yaml:"port"`
	ReadTimeoutSec    int     `yaml:"read_timeout_sec"`
	WriteTimeoutSec   int     `yaml:"write_timeout_sec"`
	ShutdownSec       int     `yaml:"shutdown_timeout_sec"`
	RequestTimeoutSec int     `yaml:"request_timeout_sec"`
	RateLimitRPS      float64 `yaml:"rate_limit_rps"` // 0 = unlimited
	RateLimitBurst    int     `yaml:"rate_limit_burst"`
}

// IndexConfig holds full-text index settings.
type IndexConfig struct {
	Path      string `yaml:"path"` // default: <data_dir>/index
	BatchSize int    `yaml:"batch_size"`
}

// StoreConfig holds document store settings.
type StoreConfig struct {
	Driver      string      `yaml:"driver"` // badger, sqlite, redis (default: badger)
	Path        string      `yaml:"path"`   // default: <data_dir>/store or <data_dir>/store.db
	Compression string      `yaml:"compression"`
	SyncWrites  bool        `yaml:"sync_writes"`
	Redis       RedisConfig `yaml:"redis"`
}

// RedisConfig holds settings for the redis store driver.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// SearchConfig holds query engine settings.
type SearchConfig struct {
	ResolveWorkers int `yaml:"resolve_workers"`
}

// ImportConfig holds import pipeline settings.
type ImportConfig struct {
	ProgressEvery int `yaml:"progress_every"`
}

// Override adjusts a loaded configuration before defaults are applied.
// CLI flags use it so that derived paths follow an overridden data dir.
type Override func(*Config)

// Load reads configuration from a YAML file. An empty path yields the
// defaults. Index and store paths left empty are derived from the data dir.
func Load(path string, overrides ...Override) (Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}

		// Substitute env variables of the form ${VAR}
		data = expandEnvVars(data)

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	for _, o := range overrides {
		o(&cfg)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Env == "" {
		c.Env = "local"
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.HTTP.Host == "" {
		c.HTTP.Host = "localhost"
	}
	if c.HTTP.Port <= 0 {
		c.HTTP.Port = 8000
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.RequestTimeoutSec <= 0 {
		c.HTTP.RequestTimeoutSec = 5
	}
	if c.HTTP.RateLimitRPS > 0 && c.HTTP.RateLimitBurst <= 0 {
		c.HTTP.RateLimitBurst = int(c.HTTP.RateLimitRPS) + 1
	}
	if c.Index.Path == "" {
		c.Index.Path = filepath.Join(c.DataDir, "index")
	}
	if c.Index.BatchSize <= 0 {
		c.Index.BatchSize = 1000
	}
	if c.Store.Driver == "" {
		c.Store.Driver = storage.DriverBadger
	}
	if c.Store.Path == "" {
		switch c.Store.Driver {
		case storage.DriverSQLite:
			c.Store.Path = filepath.Join(c.DataDir, "store.db")
		case storage.DriverBadger:
			c.Store.Path = filepath.Join(c.DataDir, "store")
		}
	}
	if c.Store.Compression == "" {
		c.Store.Compression = "snappy"
	}
	if c.Store.Redis.KeyPrefix == "" {
		c.Store.Redis.KeyPrefix = "report:"
	}
	if c.Search.ResolveWorkers <= 0 {
		c.Search.ResolveWorkers = 4
	}
	if c.Import.ProgressEvery <= 0 {
		c.Import.ProgressEvery = 100
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	switch c.Env {
	case "local", "dev", "prod":
	default:
		return fmt.Errorf("env must be one of local, dev, prod, got %q", c.Env)
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.HTTP.RateLimitRPS < 0 {
		return fmt.Errorf("http.rate_limit_rps must not be negative, got %v", c.HTTP.RateLimitRPS)
	}
	switch c.Store.Driver {
	case storage.DriverBadger, storage.DriverSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for driver %q", c.Store.Driver)
		}
	case storage.DriverRedis:
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("store.redis.addr is required for driver %q", c.Store.Driver)
		}
	default:
		return fmt.Errorf("store.driver must be badger, sqlite or redis, got %q", c.Store.Driver)
	}
	switch c.Store.Compression {
	case "none", "snappy", "zstd":
	default:
		return fmt.Errorf("store.compression must be none, snappy or zstd, got %q", c.Store.Compression)
	}
	return nil
}

// StorageConfig converts the store section for storage.Open.
func (c *Config) StorageConfig() storage.Config {
	return storage.Config{
		Driver:      c.Store.Driver,
		Path:        c.Store.Path,
		Compression: c.Store.Compression,
		SyncWrites:  c.Store.SyncWrites,
		Redis: storage.RedisConfig{
			Addr:      c.Store.Redis.Addr,
			Password:  c.Store.Redis.Password,
			DB:        c.Store.Redis.DB,
			KeyPrefix: c.Store.Redis.KeyPrefix,
		},
	}
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
