// Package config loads and validates service configuration from a YAML file,
// a .env file, and environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// HTTPConfig holds port assignments for the three HTTP surfaces.
type HTTPConfig struct {
	DocsPort    int `yaml:"docs_port"`
	WebhookPort int `yaml:"webhook_port"`
	AdminPort   int `yaml:"admin_port"`
}

// StorageConfig configures durable object storage for built artifacts.
type StorageConfig struct {
	// RootDir is the base directory of the filesystem-backed object store.
	RootDir string `yaml:"root_dir"`
	// EnvArchiveName is the object name of the cached build environment
	// tarball under each owner/project prefix.
	EnvArchiveName string `yaml:"env_archive_name"`
}

// DatabaseConfig configures the sqlite database holding projects, builds,
// teams, and permission grants. Use ":memory:" for tests.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig configures the lease backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// QueueConfig configures the build job queue. When NATSURL is empty the
// service falls back to the in-process queue (single-node deployments,
// tests).
type QueueConfig struct {
	NATSURL string `yaml:"nats_url"`
	Stream  string `yaml:"stream"`
	Subject string `yaml:"subject"`
	MaxSize int    `yaml:"max_size"`
}

// BuildConfig controls pipeline execution.
type BuildConfig struct {
	// WorkDir is the base directory for per-build working directories.
	WorkDir string `yaml:"work_dir"`
	// Workers is the number of pipeline workers pulling from the queue.
	Workers int `yaml:"workers"`
	// LeaseTTL bounds how long a build may hold its per-project lease.
	LeaseTTL time.Duration `yaml:"lease_ttl"`
	// CommandTimeout bounds a single generator subprocess run.
	CommandTimeout time.Duration `yaml:"command_timeout"`
}

// ServeConfig controls the static artifact serving path.
type ServeConfig struct {
	// BaseDomain is the apex under which tenant subdomains live,
	// e.g. "docshost.dev" serves tenant "alice" at alice.docshost.dev.
	BaseDomain string `yaml:"base_domain"`
	// CacheTTL, when non-zero, expires read-through cache entries as a
	// safety net for missed publish invalidations. Zero disables the TTL:
	// staleness is then bounded only by publish-invalidation correctness.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// ProviderConfig points at the source-hosting provider API.
type ProviderConfig struct {
	APIURL string `yaml:"api_url"`
}

// Config is the root configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Queue    QueueConfig    `yaml:"queue"`
	Build    BuildConfig    `yaml:"build"`
	Serve    ServeConfig    `yaml:"serve"`
	Provider ProviderConfig `yaml:"provider"`
}

// Load reads configuration from path, applies defaults, environment
// overrides, and validation.
func Load(path string) (*Config, error) {
	// .env values never override the real environment.
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path) // #nosec G304 - path comes from the operator's CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets deployment environments override file-provided
// values without editing the file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DOCSHOST_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("DOCSHOST_NATS_URL"); v != "" {
		c.Queue.NATSURL = v
	}
	if v := os.Getenv("DOCSHOST_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("DOCSHOST_STORAGE_ROOT"); v != "" {
		c.Storage.RootDir = v
	}
	if v := os.Getenv("DOCSHOST_BASE_DOMAIN"); v != "" {
		c.Serve.BaseDomain = v
	}
	if v := os.Getenv("DOCSHOST_PROVIDER_API_URL"); v != "" {
		c.Provider.APIURL = v
	}
	if v := os.Getenv("DOCSHOST_BUILD_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Build.Workers = n
		}
	}
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures.
func (c *Config) Validate() error {
	ports := map[string]int{
		"http.docs_port":    c.HTTP.DocsPort,
		"http.webhook_port": c.HTTP.WebhookPort,
		"http.admin_port":   c.HTTP.AdminPort,
	}
	for name, p := range ports {
		if p <= 0 || p > 65535 {
			return fmt.Errorf("config: %s must be in 1..65535, got %d", name, p)
		}
	}
	if c.Storage.RootDir == "" {
		return fmt.Errorf("config: storage.root_dir is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("config: database.path is required")
	}
	if c.Build.Workers <= 0 {
		return fmt.Errorf("config: build.workers must be positive, got %d", c.Build.Workers)
	}
	if c.Build.LeaseTTL <= 0 {
		return fmt.Errorf("config: build.lease_ttl must be positive")
	}
	if c.Serve.BaseDomain == "" {
		return fmt.Errorf("config: serve.base_domain is required")
	}
	return nil
}
