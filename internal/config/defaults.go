package config

import "time"

// Default returns a configuration with working defaults for a single-node
// deployment. Load overlays file and environment values on top of this.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			DocsPort:    8080,
			WebhookPort: 8081,
			AdminPort:   8082,
		},
		Storage: StorageConfig{
			RootDir:        "./data/artifacts",
			EnvArchiveName: "venv.tar.gz",
		},
		Database: DatabaseConfig{
			Path: "./data/docshost.db",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Queue: QueueConfig{
			Stream:  "DOCSHOST_BUILDS",
			Subject: "docshost.builds",
			MaxSize: 100,
		},
		Build: BuildConfig{
			WorkDir:        "./data/work",
			Workers:        2,
			LeaseTTL:       30 * time.Minute,
			CommandTimeout: 20 * time.Minute,
		},
		Serve: ServeConfig{
			BaseDomain: "docshost.local",
			CacheTTL:   0, // invalidation-driven; TTL is an opt-in safety net
		},
		Provider: ProviderConfig{
			APIURL: "https://api.github.com",
		},
	}
}

// WriteDefault serializes the default configuration to YAML for `docshost init`.
func WriteDefault() ([]byte, error) {
	return marshalYAML(Default())
}
