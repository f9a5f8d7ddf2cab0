package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultRefreshInterval = time.Hour

	configPathEnv      = "OFFER_TRACKER_CONFIG"
	listenAddrEnv      = "LISTEN_ADDR"
	databaseDSNEnv     = "DATABASE_DSN"
	marketplaceURLEnv  = "MARKETPLACE_BASE_URL"
	refreshIntervalEnv = "REFRESH_INTERVAL"
	logLevelEnv        = "LOG_LEVEL"
)

// Config holds high-level settings required across the application.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Database    DatabaseConfig    `yaml:"database"`
	Marketplace MarketplaceConfig `yaml:"marketplace"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Catalog     CatalogConfig     `yaml:"catalog"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// HTTPConfig describes the listening socket of the API server.
type HTTPConfig struct {
	ListenAddr string `yaml:"listenAddr"`
}

// DatabaseConfig describes Postgres connection details. An empty DSN runs
// the service without durable offer storage.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// MarketplaceConfig wires the listing API endpoint.
type MarketplaceConfig struct {
	BaseURL        string `yaml:"baseUrl"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
	FetchLimit     int    `yaml:"fetchLimit"`
}

// Timeout resolves the request deadline for marketplace calls.
func (m MarketplaceConfig) Timeout() time.Duration {
	if m.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// SchedulerConfig defines how often active observations refresh.
type SchedulerConfig struct {
	RefreshInterval string `yaml:"refreshInterval"`
}

// Interval resolves the refresh interval string to a duration.
func (s SchedulerConfig) Interval() time.Duration {
	if s.RefreshInterval == "" {
		return defaultRefreshInterval
	}
	d, err := time.ParseDuration(s.RefreshInterval)
	if err != nil || d <= 0 {
		log.Printf("config: invalid refresh interval %q, reverting to %s", s.RefreshInterval, defaultRefreshInterval)
		return defaultRefreshInterval
	}
	return d
}

// CatalogConfig points at the static filter-definition and category
// taxonomy documents.
type CatalogConfig struct {
	FiltersPath    string `yaml:"filtersPath"`
	CategoriesPath string `yaml:"categoriesPath"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(listenAddrEnv); v != "" {
		c.HTTP.ListenAddr = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(marketplaceURLEnv); v != "" {
		c.Marketplace.BaseURL = v
	}

	if v := os.Getenv(refreshIntervalEnv); v != "" {
		c.Scheduler.RefreshInterval = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.HTTP.ListenAddr != "" {
		base.HTTP = override.HTTP
	}

	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.Marketplace.BaseURL != "" {
		base.Marketplace.BaseURL = override.Marketplace.BaseURL
	}
	if override.Marketplace.TimeoutSeconds > 0 {
		base.Marketplace.TimeoutSeconds = override.Marketplace.TimeoutSeconds
	}
	if override.Marketplace.FetchLimit > 0 {
		base.Marketplace.FetchLimit = override.Marketplace.FetchLimit
	}

	if override.Scheduler.RefreshInterval != "" {
		base.Scheduler.RefreshInterval = override.Scheduler.RefreshInterval
	}

	if override.Catalog.FiltersPath != "" {
		base.Catalog.FiltersPath = override.Catalog.FiltersPath
	}
	if override.Catalog.CategoriesPath != "" {
		base.Catalog.CategoriesPath = override.Catalog.CategoriesPath
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	return base
}

func defaultConfig() Config {
	return Config{
		HTTP:     HTTPConfig{ListenAddr: ":5000"},
		Database: DatabaseConfig{DSN: ""},
		Marketplace: MarketplaceConfig{
			BaseURL:        "https://www.olx.pl/api/v1",
			TimeoutSeconds: 15,
			FetchLimit:     40,
		},
		Scheduler: SchedulerConfig{RefreshInterval: "60m"},
		Catalog: CatalogConfig{
			FiltersPath:    "filtry.json",
			CategoriesPath: "kategorie.json",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}
