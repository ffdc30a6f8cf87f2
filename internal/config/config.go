// Package config loads application configuration from an optional
// config.yaml plus REACTORSYNC_-prefixed environment variables, and owns
// global logger setup.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/reactormap/reactorsync/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Fetch   FetchConfig   `yaml:"fetch" mapstructure:"fetch"`
	Enrich  EnrichConfig  `yaml:"enrich" mapstructure:"enrich"`
	Sources SourcesConfig `yaml:"sources" mapstructure:"sources"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run-ledger backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	Path        string           `yaml:"path" mapstructure:"path"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// FetchConfig configures the shared HTTP fetcher.
type FetchConfig struct {
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// EnrichConfig configures run behavior common to every source.
type EnrichConfig struct {
	CheckpointEvery int    `yaml:"checkpoint_every" mapstructure:"checkpoint_every"`
	ReportDir       string `yaml:"report_dir" mapstructure:"report_dir"`
}

// SourcesConfig holds per-source endpoint settings.
type SourcesConfig struct {
	PRIS      PRISConfig      `yaml:"pris" mapstructure:"pris"`
	Wikipedia WikipediaConfig `yaml:"wikipedia" mapstructure:"wikipedia"`
	Wikidata  WikidataConfig  `yaml:"wikidata" mapstructure:"wikidata"`
}

// PRISConfig configures the PRIS table source.
type PRISConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Schema  string `yaml:"schema" mapstructure:"schema"`
}

// WikipediaConfig configures the Wikipedia API client.
type WikipediaConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// WikidataConfig configures the Wikidata API client.
type WikidataConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("REACTORSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "reactorsync.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.pool.max_conns", 10)
	v.SetDefault("store.pool.min_conns", 2)
	v.SetDefault("fetch.user_agent", "reactorsync/1.0 (https://github.com/reactormap/reactorsync)")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("enrich.checkpoint_every", 50)
	v.SetDefault("enrich.report_dir", "reports")
	v.SetDefault("sources.pris.base_url", "https://pris.iaea.org/PRIS")
	v.SetDefault("sources.pris.schema", "pris-country-v2")
	v.SetDefault("sources.wikipedia.base_url", "https://en.wikipedia.org/w/api.php")
	v.SetDefault("sources.wikidata.base_url", "https://www.wikidata.org/w/api.php")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
