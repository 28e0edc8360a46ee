// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Ingest IngestConfig `yaml:"ingest" mapstructure:"ingest"`
	Places PlacesConfig `yaml:"places" mapstructure:"places"`
	Query  QueryConfig  `yaml:"query" mapstructure:"query"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// SourceConfig describes one upstream feed.
type SourceConfig struct {
	// Name labels the source in logs and on stored places.
	Name string `yaml:"name" mapstructure:"name"`

	// Kind selects the reader: arcgis, geojson, json, xlsx, shapefile.
	Kind string `yaml:"kind" mapstructure:"kind"`

	// URL is the feed location; http(s):// and ftp:// schemes are
	// supported for remote kinds.
	URL string `yaml:"url" mapstructure:"url"`

	// Path is a local file for file-backed kinds.
	Path string `yaml:"path" mapstructure:"path"`

	// Category overrides the per-record category when the feed itself is
	// single-category (the open-data service feeds work this way).
	Category string `yaml:"category" mapstructure:"category"`
}

// IngestConfig configures the ingestion pipeline.
type IngestConfig struct {
	Sources        []SourceConfig `yaml:"sources" mapstructure:"sources"`
	TimeoutSecs    int            `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	StartupRefresh bool           `yaml:"startup_refresh" mapstructure:"startup_refresh"`
}

// Timeout returns the per-fetch timeout.
func (c IngestConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// PlacesConfig configures the commercial places API source.
type PlacesConfig struct {
	Key         string   `yaml:"key" mapstructure:"key"`
	BaseURL     string   `yaml:"base_url" mapstructure:"base_url"`
	Queries     []string `yaml:"queries" mapstructure:"queries"`
	BiasLat     float64  `yaml:"bias_lat" mapstructure:"bias_lat"`
	BiasLon     float64  `yaml:"bias_lon" mapstructure:"bias_lon"`
	BiasRadiusM float64  `yaml:"bias_radius_m" mapstructure:"bias_radius_m"`
	PageSize    int      `yaml:"page_size" mapstructure:"page_size"`
}

// QueryConfig configures proximity query defaults and bounds.
type QueryConfig struct {
	DefaultRadiusKM float64 `yaml:"default_radius_km" mapstructure:"default_radius_km"`
	DefaultLimit    int     `yaml:"default_limit" mapstructure:"default_limit"`
	MaxLimit        int     `yaml:"max_limit" mapstructure:"max_limit"`
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
	v.SetEnvPrefix("CAREMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Every env-settable key needs one: AutomaticEnv only surfaces
	// CAREMAP_* variables through Unmarshal for keys viper already knows.
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "caremap.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("ingest.timeout_secs", 30)
	v.SetDefault("ingest.startup_refresh", false)
	v.SetDefault("places.key", "")
	v.SetDefault("places.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("places.queries", []string{
		"fast food in Kingston Ontario",
		"bakery in Kingston Ontario",
		"restaurant in Kingston Ontario",
	})
	v.SetDefault("places.bias_lat", 44.2312)
	v.SetDefault("places.bias_lon", -76.4860)
	v.SetDefault("places.bias_radius_m", 12000)
	v.SetDefault("places.page_size", 20)
	v.SetDefault("query.default_radius_km", 5.0)
	v.SetDefault("query.default_limit", 50)
	v.SetDefault("query.max_limit", 200)
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
