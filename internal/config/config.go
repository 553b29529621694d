// Package config loads and validates the application configuration
// from a YAML file and TABLERAKE_* environment variables.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Datasets map[string]Dataset `yaml:"datasets" mapstructure:"datasets"`
	Storage  Storage            `yaml:"storage" mapstructure:"storage"`
	Batch    Batch              `yaml:"batch" mapstructure:"batch"`
	Server   Server             `yaml:"server" mapstructure:"server"`
	Log      Log                `yaml:"log" mapstructure:"log"`
}

// Dataset describes one scrape target: where the rows come from, how
// cells map to fields, and which fields identify a row.
type Dataset struct {
	Source  Source   `yaml:"source" mapstructure:"source"`
	Columns []Column `yaml:"columns" mapstructure:"columns"`
	Keys    []string `yaml:"keys" mapstructure:"keys"`
}

// Source locates the raw rows. Kind selects the fetcher; the selector
// fields are opaque to the core and only interpreted by page sources.
type Source struct {
	Kind        string `yaml:"kind" mapstructure:"kind"` // browser | static | csv | xlsx
	URL         string `yaml:"url" mapstructure:"url"`
	RowCSS      string `yaml:"row_css" mapstructure:"row_css"`
	CellCSS     string `yaml:"cell_css" mapstructure:"cell_css"`
	Path        string `yaml:"path" mapstructure:"path"`
	Sheet       string `yaml:"sheet" mapstructure:"sheet"`
	WaitSecs    int    `yaml:"wait_secs" mapstructure:"wait_secs"`
	SkipRows    int    `yaml:"skip_rows" mapstructure:"skip_rows"`
	ShowBrowser bool   `yaml:"show_browser" mapstructure:"show_browser"`
}

// Column maps a field name to a positional cell index.
type Column struct {
	Field   string `yaml:"field" mapstructure:"field"`
	Index   int    `yaml:"index" mapstructure:"index"`
	Numeric bool   `yaml:"numeric" mapstructure:"numeric"`
}

// Storage selects and configures the persistence backend.
type Storage struct {
	Kind        string `yaml:"kind" mapstructure:"kind"` // file | s3 | sqlite | postgres
	Dir         string `yaml:"dir" mapstructure:"dir"`
	Bucket      string `yaml:"bucket" mapstructure:"bucket"`
	Prefix      string `yaml:"prefix" mapstructure:"prefix"`
	Region      string `yaml:"region" mapstructure:"region"`
	Endpoint    string `yaml:"endpoint" mapstructure:"endpoint"`
	DSN         string `yaml:"dsn" mapstructure:"dsn"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// Batch configures multi-dataset runs.
type Batch struct {
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// Server configures the HTTP API.
type Server struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// Log configures logging.
type Log struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("tablerake")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TABLERAKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("storage.kind", "file")
	v.SetDefault("storage.dir", "data")
	v.SetDefault("storage.dsn", "tablerake.db")
	v.SetDefault("batch.max_concurrent", 4)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
func InitLogger(cfg Log) error {
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
