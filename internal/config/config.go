// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/internradar/crawler/internal/reconcile"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Site      SiteConfig      `mapstructure:"site"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Crawl     CrawlConfig     `mapstructure:"crawl"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Storage   StorageConfig   `mapstructure:"storage"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// SiteConfig names the crawl target.
type SiteConfig struct {
	Origin string `mapstructure:"origin"`
}

// HTTPConfig configures the transport and retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	MaxAttempts      int    `mapstructure:"max_attempts"`
	BackoffInitialMs int    `mapstructure:"backoff_initial_ms"`
	UserAgent        string `mapstructure:"user_agent"`
}

// CrawlConfig governs crawl-run fan-out and validation.
type CrawlConfig struct {
	PageCount            int  `mapstructure:"page_count"`
	MaxConcurrentPages   int  `mapstructure:"max_concurrent_pages"`
	MaxConcurrentDetails int  `mapstructure:"max_concurrent_details"`
	PageStaggerMs        int  `mapstructure:"page_stagger_ms"`
	DetailDelayMs        int  `mapstructure:"detail_delay_ms"`
	ValidateResults      bool `mapstructure:"validate_results"`
	ValidateKeyword      bool `mapstructure:"validate_keyword"`
}

// ReconcileConfig selects the snapshot merge strategy.
type ReconcileConfig struct {
	Strategy string `mapstructure:"strategy"`
}

// StorageConfig selects and parameterizes the snapshot store.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
	DSN     string `mapstructure:"dsn"`
	Table   string `mapstructure:"table"`
}

// PubSubConfig holds metadata for completion-event publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("INTERNRADAR")
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
	v.SetDefault("server.port", 8080)
	v.SetDefault("site.origin", "https://internshala.com")
	v.SetDefault("http.timeout_seconds", 10)
	v.SetDefault("http.max_attempts", 5)
	v.SetDefault("http.backoff_initial_ms", 1000)
	v.SetDefault("crawl.page_count", 10)
	v.SetDefault("crawl.max_concurrent_pages", 2)
	v.SetDefault("crawl.max_concurrent_details", 8)
	v.SetDefault("crawl.page_stagger_ms", 1000)
	v.SetDefault("crawl.detail_delay_ms", 200)
	v.SetDefault("crawl.validate_results", true)
	v.SetDefault("crawl.validate_keyword", false)
	v.SetDefault("reconcile.strategy", string(reconcile.StrategyReplaceFreshOnly))
	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.path", "internships.json")
	v.SetDefault("storage.table", "internships")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	origin, err := url.Parse(c.Site.Origin)
	if err != nil || !origin.IsAbs() || origin.Host == "" {
		return fmt.Errorf("site.origin must be an absolute URL")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxAttempts <= 0 {
		return fmt.Errorf("http.max_attempts must be > 0")
	}
	if c.Crawl.PageCount <= 0 {
		return fmt.Errorf("crawl.page_count must be > 0")
	}
	if c.Crawl.MaxConcurrentPages <= 0 {
		return fmt.Errorf("crawl.max_concurrent_pages must be > 0")
	}
	if c.Crawl.MaxConcurrentDetails <= 0 {
		return fmt.Errorf("crawl.max_concurrent_details must be > 0")
	}
	if _, err := reconcile.ParseStrategy(c.Reconcile.Strategy); err != nil {
		return fmt.Errorf("reconcile.strategy: %w", err)
	}
	switch c.Storage.Backend {
	case "file":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the file backend")
		}
	case "memory":
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("storage.backend must be one of file, memory, postgres")
	}
	return nil
}

// RequestTimeout converts the HTTP timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// BackoffInitial converts the initial retry delay into a duration.
func (c Config) BackoffInitial() time.Duration {
	return time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond
}

// PageStagger converts the in-batch page launch delay into a duration.
func (c Config) PageStagger() time.Duration {
	return time.Duration(c.Crawl.PageStaggerMs) * time.Millisecond
}

// DetailDelay converts the detail-fetch launch delay into a duration.
func (c Config) DetailDelay() time.Duration {
	return time.Duration(c.Crawl.DetailDelayMs) * time.Millisecond
}
