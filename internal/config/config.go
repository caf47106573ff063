// Package config loads and validates audit service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Cache     CacheConfig     `mapstructure:"cache"`
	DB        DBConfig        `mapstructure:"db"`
	PageSpeed PageSpeedConfig `mapstructure:"pagespeed"`
	Logging   LoggingConfig   `mapstructure:"logging"`
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

// HTTPConfig configures outbound fetch behavior.
type HTTPConfig struct {
	UserAgent           string `mapstructure:"user_agent"`
	FetchTimeoutSeconds int    `mapstructure:"fetch_timeout_seconds"`
	ProbeTimeoutSeconds int    `mapstructure:"probe_timeout_seconds"`
}

// QueueConfig governs the three analysis queues and their workers.
type QueueConfig struct {
	Attempts         int `mapstructure:"attempts"`
	BackoffBaseMs    int `mapstructure:"backoff_base_ms"`
	RemoveOnComplete int `mapstructure:"remove_on_complete"`
	RemoveOnFail     int `mapstructure:"remove_on_fail"`
	Concurrency      int `mapstructure:"concurrency"`
	StaggerSeconds   int `mapstructure:"stagger_seconds"`
}

// CacheConfig sets the task-result cache policy.
type CacheConfig struct {
	TTLSeconds int `mapstructure:"ttl_seconds"`
}

// DBConfig controls access to the record store. An empty DSN selects the
// in-memory store for local development.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PageSpeedConfig holds the optional external speed-grading API settings.
type PageSpeedConfig struct {
	APIKey         string `mapstructure:"api_key"`
	Endpoint       string `mapstructure:"endpoint"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AUDIT")
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
	v.SetDefault("http.user_agent", "site-auditor-bot/1.0")
	v.SetDefault("http.fetch_timeout_seconds", 30)
	v.SetDefault("http.probe_timeout_seconds", 5)
	v.SetDefault("queue.attempts", 3)
	v.SetDefault("queue.backoff_base_ms", 2000)
	v.SetDefault("queue.remove_on_complete", 10)
	v.SetDefault("queue.remove_on_fail", 5)
	v.SetDefault("queue.concurrency", 2)
	v.SetDefault("queue.stagger_seconds", 1)
	v.SetDefault("cache.ttl_seconds", 3600)
	v.SetDefault("db.table", "analysis_records")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("pagespeed.endpoint", "https://www.googleapis.com/pagespeedonline/v5/runPagespeed")
	v.SetDefault("pagespeed.timeout_seconds", 15)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.HTTP.FetchTimeoutSeconds <= 0 {
		return fmt.Errorf("http.fetch_timeout_seconds must be > 0")
	}
	if c.Queue.Attempts <= 0 {
		return fmt.Errorf("queue.attempts must be > 0")
	}
	if c.Queue.Concurrency <= 0 {
		return fmt.Errorf("queue.concurrency must be > 0")
	}
	if c.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("cache.ttl_seconds must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// FetchTimeout converts the page fetch timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.FetchTimeoutSeconds) * time.Second
}

// ProbeTimeout converts the probe timeout into a duration.
func (c Config) ProbeTimeout() time.Duration {
	return time.Duration(c.HTTP.ProbeTimeoutSeconds) * time.Second
}

// CacheTTL converts the cache TTL into a duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// BackoffBase converts the retry backoff base into a duration.
func (c Config) BackoffBase() time.Duration {
	return time.Duration(c.Queue.BackoffBaseMs) * time.Millisecond
}

// Stagger converts the per-task enqueue stagger step into a duration.
func (c Config) Stagger() time.Duration {
	return time.Duration(c.Queue.StaggerSeconds) * time.Second
}
