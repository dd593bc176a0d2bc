// Package config loads service configuration from config.yaml, .env and
// BLEND_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. BLEND_POSTGRES_DSN.
const EnvPrefix = "BLEND"

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Store      StoreConfig      `mapstructure:"store"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Clickhouse ClickhouseConfig `mapstructure:"clickhouse"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Tokens     TokensConfig     `mapstructure:"tokens"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type AppConfig struct {
	Environment     string `mapstructure:"environment"`
	LogLevel        string `mapstructure:"log_level"`
	DefaultTimezone string `mapstructure:"default_timezone"`
}

// StoreConfig selects the event/rate/price backend: memory or postgres.
// Seed applies to the memory backend only: "demo" loads the demo wallet.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
	Seed    string `mapstructure:"seed"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
	// Migrate applies the embedded schema on startup, ClickHouse included.
	Migrate         bool          `mapstructure:"migrate"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// ClickhouseConfig is optional; when DSN is set, prices and rates are read
// from ClickHouse instead of Postgres.
type ClickhouseConfig struct {
	DSN          string        `mapstructure:"dsn"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
}

// RedisConfig is optional; the in-process cache is used when Addr is empty.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	TTL        time.Duration `mapstructure:"ttl"`
	MaxEntries int           `mapstructure:"max_entries"`
}

type EngineConfig struct {
	PageSize         int           `mapstructure:"page_size"`
	MaxPages         int           `mapstructure:"max_pages"`
	Q4WEpsilon       float64       `mapstructure:"q4w_epsilon"`
	Q4WLockWindow    time.Duration `mapstructure:"q4w_lock_window"`
	DefaultShareRate float64       `mapstructure:"default_share_rate"`
	NoiseThreshold   float64       `mapstructure:"noise_threshold"`
}

// TokensConfig names the tokens used to price backstop and emission flows.
type TokensConfig struct {
	BackstopLP string `mapstructure:"backstop_lp"`
	Emission   string `mapstructure:"emission"`
}

type HTTPConfig struct {
	Addr           string        `mapstructure:"addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "production")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.default_timezone", "UTC")
	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.seed", "demo")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.migrate", false)
	v.SetDefault("postgres.max_conns", 8)
	v.SetDefault("postgres.max_conn_idle_time", 5*time.Minute)
	v.SetDefault("clickhouse.dsn", "")
	v.SetDefault("clickhouse.max_open_conns", 4)
	v.SetDefault("clickhouse.dial_timeout", 5*time.Second)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.max_entries", 1024)
	v.SetDefault("engine.page_size", 1000)
	v.SetDefault("engine.max_pages", 500)
	v.SetDefault("engine.q4w_epsilon", 0.000001)
	v.SetDefault("engine.q4w_lock_window", 17*24*time.Hour)
	v.SetDefault("engine.default_share_rate", 1.0)
	v.SetDefault("engine.noise_threshold", 0.01)
	v.SetDefault("tokens.backstop_lp", "")
	v.SetDefault("tokens.emission", "")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.request_timeout", 30*time.Second)
	v.SetDefault("metrics.namespace", "blend_portfolio")
}

// Load reads .env (if present), then config.yaml from configPath (if
// present), then environment overrides, and validates the result.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports inconsistent settings.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "memory":
	case "postgres":
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn is required when store.backend is postgres")
		}
	default:
		return fmt.Errorf("store.backend %q: want memory or postgres", c.Store.Backend)
	}
	if c.Store.Seed != "demo" && c.Store.Seed != "none" {
		return fmt.Errorf("store.seed %q: want demo or none", c.Store.Seed)
	}
	if c.Clickhouse.DSN != "" && c.Store.Backend != "postgres" {
		return fmt.Errorf("clickhouse.dsn requires store.backend postgres")
	}
	if c.Engine.PageSize <= 0 || c.Engine.MaxPages <= 0 {
		return fmt.Errorf("engine.page_size and engine.max_pages must be positive")
	}
	if c.Engine.Q4WEpsilon <= 0 || c.Engine.DefaultShareRate <= 0 {
		return fmt.Errorf("engine.q4w_epsilon and engine.default_share_rate must be positive")
	}
	if c.Engine.NoiseThreshold < 0 {
		return fmt.Errorf("engine.noise_threshold must not be negative")
	}
	if c.Cache.TTL < 0 || c.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache.ttl and cache.max_entries must not be negative")
	}
	return nil
}

// IsDevelopment reports whether the console log format should be used.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.App.Environment, "development")
}
