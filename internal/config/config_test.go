package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Backend != "memory" || cfg.Store.Seed != "demo" || cfg.App.DefaultTimezone != "UTC" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Engine.PageSize != 1000 || cfg.Engine.MaxPages != 500 {
		t.Errorf("paging defaults = %d/%d", cfg.Engine.PageSize, cfg.Engine.MaxPages)
	}
	if cfg.Cache.TTL != 5*time.Minute || cfg.Engine.Q4WLockWindow != 17*24*time.Hour {
		t.Errorf("duration defaults = %v/%v", cfg.Cache.TTL, cfg.Engine.Q4WLockWindow)
	}
	if cfg.Postgres.MaxConns != 8 || cfg.Clickhouse.DialTimeout != 5*time.Second {
		t.Errorf("pool defaults = %d/%v", cfg.Postgres.MaxConns, cfg.Clickhouse.DialTimeout)
	}
	if cfg.IsDevelopment() {
		t.Error("default environment should not be development")
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()
	yaml := `
app:
  environment: development
  default_timezone: Europe/Berlin
store:
  backend: postgres
postgres:
  dsn: postgres://file/db
cache:
  ttl: 30s
engine:
  noise_threshold: 0.5
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BLEND_POSTGRES_DSN", "postgres://env/db")
	t.Setenv("BLEND_ENGINE_MAX_PAGES", "7")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Postgres.DSN != "postgres://env/db" {
		t.Errorf("env override not applied: %q", cfg.Postgres.DSN)
	}
	if cfg.Engine.MaxPages != 7 {
		t.Errorf("MaxPages = %d, want 7", cfg.Engine.MaxPages)
	}
	if cfg.Cache.TTL != 30*time.Second || cfg.Engine.NoiseThreshold != 0.5 {
		t.Errorf("file values not applied: %+v %+v", cfg.Cache, cfg.Engine)
	}
	if !cfg.IsDevelopment() || cfg.App.DefaultTimezone != "Europe/Berlin" {
		t.Errorf("app = %+v", cfg.App)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("app: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil || !strings.Contains(err.Error(), "read config") {
		t.Errorf("err = %v, want read config error", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Store:  StoreConfig{Backend: "memory", Seed: "demo"},
			Engine: EngineConfig{PageSize: 10, MaxPages: 10, Q4WEpsilon: 1e-6, DefaultShareRate: 1},
		}
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"ok", func(*Config) {}, ""},
		{"postgres without dsn", func(c *Config) { c.Store.Backend = "postgres" }, "postgres.dsn"},
		{"unknown backend", func(c *Config) { c.Store.Backend = "sqlite" }, "store.backend"},
		{"unknown seed", func(c *Config) { c.Store.Seed = "mainnet" }, "store.seed"},
		{"clickhouse without postgres", func(c *Config) { c.Clickhouse.DSN = "clickhouse://x" }, "clickhouse.dsn"},
		{"zero pages", func(c *Config) { c.Engine.MaxPages = 0 }, "engine.page_size"},
		{"zero epsilon", func(c *Config) { c.Engine.Q4WEpsilon = 0 }, "q4w_epsilon"},
		{"negative noise", func(c *Config) { c.Engine.NoiseThreshold = -1 }, "noise_threshold"},
		{"negative ttl", func(c *Config) { c.Cache.TTL = -time.Second }, "cache.ttl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.want == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}
