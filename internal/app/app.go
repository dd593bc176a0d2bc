// Package app assembles stores, cache, metrics and the portfolio service
// from configuration. Both binaries start here.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"blend-portfolio/internal/backstop"
	"blend-portfolio/internal/cache"
	"blend-portfolio/internal/calendar"
	"blend-portfolio/internal/config"
	"blend-portfolio/internal/fixtures"
	"blend-portfolio/internal/logger"
	"blend-portfolio/internal/observability"
	"blend-portfolio/internal/portfolio"
	"blend-portfolio/internal/storage"
	chstore "blend-portfolio/internal/storage/clickhouse"
	"blend-portfolio/internal/storage/memory"
	"blend-portfolio/internal/storage/migrations"
	pgstore "blend-portfolio/internal/storage/postgres"
	"blend-portfolio/internal/yield"
)

// App holds the wired components. Close releases connections.
type App struct {
	Config   *config.Config
	Service  *portfolio.Service
	Metrics  *observability.Metrics
	Registry *prometheus.Registry
	// Demo is set when the memory backend was seeded with the demo wallet.
	Demo *fixtures.Wallet

	closers []func()
}

// New wires an App from cfg. now anchors the demo data; pass time.Now in
// production.
func New(ctx context.Context, cfg *config.Config, now func() time.Time) (*App, error) {
	log := logger.ForComponent("app")
	a := &App{Config: cfg, Registry: prometheus.NewRegistry()}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = observability.NewMetrics(cfg.Metrics.Namespace, a.Registry)

	stores, tokens, err := a.stores(ctx, cfg, now, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	c, err := a.cache(ctx, cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Service = portfolio.New(stores, c, a.Metrics, logger.ForComponent("portfolio"), portfolio.Options{
		DefaultTimezone: cfg.App.DefaultTimezone,
		PageSize:        cfg.Engine.PageSize,
		MaxPages:        cfg.Engine.MaxPages,
		NoiseThreshold:  cfg.Engine.NoiseThreshold,
		Backstop: backstop.Config{
			Epsilon:          cfg.Engine.Q4WEpsilon,
			LockWindow:       cfg.Engine.Q4WLockWindow,
			DefaultShareRate: cfg.Engine.DefaultShareRate,
		},
		Tokens:   tokens,
		CacheTTL: cfg.Cache.TTL,
	}).WithClock(now)
	return a, nil
}

// Close releases every connection opened by New, in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) stores(ctx context.Context, cfg *config.Config, now func() time.Time, log zerolog.Logger) (storage.Stores, yield.Tokens, error) {
	tokens := yield.Tokens{BackstopLP: cfg.Tokens.BackstopLP, Emission: cfg.Tokens.Emission}

	if cfg.Store.Backend == "memory" {
		mem := memory.NewStores()
		if cfg.Store.Seed == "demo" {
			w, err := fixtures.Load(ctx, mem, calendar.Today(now(), time.UTC))
			if err != nil {
				return storage.Stores{}, tokens, fmt.Errorf("seed demo wallet: %w", err)
			}
			a.Demo = &w
			if tokens.BackstopLP == "" && tokens.Emission == "" {
				tokens = w.Tokens()
			}
			log.Info().Str("user", w.User).Str("from", w.FirstDay.String()).Msg("seeded demo wallet")
		}
		return observability.InstrumentStores(mem.ReadOnly(), "memory", a.Metrics), tokens, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN, pgstore.PoolOptions{
		MaxConns:        cfg.Postgres.MaxConns,
		MaxConnIdleTime: cfg.Postgres.MaxConnIdleTime,
	})
	if err != nil {
		return storage.Stores{}, tokens, fmt.Errorf("connect to postgres: %w", err)
	}
	a.closers = append(a.closers, pool.Close)
	if cfg.Postgres.Migrate {
		if err := migrations.RunPostgres(ctx, pool); err != nil {
			return storage.Stores{}, tokens, fmt.Errorf("migrate postgres: %w", err)
		}
		log.Info().Msg("postgres schema applied")
	}
	stores := observability.InstrumentStores(pgstore.NewStores(pool), "postgres", a.Metrics)

	if cfg.Clickhouse.DSN == "" {
		return stores, tokens, nil
	}

	conn, err := chstore.NewConn(ctx, cfg.Clickhouse.DSN, chstore.ConnOptions{
		MaxOpenConns: cfg.Clickhouse.MaxOpenConns,
		DialTimeout:  cfg.Clickhouse.DialTimeout,
	})
	if err != nil {
		return storage.Stores{}, tokens, fmt.Errorf("connect to clickhouse: %w", err)
	}
	a.closers = append(a.closers, func() { _ = conn.Close() })
	if cfg.Postgres.Migrate {
		if err := migrations.RunClickhouse(ctx, conn); err != nil {
			return storage.Stores{}, tokens, fmt.Errorf("migrate clickhouse: %w", err)
		}
		log.Info().Msg("clickhouse schema applied")
	}
	analytics := observability.InstrumentStores(storage.Stores{
		Rates:  chstore.NewRateIndexStore(conn),
		Prices: chstore.NewPriceStore(conn),
	}, "clickhouse", a.Metrics)
	stores.Rates = analytics.Rates
	stores.Prices = analytics.Prices
	log.Info().Msg("reading rates and prices from clickhouse")
	return stores, tokens, nil
}

// cache returns Redis when configured, else the in-process LRU.
func (a *App) cache(ctx context.Context, cfg *config.Config, log zerolog.Logger) (cache.Cache, error) {
	client, err := cache.NewRedisClient(ctx, cache.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	if client == nil {
		log.Debug().Int("max_entries", cfg.Cache.MaxEntries).Msg("using in-process cache")
		return cache.NewMemory(cfg.Cache.MaxEntries, cfg.Cache.TTL), nil
	}
	r := cache.NewRedis(client)
	a.closers = append(a.closers, func() { _ = r.Close() })
	log.Info().Str("addr", cfg.Redis.Addr).Msg("using redis cache")
	return r, nil
}
