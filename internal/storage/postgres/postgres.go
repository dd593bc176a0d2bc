package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"blend-portfolio/internal/domain"
)

// ApplicationName tags every session so the engine's queries can be told
// apart from the indexer's in pg_stat_activity.
const ApplicationName = "blend-portfolio"

// PoolOptions tune the connection pool. Zero values keep pgxpool defaults.
type PoolOptions struct {
	MaxConns        int32
	MaxConnIdleTime time.Duration
}

// Pool is the pgx pool shared by the Postgres stores.
type Pool struct {
	*pgxpool.Pool
}

// NewPool parses dsn, applies opts and checks the server answers.
func NewPool(ctx context.Context, dsn string, opts PoolOptions) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = opts.MaxConnIdleTime
	}
	if _, ok := cfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		cfg.ConnConfig.RuntimeParams["application_name"] = ApplicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, domain.Unavailable("connect to postgres", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, domain.Unavailable("ping postgres", err)
	}
	return &Pool{Pool: pool}, nil
}

const codeUniqueViolation = "23505"

// pgError returns the server-side error code of err, if any.
func pgError(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, true
	}
	return "", false
}

func isUniqueViolation(err error) bool {
	code, ok := pgError(err)
	return ok && code == codeUniqueViolation
}

// classify wraps a query failure. Errors reported by the server keep their
// cause; anything else means the store could not be reached.
func classify(op string, err error) error {
	if _, ok := pgError(err); ok || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return domain.Unavailable(op, err)
}

func noRows(err error) bool { return errors.Is(err, pgx.ErrNoRows) }
