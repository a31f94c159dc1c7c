package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/canopy-network/chanalytics/pkg/retry"
	"github.com/canopy-network/chanalytics/pkg/utils"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Executor is implemented by both *pgxpool.Pool and pgx.Tx, so store methods
// run unchanged inside or outside a transaction.
type Executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Client wraps a PostgreSQL connection pool.
type Client struct {
	Logger *zap.Logger
	Pool   *pgxpool.Pool
}

// PoolConfig defines connection pool settings for a specific component
type PoolConfig struct {
	MinConns        int32
	MaxConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	Component       string // For logging/debugging
}

// New connects to POSTGRES_URL, retrying until the server answers a ping.
func New(ctx context.Context, logger *zap.Logger, poolConf *PoolConfig) (client Client, err error) {
	connCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	client.Logger = logger

	dbURL := utils.Env("POSTGRES_URL", "postgres://localhost:5432/chanalytics")
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return Client{}, fmt.Errorf("failed to parse POSTGRES_URL: %w", err)
	}

	if poolConf == nil {
		poolConf = GetPoolConfigForComponent("")
	}
	config.MinConns = poolConf.MinConns
	config.MaxConns = poolConf.MaxConns
	config.MaxConnLifetime = poolConf.ConnMaxLifetime
	config.MaxConnIdleTime = poolConf.ConnMaxIdleTime

	retryErr := retry.WithBackoff(connCtx, retry.DefaultConfig(), logger, "postgres_connection", func() error {
		pool, openErr := pgxpool.NewWithConfig(connCtx, config)
		if openErr != nil {
			return fmt.Errorf("failed to create postgres connection pool: %w", openErr)
		}
		if pingErr := pool.Ping(connCtx); pingErr != nil {
			pool.Close()
			return fmt.Errorf("failed to ping postgres: %w", pingErr)
		}
		client.Pool = pool

		logger.Info("PostgreSQL connection pool configured",
			zap.String("database", config.ConnConfig.Database),
			zap.String("component", poolConf.Component),
			zap.Int32("min_conns", poolConf.MinConns),
			zap.Int32("max_conns", poolConf.MaxConns),
			zap.Duration("conn_max_lifetime", poolConf.ConnMaxLifetime),
		)
		return nil
	})
	if retryErr != nil {
		return Client{}, retryErr
	}

	return client, nil
}

// GetPoolConfigForComponent returns deterministic pool settings for each component
func GetPoolConfigForComponent(component string) *PoolConfig {
	var minConns, maxConns int32
	switch component {
	case "api":
		minConns, maxConns = 2, 20
	case "worker":
		minConns, maxConns = 2, 10
	default:
		minConns, maxConns = 1, 5
	}

	return &PoolConfig{
		MinConns:        minConns,
		MaxConns:        maxConns,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		Component:       component,
	}
}

// Exec executes a query without returning any rows, honouring a transaction in ctx.
func (c *Client) Exec(ctx context.Context, query string, args ...any) error {
	_, err := c.GetExecutor(ctx).Exec(ctx, query, args...)
	return err
}

// Close closes the connection pool
func (c *Client) Close() {
	c.Pool.Close()
}

// ctxKey is the type used for context keys to avoid collisions
type ctxKey string

const txKey ctxKey = "pgx_tx"

// WithTx returns a context carrying tx; GetExecutor will route through it.
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey, tx)
}

// GetExecutor returns the transaction stored in ctx, or the pool.
func (c *Client) GetExecutor(ctx context.Context) Executor {
	if tx, ok := ctx.Value(txKey).(pgx.Tx); ok {
		return tx
	}
	return c.Pool
}

// InTx runs fn inside one transaction. fn receives a context carrying the
// transaction; returning an error rolls everything back. Nested calls reuse
// the outer transaction.
func (c *Client) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey).(pgx.Tx); ok {
		return fn(ctx)
	}
	return pgx.BeginFunc(ctx, c.Pool, func(tx pgx.Tx) error {
		return fn(WithTx(ctx, tx))
	})
}

// IsNoRows checks if the error is a "no rows" error
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// Postgres SQLSTATE codes surfaced as validation failures.
const (
	uniqueViolation   = "23505"
	notNullViolation  = "23502"
	checkViolation    = "23514"
	foreignKeyMissing = "23503"
)

// IsConstraintViolation reports whether err is an integrity-constraint
// failure (unique, not-null, check, foreign key).
func IsConstraintViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case uniqueViolation, notNullViolation, checkViolation, foreignKeyMissing:
		return true
	}
	return false
}
