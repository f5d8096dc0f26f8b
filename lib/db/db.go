package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/artie-labs/ingest/lib/retry"
	"github.com/artie-labs/ingest/lib/telemetry/metrics"
	"github.com/artie-labs/ingest/lib/telemetry/metrics/base"
)

const (
	acquireAttempts  = 2
	acquireJitterMs  = 50
	acquireMaxJitter = 250
)

// Querier is satisfied by [*sql.DB], [*sql.Conn], [*sql.Tx] and [*Conn].
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

type PoolConfig struct {
	Size        int
	MaxOverflow int
	// Timeout bounds how long [Store.Acquire] waits for a connection.
	Timeout time.Duration
	// Recycle is the max lifetime of a connection.
	Recycle time.Duration
	PrePing bool
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Size:        5,
		MaxOverflow: 10,
		Timeout:     30 * time.Second,
		Recycle:     time.Hour,
		PrePing:     true,
	}
}

func (p PoolConfig) maxOpen() int {
	return p.Size + p.MaxOverflow
}

type Option func(s *Store)

func WithMetrics(client base.Client) Option {
	return func(s *Store) {
		s.metrics = client
	}
}

// Store owns the connection pool, everything else borrows connections from it.
type Store struct {
	db       *sql.DB
	cfg      PoolConfig
	metrics  base.Client
	retryCfg retry.RetryConfig
}

// Open creates the pool and makes sure the server is reachable.
func Open(ctx context.Context, driverName, dsn string, cfg PoolConfig, opts ...Option) (*Store, error) {
	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to start a SQL client for %q: %w", driverName, err)
	}

	store := NewStore(sqlDB, cfg, opts...)
	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err = sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("%w: failed to validate the DB connection: %w", ErrConnectionUnavailable, err)
	}

	return store, nil
}

// NewStore wraps an existing [*sql.DB] and applies the pool settings to it.
func NewStore(sqlDB *sql.DB, cfg PoolConfig, opts ...Option) *Store {
	if cfg.Size <= 0 {
		cfg.Size = DefaultPoolConfig().Size
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultPoolConfig().Timeout
	}

	sqlDB.SetMaxOpenConns(cfg.maxOpen())
	sqlDB.SetMaxIdleConns(cfg.Size)
	if cfg.Recycle > 0 {
		sqlDB.SetConnMaxLifetime(cfg.Recycle)
	}

	store := &Store{
		db:  sqlDB,
		cfg: cfg,
		retryCfg: retry.NewRetryConfig(retry.NewRetryConfigArgs{
			MaxAttempts:    acquireAttempts,
			JitterBaseMs:   acquireJitterMs,
			JitterMaxMs:    acquireMaxJitter,
			IsRetryableErr: retryableError,
		}),
	}

	for _, opt := range opts {
		opt(store)
	}

	if store.metrics == nil {
		store.metrics = metrics.NullMetricsProvider{}
	}

	return store
}

// Concurrency is the most connections that can be checked out at once.
func (s *Store) Concurrency() int {
	return s.cfg.maxOpen()
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Acquire checks out a dedicated connection, the caller has to [Conn.Release] it.
func (s *Store) Acquire(ctx context.Context) (*Conn, error) {
	start := time.Now()
	acquireCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	sqlConn, err := retry.WithRetries(acquireCtx, s.retryCfg, func(_ int, _ error) (*sql.Conn, error) {
		conn, err := s.db.Conn(acquireCtx)
		if err != nil {
			return nil, err
		}

		if s.cfg.PrePing {
			if err = conn.PingContext(acquireCtx); err != nil {
				// The connection is broken, don't hand it back to the pool.
				_ = conn.Raw(func(any) error { return driver.ErrBadConn })
				_ = conn.Close()
				return nil, err
			}
		}

		return conn, nil
	})
	if err != nil {
		s.metrics.Incr("db.acquire.error", nil)
		return nil, s.classifyAcquireError(ctx, err)
	}

	s.metrics.Timing("db.acquire", time.Since(start), nil)
	return &Conn{Conn: sqlConn}, nil
}

func (s *Store) classifyAcquireError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		// The caller gave up, not the pool.
		return fmt.Errorf("failed to acquire a connection: %w", ctxErr)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		stats := s.db.Stats()
		if stats.MaxOpenConnections > 0 && stats.InUse >= stats.MaxOpenConnections {
			return fmt.Errorf("%w: all %d connections in use after %s", ErrPoolExhausted, stats.InUse, s.cfg.Timeout)
		}
	}

	return fmt.Errorf("%w: %w", ErrConnectionUnavailable, err)
}

// WithConn runs [fn] on a dedicated connection that is released on every path.
func (s *Store) WithConn(ctx context.Context, fn func(conn *Conn) error) error {
	conn, err := s.Acquire(ctx)
	if err != nil {
		return err
	}

	defer conn.Release()
	return fn(conn)
}

// WithQuerier is [WithConn] for callers that only read.
func (s *Store) WithQuerier(ctx context.Context, fn func(q Querier) error) error {
	return s.WithConn(ctx, func(conn *Conn) error {
		return fn(conn)
	})
}

// Conn is a checked out connection.
type Conn struct {
	*sql.Conn
	once sync.Once
}

// Release hands the connection back to the pool, it is safe to call more than once.
func (c *Conn) Release() {
	c.once.Do(func() {
		if err := c.Conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
			slog.Warn("Failed to release connection", slog.Any("err", err))
		}
	})
}
