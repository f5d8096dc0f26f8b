package mssql

import (
	"context"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/artie-labs/ingest/clients/mssql/dialect"
	"github.com/artie-labs/ingest/lib/config"
	"github.com/artie-labs/ingest/lib/db"
	"github.com/artie-labs/ingest/lib/sql"
	"github.com/artie-labs/ingest/lib/telemetry/metrics"
	"github.com/artie-labs/ingest/lib/telemetry/metrics/base"
)

// Store is the SQL Server destination: staging tables, schema management, temporary indexes and promotion.
type Store struct {
	*db.Store
	config  config.Config
	metrics base.Client
	locks   *keyedMutex
}

func NewStore(store *db.Store, cfg config.Config, metricsClient base.Client) *Store {
	if metricsClient == nil {
		metricsClient = metrics.NullMetricsProvider{}
	}

	return &Store{
		Store:   store,
		config:  cfg,
		metrics: metricsClient,
		locks:   newKeyedMutex(),
	}
}

// LoadStore opens the connection pool described by [cfg].
func LoadStore(ctx context.Context, cfg config.Config, metricsClient base.Client) (*Store, error) {
	poolCfg := db.PoolConfig{
		Size:        cfg.Pool.Size,
		MaxOverflow: cfg.Pool.MaxOverflow,
		Timeout:     cfg.Pool.Timeout(),
		Recycle:     cfg.Pool.Recycle(),
		PrePing:     cfg.Pool.ShouldPrePing(),
	}

	var opts []db.Option
	if metricsClient != nil {
		opts = append(opts, db.WithMetrics(metricsClient))
	}

	store, err := db.Open(ctx, "mssql", cfg.MSSQL.DSN(), poolCfg, opts...)
	if err != nil {
		return nil, err
	}

	return NewStore(store, cfg, metricsClient), nil
}

func (s *Store) Dialect() sql.Dialect {
	return s.dialect()
}

func (s *Store) dialect() dialect.MSSQLDialect {
	return dialect.MSSQLDialect{}
}
