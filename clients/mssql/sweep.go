package mssql

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/artie-labs/ingest/clients/mssql/dialect"
	"github.com/artie-labs/ingest/clients/shared"
	"github.com/artie-labs/ingest/lib/config/constants"
	"github.com/artie-labs/ingest/lib/db"
	"github.com/artie-labs/ingest/lib/logger"
	"github.com/artie-labs/ingest/lib/sql"
)

// destinationTables returns every schema a configured dataset lands in, with the lowercased destination tables it holds.
func (s *Store) destinationTables() ([]sql.SafeIdentifier, map[string]map[string]bool, error) {
	var schemas []sql.SafeIdentifier
	tables := make(map[string]map[string]bool)
	for _, dataset := range s.config.Datasets {
		schema, table, err := dataset.Identifiers()
		if err != nil {
			return nil, nil, err
		}

		key := strings.ToLower(schema.String())
		if _, ok := tables[key]; !ok {
			schemas = append(schemas, schema)
			tables[key] = make(map[string]bool)
		}
		tables[key][strings.ToLower(table.String())] = true
	}
	return schemas, tables, nil
}

func (s *Store) listStagingTables(ctx context.Context, schema sql.SafeIdentifier) ([]string, error) {
	var names []string
	err := s.WithQuerier(ctx, func(q db.Querier) error {
		query, args := s.dialect().BuildSweepQuery(schema, constants.StagingMarker)
		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}

		defer rows.Close()
		for rows.Next() {
			var name string
			if err = rows.Scan(&name); err != nil {
				return err
			}
			names = append(names, name)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list staging tables in %q: %w", schema.String(), err)
	}
	return names, nil
}

// SweepStaging drops staging tables in every configured schema whose expiry is before [now].
// It returns how many tables were dropped.
func (s *Store) SweepStaging(ctx context.Context, now time.Time) (int, error) {
	schemas, destinations, err := s.destinationTables()
	if err != nil {
		return 0, err
	}

	log := logger.FromContext(ctx)
	log.Info("Looking for expired staging tables...", slog.Int("schemas", len(schemas)))

	var dropped int
	for _, schema := range schemas {
		names, err := s.listStagingTables(ctx, schema)
		if err != nil {
			return dropped, err
		}

		for _, name := range names {
			if !shared.ShouldSweep(name, now) {
				continue
			}

			if destinations[strings.ToLower(schema.String())][strings.ToLower(name)] {
				log.Warn("Skipping a configured destination table that looks like staging", slog.String("schema", schema.String()), slog.String("table", name))
				continue
			}

			table, err := sql.Sanitize(name)
			if err != nil {
				log.Warn("Skipping staging table with an unsafe name", slog.String("schema", schema.String()), slog.Any("err", err))
				continue
			}

			if err = s.DropStaging(ctx, dialect.NewTableIdentifier(schema, table)); err != nil {
				return dropped, err
			}
			dropped++
		}
	}

	s.metrics.Count("staging.swept", int64(dropped), nil)
	log.Info("Finished sweeping staging tables", slog.Int("dropped", dropped))
	return dropped, nil
}
