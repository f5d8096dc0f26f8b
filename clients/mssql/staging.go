package mssql

import (
	"context"
	goSql "database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	mssql "github.com/microsoft/go-mssqldb"

	"github.com/artie-labs/ingest/clients/shared"
	"github.com/artie-labs/ingest/lib/batch"
	"github.com/artie-labs/ingest/lib/config/constants"
	"github.com/artie-labs/ingest/lib/db"
	"github.com/artie-labs/ingest/lib/logger"
	"github.com/artie-labs/ingest/lib/sql"
	"github.com/artie-labs/ingest/lib/tabular"
	"github.com/artie-labs/ingest/lib/typing"
)

var ErrLoadFailure = errors.New("failed to load staging table")

// LoadFailureError points at the chunk that could not be loaded, earlier chunks are already committed.
type LoadFailureError struct {
	Table string
	Chunk int
	Err   error
}

func (e *LoadFailureError) Error() string {
	return fmt.Sprintf("%s: %s, chunk %d: %v", ErrLoadFailure, e.Table, e.Chunk, e.Err)
}

func (e *LoadFailureError) Unwrap() []error {
	return []error{ErrLoadFailure, e.Err}
}

const (
	// Index keys are capped at 1700 bytes, NVARCHAR(850) is the widest column we can index.
	IndexableWidth  = 850
	maxBoundedWidth = 4000
	unboundedWidth  = 0
)

// StagingColumn is a text column of a staging table, a zero width means NVARCHAR(MAX).
type StagingColumn struct {
	Name  sql.SafeIdentifier
	Width int
}

func (s StagingColumn) kind() typing.KindDetails {
	if s.Width == unboundedWidth {
		return typing.String
	}
	return typing.BuildStringKind(int32(s.Width))
}

type StagingTable struct {
	ID        sql.TableIdentifier
	Columns   []StagingColumn
	RowCount  int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (s StagingTable) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		names[i] = col.Name.String()
	}
	return names
}

func stagingWidth(longest int) int {
	switch {
	case longest <= IndexableWidth:
		return IndexableWidth
	case longest <= maxBoundedWidth:
		return maxBoundedWidth
	default:
		return unboundedWidth
	}
}

// StagingColumnsForFrame sizes a staging column for every frame column from the longest value it holds.
func StagingColumnsForFrame(frame *tabular.Frame) ([]StagingColumn, error) {
	if err := frame.Validate(); err != nil {
		return nil, err
	}

	longest := make([]int, len(frame.Columns))
	for _, row := range frame.Rows {
		for j, value := range row {
			if text, ok := tabular.FormatValue(value); ok {
				longest[j] = max(longest[j], utf8.RuneCountInString(text))
			}
		}
	}

	cols := make([]StagingColumn, len(frame.Columns))
	for i, name := range frame.Columns {
		identifier, err := sql.Sanitize(name)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
		cols[i] = StagingColumn{Name: identifier, Width: stagingWidth(longest[i])}
	}

	return cols, nil
}

// CreateStaging creates an empty staging table for [tableID] named with [suffix] and its expiry.
// A leftover table with the same name is dropped first.
func (s *Store) CreateStaging(ctx context.Context, tableID sql.TableIdentifier, suffix string, cols []StagingColumn) (*StagingTable, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("staging table needs at least one column")
	}

	now := time.Now().UTC()
	expiresAt := now.Add(s.config.Staging.Retention())
	if s.config.Staging.Retention() <= 0 {
		expiresAt = now.Add(constants.DefaultStagingTTL)
	}

	stagingID, err := shared.StagingTableID(tableID, suffix, expiresAt)
	if err != nil {
		return nil, err
	}

	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = s.dialect().BuildColumnDefinition(col.Name, s.dialect().DataTypeForKind(col.kind()), true)
	}

	err = s.WithConn(ctx, func(conn *db.Conn) error {
		_, err := db.ExecContextStatements(ctx, conn, []string{
			s.dialect().BuildDropTableQuery(stagingID),
			s.dialect().BuildCreateTableQuery(stagingID, parts),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create staging table %q: %w", stagingID.FullyQualifiedName(), err)
	}

	logger.FromContext(ctx).Debug("Created staging table",
		slog.String("staging", stagingID.FullyQualifiedName()),
		slog.Time("expiresAt", expiresAt),
	)

	return &StagingTable{ID: stagingID, Columns: cols, CreatedAt: now, ExpiresAt: expiresAt}, nil
}

func (s *Store) chunkSize() int {
	if s.config.Staging.ChunkSize <= 0 {
		return constants.DefaultChunkSize
	}
	return s.config.Staging.ChunkSize
}

// BulkInsert copies every row of [frame] into [staging] as text, one transaction per chunk.
func (s *Store) BulkInsert(ctx context.Context, staging *StagingTable, frame *tabular.Frame) (int64, error) {
	if err := frame.Validate(); err != nil {
		return 0, err
	}

	if len(frame.Columns) != len(staging.Columns) {
		return 0, fmt.Errorf("frame has %d columns, staging table has %d", len(frame.Columns), len(staging.Columns))
	}

	start := time.Now()
	size := s.chunkSize()
	log := logger.FromContext(ctx).With(slog.String("staging", staging.ID.FullyQualifiedName()))
	rows := make([]int, frame.Len())
	for i := range rows {
		rows[i] = i
	}

	err := batch.ByCount(rows, size, func(index int, chunk []int) error {
		loaded, err := s.copyChunk(ctx, staging, frame, chunk)
		if err != nil {
			return &LoadFailureError{Table: staging.ID.FullyQualifiedName(), Chunk: index, Err: err}
		}

		staging.RowCount += loaded
		log.Debug("Loaded chunk", slog.Int("chunk", index+1), slog.Int("chunks", batch.Count(len(rows), size)))
		return nil
	})

	tags := map[string]string{"table": staging.ID.Table().String()}
	s.metrics.Timing("staging.bulk_insert", time.Since(start), tags)
	s.metrics.Count("staging.rows", staging.RowCount, tags)
	return staging.RowCount, err
}

func (s *Store) copyChunk(ctx context.Context, staging *StagingTable, frame *tabular.Frame, chunk []int) (int64, error) {
	var loaded int64
	err := s.WithConn(ctx, func(conn *db.Conn) error {
		return db.WithTx(ctx, conn, nil, func(tx *goSql.Tx) error {
			stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(staging.ID.FullyQualifiedName(), mssql.BulkOptions{}, staging.ColumnNames()...))
			if err != nil {
				return fmt.Errorf("failed to prepare bulk insert: %w", err)
			}

			defer stmt.Close()

			for _, i := range chunk {
				if _, err = stmt.ExecContext(ctx, frame.TextRow(i)...); err != nil {
					return fmt.Errorf("failed to copy row %d: %w", i, err)
				}
			}

			results, err := stmt.ExecContext(ctx)
			if err != nil {
				return fmt.Errorf("failed to finalize bulk insert: %w", err)
			}

			rowsLoaded, err := results.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}

			if expectedRows := int64(len(chunk)); rowsLoaded != expectedRows {
				return fmt.Errorf("expected %d rows to be loaded, but got %d", expectedRows, rowsLoaded)
			}

			loaded = rowsLoaded
			return nil
		})
	})
	return loaded, err
}

// DropStaging drops a staging table, tables without the staging marker in their name are refused.
func (s *Store) DropStaging(ctx context.Context, tableID sql.TableIdentifier) error {
	if !shared.IsStagingTable(tableID.Table().String()) {
		return fmt.Errorf("table %q is not a staging table, refusing to drop it", tableID.FullyQualifiedName())
	}

	if err := s.exec(ctx, s.dialect().BuildDropTableQuery(tableID)); err != nil {
		return fmt.Errorf("failed to drop staging table %q: %w", tableID.FullyQualifiedName(), err)
	}

	logger.FromContext(ctx).Debug("Dropped staging table", slog.String("staging", tableID.FullyQualifiedName()))
	return nil
}
