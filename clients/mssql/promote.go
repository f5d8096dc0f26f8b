package mssql

import (
	"context"
	goSql "database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/artie-labs/ingest/clients/shared"
	"github.com/artie-labs/ingest/lib/db"
	"github.com/artie-labs/ingest/lib/logger"
	"github.com/artie-labs/ingest/lib/sql"
	"github.com/artie-labs/ingest/lib/typing"
	"github.com/artie-labs/ingest/lib/typing/columns"
	"github.com/artie-labs/ingest/lib/validation"
)

var ErrPromotionFailure = errors.New("failed to promote staging table")

const defaultLockTimeout = 60 * time.Second

type PromoteArgs struct {
	Staging     *StagingTable
	Destination sql.TableIdentifier
	// Columns are the configured columns present in staging, absent optional columns are left NULL.
	Columns    []columns.ColumnSpec
	DateFormat typing.DateFormat
	// DatasetKeyColumn scopes the refresh to rows carrying [DatasetKey], nil replaces the whole table.
	DatasetKeyColumn *sql.SafeIdentifier
	DatasetKey       string
	Deduplicate      bool
	LockTimeout      time.Duration
}

type PromoteResult struct {
	Deleted           int64
	Inserted          int64
	DuplicatesRemoved int64
}

// Promote replaces the dataset's rows in the destination with the typed contents of staging, in one transaction.
// Concurrent promotes to the same destination are serialized in process and on the server.
func (s *Store) Promote(ctx context.Context, args PromoteArgs) (PromoteResult, error) {
	if args.Staging == nil {
		return PromoteResult{}, fmt.Errorf("%w: staging table is nil", ErrPromotionFailure)
	}

	destination := args.Destination.FullyQualifiedName()
	unlock := s.locks.Lock(destination)
	defer unlock()

	start := time.Now()
	var result PromoteResult
	err := s.WithConn(ctx, func(conn *db.Conn) error {
		return db.WithTx(ctx, conn, nil, func(tx *goSql.Tx) error {
			if err := s.acquireAppLock(ctx, tx, destination, args.LockTimeout); err != nil {
				return err
			}

			existing, err := shared.DescribeTable(ctx, tx, s.Dialect(), args.Destination)
			if err != nil {
				return err
			}

			insertQuery, insertArgs, err := s.buildPromoteQuery(args, existing)
			if err != nil {
				return err
			}

			deleteQuery, deleteArgs := s.dialect().BuildDeleteQuery(args.Destination, args.DatasetKeyColumn, args.DatasetKey)
			deleted, err := execRowsAffected(ctx, tx, deleteQuery, deleteArgs...)
			if err != nil {
				return fmt.Errorf("failed to delete previous rows: %w", err)
			}

			inserted, err := execRowsAffected(ctx, tx, insertQuery, insertArgs...)
			if err != nil {
				return fmt.Errorf("failed to insert rows: %w", err)
			}

			result = PromoteResult{Deleted: deleted, Inserted: inserted}
			if args.Deduplicate {
				result.DuplicatesRemoved = max(args.Staging.RowCount-inserted, 0)
			}
			return nil
		})
	})

	tags := map[string]string{"table": args.Destination.Table().String(), "success": fmt.Sprint(err == nil)}
	s.metrics.Timing("promote.duration", time.Since(start), tags)
	if err != nil {
		return PromoteResult{}, fmt.Errorf("%w %q: %w", ErrPromotionFailure, destination, err)
	}

	s.metrics.Count("promote.rows", result.Inserted, tags)
	logger.FromContext(ctx).Info("Promoted staging table",
		slog.String("staging", args.Staging.ID.FullyQualifiedName()),
		slog.String("destination", destination),
		slog.Int64("deleted", result.Deleted),
		slog.Int64("inserted", result.Inserted),
		slog.Int64("duplicatesRemoved", result.DuplicatesRemoved),
	)
	return result, nil
}

func (s *Store) acquireAppLock(ctx context.Context, tx *goSql.Tx, resource string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultLockTimeout
	}

	query, args := s.dialect().BuildAppLockQuery(resource, timeout.Milliseconds())
	var status int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&status); err != nil {
		return fmt.Errorf("failed to acquire lock on %q: %w", resource, err)
	}

	// 0 is granted, 1 is granted after waiting, negative values are timeouts, deadlocks and errors.
	if status < 0 {
		return fmt.Errorf("failed to acquire lock on %q, status: %d", resource, status)
	}

	return nil
}

func execRowsAffected(ctx context.Context, tx *goSql.Tx, query string, args ...any) (int64, error) {
	slog.Debug("Executing...", slog.String("query", query))
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *Store) buildPromoteQuery(args PromoteArgs, existing *columns.Columns) (string, []any, error) {
	var cols []sql.SafeIdentifier
	var exprs []string
	var queryArgs []any
	for _, spec := range args.Columns {
		identifier, err := spec.Identifier()
		if err != nil {
			return "", nil, err
		}

		expr, exprArgs := s.selectExpression(spec, s.dialect().QuoteIdentifier(identifier), args.DateFormat, existing)
		cols = append(cols, identifier)
		exprs = append(exprs, expr)
		queryArgs = append(queryArgs, exprArgs...)
	}

	uploadedAt := UploadedAtColumn()
	cols = append(cols, uploadedAt.Name)
	exprs = append(exprs, "SYSUTCDATETIME()")

	if args.DatasetKeyColumn != nil {
		cols = append(cols, *args.DatasetKeyColumn)
		exprs = append(exprs, "?")
		queryArgs = append(queryArgs, args.DatasetKey)
	}

	query := s.dialect().BuildInsertSelectQuery(args.Destination, cols, args.Staging.ID, exprs, args.Deduplicate)
	return query, queryArgs, nil
}

// selectExpression converts a staging text column into the destination type with the same cleaning the
// validators use, so a value that passed validation converts and one that did not becomes NULL.
func (s *Store) selectExpression(spec columns.ColumnSpec, quotedCol string, format typing.DateFormat, existing *columns.Columns) (string, []any) {
	d := s.dialect()
	if expr, args, ok := validation.TypedExpression(d, spec, quotedCol, format); ok {
		return expr, args
	}

	cleaned := d.BasicCleanExpression(quotedCol)
	if width := truncateWidth(spec, existing); width > 0 {
		return fmt.Sprintf("LEFT(%s, %d)", cleaned, width), nil
	}
	return cleaned, nil
}

// truncateWidth is the narrower of the configured and the destination width, zero when neither is bounded.
func truncateWidth(spec columns.ColumnSpec, existing *columns.Columns) int32 {
	width := spec.MaxLength()
	if existing == nil {
		return width
	}

	col, ok := existing.GetColumn(spec.Name)
	if !ok || col.KindDetails.OptionalStringPrecision == nil {
		return width
	}

	if current := *col.KindDetails.OptionalStringPrecision; width == 0 || current < width {
		return current
	}
	return width
}
