package shared

import (
	"context"
	gosql "database/sql"
	"fmt"
	"log/slog"

	"github.com/artie-labs/ingest/lib/db"
	"github.com/artie-labs/ingest/lib/sql"
	"github.com/artie-labs/ingest/lib/typing"
	"github.com/artie-labs/ingest/lib/typing/columns"
)

// DescribeTable reads the columns of [tableID] from the catalog, an empty result means the table does not exist.
// Columns with a type we cannot map are kept as [typing.Invalid] so callers can report them.
func DescribeTable(ctx context.Context, q db.Querier, dialect sql.Dialect, tableID sql.TableIdentifier) (*columns.Columns, error) {
	query, args := dialect.BuildDescribeTableQuery(tableID)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to describe table %q: %w", tableID.FullyQualifiedName(), err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("Failed to close the row", slog.Any("err", closeErr))
		}
	}()

	cols := &columns.Columns{}
	for rows.Next() {
		var name, dataType string
		var charMaxLength, precision, scale gosql.NullInt64
		if err = rows.Scan(&name, &dataType, &charMaxLength, &precision, &scale); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}

		kindDetails, err := dialect.KindForDataType(dataType, nullableInt(charMaxLength), nullableInt(precision), nullableInt(scale))
		if err != nil {
			slog.Debug("Column has an unmapped type",
				slog.String("table", tableID.FullyQualifiedName()),
				slog.String("column", name),
				slog.Any("err", err),
			)
			kindDetails = typing.Invalid
		}

		cols.AddColumn(columns.NewColumn(name, kindDetails))
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate over columns: %w", err)
	}

	return cols, nil
}

func nullableInt(value gosql.NullInt64) *int64 {
	if !value.Valid {
		return nil
	}
	return &value.Int64
}
