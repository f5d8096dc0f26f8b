package mssql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/artie-labs/ingest/clients/shared"
	"github.com/artie-labs/ingest/lib/config/constants"
	"github.com/artie-labs/ingest/lib/db"
	"github.com/artie-labs/ingest/lib/logger"
	"github.com/artie-labs/ingest/lib/sql"
	"github.com/artie-labs/ingest/lib/typing"
	"github.com/artie-labs/ingest/lib/typing/columns"
)

var ErrSchemaConflict = errors.New("schema conflict")

// SchemaConflictError is returned when an existing destination column cannot hold the requested type.
type SchemaConflictError struct {
	Table     string
	Column    string
	Existing  typing.KindDetails
	Requested typing.KindDetails
}

func (e *SchemaConflictError) Error() string {
	return fmt.Sprintf("%s: column %q in %s is %s, cannot load %s into it", ErrSchemaConflict, e.Column, e.Table, e.Existing.String(), e.Requested.String())
}

func (e *SchemaConflictError) Unwrap() error {
	return ErrSchemaConflict
}

// DestinationColumn is a column the destination table has to carry.
type DestinationColumn struct {
	Name     sql.SafeIdentifier
	Kind     typing.KindDetails
	Nullable bool
}

// UploadedAtColumn is stamped with the promote time on every row.
func UploadedAtColumn() DestinationColumn {
	return DestinationColumn{Name: sql.MustSanitize(constants.UploadedAtColumn), Kind: typing.TimestampNTZ, Nullable: true}
}

// DatasetKeyColumn holds the dataset key that scopes a full refresh.
func DatasetKeyColumn(name sql.SafeIdentifier) DestinationColumn {
	return DestinationColumn{Name: name, Kind: typing.BuildStringKind(255), Nullable: true}
}

func destinationColumns(specs []columns.ColumnSpec, extra []DestinationColumn) ([]DestinationColumn, error) {
	out := make([]DestinationColumn, 0, len(specs)+len(extra))
	for _, spec := range specs {
		name, err := spec.Identifier()
		if err != nil {
			return nil, err
		}
		out = append(out, DestinationColumn{Name: name, Kind: spec.KindDetails, Nullable: spec.Nullable})
	}
	return append(out, extra...), nil
}

// EnsureSchema creates [schema] when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context, schema sql.SafeIdentifier) error {
	return s.WithConn(ctx, func(conn *db.Conn) error {
		query, args := s.dialect().BuildSchemaExistsQuery(schema)
		var count int
		if err := conn.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
			return fmt.Errorf("failed to check if schema %q exists: %w", schema.String(), err)
		}

		if count > 0 {
			return nil
		}

		logger.FromContext(ctx).Info("Creating schema", slog.String("schema", schema.String()))
		if _, err := conn.ExecContext(ctx, s.dialect().BuildCreateSchemaQuery(schema)); err != nil {
			return fmt.Errorf("failed to create schema %q: %w", schema.String(), err)
		}

		return nil
	})
}

// DescribeTable returns the columns of [tableID], an empty result means the table does not exist.
func (s *Store) DescribeTable(ctx context.Context, tableID sql.TableIdentifier) (*columns.Columns, error) {
	var cols *columns.Columns
	err := s.WithQuerier(ctx, func(q db.Querier) error {
		var err error
		cols, err = shared.DescribeTable(ctx, q, s.Dialect(), tableID)
		return err
	})
	return cols, err
}

// EnsureTable creates the destination table or adds the columns it is missing. Columns are never dropped
// or altered: a column that cannot hold the requested type is a [*SchemaConflictError]. Narrower strings
// are tolerated since promotion truncates to the destination width.
func (s *Store) EnsureTable(ctx context.Context, tableID sql.TableIdentifier, specs []columns.ColumnSpec, extra ...DestinationColumn) (bool, error) {
	wanted, err := destinationColumns(specs, extra)
	if err != nil {
		return false, err
	}

	existing, err := s.DescribeTable(ctx, tableID)
	if err != nil {
		return false, err
	}

	log := logger.FromContext(ctx).With(slog.String("table", tableID.FullyQualifiedName()))
	if len(existing.GetColumns()) == 0 {
		parts := make([]string, len(wanted))
		for i, col := range wanted {
			parts[i] = s.dialect().BuildColumnDefinition(col.Name, s.dialect().DataTypeForKind(col.Kind), col.Nullable)
		}

		log.Info("Creating destination table", slog.Int("columns", len(wanted)))
		if err = s.exec(ctx, s.dialect().BuildCreateTableQuery(tableID, parts)); err != nil {
			return false, fmt.Errorf("failed to create table %q: %w", tableID.FullyQualifiedName(), err)
		}
		return true, nil
	}

	requested := make([]columns.Column, len(wanted))
	for i, col := range wanted {
		requested[i] = columns.NewColumn(col.Name.String(), col.Kind)
	}

	diff := columns.Diff(requested, existing.GetColumns())
	for _, conflict := range diff.Conflicts {
		if err = checkCompatible(tableID, conflict); err != nil {
			return false, err
		}
	}

	if len(diff.SourceColumnsMissing) > 0 {
		log.Debug("Destination has columns that were not requested, leaving them", slog.Any("columns", columns.NewColumns(diff.SourceColumnsMissing).Names()))
	}

	var statements []string
	for _, col := range diff.TargetColumnsMissing {
		// Existing rows have no value, so added columns are always nullable.
		definition := s.dialect().BuildColumnDefinition(sql.MustSanitize(col.Name()), s.dialect().DataTypeForKind(col.KindDetails), true)
		statements = append(statements, s.dialect().BuildAddColumnQuery(tableID, definition))
	}

	if len(statements) == 0 {
		return false, nil
	}

	log.Info("Adding columns to destination table", slog.Int("columns", len(statements)))
	err = s.WithConn(ctx, func(conn *db.Conn) error {
		_, err := db.ExecContextStatements(ctx, conn, statements)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to add columns to %q: %w", tableID.FullyQualifiedName(), err)
	}

	return false, nil
}

// checkCompatible lets narrower strings through, every other conflict is a [*SchemaConflictError].
func checkCompatible(tableID sql.TableIdentifier, conflict columns.Conflict) error {
	existing, requested := conflict.Existing.KindDetails, conflict.Requested.KindDetails
	if existing.Kind == typing.String.Kind && requested.Kind == typing.String.Kind {
		return nil
	}

	return &SchemaConflictError{
		Table:     tableID.FullyQualifiedName(),
		Column:    conflict.Existing.Name(),
		Existing:  existing,
		Requested: requested,
	}
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	return s.WithConn(ctx, func(conn *db.Conn) error {
		_, err := conn.ExecContext(ctx, query, args...)
		return err
	})
}
