package validation

import (
	"context"
	gosql "database/sql"
	"fmt"
	"log/slog"

	"github.com/artie-labs/ingest/lib/config/constants"
	"github.com/artie-labs/ingest/lib/db"
	"github.com/artie-labs/ingest/lib/sql"
	"github.com/artie-labs/ingest/lib/stringutil"
	"github.com/artie-labs/ingest/lib/typing"
	"github.com/artie-labs/ingest/lib/typing/columns"
)

type Options struct {
	BlockingThresholdPercent float64
	// SchemaMismatchThresholdPercent is the failure rate from which a numeric or date column is reported as the wrong type.
	SchemaMismatchThresholdPercent float64
	MaxExamples                    int
	DateFormat                     typing.DateFormat
}

// schemaMismatchThreshold falls back to the default when unset, zero would flag every mismatch.
func (o Options) schemaMismatchThreshold() float64 {
	if o.SchemaMismatchThresholdPercent <= 0 {
		return constants.DefaultSchemaMismatchThresholdPercent
	}
	return o.SchemaMismatchThresholdPercent
}

func DefaultOptions() Options {
	return Options{
		BlockingThresholdPercent:       constants.DefaultBlockingThresholdPercent,
		SchemaMismatchThresholdPercent: constants.DefaultSchemaMismatchThresholdPercent,
		MaxExamples:                    constants.DefaultMaxExamples,
		DateFormat:                     typing.UK,
	}
}

// Target is what a validator checks: a staging table and the specs of the columns it should look at.
type Target struct {
	Table       sql.TableIdentifier
	Destination sql.TableIdentifier
	Columns     []columns.ColumnSpec
	TotalRows   int64
	Options     Options
}

func (t Target) withColumn(spec columns.ColumnSpec) Target {
	t.Columns = []columns.ColumnSpec{spec}
	return t
}

type Validator interface {
	Name() string
	// Applies reports whether the validator has anything to check on this column.
	Applies(spec columns.ColumnSpec) bool
	// Validate only ever runs aggregations, rows are not pulled into memory.
	Validate(ctx context.Context, q db.Querier, target Target) ([]Issue, error)
}

// aggregator holds the query helpers shared by every validator.
type aggregator struct {
	dialect sql.Dialect
}

func (a aggregator) quote(spec columns.ColumnSpec) (string, error) {
	identifier, err := spec.Identifier()
	if err != nil {
		return "", err
	}
	return a.dialect.QuoteIdentifier(identifier), nil
}

func (a aggregator) count(ctx context.Context, q db.Querier, tableID sql.TableIdentifier, where string, args ...any) (int64, error) {
	query := a.dialect.BuildCountQuery(tableID, where)
	var count int64
	if err := q.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to run count query %q: %w", query, err)
	}
	return count, nil
}

// examples fetches up to [limit] distinct values of [selectExpr] for rows matching [where], each cut to [constants.MaxExampleLength].
func (a aggregator) examples(ctx context.Context, q db.Querier, tableID sql.TableIdentifier, selectExpr, where string, limit int, args ...any) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := a.dialect.BuildSampleQuery(tableID, selectExpr, where, limit)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch examples: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("Failed to close the row", slog.Any("err", closeErr))
		}
	}()

	var out []string
	for rows.Next() {
		var value gosql.NullString
		if err = rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("failed to scan example: %w", err)
		}

		if value.Valid {
			out = append(out, stringutil.Truncate(value.String, constants.MaxExampleLength))
		} else {
			out = append(out, "NULL")
		}
	}

	return out, rows.Err()
}

// failingIssue counts rows matching [where] and turns them into an issue when there are any.
func (a aggregator) failingIssue(ctx context.Context, q db.Querier, target Target, spec columns.ColumnSpec, class Class, validator, where, exampleExpr string, args ...any) (*Issue, error) {
	failing, err := a.count(ctx, q, target.Table, where, args...)
	if err != nil {
		return nil, err
	}

	if failing == 0 {
		return nil, nil
	}

	examples, err := a.examples(ctx, q, target.Table, exampleExpr, where, target.Options.MaxExamples, args...)
	if err != nil {
		return nil, err
	}

	percentage := Percentage(failing, target.TotalRows)
	return &Issue{
		Column:       spec.Name,
		Class:        class,
		FailingCount: failing,
		Percentage:   percentage,
		Examples:     examples,
		Severity:     SeverityFor(percentage, target.Options.BlockingThresholdPercent),
		Validator:    validator,
	}, nil
}
