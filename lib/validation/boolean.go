package validation

import (
	"context"
	gosql "database/sql"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/artie-labs/ingest/lib/db"
	"github.com/artie-labs/ingest/lib/sql"
	"github.com/artie-labs/ingest/lib/typing"
	"github.com/artie-labs/ingest/lib/typing/columns"
)

var (
	DefaultTrueValues  = []string{"1", "TRUE", "Y", "YES"}
	DefaultFalseValues = []string{"0", "FALSE", "N", "NO"}
)

// BooleanTokens returns the uppercased true and false tokens for a column, defaults first and then its aliases.
func BooleanTokens(spec columns.ColumnSpec) ([]string, []string) {
	return mergeTokens(DefaultTrueValues, spec.TrueValues), mergeTokens(DefaultFalseValues, spec.FalseValues)
}

func mergeTokens(defaults, aliases []string) []string {
	out := slices.Clone(defaults)
	for _, alias := range aliases {
		token := strings.ToUpper(strings.TrimSpace(alias))
		if token != "" && !slices.Contains(out, token) {
			out = append(out, token)
		}
	}
	return out
}

const booleanValidatorName = "boolean"

// BooleanValidator flags tokens that are neither a true nor a false value and reports what was observed.
type BooleanValidator struct {
	aggregator
}

func NewBooleanValidator(dialect sql.Dialect) BooleanValidator {
	return BooleanValidator{aggregator: aggregator{dialect: dialect}}
}

func (BooleanValidator) Name() string {
	return booleanValidatorName
}

func (BooleanValidator) Applies(spec columns.ColumnSpec) bool {
	return spec.KindDetails.Category() == typing.BooleanCategory
}

func (b BooleanValidator) Validate(ctx context.Context, q db.Querier, target Target) ([]Issue, error) {
	var issues []Issue
	for _, spec := range target.Columns {
		if !b.Applies(spec) {
			continue
		}

		quotedCol, err := b.quote(spec)
		if err != nil {
			return nil, err
		}

		token := b.dialect.BooleanTokenExpression(quotedCol)
		trueValues, falseValues := BooleanTokens(spec)
		accepted := append(slices.Clone(trueValues), falseValues...)
		args := make([]any, len(accepted))
		for i, value := range accepted {
			args[i] = value
		}

		notBlank := fmt.Sprintf("NULLIF(%s, '') IS NOT NULL", token)
		invalid, err := b.failingIssue(ctx, q, target, spec, TypeMismatch, b.Name(),
			fmt.Sprintf("%s AND %s NOT IN (%s)", notBlank, token, sql.Placeholders(len(accepted))),
			quotedCol, args...,
		)
		if err != nil {
			return nil, err
		}

		if invalid != nil {
			invalid.Message = fmt.Sprintf("%d values (%.2f%%) are not one of %s", invalid.FailingCount, invalid.Percentage, strings.Join(accepted, ", "))
			issues = append(issues, *invalid)
		}

		distribution, err := b.distribution(ctx, q, target, spec, token, notBlank)
		if err != nil {
			return nil, err
		}
		issues = append(issues, distribution)
	}

	return issues, nil
}

func (b BooleanValidator) distribution(ctx context.Context, q db.Querier, target Target, spec columns.ColumnSpec, token, where string) (Issue, error) {
	limit := max(target.Options.MaxExamples, 1)
	rows, err := q.QueryContext(ctx, b.dialect.BuildGroupCountQuery(target.Table, token, where, limit))
	if err != nil {
		return Issue{}, fmt.Errorf("failed to compute distribution: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("Failed to close the row", slog.Any("err", closeErr))
		}
	}()

	var observed []string
	for rows.Next() {
		var value gosql.NullString
		var count int64
		if err = rows.Scan(&value, &count); err != nil {
			return Issue{}, fmt.Errorf("failed to scan distribution: %w", err)
		}
		observed = append(observed, fmt.Sprintf("%s=%d", value.String, count))
	}

	if err = rows.Err(); err != nil {
		return Issue{}, err
	}

	return Issue{
		Column:    spec.Name,
		Class:     Distribution,
		Examples:  observed,
		Severity:  Advisory,
		Message:   fmt.Sprintf("most frequent values: %s", strings.Join(observed, ", ")),
		Validator: b.Name(),
	}, nil
}
