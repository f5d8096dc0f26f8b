package validation

import (
	"context"
	"fmt"

	"github.com/artie-labs/ingest/lib/db"
	"github.com/artie-labs/ingest/lib/sql"
	"github.com/artie-labs/ingest/lib/typing/columns"
)

const requiredValidatorName = "required"

// RequiredValidator flags values of non-nullable columns that would be NULL once promoted: blanks and values that
// do not convert to the column's type. Either would fail the insert, so they always block.
type RequiredValidator struct {
	aggregator
}

func NewRequiredValidator(dialect sql.Dialect) RequiredValidator {
	return RequiredValidator{aggregator: aggregator{dialect: dialect}}
}

func (RequiredValidator) Name() string {
	return requiredValidatorName
}

func (RequiredValidator) Applies(spec columns.ColumnSpec) bool {
	return !spec.Nullable
}

func (r RequiredValidator) Validate(ctx context.Context, q db.Querier, target Target) ([]Issue, error) {
	var issues []Issue
	for _, spec := range target.Columns {
		if !r.Applies(spec) {
			continue
		}

		quotedCol, err := r.quote(spec)
		if err != nil {
			return nil, err
		}

		empty, err := r.count(ctx, q, target.Table, fmt.Sprintf("%s IS NULL", r.dialect.BasicCleanExpression(quotedCol)))
		if err != nil {
			return nil, err
		}

		if empty > 0 {
			percentage := Percentage(empty, target.TotalRows)
			issues = append(issues, Issue{
				Column:       spec.Name,
				Class:        EmptyRequired,
				FailingCount: empty,
				Percentage:   percentage,
				Severity:     Blocking,
				Message:      fmt.Sprintf("%d rows (%.2f%%) are empty but the column is not nullable", empty, percentage),
				Validator:    r.Name(),
			})
		}

		typed, args, ok := TypedExpression(r.dialect, spec, quotedCol, target.Options.DateFormat)
		if !ok {
			continue
		}

		unconvertible, err := r.failingIssue(ctx, q, target, spec, EmptyRequired, r.Name(),
			fmt.Sprintf("%s IS NOT NULL AND %s IS NULL", r.dialect.BasicCleanExpression(quotedCol), typed),
			quotedCol, args...,
		)
		if err != nil {
			return nil, err
		}

		if unconvertible != nil {
			unconvertible.Severity = Blocking
			unconvertible.Message = fmt.Sprintf("%d rows (%.2f%%) are not a valid %s and would be NULL but the column is not nullable",
				unconvertible.FailingCount, unconvertible.Percentage, spec.KindDetails.String())
			issues = append(issues, *unconvertible)
		}
	}

	return issues, nil
}
