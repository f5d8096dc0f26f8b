package validation

import (
	"context"
	"fmt"
	"strings"

	"github.com/artie-labs/ingest/lib/db"
	"github.com/artie-labs/ingest/lib/sql"
	"github.com/artie-labs/ingest/lib/typing"
	"github.com/artie-labs/ingest/lib/typing/columns"
)

const numericValidatorName = "numeric"

// NumericValidator flags values that do not cast to the column's numeric type once thousands separators,
// quotes and spaces are stripped, and values outside of the configured range.
type NumericValidator struct {
	aggregator
}

func NewNumericValidator(dialect sql.Dialect) NumericValidator {
	return NumericValidator{aggregator: aggregator{dialect: dialect}}
}

func (NumericValidator) Name() string {
	return numericValidatorName
}

func (NumericValidator) Applies(spec columns.ColumnSpec) bool {
	return spec.KindDetails.Category() == typing.NumericCategory
}

func (n NumericValidator) Validate(ctx context.Context, q db.Querier, target Target) ([]Issue, error) {
	var issues []Issue
	for _, spec := range target.Columns {
		if !n.Applies(spec) {
			continue
		}

		quotedCol, err := n.quote(spec)
		if err != nil {
			return nil, err
		}

		cleaned := n.dialect.NumericCleanExpression(quotedCol)
		casted := n.dialect.TryCastExpression(cleaned, spec.KindDetails)

		mismatch, err := n.failingIssue(ctx, q, target, spec, TypeMismatch, n.Name(),
			fmt.Sprintf("%s IS NOT NULL AND %s IS NULL", cleaned, casted),
			quotedCol,
		)
		if err != nil {
			return nil, err
		}

		if mismatch != nil {
			mismatch.Message = fmt.Sprintf("%d of %d values (%.2f%%) are not a valid %s", mismatch.FailingCount, target.TotalRows, mismatch.Percentage, spec.KindDetails.String())
			issues = append(issues, *mismatch)
		}

		where, args := rangeCondition(casted, spec.Min, spec.Max)
		if where == "" {
			continue
		}

		outOfRange, err := n.failingIssue(ctx, q, target, spec, OutOfRange, n.Name(),
			fmt.Sprintf("%s IS NOT NULL AND (%s)", casted, where),
			quotedCol, args...,
		)
		if err != nil {
			return nil, err
		}

		if outOfRange != nil {
			outOfRange.Message = fmt.Sprintf("%d values (%.2f%%) are outside of %s", outOfRange.FailingCount, outOfRange.Percentage, describeRange(spec.Min, spec.Max))
			issues = append(issues, *outOfRange)
		}
	}

	return issues, nil
}

// rangeCondition builds `expr < ? OR expr > ?` for the bounds that are set, the bounds are bound parameters.
func rangeCondition[T any](expr string, lower, upper *T) (string, []any) {
	var parts []string
	var args []any
	if lower != nil {
		parts = append(parts, expr+" < ?")
		args = append(args, *lower)
	}
	if upper != nil {
		parts = append(parts, expr+" > ?")
		args = append(args, *upper)
	}
	return strings.Join(parts, " OR "), args
}

func describeRange(lower, upper *float64) string {
	switch {
	case lower != nil && upper != nil:
		return fmt.Sprintf("[%v, %v]", *lower, *upper)
	case lower != nil:
		return fmt.Sprintf("[%v, +inf)", *lower)
	default:
		return fmt.Sprintf("(-inf, %v]", *upper)
	}
}
