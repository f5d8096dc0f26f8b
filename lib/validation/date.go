package validation

import (
	"context"
	"fmt"

	"github.com/artie-labs/ingest/lib/db"
	"github.com/artie-labs/ingest/lib/sql"
	"github.com/artie-labs/ingest/lib/typing"
	"github.com/artie-labs/ingest/lib/typing/columns"
)

const isoDate = "2006-01-02"

const dateValidatorName = "date"

// DateValidator parses values with the dataset's day/month ordering and flags the ones that match no style.
// Examples are reported as `raw -> cleaned` so ambiguous day/month values are easy to spot.
type DateValidator struct {
	aggregator
}

func NewDateValidator(dialect sql.Dialect) DateValidator {
	return DateValidator{aggregator: aggregator{dialect: dialect}}
}

func (DateValidator) Name() string {
	return dateValidatorName
}

func (DateValidator) Applies(spec columns.ColumnSpec) bool {
	return spec.KindDetails.Category() == typing.DateCategory
}

func (d DateValidator) Validate(ctx context.Context, q db.Querier, target Target) ([]Issue, error) {
	var issues []Issue
	for _, spec := range target.Columns {
		if !d.Applies(spec) {
			continue
		}

		quotedCol, err := d.quote(spec)
		if err != nil {
			return nil, err
		}

		cleaned := d.dialect.DateCleanExpression(quotedCol)
		parsed := d.dialect.DateParseExpression(cleaned, target.Options.DateFormat)

		mismatch, err := d.failingIssue(ctx, q, target, spec, TypeMismatch, d.Name(),
			fmt.Sprintf("%s IS NOT NULL AND %s IS NULL", cleaned, parsed),
			fmt.Sprintf("CONCAT(%s, ' -> ', %s)", quotedCol, cleaned),
		)
		if err != nil {
			return nil, err
		}

		if mismatch != nil {
			mismatch.Message = fmt.Sprintf("%d of %d values (%.2f%%) are not valid %s dates", mismatch.FailingCount, target.TotalRows, mismatch.Percentage, target.Options.DateFormat)
			issues = append(issues, *mismatch)
		}

		var lower, upper *string
		if spec.MinDate != nil {
			lower = typing.ToPtr(spec.MinDate.Format(isoDate))
		}
		if spec.MaxDate != nil {
			upper = typing.ToPtr(spec.MaxDate.Format(isoDate))
		}

		// Compare calendar days so a timestamp on the max date is still in range.
		day := fmt.Sprintf("CAST(%s AS DATE)", parsed)
		where, args := rangeCondition(day, lower, upper)
		if where == "" {
			continue
		}

		outOfRange, err := d.failingIssue(ctx, q, target, spec, OutOfRange, d.Name(),
			fmt.Sprintf("%s IS NOT NULL AND (%s)", parsed, where),
			quotedCol, args...,
		)
		if err != nil {
			return nil, err
		}

		if outOfRange != nil {
			outOfRange.Message = fmt.Sprintf("%d values (%.2f%%) are outside of [%s, %s]", outOfRange.FailingCount, outOfRange.Percentage, typing.DefaultValueFromPtr(lower, "-"), typing.DefaultValueFromPtr(upper, "-"))
			issues = append(issues, *outOfRange)
		}
	}

	return issues, nil
}
