package validation

import (
	"context"
	gosql "database/sql"
	"fmt"

	"github.com/artie-labs/ingest/lib/db"
	"github.com/artie-labs/ingest/lib/sql"
	"github.com/artie-labs/ingest/lib/typing"
	"github.com/artie-labs/ingest/lib/typing/columns"
)

const stringValidatorName = "string"

// StringValidator flags values over the column's max length and values that do not match the configured pattern.
// It also reports distinct and blank counts for every string column.
type StringValidator struct {
	aggregator
}

func NewStringValidator(dialect sql.Dialect) StringValidator {
	return StringValidator{aggregator: aggregator{dialect: dialect}}
}

func (StringValidator) Name() string {
	return stringValidatorName
}

func (StringValidator) Applies(spec columns.ColumnSpec) bool {
	return spec.KindDetails.Category() == typing.StringCategory
}

func (s StringValidator) Validate(ctx context.Context, q db.Querier, target Target) ([]Issue, error) {
	var issues []Issue
	for _, spec := range target.Columns {
		if !s.Applies(spec) {
			continue
		}

		quotedCol, err := s.quote(spec)
		if err != nil {
			return nil, err
		}

		if maxLength := spec.MaxLength(); maxLength > 0 {
			tooLong, err := s.failingIssue(ctx, q, target, spec, StringTooLong, s.Name(),
				fmt.Sprintf("%s > ?", s.dialect.LengthExpression(quotedCol)),
				fmt.Sprintf("LEFT(%s, 50)", quotedCol), maxLength,
			)
			if err != nil {
				return nil, err
			}

			if tooLong != nil {
				// Promotion truncates instead of failing, so this never blocks.
				tooLong.Severity = Advisory
				tooLong.Message = fmt.Sprintf("%d values (%.2f%%) are longer than %d characters and will be truncated", tooLong.FailingCount, tooLong.Percentage, maxLength)
				issues = append(issues, *tooLong)
			}
		}

		if spec.Pattern != "" {
			mismatch, err := s.failingIssue(ctx, q, target, spec, PatternMismatch, s.Name(),
				fmt.Sprintf("%s IS NOT NULL AND %s NOT LIKE ?", quotedCol, quotedCol),
				quotedCol, spec.Pattern,
			)
			if err != nil {
				return nil, err
			}

			if mismatch != nil {
				mismatch.Message = fmt.Sprintf("%d values (%.2f%%) do not match %q", mismatch.FailingCount, mismatch.Percentage, spec.Pattern)
				issues = append(issues, *mismatch)
			}
		}

		distribution, err := s.distribution(ctx, q, target, spec, quotedCol)
		if err != nil {
			return nil, err
		}
		issues = append(issues, distribution)
	}

	return issues, nil
}

func (s StringValidator) distribution(ctx context.Context, q db.Querier, target Target, spec columns.ColumnSpec, quotedCol string) (Issue, error) {
	query := s.dialect.BuildDistributionQuery(target.Table, quotedCol, s.dialect.BasicCleanExpression(quotedCol))
	var distinct, blank gosql.NullInt64
	if err := q.QueryRowContext(ctx, query).Scan(&distinct, &blank); err != nil {
		return Issue{}, fmt.Errorf("failed to compute distribution: %w", err)
	}

	return Issue{
		Column:       spec.Name,
		Class:        Distribution,
		FailingCount: blank.Int64,
		Percentage:   Percentage(blank.Int64, target.TotalRows),
		Severity:     Advisory,
		Message:      fmt.Sprintf("%d distinct values, %d blank", distinct.Int64, blank.Int64),
		Validator:    s.Name(),
	}, nil
}
