package validation

import (
	"context"
	"fmt"
	"strings"

	"github.com/artie-labs/ingest/clients/shared"
	"github.com/artie-labs/ingest/lib/db"
	"github.com/artie-labs/ingest/lib/sql"
	"github.com/artie-labs/ingest/lib/typing"
	"github.com/artie-labs/ingest/lib/typing/columns"
)

const schemaValidatorName = "schema"

// SchemaValidator compares the staging columns with the configured ones and, when the destination exists,
// the configured string widths with what the destination can hold.
type SchemaValidator struct {
	dialect sql.Dialect
}

func NewSchemaValidator(dialect sql.Dialect) SchemaValidator {
	return SchemaValidator{dialect: dialect}
}

func (SchemaValidator) Name() string {
	return schemaValidatorName
}

func (s SchemaValidator) Validate(ctx context.Context, q db.Querier, target Target) ([]Issue, error) {
	stagingCols, err := shared.DescribeTable(ctx, q, s.dialect, target.Table)
	if err != nil {
		return nil, err
	}

	var existing *columns.Columns
	if target.Destination != nil {
		if existing, err = shared.DescribeTable(ctx, q, s.dialect, target.Destination); err != nil {
			return nil, err
		}
	}

	return s.compare(stagingCols.Names(), existing, target), nil
}

func (s SchemaValidator) compare(stagingNames []string, existing *columns.Columns, target Target) []Issue {
	staging := columns.NewColumns(nil)
	for _, name := range stagingNames {
		staging.AddColumn(columns.NewColumn(name, typing.String))
	}

	var issues []Issue
	for _, name := range columns.RequiredNames(target.Columns) {
		if _, ok := staging.GetColumn(name); ok {
			continue
		}

		issues = append(issues, Issue{
			Column:       name,
			Class:        MissingColumn,
			FailingCount: target.TotalRows,
			Percentage:   100,
			Severity:     Blocking,
			Message:      "required column is missing from the upload",
			Validator:    s.Name(),
		})
	}

	specs := columns.SpecsByName(target.Columns)
	for _, name := range stagingNames {
		if _, ok := specs[strings.ToLower(name)]; ok {
			continue
		}

		issues = append(issues, Issue{
			Column:    name,
			Class:     ExtraColumn,
			Severity:  Advisory,
			Message:   "column is not configured and will not be loaded",
			Validator: s.Name(),
		})
	}

	if existing == nil {
		return issues
	}

	for _, spec := range target.Columns {
		if spec.KindDetails.Kind != typing.String.Kind {
			continue
		}

		col, ok := existing.GetColumn(spec.Name)
		if !ok || col.KindDetails.Kind != typing.String.Kind || col.KindDetails.Covers(spec.KindDetails) {
			continue
		}

		issues = append(issues, Issue{
			Column:    spec.Name,
			Class:     SchemaMismatch,
			Severity:  Advisory,
			Message:   fmt.Sprintf("destination column is %s but %s was requested, longer values will be truncated", col.KindDetails.String(), spec.KindDetails.String()),
			Validator: s.Name(),
		})
	}

	return issues
}

// MissingColumns returns the names of columns reported as missing.
func MissingColumns(issues []Issue) map[string]bool {
	out := make(map[string]bool)
	for _, issue := range issues {
		if issue.Class == MissingColumn {
			out[strings.ToLower(issue.Column)] = true
		}
	}
	return out
}

// InferTypeMismatches escalates numeric and date type mismatches at or above [thresholdPercent]
// into a blocking schema mismatch: the column most likely holds something else entirely.
func InferTypeMismatches(issues []Issue, thresholdPercent float64) []Issue {
	var out []Issue
	for _, issue := range issues {
		if issue.Class != TypeMismatch || (issue.Validator != numericValidatorName && issue.Validator != dateValidatorName) {
			continue
		}

		if issue.Percentage < thresholdPercent {
			continue
		}

		out = append(out, Issue{
			Column:       issue.Column,
			Class:        SchemaMismatch,
			FailingCount: issue.FailingCount,
			Percentage:   issue.Percentage,
			Examples:     issue.Examples,
			Severity:     Blocking,
			Message:      fmt.Sprintf("%.2f%% of values are not %s, the column does not look like a %s column", issue.Percentage, issue.Validator, issue.Validator),
			Validator:    schemaValidatorName,
		})
	}
	return out
}
