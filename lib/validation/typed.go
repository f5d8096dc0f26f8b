package validation

import (
	"fmt"

	"github.com/artie-labs/ingest/lib/sql"
	"github.com/artie-labs/ingest/lib/typing"
	"github.com/artie-labs/ingest/lib/typing/columns"
)

// TypedExpression is what a staging column is promoted as, it evaluates to NULL when the raw value does not convert.
// String columns are promoted as cleaned text and return false.
func TypedExpression(dialect sql.Dialect, spec columns.ColumnSpec, quotedCol string, format typing.DateFormat) (string, []any, bool) {
	switch spec.KindDetails.Kind {
	case typing.Integer.Kind, typing.Float.Kind, typing.EDecimal.Kind:
		return dialect.TryCastExpression(dialect.NumericCleanExpression(quotedCol), spec.KindDetails), nil, true
	case typing.Date.Kind:
		return fmt.Sprintf("CAST(%s AS DATE)", dialect.DateParseExpression(dialect.DateCleanExpression(quotedCol), format)), nil, true
	case typing.TimestampNTZ.Kind:
		return dialect.DateParseExpression(dialect.DateCleanExpression(quotedCol), format), nil, true
	case typing.Boolean.Kind:
		trueValues, falseValues := BooleanTokens(spec)
		token := dialect.BooleanTokenExpression(quotedCol)
		args := make([]any, 0, len(trueValues)+len(falseValues))
		for _, value := range trueValues {
			args = append(args, value)
		}
		for _, value := range falseValues {
			args = append(args, value)
		}
		return fmt.Sprintf("CASE WHEN %s IN (%s) THEN 1 WHEN %s IN (%s) THEN 0 END",
			token, sql.Placeholders(len(trueValues)), token, sql.Placeholders(len(falseValues)),
		), args, true
	default:
		return "", nil, false
	}
}
