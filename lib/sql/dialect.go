package sql

import (
	"github.com/artie-labs/ingest/lib/typing"
)

type TableIdentifier interface {
	Schema() SafeIdentifier
	Table() SafeIdentifier
	WithTable(table SafeIdentifier) TableIdentifier
	FullyQualifiedName() string
}

type Dialect interface {
	QuoteIdentifier(identifier SafeIdentifier) string
	DataTypeForKind(kd typing.KindDetails) string
	KindForDataType(dataType string, charMaxLength, precision, scale *int64) (typing.KindDetails, error)

	// Cleaning expressions are shared by validation and promotion so both agree on what a value means.
	BasicCleanExpression(quotedCol string) string
	NumericCleanExpression(quotedCol string) string
	DateCleanExpression(quotedCol string) string
	BooleanTokenExpression(quotedCol string) string

	// TryCastExpression returns an expression that evaluates to NULL when [expr] cannot be converted to [kd].
	TryCastExpression(expr string, kd typing.KindDetails) string
	// DateParseExpression tries every accepted style for [format] and evaluates to NULL when none match.
	DateParseExpression(expr string, format typing.DateFormat) string
	LengthExpression(expr string) string

	BuildDescribeTableQuery(tableID TableIdentifier) (string, []any)
	BuildCountQuery(tableID TableIdentifier, where string) string
	BuildSampleQuery(tableID TableIdentifier, selectExpr string, where string, limit int) string
	// BuildGroupCountQuery returns the [limit] most frequent values of [expr] with their counts.
	BuildGroupCountQuery(tableID TableIdentifier, expr string, where string, limit int) string
	// BuildDistributionQuery returns the distinct count of [quotedCol] and how many rows have a NULL [cleanExpr].
	BuildDistributionQuery(tableID TableIdentifier, quotedCol string, cleanExpr string) string
}
