package dialect

import (
	"fmt"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"

	"github.com/artie-labs/ingest/lib/sql"
	"github.com/artie-labs/ingest/lib/typing"
)

var (
	// Day first, then ISO, then month first as a last resort.
	ukDateStyles = []int{103, 104, 105, 5, 3, 4, 121, 101}
	// Month first, then ISO, then day first as a last resort.
	usDateStyles = []int{101, 102, 110, 121, 103}
)

var _ sql.Dialect = MSSQLDialect{}

type MSSQLDialect struct{}

func (MSSQLDialect) QuoteIdentifier(identifier sql.SafeIdentifier) string {
	// Sanitized identifiers can never contain a closing bracket.
	return "[" + identifier.String() + "]"
}

func (MSSQLDialect) BasicCleanExpression(quotedCol string) string {
	return fmt.Sprintf("NULLIF(LTRIM(RTRIM(%s)), '')", quotedCol)
}

// NumericCleanExpression strips quotes, thousands separators and spaces. A lone '-' is treated as NULL.
func (MSSQLDialect) NumericCleanExpression(quotedCol string) string {
	return fmt.Sprintf(`NULLIF(NULLIF(LTRIM(RTRIM(REPLACE(REPLACE(REPLACE(%s, '"', ''), ',', ''), ' ', ''))), '-'), '')`, quotedCol)
}

// DateCleanExpression turns tabs, line breaks, NBSP and commas into spaces and drops zero-width characters.
func (MSSQLDialect) DateCleanExpression(quotedCol string) string {
	return fmt.Sprintf(
		"NULLIF(NULLIF(LTRIM(RTRIM(REPLACE(REPLACE(REPLACE(TRANSLATE(%s, CHAR(9) + CHAR(10) + CHAR(13) + CHAR(160) + ',', '     '), NCHAR(65279), ''), NCHAR(8203), ''), NCHAR(8288), ''))), '-'), '')",
		quotedCol,
	)
}

func (MSSQLDialect) BooleanTokenExpression(quotedCol string) string {
	return fmt.Sprintf("UPPER(LTRIM(RTRIM(%s)))", quotedCol)
}

func (md MSSQLDialect) TryCastExpression(expr string, kd typing.KindDetails) string {
	return fmt.Sprintf("TRY_CAST(%s AS %s)", expr, md.DataTypeForKind(kd))
}

func (MSSQLDialect) DateParseExpression(expr string, format typing.DateFormat) string {
	styles := ukDateStyles
	if format == typing.US {
		styles = usDateStyles
	}

	parts := make([]string, len(styles))
	for i, style := range styles {
		parts[i] = fmt.Sprintf("TRY_CONVERT(DATETIME2, %s, %d)", expr, style)
	}
	return fmt.Sprintf("COALESCE(%s)", strings.Join(parts, ", "))
}

func (MSSQLDialect) LengthExpression(expr string) string {
	return fmt.Sprintf("LEN(%s)", expr)
}

func (MSSQLDialect) BuildDescribeTableQuery(tableID sql.TableIdentifier) (string, []any) {
	return `
SELECT
    COLUMN_NAME,
    DATA_TYPE,
    CHARACTER_MAXIMUM_LENGTH,
    NUMERIC_PRECISION,
    NUMERIC_SCALE
FROM
    INFORMATION_SCHEMA.COLUMNS
WHERE
    LOWER(TABLE_NAME) = LOWER(?) AND LOWER(TABLE_SCHEMA) = LOWER(?)
ORDER BY ORDINAL_POSITION;`, []any{mssql.VarChar(tableID.Table().String()), mssql.VarChar(tableID.Schema().String())}
}

func (MSSQLDialect) BuildCountQuery(tableID sql.TableIdentifier, where string) string {
	query := "SELECT COUNT_BIG(*) FROM " + tableID.FullyQualifiedName()
	if where != "" {
		query += " WHERE " + where
	}
	return query
}

func (MSSQLDialect) BuildSampleQuery(tableID sql.TableIdentifier, selectExpr string, where string, limit int) string {
	query := fmt.Sprintf("SELECT DISTINCT TOP (%d) %s FROM %s", max(limit, 0), selectExpr, tableID.FullyQualifiedName())
	if where != "" {
		query += " WHERE " + where
	}
	return query
}

func (MSSQLDialect) BuildGroupCountQuery(tableID sql.TableIdentifier, expr string, where string, limit int) string {
	query := fmt.Sprintf("SELECT TOP (%d) %s, COUNT_BIG(*) FROM %s", max(limit, 0), expr, tableID.FullyQualifiedName())
	if where != "" {
		query += " WHERE " + where
	}
	return query + fmt.Sprintf(" GROUP BY %s ORDER BY COUNT_BIG(*) DESC", expr)
}

func (MSSQLDialect) BuildDistributionQuery(tableID sql.TableIdentifier, quotedCol string, cleanExpr string) string {
	return fmt.Sprintf("SELECT COUNT(DISTINCT %s), COUNT_BIG(*) - COUNT(%s) FROM %s", quotedCol, cleanExpr, tableID.FullyQualifiedName())
}
