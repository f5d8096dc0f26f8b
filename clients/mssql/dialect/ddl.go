package dialect

import (
	"fmt"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"

	"github.com/artie-labs/ingest/lib/sql"
)

func (MSSQLDialect) BuildSchemaExistsQuery(schema sql.SafeIdentifier) (string, []any) {
	return "SELECT COUNT(*) FROM sys.schemas WHERE name = ?", []any{mssql.VarChar(schema.String())}
}

func (md MSSQLDialect) BuildCreateSchemaQuery(schema sql.SafeIdentifier) string {
	return "CREATE SCHEMA " + md.QuoteIdentifier(schema)
}

// BuildColumnDefinition renders `[name] TYPE NULL`.
func (md MSSQLDialect) BuildColumnDefinition(column sql.SafeIdentifier, dataType string, nullable bool) string {
	nullability := "NULL"
	if !nullable {
		nullability = "NOT NULL"
	}
	return fmt.Sprintf("%s %s %s", md.QuoteIdentifier(column), dataType, nullability)
}

func (MSSQLDialect) BuildCreateTableQuery(tableID sql.TableIdentifier, colSQLParts []string) string {
	// SQL Server doesn't support CREATE TABLE IF NOT EXISTS.
	return fmt.Sprintf("CREATE TABLE %s (%s)", tableID.FullyQualifiedName(), strings.Join(colSQLParts, ", "))
}

func (MSSQLDialect) BuildAddColumnQuery(tableID sql.TableIdentifier, sqlPart string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD %s", tableID.FullyQualifiedName(), sqlPart)
}

func (MSSQLDialect) BuildDropTableQuery(tableID sql.TableIdentifier) string {
	return "DROP TABLE IF EXISTS " + tableID.FullyQualifiedName()
}

func (md MSSQLDialect) BuildCreateIndexQuery(index sql.SafeIdentifier, tableID sql.TableIdentifier, column sql.SafeIdentifier) string {
	quotedCol := md.QuoteIdentifier(column)
	return fmt.Sprintf(
		"CREATE NONCLUSTERED INDEX %s ON %s (%s) WHERE %s IS NOT NULL",
		md.QuoteIdentifier(index), tableID.FullyQualifiedName(), quotedCol, quotedCol,
	)
}

func (md MSSQLDialect) BuildDropIndexQuery(index sql.SafeIdentifier, tableID sql.TableIdentifier) string {
	return fmt.Sprintf("DROP INDEX IF EXISTS %s ON %s", md.QuoteIdentifier(index), tableID.FullyQualifiedName())
}

// BuildSweepQuery lists every table in [schema] carrying the staging marker.
func (MSSQLDialect) BuildSweepQuery(schema sql.SafeIdentifier, marker string) (string, []any) {
	return `
SELECT
    TABLE_NAME
FROM
    INFORMATION_SCHEMA.TABLES
WHERE
    LOWER(TABLE_SCHEMA) = LOWER(?) AND TABLE_TYPE = 'BASE TABLE' AND TABLE_NAME LIKE ?`, []any{mssql.VarChar(schema.String()), mssql.VarChar("%[_]" + marker + "[_]%")}
}

// BuildAppLockQuery takes an exclusive transaction-scoped application lock, it returns a negative status on failure.
func (MSSQLDialect) BuildAppLockQuery(resource string, timeoutMs int64) (string, []any) {
	return `
DECLARE @result INT;
EXEC @result = sp_getapplock @Resource = ?, @LockMode = 'Exclusive', @LockOwner = 'Transaction', @LockTimeout = ?;
SELECT @result;`, []any{resource, timeoutMs}
}

// BuildDeleteQuery clears the rows that belong to a dataset. A nil [keyColumn] clears the whole table.
func (md MSSQLDialect) BuildDeleteQuery(tableID sql.TableIdentifier, keyColumn *sql.SafeIdentifier, key string) (string, []any) {
	if keyColumn == nil {
		return "DELETE FROM " + tableID.FullyQualifiedName(), nil
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s = ?", tableID.FullyQualifiedName(), md.QuoteIdentifier(*keyColumn)), []any{key}
}

// BuildInsertSelectQuery copies from staging into the destination, [selectExprs] line up with [cols].
func (md MSSQLDialect) BuildInsertSelectQuery(destination sql.TableIdentifier, cols []sql.SafeIdentifier, staging sql.TableIdentifier, selectExprs []string, distinct bool) string {
	selectKeyword := "SELECT"
	if distinct {
		selectKeyword = "SELECT DISTINCT"
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) %s %s FROM %s",
		destination.FullyQualifiedName(),
		sql.JoinQuoted(cols, md),
		selectKeyword,
		strings.Join(selectExprs, ", "),
		staging.FullyQualifiedName(),
	)
}
