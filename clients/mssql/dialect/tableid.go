package dialect

import (
	"fmt"

	"github.com/artie-labs/ingest/lib/sql"
)

var _dialect = MSSQLDialect{}

type TableIdentifier struct {
	schema sql.SafeIdentifier
	table  sql.SafeIdentifier
}

func NewTableIdentifier(schema, table sql.SafeIdentifier) TableIdentifier {
	return TableIdentifier{schema: schema, table: table}
}

// ParseTableIdentifier sanitizes both parts, no SQL is built from a name that fails.
func ParseTableIdentifier(schema, table string) (TableIdentifier, error) {
	safeSchema, err := sql.Sanitize(schema)
	if err != nil {
		return TableIdentifier{}, fmt.Errorf("invalid schema: %w", err)
	}

	safeTable, err := sql.Sanitize(table)
	if err != nil {
		return TableIdentifier{}, fmt.Errorf("invalid table: %w", err)
	}

	return NewTableIdentifier(safeSchema, safeTable), nil
}

func (ti TableIdentifier) Schema() sql.SafeIdentifier {
	return ti.schema
}

func (ti TableIdentifier) Table() sql.SafeIdentifier {
	return ti.table
}

func (ti TableIdentifier) EscapedTable() string {
	return _dialect.QuoteIdentifier(ti.table)
}

func (ti TableIdentifier) WithTable(table sql.SafeIdentifier) sql.TableIdentifier {
	return NewTableIdentifier(ti.schema, table)
}

func (ti TableIdentifier) FullyQualifiedName() string {
	return fmt.Sprintf("%s.%s", _dialect.QuoteIdentifier(ti.schema), ti.EscapedTable())
}

func (ti TableIdentifier) String() string {
	return ti.schema.String() + "." + ti.table.String()
}
