package mssql

import (
	"errors"
	"regexp"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/artie-labs/ingest/lib/sql"
	"github.com/artie-labs/ingest/lib/typing"
	"github.com/artie-labs/ingest/lib/typing/columns"
)

func (m *MSSQLTestSuite) orderSpecs() []columns.ColumnSpec {
	price, err := typing.ParseKind("decimal(10,2)")
	m.Require().NoError(err)

	return []columns.ColumnSpec{
		{Name: "order_id", KindDetails: typing.BuildIntegerKind(typing.BigIntegerKind), Required: true},
		{Name: "price", KindDetails: price, Required: true, Nullable: true},
		{Name: "notes", KindDetails: typing.BuildStringKind(200), Nullable: true},
	}
}

func (m *MSSQLTestSuite) TestEnsureSchema() {
	{
		// Already exists
		m.mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM sys.schemas WHERE name = ?")).
			WithArgs("bronze").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		m.NoError(m.store.EnsureSchema(m.ctx, sql.MustSanitize("bronze")))
	}
	{
		// Missing
		m.mock.ExpectQuery("sys.schemas").WithArgs("bronze").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		m.mock.ExpectExec(regexp.QuoteMeta("CREATE SCHEMA [bronze]")).WillReturnResult(sqlmock.NewResult(0, 0))
		m.NoError(m.store.EnsureSchema(m.ctx, sql.MustSanitize("bronze")))
	}
	{
		// Permission error
		m.mock.ExpectQuery("sys.schemas").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		m.mock.ExpectExec("CREATE SCHEMA").WillReturnError(errors.New("CREATE SCHEMA permission denied"))
		m.ErrorContains(m.store.EnsureSchema(m.ctx, sql.MustSanitize("bronze")), `failed to create schema "bronze"`)
	}
}

func (m *MSSQLTestSuite) TestEnsureTable_Create() {
	m.mock.ExpectQuery("INFORMATION_SCHEMA.COLUMNS").WithArgs("orders", "bronze").WillReturnRows(sqlmock.NewRows(describeColumns))
	m.mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE [bronze].[orders] ([order_id] BIGINT NOT NULL, [price] DECIMAL(10,2) NULL, [notes] NVARCHAR(200) NULL, [uploaded_at] DATETIME2 NULL)")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := m.store.EnsureTable(m.ctx, m.ordersID(), m.orderSpecs(), UploadedAtColumn())
	m.NoError(err)
	m.True(created)
}

func (m *MSSQLTestSuite) TestEnsureTable_AddColumns() {
	m.mock.ExpectQuery("INFORMATION_SCHEMA.COLUMNS").WillReturnRows(sqlmock.NewRows(describeColumns).
		AddRow("ORDER_ID", "bigint", nil, 19, 0).
		// Narrower than requested, promotion truncates.
		AddRow("notes", "nvarchar", 100, nil, nil))
	m.mock.ExpectBegin()
	m.mock.ExpectExec(regexp.QuoteMeta("ALTER TABLE [bronze].[orders] ADD [price] DECIMAL(10,2) NULL")).WillReturnResult(sqlmock.NewResult(0, 0))
	m.mock.ExpectExec(regexp.QuoteMeta("ALTER TABLE [bronze].[orders] ADD [source_file] NVARCHAR(255) NULL")).WillReturnResult(sqlmock.NewResult(0, 0))
	m.mock.ExpectCommit()

	created, err := m.store.EnsureTable(m.ctx, m.ordersID(), m.orderSpecs(), DatasetKeyColumn(sql.MustSanitize("source_file")))
	m.NoError(err)
	m.False(created)
}

func (m *MSSQLTestSuite) TestEnsureTable_NothingToDo() {
	m.mock.ExpectQuery("INFORMATION_SCHEMA.COLUMNS").WillReturnRows(sqlmock.NewRows(describeColumns).
		AddRow("order_id", "bigint", nil, 19, 0).
		AddRow("price", "decimal", nil, 12, 2).
		AddRow("notes", "nvarchar", -1, nil, nil).
		AddRow("uploaded_at", "datetime2", nil, nil, nil))

	created, err := m.store.EnsureTable(m.ctx, m.ordersID(), m.orderSpecs(), UploadedAtColumn())
	m.NoError(err)
	m.False(created)
}

func (m *MSSQLTestSuite) TestEnsureTable_Conflict() {
	{
		// Integer narrowing
		m.mock.ExpectQuery("INFORMATION_SCHEMA.COLUMNS").WillReturnRows(sqlmock.NewRows(describeColumns).AddRow("order_id", "int", nil, 10, 0))

		_, err := m.store.EnsureTable(m.ctx, m.ordersID(), m.orderSpecs())
		m.ErrorIs(err, ErrSchemaConflict)

		var conflictErr *SchemaConflictError
		m.Require().True(errors.As(err, &conflictErr))
		m.Equal("order_id", conflictErr.Column)
		m.Equal("int", conflictErr.Existing.String())
		m.Equal("bigint", conflictErr.Requested.String())
		m.Equal(`schema conflict: column "order_id" in [bronze].[orders] is int, cannot load bigint into it`, err.Error())
	}
	{
		// Different category
		m.mock.ExpectQuery("INFORMATION_SCHEMA.COLUMNS").WillReturnRows(sqlmock.NewRows(describeColumns).AddRow("price", "nvarchar", 20, nil, nil))
		_, err := m.store.EnsureTable(m.ctx, m.ordersID(), m.orderSpecs())
		m.ErrorIs(err, ErrSchemaConflict)
	}
	{
		// Unmapped types conflict with everything
		m.mock.ExpectQuery("INFORMATION_SCHEMA.COLUMNS").WillReturnRows(sqlmock.NewRows(describeColumns).AddRow("notes", "xml", nil, nil, nil))
		_, err := m.store.EnsureTable(m.ctx, m.ordersID(), m.orderSpecs())
		m.ErrorIs(err, ErrSchemaConflict)
	}
}

func (m *MSSQLTestSuite) TestEnsureTable_UnsafeColumn() {
	specs := []columns.ColumnSpec{{Name: "price; DROP TABLE users", KindDetails: typing.Float}}
	_, err := m.store.EnsureTable(m.ctx, m.ordersID(), specs)
	m.ErrorIs(err, sql.ErrInvalidIdentifier)
}
