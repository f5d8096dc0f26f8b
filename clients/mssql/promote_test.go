package mssql

import (
	"errors"
	"regexp"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/artie-labs/ingest/lib/sql"
	"github.com/artie-labs/ingest/lib/typing"
	"github.com/artie-labs/ingest/lib/typing/columns"
)

func (m *MSSQLTestSuite) promoteArgs() PromoteArgs {
	return PromoteArgs{
		Staging:     m.newStagingTable(10),
		Destination: m.ordersID(),
		Columns: []columns.ColumnSpec{
			{Name: "order_id", KindDetails: typing.BuildIntegerKind(typing.BigIntegerKind)},
			{Name: "is_paid", KindDetails: typing.Boolean, TrueValues: []string{"paid"}},
		},
		DateFormat:       typing.UK,
		DatasetKeyColumn: typing.ToPtr(sql.MustSanitize("source_file")),
		DatasetKey:       "north",
		Deduplicate:      true,
	}
}

func (m *MSSQLTestSuite) expectLock(status int) {
	m.mock.ExpectQuery("sp_getapplock").WithArgs("[bronze].[orders]", int64(60_000)).
		WillReturnRows(sqlmock.NewRows([]string{"result"}).AddRow(status))
}

func (m *MSSQLTestSuite) TestPromote() {
	m.mock.ExpectBegin()
	m.expectLock(0)
	m.mock.ExpectQuery("INFORMATION_SCHEMA.COLUMNS").WithArgs("orders", "bronze").WillReturnRows(sqlmock.NewRows(describeColumns))
	m.mock.ExpectExec(regexp.QuoteMeta("DELETE FROM [bronze].[orders] WHERE [source_file] = ?")).
		WithArgs("north").
		WillReturnResult(sqlmock.NewResult(0, 7))
	m.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO [bronze].[orders] ([order_id],[is_paid],[uploaded_at],[source_file]) SELECT DISTINCT TRY_CAST(")).
		WithArgs("1", "TRUE", "Y", "YES", "PAID", "0", "FALSE", "N", "NO", "north").
		WillReturnResult(sqlmock.NewResult(0, 8))
	m.mock.ExpectCommit()

	result, err := m.store.Promote(m.ctx, m.promoteArgs())
	m.NoError(err)
	m.Equal(PromoteResult{Deleted: 7, Inserted: 8, DuplicatesRemoved: 2}, result)
	m.Zero(m.store.locks.size())
}

func (m *MSSQLTestSuite) TestPromote_WholeTable() {
	args := m.promoteArgs()
	args.DatasetKeyColumn = nil
	args.Deduplicate = false

	m.mock.ExpectBegin()
	m.expectLock(1)
	m.mock.ExpectQuery("INFORMATION_SCHEMA.COLUMNS").WillReturnRows(sqlmock.NewRows(describeColumns))
	m.mock.ExpectExec(regexp.QuoteMeta("DELETE FROM [bronze].[orders]") + "$").WithoutArgs().WillReturnResult(sqlmock.NewResult(0, 3))
	m.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO [bronze].[orders] ([order_id],[is_paid],[uploaded_at]) SELECT TRY_CAST(")).
		WillReturnResult(sqlmock.NewResult(0, 10))
	m.mock.ExpectCommit()

	result, err := m.store.Promote(m.ctx, args)
	m.NoError(err)
	m.Equal(PromoteResult{Deleted: 3, Inserted: 10}, result)
}

func (m *MSSQLTestSuite) TestPromote_RollsBack() {
	{
		// Insert fails, the delete is rolled back with it
		m.mock.ExpectBegin()
		m.expectLock(0)
		m.mock.ExpectQuery("INFORMATION_SCHEMA.COLUMNS").WillReturnRows(sqlmock.NewRows(describeColumns))
		m.mock.ExpectExec("DELETE FROM").WillReturnResult(sqlmock.NewResult(0, 7))
		m.mock.ExpectExec("INSERT INTO").WillReturnError(errors.New("Arithmetic overflow error converting nvarchar to data type numeric"))
		m.mock.ExpectRollback()

		_, err := m.store.Promote(m.ctx, m.promoteArgs())
		m.ErrorIs(err, ErrPromotionFailure)
		m.ErrorContains(err, "failed to insert rows: Arithmetic overflow")
	}
	{
		// Lock timeout
		m.mock.ExpectBegin()
		m.expectLock(-1)
		m.mock.ExpectRollback()

		_, err := m.store.Promote(m.ctx, m.promoteArgs())
		m.ErrorIs(err, ErrPromotionFailure)
		m.ErrorContains(err, "status: -1")
	}
	{
		// Commit fails
		m.mock.ExpectBegin()
		m.expectLock(0)
		m.mock.ExpectQuery("INFORMATION_SCHEMA.COLUMNS").WillReturnRows(sqlmock.NewRows(describeColumns))
		m.mock.ExpectExec("DELETE FROM").WillReturnResult(sqlmock.NewResult(0, 0))
		m.mock.ExpectExec("INSERT INTO").WillReturnResult(sqlmock.NewResult(0, 10))
		m.mock.ExpectCommit().WillReturnError(errors.New("transaction log full"))

		_, err := m.store.Promote(m.ctx, m.promoteArgs())
		m.ErrorIs(err, ErrPromotionFailure)
		m.ErrorContains(err, "transaction log full")
	}
	{
		_, err := m.store.Promote(m.ctx, PromoteArgs{Destination: m.ordersID()})
		m.ErrorIs(err, ErrPromotionFailure)
	}
}

func (m *MSSQLTestSuite) TestSelectExpression() {
	existing := columns.NewColumns([]columns.Column{
		columns.NewColumn("notes", typing.BuildStringKind(100)),
		columns.NewColumn("sku", typing.String),
	})

	price, err := typing.ParseKind("decimal(10,2)")
	m.Require().NoError(err)

	{
		expr, args := m.store.selectExpression(columns.ColumnSpec{Name: "price", KindDetails: price}, "[price]", typing.UK, existing)
		m.Equal(`TRY_CAST(NULLIF(NULLIF(LTRIM(RTRIM(REPLACE(REPLACE(REPLACE([price], '"', ''), ',', ''), ' ', ''))), '-'), '') AS DECIMAL(10,2))`, expr)
		m.Empty(args)
	}
	{
		expr, _ := m.store.selectExpression(columns.ColumnSpec{Name: "order_date", KindDetails: typing.Date}, "[order_date]", typing.US, existing)
		m.Contains(expr, "CAST(COALESCE(TRY_CONVERT(DATETIME2, ")
		m.Contains(expr, ", 101), ")
		m.True(regexp.MustCompile(`\) AS DATE\)$`).MatchString(expr))
	}
	{
		expr, _ := m.store.selectExpression(columns.ColumnSpec{Name: "created_at", KindDetails: typing.TimestampNTZ}, "[created_at]", typing.UK, existing)
		m.Contains(expr, "TRY_CONVERT(DATETIME2, ")
		m.NotContains(expr, "AS DATE")
	}
	{
		expr, args := m.store.selectExpression(columns.ColumnSpec{Name: "is_paid", KindDetails: typing.Boolean, FalseValues: []string{"unpaid"}}, "[is_paid]", typing.UK, existing)
		m.Equal("CASE WHEN UPPER(LTRIM(RTRIM([is_paid]))) IN (?,?,?,?) THEN 1 WHEN UPPER(LTRIM(RTRIM([is_paid]))) IN (?,?,?,?,?) THEN 0 END", expr)
		m.Equal([]any{"1", "TRUE", "Y", "YES", "0", "FALSE", "N", "NO", "UNPAID"}, args)
	}
	{
		// Truncated to the narrower destination
		expr, _ := m.store.selectExpression(columns.ColumnSpec{Name: "notes", KindDetails: typing.BuildStringKind(200)}, "[notes]", typing.UK, existing)
		m.Equal("LEFT(NULLIF(LTRIM(RTRIM([notes])), ''), 100)", expr)
	}
	{
		// Truncated to the configured width
		expr, _ := m.store.selectExpression(columns.ColumnSpec{Name: "sku", KindDetails: typing.BuildStringKind(20)}, "[sku]", typing.UK, existing)
		m.Equal("LEFT(NULLIF(LTRIM(RTRIM([sku])), ''), 20)", expr)
	}
	{
		// Unbounded
		expr, _ := m.store.selectExpression(columns.ColumnSpec{Name: "comment", KindDetails: typing.String}, "[comment]", typing.UK, nil)
		m.Equal("NULLIF(LTRIM(RTRIM([comment])), '')", expr)
	}
}
