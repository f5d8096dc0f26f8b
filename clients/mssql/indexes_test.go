package mssql

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/artie-labs/ingest/lib/sql"
)

func (m *MSSQLTestSuite) TestTempIndexName() {
	staging := m.newStagingTable(0).ID
	name := TempIndexName(staging, sql.MustSanitize("order_id"))
	m.True(strings.HasPrefix(name.String(), "ix_tmp_"))
	m.Len(name.String(), len("ix_tmp_")+16)
	m.Equal(name, TempIndexName(staging, sql.MustSanitize("order_id")))
	m.NotEqual(name, TempIndexName(staging, sql.MustSanitize("notes")))
	m.NotEqual(name, TempIndexName(m.ordersID(), sql.MustSanitize("order_id")))
}

func (m *MSSQLTestSuite) expectStagingDescribe() {
	m.mock.ExpectQuery("INFORMATION_SCHEMA.COLUMNS").WillReturnRows(sqlmock.NewRows(describeColumns).
		AddRow("order_id", "nvarchar", 850, nil, nil).
		AddRow("price", "nvarchar", 850, nil, nil).
		AddRow("notes", "nvarchar", -1, nil, nil))
}

func (m *MSSQLTestSuite) TestCreateTempIndexes() {
	staging := m.newStagingTable(0).ID
	cols := []sql.SafeIdentifier{sql.MustSanitize("order_id"), sql.MustSanitize("price"), sql.MustSanitize("notes"), sql.MustSanitize("missing")}
	orderIndex := TempIndexName(staging, cols[0])

	m.expectStagingDescribe()
	m.mock.ExpectExec(regexp.QuoteMeta("CREATE NONCLUSTERED INDEX [" + orderIndex.String() + "] ON [bronze].[orders_staging_abcd1234_1700000000] ([order_id]) WHERE [order_id] IS NOT NULL")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	// A failed index is skipped.
	m.mock.ExpectExec(regexp.QuoteMeta("([price])")).WillReturnError(errors.New("Operation failed. The index entry exceeds the maximum length"))

	handle, err := m.store.CreateTempIndexes(m.ctx, staging, cols)
	m.Require().NoError(err)
	m.Equal([]sql.SafeIdentifier{orderIndex}, handle.Names())

	// Dropped exactly once.
	m.mock.ExpectExec(regexp.QuoteMeta("DROP INDEX IF EXISTS [" + orderIndex.String() + "] ON [bronze].[orders_staging_abcd1234_1700000000]")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	m.NoError(handle.Release(m.ctx))
	m.NoError(handle.Release(m.ctx))

	var nilHandle *IndexHandle
	m.NoError(nilHandle.Release(m.ctx))
	m.Empty(nilHandle.Names())
}

func (m *MSSQLTestSuite) TestIndexHandle_ReleaseError() {
	staging := m.newStagingTable(0).ID
	m.expectStagingDescribe()
	m.mock.ExpectExec("CREATE NONCLUSTERED INDEX").WillReturnResult(sqlmock.NewResult(0, 0))

	handle, err := m.store.CreateTempIndexes(m.ctx, staging, []sql.SafeIdentifier{sql.MustSanitize("order_id")})
	m.Require().NoError(err)

	m.mock.ExpectExec("DROP INDEX").WillReturnError(errors.New("lock request time out period exceeded"))
	m.ErrorContains(handle.Release(m.ctx), "lock request time out")
	// The error is remembered, nothing is retried.
	m.ErrorContains(handle.Release(m.ctx), "lock request time out")
}

func (m *MSSQLTestSuite) TestWithTempIndexes() {
	staging := m.newStagingTable(0).ID
	cols := []sql.SafeIdentifier{sql.MustSanitize("order_id")}
	{
		// Released when fn fails
		m.expectStagingDescribe()
		m.mock.ExpectExec("CREATE NONCLUSTERED INDEX").WillReturnResult(sqlmock.NewResult(0, 0))
		m.mock.ExpectExec("DROP INDEX").WillReturnResult(sqlmock.NewResult(0, 0))

		err := m.store.WithTempIndexes(m.ctx, staging, cols, func(context.Context) error {
			return errors.New("validator blew up")
		})
		m.ErrorContains(err, "validator blew up")
	}
	{
		// Released when the caller cancels
		ctx, cancel := context.WithCancel(m.ctx)
		m.expectStagingDescribe()
		m.mock.ExpectExec("CREATE NONCLUSTERED INDEX").WillReturnResult(sqlmock.NewResult(0, 0))
		m.mock.ExpectExec("DROP INDEX").WillReturnResult(sqlmock.NewResult(0, 0))

		err := m.store.WithTempIndexes(ctx, staging, cols, func(ctx context.Context) error {
			cancel()
			return ctx.Err()
		})
		m.ErrorIs(err, context.Canceled)
	}
	{
		// Nothing to index
		called := false
		m.NoError(m.store.WithTempIndexes(m.ctx, staging, nil, func(context.Context) error {
			called = true
			return nil
		}))
		m.True(called)
	}
}
