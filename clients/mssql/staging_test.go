package mssql

import (
	"database/sql/driver"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/artie-labs/ingest/clients/mssql/dialect"
	"github.com/artie-labs/ingest/lib/sql"
	"github.com/artie-labs/ingest/lib/tabular"
)

func (m *MSSQLTestSuite) TestStagingColumnsForFrame() {
	{
		frame, err := tabular.NewFrame([]string{"order_id", "notes", "empty"}, [][]any{
			{1, strings.Repeat("a", 900), nil},
			{2, strings.Repeat("é", 5000), nil},
		})
		m.Require().NoError(err)

		cols, err := StagingColumnsForFrame(frame)
		m.NoError(err)
		m.Equal([]StagingColumn{
			{Name: sql.MustSanitize("order_id"), Width: IndexableWidth},
			{Name: sql.MustSanitize("notes"), Width: 0},
			{Name: sql.MustSanitize("empty"), Width: IndexableWidth},
		}, cols)
	}
	{
		frame, err := tabular.NewFrame([]string{"notes"}, [][]any{{strings.Repeat("a", 4000)}})
		m.Require().NoError(err)
		cols, err := StagingColumnsForFrame(frame)
		m.NoError(err)
		m.Equal(4000, cols[0].Width)
	}
	{
		// Unsafe header
		frame, err := tabular.NewFrame([]string{"order id"}, nil)
		m.Require().NoError(err)
		_, err = StagingColumnsForFrame(frame)
		m.ErrorIs(err, sql.ErrInvalidIdentifier)
	}
}

func (m *MSSQLTestSuite) newStagingTable(rowCount int64) *StagingTable {
	return &StagingTable{
		ID:       dialect.NewTableIdentifier(sql.MustSanitize("bronze"), sql.MustSanitize("orders_staging_abcd1234_1700000000")),
		Columns:  []StagingColumn{{Name: sql.MustSanitize("order_id"), Width: IndexableWidth}, {Name: sql.MustSanitize("notes")}},
		RowCount: rowCount,
	}
}

func (m *MSSQLTestSuite) TestCreateStaging() {
	cols := []StagingColumn{{Name: sql.MustSanitize("order_id"), Width: IndexableWidth}, {Name: sql.MustSanitize("notes")}}

	m.mock.ExpectBegin()
	m.mock.ExpectExec(`DROP TABLE IF EXISTS \[bronze\]\.\[orders_staging_abcd1234_\d+\]`).WillReturnResult(sqlmock.NewResult(0, 0))
	m.mock.ExpectExec(`CREATE TABLE \[bronze\]\.\[orders_staging_abcd1234_\d+\] ` + regexp.QuoteMeta("([order_id] NVARCHAR(850) NULL, [notes] NVARCHAR(MAX) NULL)")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	m.mock.ExpectCommit()

	before := time.Now()
	staging, err := m.store.CreateStaging(m.ctx, m.ordersID(), "abcd1234", cols)
	m.Require().NoError(err)
	m.True(strings.HasPrefix(staging.ID.Table().String(), "orders_staging_abcd1234_"))
	m.Equal(cols, staging.Columns)
	m.Zero(staging.RowCount)
	m.WithinDuration(before.Add(24*time.Hour), staging.ExpiresAt, 5*time.Second)
	m.WithinDuration(before, staging.CreatedAt, 5*time.Second)

	_, err = m.store.CreateStaging(m.ctx, m.ordersID(), "abcd1234", nil)
	m.ErrorContains(err, "at least one column")
}

func (m *MSSQLTestSuite) expectChunk(rows [][]driver.Value, loaded int64) {
	m.mock.ExpectBegin()
	prepare := m.mock.ExpectPrepare(regexp.QuoteMeta(`INSERTBULK {"TableName":"[bronze].[orders_staging_abcd1234_1700000000]"`))
	for _, row := range rows {
		prepare.ExpectExec().WithArgs(row...).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	prepare.ExpectExec().WithoutArgs().WillReturnResult(sqlmock.NewResult(0, loaded))
	m.mock.ExpectCommit()
}

func (m *MSSQLTestSuite) TestBulkInsert() {
	frame, err := tabular.NewFrame([]string{"order_id", "notes"}, [][]any{
		{1, "first"},
		{2, nil},
		{3, true},
	})
	m.Require().NoError(err)

	m.expectChunk([][]driver.Value{{"1", "first"}, {"2", nil}}, 2)
	m.expectChunk([][]driver.Value{{"3", "1"}}, 1)

	staging := m.newStagingTable(0)
	loaded, err := m.store.BulkInsert(m.ctx, staging, frame)
	m.NoError(err)
	m.Equal(int64(3), loaded)
	m.Equal(int64(3), staging.RowCount)
}

func (m *MSSQLTestSuite) TestBulkInsert_ChunkFails() {
	frame, err := tabular.NewFrame([]string{"order_id", "notes"}, [][]any{{1, "a"}, {2, "b"}, {3, "c"}})
	m.Require().NoError(err)

	m.expectChunk([][]driver.Value{{"1", "a"}, {"2", "b"}}, 2)
	m.mock.ExpectBegin()
	prepare := m.mock.ExpectPrepare("INSERTBULK")
	prepare.ExpectExec().WillReturnError(errors.New("String or binary data would be truncated"))
	m.mock.ExpectRollback()

	staging := m.newStagingTable(0)
	loaded, err := m.store.BulkInsert(m.ctx, staging, frame)
	m.ErrorIs(err, ErrLoadFailure)
	m.ErrorContains(err, "would be truncated")

	var loadErr *LoadFailureError
	m.Require().True(errors.As(err, &loadErr))
	m.Equal(1, loadErr.Chunk)
	m.Equal(int64(2), loaded)
}

func (m *MSSQLTestSuite) TestBulkInsert_RowCountMismatch() {
	frame, err := tabular.NewFrame([]string{"order_id", "notes"}, [][]any{{1, "a"}})
	m.Require().NoError(err)

	m.mock.ExpectBegin()
	prepare := m.mock.ExpectPrepare("INSERTBULK")
	prepare.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))
	prepare.ExpectExec().WithoutArgs().WillReturnResult(sqlmock.NewResult(0, 0))
	m.mock.ExpectRollback()

	_, err = m.store.BulkInsert(m.ctx, m.newStagingTable(0), frame)
	m.ErrorContains(err, "expected 1 rows to be loaded, but got 0")
}

func (m *MSSQLTestSuite) TestBulkInsert_ColumnMismatch() {
	frame, err := tabular.NewFrame([]string{"order_id"}, [][]any{{1}})
	m.Require().NoError(err)

	_, err = m.store.BulkInsert(m.ctx, m.newStagingTable(0), frame)
	m.ErrorContains(err, "frame has 1 columns, staging table has 2")
}

func (m *MSSQLTestSuite) TestDropStaging() {
	{
		m.mock.ExpectExec(regexp.QuoteMeta("DROP TABLE IF EXISTS [bronze].[orders_staging_abcd1234_1700000000]")).WillReturnResult(sqlmock.NewResult(0, 0))
		m.NoError(m.store.DropStaging(m.ctx, m.newStagingTable(0).ID))
	}
	{
		// Destination tables are never dropped
		m.ErrorContains(m.store.DropStaging(m.ctx, m.ordersID()), "is not a staging table")
	}
}
