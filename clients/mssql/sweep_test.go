package mssql

import (
	"fmt"
	"regexp"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/artie-labs/ingest/lib/config"
	"github.com/artie-labs/ingest/lib/db"
	"github.com/artie-labs/ingest/lib/sql"
)

func (m *MSSQLTestSuite) TestSweepStaging() {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	expired := fmt.Sprintf("orders_staging_abcd1234_%d", now.Add(-time.Hour).Unix())
	live := fmt.Sprintf("orders_staging_ef567890_%d", now.Add(time.Hour).Unix())

	// Both datasets live in bronze, it is only listed once.
	m.mock.ExpectQuery("INFORMATION_SCHEMA.TABLES").
		WithArgs("bronze", "%[_]staging[_]%").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow(expired).AddRow(live).AddRow("my_staging_notes").
			AddRow("inventory_staging_area_2024").AddRow("orders_staging_v_2").AddRow("sales_staging_eu_1"))
	m.mock.ExpectExec(regexp.QuoteMeta("DROP TABLE IF EXISTS [bronze].[" + expired + "]")).WillReturnResult(sqlmock.NewResult(0, 0))

	dropped, err := m.store.SweepStaging(m.ctx, now)
	m.NoError(err)
	m.Equal(1, dropped)
}

func (m *MSSQLTestSuite) TestSweepStaging_ListFails() {
	m.mock.ExpectQuery("INFORMATION_SCHEMA.TABLES").WillReturnError(fmt.Errorf("permission denied"))

	_, err := m.store.SweepStaging(m.ctx, time.Now())
	m.ErrorContains(err, `failed to list staging tables in "bronze": permission denied`)
}

func (m *MSSQLTestSuite) TestSweepStaging_SkipsDestinationTables() {
	sqlDB, mock, err := sqlmock.New()
	m.Require().NoError(err)
	defer sqlDB.Close()

	legacy := "legacy_staging_0badc0de_1600000000"
	store := NewStore(db.NewStore(sqlDB, db.PoolConfig{Size: 2}), config.Config{
		Datasets: []config.Dataset{{Name: "legacy", Schema: "silver", Table: "LEGACY_STAGING_0BADC0DE_1600000000"}},
	}, nil)

	expired := "legacy_staging_1234abcd_1600000000"
	mock.ExpectQuery("INFORMATION_SCHEMA.TABLES").
		WithArgs("silver", "%[_]staging[_]%").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow(legacy).AddRow(expired))
	mock.ExpectExec(regexp.QuoteMeta("DROP TABLE IF EXISTS [silver].[" + expired + "]")).WillReturnResult(sqlmock.NewResult(0, 0))

	dropped, err := store.SweepStaging(m.ctx, time.Now())
	m.NoError(err)
	m.Equal(1, dropped)
	m.NoError(mock.ExpectationsWereMet())
}

func (m *MSSQLTestSuite) TestDropStaging_RefusesLookalikes() {
	for _, name := range []string{"inventory_staging_area_2024", "orders_staging_v_2", "sales_staging_eu_1"} {
		err := m.store.DropStaging(m.ctx, m.ordersID().WithTable(sql.MustSanitize(name)))
		m.ErrorContains(err, "is not a staging table", name)
	}
}
