package mssql

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/suite"

	"github.com/artie-labs/ingest/clients/mssql/dialect"
	"github.com/artie-labs/ingest/lib/config"
	"github.com/artie-labs/ingest/lib/db"
	"github.com/artie-labs/ingest/lib/sql"
)

type MSSQLTestSuite struct {
	suite.Suite
	mock  sqlmock.Sqlmock
	store *Store
	ctx   context.Context
}

func (m *MSSQLTestSuite) SetupTest() {
	sqlDB, mock, err := sqlmock.New()
	m.Require().NoError(err)
	m.T().Cleanup(func() { _ = sqlDB.Close() })

	cfg := config.Config{
		Staging: config.Staging{ChunkSize: 2, RetentionHours: 24},
		Datasets: []config.Dataset{
			{Name: "orders", Schema: "bronze", Table: "orders"},
			{Name: "returns", Schema: "bronze", Table: "returns"},
		},
	}

	m.mock = mock
	m.store = NewStore(db.NewStore(sqlDB, db.PoolConfig{Size: 2}), cfg, nil)
	m.ctx = context.Background()
}

func (m *MSSQLTestSuite) TearDownTest() {
	m.NoError(m.mock.ExpectationsWereMet())
}

func (m *MSSQLTestSuite) ordersID() dialect.TableIdentifier {
	return dialect.NewTableIdentifier(sql.MustSanitize("bronze"), sql.MustSanitize("orders"))
}

func TestMSSQLTestSuite(t *testing.T) {
	suite.Run(t, new(MSSQLTestSuite))
}

var describeColumns = []string{"COLUMN_NAME", "DATA_TYPE", "CHARACTER_MAXIMUM_LENGTH", "NUMERIC_PRECISION", "NUMERIC_SCALE"}
