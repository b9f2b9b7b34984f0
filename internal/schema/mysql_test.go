package schema

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/koustreak/tablegate/internal/database/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMySQL_InspectTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM information_schema.COLUMNS").
		WithArgs("orders").
		WillReturnRows(sqlmock.NewRows([]string{
			"COLUMN_NAME", "DATA_TYPE", "COLUMN_TYPE", "IS_NULLABLE", "COLUMN_DEFAULT",
			"CHARACTER_MAXIMUM_LENGTH", "NUMERIC_PRECISION", "NUMERIC_SCALE", "EXTRA",
		}).
			AddRow("id", "INT", "int unsigned", "NO", nil, nil, int64(10), int64(0), "auto_increment").
			AddRow("status", "enum", "enum('new','it''s paid','sh\\\\ipped')", "NO", "new", int64(10), nil, nil, "").
			AddRow("customer_id", "int", "int", "YES", nil, nil, int64(10), int64(0), ""))

	mock.ExpectQuery("CONSTRAINT_NAME = 'PRIMARY'").
		WithArgs("orders").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME"}).AddRow("id"))

	mock.ExpectQuery("REFERENCED_TABLE_NAME IS NOT NULL").
		WithArgs("orders").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "REFERENCED_TABLE_NAME", "REFERENCED_COLUMN_NAME", "CONSTRAINT_NAME"}).
			AddRow("customer_id", "customers", "id", "orders_customer_fk"))

	mock.ExpectQuery("REFERENCED_TABLE_NAME = \\?").
		WithArgs("orders").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "COLUMN_NAME", "REFERENCED_COLUMN_NAME", "CONSTRAINT_NAME"}).
			AddRow("shipments", "order_id", "id", "shipments_order_fk"))

	ts, err := NewMySQLIntrospector(mysql.Wrap(db)).InspectTable(context.Background(), "orders")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, ts.Columns, 3)
	assert.Equal(t, "int", ts.Columns[0].Type)
	assert.True(t, ts.Columns[0].IsAutoIncrement)
	assert.False(t, ts.Columns[0].Nullable)
	assert.Nil(t, ts.Columns[0].Default)

	status := ts.Columns[1]
	assert.Equal(t, []string{"new", "it's paid", `sh\ipped`}, status.EnumOptions)
	require.NotNil(t, status.Default)
	assert.Equal(t, "new", *status.Default)

	assert.True(t, ts.Columns[2].Nullable)
	assert.Nil(t, ts.Columns[2].EnumOptions)

	assert.Equal(t, []string{"id"}, ts.PrimaryKeys)
	assert.Equal(t, "customers", ts.ForeignKeys[0].ForeignTable)
	assert.Equal(t, "shipments", ts.ReverseForeignKeys[0].ReferencingTable)
}

func TestMySQL_ListTablesErrorAborts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM information_schema.TABLES").WillReturnError(assert.AnError)

	m, err := Introspect(context.Background(), NewMySQLIntrospector(mysql.Wrap(db)))
	require.Error(t, err)
	assert.Nil(t, m)
}

func TestParseEnumLabels(t *testing.T) {
	got, err := parseEnumLabels("enum('a','b c','')")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b c", ""}, got)

	_, err = parseEnumLabels("enum")
	assert.Error(t, err)

	_, err = parseEnumLabels("enum('open)")
	assert.Error(t, err)
}
