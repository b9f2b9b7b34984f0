package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/tablegate/internal/database"
	"github.com/koustreak/tablegate/internal/database/dialect"
	"github.com/koustreak/tablegate/internal/database/sqlite"
	"github.com/koustreak/tablegate/internal/schema"
)

// Statements generated for SQLite are executed against a real in-memory
// database built from the introspected schema.
func TestStatementsExecuteOnSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.New(ctx, database.DefaultConfig(database.DriverSQLite, ":memory:"))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(ctx, `
		CREATE TABLE products (sku INTEGER PRIMARY KEY, name TEXT NOT NULL, attrs JSON);
		CREATE TABLE order_items (
			id INTEGER PRIMARY KEY,
			product_id INTEGER REFERENCES products(sku),
			qty INTEGER NOT NULL DEFAULT 1
		);`)
	require.NoError(t, err)

	m, err := schema.Introspect(ctx, schema.NewSQLiteIntrospector(db))
	require.NoError(t, err)

	run := func(stmt Statement) []map[string]any {
		t.Helper()
		rows, err := db.Query(ctx, stmt.Text, stmt.Values...)
		require.NoError(t, err, stmt.Text)
		out, err := database.ScanRows(rows)
		require.NoError(t, err)
		return out
	}

	must := func(stmt Statement, err error) Statement {
		t.Helper()
		require.NoError(t, err)
		return stmt
	}

	products := New(m["products"], dialect.SQLite)
	inserted := run(must(products.Insert(Params{{"name", "lamp"}, {"attrs", map[string]any{"color": "red"}}})))
	require.Len(t, inserted, 1)
	assert.Equal(t, int64(1), inserted[0]["sku"])
	run(must(products.Insert(Params{{"name", "desk"}, {"attrs", `{"color":"oak"}`}})))

	items := New(m["order_items"], dialect.SQLite)
	item := run(must(items.Insert(Params{{"product_id", 1}})))
	assert.Equal(t, int64(1), item[0]["qty"], "server default comes back through RETURNING")

	byJSON := run(must(products.Select(Params{{"attrs", `{"color": "oak"}`}}, ListOptions{})))
	require.Len(t, byJSON, 1)
	assert.Equal(t, "desk", byJSON[0]["name"])

	limit := 1
	page := run(must(products.Select(nil, ListOptions{Limit: &limit, OrderBy: "name", OrderDir: "desc"})))
	assert.Equal(t, "lamp", page[0]["name"])

	offset := 1
	rest := run(must(products.Select(nil, ListOptions{Offset: &offset, OrderBy: "sku"})))
	require.Len(t, rest, 1)
	assert.Equal(t, "desk", rest[0]["name"])

	related := run(must(items.Related("products", 1, "product_id")))
	require.Len(t, related, 1)
	assert.Equal(t, "lamp", related[0]["name"])

	reverse := run(must(products.Related("order_items", 1, "")))
	require.Len(t, reverse, 1)

	updated := run(must(products.Update(2, Params{{"sku", 50}, {"name", "standing desk"}})))
	assert.Equal(t, int64(2), updated[0]["sku"])
	assert.Equal(t, "standing desk", updated[0]["name"])

	deleted := run(must(items.DeleteWhere(Params{{"qty__gte", 1}})))
	assert.Len(t, deleted, 1)
}
