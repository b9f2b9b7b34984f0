package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/tablegate/internal/database/dialect"
	"github.com/koustreak/tablegate/internal/errs"
	"github.com/koustreak/tablegate/internal/schema"
)

var allDialects = []dialect.Dialect{dialect.Postgres, dialect.MySQL, dialect.SQLite}

func ordersTable() *schema.TableSchema {
	return &schema.TableSchema{
		Name: "orders",
		Columns: []schema.Column{
			{Name: "id", Type: "integer", IsAutoIncrement: true},
			{Name: "status", Type: "varchar"},
			{Name: "total", Type: "numeric"},
			{Name: "meta", Type: "jsonb", Nullable: true},
			{Name: "customer_id", Type: "integer"},
		},
		PrimaryKeys: []string{"id"},
		ForeignKeys: []schema.ForeignKey{
			{ColumnName: "customer_id", ForeignTable: "customers", ForeignColumn: "id", ConstraintName: "orders_customer_fk"},
		},
	}
}

func usersTable() *schema.TableSchema {
	return &schema.TableSchema{
		Name: "users",
		Columns: []schema.Column{
			{Name: "id", Type: "int"},
			{Name: "name", Type: "varchar"},
			{Name: "age", Type: "int"},
		},
		PrimaryKeys: []string{"id"},
	}
}

func TestSelectByID_Postgres(t *testing.T) {
	stmt, err := New(ordersTable(), dialect.Postgres).SelectByID(42)
	require.NoError(t, err)

	assert.Equal(t, `SELECT * FROM "orders" WHERE "id" = $1`, stmt.Text)
	assert.Equal(t, []any{42}, stmt.Values)
	assert.False(t, stmt.Returning)
}

func TestSelect_MySQLFilterOrder(t *testing.T) {
	filters := Params{{"age__gte", 18}, {"name", "Ann"}}
	stmt, err := New(usersTable(), dialect.MySQL).Select(filters, ListOptions{})
	require.NoError(t, err)

	assert.Equal(t, "SELECT * FROM `users` WHERE `age` >= ? AND `name` = ?", stmt.Text)
	assert.Equal(t, []any{18, "Ann"}, stmt.Values)
}

func TestSelect_FullClauses(t *testing.T) {
	limit, offset := 10, 20
	p, err := ParseQuery("status=new&total__lt=100&unknown=1&meta__like=x&orderBy=total&orderDir=DeSc")
	require.NoError(t, err)
	_, filters := SplitListParams(p)

	stmt, err := New(ordersTable(), dialect.Postgres).Select(filters, ListOptions{
		Limit: &limit, Offset: &offset, OrderBy: "total", OrderDir: "DeSc",
	})
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT * FROM "orders" WHERE "status" = $1 AND "total" < $2 AND "meta" LIKE $3 ORDER BY "total" DESC LIMIT $4 OFFSET $5`,
		stmt.Text)
	assert.Equal(t, []any{"new", "100", "x", 10, 20}, stmt.Values)
}

func TestSelect_IgnoresUnknownOrderBy(t *testing.T) {
	stmt, err := New(ordersTable(), dialect.Postgres).Select(nil, ListOptions{OrderBy: "id; DROP TABLE orders"})
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "orders"`, stmt.Text)
	assert.Empty(t, stmt.Values)
}

func TestSelect_OffsetWithoutLimit(t *testing.T) {
	offset := 5
	want := map[string]string{
		"postgres": `SELECT * FROM "orders" OFFSET $1`,
		"mysql":    "SELECT * FROM `orders` LIMIT 18446744073709551615 OFFSET ?",
		"sqlite":   `SELECT * FROM "orders" LIMIT -1 OFFSET ?`,
	}
	for _, d := range allDialects {
		stmt, err := New(ordersTable(), d).Select(nil, ListOptions{Offset: &offset})
		require.NoError(t, err)
		assert.Equal(t, want[d.Name()], stmt.Text)
		assert.Equal(t, []any{5}, stmt.Values)
	}
}

func TestParseFilters_Operators(t *testing.T) {
	tests := []struct {
		key    string
		column string
		op     Operator
	}{
		{"total", "total", OpEq},
		{"total__gt", "total", OpGt},
		{"total__gte", "total", OpGte},
		{"total__lt", "total", OpLt},
		{"total__lte", "total", OpLte},
		{"status__like", "status", OpLike},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got := ParseFilters(ordersTable(), Params{{tt.key, 1}})
			require.Len(t, got, 1)
			assert.Equal(t, tt.column, got[0].Column)
			assert.Equal(t, tt.op, got[0].Op)
		})
	}
}

func TestParseFilters_DropsUnknown(t *testing.T) {
	got := ParseFilters(ordersTable(), Params{
		{"nope", 1}, {"nope__gt", 1}, {"total__between", 1}, {"status", "x"},
	})
	assert.Equal(t, []Filter{{Column: "status", Op: OpEq, Value: "x"}}, got)
}

func TestParseFilters_SuffixedColumnName(t *testing.T) {
	table := &schema.TableSchema{Name: "t", Columns: []schema.Column{{Name: "created__gt"}}}
	got := ParseFilters(table, Params{{"created__gt", 1}})
	assert.Equal(t, []Filter{{Column: "created__gt", Op: OpEq, Value: 1}}, got)
}

func TestJSONFilter(t *testing.T) {
	tests := []struct {
		name    string
		d       dialect.Dialect
		value   any
		text    string
		bound   any
		warning bool
	}{
		{"pg encoded object", dialect.Postgres, `{"b": 1, "a": [true]}`, `SELECT * FROM "orders" WHERE "meta"::jsonb = $1::jsonb`, `{"a":[true],"b":1}`, false},
		{"pg parsed object", dialect.Postgres, map[string]any{"k": "v"}, `SELECT * FROM "orders" WHERE "meta"::jsonb = $1::jsonb`, `{"k":"v"}`, false},
		{"pg text fallback", dialect.Postgres, "not json", `SELECT * FROM "orders" WHERE "meta"::text = $1`, "not json", true},
		{"mysql", dialect.MySQL, `[1,2]`, "SELECT * FROM `orders` WHERE CAST(`meta` AS JSON) = CAST(? AS JSON)", `[1,2]`, false},
		{"sqlite fallback", dialect.SQLite, "{broken", `SELECT * FROM "orders" WHERE CAST("meta" AS TEXT) = ?`, "{broken", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := New(ordersTable(), tt.d).Select(Params{{"meta", tt.value}}, ListOptions{})
			require.NoError(t, err)
			assert.Equal(t, tt.text, stmt.Text)
			assert.Equal(t, []any{tt.bound}, stmt.Values)
			assert.Equal(t, tt.warning, len(stmt.Warnings) == 1)
		})
	}
}

func TestInsert(t *testing.T) {
	payload := Params{{"status", "new"}, {"bogus", 1}, {"meta", map[string]any{"gift": true}}, {"total", 9.5}}

	stmt, err := New(ordersTable(), dialect.Postgres).Insert(payload)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "orders" ("status", "meta", "total") VALUES ($1, $2, $3) RETURNING *`, stmt.Text)
	assert.Equal(t, []any{"new", `{"gift":true}`, 9.5}, stmt.Values)
	assert.True(t, stmt.Returning)

	stmt, err = New(ordersTable(), dialect.MySQL).Insert(payload)
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO `orders` (`status`, `meta`, `total`) VALUES (?, ?, ?)", stmt.Text)
	assert.False(t, stmt.Returning)
}

func TestInsert_PlaceholdersMatchValues(t *testing.T) {
	payload := Params{{"status", "a"}, {"total", 1}, {"customer_id", 2}, {"meta", "{}"}, {"id", 7}}
	for _, d := range allDialects {
		stmt, err := New(ordersTable(), d).Insert(payload)
		require.NoError(t, err)

		if d.Family() == dialect.FamilyPostgres {
			for i := range stmt.Values {
				assert.Contains(t, stmt.Text, d.Placeholder(i+1))
			}
			assert.NotContains(t, stmt.Text, d.Placeholder(len(stmt.Values)+1))
		} else {
			assert.Equal(t, len(stmt.Values), strings.Count(stmt.Text, "?"))
		}
		assert.Equal(t, []any{"a", 1, 2, "{}", 7}, stmt.Values)
	}
}

func TestInsert_NoValidColumns(t *testing.T) {
	for _, d := range allDialects {
		_, err := New(ordersTable(), d).Insert(Params{{"bogus", 1}})
		assert.True(t, errs.IsNoValidColumns(err), "%s: %v", d.Name(), err)
	}
}

func TestUpdate_ExcludesPrimaryKey(t *testing.T) {
	stmt, err := New(ordersTable(), dialect.Postgres).Update(3, Params{{"id", 99}, {"status", "paid"}, {"total", 5}})
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "orders" SET "status" = $1, "total" = $2 WHERE "id" = $3 RETURNING *`, stmt.Text)
	assert.Equal(t, []any{"paid", 5, 3}, stmt.Values)

	_, err = New(ordersTable(), dialect.MySQL).Update(3, Params{{"id", 99}})
	assert.True(t, errs.IsNoValidColumns(err))
}

func TestKeyedOperations_NoPrimaryKey(t *testing.T) {
	logs := &schema.TableSchema{Name: "logs", Columns: []schema.Column{{Name: "line"}}}
	b := New(logs, dialect.SQLite)

	_, err := b.SelectByID(1)
	assert.True(t, errs.IsNoPrimaryKey(err))
	_, err = b.Update(1, Params{{"line", "x"}})
	assert.True(t, errs.IsNoPrimaryKey(err))
	_, err = b.DeleteByID(1)
	assert.True(t, errs.IsNoPrimaryKey(err))
}

func TestCompositeKeyUsesFirstColumn(t *testing.T) {
	tags := &schema.TableSchema{
		Name:        "order_tags",
		Columns:     []schema.Column{{Name: "order_id"}, {Name: "tag"}},
		PrimaryKeys: []string{"order_id", "tag"},
	}
	stmt, err := New(tags, dialect.MySQL).DeleteByID(4)
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM `order_tags` WHERE `order_id` = ?", stmt.Text)
}

func TestDeleteByID(t *testing.T) {
	stmt, err := New(ordersTable(), dialect.SQLite).DeleteByID("7")
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "orders" WHERE "id" = ? RETURNING *`, stmt.Text)
	assert.Equal(t, []any{int64(7)}, stmt.Values, "string keys are converted for integer columns")
}

func TestDeleteWhere(t *testing.T) {
	for _, d := range allDialects {
		_, err := New(ordersTable(), d).DeleteWhere(nil)
		assert.True(t, errs.IsUnsafeDelete(err), d.Name())

		_, err = New(ordersTable(), d).DeleteWhere(Params{{"unknown", 1}})
		assert.True(t, errs.IsUnsafeDelete(err), "unknown-only filters are empty after parsing")

		stmt, err := New(ordersTable(), d).DeleteWhere(Params{{"status", "active"}})
		require.NoError(t, err)
		assert.Equal(t, 1, strings.Count(stmt.Text, " WHERE "))
		assert.NotContains(t, stmt.Text, " AND ")
		assert.Equal(t, []any{"active"}, stmt.Values)
	}
}

func TestInvalidIdentifierInSchemaIsRejected(t *testing.T) {
	odd := &schema.TableSchema{
		Name:        "weird table",
		Columns:     []schema.Column{{Name: "id"}},
		PrimaryKeys: []string{"id"},
	}
	_, err := New(odd, dialect.Postgres).SelectByID(1)
	assert.True(t, errs.IsInvalidIdentifier(err))

	catalog := &schema.TableSchema{Name: "pg_class", Columns: []schema.Column{{Name: "oid"}}}
	_, err = New(catalog, dialect.Postgres).Select(nil, ListOptions{})
	assert.True(t, errs.IsForbiddenIdentifier(err))
}

func TestBuilderResetsBetweenStatements(t *testing.T) {
	b := New(ordersTable(), dialect.Postgres)
	first, err := b.SelectByID(1)
	require.NoError(t, err)
	second, err := b.SelectByID(2)
	require.NoError(t, err)

	assert.Equal(t, []any{1}, first.Values)
	assert.Equal(t, []any{2}, second.Values)
	assert.Equal(t, first.Text, second.Text)
}
